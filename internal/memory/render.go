package memory

import (
	"fmt"
	"strings"
)

// renderQuickListing produces the plain-text fallback used by
// get_memory_summary when no fresh prose summary exists.
func renderQuickListing(entities []Entity) string {
	if len(entities) == 0 {
		return "No memory recorded yet."
	}
	var b strings.Builder
	b.WriteString("Known entities:\n")
	for _, e := range entities {
		fmt.Fprintf(&b, "- %s (%s)", e.Name, e.Type)
		if len(e.Observations) > 0 {
			fmt.Fprintf(&b, ": %s", strings.Join(e.Observations, "; "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
