package session

import (
	"fmt"
	"strings"

	"github.com/voicewire/gateway/internal/memory"
	"github.com/voicewire/gateway/internal/voicestyle"
)

// personaPreamble is the fixed persona and behavior preamble, the first of
// the three parts spec.md §4.8 concatenates into the system prompt.
const personaPreamble = `You are a helpful voice assistant speaking to the user in real time. ` +
	`Keep responses natural to hear aloud: short sentences, no markdown, no bullet lists. ` +
	`Use the tools available to you when the user asks about account-specific or ` +
	`remembered information rather than guessing.`

// BuildUserContextBlock renders the user's recent entity graph and summary
// into the compact context block spec.md §4.8 inserts as part (2) of the
// system prompt. Pure: identical inputs produce identical output.
func BuildUserContextBlock(entities []memory.Entity, summary string) string {
	var b strings.Builder
	b.WriteString("Known context about this user:\n")
	if strings.TrimSpace(summary) != "" {
		b.WriteString(summary)
		b.WriteString("\n")
	}
	for _, e := range entities {
		fmt.Fprintf(&b, "- %s (%s): %s\n", e.Name, e.Type, strings.Join(e.Observations, "; "))
	}
	if len(entities) == 0 && strings.TrimSpace(summary) == "" {
		b.WriteString("(no remembered context yet)\n")
	}
	return b.String()
}

// BuildSystemPrompt concatenates the three parts of spec.md §4.8: the
// persona preamble, the user-context block, and the voice-style modifier.
// Pure: identical inputs produce identical prompts.
func BuildSystemPrompt(userContextBlock string, style voicestyle.Style) string {
	return personaPreamble + "\n\n" + userContextBlock + "\n" + style.PromptModifier
}
