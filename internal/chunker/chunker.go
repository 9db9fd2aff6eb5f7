// Package chunker buffers streaming text from the main layer and yields
// TTS-sized chunks at sentence or paragraph boundaries, per spec.md §4.9.
package chunker

import (
	"strings"
)

// Mode selects the boundary rule.
type Mode string

const (
	ModeSentence  Mode = "sentence"
	ModeParagraph Mode = "paragraph"
)

const (
	defaultMinChunkSize = 10
	defaultMaxChunkSize = 500
)

// abbreviations is the closed exception list from spec.md §4.9/§9: a
// period following one of these words is never treated as a sentence
// boundary. Extending it is a data-only change.
var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {},
	"e.g": {}, "i.e": {}, "etc": {}, "vs": {},
	"jr": {}, "sr": {}, "inc": {}, "ltd": {}, "co": {}, "st": {},
}

// Config tunes the chunker's size constraints. Zero values fall back to
// the spec.md defaults (min 10, max 500).
type Config struct {
	Mode         Mode
	MinChunkSize int
	MaxChunkSize int
}

func (c Config) withDefaults() Config {
	if c.MinChunkSize <= 0 {
		c.MinChunkSize = defaultMinChunkSize
	}
	if c.MaxChunkSize <= 0 {
		c.MaxChunkSize = defaultMaxChunkSize
	}
	if c.Mode == "" {
		c.Mode = ModeSentence
	}
	return c
}

// Chunker accumulates streamed text deltas and yields TTS-sized chunks as
// boundaries are detected. Not safe for concurrent use; one Chunker per
// in-flight stream.
type Chunker struct {
	cfg Config
	buf strings.Builder
}

// New creates a Chunker with the given configuration.
func New(cfg Config) *Chunker {
	return &Chunker{cfg: cfg.withDefaults()}
}

// Feed appends a text delta to the rolling buffer and returns any chunks
// that became ready to yield, in order. Most deltas yield nothing; a
// boundary or the max-size cap can yield one or more chunks at once.
func (c *Chunker) Feed(delta string) []string {
	c.buf.WriteString(delta)
	return c.drain(false)
}

// Flush yields any residual buffered text as a final chunk, if it meets
// the minimum length (spec.md §4.9: "any residual buffer ≥ min length is
// flushed as a final chunk"). Shorter residuals are discarded — there is
// no further text to coalesce them with.
func (c *Chunker) Flush() []string {
	out := c.drain(true)
	rest := c.buf.String()
	c.buf.Reset()
	if len(strings.TrimSpace(rest)) >= c.cfg.MinChunkSize {
		out = append(out, rest)
	}
	return out
}

// drain repeatedly extracts complete boundary-terminated chunks from the
// buffer. A candidate chunk shorter than MinChunkSize is not yielded;
// instead the search continues past that boundary so the short span gets
// coalesced with whatever text follows it (spec.md §4.9's "shorter yields
// are deferred and coalesced with the next").
func (c *Chunker) drain(final bool) []string {
	var out []string
	searchFrom := 0

	for {
		content := c.buf.String()
		idx := findBoundary(content, searchFrom, c.cfg.Mode)

		if idx == -1 {
			if len(content) > c.cfg.MaxChunkSize {
				cut := forceSplit(content, c.cfg.MaxChunkSize)
				chunk := content[:cut]
				if len(strings.TrimSpace(chunk)) >= c.cfg.MinChunkSize {
					out = append(out, chunk)
					c.resetTo(content[cut:])
					searchFrom = 0
					continue
				}
			}
			return out
		}

		chunk := content[:idx]
		if len(strings.TrimSpace(chunk)) < c.cfg.MinChunkSize && !final {
			searchFrom = idx
			continue
		}

		out = append(out, strings.TrimRight(chunk, " \t\n\r"))
		c.resetTo(content[idx:])
		searchFrom = 0
	}
}

func (c *Chunker) resetTo(rest string) {
	c.buf.Reset()
	c.buf.WriteString(rest)
}

// findBoundary locates the first boundary at or after byte offset from in
// s, per the given mode, or -1 if none is present.
func findBoundary(s string, from int, mode Mode) int {
	if mode == ModeParagraph {
		return findParagraphBoundary(s, from)
	}
	return findSentenceBoundary(s, from)
}

// findSentenceBoundary returns the index just past the first
// sentence-ending boundary in s at or after byte offset from (punctuation
// immediately followed by whitespace), or -1 if none is present. Periods
// following a known abbreviation are skipped.
func findSentenceBoundary(s string, from int) int {
	for i := from; i < len(s); i++ {
		r := s[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 >= len(s) {
			continue // no trailing whitespace yet; wait for more text
		}
		if !isSpaceByte(s[i+1]) {
			continue
		}
		if r == '.' && precededByAbbreviation(s, i) {
			continue
		}
		return i + 2 // past the punctuation and the single whitespace byte
	}
	return -1
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// precededByAbbreviation reports whether the word immediately before
// s[dotIdx] is in the closed abbreviation list.
func precededByAbbreviation(s string, dotIdx int) bool {
	end := dotIdx
	start := end
	for start > 0 && !isSpaceByte(s[start-1]) {
		start--
	}
	word := strings.ToLower(s[start:end])
	_, ok := abbreviations[word]
	return ok
}

// findParagraphBoundary returns the index just past the first paragraph
// boundary at or after byte offset from (double newline, or single newline
// followed by ≥2 spaces), or -1.
func findParagraphBoundary(s string, from int) int {
	rest := s[from:]
	if idx := strings.Index(rest, "\n\n"); idx != -1 {
		return from + idx + 2
	}
	if idx := strings.Index(rest, "\n  "); idx != -1 {
		end := from + idx + 1
		for end < len(s) && s[end] == ' ' {
			end++
		}
		return end
	}
	return -1
}

// forceSplit picks a split point at or before max, preferring (in order) a
// sentence break, a comma, a space, else a hard split at max.
func forceSplit(s string, max int) int {
	if max >= len(s) {
		return len(s)
	}
	window := s[:max]
	if idx := strings.LastIndexAny(window, ".!?"); idx > 0 {
		return idx + 1
	}
	if idx := strings.LastIndex(window, ","); idx > 0 {
		return idx + 1
	}
	if idx := strings.LastIndex(window, " "); idx > 0 {
		return idx + 1
	}
	return max
}
