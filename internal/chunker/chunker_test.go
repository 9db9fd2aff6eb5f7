package chunker

import (
	"strings"
	"testing"
)

// TestAbbreviationSafeChunking is scenario S4 from spec.md §8.
func TestAbbreviationSafeChunking(t *testing.T) {
	c := New(Config{Mode: ModeSentence, MinChunkSize: 10})
	chunks := c.Feed("Dr. Smith went to the dock. Then he left.")
	chunks = append(chunks, c.Flush()...)

	want := []string{"Dr. Smith went to the dock.", "Then he left."}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %q", len(want), len(chunks), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d: got %q want %q", i, chunks[i], want[i])
		}
	}
}

func TestEmbeddedAbbreviationNotSplit(t *testing.T) {
	c := New(Config{Mode: ModeSentence, MinChunkSize: 5})
	chunks := c.Feed("See the report, e.g. section 3, for details. It is long.")
	chunks = append(chunks, c.Flush()...)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(chunks), chunks)
	}
	if !strings.Contains(chunks[0], "e.g.") {
		t.Errorf("first chunk should retain e.g. intact, got %q", chunks[0])
	}
}

// TestChunkerRoundTrip is invariant P6: concatenation of all yielded chunks
// (plus final flush) reproduces the input modulo whitespace trimmed at
// boundaries.
func TestChunkerRoundTrip(t *testing.T) {
	input := "First sentence here. Second one follows. A third one too."
	c := New(Config{Mode: ModeSentence, MinChunkSize: 1})

	var all []string
	for _, r := range strings.SplitAfter(input, " ") {
		all = append(all, c.Feed(r)...)
	}
	all = append(all, c.Flush()...)

	joined := strings.Join(all, " ")
	normalize := func(s string) string {
		return strings.Join(strings.Fields(s), " ")
	}
	if normalize(joined) != normalize(input) {
		t.Errorf("round trip mismatch:\ngot:  %q\nwant: %q", normalize(joined), normalize(input))
	}
}

func TestMinChunkSizeDefersShortChunks(t *testing.T) {
	c := New(Config{Mode: ModeSentence, MinChunkSize: 20})
	chunks := c.Feed("Hi. ")
	if len(chunks) != 0 {
		t.Fatalf("expected short chunk to be deferred, got %v", chunks)
	}
	chunks = c.Feed("This continues the thought further. ")
	chunks = append(chunks, c.Flush()...)
	if len(chunks) == 0 {
		t.Fatalf("expected coalesced chunk to eventually flush")
	}
	if !strings.HasPrefix(chunks[0], "Hi.") {
		t.Errorf("expected coalesced chunk to retain deferred prefix, got %q", chunks[0])
	}
}

func TestMaxChunkSizeForcesYield(t *testing.T) {
	c := New(Config{Mode: ModeSentence, MinChunkSize: 5, MaxChunkSize: 30})
	text := strings.Repeat("word ", 20) // no terminal punctuation at all
	chunks := c.Feed(text)
	if len(chunks) == 0 {
		t.Fatalf("expected at least one forced chunk under max cap")
	}
	for _, ch := range chunks {
		if len(ch) > 30 {
			t.Errorf("chunk exceeds max size: %d bytes: %q", len(ch), ch)
		}
	}
}

func TestParagraphMode(t *testing.T) {
	c := New(Config{Mode: ModeParagraph, MinChunkSize: 5})
	chunks := c.Feed("First paragraph of text.\n\nSecond paragraph begins here.")
	chunks = append(chunks, c.Flush()...)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 paragraph chunks, got %d: %q", len(chunks), chunks)
	}
	if strings.Contains(chunks[0], "\n\n") {
		t.Errorf("paragraph separator should not remain in first chunk: %q", chunks[0])
	}
}
