// Package mainlayer drives the authoritative large-model endpoint of
// spec.md §4.6: a stream of text deltas interleaved with tool-call events,
// fanned out to the outbound wire, the text chunker, and the tool registry.
package mainlayer

import (
	"context"

	"github.com/voicewire/gateway/internal/chunker"
	"github.com/voicewire/gateway/internal/metrics"
	"github.com/voicewire/gateway/internal/providers"
	"github.com/voicewire/gateway/internal/tools"
)

// DeltaSink receives each raw text delta as it arrives, for forwarding to
// the outbound wire as an LLM_CHUNK frame.
type DeltaSink func(delta string) error

// ChunkSink receives each TTS-sized chunk the chunker yields, for
// submission to the TTS adapter with the turn's prosody parameters.
type ChunkSink func(text string) error

// Run drives one main-layer turn to completion: it streams the model's
// response, forwarding text deltas to onDelta and chunker-yielded chunks to
// onChunk, and dispatches tool calls through registry. It returns the
// concatenation of all text deltas, which the caller appends to the
// conversation ring on success.
func Run(
	ctx context.Context,
	llm providers.MainLLM,
	registry *tools.Registry,
	m *metrics.Metrics,
	userID, systemPrompt string,
	messages []providers.Message,
	chunkerCfg chunker.Config,
	onDelta DeltaSink,
	onChunk ChunkSink,
) (string, error) {
	h := &streamHandler{
		ctx:      ctx,
		registry: registry,
		metrics:  m,
		userID:   userID,
		chunker:  chunker.New(chunkerCfg),
		onDelta:  onDelta,
		onChunk:  onChunk,
	}

	toolSpecs := make([]providers.ToolSpec, 0, len(registry.List()))
	for _, t := range registry.List() {
		toolSpecs = append(toolSpecs, providers.ToolSpec{Name: t.Name, Description: t.Description, Schema: t.Schema})
	}

	if err := llm.StreamComplete(ctx, systemPrompt, messages, toolSpecs, h); err != nil {
		return h.text.String(), err
	}

	for _, chunk := range h.chunker.Flush() {
		if err := onChunk(chunk); err != nil {
			return h.text.String(), err
		}
	}
	return h.text.String(), nil
}

// PrimeSystemPrompt prepends the fast-layer priming line from spec.md
// §4.6: the model is told an acknowledgment has already been spoken so it
// continues naturally rather than re-greeting.
func PrimeSystemPrompt(systemPrompt, ackText string) string {
	if ackText == "" {
		return systemPrompt
	}
	return "(You already said: \"" + ackText + "\". Continue naturally; do not repeat a greeting or acknowledgment.)\n\n" + systemPrompt
}
