package mainlayer

import (
	"context"
	"strings"

	"github.com/voicewire/gateway/internal/chunker"
	"github.com/voicewire/gateway/internal/metrics"
	"github.com/voicewire/gateway/internal/providers"
	"github.com/voicewire/gateway/internal/tools"
)

// streamHandler implements providers.StreamHandler, fanning each provider
// callback out to the wire, the chunker/TTS path, and the tool registry.
type streamHandler struct {
	ctx      context.Context
	registry *tools.Registry
	metrics  *metrics.Metrics
	userID   string
	chunker  *chunker.Chunker
	onDelta  DeltaSink
	onChunk  ChunkSink
	text     strings.Builder
}

func (h *streamHandler) OnTextDelta(delta string) error {
	h.text.WriteString(delta)
	if err := h.onDelta(delta); err != nil {
		return err
	}
	for _, chunk := range h.chunker.Feed(delta) {
		if err := h.onChunk(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (h *streamHandler) OnToolCall(call providers.ToolCallRequest) (string, error) {
	result := h.registry.Invoke(h.ctx, call.Name, h.userID, call.Args)
	outcome := "ok"
	if strings.HasPrefix(result, "error:") {
		outcome = "error"
	}
	h.metrics.RecordToolCall(h.ctx, call.Name, outcome)
	return result, nil
}
