package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voicewire/gateway/internal/providers"
)

type recordingHandler struct {
	text  string
	calls []providers.ToolCallRequest
}

func (h *recordingHandler) OnTextDelta(delta string) error {
	h.text += delta
	return nil
}

func (h *recordingHandler) OnToolCall(call providers.ToolCallRequest) (string, error) {
	h.calls = append(h.calls, call)
	return "tool result", nil
}

func TestOpenAIMainStreamCompleteTextOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"},\"finish_reason\":null}]}\n\n")
		if flusher != nil {
			flusher.Flush()
		}
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\" there\"},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	l := &OpenAIMain{apiKey: "test-key", url: server.URL, model: "gpt-4o"}
	h := &recordingHandler{}
	err := l.StreamComplete(context.Background(), "system", []providers.Message{{Role: "user", Content: "hi"}}, nil, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.text != "Hello there" {
		t.Errorf("expected 'Hello there', got %q", h.text)
	}
	if len(h.calls) != 0 {
		t.Errorf("expected no tool calls, got %d", len(h.calls))
	}
}
