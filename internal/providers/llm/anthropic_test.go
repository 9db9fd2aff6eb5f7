package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voicewire/gateway/internal/providers"
)

func TestAnthropicMainStreamCompleteToolUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"tool_use\",\"id\":\"call_1\",\"name\":\"search_memory\"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"{\\\"query\\\":\\\"fleet\\\"}\"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"tool_use\"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"message_stop\"}\n\n")
	}))
	defer server.Close()

	l := &AnthropicMain{apiKey: "test-key", url: server.URL, model: "claude-3-5-sonnet-20240620"}
	h := &recordingHandler{}

	calls, stop, err := l.streamOnce(context.Background(), "system", nil, nil, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stop != "tool_use" {
		t.Errorf("expected stop reason tool_use, got %q", stop)
	}
	if len(calls) != 1 || calls[0].Name != "search_memory" {
		t.Fatalf("expected one search_memory call, got %+v", calls)
	}
	if string(calls[0].Args) != `{"query":"fleet"}` {
		t.Errorf("unexpected args: %s", calls[0].Args)
	}
}

func TestAnthropicMainStreamCompleteTextOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi there.\"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\"}}\n\n")
	}))
	defer server.Close()

	l := &AnthropicMain{apiKey: "test-key", url: server.URL, model: "claude-3-5-sonnet-20240620"}
	h := &recordingHandler{}

	err := l.StreamComplete(context.Background(), "system", []providers.Message{{Role: "user", Content: "hi"}}, nil, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.text != "Hi there." {
		t.Errorf("expected 'Hi there.', got %q", h.text)
	}
}
