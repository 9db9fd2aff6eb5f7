package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGoogleFastComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"{\"text\":\"On it.\"}"}]}}]}`)
	}))
	defer server.Close()

	l := &GoogleFast{apiKey: "test-key", url: server.URL, model: "gemini-1.5-flash"}
	result, err := l.Complete(context.Background(), "system", "check fleet status")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == "" {
		t.Fatal("expected non-empty completion")
	}
}

func TestGoogleMainStreamCompleteTextOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Hello\"}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\" world\"}]}}]}\n\n")
	}))
	defer server.Close()

	l := &GoogleMain{apiKey: "test-key", url: server.URL, model: "gemini-1.5-pro"}
	h := &recordingHandler{}

	calls, err := l.streamOnce(context.Background(), "system", nil, nil, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("expected no tool calls, got %d", len(calls))
	}
	if h.text != "Hello world" {
		t.Errorf("expected 'Hello world', got %q", h.text)
	}
}
