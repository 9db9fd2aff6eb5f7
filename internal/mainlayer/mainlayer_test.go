package mainlayer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/voicewire/gateway/internal/chunker"
	"github.com/voicewire/gateway/internal/providers"
	"github.com/voicewire/gateway/internal/tools"
)

// stubMainLLM emits a fixed sequence of text deltas and tool calls,
// replaying whatever providers.StreamHandler does with them.
type stubMainLLM struct {
	deltas    []string
	toolCalls []providers.ToolCallRequest
}

func (s *stubMainLLM) Name() string { return "stub-main-llm" }

func (s *stubMainLLM) StreamComplete(ctx context.Context, systemPrompt string, messages []providers.Message, tools []providers.ToolSpec, handler providers.StreamHandler) error {
	for _, tc := range s.toolCalls {
		if _, err := handler.OnToolCall(tc); err != nil {
			return err
		}
	}
	for _, d := range s.deltas {
		if err := handler.OnTextDelta(d); err != nil {
			return err
		}
	}
	return nil
}

func TestRunForwardsDeltasAndChunks(t *testing.T) {
	llm := &stubMainLLM{deltas: []string{"Fleet status is nominal. ", "All ships are docked."}}
	registry := tools.NewRegistry()

	var delivered []string
	var chunks []string

	finalText, err := Run(
		context.Background(), llm, registry, nil, "alice",
		"system prompt", nil, chunker.Config{MinChunkSize: 1},
		func(d string) error { delivered = append(delivered, d); return nil },
		func(c string) error { chunks = append(chunks, c); return nil },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finalText != "Fleet status is nominal. All ships are docked." {
		t.Errorf("unexpected final text: %q", finalText)
	}
	if len(delivered) != 2 {
		t.Errorf("expected 2 forwarded deltas, got %d", len(delivered))
	}
	if len(chunks) == 0 {
		t.Error("expected at least one chunk to be yielded")
	}
}

func TestRunDispatchesToolCalls(t *testing.T) {
	var gotUserID string
	var gotArgs json.RawMessage

	registry := tools.NewRegistry()
	registry.Register(tools.Tool{
		Name: "search_memory",
		Handler: func(ctx context.Context, userID string, args json.RawMessage) (string, error) {
			gotUserID = userID
			gotArgs = args
			return "found: The Armada", nil
		},
	})

	llm := &stubMainLLM{
		toolCalls: []providers.ToolCallRequest{{ID: "1", Name: "search_memory", Args: json.RawMessage(`{"query":"armada"}`)}},
		deltas:    []string{"Found it."},
	}

	finalText, err := Run(
		context.Background(), llm, registry, nil, "alice",
		"system prompt", nil, chunker.Config{MinChunkSize: 1},
		func(d string) error { return nil },
		func(c string) error { return nil },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finalText != "Found it." {
		t.Errorf("unexpected final text: %q", finalText)
	}
	if gotUserID != "alice" {
		t.Errorf("expected userID alice, got %q", gotUserID)
	}
	if string(gotArgs) != `{"query":"armada"}` {
		t.Errorf("unexpected args: %s", gotArgs)
	}
}

func TestPrimeSystemPrompt(t *testing.T) {
	primed := PrimeSystemPrompt("base prompt", "On it.")
	if primed == "base prompt" {
		t.Error("expected prompt to be primed with ack text")
	}
	unprimed := PrimeSystemPrompt("base prompt", "")
	if unprimed != "base prompt" {
		t.Errorf("expected unchanged prompt when ack is empty, got %q", unprimed)
	}
}
