package session

import (
	"errors"
	"testing"

	"github.com/voicewire/gateway/internal/memory"
	"github.com/voicewire/gateway/internal/providers"
)

func TestToProviderMessagesAppendsLatestTranscript(t *testing.T) {
	recent := []memory.Turn{
		{Role: memory.RoleUser, Content: "what is my fleet status"},
		{Role: memory.RoleAssistant, Content: "all ships are docked"},
	}
	msgs := toProviderMessages(recent, "thanks")

	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Role != string(memory.RoleUser) || msgs[0].Content != "what is my fleet status" {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
	if msgs[2].Role != string(memory.RoleUser) || msgs[2].Content != "thanks" {
		t.Errorf("expected latest transcript appended as a user message, got %+v", msgs[2])
	}
}

func TestToProviderMessagesWithNoHistory(t *testing.T) {
	msgs := toProviderMessages(nil, "hello")
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Content != "hello" {
		t.Errorf("unexpected message: %+v", msgs[0])
	}
}

func TestClassifyErrNil(t *testing.T) {
	if got := classifyErr(nil); got != "" {
		t.Errorf("expected empty classification for nil error, got %q", got)
	}
}

func TestClassifyErrTransient(t *testing.T) {
	if got := classifyErr(errors.New("timeout")); got != "transient" {
		t.Errorf("expected transient classification, got %q", got)
	}
}

func TestClassifyErrFatal(t *testing.T) {
	fatal := &providers.FatalError{Err: errors.New("quota exceeded")}
	if got := classifyErr(fatal); got != "fatal" {
		t.Errorf("expected fatal classification, got %q", got)
	}
}
