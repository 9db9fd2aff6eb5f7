package fastlayer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voicewire/gateway/internal/voicestyle"
)

func TestNeedsAcknowledgmentGate(t *testing.T) {
	normal := voicestyle.Get(voicestyle.Normal)
	concise := voicestyle.Get(voicestyle.Concise)

	cases := []struct {
		transcript string
		style      voicestyle.Style
		want       bool
	}{
		{"check my fleet status please", normal, true},
		{"hi", normal, false},
		{"ok", normal, false},
		{"yes", normal, false},
		{"hey!", normal, false},
		{"what is the market doing today", concise, false},
	}
	for _, c := range cases {
		if got := NeedsAcknowledgment(c.transcript, c.style); got != c.want {
			t.Errorf("NeedsAcknowledgment(%q, %s) = %v, want %v", c.transcript, c.style.ID, got, c.want)
		}
	}
}

func TestRunPatternFallback(t *testing.T) {
	result := Run(context.Background(), "Check my fleet status", nil)
	if result.Intent != "fleet_status" {
		t.Errorf("expected fleet_status intent, got %q", result.Intent)
	}
	if result.Text == "" {
		t.Error("expected non-empty acknowledgment text")
	}
}

func TestRunQuestionPrefixFallback(t *testing.T) {
	result := Run(context.Background(), "How do I upgrade my ship", nil)
	if result.Intent != "question" {
		t.Errorf("expected question intent, got %q", result.Intent)
	}
}

type stubFastLLM struct {
	response string
	err      error
	delay    time.Duration
}

func (s *stubFastLLM) Name() string { return "stub-fast-llm" }

func (s *stubFastLLM) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestRunSmallModelFallbackOnTimeout(t *testing.T) {
	slow := &stubFastLLM{response: `{"text":"Sure thing.","intent":"misc","needsFollowUp":true}`, delay: time.Second}
	result := Run(context.Background(), "I am curious about life on the station", slow)
	if result.Text != genericFallback {
		t.Errorf("expected generic fallback, got %q", result.Text)
	}
}

func TestRunSmallModelFallbackOnError(t *testing.T) {
	broken := &stubFastLLM{err: errors.New("upstream down")}
	result := Run(context.Background(), "I am curious about life on the station", broken)
	if result.Text != genericFallback {
		t.Errorf("expected generic fallback, got %q", result.Text)
	}
}

func TestRunSmallModelSuccess(t *testing.T) {
	fast := &stubFastLLM{response: `{"text":"Sure thing.","intent":"misc","needsFollowUp":true}`}
	result := Run(context.Background(), "I am curious about life on the station", fast)
	if result.Text != "Sure thing." {
		t.Errorf("expected 'Sure thing.', got %q", result.Text)
	}
	if result.Intent != "misc" {
		t.Errorf("expected misc intent, got %q", result.Intent)
	}
}
