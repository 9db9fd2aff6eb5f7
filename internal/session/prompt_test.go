package session

import (
	"strings"
	"testing"

	"github.com/voicewire/gateway/internal/memory"
	"github.com/voicewire/gateway/internal/voicestyle"
)

func TestBuildUserContextBlockEmpty(t *testing.T) {
	block := BuildUserContextBlock(nil, "")
	if !strings.Contains(block, "no remembered context yet") {
		t.Errorf("expected empty-context sentinel, got %q", block)
	}
}

func TestBuildUserContextBlockWithSummaryAndEntities(t *testing.T) {
	entities := []memory.Entity{
		{Name: "Orion", Type: "ship", Observations: []string{"docked at bay 4", "needs fuel"}},
	}
	block := BuildUserContextBlock(entities, "User prefers concise answers.")

	if !strings.Contains(block, "User prefers concise answers.") {
		t.Errorf("expected summary prose in block, got %q", block)
	}
	if !strings.Contains(block, "Orion (ship): docked at bay 4; needs fuel") {
		t.Errorf("expected rendered entity line, got %q", block)
	}
}

func TestBuildSystemPromptIsPure(t *testing.T) {
	style := voicestyle.Get(voicestyle.Concise)
	a := BuildSystemPrompt("ctx", style)
	b := BuildSystemPrompt("ctx", style)
	if a != b {
		t.Error("expected identical inputs to produce identical prompts")
	}
	if !strings.Contains(a, style.PromptModifier) {
		t.Error("expected prompt to include the style's prompt modifier")
	}
	if !strings.Contains(a, "ctx") {
		t.Error("expected prompt to include the user context block")
	}
}

func TestBuildSystemPromptVariesByStyle(t *testing.T) {
	normal := BuildSystemPrompt("ctx", voicestyle.Get(voicestyle.Normal))
	formal := BuildSystemPrompt("ctx", voicestyle.Get(voicestyle.Formal))
	if normal == formal {
		t.Error("expected different styles to produce different prompts")
	}
}
