// Package fastlayer produces a short spoken acknowledgment within
// spec.md §4.5's latency budget while the main layer is still reasoning.
package fastlayer

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/voicewire/gateway/internal/providers"
	"github.com/voicewire/gateway/internal/voicestyle"
)

const (
	minTranscriptLength = 5
	smallModelTimeout   = 600 * time.Millisecond
	genericFallback     = "Got it, working on that."
)

var shortGreetingRE = regexp.MustCompile(`(?i)^(hi|hey|hello|yes|no|ok|thanks|bye)[\s!?.]*$`)

// Result is the fast layer's spoken acknowledgment plus routing metadata.
type Result struct {
	Text          string
	Intent        string
	NeedsFollowUp bool
}

// NeedsAcknowledgment gates whether the fast layer should run at all for
// this transcript and voice style.
func NeedsAcknowledgment(transcript string, style voicestyle.Style) bool {
	if !style.AcknowledgmentsEnabled() {
		return false
	}
	trimmed := strings.TrimSpace(transcript)
	if len(trimmed) < minTranscriptLength {
		return false
	}
	if shortGreetingRE.MatchString(trimmed) {
		return false
	}
	return true
}

type patternRule struct {
	match  func(lower string) bool
	text   string
	intent string
}

// patterns is the ordered, case-insensitive pattern-fallback table: domain
// keywords first, then question-word prefixes, then imperative prefixes.
// The first match wins.
var patterns = []patternRule{
	{match: containsAny("fleet"), text: "Checking your fleet now.", intent: "fleet_status"},
	{match: containsAny("wallet", "balance"), text: "Pulling up your wallet.", intent: "wallet_balance"},
	{match: containsAny("market", "price"), text: "Looking at the market.", intent: "market_query"},
	{match: containsAny("help"), text: "Happy to help with that.", intent: "help"},
	{match: hasPrefix("who", "what", "when", "where", "why", "how"), text: "Let me look into that.", intent: "question"},
	{match: hasPrefix("show", "tell", "find", "check", "give", "list", "set", "remember"), text: "On it.", intent: "imperative"},
}

func containsAny(substrings ...string) func(string) bool {
	return func(lower string) bool {
		for _, s := range substrings {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

func hasPrefix(prefixes ...string) func(string) bool {
	return func(lower string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(lower, p) {
				return true
			}
		}
		return false
	}
}

func matchPattern(transcript string) (Result, bool) {
	lower := strings.ToLower(strings.TrimSpace(transcript))
	for _, rule := range patterns {
		if rule.match(lower) {
			return Result{Text: rule.text, Intent: rule.intent, NeedsFollowUp: true}, true
		}
	}
	return Result{}, false
}

const systemPromptTemplate = `You are the fast acknowledgment layer of a voice assistant. ` +
	`Given the user's transcript, respond with strict JSON only: ` +
	`{"text": "<=10 word spoken acknowledgment", "intent": "short intent label", "needsFollowUp": true|false}. ` +
	`Do not answer the question itself; only acknowledge it.`

// Run resolves an acknowledgment via the pattern table first, falling back
// to a timed small-model call, and finally a generic fallback phrase.
func Run(ctx context.Context, transcript string, small providers.FastLLM) Result {
	if result, ok := matchPattern(transcript); ok {
		return result
	}

	callCtx, cancel := context.WithTimeout(ctx, smallModelTimeout)
	defer cancel()

	raw, err := small.Complete(callCtx, systemPromptTemplate, transcript)
	if err != nil {
		return Result{Text: genericFallback, Intent: "generic", NeedsFollowUp: true}
	}

	var parsed struct {
		Text          string `json:"text"`
		Intent        string `json:"intent"`
		NeedsFollowUp bool   `json:"needsFollowUp"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || strings.TrimSpace(parsed.Text) == "" {
		return Result{Text: genericFallback, Intent: "generic", NeedsFollowUp: true}
	}
	return Result{Text: parsed.Text, Intent: parsed.Intent, NeedsFollowUp: parsed.NeedsFollowUp}
}
