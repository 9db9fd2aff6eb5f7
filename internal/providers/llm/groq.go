// Package llm adapts third-party language-model APIs to the providers.FastLLM
// and providers.MainLLM contracts, ported from the teacher's
// pkg/providers/llm one-shot adapters and generalized to streaming + tool
// use where the spec requires it.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/voicewire/gateway/internal/providers"
)

// Groq speaks the OpenAI-compatible chat completions API, used as the
// fast layer's small-model endpoint (spec.md §4.5/§6: one-shot, JSON-shaped
// response, streaming not required).
type Groq struct {
	apiKey string
	url    string
	model  string
}

// NewGroq builds a fast-layer Groq adapter. model defaults to a small, cheap
// Groq-hosted model suited to the fast layer's latency budget.
func NewGroq(apiKey, model string) *Groq {
	if model == "" {
		model = "llama-3.1-8b-instant"
	}
	return &Groq{apiKey: apiKey, url: "https://api.groq.com/openai/v1/chat/completions", model: model}
}

func (l *Groq) Name() string { return "groq-llm" }

func (l *Groq) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	payload := map[string]any{
		"model": l.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userText},
		},
		"response_format": map[string]string{"type": "json_object"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusPaymentRequired {
		errBody, _ := io.ReadAll(resp.Body)
		return "", &providers.FatalError{Err: fmt.Errorf("groq llm auth/quota error (status %d): %s", resp.StatusCode, errBody)}
	}
	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("groq llm error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from groq")
	}
	return result.Choices[0].Message.Content, nil
}

// GroqMain drives the main layer against Groq's chat completions API, which
// speaks the same OpenAI-compatible streaming/tool-call wire format as
// OpenAIMain — so it's built by pointing an OpenAIMain at Groq's endpoint
// and a larger Groq-hosted model, rather than duplicating the SSE parser.
type GroqMain struct {
	*OpenAIMain
}

// NewGroqMain builds a main-layer Groq adapter. model defaults to a larger
// Groq-hosted model suited to authoritative generation (spec.md §4.6),
// distinct from the fast layer's small model.
func NewGroqMain(apiKey, model string) *GroqMain {
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	return &GroqMain{OpenAIMain: &OpenAIMain{
		apiKey: apiKey,
		url:    "https://api.groq.com/openai/v1/chat/completions",
		model:  model,
	}}
}

func (l *GroqMain) Name() string { return "groq-llm-main" }
