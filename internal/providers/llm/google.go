package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/voicewire/gateway/internal/providers"
)

type googlePart struct {
	Text             string          `json:"text,omitempty"`
	FunctionCall     *googleFnCall   `json:"functionCall,omitempty"`
	FunctionResponse *googleFnResult `json:"functionResponse,omitempty"`
}

type googleFnCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type googleFnResult struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type googleMsg struct {
	Role  string       `json:"role"`
	Parts []googlePart `json:"parts"`
}

// GoogleFast speaks Gemini's non-streaming generateContent endpoint, used as
// a one-shot fast-layer adapter (spec.md §4.5/§6), ported from the teacher's
// pkg/providers/llm/google.go GoogleLLM.Complete.
type GoogleFast struct {
	apiKey string
	url    string
	model  string
}

func NewGoogleFast(apiKey, model string) *GoogleFast {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GoogleFast{
		apiKey: apiKey,
		url:    "https://generativelanguage.googleapis.com/v1beta/models/" + model + ":generateContent",
		model:  model,
	}
}

func (l *GoogleFast) Name() string { return "google-llm" }

func (l *GoogleFast) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	payload := map[string]any{
		"contents": []googleMsg{
			{Role: "user", Parts: []googlePart{{Text: userText}}},
		},
		"systemInstruction": googleMsg{Role: "user", Parts: []googlePart{{Text: systemPrompt}}},
		"generationConfig":  map[string]any{"responseMimeType": "application/json"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url+"?key="+l.apiKey, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusForbidden {
		errBody, _ := io.ReadAll(resp.Body)
		return "", &providers.FatalError{Err: fmt.Errorf("google llm auth/quota error (status %d): %s", resp.StatusCode, errBody)}
	}
	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("google llm error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from google llm")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

// GoogleMain speaks Gemini's streamGenerateContent endpoint (alt=sse:
// server-sent events, one JSON chunk per data line) with function-calling
// tool use, generalizing
// GoogleFast for the main layer's streaming + tool-loop contract.
type GoogleMain struct {
	apiKey string
	url    string
	model  string
}

func NewGoogleMain(apiKey, model string) *GoogleMain {
	if model == "" {
		model = "gemini-1.5-pro"
	}
	return &GoogleMain{
		apiKey: apiKey,
		url:    "https://generativelanguage.googleapis.com/v1beta/models/" + model + ":streamGenerateContent",
		model:  model,
	}
}

func (l *GoogleMain) Name() string { return "google-llm" }

func (l *GoogleMain) StreamComplete(ctx context.Context, systemPrompt string, messages []providers.Message, toolSpecs []providers.ToolSpec, handler providers.StreamHandler) error {
	history := make([]googleMsg, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role == "assistant" {
			role = "model"
		}
		history = append(history, googleMsg{Role: role, Parts: []googlePart{{Text: m.Content}}})
	}

	for {
		calls, err := l.streamOnce(ctx, systemPrompt, history, toolSpecs, handler)
		if err != nil {
			return err
		}
		if len(calls) == 0 {
			return nil
		}

		modelParts := make([]googlePart, 0, len(calls))
		for _, c := range calls {
			var args map[string]any
			json.Unmarshal(c.Args, &args)
			modelParts = append(modelParts, googlePart{FunctionCall: &googleFnCall{Name: c.Name, Args: args}})
		}
		history = append(history, googleMsg{Role: "model", Parts: modelParts})

		responseParts := make([]googlePart, 0, len(calls))
		for _, c := range calls {
			result, err := handler.OnToolCall(c)
			if err != nil {
				result = fmt.Sprintf("error: %s", err.Error())
			}
			responseParts = append(responseParts, googlePart{FunctionResponse: &googleFnResult{
				Name:     c.Name,
				Response: map[string]any{"result": result},
			}})
		}
		history = append(history, googleMsg{Role: "user", Parts: responseParts})
	}
}

func (l *GoogleMain) streamOnce(ctx context.Context, systemPrompt string, history []googleMsg, toolSpecs []providers.ToolSpec, handler providers.StreamHandler) ([]providers.ToolCallRequest, error) {
	payload := map[string]any{
		"contents":          history,
		"systemInstruction": googleMsg{Role: "user", Parts: []googlePart{{Text: systemPrompt}}},
	}
	if len(toolSpecs) > 0 {
		payload["tools"] = []map[string]any{{"functionDeclarations": toGoogleFunctionDecls(toolSpecs)}}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url+"?alt=sse&key="+l.apiKey, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusForbidden {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, &providers.FatalError{Err: fmt.Errorf("google llm auth/quota error (status %d): %s", resp.StatusCode, errBody)}
	}
	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("google llm error (status %d): %s", resp.StatusCode, errBody)
	}

	type streamChunk struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text         string        `json:"text"`
					FunctionCall *googleFnCall `json:"functionCall"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}

	var calls []providers.ToolCallRequest
	seq := 0

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var c streamChunk
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			continue
		}
		if len(c.Candidates) == 0 {
			continue
		}
		for _, part := range c.Candidates[0].Content.Parts {
			if part.Text != "" {
				if err := handler.OnTextDelta(part.Text); err != nil {
					return nil, err
				}
			}
			if part.FunctionCall != nil {
				args, _ := json.Marshal(part.FunctionCall.Args)
				seq++
				calls = append(calls, providers.ToolCallRequest{
					ID:   fmt.Sprintf("google-call-%d", seq),
					Name: part.FunctionCall.Name,
					Args: args,
				})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return calls, nil
}

func toGoogleFunctionDecls(specs []providers.ToolSpec) []map[string]any {
	out := make([]map[string]any, 0, len(specs))
	for _, s := range specs {
		out = append(out, map[string]any{
			"name":        s.Name,
			"description": s.Description,
			"parameters":  s.Schema,
		})
	}
	return out
}
