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

// OpenAIMain drives the main layer against OpenAI's streaming chat
// completions API with function-calling tool use, generalizing the
// teacher's one-shot pkg/providers/llm/openai.go Complete call into
// spec.md §4.6's streaming + tool-loop contract.
type OpenAIMain struct {
	apiKey string
	url    string
	model  string
}

func NewOpenAIMain(apiKey, model string) *OpenAIMain {
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAIMain{apiKey: apiKey, url: "https://api.openai.com/v1/chat/completions", model: model}
}

func (l *OpenAIMain) Name() string { return "openai-llm" }

type openAIMsg struct {
	Role       string          `json:"role"`
	Content    string          `json:"content,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolCalls  []openAIToolRef `json:"tool_calls,omitempty"`
}

type openAIToolRef struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

func (l *OpenAIMain) StreamComplete(ctx context.Context, systemPrompt string, messages []providers.Message, toolSpecs []providers.ToolSpec, handler providers.StreamHandler) error {
	history := make([]openAIMsg, 0, len(messages)+1)
	history = append(history, openAIMsg{Role: "system", Content: systemPrompt})
	for _, m := range messages {
		history = append(history, openAIMsg{Role: m.Role, Content: m.Content})
	}

	tools := toOpenAITools(toolSpecs)

	for {
		toolCalls, err := l.streamOnce(ctx, history, tools, handler)
		if err != nil {
			return err
		}
		if len(toolCalls) == 0 {
			return nil
		}

		assistantCalls := make([]openAIToolRef, 0, len(toolCalls))
		for _, tc := range toolCalls {
			ref := openAIToolRef{ID: tc.ID, Type: "function"}
			ref.Function.Name = tc.Name
			ref.Function.Arguments = string(tc.Args)
			assistantCalls = append(assistantCalls, ref)
		}
		history = append(history, openAIMsg{Role: "assistant", ToolCalls: assistantCalls})

		for _, tc := range toolCalls {
			result, err := handler.OnToolCall(tc)
			if err != nil {
				result = fmt.Sprintf("error: %s", err.Error())
			}
			history = append(history, openAIMsg{Role: "tool", ToolCallID: tc.ID, Content: result})
		}
	}
}

// streamOnce issues one streaming request and returns any accumulated tool
// calls once the stream reaches its finish reason.
func (l *OpenAIMain) streamOnce(ctx context.Context, history []openAIMsg, tools []map[string]any, handler providers.StreamHandler) ([]providers.ToolCallRequest, error) {
	payload := map[string]any{
		"model":    l.model,
		"messages": history,
		"stream":   true,
	}
	if len(tools) > 0 {
		payload["tools"] = tools
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusPaymentRequired {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, &providers.FatalError{Err: fmt.Errorf("openai llm auth/quota error (status %d): %s", resp.StatusCode, errBody)}
	}
	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai llm error (status %d): %s", resp.StatusCode, errBody)
	}

	type deltaToolCall struct {
		Index    int    `json:"index"`
		ID       string `json:"id"`
		Function struct {
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		} `json:"function"`
	}
	type chunk struct {
		Choices []struct {
			Delta struct {
				Content   string          `json:"content"`
				ToolCalls []deltaToolCall `json:"tool_calls"`
			} `json:"delta"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}

	pending := map[int]*providers.ToolCallRequest{}
	argBuf := map[int]*strings.Builder{}
	var order []int

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var c chunk
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			continue
		}
		if len(c.Choices) == 0 {
			continue
		}
		choice := c.Choices[0]

		if choice.Delta.Content != "" {
			if err := handler.OnTextDelta(choice.Delta.Content); err != nil {
				return nil, err
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			if _, ok := pending[tc.Index]; !ok {
				pending[tc.Index] = &providers.ToolCallRequest{ID: tc.ID, Name: tc.Function.Name}
				argBuf[tc.Index] = &strings.Builder{}
				order = append(order, tc.Index)
			}
			if tc.Function.Name != "" {
				pending[tc.Index].Name = tc.Function.Name
			}
			argBuf[tc.Index].WriteString(tc.Function.Arguments)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	calls := make([]providers.ToolCallRequest, 0, len(order))
	for _, idx := range order {
		tc := pending[idx]
		tc.Args = json.RawMessage(argBuf[idx].String())
		calls = append(calls, *tc)
	}
	return calls, nil
}

func toOpenAITools(specs []providers.ToolSpec) []map[string]any {
	out := make([]map[string]any, 0, len(specs))
	for _, s := range specs {
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        s.Name,
				"description": s.Description,
				"parameters":  s.Schema,
			},
		})
	}
	return out
}
