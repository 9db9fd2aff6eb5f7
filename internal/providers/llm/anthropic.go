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

// AnthropicMain drives the main layer against Anthropic's streaming Messages
// API with tool_use content blocks, generalizing the teacher's one-shot
// pkg/providers/llm/anthropic.go AnthropicLLM.Complete into spec.md §4.6's
// streaming + tool-loop contract.
type AnthropicMain struct {
	apiKey string
	url    string
	model  string
}

func NewAnthropicMain(apiKey, model string) *AnthropicMain {
	if model == "" {
		model = "claude-3-5-sonnet-20240620"
	}
	return &AnthropicMain{apiKey: apiKey, url: "https://api.anthropic.com/v1/messages", model: model}
}

func (l *AnthropicMain) Name() string { return "anthropic-llm" }

type anthropicMsg struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

func (l *AnthropicMain) StreamComplete(ctx context.Context, systemPrompt string, messages []providers.Message, toolSpecs []providers.ToolSpec, handler providers.StreamHandler) error {
	history := make([]anthropicMsg, 0, len(messages))
	for _, m := range messages {
		content, _ := json.Marshal(m.Content)
		history = append(history, anthropicMsg{Role: m.Role, Content: content})
	}

	tools := toAnthropicTools(toolSpecs)

	for {
		toolCalls, stop, err := l.streamOnce(ctx, systemPrompt, history, tools, handler)
		if err != nil {
			return err
		}
		if stop != "tool_use" || len(toolCalls) == 0 {
			return nil
		}

		assistantBlocks := make([]map[string]any, 0, len(toolCalls))
		for _, tc := range toolCalls {
			var input any
			json.Unmarshal(tc.Args, &input)
			assistantBlocks = append(assistantBlocks, map[string]any{
				"type":  "tool_use",
				"id":    tc.ID,
				"name":  tc.Name,
				"input": input,
			})
		}
		assistantContent, _ := json.Marshal(assistantBlocks)
		history = append(history, anthropicMsg{Role: "assistant", Content: assistantContent})

		resultBlocks := make([]map[string]any, 0, len(toolCalls))
		for _, tc := range toolCalls {
			result, err := handler.OnToolCall(tc)
			if err != nil {
				result = fmt.Sprintf("error: %s", err.Error())
			}
			resultBlocks = append(resultBlocks, map[string]any{
				"type":        "tool_result",
				"tool_use_id": tc.ID,
				"content":     result,
			})
		}
		userContent, _ := json.Marshal(resultBlocks)
		history = append(history, anthropicMsg{Role: "user", Content: userContent})
	}
}

func (l *AnthropicMain) streamOnce(ctx context.Context, systemPrompt string, history []anthropicMsg, tools []map[string]any, handler providers.StreamHandler) ([]providers.ToolCallRequest, string, error) {
	payload := map[string]any{
		"model":      l.model,
		"messages":   history,
		"max_tokens": 1024,
		"stream":     true,
	}
	if systemPrompt != "" {
		payload["system"] = systemPrompt
	}
	if len(tools) > 0 {
		payload["tools"] = tools
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", l.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusPaymentRequired {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, "", &providers.FatalError{Err: fmt.Errorf("anthropic llm auth/quota error (status %d): %s", resp.StatusCode, errBody)}
	}
	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("anthropic llm error (status %d): %s", resp.StatusCode, errBody)
	}

	type contentBlock struct {
		Type  string `json:"type"`
		ID    string `json:"id"`
		Name  string `json:"name"`
	}
	type event struct {
		Type  string `json:"type"`
		Index int    `json:"index"`
		Delta struct {
			Type        string `json:"type"`
			Text        string `json:"text"`
			PartialJSON string `json:"partial_json"`
			StopReason  string `json:"stop_reason"`
		} `json:"delta"`
		ContentBlock contentBlock `json:"content_block"`
	}

	blocks := map[int]*providers.ToolCallRequest{}
	argBuf := map[int]*strings.Builder{}
	var order []int
	stopReason := ""

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var e event
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			continue
		}

		switch e.Type {
		case "content_block_start":
			if e.ContentBlock.Type == "tool_use" {
				blocks[e.Index] = &providers.ToolCallRequest{ID: e.ContentBlock.ID, Name: e.ContentBlock.Name}
				argBuf[e.Index] = &strings.Builder{}
				order = append(order, e.Index)
			}
		case "content_block_delta":
			switch e.Delta.Type {
			case "text_delta":
				if err := handler.OnTextDelta(e.Delta.Text); err != nil {
					return nil, "", err
				}
			case "input_json_delta":
				if buf, ok := argBuf[e.Index]; ok {
					buf.WriteString(e.Delta.PartialJSON)
				}
			}
		case "message_delta":
			if e.Delta.StopReason != "" {
				stopReason = e.Delta.StopReason
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, "", err
	}

	calls := make([]providers.ToolCallRequest, 0, len(order))
	for _, idx := range order {
		tc := blocks[idx]
		raw := argBuf[idx].String()
		if raw == "" {
			raw = "{}"
		}
		tc.Args = json.RawMessage(raw)
		calls = append(calls, *tc)
	}
	return calls, stopReason, nil
}

func toAnthropicTools(specs []providers.ToolSpec) []map[string]any {
	out := make([]map[string]any, 0, len(specs))
	for _, s := range specs {
		out = append(out, map[string]any{
			"name":         s.Name,
			"description":  s.Description,
			"input_schema": s.Schema,
		})
	}
	return out
}
