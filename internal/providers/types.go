// Package providers defines the narrow interfaces the gateway drives STT,
// LLM, and TTS egress adapters through, generalizing the teacher's
// pkg/providers interfaces (one-shot STT.Transcribe, LLM.Complete,
// TTS.StreamSynthesize) to the spec's streaming/tool-call contracts.
package providers

import (
	"context"
	"encoding/json"
	"errors"
)

// Message is one turn of conversation handed to an LLM provider.
type Message struct {
	Role    string
	Content string
}

// STT transcribes a complete utterance buffer into a single final
// transcript, matching spec.md §4.4's contract.
type STT interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error)
	Name() string
}

// FastLLM is the one-shot small-model endpoint behind the fast layer
// (spec.md §4.5, §6): no streaming, no tool use.
type FastLLM interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
	Name() string
}

// ToolSpec describes one callable tool to a MainLLM in whatever shape that
// provider's wire format expects.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ToolCallRequest is a model-issued mid-stream request to invoke a tool.
type ToolCallRequest struct {
	ID   string
	Name string
	Args json.RawMessage
}

// StreamHandler receives events from a MainLLM's streaming response. Calls
// arrive on a single goroutine in wire order; OnToolCall blocks the stream
// until it returns, matching spec.md §4.6's "feeds its textual result back
// into the stream as the model expects".
type StreamHandler interface {
	OnTextDelta(delta string) error
	OnToolCall(call ToolCallRequest) (result string, err error)
}

// MainLLM is the authoritative streaming generator driving the main layer
// (spec.md §4.6): a full system prompt, conversation history, and tool
// surface in, text deltas and tool-call round-trips out.
type MainLLM interface {
	StreamComplete(ctx context.Context, systemPrompt string, messages []Message, tools []ToolSpec, handler StreamHandler) error
	Name() string
}

// TTSChunk is one piece of synthesized audio.
type TTSChunk struct {
	PCM        []byte
	SampleRate int
}

// TTS streams synthesized speech for a text segment (spec.md §4.6/§6).
type TTS interface {
	StreamSynthesize(ctx context.Context, text string, exaggeration, speechRate float64, onChunk func(TTSChunk) error) error
	Name() string
}

// FatalError marks an upstream failure that should trip the circuit
// breaker open immediately (auth failure, quota exhaustion — spec.md §7's
// "Upstream fatal" kind) instead of waiting for the failure counter.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err (or something it wraps) is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
