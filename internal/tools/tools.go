// Package tools implements the model-facing tool surface of spec.md §4.7:
// named, JSON-schema-described callables the main layer may invoke zero or
// more times per turn. Handlers run on the session's task scope so
// cancellation propagates, grounded on the teacher's ManagedStream pattern
// of executing side-effecting work inside the per-session context.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler executes one tool call for a given user and returns the text
// result fed back into the model's stream.
type Handler func(ctx context.Context, userID string, args json.RawMessage) (string, error)

// Tool is a single callable exposed to the main model.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any
	Handler     Handler
}

// Registry is the set of tools available to one main-layer request.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// List returns the registered tools in registration order, suitable for
// building the tool-surface descriptor sent to the main model.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Invoke dispatches a model-issued tool call by name. An unknown tool name
// produces a textual error result rather than failing the turn, matching
// spec.md §7's "memory-engine failures ... never terminate the session"
// policy generalized to any tool.
func (r *Registry) Invoke(ctx context.Context, name, userID string, args json.RawMessage) string {
	t, ok := r.tools[name]
	if !ok {
		return fmt.Sprintf("error: unknown tool %q", name)
	}
	result, err := t.Handler(ctx, userID, args)
	if err != nil {
		return fmt.Sprintf("error: %s", err.Error())
	}
	return result
}
