package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/voicewire/gateway/internal/memory"
)

// MemoryToolsConfig tunes the staleness/fallback behavior of
// get_memory_summary.
type MemoryToolsConfig struct {
	StaleThreshold int // mutation-count cutoff, spec.md §3
	FallbackTopN   int // entities listed when no fresh summary exists
}

// DefaultMemoryToolsConfig matches the threshold decided in DESIGN.md.
func DefaultMemoryToolsConfig() MemoryToolsConfig {
	return MemoryToolsConfig{StaleThreshold: 10, FallbackTopN: 10}
}

// RegisterMemoryTools adds the six memory tools from spec.md §4.7 to r,
// bound to engine.
func RegisterMemoryTools(r *Registry, engine *memory.Engine, cfg MemoryToolsConfig) {
	r.Register(Tool{
		Name:        "search_memory",
		Description: "Search the user's knowledge graph by substring over entity name and observations.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
				"limit": map[string]any{"type": "integer", "default": 10},
			},
			"required": []string{"query"},
		},
		Handler: func(ctx context.Context, userID string, raw json.RawMessage) (string, error) {
			var args struct {
				Query string `json:"query"`
				Limit int    `json:"limit"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", err
			}
			entities, err := engine.For(userID).SearchMemory(ctx, args.Query, args.Limit)
			if err != nil {
				return "", err
			}
			return renderEntities(entities), nil
		},
	})

	r.Register(Tool{
		Name:        "remember",
		Description: "Create or update a named entity in the user's knowledge graph.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":          map[string]any{"type": "string"},
				"type":          map[string]any{"type": "string"},
				"observations":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"is_user_edit":  map[string]any{"type": "boolean", "default": false},
			},
			"required": []string{"name", "type"},
		},
		Handler: func(ctx context.Context, userID string, raw json.RawMessage) (string, error) {
			var args struct {
				Name         string   `json:"name"`
				Type         string   `json:"type"`
				Observations []string `json:"observations"`
				IsUserEdit   bool     `json:"is_user_edit"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", err
			}
			if err := engine.For(userID).Remember(ctx, args.Name, args.Type, args.Observations, args.IsUserEdit); err != nil {
				return "", err
			}
			return fmt.Sprintf("remembered %q", args.Name), nil
		},
	})

	r.Register(Tool{
		Name:        "add_observation",
		Description: "Append facts to an existing entity; silently does nothing if the entity is unknown.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"entity_name":  map[string]any{"type": "string"},
				"facts":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"is_user_edit": map[string]any{"type": "boolean", "default": false},
			},
			"required": []string{"entity_name", "facts"},
		},
		Handler: func(ctx context.Context, userID string, raw json.RawMessage) (string, error) {
			var args struct {
				EntityName string   `json:"entity_name"`
				Facts      []string `json:"facts"`
				IsUserEdit bool     `json:"is_user_edit"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", err
			}
			added, err := engine.For(userID).AddObservation(ctx, args.EntityName, args.Facts, args.IsUserEdit)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("added %d new observation(s) to %q", added, args.EntityName), nil
		},
	})

	r.Register(Tool{
		Name:        "create_relation",
		Description: "Create a typed relation between two existing entities.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"from": map[string]any{"type": "string"},
				"to":   map[string]any{"type": "string"},
				"type": map[string]any{"type": "string"},
			},
			"required": []string{"from", "to", "type"},
		},
		Handler: func(ctx context.Context, userID string, raw json.RawMessage) (string, error) {
			var args struct {
				From string `json:"from"`
				To   string `json:"to"`
				Type string `json:"type"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", err
			}
			if err := engine.For(userID).CreateRelation(ctx, args.From, args.To, args.Type); err != nil {
				return "", err
			}
			return fmt.Sprintf("related %q -[%s]-> %q", args.From, args.Type, args.To), nil
		},
	})

	r.Register(Tool{
		Name:        "get_memory_summary",
		Description: "Return the fresh prose summary, or a quick entity listing if stale/absent.",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, userID string, _ json.RawMessage) (string, error) {
			return engine.For(userID).GetMemorySummary(ctx, cfg.StaleThreshold, cfg.FallbackTopN)
		},
	})

	r.Register(Tool{
		Name:        "get_recent_conversation",
		Description: "Return the last N conversation turns by recency.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"limit": map[string]any{"type": "integer", "default": 10},
			},
		},
		Handler: func(ctx context.Context, userID string, raw json.RawMessage) (string, error) {
			var args struct {
				Limit int `json:"limit"`
			}
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &args); err != nil {
					return "", err
				}
			}
			turns, err := engine.For(userID).GetRecentConversation(ctx, args.Limit)
			if err != nil {
				return "", err
			}
			return renderTurns(turns), nil
		},
	})
}

func renderEntities(entities []memory.Entity) string {
	if len(entities) == 0 {
		return "no matching entities"
	}
	var b strings.Builder
	for _, e := range entities {
		fmt.Fprintf(&b, "%s (%s): %s\n", e.Name, e.Type, strings.Join(e.Observations, "; "))
	}
	return b.String()
}

func renderTurns(turns []memory.Turn) string {
	if len(turns) == 0 {
		return "no recent conversation"
	}
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}
	return b.String()
}
