package memory

import (
	"context"
	"sync"
	"time"
)

// Engine owns the Store plus the per-user lock table, and hands out Handles
// scoped to one user id. This replaces any ambient per-user singleton (spec
// §9): every tool call explicitly acquires a Handle and the lock it holds
// never outlives that single call.
type Engine struct {
	store *Store

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// NewEngine wraps a Store with per-user lock bookkeeping.
func NewEngine(store *Store) *Engine {
	return &Engine{store: store, locks: make(map[string]*sync.RWMutex)}
}

func (e *Engine) lockFor(userID string) *sync.RWMutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[userID]
	if !ok {
		l = &sync.RWMutex{}
		e.locks[userID] = l
	}
	return l
}

// Handle scopes the engine to one user id for the duration of a single tool
// call.
type Handle struct {
	engine *Engine
	userID string
}

// For returns a Handle for userID. Acquiring it does not itself take a
// lock — individual methods lock and unlock around their own body only.
func (e *Engine) For(userID string) *Handle {
	return &Handle{engine: e, userID: userID}
}

// withRead runs fn under the user's shared lock.
func (h *Handle) withRead(fn func() error) error {
	l := h.engine.lockFor(h.userID)
	l.RLock()
	defer l.RUnlock()
	return fn()
}

// withWrite runs fn under the user's exclusive lock.
func (h *Handle) withWrite(fn func() error) error {
	l := h.engine.lockFor(h.userID)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// SearchMemory implements the search_memory tool.
func (h *Handle) SearchMemory(ctx context.Context, query string, limit int) ([]Entity, error) {
	var out []Entity
	err := h.withRead(func() error {
		var err error
		out, err = h.engine.store.SearchEntities(ctx, h.userID, query, limit)
		return err
	})
	return out, err
}

// Remember implements the remember tool: creates or upserts an entity.
func (h *Handle) Remember(ctx context.Context, name, entityType string, observations []string, userEdit bool) error {
	return h.withWrite(func() error {
		return h.engine.store.UpsertEntity(ctx, Entity{
			UserID:       h.userID,
			Name:         name,
			Type:         entityType,
			Observations: observations,
			UserEdited:   userEdit,
		})
	})
}

// AddObservation implements the add_observation tool. Returns the count of
// genuinely new facts added.
func (h *Handle) AddObservation(ctx context.Context, entityName string, facts []string, userEdit bool) (int, error) {
	var added int
	err := h.withWrite(func() error {
		var err error
		added, err = h.engine.store.AddObservations(ctx, h.userID, entityName, facts, userEdit)
		return err
	})
	return added, err
}

// CreateRelation implements the create_relation tool.
func (h *Handle) CreateRelation(ctx context.Context, from, to, relType string) error {
	return h.withWrite(func() error {
		return h.engine.store.CreateRelation(ctx, h.userID, from, to, relType)
	})
}

// GetMemorySummary implements the get_memory_summary tool: returns the
// fresh summary if one exists, otherwise a quick listing of the top N
// entities. staleThreshold is the mutation-count cutoff from spec.md §3.
func (h *Handle) GetMemorySummary(ctx context.Context, staleThreshold, fallbackTopN int) (string, error) {
	var out string
	err := h.withRead(func() error {
		sm, err := h.engine.store.GetSummary(ctx, h.userID)
		if err != nil {
			return err
		}
		if sm != nil && !sm.IsStale(staleThreshold) {
			out = sm.ProseText
			return nil
		}
		entities, err := h.engine.store.RecentEntities(ctx, h.userID, fallbackTopN)
		if err != nil {
			return err
		}
		out = renderQuickListing(entities)
		return nil
	})
	return out, err
}

// RegenerateSummary stores a freshly generated prose summary, clearing the
// staleness counter (used by whatever component computes the prose — the
// main layer or a background summarizer, out of this package's scope).
func (h *Handle) RegenerateSummary(ctx context.Context, prose string) error {
	return h.withWrite(func() error {
		return h.engine.store.PutSummary(ctx, h.userID, prose)
	})
}

// GetRecentConversation implements the get_recent_conversation tool.
func (h *Handle) GetRecentConversation(ctx context.Context, limit int) ([]Turn, error) {
	var out []Turn
	err := h.withRead(func() error {
		var err error
		out, err = h.engine.store.RecentTurns(ctx, h.userID, limit)
		return err
	})
	return out, err
}

// ContextSnapshot returns the bounded recent-entity list plus the prose
// summary if it is fresh, for building the system prompt's user context
// block (spec.md §4.8). An absent or stale summary comes back as "", and
// unlike GetMemorySummary it never falls back to a quick listing in its
// place — the caller renders the entities without a summary.
func (h *Handle) ContextSnapshot(ctx context.Context, entityLimit, staleThreshold int) ([]Entity, string, error) {
	var entities []Entity
	var prose string
	err := h.withRead(func() error {
		var err error
		entities, err = h.engine.store.RecentEntities(ctx, h.userID, entityLimit)
		if err != nil {
			return err
		}
		sm, err := h.engine.store.GetSummary(ctx, h.userID)
		if err != nil {
			return err
		}
		if sm != nil && !sm.IsStale(staleThreshold) {
			prose = sm.ProseText
		}
		return nil
	})
	return entities, prose, err
}

// AppendTurn records one side of a conversation exchange.
func (h *Handle) AppendTurn(ctx context.Context, role Role, content string) error {
	return h.withWrite(func() error {
		return h.engine.store.AppendTurn(ctx, h.userID, role, content)
	})
}

// PruneExpiredTurns runs the TTL cleanup sweep for every known user. Intended
// to be called periodically (e.g. hourly) from a background task owned by
// cmd/gateway, not from within a session's task scope.
func (e *Engine) PruneExpiredTurns(ctx context.Context, ttl time.Duration) (int64, error) {
	return e.store.PruneTurns(ctx, ttl)
}
