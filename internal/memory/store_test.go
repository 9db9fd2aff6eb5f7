package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.db")
	s, err := Open(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestRememberUpsertDedup is the S5 scenario from spec.md §8.
func TestRememberUpsertDedup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.UpsertEntity(ctx, Entity{
		UserID: "alice", Name: "The Armada", Type: "fleet",
		Observations: []string{"has 4 ships"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// Second identical remember must not duplicate the observation (P5).
	err = s.UpsertEntity(ctx, Entity{
		UserID: "alice", Name: "The Armada", Type: "fleet",
		Observations: []string{"has 4 ships"},
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	results, err := s.SearchEntities(ctx, "alice", "armada", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly one entity, got %d", len(results))
	}
	if len(results[0].Observations) != 1 {
		t.Fatalf("expected exactly one observation, got %d", len(results[0].Observations))
	}
}

func TestAddObservationMissingEntitySilent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	added, err := s.AddObservations(ctx, "alice", "Nonexistent", []string{"fact"}, false)
	if err != nil {
		t.Fatalf("expected silent no-op, got error: %v", err)
	}
	if added != 0 {
		t.Fatalf("expected 0 added, got %d", added)
	}
}

func TestCreateRelationRequiresBothEntities(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateRelation(ctx, "alice", "A", "B", "knows"); err != nil {
		t.Fatalf("expected no-op, got error: %v", err)
	}

	must(t, s.UpsertEntity(ctx, Entity{UserID: "alice", Name: "A", Type: "person"}))
	must(t, s.UpsertEntity(ctx, Entity{UserID: "alice", Name: "B", Type: "person"}))
	must(t, s.CreateRelation(ctx, "alice", "A", "B", "knows"))
	// Duplicate triple is a no-op, not an error.
	must(t, s.CreateRelation(ctx, "alice", "A", "B", "knows"))
}

// TestSummaryStaleness is the S6 / P7 scenario.
func TestSummaryStaleness(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	must(t, s.PutSummary(ctx, "alice", "Alice likes sailing."))
	sm, err := s.GetSummary(ctx, "alice")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if sm.IsStale(10) {
		t.Fatalf("freshly generated summary should not be stale")
	}

	must(t, s.UpsertEntity(ctx, Entity{UserID: "alice", Name: "X", Type: "concept"}))
	_, err = s.AddObservations(ctx, "alice", "X", []string{"user-edited fact"}, true)
	if err != nil {
		t.Fatalf("add observation: %v", err)
	}

	sm, err = s.GetSummary(ctx, "alice")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if !sm.IsStale(10) {
		t.Fatalf("summary must be stale after a user-edit mutation")
	}

	must(t, s.PutSummary(ctx, "alice", "Alice likes sailing and X."))
	sm, err = s.GetSummary(ctx, "alice")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if sm.IsStale(10) {
		t.Fatalf("regenerated summary should clear staleness")
	}
}

func TestPruneTurnsRespectsTTL(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	must(t, s.AppendTurn(ctx, "alice", RoleUser, "hello"))
	n, err := s.PruneTurns(ctx, 48*time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no turns pruned yet, got %d", n)
	}

	turns, err := s.RecentTurns(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("recent turns: %v", err)
	}
	if len(turns) != 1 || turns[0].Content != "hello" {
		t.Fatalf("unexpected turns: %+v", turns)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
