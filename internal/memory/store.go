package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/voicewire/gateway/internal/logging"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed persistence layer for entities, relations,
// conversation turns, and summaries, grounded on loqalabs'
// internal/eventstore.Open pattern (WAL pragma, pure-Go driver, schema
// created on open).
type Store struct {
	db  *sql.DB
	log logging.Logger
}

// Open creates (if absent) and opens the SQLite database at path and
// ensures its schema exists.
func Open(ctx context.Context, path string, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("memory: create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("memory: open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: ping sqlite: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS entities (
  user_id      TEXT NOT NULL,
  name         TEXT NOT NULL,
  type         TEXT NOT NULL,
  observations TEXT NOT NULL,
  created_at   TIMESTAMP NOT NULL,
  updated_at   TIMESTAMP NOT NULL,
  user_edited  INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (user_id, name)
);
CREATE TABLE IF NOT EXISTS relations (
  user_id       TEXT NOT NULL,
  from_entity   TEXT NOT NULL,
  to_entity     TEXT NOT NULL,
  relation_type TEXT NOT NULL,
  created_at    TIMESTAMP NOT NULL,
  PRIMARY KEY (user_id, from_entity, to_entity, relation_type)
);
CREATE TABLE IF NOT EXISTS turns (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id    TEXT NOT NULL,
  role       TEXT NOT NULL,
  content    TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_user_created ON turns(user_id, created_at);
CREATE TABLE IF NOT EXISTS summaries (
  user_id            TEXT PRIMARY KEY,
  prose_text         TEXT NOT NULL,
  generated_at       TIMESTAMP NOT NULL,
  generation_version INTEGER NOT NULL,
  mutations_since    INTEGER NOT NULL DEFAULT 0
);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertEntity creates name if absent or merges into the existing row,
// satisfying P5 (exactly one entity per (user, name) survives any sequence
// of remember calls). Observations are merged and de-duplicated on exact
// string match.
func (s *Store) UpsertEntity(ctx context.Context, e Entity) error {
	existing, err := s.GetEntity(ctx, e.UserID, e.Name)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	if existing == nil {
		obs := dedupeObservations(nil, e.Observations)
		return s.writeEntity(ctx, Entity{
			UserID:       e.UserID,
			Name:         e.Name,
			Type:         e.Type,
			Observations: obs,
			CreatedAt:    now,
			UpdatedAt:    now,
			UserEdited:   e.UserEdited,
		})
	}

	merged := dedupeObservations(existing.Observations, e.Observations)
	entType := existing.Type
	if e.Type != "" {
		entType = e.Type
	}
	return s.writeEntity(ctx, Entity{
		UserID:       e.UserID,
		Name:         e.Name,
		Type:         entType,
		Observations: merged,
		CreatedAt:    existing.CreatedAt,
		UpdatedAt:    now,
		UserEdited:   existing.UserEdited || e.UserEdited,
	})
}

func (s *Store) writeEntity(ctx context.Context, e Entity) error {
	obsJSON, err := json.Marshal(e.Observations)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities(user_id, name, type, observations, created_at, updated_at, user_edited)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, name) DO UPDATE SET
			type=excluded.type,
			observations=excluded.observations,
			updated_at=excluded.updated_at,
			user_edited=excluded.user_edited
	`, e.UserID, e.Name, e.Type, string(obsJSON), e.CreatedAt, e.UpdatedAt, boolToInt(e.UserEdited))
	if err != nil {
		return err
	}
	if e.UserEdited {
		s.markForcedStale(ctx, e.UserID)
	} else {
		s.bumpMutations(ctx, e.UserID)
	}
	return nil
}

// GetEntity looks up a single entity by exact name. Returns (nil, nil) when
// absent.
func (s *Store) GetEntity(ctx context.Context, userID, name string) (*Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, name, type, observations, created_at, updated_at, user_edited
		FROM entities WHERE user_id = ? AND name = ?
	`, userID, name)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// AddObservations appends facts to an existing entity, de-duplicating on
// exact match. Returns the count of genuinely new observations added. If
// the entity does not exist this is a silent no-op per spec.md §4.7.
func (s *Store) AddObservations(ctx context.Context, userID, name string, facts []string, userEdit bool) (int, error) {
	existing, err := s.GetEntity(ctx, userID, name)
	if err != nil {
		return 0, err
	}
	if existing == nil {
		return 0, nil
	}
	merged := dedupeObservations(existing.Observations, facts)
	added := len(merged) - len(existing.Observations)

	existing.Observations = merged
	existing.UserEdited = existing.UserEdited || userEdit
	existing.UpdatedAt = time.Now().UTC()
	if err := s.writeEntity(ctx, *existing); err != nil {
		return 0, err
	}
	return added, nil
}

// SearchEntities returns entities whose name or observations contain query
// as a case-insensitive substring.
func (s *Store) SearchEntities(ctx context.Context, userID, query string, limit int) ([]Entity, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, name, type, observations, created_at, updated_at, user_edited
		FROM entities WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	q := strings.ToLower(query)
	var out []Entity
	for rows.Next() {
		e, err := scanEntityRows(rows)
		if err != nil {
			return nil, err
		}
		if entityMatches(e, q) {
			out = append(out, *e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecentEntities returns the N most recently updated entities for a user,
// used to build the bounded context block in spec.md §4.8.
func (s *Store) RecentEntities(ctx context.Context, userID string, limit int) ([]Entity, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, name, type, observations, created_at, updated_at, user_edited
		FROM entities WHERE user_id = ? ORDER BY updated_at DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		e, err := scanEntityRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// CreateRelation inserts a (from, to, type) triple. It is a no-op — not an
// error — if either entity is missing or the triple already exists.
func (s *Store) CreateRelation(ctx context.Context, userID, from, to, relType string) error {
	fromEnt, err := s.GetEntity(ctx, userID, from)
	if err != nil {
		return err
	}
	toEnt, err := s.GetEntity(ctx, userID, to)
	if err != nil {
		return err
	}
	if fromEnt == nil || toEnt == nil {
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO relations(user_id, from_entity, to_entity, relation_type, created_at)
		VALUES(?, ?, ?, ?, ?)
	`, userID, from, to, relType, time.Now().UTC())
	if err != nil {
		return err
	}
	s.bumpMutations(ctx, userID)
	return nil
}

// AppendTurn records a conversation turn and counts it toward summary
// staleness.
func (s *Store) AppendTurn(ctx context.Context, userID string, role Role, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns(user_id, role, content, created_at) VALUES(?, ?, ?, ?)
	`, userID, string(role), content, time.Now().UTC())
	if err != nil {
		return err
	}
	s.bumpMutations(ctx, userID)
	return nil
}

// RecentTurns returns the last limit turns for a user, most recent last.
func (s *Store) RecentTurns(ctx context.Context, userID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, role, content, created_at FROM turns
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		var role string
		if err := rows.Scan(&t.ID, &t.UserID, &role, &t.Content, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Role = Role(role)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// PruneTurns deletes turns older than ttl, the cleanup sweep named in
// spec.md §3.
func (s *Store) PruneTurns(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	res, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetSummary returns the stored summary for a user, or nil if none exists
// yet.
func (s *Store) GetSummary(ctx context.Context, userID string) (*Summary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, prose_text, generated_at, generation_version, mutations_since
		FROM summaries WHERE user_id = ?
	`, userID)
	var sm Summary
	err := row.Scan(&sm.UserID, &sm.ProseText, &sm.GeneratedAt, &sm.GenerationVersion, &sm.MutationsSince)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sm, nil
}

// PutSummary stores a freshly generated summary and clears the staleness
// counter, advancing the generation version.
func (s *Store) PutSummary(ctx context.Context, userID, prose string) error {
	prev, err := s.GetSummary(ctx, userID)
	if err != nil {
		return err
	}
	version := 1
	if prev != nil {
		version = prev.GenerationVersion + 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO summaries(user_id, prose_text, generated_at, generation_version, mutations_since)
		VALUES(?, ?, ?, ?, 0)
		ON CONFLICT(user_id) DO UPDATE SET
			prose_text=excluded.prose_text,
			generated_at=excluded.generated_at,
			generation_version=excluded.generation_version,
			mutations_since=0
	`, userID, prose, time.Now().UTC(), version)
	return err
}

func (s *Store) bumpMutations(ctx context.Context, userID string) {
	_, err := s.db.ExecContext(ctx, `
		UPDATE summaries SET mutations_since = mutations_since + 1 WHERE user_id = ? AND mutations_since < ?
	`, userID, forceStaleSentinel)
	if err != nil {
		s.log.Warn("memory: bump mutations failed", "user_id", userID, "error", err)
	}
}

func (s *Store) markForcedStale(ctx context.Context, userID string) {
	// No summary row yet means the next get_memory_summary call already
	// generates from scratch; nothing to force.
	_, err := s.db.ExecContext(ctx, `
		UPDATE summaries SET mutations_since = ? WHERE user_id = ?
	`, forceStaleSentinel, userID)
	if err != nil {
		s.log.Warn("memory: mark forced stale failed", "user_id", userID, "error", err)
	}
}

func scanEntity(row *sql.Row) (*Entity, error) {
	var e Entity
	var obsJSON string
	var userEdited int
	if err := row.Scan(&e.UserID, &e.Name, &e.Type, &obsJSON, &e.CreatedAt, &e.UpdatedAt, &userEdited); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(obsJSON), &e.Observations); err != nil {
		return nil, err
	}
	e.UserEdited = userEdited != 0
	return &e, nil
}

func scanEntityRows(rows *sql.Rows) (*Entity, error) {
	var e Entity
	var obsJSON string
	var userEdited int
	if err := rows.Scan(&e.UserID, &e.Name, &e.Type, &obsJSON, &e.CreatedAt, &e.UpdatedAt, &userEdited); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(obsJSON), &e.Observations); err != nil {
		return nil, err
	}
	e.UserEdited = userEdited != 0
	return &e, nil
}

func entityMatches(e *Entity, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(e.Name), lowerQuery) {
		return true
	}
	for _, o := range e.Observations {
		if strings.Contains(strings.ToLower(o), lowerQuery) {
			return true
		}
	}
	return false
}

func dedupeObservations(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, o := range existing {
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	for _, o := range incoming {
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
