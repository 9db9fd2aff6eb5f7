// Package memory implements the Conversation Memory Engine: a per-user
// knowledge graph of entities and relations, a TTL'd conversation ring, and
// a staleness-tracked prose summary, grounded on glyphoxa's pkg/memory
// store shape and persisted with loqalabs' modernc.org/sqlite pattern.
package memory

import "time"

// EntityType is one of the closed set of entity kinds the Memory Engine
// recognizes.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityFleet        EntityType = "fleet"
	EntityShip         EntityType = "ship"
	EntityLocation     EntityType = "location"
	EntityConcept      EntityType = "concept"
	EntityEvent        EntityType = "event"
	EntityPreference   EntityType = "preference"
)

// Entity is a named node in a user's knowledge graph. Name is unique within
// a user scope (case-sensitive); Observations are de-duplicated on exact
// string match.
type Entity struct {
	UserID       string
	Name         string
	Type         string
	Observations []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	UserEdited   bool
}

// Relation is a directed, typed edge between two entities belonging to the
// same user. (From, To, Type) triples are unique.
type Relation struct {
	UserID    string
	From      string
	To        string
	Type      string
	CreatedAt time.Time
}

// Role distinguishes the two sides of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one recorded conversation exchange. Turns older than the
// configured TTL are eligible for deletion by the cleanup sweep.
type Turn struct {
	ID        int64
	UserID    string
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Summary is a user's prose context summary plus the bookkeeping needed to
// decide whether it has gone stale.
type Summary struct {
	UserID            string
	ProseText         string
	GeneratedAt       time.Time
	GenerationVersion int
	MutationsSince    int
}

// forceStaleSentinel is written into mutations_since whenever a user_edited
// mutation occurs, guaranteeing IsStale reports true regardless of the
// numeric threshold until the next regeneration. The counter column doubles
// as the flag, so the summaries table has no dedicated user-edit column.
const forceStaleSentinel = 1 << 30

// IsStale reports whether s should be regenerated, given a mutation-count
// threshold (spec.md §3's "count ... exceeds a threshold" rule).
func (s Summary) IsStale(threshold int) bool {
	if s.GeneratedAt.IsZero() {
		return true
	}
	return s.MutationsSince >= forceStaleSentinel || s.MutationsSince > threshold
}
