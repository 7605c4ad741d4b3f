// Package memory implements the workflow, audit and delegation storage
// contracts with in-process concurrency safety. It backs tests and the
// default development server; production deployments use store/pg.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sbnctech/murmurant-sub011/internal/audit"
	"github.com/sbnctech/murmurant-sub011/internal/delegation"
	"github.com/sbnctech/murmurant-sub011/internal/workflow"
)

type entityKey struct {
	kind workflow.Kind
	id   string
}

// Store holds all state behind one mutex. Entities are copied in and out;
// callers never share memory with persisted state.
type Store struct {
	mu          sync.RWMutex
	entities    map[entityKey]workflow.Entity
	entries     []audit.Entry
	assignments map[string][]delegation.Assignment
}

var (
	_ workflow.Store             = (*Store)(nil)
	_ audit.Recorder             = (*Store)(nil)
	_ audit.Reader               = (*Store)(nil)
	_ delegation.AssignmentStore = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		entities:    make(map[entityKey]workflow.Entity),
		assignments: make(map[string][]delegation.Assignment),
	}
}

func (s *Store) Get(ctx context.Context, kind workflow.Kind, id string) (workflow.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[entityKey{kind: kind, id: id}]
	if !ok {
		return workflow.Entity{}, workflow.ErrNotFound
	}
	return e.Clone(), nil
}

func (s *Store) Create(ctx context.Context, e workflow.Entity, entry audit.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entityKey{kind: e.Kind, id: e.ID}
	if _, exists := s.entities[key]; exists {
		return fmt.Errorf("memory: entity %s/%s already exists", e.Kind, e.ID)
	}
	s.entities[key] = e.Clone()
	s.entries = append(s.entries, entry)
	return nil
}

// ApplyTransition is the conditional commit: the entity is stored and the
// audit entry appended only when the persisted status still equals
// expected. Both happen under one lock hold, so a reader never observes
// the status change without its audit entry.
func (s *Store) ApplyTransition(ctx context.Context, e workflow.Entity, expected workflow.Status, entry audit.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entityKey{kind: e.Kind, id: e.ID}
	current, ok := s.entities[key]
	if !ok {
		return workflow.ErrNotFound
	}
	if current.Status != expected {
		return workflow.ErrConflict
	}
	s.entities[key] = e.Clone()
	s.entries = append(s.entries, entry)
	return nil
}

// Append records a standalone audit entry (denial events, creations made
// outside a transition).
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// List returns matching entries ordered by recording time. The trail is
// append-only; there is no way to change or remove what List returns.
func (s *Store) List(ctx context.Context, q audit.Query) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Entry
	for _, e := range s.entries {
		if q.Matches(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// PutAssignment registers a committee role assignment for scope lookups.
func (s *Store) PutAssignment(a delegation.Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[a.MemberID] = append(s.assignments[a.MemberID], a)
}

func (s *Store) ActiveAssignments(ctx context.Context, memberID string) ([]delegation.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	var out []delegation.Assignment
	for _, a := range s.assignments[memberID] {
		if a.ActiveAt(now) {
			out = append(out, a)
		}
	}
	return out, nil
}
