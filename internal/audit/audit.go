// Package audit defines the append-only trail every gated mutation must
// leave behind. Entries are immutable once written: the trail has no
// update or delete surface, and it outlives the entities it describes.
package audit

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Action name prefixes. Successful transitions record
// "<kind>.<action>" (e.g. "event.approve"); security-relevant denials
// record "denied.<code>" so refused attempts are reviewable too.
const DeniedPrefix = "denied."

var ErrInvalidEntry = errors.New("audit: invalid entry")

// Entry records one mutation or denied attempt. Before/After carry the
// entity status snapshots around a transition; both are empty for
// entries that do not change status (creates, denials).
type Entry struct {
	ID         string            `json:"id"`
	ActorID    string            `json:"actor_id"`
	Action     string            `json:"action"`
	ObjectType string            `json:"object_type"`
	ObjectID   string            `json:"object_id"`
	Before     string            `json:"before,omitempty"`
	After      string            `json:"after,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	RecordedAt time.Time         `json:"recorded_at"`
}

// Validate checks the fields every entry must carry.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.ActorID) == "" {
		return errors.Join(ErrInvalidEntry, errors.New("actor_id is required"))
	}
	if strings.TrimSpace(e.Action) == "" {
		return errors.Join(ErrInvalidEntry, errors.New("action is required"))
	}
	if strings.TrimSpace(e.ObjectType) == "" {
		return errors.Join(ErrInvalidEntry, errors.New("object_type is required"))
	}
	return nil
}

// Denied reports whether the entry records a refused attempt rather than
// an applied mutation.
func (e Entry) Denied() bool {
	return strings.HasPrefix(e.Action, DeniedPrefix)
}

// Recorder appends entries. Append must never fail silently: when the
// entry belongs to a transition the store commits both in one unit, and
// a failed append fails the transition.
type Recorder interface {
	Append(ctx context.Context, entry Entry) error
}

// Query filters the read-only surface. Zero fields match everything.
type Query struct {
	ObjectType string
	ObjectID   string
	ActorID    string
	Since      time.Time
	Until      time.Time
	Limit      int
}

// Matches reports whether the entry satisfies the query filters.
func (q Query) Matches(e Entry) bool {
	if q.ObjectType != "" && e.ObjectType != q.ObjectType {
		return false
	}
	if q.ObjectID != "" && e.ObjectID != q.ObjectID {
		return false
	}
	if q.ActorID != "" && e.ActorID != q.ActorID {
		return false
	}
	if !q.Since.IsZero() && e.RecordedAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && e.RecordedAt.After(q.Until) {
		return false
	}
	return true
}

// Reader is the human-review query surface. There is deliberately no
// corresponding mutation interface.
type Reader interface {
	List(ctx context.Context, q Query) ([]Entry, error)
}
