package workflow

import (
	"time"
)

// Kind identifies a workflow entity type. Each kind declares its own
// transition table; the engine is generic over kinds.
type Kind string

const (
	KindEvent          Kind = "event"
	KindMinutes        Kind = "governance_minutes"
	KindTransitionPlan Kind = "transition_plan"
	KindSupportCase    Kind = "support_case"
)

// Status is a workflow state. Values are scoped per kind; the engine never
// compares statuses across kinds.
type Status string

// ActionName names a requested transition.
type ActionName string

// PlanAssignment is one proposed role assignment inside a transition plan.
type PlanAssignment struct {
	MemberID    string    `json:"member_id"`
	CommitteeID string    `json:"committee_id"`
	Role        string    `json:"role"`
	AddedBy     string    `json:"added_by"`
	AddedAt     time.Time `json:"added_at"`
}

// CaseNote is a note on a support case. AuthorID is "system" for notes the
// engine appends as transition side effects.
type CaseNote struct {
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// SystemAuthor marks engine-appended case notes.
const SystemAuthor = "system"

// Entity is the persisted shape shared by all workflow kinds. Kind-specific
// fields are simply unused for the other kinds. Status only ever changes
// through a declared transition; the denormalized timestamps are written by
// exactly the transition effect that declares them and by no other path.
type Entity struct {
	Kind        Kind   `json:"kind"`
	ID          string `json:"id"`
	Status      Status `json:"status"`
	Title       string `json:"title"`
	CommitteeID string `json:"committee_id,omitempty"`

	// Event
	ChairID  string     `json:"chair_id,omitempty"`
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`

	// GovernanceMinutes
	Content      string `json:"content,omitempty"`
	RevisionNote string `json:"revision_note,omitempty"`
	Version      int    `json:"version,omitempty"`
	RevisionOf   string `json:"revision_of,omitempty"`

	// TransitionPlan
	Assignments []PlanAssignment `json:"assignments,omitempty"`

	// SupportCase
	Notes []CaseNote `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	AppliedAt   *time.Time `json:"applied_at,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CanceledAt  *time.Time `json:"canceled_at,omitempty"`

	SubmittedBy string `json:"submitted_by,omitempty"`
	ApprovedBy  string `json:"approved_by,omitempty"`
	ClosedBy    string `json:"closed_by,omitempty"`
}

// Clone returns a deep copy so stores and callers never share slices or
// timestamp pointers with persisted state.
func (e Entity) Clone() Entity {
	out := e
	out.StartsAt = copyTime(e.StartsAt)
	out.EndsAt = copyTime(e.EndsAt)
	out.SubmittedAt = copyTime(e.SubmittedAt)
	out.ApprovedAt = copyTime(e.ApprovedAt)
	out.PublishedAt = copyTime(e.PublishedAt)
	out.ArchivedAt = copyTime(e.ArchivedAt)
	out.AppliedAt = copyTime(e.AppliedAt)
	out.ResolvedAt = copyTime(e.ResolvedAt)
	out.ClosedAt = copyTime(e.ClosedAt)
	out.CanceledAt = copyTime(e.CanceledAt)
	if e.Assignments != nil {
		out.Assignments = make([]PlanAssignment, len(e.Assignments))
		copy(out.Assignments, e.Assignments)
	}
	if e.Notes != nil {
		out.Notes = make([]CaseNote, len(e.Notes))
		copy(out.Notes, e.Notes)
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
