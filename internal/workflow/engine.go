// Package workflow is the state-machine core. Each entity kind declares a
// transition table; the engine validates a requested transition against
// the persisted status and either applies it atomically — together with
// its audit entry — or rejects it with a typed failure.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sbnctech/murmurant-sub011/internal/audit"
	"github.com/sbnctech/murmurant-sub011/internal/auth"
	"github.com/sbnctech/murmurant-sub011/internal/delegation"
	"github.com/sbnctech/murmurant-sub011/internal/ids"
	"github.com/sbnctech/murmurant-sub011/internal/obs"
)

// Guard is a data-integrity precondition checked after authorization and
// before the commit. Guards never mutate the entity.
type Guard func(e *Entity, req Request) error

// Effect is a declared side-effect field write applied with the status
// change: timestamps, actor references, system notes. Effects are the only
// code allowed to set the denormalized transition timestamps.
type Effect func(e *Entity, p auth.Principal, now time.Time, req Request)

// Transition is one row of a kind's table.
type Transition struct {
	From       []Status
	Action     ActionName
	To         Status
	Capability auth.Capability
	Guards     []Guard
	Effects    []Effect
}

func (t Transition) allowsFrom(s Status) bool {
	for _, from := range t.From {
		if from == s {
			return true
		}
	}
	return false
}

// Table declares a kind's full transition set. Every (from, action) pair
// either resolves to exactly one row or is absent and rejected; the engine
// never silently no-ops.
type Table struct {
	Kind        Kind
	Transitions []Transition
}

func (t *Table) find(action ActionName) (Transition, bool) {
	for _, tr := range t.Transitions {
		if tr.Action == action {
			return tr, true
		}
	}
	return Transition{}, false
}

var tables = map[Kind]*Table{
	KindEvent:          eventTable,
	KindMinutes:        minutesTable,
	KindTransitionPlan: planTable,
	KindSupportCase:    supportCaseTable,
}

// TableFor exposes a kind's table for closure tests.
func TableFor(kind Kind) (*Table, bool) {
	t, ok := tables[kind]
	return t, ok
}

// createCapabilities gate entity creation per kind.
var createCapabilities = map[Kind]auth.Capability{
	KindEvent:          auth.CapEventsEdit,
	KindMinutes:        auth.CapMinutesEdit,
	KindTransitionPlan: auth.CapPlanEdit,
	KindSupportCase:    auth.CapCasesOpen,
}

// Store is the persistence contract. ApplyTransition is the conditional
// commit primitive: it must persist the entity and append the audit entry
// in one atomic unit, if and only if the stored status still equals
// expected; a CAS miss returns ErrConflict. No other code path may write
// entity status or append transition audit entries.
type Store interface {
	Get(ctx context.Context, kind Kind, id string) (Entity, error)
	Create(ctx context.Context, e Entity, entry audit.Entry) error
	ApplyTransition(ctx context.Context, e Entity, expected Status, entry audit.Entry) error
}

// Request identifies one transition attempt. Note feeds guards and effects
// that need caller-supplied text (revision notes, case notes).
type Request struct {
	Kind   Kind
	ID     string
	Action ActionName
	Note   string
}

// Engine drives every workflow mutation. It holds no locks and keeps no
// state across calls; concurrency safety comes from the store's
// conditional commit.
type Engine struct {
	store    Store
	denials  audit.Recorder
	resolver *delegation.Resolver
	now      func() time.Time
}

// NewEngine constructs an Engine. denials receives audit entries for
// security-relevant refusals; resolver gates plan assignments and may be
// nil in deployments without delegation.
func NewEngine(store Store, denials audit.Recorder, resolver *delegation.Resolver) *Engine {
	return &Engine{store: store, denials: denials, resolver: resolver, now: time.Now}
}

// WithClock overrides the engine clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Get loads an entity. Reads require an authenticated actor but no
// specific capability; field-level visibility is a handler concern.
func (e *Engine) Get(ctx context.Context, p auth.Principal, kind Kind, id string) (Entity, error) {
	if p.IsZero() {
		return Entity{}, &auth.Denial{Code: auth.CodeUnauthenticated, Reason: "authentication required"}
	}
	return e.store.Get(ctx, kind, id)
}

// Create persists a freshly constructed entity in its initial status and
// records the creation in the audit trail.
func (e *Engine) Create(ctx context.Context, p auth.Principal, ent Entity) (Entity, error) {
	required, ok := createCapabilities[ent.Kind]
	if !ok {
		return Entity{}, fmt.Errorf("workflow: unknown kind %q", ent.Kind)
	}
	if err := auth.RequireCapability(p, required); err != nil {
		e.recordDenial(ctx, p, ent.Kind, ent.ID, err)
		return Entity{}, err
	}
	now := e.now().UTC()
	if ent.ID == "" {
		ent.ID = ids.New()
	}
	ent.CreatedAt = now
	ent.UpdatedAt = now
	entry := audit.Entry{
		ID:         ids.New(),
		ActorID:    p.ActorID(),
		Action:     string(ent.Kind) + ".create",
		ObjectType: string(ent.Kind),
		ObjectID:   ent.ID,
		After:      string(ent.Status),
		RecordedAt: now,
	}
	if err := e.store.Create(ctx, ent, entry); err != nil {
		return Entity{}, err
	}
	return ent, nil
}

// Attempt validates and applies one transition. On success exactly one
// audit entry exists for it, committed with the status change. Failure
// modes, in evaluation order: ErrNotFound, UnknownActionError,
// InvalidTransitionError, an auth denial propagated verbatim, GuardError,
// ErrConflict from the conditional commit.
func (e *Engine) Attempt(ctx context.Context, p auth.Principal, req Request) (Entity, error) {
	table, ok := tables[req.Kind]
	if !ok {
		return Entity{}, fmt.Errorf("workflow: unknown kind %q", req.Kind)
	}

	ent, err := e.store.Get(ctx, req.Kind, req.ID)
	if err != nil {
		return Entity{}, err
	}

	tr, ok := table.find(req.Action)
	if !ok {
		err := &UnknownActionError{Kind: req.Kind, Action: req.Action}
		obs.CountTransitionRejected(string(req.Kind), CodeUnknownAction)
		return Entity{}, err
	}
	if !tr.allowsFrom(ent.Status) {
		obs.CountTransitionRejected(string(req.Kind), CodeInvalidTransition)
		return Entity{}, &InvalidTransitionError{Kind: req.Kind, Action: req.Action, From: ent.Status}
	}

	if err := auth.RequireCapability(p, tr.Capability); err != nil {
		e.recordDenial(ctx, p, req.Kind, req.ID, err)
		obs.CountTransitionRejected(string(req.Kind), Code(err))
		return Entity{}, err
	}

	for _, guard := range tr.Guards {
		if err := guard(&ent, req); err != nil {
			obs.CountTransitionRejected(string(req.Kind), CodeGuardFailed)
			return Entity{}, err
		}
	}

	now := e.now().UTC()
	expected := ent.Status
	updated := ent.Clone()
	updated.Status = tr.To
	for _, effect := range tr.Effects {
		effect(&updated, p, now, req)
	}
	updated.UpdatedAt = now

	entry := audit.Entry{
		ID:         ids.New(),
		ActorID:    p.ActorID(),
		Action:     string(req.Kind) + "." + string(req.Action),
		ObjectType: string(req.Kind),
		ObjectID:   req.ID,
		Before:     string(expected),
		After:      string(tr.To),
		RecordedAt: now,
	}
	if req.Note != "" {
		entry.Metadata = map[string]string{"note": req.Note}
	}

	if err := e.store.ApplyTransition(ctx, updated, expected, entry); err != nil {
		if errors.Is(err, ErrConflict) {
			obs.CountTransitionRejected(string(req.Kind), CodeConflict)
		}
		return Entity{}, err
	}
	obs.CountTransitionApplied(string(req.Kind), string(req.Action))
	return updated, nil
}

// AddPlanAssignment proposes a role assignment on a transition plan.
// Assignments may only be added while the plan is in DRAFT, and the target
// committee must pass the delegation two-gate check. The plan's status
// does not change, but the write still goes through the conditional
// commit so a racing submit cannot interleave.
func (e *Engine) AddPlanAssignment(ctx context.Context, p auth.Principal, planID string, a PlanAssignment) (Entity, error) {
	if err := auth.RequireCapability(p, auth.CapPlanEdit); err != nil {
		e.recordDenial(ctx, p, KindTransitionPlan, planID, err)
		return Entity{}, err
	}

	ent, err := e.store.Get(ctx, KindTransitionPlan, planID)
	if err != nil {
		return Entity{}, err
	}
	if ent.Status != PlanDraft {
		return Entity{}, &InvalidTransitionError{Kind: KindTransitionPlan, Action: "add_assignment", From: ent.Status}
	}
	if a.MemberID == "" || a.CommitteeID == "" || a.Role == "" {
		return Entity{}, &GuardError{Reason: "assignment requires member, committee and role"}
	}

	if e.resolver != nil {
		decision, err := e.resolver.CanAssign(ctx, p, a.CommitteeID)
		if err != nil {
			return Entity{}, err
		}
		if err := decision.Err(); err != nil {
			return Entity{}, err
		}
	}

	now := e.now().UTC()
	a.AddedBy = p.ActorID()
	a.AddedAt = now
	updated := ent.Clone()
	updated.Assignments = append(updated.Assignments, a)
	updated.UpdatedAt = now

	entry := audit.Entry{
		ID:         ids.New(),
		ActorID:    p.ActorID(),
		Action:     string(KindTransitionPlan) + ".assignment.add",
		ObjectType: string(KindTransitionPlan),
		ObjectID:   planID,
		Before:     string(ent.Status),
		After:      string(ent.Status),
		Metadata: map[string]string{
			"member":    a.MemberID,
			"committee": a.CommitteeID,
			"role":      string(a.Role),
		},
		RecordedAt: now,
	}
	if err := e.store.ApplyTransition(ctx, updated, ent.Status, entry); err != nil {
		return Entity{}, err
	}
	return updated, nil
}

// recordDenial audits a capability denial. The denial itself is returned
// to the caller regardless; a failing append is logged, not masked.
func (e *Engine) recordDenial(ctx context.Context, p auth.Principal, kind Kind, id string, denyErr error) {
	code := Code(denyErr)
	obs.CountDenial(code)
	if e.denials == nil {
		return
	}
	entry := audit.Entry{
		ID:         ids.New(),
		ActorID:    actorOrAnonymous(p),
		Action:     audit.DeniedPrefix + code,
		ObjectType: string(kind),
		ObjectID:   id,
		Metadata:   map[string]string{"role": string(p.Role)},
		RecordedAt: e.now().UTC(),
	}
	if err := e.denials.Append(ctx, entry); err != nil {
		obs.LogError("workflow: audit denial", err)
	}
}

func actorOrAnonymous(p auth.Principal) string {
	if p.IsZero() {
		return "anonymous"
	}
	return p.ActorID()
}
