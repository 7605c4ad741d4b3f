// Package delegation restricts who may assign roles where. Holding the
// roles:assign capability is necessary but not sufficient: the assignment
// must also land inside the actor's own committee scope. The two gates
// fail with distinct codes so callers and audits can tell "no authority at
// all" from "authority but wrong scope".
package delegation

import (
	"context"
	"fmt"
	"time"

	"github.com/sbnctech/murmurant-sub011/internal/audit"
	"github.com/sbnctech/murmurant-sub011/internal/auth"
	"github.com/sbnctech/murmurant-sub011/internal/ids"
	"github.com/sbnctech/murmurant-sub011/internal/obs"
)

// Denial codes specific to delegation scoping.
const (
	CodeNoAssignAuthority = "no_assign_authority"
	CodeOutOfScope        = "out_of_scope"
)

// Assignment is one active role assignment. Delegation scope derives from
// these; nothing is stored per actor.
type Assignment struct {
	MemberID    string    `json:"member_id"`
	CommitteeID string    `json:"committee_id"`
	Role        auth.Role `json:"role"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"` // zero = open-ended
}

// ActiveAt reports whether the assignment is in force at t.
func (a Assignment) ActiveAt(t time.Time) bool {
	if a.StartsAt.After(t) {
		return false
	}
	if !a.EndsAt.IsZero() && a.EndsAt.Before(t) {
		return false
	}
	return true
}

// AssignmentStore looks up a member's current role assignments. The
// resolver only ever reads.
type AssignmentStore interface {
	ActiveAssignments(ctx context.Context, memberID string) ([]Assignment, error)
}

// orgWideRoles may assign into any committee. All other roles with assign
// authority are limited to committees where they themselves hold an
// active assignment.
var orgWideRoles = map[auth.Role]struct{}{
	auth.RoleAdmin:     {},
	auth.RolePresident: {},
}

// Decision explains a scope check. AssignerScope and TargetScope let a
// Forbidden response say why without leaking unrelated data.
type Decision struct {
	Allowed       bool     `json:"allowed"`
	Code          string   `json:"code,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	AssignerScope []string `json:"assigner_scope,omitempty"`
	TargetScope   []string `json:"target_scope,omitempty"`
}

// Err converts a denied decision into the denial the caller propagates.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &auth.Denial{Code: d.Code, Reason: d.Reason}
}

// Resolver performs the two-gate delegation check.
type Resolver struct {
	store    AssignmentStore
	recorder audit.Recorder
	now      func() time.Time
}

// NewResolver constructs a Resolver. recorder receives denial events; both
// refusal modes are security-relevant and must be reviewable later.
func NewResolver(store AssignmentStore, recorder audit.Recorder) *Resolver {
	return &Resolver{store: store, recorder: recorder, now: time.Now}
}

// HasAssignAuthority is gate one: can this role ever assign roles,
// independent of any object. Pure predicate over the capability registry.
func HasAssignAuthority(role auth.Role) bool {
	return auth.HasCapability(role, auth.CapRolesAssign)
}

// CanAssign answers whether p may assign a role within targetCommittee.
// Gate one failing yields CodeNoAssignAuthority; gate two failing yields
// CodeOutOfScope. Store errors propagate (fail closed) — the caller never
// sees them as an allow.
func (r *Resolver) CanAssign(ctx context.Context, p auth.Principal, targetCommittee string) (Decision, error) {
	if p.IsZero() {
		return Decision{}, &auth.Denial{Code: auth.CodeUnauthenticated, Reason: "authentication required"}
	}

	if !HasAssignAuthority(p.Role) {
		d := Decision{
			Code:        CodeNoAssignAuthority,
			Reason:      fmt.Sprintf("role %s may not assign roles", p.Role),
			TargetScope: []string{targetCommittee},
		}
		r.recordDenial(ctx, p, targetCommittee, d)
		return d, nil
	}

	if _, orgWide := orgWideRoles[p.Role]; orgWide {
		return Decision{Allowed: true, TargetScope: []string{targetCommittee}}, nil
	}

	assignments, err := r.store.ActiveAssignments(ctx, p.MemberID)
	if err != nil {
		return Decision{}, fmt.Errorf("resolve delegation scope: %w", err)
	}
	now := r.now()
	scope := make([]string, 0, len(assignments))
	inScope := false
	for _, a := range assignments {
		if !a.ActiveAt(now) {
			continue
		}
		scope = append(scope, a.CommitteeID)
		if a.CommitteeID == targetCommittee {
			inScope = true
		}
	}
	if !inScope {
		d := Decision{
			Code:          CodeOutOfScope,
			Reason:        fmt.Sprintf("committee %s is outside the actor's delegation scope", targetCommittee),
			AssignerScope: scope,
			TargetScope:   []string{targetCommittee},
		}
		r.recordDenial(ctx, p, targetCommittee, d)
		return d, nil
	}
	return Decision{Allowed: true, AssignerScope: scope, TargetScope: []string{targetCommittee}}, nil
}

// recordDenial writes the refused attempt to the audit trail. A failed
// append here must not mask the denial itself, so it is logged instead.
func (r *Resolver) recordDenial(ctx context.Context, p auth.Principal, targetCommittee string, d Decision) {
	obs.CountDenial(d.Code)
	if r.recorder == nil {
		return
	}
	entry := audit.Entry{
		ID:         ids.New(),
		ActorID:    p.ActorID(),
		Action:     audit.DeniedPrefix + d.Code,
		ObjectType: "committee",
		ObjectID:   targetCommittee,
		Metadata: map[string]string{
			"role":   string(p.Role),
			"reason": d.Reason,
		},
		RecordedAt: r.now().UTC(),
	}
	if err := r.recorder.Append(ctx, entry); err != nil {
		obs.LogError("delegation: audit denial", err)
	}
}
