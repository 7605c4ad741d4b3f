package workflow

import (
	"time"

	"github.com/sbnctech/murmurant-sub011/internal/auth"
	"github.com/sbnctech/murmurant-sub011/internal/ids"
)

// TransitionPlan statuses. The terminal spelling differs from Event's
// CANCELED; both are preserved as stored.
const (
	PlanDraft           Status = "DRAFT"
	PlanPendingApproval Status = "PENDING_APPROVAL"
	PlanApproved        Status = "APPROVED"
	PlanApplied         Status = "APPLIED"
	PlanCancelled       Status = "CANCELLED"
)

var planTable = &Table{
	Kind: KindTransitionPlan,
	Transitions: []Transition{
		{
			From:       []Status{PlanDraft},
			Action:     "submit",
			To:         PlanPendingApproval,
			Capability: auth.CapPlanEdit,
			Guards:     []Guard{planHasAssignments},
			Effects:    []Effect{stampSubmitted},
		},
		{
			From:       []Status{PlanPendingApproval},
			Action:     "approve",
			To:         PlanApproved,
			Capability: auth.CapPlanApprove,
			Effects:    []Effect{stampApproved},
		},
		{
			From:       []Status{PlanApproved},
			Action:     "apply",
			To:         PlanApplied,
			Capability: auth.CapPlanApply,
			Effects:    []Effect{stampApplied},
		},
		{
			From:       []Status{PlanDraft, PlanPendingApproval, PlanApproved},
			Action:     "cancel",
			To:         PlanCancelled,
			Capability: auth.CapPlanEdit,
			Effects:    []Effect{stampCanceled},
		},
	},
}

func planHasAssignments(e *Entity, _ Request) error {
	if len(e.Assignments) == 0 {
		return &GuardError{Reason: "plan needs at least one assignment before submission"}
	}
	return nil
}

func stampApplied(e *Entity, _ auth.Principal, now time.Time, _ Request) {
	if e.AppliedAt == nil {
		e.AppliedAt = &now
	}
}

// NewTransitionPlan constructs a draft officer-succession plan.
func NewTransitionPlan(title string) Entity {
	return Entity{
		Kind:   KindTransitionPlan,
		ID:     ids.New(),
		Status: PlanDraft,
		Title:  title,
	}
}
