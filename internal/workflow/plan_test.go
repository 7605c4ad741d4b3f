package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sbnctech/murmurant-sub011/internal/audit"
	"github.com/sbnctech/murmurant-sub011/internal/auth"
	"github.com/sbnctech/murmurant-sub011/internal/delegation"
	"github.com/sbnctech/murmurant-sub011/internal/store/memory"
	"github.com/sbnctech/murmurant-sub011/internal/workflow"
)

func createPlan(t *testing.T, eng *workflow.Engine, p auth.Principal) workflow.Entity {
	t.Helper()
	ent, err := eng.Create(context.Background(), p, workflow.NewTransitionPlan("2027 Officer Transition"))
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	return ent
}

func addAssignment(t *testing.T, eng *workflow.Engine, p auth.Principal, planID, committee string) workflow.Entity {
	t.Helper()
	ent, err := eng.AddPlanAssignment(context.Background(), p, planID, workflow.PlanAssignment{
		MemberID:    "mem-9",
		CommitteeID: committee,
		Role:        string(auth.RoleEventChair),
	})
	if err != nil {
		t.Fatalf("add assignment: %v", err)
	}
	return ent
}

func TestPlanLifecycle(t *testing.T) {
	eng, _ := newEngine(t)
	plan := createPlan(t, eng, president)
	plan = addAssignment(t, eng, president, plan.ID, "activities")

	plan = attempt(t, eng, president, workflow.KindTransitionPlan, plan.ID, "submit")
	if plan.Status != workflow.PlanPendingApproval {
		t.Fatalf("unexpected status: %s", plan.Status)
	}
	plan = attempt(t, eng, president, workflow.KindTransitionPlan, plan.ID, "approve")
	plan = attempt(t, eng, president, workflow.KindTransitionPlan, plan.ID, "apply")
	if plan.Status != workflow.PlanApplied || plan.AppliedAt == nil {
		t.Fatalf("apply effects not applied: %+v", plan)
	}
}

func TestPlanSubmitRequiresAssignments(t *testing.T) {
	eng, _ := newEngine(t)
	plan := createPlan(t, eng, president)

	_, err := eng.Attempt(context.Background(), president, workflow.Request{Kind: workflow.KindTransitionPlan, ID: plan.ID, Action: "submit"})
	var guard *workflow.GuardError
	if !errors.As(err, &guard) {
		t.Fatalf("expected GuardError, got %v", err)
	}
}

func TestPlanCancelFromNonTerminalStates(t *testing.T) {
	eng, _ := newEngine(t)
	plan := createPlan(t, eng, president)
	addAssignment(t, eng, president, plan.ID, "activities")
	attempt(t, eng, president, workflow.KindTransitionPlan, plan.ID, "submit")

	canceled := attempt(t, eng, president, workflow.KindTransitionPlan, plan.ID, "cancel")
	if canceled.Status != workflow.PlanCancelled || canceled.CanceledAt == nil {
		t.Fatalf("cancel effects not applied: %+v", canceled)
	}

	// Applied plans are terminal: cancel is no longer legal.
	plan2 := createPlan(t, eng, president)
	addAssignment(t, eng, president, plan2.ID, "activities")
	attempt(t, eng, president, workflow.KindTransitionPlan, plan2.ID, "submit")
	attempt(t, eng, president, workflow.KindTransitionPlan, plan2.ID, "approve")
	attempt(t, eng, president, workflow.KindTransitionPlan, plan2.ID, "apply")
	_, err := eng.Attempt(context.Background(), president, workflow.Request{Kind: workflow.KindTransitionPlan, ID: plan2.ID, Action: "cancel"})
	var invalid *workflow.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestAssignmentsOnlyInDraft(t *testing.T) {
	eng, _ := newEngine(t)
	plan := createPlan(t, eng, president)
	addAssignment(t, eng, president, plan.ID, "activities")
	attempt(t, eng, president, workflow.KindTransitionPlan, plan.ID, "submit")

	_, err := eng.AddPlanAssignment(context.Background(), president, plan.ID, workflow.PlanAssignment{
		MemberID: "mem-2", CommitteeID: "activities", Role: string(auth.RoleEventChair),
	})
	var invalid *workflow.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

// An actor whose assign authority is scoped to committee A must be denied
// with the out-of-scope code when assigning into committee B, and the
// denial must land in the audit trail.
func TestCrossCommitteeAssignmentDenied(t *testing.T) {
	store := memory.New()
	resolver := delegation.NewResolver(store, store)
	eng := workflow.NewEngine(store, store, resolver)
	ctx := context.Background()

	store.PutAssignment(delegation.Assignment{
		MemberID:    vp.MemberID,
		CommitteeID: "committee-a",
		Role:        auth.RoleVPActivities,
		StartsAt:    time.Now().Add(-24 * time.Hour),
	})

	plan := createPlan(t, eng, president)

	_, err := eng.AddPlanAssignment(ctx, vp, plan.ID, workflow.PlanAssignment{
		MemberID: "mem-9", CommitteeID: "committee-b", Role: string(auth.RoleEventChair),
	})
	var denial *auth.Denial
	if !errors.As(err, &denial) || denial.Code != delegation.CodeOutOfScope {
		t.Fatalf("expected out_of_scope denial, got %v", err)
	}

	entries, _ := store.List(ctx, audit.Query{ObjectType: "committee", ObjectID: "committee-b"})
	if len(entries) != 1 || entries[0].Action != audit.DeniedPrefix+delegation.CodeOutOfScope {
		t.Fatalf("scope denial not audited: %+v", entries)
	}

	// Inside scope the same actor succeeds.
	if _, err := eng.AddPlanAssignment(ctx, vp, plan.ID, workflow.PlanAssignment{
		MemberID: "mem-9", CommitteeID: "committee-a", Role: string(auth.RoleEventChair),
	}); err != nil {
		t.Fatalf("in-scope assignment failed: %v", err)
	}
}
