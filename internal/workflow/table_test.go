package workflow_test

import (
	"testing"

	"github.com/sbnctech/murmurant-sub011/internal/workflow"
)

var declaredStatuses = map[workflow.Kind][]workflow.Status{
	workflow.KindEvent: {
		workflow.EventDraft, workflow.EventPendingApproval, workflow.EventChangesRequested,
		workflow.EventApproved, workflow.EventPublished, workflow.EventCanceled,
	},
	workflow.KindMinutes: {
		workflow.MinutesDraft, workflow.MinutesSubmitted, workflow.MinutesRevised,
		workflow.MinutesApproved, workflow.MinutesPublished, workflow.MinutesArchived,
	},
	workflow.KindTransitionPlan: {
		workflow.PlanDraft, workflow.PlanPendingApproval, workflow.PlanApproved,
		workflow.PlanApplied, workflow.PlanCancelled,
	},
	workflow.KindSupportCase: {
		workflow.CaseOpen, workflow.CaseAwaitingInfo, workflow.CaseInProgress,
		workflow.CaseEscalated, workflow.CaseResolved, workflow.CaseClosed,
	},
}

// Every (from, action) pair must map to exactly one target state, every
// state referenced by a table must be declared for its kind, and every
// transition must name the capability that gates it.
func TestTransitionTableClosure(t *testing.T) {
	for kind, statuses := range declaredStatuses {
		table, ok := workflow.TableFor(kind)
		if !ok {
			t.Fatalf("no table for kind %s", kind)
		}
		if table.Kind != kind {
			t.Fatalf("table kind mismatch: %s vs %s", table.Kind, kind)
		}
		known := make(map[workflow.Status]struct{}, len(statuses))
		for _, s := range statuses {
			known[s] = struct{}{}
		}

		actions := make(map[workflow.ActionName]struct{})
		pairs := make(map[string]struct{})
		for _, tr := range table.Transitions {
			if _, dup := actions[tr.Action]; dup {
				t.Fatalf("%s: action %s declared twice", kind, tr.Action)
			}
			actions[tr.Action] = struct{}{}

			if tr.Capability == "" {
				t.Fatalf("%s %s: transition without a capability", kind, tr.Action)
			}
			if _, ok := known[tr.To]; !ok {
				t.Fatalf("%s %s: target %s not declared", kind, tr.Action, tr.To)
			}
			if len(tr.From) == 0 {
				t.Fatalf("%s %s: no from states", kind, tr.Action)
			}
			for _, from := range tr.From {
				if _, ok := known[from]; !ok {
					t.Fatalf("%s %s: from %s not declared", kind, tr.Action, from)
				}
				if from == tr.To {
					t.Fatalf("%s %s: self-loop from %s would silently no-op", kind, tr.Action, from)
				}
				key := string(from) + "→" + string(tr.Action)
				if _, dup := pairs[key]; dup {
					t.Fatalf("%s: pair (%s, %s) maps to multiple targets", kind, from, tr.Action)
				}
				pairs[key] = struct{}{}
			}
		}
	}
}

// Terminal states must have no outgoing transitions at all.
func TestTerminalStatesHaveNoExits(t *testing.T) {
	terminals := map[workflow.Kind][]workflow.Status{
		workflow.KindEvent:          {workflow.EventCanceled},
		workflow.KindMinutes:        {workflow.MinutesArchived},
		workflow.KindTransitionPlan: {workflow.PlanApplied, workflow.PlanCancelled},
		workflow.KindSupportCase:    {workflow.CaseClosed},
	}
	for kind, statuses := range terminals {
		table, _ := workflow.TableFor(kind)
		for _, terminal := range statuses {
			for _, tr := range table.Transitions {
				for _, from := range tr.From {
					if from == terminal {
						t.Fatalf("%s: transition %s leaves terminal state %s", kind, tr.Action, terminal)
					}
				}
			}
		}
	}
}
