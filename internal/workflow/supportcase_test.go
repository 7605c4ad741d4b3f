package workflow_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sbnctech/murmurant-sub011/internal/workflow"
)

func createCase(t *testing.T, eng *workflow.Engine) workflow.Entity {
	t.Helper()
	ent, err := eng.Create(context.Background(), member,
		workflow.NewSupportCase("Cannot log in", "Password reset email never arrives.", member.MemberID, time.Now().UTC()))
	if err != nil {
		t.Fatalf("create case: %v", err)
	}
	return ent
}

func TestSupportCaseTriagePath(t *testing.T) {
	eng, _ := newEngine(t)
	c := createCase(t, eng)

	c = attempt(t, eng, secretary, workflow.KindSupportCase, c.ID, "request_info")
	if c.Status != workflow.CaseAwaitingInfo {
		t.Fatalf("unexpected status: %s", c.Status)
	}
	c = attempt(t, eng, secretary, workflow.KindSupportCase, c.ID, "start_progress")
	c = attempt(t, eng, secretary, workflow.KindSupportCase, c.ID, "escalate")
	c = attempt(t, eng, secretary, workflow.KindSupportCase, c.ID, "resolve")
	if c.Status != workflow.CaseResolved || c.ResolvedAt == nil {
		t.Fatalf("resolve effects not applied: %+v", c)
	}
}

func TestCloseStampsFieldsAndAppendsSystemNote(t *testing.T) {
	eng, _ := newEngine(t)
	c := createCase(t, eng)
	attempt(t, eng, secretary, workflow.KindSupportCase, c.ID, "start_progress")
	attempt(t, eng, secretary, workflow.KindSupportCase, c.ID, "resolve")

	closed := attempt(t, eng, webmaster, workflow.KindSupportCase, c.ID, "close")
	if closed.Status != workflow.CaseClosed {
		t.Fatalf("unexpected status: %s", closed.Status)
	}
	if closed.ClosedAt == nil || closed.ClosedBy != "web-1" {
		t.Fatalf("close stamps missing: %+v", closed)
	}
	last := closed.Notes[len(closed.Notes)-1]
	if last.AuthorID != workflow.SystemAuthor {
		t.Fatalf("expected system-authored closing note, got %+v", last)
	}
	if !strings.Contains(last.Body, string(workflow.CaseResolved)) {
		t.Fatalf("closing note must record the prior status: %q", last.Body)
	}
}

func TestClosedCaseIsTerminal(t *testing.T) {
	eng, _ := newEngine(t)
	c := createCase(t, eng)
	attempt(t, eng, secretary, workflow.KindSupportCase, c.ID, "start_progress")
	attempt(t, eng, secretary, workflow.KindSupportCase, c.ID, "resolve")
	attempt(t, eng, webmaster, workflow.KindSupportCase, c.ID, "close")

	table, _ := workflow.TableFor(workflow.KindSupportCase)
	for _, tr := range table.Transitions {
		_, err := eng.Attempt(context.Background(), admin, workflow.Request{Kind: workflow.KindSupportCase, ID: c.ID, Action: tr.Action})
		var invalid *workflow.InvalidTransitionError
		if !errors.As(err, &invalid) {
			t.Fatalf("action %s escaped CLOSED: %v", tr.Action, err)
		}
	}
}

func TestCaseWorkRequiresCapability(t *testing.T) {
	eng, _ := newEngine(t)
	c := createCase(t, eng)

	// Members can open cases but not work them.
	_, err := eng.Attempt(context.Background(), member, workflow.Request{Kind: workflow.KindSupportCase, ID: c.ID, Action: "start_progress"})
	if workflow.Code(err) != "missing_capability" {
		t.Fatalf("expected missing_capability, got %v", err)
	}
	// Closing requires the dedicated close capability.
	attempt(t, eng, secretary, workflow.KindSupportCase, c.ID, "start_progress")
	attempt(t, eng, secretary, workflow.KindSupportCase, c.ID, "resolve")
	_, err = eng.Attempt(context.Background(), secretary, workflow.Request{Kind: workflow.KindSupportCase, ID: c.ID, Action: "close"})
	if workflow.Code(err) != "missing_capability" {
		t.Fatalf("expected missing_capability for close, got %v", err)
	}
}

func TestCaseNotesTravelWithTransitions(t *testing.T) {
	eng, _ := newEngine(t)
	c := createCase(t, eng)

	updated, err := eng.Attempt(context.Background(), secretary, workflow.Request{
		Kind: workflow.KindSupportCase, ID: c.ID, Action: "request_info",
		Note: "Which email address did you register with?",
	})
	if err != nil {
		t.Fatalf("request_info: %v", err)
	}
	last := updated.Notes[len(updated.Notes)-1]
	if last.AuthorID != "sec-1" || last.Body == "" {
		t.Fatalf("caller note not appended: %+v", last)
	}
}
