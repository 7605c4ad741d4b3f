package workflow

import (
	"fmt"
	"time"

	"github.com/sbnctech/murmurant-sub011/internal/auth"
	"github.com/sbnctech/murmurant-sub011/internal/ids"
)

// SupportCase statuses. CLOSED is terminal: the table declares no
// transition out of it.
const (
	CaseOpen         Status = "OPEN"
	CaseAwaitingInfo Status = "AWAITING_INFO"
	CaseInProgress   Status = "IN_PROGRESS"
	CaseEscalated    Status = "ESCALATED"
	CaseResolved     Status = "RESOLVED"
	CaseClosed       Status = "CLOSED"
)

var supportCaseTable = &Table{
	Kind: KindSupportCase,
	Transitions: []Transition{
		{
			From:       []Status{CaseOpen, CaseInProgress},
			Action:     "request_info",
			To:         CaseAwaitingInfo,
			Capability: auth.CapCasesWork,
			Effects:    []Effect{appendCallerNote},
		},
		{
			From:       []Status{CaseAwaitingInfo},
			Action:     "reopen",
			To:         CaseOpen,
			Capability: auth.CapCasesWork,
			Effects:    []Effect{appendCallerNote},
		},
		{
			From:       []Status{CaseOpen, CaseAwaitingInfo},
			Action:     "start_progress",
			To:         CaseInProgress,
			Capability: auth.CapCasesWork,
			Effects:    []Effect{appendCallerNote},
		},
		{
			From:       []Status{CaseInProgress},
			Action:     "escalate",
			To:         CaseEscalated,
			Capability: auth.CapCasesWork,
			Effects:    []Effect{appendCallerNote},
		},
		{
			From:       []Status{CaseInProgress, CaseEscalated},
			Action:     "resolve",
			To:         CaseResolved,
			Capability: auth.CapCasesWork,
			Effects:    []Effect{stampResolved, appendCallerNote},
		},
		{
			From:       []Status{CaseResolved},
			Action:     "close",
			To:         CaseClosed,
			Capability: auth.CapCasesClose,
			Effects:    []Effect{closeCase, appendCallerNote},
		},
	},
}

func stampResolved(e *Entity, _ auth.Principal, now time.Time, _ Request) {
	if e.ResolvedAt == nil {
		e.ResolvedAt = &now
	}
}

// closeCase stamps the closure fields and appends a system-authored note
// recording the prior status. The note is a side effect of the close
// transition itself, never a separate caller action. Close is only
// reachable from RESOLVED.
func closeCase(e *Entity, p auth.Principal, now time.Time, _ Request) {
	if e.ClosedAt == nil {
		e.ClosedAt = &now
	}
	e.ClosedBy = p.ActorID()
	e.Notes = append(e.Notes, CaseNote{
		AuthorID:  SystemAuthor,
		Body:      fmt.Sprintf("case closed by %s (was %s)", p.ActorID(), CaseResolved),
		CreatedAt: now,
	})
}

// appendCallerNote attaches the request note, if any, to the case.
func appendCallerNote(e *Entity, p auth.Principal, now time.Time, req Request) {
	if req.Note == "" {
		return
	}
	e.Notes = append(e.Notes, CaseNote{
		AuthorID:  p.ActorID(),
		Body:      req.Note,
		CreatedAt: now,
	})
}

// NewSupportCase constructs an open case filed by a member.
func NewSupportCase(title, body, reporterID string, now time.Time) Entity {
	e := Entity{
		Kind:   KindSupportCase,
		ID:     ids.New(),
		Status: CaseOpen,
		Title:  title,
	}
	if body != "" {
		e.Notes = []CaseNote{{AuthorID: reporterID, Body: body, CreatedAt: now}}
	}
	return e
}
