package workflow

import (
	"strings"
	"time"

	"github.com/sbnctech/murmurant-sub011/internal/auth"
	"github.com/sbnctech/murmurant-sub011/internal/ids"
)

// GovernanceMinutes statuses.
const (
	MinutesDraft     Status = "DRAFT"
	MinutesSubmitted Status = "SUBMITTED"
	MinutesRevised   Status = "REVISED"
	MinutesApproved  Status = "APPROVED"
	MinutesPublished Status = "PUBLISHED"
	MinutesArchived  Status = "ARCHIVED"
)

var minutesTable = &Table{
	Kind: KindMinutes,
	Transitions: []Transition{
		{
			From:       []Status{MinutesDraft, MinutesRevised},
			Action:     "submit",
			To:         MinutesSubmitted,
			Capability: auth.CapMinutesEdit,
			Guards:     []Guard{minutesHaveContent},
			Effects:    []Effect{stampSubmitted},
		},
		{
			From:       []Status{MinutesSubmitted},
			Action:     "approve",
			To:         MinutesApproved,
			Capability: auth.CapMinutesApprove,
			Effects:    []Effect{stampApproved},
		},
		{
			From:       []Status{MinutesSubmitted},
			Action:     "revise",
			To:         MinutesRevised,
			Capability: auth.CapMinutesApprove,
			Guards:     []Guard{reviseHasNote},
			Effects:    []Effect{recordRevisionNote},
		},
		{
			From:       []Status{MinutesApproved},
			Action:     "publish",
			To:         MinutesPublished,
			Capability: auth.CapMinutesPublish,
			Effects:    []Effect{stampPublished},
		},
		{
			From:       []Status{MinutesPublished},
			Action:     "archive",
			To:         MinutesArchived,
			Capability: auth.CapMinutesPublish,
			Effects:    []Effect{stampArchived},
		},
	},
}

func minutesHaveContent(e *Entity, _ Request) error {
	if strings.TrimSpace(e.Content) == "" {
		return &GuardError{Reason: "minutes must have content before submission"}
	}
	return nil
}

func reviseHasNote(_ *Entity, req Request) error {
	if strings.TrimSpace(req.Note) == "" {
		return &GuardError{Reason: "a revision note is required to send minutes back"}
	}
	return nil
}

func recordRevisionNote(e *Entity, _ auth.Principal, _ time.Time, req Request) {
	e.RevisionNote = strings.TrimSpace(req.Note)
}

func stampArchived(e *Entity, _ auth.Principal, now time.Time, _ Request) {
	if e.ArchivedAt == nil {
		e.ArchivedAt = &now
	}
}

// NewMinutes constructs draft minutes at version 1.
func NewMinutes(title, committeeID, content string) Entity {
	return Entity{
		Kind:        KindMinutes,
		ID:          ids.New(),
		Status:      MinutesDraft,
		Title:       title,
		CommitteeID: committeeID,
		Content:     content,
		Version:     1,
	}
}

// CreateMinutesRevision derives a new draft from published minutes.
// Published minutes are immutable — no transition touches their content —
// so corrections happen on a linked successor with an incremented version.
// Returns false when src is not published.
func CreateMinutesRevision(src Entity) (Entity, bool) {
	if src.Kind != KindMinutes || src.Status != MinutesPublished {
		return Entity{}, false
	}
	return Entity{
		Kind:        KindMinutes,
		ID:          ids.New(),
		Status:      MinutesDraft,
		Title:       src.Title,
		CommitteeID: src.CommitteeID,
		Content:     src.Content,
		Version:     src.Version + 1,
		RevisionOf:  src.ID,
	}, true
}
