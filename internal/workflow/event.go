package workflow

import (
	"time"

	"github.com/sbnctech/murmurant-sub011/internal/auth"
	"github.com/sbnctech/murmurant-sub011/internal/ids"
)

// Event statuses.
const (
	EventDraft            Status = "DRAFT"
	EventPendingApproval  Status = "PENDING_APPROVAL"
	EventChangesRequested Status = "CHANGES_REQUESTED"
	EventApproved         Status = "APPROVED"
	EventPublished        Status = "PUBLISHED"
	EventCanceled         Status = "CANCELED"
)

var eventTable = &Table{
	Kind: KindEvent,
	Transitions: []Transition{
		{
			From:       []Status{EventDraft, EventChangesRequested},
			Action:     "submit",
			To:         EventPendingApproval,
			Capability: auth.CapEventsEdit,
			Effects:    []Effect{stampSubmitted},
		},
		{
			From:       []Status{EventPendingApproval},
			Action:     "approve",
			To:         EventApproved,
			Capability: auth.CapEventsApprove,
			Effects:    []Effect{stampApproved},
		},
		{
			From:       []Status{EventPendingApproval},
			Action:     "request_changes",
			To:         EventChangesRequested,
			Capability: auth.CapEventsApprove,
		},
		{
			From:       []Status{EventApproved},
			Action:     "publish",
			To:         EventPublished,
			Capability: auth.CapEventsPublish,
			Guards:     []Guard{eventHasStartTime},
			Effects:    []Effect{stampPublished},
		},
		{
			From:       []Status{EventDraft, EventPendingApproval, EventApproved, EventPublished},
			Action:     "cancel",
			To:         EventCanceled,
			Capability: auth.CapEventsEdit,
			Effects:    []Effect{stampCanceled},
		},
	},
}

// eventHasStartTime blocks publishing an event nobody could attend.
func eventHasStartTime(e *Entity, _ Request) error {
	if e.StartsAt == nil {
		return &GuardError{Reason: "event must have a start time before it can be published"}
	}
	return nil
}

// NewEvent constructs a draft event. Creation is not a transition; the
// entity starts its life in DRAFT.
func NewEvent(title, committeeID, chairID string, startsAt, endsAt *time.Time) Entity {
	return Entity{
		Kind:        KindEvent,
		ID:          ids.New(),
		Status:      EventDraft,
		Title:       title,
		CommitteeID: committeeID,
		ChairID:     chairID,
		StartsAt:    copyTime(startsAt),
		EndsAt:      copyTime(endsAt),
	}
}

// CloneEvent derives a fresh draft from an existing event. A clone never
// reuses history: whatever the source's status, the copy starts in DRAFT
// with chair, dates and every transition timestamp cleared.
func CloneEvent(src Entity) Entity {
	return Entity{
		Kind:        KindEvent,
		ID:          ids.New(),
		Status:      EventDraft,
		Title:       src.Title,
		CommitteeID: src.CommitteeID,
		Content:     src.Content,
	}
}

// Shared transition effects. Each timestamp is written exactly once, by
// the transition that declares it; a resubmit after changes-requested
// keeps the original submission time.
func stampSubmitted(e *Entity, p auth.Principal, now time.Time, _ Request) {
	if e.SubmittedAt == nil {
		e.SubmittedAt = &now
	}
	e.SubmittedBy = p.ActorID()
}

func stampApproved(e *Entity, p auth.Principal, now time.Time, _ Request) {
	if e.ApprovedAt == nil {
		e.ApprovedAt = &now
	}
	e.ApprovedBy = p.ActorID()
}

func stampPublished(e *Entity, _ auth.Principal, now time.Time, _ Request) {
	if e.PublishedAt == nil {
		e.PublishedAt = &now
	}
}

func stampCanceled(e *Entity, _ auth.Principal, now time.Time, _ Request) {
	if e.CanceledAt == nil {
		e.CanceledAt = &now
	}
}
