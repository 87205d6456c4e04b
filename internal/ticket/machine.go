// Package ticket encodes the ticket lifecycle: which status changes
// exist, who may trigger them, and which actions the client allows in
// each status. The server remains the source of truth; these checks let
// the client refuse obviously illegal actions before a round-trip.
//
//	OPEN ──reply──▶ IN_PROGRESS ◀──take── ESCALATED
//	  │                 │                     ▲
//	  └────escalate─────┴─────escalate────────┘
//	OPEN | IN_PROGRESS | ESCALATED ──close──▶ CLOSED (terminal)
package ticket

import (
	"fmt"

	"github.com/psds-microservice/helpdesk-client/internal/errs"
	"github.com/psds-microservice/helpdesk-client/internal/model"
)

type Status = model.TicketStatus

const (
	Open       = model.TicketStatusOpen
	InProgress = model.TicketStatusInProgress
	Escalated  = model.TicketStatusEscalated
	Closed     = model.TicketStatusClosed
)

// Trigger is the event that causes a status change.
type Trigger string

const (
	// TriggerReply — первый ответ в переписке.
	TriggerReply Trigger = "reply"
	// TriggerEscalate is the agent's decision; the server initiates it.
	TriggerEscalate Trigger = "escalate"
	TriggerTake     Trigger = "take"
	TriggerClose    Trigger = "close"
)

type rule struct {
	from []Status
	to   Status
}

var rules = map[Trigger]rule{
	TriggerReply:    {from: []Status{Open}, to: InProgress},
	TriggerEscalate: {from: []Status{Open, InProgress}, to: Escalated},
	TriggerTake:     {from: []Status{Escalated}, to: InProgress},
	TriggerClose:    {from: []Status{Open, InProgress, Escalated}, to: Closed},
}

// Actor is whoever attempts a client-initiated transition.
type Actor struct {
	UserID   string
	Operator bool
}

// TransitionError — действие недопустимо в текущем статусе тикета.
// It unwraps to errs.ErrIllegalTransition.
type TransitionError struct {
	TicketID string
	// Action is the attempted action: a Trigger, or "send"/"respond".
	Action string
	From   Status
	// To is the target status; empty for actions that do not change it.
	To Status
	// Detail explains the refusal; for server rejections it is the
	// server's text.
	Detail string
}

func (e *TransitionError) Error() string {
	target := ""
	if e.To != "" {
		target = " -> " + string(e.To)
	}
	msg := fmt.Sprintf("ticket %s: %s not allowed from %s%s", e.TicketID, e.Action, e.From, target)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return errs.ErrIllegalTransition }

// Next returns the status trig leads to from from.
func Next(from Status, trig Trigger) (Status, bool) {
	r, ok := rules[trig]
	if !ok {
		return "", false
	}
	for _, f := range r.from {
		if f == from {
			return r.to, true
		}
	}
	return "", false
}

// CanTransition reports whether the table has an edge from → to for trig.
func CanTransition(from, to Status, trig Trigger) bool {
	next, ok := Next(from, trig)
	return ok && next == to
}

// Reachable reports whether any trigger moves from to to.
func Reachable(from, to Status) bool {
	for trig := range rules {
		if CanTransition(from, to, trig) {
			return true
		}
	}
	return false
}

// Initiate checks a client-initiated transition and returns the target
// status. Escalation and the first reply happen on the server only.
func Initiate(snap Snapshot, trig Trigger, actor Actor) (Status, error) {
	from := snap.Ticket.Status
	fail := func(to Status, detail string) (Status, error) {
		return "", &TransitionError{TicketID: snap.Ticket.ID, Action: string(trig), From: from, To: to, Detail: detail}
	}
	switch trig {
	case TriggerEscalate, TriggerReply:
		return fail(rules[trig].to, "server-initiated transition")
	case TriggerTake:
		if !actor.Operator {
			return fail(InProgress, "only operators can take tickets")
		}
	case TriggerClose:
		if !actor.Operator && snap.Ticket.UserID != "" && actor.UserID != snap.Ticket.UserID {
			return fail(Closed, "only the owner or an operator can close")
		}
	}
	next, ok := Next(from, trig)
	if !ok {
		if from == Closed {
			return fail(rules[trig].to, "ticket is closed")
		}
		return fail(rules[trig].to, "")
	}
	return next, nil
}

// CanCompose reports whether the owner may write a new message.
func CanCompose(snap Snapshot) bool {
	return snap.Ticket.Status != Closed
}

// CanOperatorRespond reports whether operatorID may send a free-text
// response. An escalated ticket must be taken by that operator first.
func CanOperatorRespond(snap Snapshot, operatorID string) bool {
	switch snap.Ticket.Status {
	case Closed:
		return false
	case Escalated:
		return operatorID != "" && snap.TakenBy == operatorID
	}
	return true
}

func CanTake(snap Snapshot) bool { return snap.Ticket.Status == Escalated }

func CanClose(snap Snapshot) bool { return snap.Ticket.Status != Closed }

// ComposeError is the refusal returned when CanCompose is false.
func ComposeError(snap Snapshot) error {
	return &TransitionError{TicketID: snap.Ticket.ID, Action: "send", From: snap.Ticket.Status, Detail: "ticket is closed"}
}

// RespondError is the refusal returned when CanOperatorRespond is false.
func RespondError(snap Snapshot) error {
	detail := "ticket is closed"
	if snap.Ticket.Status == Escalated {
		detail = "take the ticket before responding"
	}
	return &TransitionError{TicketID: snap.Ticket.ID, Action: "respond", From: snap.Ticket.Status, Detail: detail}
}
