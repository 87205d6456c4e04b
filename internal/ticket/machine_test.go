package ticket

import (
	"errors"
	"testing"
	"time"

	"github.com/psds-microservice/helpdesk-client/internal/errs"
	"github.com/psds-microservice/helpdesk-client/internal/model"
)

var allStatuses = []Status{Open, InProgress, Escalated, Closed}
var allTriggers = []Trigger{TriggerReply, TriggerEscalate, TriggerTake, TriggerClose}

func snap(id string, s Status) Snapshot {
	return Snapshot{Ticket: model.Ticket{ID: id, UserID: "owner", Status: s}}
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from Status
		trig Trigger
		to   Status
		ok   bool
	}{
		{Open, TriggerReply, InProgress, true},
		{InProgress, TriggerReply, "", false},
		{Open, TriggerEscalate, Escalated, true},
		{InProgress, TriggerEscalate, Escalated, true},
		{Escalated, TriggerEscalate, "", false},
		{Escalated, TriggerTake, InProgress, true},
		{Open, TriggerTake, "", false},
		{InProgress, TriggerTake, "", false},
		{Open, TriggerClose, Closed, true},
		{InProgress, TriggerClose, Closed, true},
		{Escalated, TriggerClose, Closed, true},
		{Closed, TriggerClose, "", false},
	}
	for _, tt := range tests {
		got, ok := Next(tt.from, tt.trig)
		if ok != tt.ok || got != tt.to {
			t.Errorf("Next(%s, %s) = %q, %v; want %q, %v", tt.from, tt.trig, got, ok, tt.to, tt.ok)
		}
	}
}

func TestNoTransitionOutOfClosed(t *testing.T) {
	for _, trig := range allTriggers {
		if _, ok := Next(Closed, trig); ok {
			t.Errorf("trigger %s leaves CLOSED", trig)
		}
		for _, to := range allStatuses {
			if CanTransition(Closed, to, trig) {
				t.Errorf("CanTransition(CLOSED, %s, %s) = true", to, trig)
			}
		}
	}
	for _, to := range allStatuses {
		if Reachable(Closed, to) {
			t.Errorf("Reachable(CLOSED, %s) = true", to)
		}
	}
	operator := Actor{UserID: "op", Operator: true}
	for _, trig := range allTriggers {
		_, err := Initiate(snap("t1", Closed), trig, operator)
		if !errors.Is(err, errs.ErrIllegalTransition) {
			t.Errorf("Initiate(CLOSED, %s) error = %v, want IllegalTransition", trig, err)
		}
	}
}

func TestTakeOnlyFromEscalated(t *testing.T) {
	operator := Actor{UserID: "op", Operator: true}
	for _, s := range allStatuses {
		next, err := Initiate(snap("t1", s), TriggerTake, operator)
		if s == Escalated {
			if err != nil || next != InProgress {
				t.Errorf("take from ESCALATED = %q, %v", next, err)
			}
			continue
		}
		var te *TransitionError
		if !errors.As(err, &te) {
			t.Fatalf("take from %s: expected *TransitionError, got %v", s, err)
		}
		if te.From != s || te.To != InProgress || te.Action != "take" {
			t.Errorf("unexpected payload: %+v", te)
		}
	}
}

func TestTakeRequiresOperator(t *testing.T) {
	_, err := Initiate(snap("t1", Escalated), TriggerTake, Actor{UserID: "owner"})
	if !errors.Is(err, errs.ErrIllegalTransition) {
		t.Fatalf("expected IllegalTransition, got %v", err)
	}
}

func TestServerOnlyTriggers(t *testing.T) {
	for _, trig := range []Trigger{TriggerEscalate, TriggerReply} {
		if _, err := Initiate(snap("t1", Open), trig, Actor{Operator: true}); err == nil {
			t.Errorf("client initiated %s", trig)
		}
	}
}

func TestCloseByOwnerOrOperator(t *testing.T) {
	if _, err := Initiate(snap("t1", Open), TriggerClose, Actor{UserID: "owner"}); err != nil {
		t.Fatalf("owner close: %v", err)
	}
	if _, err := Initiate(snap("t1", Open), TriggerClose, Actor{UserID: "op", Operator: true}); err != nil {
		t.Fatalf("operator close: %v", err)
	}
	if _, err := Initiate(snap("t1", Open), TriggerClose, Actor{UserID: "stranger"}); err == nil {
		t.Fatal("stranger closed the ticket")
	}
}

func TestGuards(t *testing.T) {
	if CanCompose(snap("t", Closed)) {
		t.Error("compose allowed on closed ticket")
	}
	for _, s := range []Status{Open, InProgress, Escalated} {
		if !CanCompose(snap("t", s)) {
			t.Errorf("compose refused on %s", s)
		}
	}

	esc := snap("t", Escalated)
	if CanOperatorRespond(esc, "op") {
		t.Error("respond allowed on untaken escalated ticket")
	}
	esc.TakenBy = "other"
	if CanOperatorRespond(esc, "op") {
		t.Error("respond allowed on ticket taken by another operator")
	}
	esc.TakenBy = "op"
	if !CanOperatorRespond(esc, "op") {
		t.Error("respond refused after take")
	}
	if CanOperatorRespond(snap("t", Closed), "op") {
		t.Error("respond allowed on closed ticket")
	}
	if !CanOperatorRespond(snap("t", InProgress), "op") {
		t.Error("respond refused on in-progress ticket")
	}
}

func TestCacheObserve(t *testing.T) {
	c := NewCache(nil)
	escalatedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, known := c.Observe(model.Ticket{ID: "t1", Status: Open}); known {
		t.Fatal("first observation reported as known")
	}
	c.Observe(model.Ticket{ID: "t1", Status: Escalated, EscalatedAt: &escalatedAt})
	c.MarkTaken("t1", "op")

	prev, known := c.Observe(model.Ticket{ID: "t1", Status: InProgress})
	if !known || prev.Ticket.Status != Escalated {
		t.Fatalf("unexpected previous snapshot: %+v", prev)
	}
	got, _ := c.Get("t1")
	if got.TakenBy != "op" {
		t.Errorf("TakenBy lost: %+v", got)
	}
	if got.Ticket.EscalatedAt == nil || !got.Ticket.EscalatedAt.Equal(escalatedAt) {
		t.Errorf("escalated_at cleared: %v", got.Ticket.EscalatedAt)
	}

	// Re-escalation requires a new take.
	c.Observe(model.Ticket{ID: "t1", Status: Escalated, EscalatedAt: &escalatedAt})
	got, _ = c.Get("t1")
	if got.TakenBy != "" {
		t.Errorf("TakenBy survived re-escalation: %q", got.TakenBy)
	}

	c.Forget("t1")
	if _, ok := c.Get("t1"); ok {
		t.Error("Forget left the snapshot")
	}
}

func TestCacheObserveOrderIndependent(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	working := model.Ticket{ID: "t1", Status: InProgress, UpdatedAt: base}
	closedAt := base.Add(2 * time.Second)
	closed := model.Ticket{ID: "t1", Status: Closed, UpdatedAt: closedAt, ClosedAt: &closedAt}

	for name, order := range map[string][]model.Ticket{
		"older first": {working, closed},
		"newer first": {closed, working},
	} {
		t.Run(name, func(t *testing.T) {
			c := NewCache(nil)
			for _, tk := range order {
				c.Observe(tk)
			}
			got, _ := c.Get("t1")
			if got.Ticket.Status != Closed || !got.Ticket.UpdatedAt.Equal(closedAt) {
				t.Errorf("snapshot = %s at %v, want closed at %v", got.Ticket.Status, got.Ticket.UpdatedAt, closedAt)
			}
			if CanCompose(got) {
				t.Error("compose allowed on a closed ticket")
			}
		})
	}
}

func TestCacheClosedNeverReopens(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewCache(nil)
	c.Observe(model.Ticket{ID: "t1", Status: Closed, UpdatedAt: at})
	c.Observe(model.Ticket{ID: "t1", Status: Open, UpdatedAt: at.Add(time.Minute)})
	if got, _ := c.Get("t1"); got.Ticket.Status != Closed {
		t.Errorf("status = %s, want closed", got.Ticket.Status)
	}

	// Newer snapshots still replace older ones.
	c.Observe(model.Ticket{ID: "t2", Status: Open, UpdatedAt: at})
	c.Observe(model.Ticket{ID: "t2", Status: Escalated, UpdatedAt: at.Add(time.Second)})
	if got, _ := c.Get("t2"); got.Ticket.Status != Escalated {
		t.Errorf("status = %s, want escalated", got.Ticket.Status)
	}
}

func TestLabels(t *testing.T) {
	want := map[Status]string{Open: "Abierto", InProgress: "En progreso", Escalated: "Escalado", Closed: "Cerrado"}
	for s, l := range want {
		if Label(s) != l {
			t.Errorf("Label(%s) = %q, want %q", s, Label(s), l)
		}
	}
	if CategoryLabel(model.TicketCategoryTechnical) != "Técnico" {
		t.Errorf("unexpected category label %q", CategoryLabel(model.TicketCategoryTechnical))
	}
}
