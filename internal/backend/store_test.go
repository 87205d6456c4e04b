package backend

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/psds-microservice/helpdesk-client/internal/clock"
	"github.com/psds-microservice/helpdesk-client/internal/errs"
	"github.com/psds-microservice/helpdesk-client/internal/model"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(epoch)
	return NewStore(Options{Secret: []byte("k"), Clock: clk}), clk
}

func newAccount(t *testing.T, s *Store, email string, operator bool) *model.User {
	t.Helper()
	if _, err := s.Register(email, "secret-pass", nil); err != nil {
		t.Fatal(err)
	}
	if operator {
		if err := s.Promote(email); err != nil {
			t.Fatal(err)
		}
	}
	tok, err := s.Login(email, "secret-pass")
	if err != nil {
		t.Fatal(err)
	}
	u, err := s.Authenticate(tok.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestTokenExpiresWithClock(t *testing.T) {
	s, clk := newTestStore(t)
	newAccount(t, s, "ana@example.com", false)
	tok, err := s.Login("ana@example.com", "secret-pass")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Authenticate(tok.AccessToken); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}
	clk.Advance(DefaultTokenTTL + time.Second)
	if _, err := s.Authenticate(tok.AccessToken); !errors.Is(err, errs.ErrAuthExpired) {
		t.Errorf("expired token: %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	s, _ := newTestStore(t)
	newAccount(t, s, "ana@example.com", false)
	_, err := s.Login("ana@example.com", "wrong")
	var be *Error
	if !errors.As(err, &be) || !errors.Is(err, errs.ErrInvalidCredentials) {
		t.Fatalf("err = %v", err)
	}
	if be.Detail != "Email o contraseña incorrectos" {
		t.Errorf("detail = %q", be.Detail)
	}
}

func TestAgentReplyStartsConversation(t *testing.T) {
	s, _ := newTestStore(t)
	ana := newAccount(t, s, "ana@example.com", false)
	tk, err := s.CreateTicket(ana, "VPN issue", model.TicketCategoryTechnical)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SendMessage(ana, tk.ID, "No conecta"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetTicket(ana, tk.ID)
	if got.Status != model.TicketStatusInProgress || got.MessageCount != 2 {
		t.Errorf("ticket = %+v", got)
	}
	h, _ := s.Messages(ana, tk.ID)
	for i := 1; i < len(h.Messages); i++ {
		if !h.Messages[i].CreatedAt.After(h.Messages[i-1].CreatedAt) {
			t.Errorf("timestamps not increasing at %d", i)
		}
	}
}

func TestAgentEscalatesOnRequest(t *testing.T) {
	s, _ := newTestStore(t)
	ana := newAccount(t, s, "ana@example.com", false)
	tk, _ := s.CreateTicket(ana, "Ayuda", "")
	if _, err := s.SendMessage(ana, tk.ID, "Quiero hablar con un humano"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetTicket(ana, tk.ID)
	if got.Status != model.TicketStatusEscalated || got.EscalatedAt == nil {
		t.Fatalf("ticket = %+v", got)
	}

	// Messages on an escalated ticket get no automated answer.
	before := got.MessageCount
	if _, err := s.SendMessage(ana, tk.ID, "¿Hola?"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetTicket(ana, tk.ID)
	if got.MessageCount != before+1 {
		t.Errorf("message count = %d, want %d", got.MessageCount, before+1)
	}
}

func TestConcurrentTakeHasOneWinner(t *testing.T) {
	s, _ := newTestStore(t)
	ana := newAccount(t, s, "ana@example.com", false)
	tk, _ := s.CreateTicket(ana, "Multa", "")
	if _, err := s.Escalate(tk.ID, "prueba"); err != nil {
		t.Fatal(err)
	}
	ops := []*model.User{
		newAccount(t, s, "ops1@example.com", true),
		newAccount(t, s, "ops2@example.com", true),
		newAccount(t, s, "ops3@example.com", true),
	}

	var wg sync.WaitGroup
	results := make([]error, len(ops))
	for i, op := range ops {
		i, op := i, op
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = s.Take(op, tk.ID)
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, errs.ErrIllegalTransition):
			t.Errorf("loser error = %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("winners = %d, want 1", wins)
	}
}

func TestRespondRules(t *testing.T) {
	s, _ := newTestStore(t)
	ana := newAccount(t, s, "ana@example.com", false)
	op := newAccount(t, s, "ops@example.com", true)
	tk, _ := s.CreateTicket(ana, "Multa", "")
	s.Escalate(tk.ID, "prueba")

	if _, err := s.Respond(ana, tk.ID, "hola"); !errors.Is(err, errs.ErrForbidden) {
		t.Errorf("customer respond: %v", err)
	}
	if _, err := s.Respond(op, tk.ID, "hola"); !errors.Is(err, errs.ErrIllegalTransition) {
		t.Errorf("respond before take: %v", err)
	}
	if _, err := s.Take(op, tk.ID); err != nil {
		t.Fatal(err)
	}
	m, err := s.Respond(op, tk.ID, "hola")
	if err != nil || !m.HumanAuthored() || m.Metadata[model.MetaOperatorID] != op.ID {
		t.Errorf("respond = %+v, %v", m, err)
	}
	s.CloseTicket(ana, tk.ID)
	if _, err := s.Respond(op, tk.ID, "hola"); !errors.Is(err, errs.ErrBadRequest) {
		t.Errorf("respond on closed: %v", err)
	}
}

func TestListPagingAndFilter(t *testing.T) {
	s, _ := newTestStore(t)
	ana := newAccount(t, s, "ana@example.com", false)
	op := newAccount(t, s, "ops@example.com", true)
	var ids []string
	for _, title := range []string{"uno", "dos", "tres"} {
		tk, _ := s.CreateTicket(ana, title, "")
		ids = append(ids, tk.ID)
	}
	s.Escalate(ids[0], "prueba")

	page := s.ListTickets(ana, Query{Page: 1, PageSize: 2})
	if page.Total != 3 || len(page.Tickets) != 2 || page.Tickets[0].ID != ids[2] {
		t.Errorf("page = %+v", page)
	}
	queue, err := s.OperatorTickets(op, Query{})
	if err != nil {
		t.Fatal(err)
	}
	if queue.Total != 1 || queue.Tickets[0].ID != ids[0] {
		t.Errorf("operator queue = %+v", queue)
	}
	open, _ := s.OperatorTickets(op, Query{Statuses: []model.TicketStatus{model.TicketStatusOpen}})
	if open.Total != 2 {
		t.Errorf("open total = %d", open.Total)
	}
}
