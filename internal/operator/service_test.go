package operator_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/psds-microservice/helpdesk-client/internal/apiclient"
	"github.com/psds-microservice/helpdesk-client/internal/clock"
	"github.com/psds-microservice/helpdesk-client/internal/credstore"
	"github.com/psds-microservice/helpdesk-client/internal/errs"
	"github.com/psds-microservice/helpdesk-client/internal/model"
	"github.com/psds-microservice/helpdesk-client/internal/mutation"
	"github.com/psds-microservice/helpdesk-client/internal/operator"
	"github.com/psds-microservice/helpdesk-client/internal/session"
	"github.com/psds-microservice/helpdesk-client/internal/testserver"
	"github.com/psds-microservice/helpdesk-client/internal/ticket"
)

const password = "secret-pass"

func signIn(t *testing.T, srv *testserver.Server, email string) *operator.Service {
	t.Helper()
	sess := session.NewContext(&credstore.Memory{}, nil)
	c, err := apiclient.New(apiclient.Config{BaseURL: srv.URL, RetryDelay: time.Millisecond, Credentials: sess})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := session.NewStore(sess, c, nil).Login(context.Background(), email, password); err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return operator.New(c, ticket.NewCache(nil), sess, nil)
}

// customerTicket opens a ticket for a fresh customer directly in the backend.
func customerTicket(t *testing.T, srv *testserver.Server, escalate bool) *model.Ticket {
	t.Helper()
	srv.Seed(t, "ana@example.com", password, false)
	tok, err := srv.Store.Login("ana@example.com", password)
	if err != nil {
		t.Fatal(err)
	}
	ana, err := srv.Store.Authenticate(tok.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	tk, err := srv.Store.CreateTicket(ana, "Multa por vuelo", model.TicketCategoryLicensing)
	if err != nil {
		t.Fatal(err)
	}
	if escalate {
		if tk, err = srv.Store.Escalate(tk.ID, "consulta legal"); err != nil {
			t.Fatal(err)
		}
	}
	return tk
}

func takePath(id string) string    { return "/api/operator/tickets/" + id + "/take" }
func respondPath(id string) string { return "/api/operator/tickets/" + id + "/respond" }

func TestTakeOnlyFromEscalated(t *testing.T) {
	srv := testserver.New(t)
	srv.Seed(t, "ops@example.com", password, true)
	tk := customerTicket(t, srv, false)
	ops := signIn(t, srv, "ops@example.com")

	_, err := ops.TakeTicket(context.Background(), tk.ID)
	var te *ticket.TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want transition error", err)
	}
	if te.From != ticket.Open || te.To != ticket.InProgress {
		t.Errorf("transition = %s -> %s", te.From, te.To)
	}
	if n := srv.Count(http.MethodPost, takePath(tk.ID)); n != 0 {
		t.Errorf("take requests = %d, want 0", n)
	}
	if ops.TakeState().State() != mutation.Failed {
		t.Errorf("take state = %s", ops.TakeState().State())
	}
}

func TestTakeEscalated(t *testing.T) {
	srv := testserver.New(t)
	srv.Seed(t, "ops@example.com", password, true)
	tk := customerTicket(t, srv, true)
	ops := signIn(t, srv, "ops@example.com")

	got, err := ops.TakeTicket(context.Background(), tk.ID)
	if err != nil {
		t.Fatalf("TakeTicket: %v", err)
	}
	if got.Status != ticket.InProgress {
		t.Errorf("status = %s", got.Status)
	}
}

func TestTakeRace(t *testing.T) {
	srv := testserver.New(t)
	srv.Seed(t, "ops1@example.com", password, true)
	srv.Seed(t, "ops2@example.com", password, true)
	tk := customerTicket(t, srv, true)
	first := signIn(t, srv, "ops1@example.com")
	second := signIn(t, srv, "ops2@example.com")
	ctx := context.Background()

	// Both operators see the ticket as escalated.
	for _, s := range []*operator.Service{first, second} {
		if _, err := s.Get(ctx, tk.ID); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := first.TakeTicket(ctx, tk.ID); err != nil {
		t.Fatalf("first take: %v", err)
	}

	_, err := second.TakeTicket(ctx, tk.ID)
	var te *ticket.TransitionError
	if !errors.As(err, &te) || !errors.Is(err, errs.ErrIllegalTransition) {
		t.Fatalf("second take: %v", err)
	}
	if te.From != ticket.InProgress {
		t.Errorf("From = %s, want %s", te.From, ticket.InProgress)
	}
	if te.Detail != "Otro operador ya ha tomado este ticket" {
		t.Errorf("detail = %q", te.Detail)
	}
	if n := srv.Count(http.MethodPost, takePath(tk.ID)); n != 2 {
		t.Errorf("take requests = %d, want 2", n)
	}
}

func TestRespondRequiresTake(t *testing.T) {
	srv := testserver.New(t)
	srv.Seed(t, "ops@example.com", password, true)
	tk := customerTicket(t, srv, true)
	ops := signIn(t, srv, "ops@example.com")
	ctx := context.Background()

	_, err := ops.Respond(ctx, tk.ID, "Hola, soy Marta")
	var te *ticket.TransitionError
	if !errors.As(err, &te) || te.From != ticket.Escalated {
		t.Fatalf("respond before take: %v", err)
	}
	if n := srv.Count(http.MethodPost, respondPath(tk.ID)); n != 0 {
		t.Errorf("respond requests = %d, want 0", n)
	}
	if st := ops.RespondState().State(); st != mutation.Failed {
		t.Errorf("respond state = %s", st)
	}

	if _, err := ops.TakeTicket(ctx, tk.ID); err != nil {
		t.Fatal(err)
	}
	m, err := ops.Respond(ctx, tk.ID, "  Hola, soy Marta  ")
	if err != nil {
		t.Fatalf("respond after take: %v", err)
	}
	if !m.HumanAuthored() || m.Role != model.MessageRoleAssistant || m.Content != "Hola, soy Marta" {
		t.Errorf("message = %+v", m)
	}
	if st := ops.RespondState().State(); st != mutation.Succeeded {
		t.Errorf("respond state = %s", st)
	}
}

func TestRespondEmptyContent(t *testing.T) {
	srv := testserver.New(t)
	srv.Seed(t, "ops@example.com", password, true)
	ops := signIn(t, srv, "ops@example.com")
	before := srv.Total()

	_, err := ops.Respond(context.Background(), "any", " \n ")
	var ve *errs.ValidationError
	if !errors.As(err, &ve) || ve.Field != "content" {
		t.Fatalf("err = %v", err)
	}
	if srv.Total() != before {
		t.Error("request sent for empty content")
	}
}

func TestCustomerIsNotOperator(t *testing.T) {
	srv := testserver.New(t)
	tk := customerTicket(t, srv, true)
	ana := signIn(t, srv, "ana@example.com")
	ctx := context.Background()

	if _, err := ana.TakeTicket(ctx, tk.ID); !errors.Is(err, errs.ErrForbidden) {
		t.Errorf("take: %v", err)
	}
	if _, err := ana.Stats(ctx); !errors.Is(err, errs.ErrForbidden) {
		t.Errorf("stats: %v", err)
	}
	if n := srv.Count(http.MethodPost, takePath(tk.ID)); n != 0 {
		t.Errorf("take requests = %d", n)
	}
}

func TestDashboard(t *testing.T) {
	srv := testserver.New(t)
	srv.Seed(t, "ops@example.com", password, true)
	customerTicket(t, srv, false)
	ops := signIn(t, srv, "ops@example.com")

	updates := make(chan operator.DashboardState, 16)
	until := make(chan struct{})
	d := ops.Dashboard(operator.DashboardConfig{
		Clock:    clock.Fake(testserver.Epoch),
		Until:    until,
		List:     apiclient.ListOptions{Statuses: []model.TicketStatus{model.TicketStatusOpen}},
		OnUpdate: func(st operator.DashboardState) { updates <- st },
	})
	d.Start(context.Background())

	deadline := time.After(3 * time.Second)
	var st operator.DashboardState
	for st.Stats == nil || st.TicketsAt.IsZero() {
		select {
		case st = <-updates:
		case <-deadline:
			t.Fatalf("dashboard not populated: %+v", d.State())
		}
	}
	if st.Stats.Open != 1 || st.Stats.Total != 1 {
		t.Errorf("stats = %+v", *st.Stats)
	}
	if len(st.Tickets) != 1 || ticket.Label(st.Tickets[0].Status) != "Abierto" {
		t.Errorf("tickets = %+v", st.Tickets)
	}

	close(until)
	done := make(chan struct{})
	go func() {
		d.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dashboard kept polling after Until closed")
	}
}
