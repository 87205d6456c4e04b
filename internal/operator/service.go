// Package operator is the operator side of the helpdesk: aggregate
// counts, the escalated-ticket hand-off and human responses.
package operator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/psds-microservice/helpdesk-client/internal/apiclient"
	"github.com/psds-microservice/helpdesk-client/internal/errs"
	"github.com/psds-microservice/helpdesk-client/internal/model"
	"github.com/psds-microservice/helpdesk-client/internal/mutation"
	"github.com/psds-microservice/helpdesk-client/internal/ticket"
)

// API — операторские эндпоинты (реализует apiclient.Client).
type API interface {
	Stats(ctx context.Context) (*model.Stats, error)
	OperatorTickets(ctx context.Context, opts apiclient.ListOptions) (*model.TicketList, error)
	OperatorTicket(ctx context.Context, id string) (*model.Ticket, error)
	TakeTicket(ctx context.Context, id string) (*model.Ticket, error)
	Respond(ctx context.Context, ticketID, content string) (*model.Message, error)
}

// Identity exposes the signed-in user (session.Context implements it).
type Identity interface {
	User() *model.User
}

type Service struct {
	api    API
	cache  *ticket.Cache
	who    Identity
	logger *slog.Logger

	take    mutation.Mutation
	respond mutation.Mutation
}

func New(api API, cache *ticket.Cache, who Identity, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{api: api, cache: cache, who: who, logger: logger}
}

// TakeState and RespondState expose the in-flight state of the writes.
func (s *Service) TakeState() *mutation.Mutation    { return &s.take }
func (s *Service) RespondState() *mutation.Mutation { return &s.respond }

// Stats returns ticket counts by status across all users.
func (s *Service) Stats(ctx context.Context) (*model.Stats, error) {
	st, err := s.api.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("operator: stats: %w", err)
	}
	return st, nil
}

// List returns the operator ticket list and refreshes cached snapshots.
func (s *Service) List(ctx context.Context, opts apiclient.ListOptions) (*model.TicketList, error) {
	list, err := s.api.OperatorTickets(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("operator: list tickets: %w", err)
	}
	for _, t := range list.Tickets {
		s.cache.Observe(t)
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Ticket, error) {
	t, err := s.api.OperatorTicket(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("operator: get ticket %s: %w", id, err)
	}
	s.cache.Observe(*t)
	return t, nil
}

func (s *Service) operator() (*model.User, error) {
	u := s.who.User()
	if u == nil || !u.IsAdmin {
		return nil, fmt.Errorf("operator: %w: operator role required", errs.ErrForbidden)
	}
	return u, nil
}

// snapshot returns the cached ticket, re-reading it from the server
// when it is unknown or when fresh is set.
func (s *Service) snapshot(ctx context.Context, id string, fresh bool) (ticket.Snapshot, error) {
	if snap, ok := s.cache.Get(id); ok && !fresh {
		return snap, nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return ticket.Snapshot{}, err
	}
	snap, _ := s.cache.Get(id)
	return snap, nil
}

// TakeTicket moves an escalated ticket to in-progress and makes the
// calling operator its responder. It fails with a *ticket.TransitionError
// when the ticket is not escalated, including when another operator
// won a concurrent take.
func (s *Service) TakeTicket(ctx context.Context, id string) (*model.Ticket, error) {
	op, err := s.operator()
	if err != nil {
		return nil, err
	}
	return mutation.Run(ctx, &s.take, func(ctx context.Context) (*model.Ticket, error) {
		snap, err := s.snapshot(ctx, id, false)
		if err != nil {
			return nil, err
		}
		if !ticket.CanTake(snap) {
			// The cached copy may be stale; ask once more before refusing.
			if snap, err = s.snapshot(ctx, id, true); err != nil {
				return nil, err
			}
		}
		if _, err := ticket.Initiate(snap, ticket.TriggerTake, ticket.Actor{UserID: op.ID, Operator: true}); err != nil {
			return nil, err
		}

		t, err := s.api.TakeTicket(ctx, id)
		if err != nil {
			if errors.Is(err, errs.ErrIllegalTransition) {
				return nil, s.lostTake(ctx, id, err)
			}
			return nil, fmt.Errorf("operator: take ticket %s: %w", id, err)
		}
		s.cache.Observe(*t)
		s.cache.MarkTaken(id, op.ID)
		s.logger.Info("ticket taken", "ticket_id", id, "operator_id", op.ID)
		return t, nil
	})
}

// lostTake builds the refusal for a take the server rejected: From is
// the status the ticket is in now, Detail the server's explanation.
func (s *Service) lostTake(ctx context.Context, id string, cause error) error {
	from := ticket.Escalated
	if t, err := s.Get(ctx, id); err == nil {
		from = t.Status
	}
	s.logger.Info("take rejected by server", "ticket_id", id, "status", from)
	return &ticket.TransitionError{
		TicketID: id,
		Action:   string(ticket.TriggerTake),
		From:     from,
		To:       ticket.InProgress,
		Detail:   apiclient.Detail(cause),
	}
}

// Respond sends an operator-authored message. The result carries the
// human-response marker the front end uses to style it.
func (s *Service) Respond(ctx context.Context, id, content string) (*model.Message, error) {
	op, err := s.operator()
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errs.Invalid("content", "must not be empty")
	}
	return mutation.Run(ctx, &s.respond, func(ctx context.Context) (*model.Message, error) {
		snap, err := s.snapshot(ctx, id, false)
		if err != nil {
			return nil, err
		}
		if !ticket.CanOperatorRespond(snap, op.ID) {
			return nil, ticket.RespondError(snap)
		}
		m, err := s.api.Respond(ctx, id, content)
		if err != nil {
			return nil, fmt.Errorf("operator: respond on %s: %w", id, err)
		}
		if !m.HumanAuthored() {
			s.logger.Warn("operator response lacks the human marker", "ticket_id", id, "message_id", m.ID)
		}
		return m, nil
	})
}
