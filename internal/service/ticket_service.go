package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/psds-microservice/helpdesk-client/internal/apiclient"
	"github.com/psds-microservice/helpdesk-client/internal/errs"
	"github.com/psds-microservice/helpdesk-client/internal/model"
	"github.com/psds-microservice/helpdesk-client/internal/mutation"
	"github.com/psds-microservice/helpdesk-client/internal/navigate"
	"github.com/psds-microservice/helpdesk-client/internal/ticket"
)

// MinTitleLength is the shortest accepted ticket title, after trimming.
const MinTitleLength = 3

// TicketServicer — операции пользователя над своими тикетами (Dependency Inversion для CLI).
type TicketServicer interface {
	Create(ctx context.Context, title string, category model.TicketCategory) (*model.Ticket, error)
	GetByID(ctx context.Context, id string) (*model.Ticket, error)
	List(ctx context.Context, opts apiclient.ListOptions) (*model.TicketList, error)
	Close(ctx context.Context, id string) (*model.Ticket, error)
	SendMessage(ctx context.Context, id, content string) (*model.Message, error)
}

// API — пользовательские эндпоинты (реализует apiclient.Client).
type API interface {
	ListTickets(ctx context.Context, opts apiclient.ListOptions) (*model.TicketList, error)
	CreateTicket(ctx context.Context, title string, category model.TicketCategory) (*model.Ticket, error)
	GetTicket(ctx context.Context, id string) (*model.Ticket, error)
	CloseTicket(ctx context.Context, id string) (*model.Ticket, error)
	SendMessage(ctx context.Context, ticketID, content string) (*model.Message, error)
}

// Identity exposes the signed-in user.
type Identity interface {
	User() *model.User
}

type TicketService struct {
	api    API
	cache  *ticket.Cache
	who    Identity
	nav    navigate.Navigator
	logger *slog.Logger

	create mutation.Mutation
	close  mutation.Mutation
	send   mutation.Mutation
}

var _ TicketServicer = (*TicketService)(nil)

func NewTicketService(api API, cache *ticket.Cache, who Identity, nav navigate.Navigator, logger *slog.Logger) *TicketService {
	if nav == nil {
		nav = navigate.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TicketService{api: api, cache: cache, who: who, nav: nav, logger: logger}
}

func (s *TicketService) CreateState() *mutation.Mutation { return &s.create }
func (s *TicketService) CloseState() *mutation.Mutation  { return &s.close }
func (s *TicketService) SendState() *mutation.Mutation   { return &s.send }

// Create opens a ticket and switches to its chat view.
func (s *TicketService) Create(ctx context.Context, title string, category model.TicketCategory) (*model.Ticket, error) {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) < MinTitleLength {
		return nil, errs.Invalid("title", fmt.Sprintf("must be at least %d characters", MinTitleLength))
	}
	if category != "" && !category.Valid() {
		return nil, errs.Invalid("category", fmt.Sprintf("unknown category %q", category))
	}
	t, err := mutation.Run(ctx, &s.create, func(ctx context.Context) (*model.Ticket, error) {
		t, err := s.api.CreateTicket(ctx, title, category)
		if err != nil {
			return nil, fmt.Errorf("service: create ticket: %w", err)
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Observe(*t)
	s.logger.Info("ticket created", "ticket_id", t.ID, "category", t.Category)
	s.nav.Navigate(navigate.ChatRoute(t.ID))
	return t, nil
}

func (s *TicketService) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
	t, err := s.api.GetTicket(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: get ticket %s: %w", id, err)
	}
	s.cache.Observe(*t)
	return t, nil
}

func (s *TicketService) List(ctx context.Context, opts apiclient.ListOptions) (*model.TicketList, error) {
	list, err := s.api.ListTickets(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("service: list tickets: %w", err)
	}
	for _, t := range list.Tickets {
		s.cache.Observe(t)
	}
	return list, nil
}

func (s *TicketService) snapshot(ctx context.Context, id string) (ticket.Snapshot, error) {
	if snap, ok := s.cache.Get(id); ok {
		return snap, nil
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return ticket.Snapshot{}, err
	}
	snap, _ := s.cache.Get(id)
	return snap, nil
}

func (s *TicketService) actor() ticket.Actor {
	var a ticket.Actor
	if u := s.who.User(); u != nil {
		a.UserID, a.Operator = u.ID, u.IsAdmin
	}
	return a
}

// Close closes the ticket. A ticket already known to be closed is
// refused without a request.
func (s *TicketService) Close(ctx context.Context, id string) (*model.Ticket, error) {
	return mutation.Run(ctx, &s.close, func(ctx context.Context) (*model.Ticket, error) {
		snap, err := s.snapshot(ctx, id)
		if err != nil {
			return nil, err
		}
		if _, err := ticket.Initiate(snap, ticket.TriggerClose, s.actor()); err != nil {
			return nil, err
		}
		t, err := s.api.CloseTicket(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("service: close ticket %s: %w", id, err)
		}
		s.cache.Observe(*t)
		s.logger.Info("ticket closed", "ticket_id", id)
		return t, nil
	})
}

// SendMessage posts the owner's message. Escalated tickets accept
// messages; closed ones do not.
func (s *TicketService) SendMessage(ctx context.Context, id, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errs.Invalid("content", "must not be empty")
	}
	return mutation.Run(ctx, &s.send, func(ctx context.Context) (*model.Message, error) {
		snap, err := s.snapshot(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ticket.CanCompose(snap) {
			return nil, ticket.ComposeError(snap)
		}
		m, err := s.api.SendMessage(ctx, id, content)
		if err != nil {
			if errors.Is(err, errs.ErrBadRequest) {
				return nil, s.staleCompose(ctx, id, err)
			}
			return nil, fmt.Errorf("service: send message on %s: %w", id, err)
		}
		return m, nil
	})
}

// staleCompose handles a send the server refused with 400: if the
// ticket turns out to be closed in the meantime the refusal becomes a
// transition error carrying the server's text.
func (s *TicketService) staleCompose(ctx context.Context, id string, cause error) error {
	t, err := s.GetByID(ctx, id)
	if err != nil || t.Status != ticket.Closed {
		return fmt.Errorf("service: send message on %s: %w", id, cause)
	}
	return &ticket.TransitionError{
		TicketID: id,
		Action:   "send",
		From:     t.Status,
		Detail:   apiclient.Detail(cause),
	}
}
