package backend

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/psds-microservice/helpdesk-client/internal/errs"
	"github.com/psds-microservice/helpdesk-client/internal/model"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	minTitleLength  = 3
)

type ticketRecord struct {
	t       model.Ticket
	takenBy string
}

// Query selects a page of tickets. An empty Statuses matches all.
type Query struct {
	Statuses []model.TicketStatus
	Page     int
	PageSize int
}

func (q Query) normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = defaultPageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
	return q
}

var notFound = fail(errs.ErrTicketNotFound, "Ticket no encontrado")

func (s *Store) viewLocked(r *ticketRecord) model.Ticket {
	t := r.t
	t.MessageCount = len(s.messages[t.ID])
	return t
}

func (s *Store) pageLocked(q Query, match func(*ticketRecord) bool) *model.TicketList {
	q = q.normalize()
	var all []model.Ticket
	for _, r := range s.tickets {
		if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, r.t.Status) {
			continue
		}
		if match(r) {
			all = append(all, s.viewLocked(r))
		}
	}
	slices.SortFunc(all, func(a, b model.Ticket) int { return b.CreatedAt.Compare(a.CreatedAt) })

	list := &model.TicketList{Tickets: []model.Ticket{}, Total: len(all), Page: q.Page, PageSize: q.PageSize}
	start := (q.Page - 1) * q.PageSize
	if start < len(all) {
		list.Tickets = all[start:min(start+q.PageSize, len(all))]
	}
	return list
}

// ListTickets returns the user's own tickets, newest first.
func (s *Store) ListTickets(user *model.User, q Query) *model.TicketList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageLocked(q, func(r *ticketRecord) bool { return r.t.UserID == user.ID })
}

func (s *Store) CreateTicket(user *model.User, title string, category model.TicketCategory) (*model.Ticket, error) {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) < minTitleLength {
		return nil, fail(errs.ErrValidation, "El título debe tener al menos 3 caracteres")
	}
	if category == "" {
		category = model.TicketCategoryGeneral
	}
	if !category.Valid() {
		return nil, fail(errs.ErrValidation, "Categoría no válida")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowLocked()
	r := &ticketRecord{t: model.Ticket{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Title:     title,
		Status:    model.TicketStatusOpen,
		Priority:  model.TicketPriorityMedium,
		Category:  category,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	s.tickets[r.t.ID] = r
	s.logger.Info("ticket created", "ticket_id", r.t.ID, "user_id", user.ID)
	t := s.viewLocked(r)
	return &t, nil
}

// lookupLocked finds a ticket the user may read: its owner or an operator.
func (s *Store) lookupLocked(user *model.User, id string, forbidden string) (*ticketRecord, error) {
	r, ok := s.tickets[id]
	if !ok {
		return nil, notFound
	}
	if r.t.UserID != user.ID && !user.IsAdmin {
		return nil, fail(errs.ErrForbidden, forbidden)
	}
	return r, nil
}

func (s *Store) GetTicket(user *model.User, id string) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.lookupLocked(user, id, "No tienes permiso para ver este ticket")
	if err != nil {
		return nil, err
	}
	t := s.viewLocked(r)
	return &t, nil
}

// CloseTicket closes a ticket for its owner or an operator.
func (s *Store) CloseTicket(user *model.User, id string) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.lookupLocked(user, id, "No tienes permiso para cerrar este ticket")
	if err != nil {
		return nil, err
	}
	if r.t.Status == model.TicketStatusClosed {
		return nil, fail(errs.ErrIllegalTransition, "El ticket ya está cerrado")
	}
	now := s.nowLocked()
	r.t.Status = model.TicketStatusClosed
	r.t.ClosedAt = &now
	r.t.UpdatedAt = now
	t := s.viewLocked(r)
	return &t, nil
}

func (s *Store) Messages(user *model.User, id string) (*model.ChatHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookupLocked(user, id, "No tienes permiso para ver este chat"); err != nil {
		return nil, err
	}
	msgs := slices.Clone(s.messages[id])
	if msgs == nil {
		msgs = []model.Message{}
	}
	return &model.ChatHistory{TicketID: id, Messages: msgs, TotalMessages: len(msgs)}, nil
}

func (s *Store) appendLocked(ticketID string, role model.MessageRole, content string, meta map[string]any) model.Message {
	now := s.nowLocked()
	m := model.Message{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		Role:      role,
		Content:   content,
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.messages[ticketID] = append(s.messages[ticketID], m)
	if r, ok := s.tickets[ticketID]; ok {
		r.t.UpdatedAt = now
	}
	return m
}

// SendMessage stores the owner's message and lets the agent answer.
// The agent stays silent once a ticket is escalated or taken by a
// human. The returned message is the user's own.
func (s *Store) SendMessage(user *model.User, id, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fail(errs.ErrValidation, "El mensaje no puede estar vacío")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.tickets[id]
	if !ok {
		return nil, notFound
	}
	if r.t.UserID != user.ID {
		return nil, fail(errs.ErrForbidden, "No tienes permiso para enviar mensajes en este ticket")
	}
	if r.t.Status == model.TicketStatusClosed {
		return nil, fail(errs.ErrBadRequest, "No puedes enviar mensajes en un ticket cerrado")
	}

	history := slices.Clone(s.messages[id])
	msg := s.appendLocked(id, model.MessageRoleUser, content, nil)
	if r.t.Status == model.TicketStatusEscalated || r.takenBy != "" {
		return &msg, nil
	}

	reply := s.agent.Reply(r.t, history, content)
	if reply.Content != "" {
		s.appendLocked(id, model.MessageRoleAssistant, reply.Content, nil)
		if r.t.Status == model.TicketStatusOpen {
			r.t.Status = model.TicketStatusInProgress
		}
	}
	if reply.Escalate {
		s.escalateLocked(r, reply.Reason)
	}
	return &msg, nil
}

func (s *Store) escalateLocked(r *ticketRecord, reason string) {
	now := s.nowLocked()
	r.t.Status = model.TicketStatusEscalated
	if r.t.EscalatedAt == nil {
		r.t.EscalatedAt = &now
	}
	r.t.UpdatedAt = now
	r.takenBy = ""
	s.appendLocked(r.t.ID, model.MessageRoleSystem, escalatedNotice+reason, nil)
	s.logger.Info("ticket escalated", "ticket_id", r.t.ID, "reason", reason)
}

// Escalate hands a ticket to the operator queue as the agent would.
func (s *Store) Escalate(id, reason string) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.tickets[id]
	if !ok {
		return nil, notFound
	}
	if r.t.Status == model.TicketStatusClosed {
		return nil, fail(errs.ErrIllegalTransition, "El ticket está cerrado")
	}
	s.escalateLocked(r, reason)
	t := s.viewLocked(r)
	return &t, nil
}

func requireOperator(user *model.User) error {
	if !user.IsAdmin {
		return fail(errs.ErrForbidden, "No tienes permisos de operador")
	}
	return nil
}

// OperatorTickets lists tickets of all users. Without a status filter it
// returns the operator queue: escalated and in-progress tickets.
func (s *Store) OperatorTickets(user *model.User, q Query) (*model.TicketList, error) {
	if err := requireOperator(user); err != nil {
		return nil, err
	}
	if len(q.Statuses) == 0 {
		q.Statuses = []model.TicketStatus{model.TicketStatusEscalated, model.TicketStatusInProgress}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageLocked(q, func(*ticketRecord) bool { return true }), nil
}

func (s *Store) OperatorTicket(user *model.User, id string) (*model.Ticket, error) {
	if err := requireOperator(user); err != nil {
		return nil, err
	}
	return s.GetTicket(user, id)
}

// Take assigns an escalated ticket to the operator. Exactly one of
// several concurrent takes succeeds; the others get ErrIllegalTransition.
func (s *Store) Take(user *model.User, id string) (*model.Ticket, error) {
	if err := requireOperator(user); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.tickets[id]
	if !ok {
		return nil, notFound
	}
	switch r.t.Status {
	case model.TicketStatusEscalated:
	case model.TicketStatusClosed:
		return nil, fail(errs.ErrIllegalTransition, "El ticket está cerrado")
	default:
		if r.takenBy != "" {
			return nil, fail(errs.ErrIllegalTransition, "Otro operador ya ha tomado este ticket")
		}
		return nil, fail(errs.ErrIllegalTransition, "El ticket no está escalado")
	}
	now := s.nowLocked()
	r.t.Status = model.TicketStatusInProgress
	r.t.UpdatedAt = now
	r.takenBy = user.ID
	s.appendLocked(id, model.MessageRoleSystem, takenNotice, nil)
	s.logger.Info("ticket taken", "ticket_id", id, "operator_id", user.ID)
	t := s.viewLocked(r)
	return &t, nil
}

// Respond stores an operator-authored message marked as human.
func (s *Store) Respond(user *model.User, id, content string) (*model.Message, error) {
	if err := requireOperator(user); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fail(errs.ErrValidation, "El mensaje no puede estar vacío")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.tickets[id]
	if !ok {
		return nil, notFound
	}
	switch r.t.Status {
	case model.TicketStatusClosed:
		return nil, fail(errs.ErrBadRequest, "El ticket está cerrado")
	case model.TicketStatusEscalated:
		return nil, fail(errs.ErrIllegalTransition, "Toma el ticket antes de responder")
	}
	m := s.appendLocked(id, model.MessageRoleAssistant, content, map[string]any{
		model.MetaHumanResponse: true,
		model.MetaOperatorID:    user.ID,
	})
	return &m, nil
}

func (s *Store) Stats(user *model.User) (*model.Stats, error) {
	if err := requireOperator(user); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var st model.Stats
	for _, r := range s.tickets {
		switch r.t.Status {
		case model.TicketStatusEscalated:
			st.Escalated++
		case model.TicketStatusInProgress:
			st.InProgress++
		case model.TicketStatusOpen:
			st.Open++
		}
		st.Total++
	}
	return &st, nil
}
