package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/psds-microservice/helpdesk-client/internal/model"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"full_name,omitempty"`
}

type createTicketRequest struct {
	Title    string               `json:"title"`
	Category model.TicketCategory `json:"category,omitempty"`
}

type contentRequest struct {
	Content string `json:"content"`
}

// ListOptions — фильтр и пагинация списков тикетов. Zero values are omitted.
type ListOptions struct {
	Statuses []model.TicketStatus
	Page     int
	PageSize int
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if len(o.Statuses) > 0 {
		parts := make([]string, len(o.Statuses))
		for i, s := range o.Statuses {
			parts[i] = string(s)
		}
		q.Set("status_filter", strings.Join(parts, ","))
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(o.PageSize))
	}
	return q
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*model.Token, error) {
	var tok model.Token
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/login",
		body:   loginRequest{Email: email, Password: password},
		public: true,
	}, &tok)
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (c *Client) Register(ctx context.Context, email, password string, fullName *string) (*model.User, error) {
	var user model.User
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/register",
		body:   registerRequest{Email: email, Password: password, FullName: fullName},
		public: true,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Me returns the user the current credential belongs to.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/auth/me"}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListTickets(ctx context.Context, opts ListOptions) (*model.TicketList, error) {
	var list model.TicketList
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/tickets/", query: opts.query()}, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) CreateTicket(ctx context.Context, title string, category model.TicketCategory) (*model.Ticket, error) {
	var t model.Ticket
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/tickets/",
		body:   createTicketRequest{Title: title, Category: category},
	}, &t)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	var t model.Ticket
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/tickets/" + escape(id)}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) CloseTicket(ctx context.Context, id string) (*model.Ticket, error) {
	var t model.Ticket
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/tickets/" + escape(id) + "/close"}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Messages returns the full conversation of a ticket.
func (c *Client) Messages(ctx context.Context, ticketID string) (*model.ChatHistory, error) {
	var h model.ChatHistory
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/chat/" + escape(ticketID) + "/messages"}, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) SendMessage(ctx context.Context, ticketID, content string) (*model.Message, error) {
	var m model.Message
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/chat/" + escape(ticketID) + "/messages",
		body:   contentRequest{Content: content},
	}, &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// OperatorTickets lists tickets across all users. Without a status
// filter the server returns escalated and in-progress tickets.
func (c *Client) OperatorTickets(ctx context.Context, opts ListOptions) (*model.TicketList, error) {
	var list model.TicketList
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/operator/tickets", query: opts.query()}, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) OperatorTicket(ctx context.Context, id string) (*model.Ticket, error) {
	var t model.Ticket
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/operator/tickets/" + escape(id)}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) TakeTicket(ctx context.Context, id string) (*model.Ticket, error) {
	var t model.Ticket
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/operator/tickets/" + escape(id) + "/take"}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) Respond(ctx context.Context, ticketID, content string) (*model.Message, error) {
	var m model.Message
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/operator/tickets/" + escape(ticketID) + "/respond",
		body:   contentRequest{Content: content},
	}, &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) Stats(ctx context.Context) (*model.Stats, error) {
	var s model.Stats
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/operator/stats"}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
