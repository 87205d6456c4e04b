package model

import "time"

type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusEscalated  TicketStatus = "escalated"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether s is one of the four known statuses.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusEscalated, TicketStatusClosed:
		return true
	}
	return false
}

type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

type TicketCategory string

const (
	TicketCategoryTechnical     TicketCategory = "technical"
	TicketCategoryLicensing     TicketCategory = "licensing"
	TicketCategoryGeneral       TicketCategory = "general"
	TicketCategoryDocumentation TicketCategory = "documentation"
)

func (c TicketCategory) Valid() bool {
	switch c {
	case TicketCategoryTechnical, TicketCategoryLicensing, TicketCategoryGeneral, TicketCategoryDocumentation:
		return true
	}
	return false
}

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Metadata keys set by the server on operator-authored messages.
const (
	MetaHumanResponse = "human_response"
	MetaOperatorID    = "operator_id"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  *string   `json:"full_name"`
	IsActive  bool      `json:"is_active"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the full name when set, the email otherwise.
func (u *User) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Email
}

type Ticket struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Title        string         `json:"title"`
	Status       TicketStatus   `json:"status"`
	Priority     TicketPriority `json:"priority"`
	Category     TicketCategory `json:"category"`
	EscalatedAt  *time.Time     `json:"escalated_at"`
	ClosedAt     *time.Time     `json:"closed_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	MessageCount int            `json:"message_count"`
}

type Message struct {
	ID        string         `json:"id"`
	TicketID  string         `json:"ticket_id"`
	Role      MessageRole    `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"meta_data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// HumanAuthored reports whether an operator wrote the message rather
// than the automated agent.
func (m *Message) HumanAuthored() bool {
	v, ok := m.Metadata[MetaHumanResponse].(bool)
	return ok && v
}

type ChatHistory struct {
	TicketID      string    `json:"ticket_id"`
	Messages      []Message `json:"messages"`
	TotalMessages int       `json:"total_messages"`
}

type TicketList struct {
	Tickets  []Ticket `json:"tickets"`
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}

type Stats struct {
	Escalated  int `json:"escalated"`
	InProgress int `json:"in_progress"`
	Open       int `json:"open"`
	Total      int `json:"total"`
}

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
