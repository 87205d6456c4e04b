package ticket

import (
	"log/slog"
	"sync"

	"github.com/psds-microservice/helpdesk-client/internal/model"
)

// Snapshot is the client's possibly-stale copy of a ticket plus the
// client-side facts the guards need.
type Snapshot struct {
	Ticket model.Ticket
	// TakenBy is the operator that took the ticket from this client.
	TakenBy string
}

// Cache — локальные снимки тикетов, которые читают guards.
type Cache struct {
	mu     sync.Mutex
	items  map[string]Snapshot
	logger *slog.Logger
}

func NewCache(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{items: make(map[string]Snapshot), logger: logger}
}

func (c *Cache) Get(id string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.items[id]
	return s, ok
}

// Observe applies a server snapshot and returns the previous one. The
// server is authoritative for newer snapshots: a change outside the
// transition table is logged and applied. A snapshot older than the
// cached one (by updated_at) is ignored, a closed ticket never reopens
// and escalated_at is never cleared once seen.
func (c *Cache) Observe(t model.Ticket) (prev Snapshot, known bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, known = c.items[t.ID]
	if known && stale(prev.Ticket, t) {
		c.logger.Debug("stale ticket snapshot ignored", "ticket_id", t.ID,
			"cached", prev.Ticket.Status, "incoming", t.Status)
		return prev, known
	}
	next := Snapshot{Ticket: t}
	if known {
		next.TakenBy = prev.TakenBy
		from, to := prev.Ticket.Status, t.Status
		if from != to {
			if !Reachable(from, to) {
				c.logger.Warn("server reported transition outside the client table",
					"ticket_id", t.ID, "from", from, "to", to)
			}
			if to == Escalated {
				next.TakenBy = ""
			}
		}
		if prev.Ticket.EscalatedAt != nil && (t.EscalatedAt == nil || !t.EscalatedAt.Equal(*prev.Ticket.EscalatedAt)) {
			c.logger.Warn("escalated_at changed after being set", "ticket_id", t.ID)
			at := *prev.Ticket.EscalatedAt
			next.Ticket.EscalatedAt = &at
		}
	}
	c.items[t.ID] = next
	return prev, known
}

// stale reports whether incoming must not replace cached.
func stale(cached, incoming model.Ticket) bool {
	if incoming.UpdatedAt.Before(cached.UpdatedAt) {
		return true
	}
	return cached.Status == Closed && incoming.Status != Closed
}

// MarkTaken records that operatorID took the ticket.
func (c *Cache) MarkTaken(id, operatorID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.items[id]
	s.TakenBy = operatorID
	c.items[id] = s
}

// Forget drops the snapshot of id.
func (c *Cache) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
}
