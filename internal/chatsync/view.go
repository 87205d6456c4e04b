// Package chatsync keeps a locally held conversation consistent with
// the server by polling, since the API has no push channel.
package chatsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/psds-microservice/helpdesk-client/internal/clock"
	"github.com/psds-microservice/helpdesk-client/internal/model"
	"github.com/psds-microservice/helpdesk-client/internal/poll"
	"github.com/psds-microservice/helpdesk-client/internal/ticket"
)

// DefaultInterval is the participant chat refresh period.
const DefaultInterval = 3 * time.Second

// MessageSource fetches the full message list of a ticket.
type MessageSource interface {
	Messages(ctx context.Context, ticketID string) (*model.ChatHistory, error)
}

// TicketSource fetches a ticket's current status and metadata. The
// participant view uses GET /api/tickets/{id}, the operator view
// GET /api/operator/tickets/{id}.
type TicketSource func(ctx context.Context, id string) (*model.Ticket, error)

type Config struct {
	TicketID string
	Messages MessageSource
	Ticket   TicketSource
	// Cache receives every fetched ticket snapshot. Required.
	Cache    *ticket.Cache
	Interval time.Duration
	Clock    clock.Clock
	// Until stops polling when closed (the session ended).
	Until  <-chan struct{}
	Logger *slog.Logger

	// OnAppend is called after a reconciliation appended messages.
	OnAppend func(added []model.Message)
	// OnStatus is called when a reconciliation observes a status change.
	OnStatus func(from, to model.TicketStatus)
	// ConnectionLostAfter is the number of consecutive failed ticks
	// after which OnConnection(true) fires. 0 disables the report.
	ConnectionLostAfter int
	OnConnection        func(lost bool)
}

// View — синхронизация одного открытого чата.
type View struct {
	cfg  Config
	conv *Conversation

	mu       sync.Mutex
	task     *poll.Task
	failures int
	lost     bool
}

func NewView(cfg Config) (*View, error) {
	if cfg.TicketID == "" {
		return nil, errors.New("chatsync: TicketID is required")
	}
	if cfg.Messages == nil || cfg.Ticket == nil {
		return nil, errors.New("chatsync: Messages and Ticket sources are required")
	}
	if cfg.Cache == nil {
		return nil, errors.New("chatsync: Cache is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &View{cfg: cfg, conv: NewConversation(cfg.TicketID)}, nil
}

// Start begins polling. Polling ends when ctx is cancelled, Stop is
// called or cfg.Until is closed.
func (v *View) Start(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.task != nil {
		return
	}
	v.task = poll.Start(ctx, poll.Options{
		Interval: v.cfg.Interval,
		Clock:    v.cfg.Clock,
		Until:    v.cfg.Until,
		Name:     "chat:" + v.cfg.TicketID,
		Logger:   v.cfg.Logger,
	}, v.tick)
}

// Stop ends polling. Late results are discarded.
func (v *View) Stop() {
	if t := v.currentTask(); t != nil {
		t.Stop()
	}
}

// Wait blocks until the polling loop has exited.
func (v *View) Wait() {
	if t := v.currentTask(); t != nil {
		t.Wait()
	}
}

// Done is closed when the polling loop exits; nil before Start.
func (v *View) Done() <-chan struct{} {
	if t := v.currentTask(); t != nil {
		return t.Done()
	}
	return nil
}

func (v *View) currentTask() *poll.Task {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.task
}

func (v *View) Conversation() *Conversation { return v.conv }

// Snapshot returns the cached ticket snapshot the guards read.
func (v *View) Snapshot() (ticket.Snapshot, bool) { return v.cfg.Cache.Get(v.cfg.TicketID) }

// Refresh reconciles immediately, outside the timer. It is used after
// the viewer's own writes. It reports the fetch error, unlike ticks.
func (v *View) Refresh(ctx context.Context) error {
	t := v.currentTask()
	apply := func(fn func()) bool { fn(); return true }
	if t != nil {
		apply = t.Token().Apply
	}
	return v.reconcile(ctx, apply)
}

func (v *View) tick(ctx context.Context, tok poll.Token) {
	if err := v.reconcile(ctx, tok.Apply); err != nil {
		v.cfg.Logger.Debug("chatsync: tick failed", "ticket_id", v.cfg.TicketID, "error", err)
	}
}

type outcome struct {
	added      []model.Message
	changed    bool
	from, to   model.TicketStatus
	connChange *bool
}

// reconcile fetches ticket and messages and applies whatever arrived.
// A failed fetch leaves the previous snapshot in place.
func (v *View) reconcile(ctx context.Context, apply func(func()) bool) error {
	t, ticketErr := v.cfg.Ticket(ctx, v.cfg.TicketID)
	history, msgErr := v.cfg.Messages.Messages(ctx, v.cfg.TicketID)
	fetchErr := errors.Join(ticketErr, msgErr)

	var out outcome
	applied := apply(func() {
		if ticketErr == nil && t != nil {
			prev, known := v.cfg.Cache.Observe(*t)
			cur, _ := v.cfg.Cache.Get(t.ID)
			if known && prev.Ticket.Status != cur.Ticket.Status {
				out.changed, out.from, out.to = true, prev.Ticket.Status, cur.Ticket.Status
			}
		}
		if msgErr == nil && history != nil {
			out.added = v.conv.Merge(history.Messages)
		}
		out.connChange = v.trackFailures(fetchErr != nil)
	})
	if !applied {
		return nil
	}

	if out.changed {
		v.cfg.Logger.Info("ticket status changed", "ticket_id", v.cfg.TicketID, "from", out.from, "to", out.to)
		if v.cfg.OnStatus != nil {
			v.cfg.OnStatus(out.from, out.to)
		}
	}
	if len(out.added) > 0 && v.cfg.OnAppend != nil {
		v.cfg.OnAppend(out.added)
	}
	if out.connChange != nil && v.cfg.OnConnection != nil {
		v.cfg.OnConnection(*out.connChange)
	}
	return fetchErr
}

// trackFailures counts consecutive failed reconciliations and returns
// the new connection state when it flips.
func (v *View) trackFailures(failed bool) *bool {
	if v.cfg.ConnectionLostAfter <= 0 {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if failed {
		v.failures++
		if !v.lost && v.failures >= v.cfg.ConnectionLostAfter {
			v.lost = true
			lost := true
			return &lost
		}
		return nil
	}
	v.failures = 0
	if v.lost {
		v.lost = false
		lost := false
		return &lost
	}
	return nil
}
