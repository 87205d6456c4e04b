package operator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/psds-microservice/helpdesk-client/internal/apiclient"
	"github.com/psds-microservice/helpdesk-client/internal/clock"
	"github.com/psds-microservice/helpdesk-client/internal/model"
	"github.com/psds-microservice/helpdesk-client/internal/poll"
)

// DefaultInterval is the dashboard refresh period for both the ticket
// list and the counts.
const DefaultInterval = 5 * time.Second

// DashboardState is the latest read model. Stats and the list are
// refreshed by independent loops and may reflect different moments.
type DashboardState struct {
	Stats     *model.Stats
	Tickets   []model.Ticket
	Total     int
	StatsAt   time.Time
	TicketsAt time.Time
}

type DashboardConfig struct {
	Interval time.Duration
	Clock    clock.Clock
	Until    <-chan struct{}
	List     apiclient.ListOptions
	// OnUpdate receives the new state after either loop applied a result.
	OnUpdate func(DashboardState)
}

// Dashboard — панель оператора: счётчики и список, опрашиваемые по таймеру.
type Dashboard struct {
	svc    *Service
	cfg    DashboardConfig
	clk    clock.Clock
	logger *slog.Logger

	mu    sync.Mutex
	state DashboardState
	tasks []*poll.Task
}

func (s *Service) Dashboard(cfg DashboardConfig) *Dashboard {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Dashboard{svc: s, cfg: cfg, clk: clk, logger: s.logger}
}

// Start launches the stats loop and the list loop.
func (d *Dashboard) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tasks != nil {
		return
	}
	opts := func(name string) poll.Options {
		return poll.Options{Interval: d.cfg.Interval, Clock: d.clk, Until: d.cfg.Until, Name: name, Logger: d.logger}
	}
	d.tasks = []*poll.Task{
		poll.Start(ctx, opts("operator:stats"), d.pollStats),
		poll.Start(ctx, opts("operator:list"), d.pollList),
	}
}

func (d *Dashboard) Stop() {
	for _, t := range d.currentTasks() {
		t.Stop()
	}
}

func (d *Dashboard) Wait() {
	for _, t := range d.currentTasks() {
		t.Wait()
	}
}

func (d *Dashboard) currentTasks() []*poll.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tasks
}

// State returns a copy of the latest read model.
func (d *Dashboard) State() DashboardState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.copyLocked()
}

func (d *Dashboard) copyLocked() DashboardState {
	st := d.state
	st.Tickets = append([]model.Ticket(nil), d.state.Tickets...)
	if d.state.Stats != nil {
		s := *d.state.Stats
		st.Stats = &s
	}
	return st
}

func (d *Dashboard) pollStats(ctx context.Context, tok poll.Token) {
	stats, err := d.svc.Stats(ctx)
	if err != nil {
		d.logger.Debug("dashboard: stats tick failed", "error", err)
		return
	}
	d.apply(tok, func(st *DashboardState) {
		st.Stats = stats
		st.StatsAt = d.clk.Now()
	})
}

func (d *Dashboard) pollList(ctx context.Context, tok poll.Token) {
	list, err := d.svc.List(ctx, d.cfg.List)
	if err != nil {
		d.logger.Debug("dashboard: list tick failed", "error", err)
		return
	}
	d.apply(tok, func(st *DashboardState) {
		st.Tickets = list.Tickets
		st.Total = list.Total
		st.TicketsAt = d.clk.Now()
	})
}

func (d *Dashboard) apply(tok poll.Token, update func(*DashboardState)) {
	var snapshot DashboardState
	applied := tok.Apply(func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		update(&d.state)
		snapshot = d.copyLocked()
	})
	if applied && d.cfg.OnUpdate != nil {
		d.cfg.OnUpdate(snapshot)
	}
}
