// Package poll runs a function on a fixed interval for as long as the
// view that owns it is active.
package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/psds-microservice/helpdesk-client/internal/clock"
)

// Func is one tick. ctx is detached from the task's cancellation so an
// in-flight request is not aborted when the view goes away; results
// must be applied through tok.Apply, which discards them once the task
// has stopped.
type Func func(ctx context.Context, tok Token)

type Options struct {
	Interval time.Duration
	// Clock defaults to clock.Real().
	Clock clock.Clock
	// Until stops the task when closed, e.g. session.Context.Ended().
	Until  <-chan struct{}
	Name   string
	Logger *slog.Logger
}

// Task — отменяемая периодическая задача, привязанная к жизни view.
type Task struct {
	name   string
	logger *slog.Logger

	ctx   context.Context
	until <-chan struct{}

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Token is the cancellation token handed to each tick.
type Token struct {
	task *Task
}

// Live reports whether the task is still running.
func (tk Token) Live() bool {
	tk.task.mu.Lock()
	defer tk.task.mu.Unlock()
	return tk.task.liveLocked()
}

// Apply runs fn only if the task has not stopped, and reports whether
// it ran. Stop waits for a running Apply to finish, so nothing is
// applied after Stop returns.
func (tk Token) Apply(fn func()) bool {
	tk.task.mu.Lock()
	defer tk.task.mu.Unlock()
	if !tk.task.liveLocked() {
		return false
	}
	fn()
	return true
}

// Start runs fn immediately and then every opts.Interval until ctx is
// cancelled, Stop is called or opts.Until is closed.
func Start(ctx context.Context, opts Options, fn Func) *Task {
	if opts.Interval <= 0 {
		panic("poll: non-positive interval")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		name:   opts.Name,
		logger: logger,
		ctx:    ctx,
		until:  opts.Until,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	ticker := clk.NewTicker(opts.Interval)
	go t.loop(ctx, ticker, opts.Until, fn)
	return t
}

func (t *Task) liveLocked() bool {
	if t.stopped || t.ctx.Err() != nil {
		return false
	}
	select {
	case <-t.until:
		return false
	default:
		return true
	}
}

func (t *Task) loop(ctx context.Context, ticker *clock.Ticker, until <-chan struct{}, fn Func) {
	defer close(t.done)
	defer ticker.Stop()
	defer t.Stop()

	tickCtx := context.WithoutCancel(ctx)
	tok := Token{task: t}
	fn(tickCtx, tok)
	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("poll: stopped", "task", t.name, "reason", "context")
			return
		case <-until:
			t.logger.Debug("poll: stopped", "task", t.name, "reason", "session ended")
			return
		case <-ticker.C:
			if !tok.Live() {
				return
			}
			fn(tickCtx, tok)
		}
	}
}

// Stop cancels the task. Results of ticks still in flight are discarded.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	t.cancel()
}

// Done is closed when the loop has exited.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the loop has exited.
func (t *Task) Wait() { <-t.done }

// Token returns a cancellation token for work done outside the loop,
// such as an explicit refresh.
func (t *Task) Token() Token { return Token{task: t} }
