// Package mutation models a single async write (send, close, take,
// respond) as idle → pending → succeeded | failed.
package mutation

import (
	"context"
	"sync"
)

type State int

const (
	Idle State = iota
	Pending
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Mutation tracks the state of repeated runs of one kind of write.
// The zero value is ready to use.
type Mutation struct {
	mu       sync.Mutex
	state    State
	err      error
	observer func(State)
}

// Observe registers f to be called on every state change.
func (m *Mutation) Observe(f func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = f
}

// State returns the current state.
func (m *Mutation) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the error of the last failed run, nil otherwise.
func (m *Mutation) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Reset returns the mutation to Idle.
func (m *Mutation) Reset() { m.set(Idle, nil) }

func (m *Mutation) set(s State, err error) {
	m.mu.Lock()
	m.state = s
	m.err = err
	f := m.observer
	m.mu.Unlock()
	if f != nil {
		f(s)
	}
}

// Run executes fn and records its outcome.
func Run[T any](ctx context.Context, m *Mutation, fn func(context.Context) (T, error)) (T, error) {
	m.set(Pending, nil)
	v, err := fn(ctx)
	if err != nil {
		m.set(Failed, err)
		var zero T
		return zero, err
	}
	m.set(Succeeded, nil)
	return v, nil
}
