package mutation

import (
	"context"
	"errors"
	"testing"
)

func TestRunRecordsStates(t *testing.T) {
	var m Mutation
	var seen []State
	m.Observe(func(s State) { seen = append(seen, s) })

	got, err := Run(context.Background(), &m, func(context.Context) (int, error) {
		if m.State() != Pending {
			t.Errorf("expected pending during run, got %s", m.State())
		}
		return 7, nil
	})
	if err != nil || got != 7 {
		t.Fatalf("Run = %d, %v", got, err)
	}
	if m.State() != Succeeded {
		t.Fatalf("expected succeeded, got %s", m.State())
	}
	want := []State{Pending, Succeeded}
	if len(seen) != len(want) || seen[0] != want[0] || seen[1] != want[1] {
		t.Fatalf("unexpected transitions: %v", seen)
	}
}

func TestRunFailure(t *testing.T) {
	var m Mutation
	boom := errors.New("boom")
	_, err := Run(context.Background(), &m, func(context.Context) (string, error) {
		return "ignored", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if m.State() != Failed || !errors.Is(m.Err(), boom) {
		t.Fatalf("expected failed with boom, got %s %v", m.State(), m.Err())
	}

	// A later success clears the error.
	_, _ = Run(context.Background(), &m, func(context.Context) (string, error) { return "ok", nil })
	if m.Err() != nil || m.State() != Succeeded {
		t.Fatalf("expected clean success, got %s %v", m.State(), m.Err())
	}
	m.Reset()
	if m.State() != Idle {
		t.Fatalf("expected idle after reset, got %s", m.State())
	}
}
