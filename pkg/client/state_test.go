package client

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	legal := []struct{ from, to State }{
		{Disconnected, Connecting},
		{Connecting, Open},
		{Connecting, Disconnected},
		{Open, Closed},
		{Closed, Reopening},
		{Closed, Disconnected},
		{Reopening, Open},
		{Reopening, Closed},
		{Reopening, GaveUp},
		{Reopening, Disconnected},
		{GaveUp, Disconnected},
	}
	for _, tt := range legal {
		if !CanTransition(tt.from, tt.to) {
			t.Errorf("%s → %s should be legal", tt.from, tt.to)
		}
	}

	illegal := []struct{ from, to State }{
		{Disconnected, Open},
		{Open, Reopening},
		{Open, Connecting},
		{Closed, Open},
		{GaveUp, Reopening},
		{GaveUp, Open},
	}
	for _, tt := range illegal {
		if CanTransition(tt.from, tt.to) {
			t.Errorf("%s → %s should be illegal", tt.from, tt.to)
		}
	}
}

func TestMachineRejectsInvalidTransition(t *testing.T) {
	var m machine

	err := m.transition(Disconnected, Open)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("transition error = %v, want ErrInvalidTransition", err)
	}
	if m.Current() != Disconnected {
		t.Errorf("state = %s, want Disconnected", m.Current())
	}

	// Expected source state must match.
	err = m.transition(Closed, Reopening)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TransitionError", err)
	}
	if te.Current != Disconnected {
		t.Errorf("Current = %s, want Disconnected", te.Current)
	}
}

func TestMachineReset(t *testing.T) {
	var seen []State
	m := machine{onChange: func(from, to State) { seen = append(seen, to) }}

	for _, step := range []struct{ from, to State }{
		{Disconnected, Connecting},
		{Connecting, Open},
	} {
		if err := m.transition(step.from, step.to); err != nil {
			t.Fatal(err)
		}
	}

	m.reset()
	if m.Current() != Disconnected {
		t.Fatalf("state = %s, want Disconnected", m.Current())
	}
	want := []State{Connecting, Open, Closed, Disconnected}
	if len(seen) != len(want) {
		t.Fatalf("states = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("states[%d] = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestStateString(t *testing.T) {
	if GaveUp.String() != "GaveUp" {
		t.Errorf("GaveUp.String() = %q", GaveUp.String())
	}
	if State(42).String() != "State(42)" {
		t.Errorf("State(42).String() = %q", State(42).String())
	}
}

func TestBackoff(t *testing.T) {
	o := Options{BaseDelay: 100e6, MaxDelay: 1e9}
	want := map[int]int64{0: 100e6, 1: 100e6, 2: 200e6, 3: 400e6, 4: 800e6, 5: 1e9, 50: 1e9}
	for n, d := range want {
		if got := o.Backoff(n); int64(got) != d {
			t.Errorf("Backoff(%d) = %v, want %v", n, got, d)
		}
	}
}
