package client

import (
	"fmt"
	"sync"
)

// State is a connection lifecycle state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Open
	Closed
	Reopening
	GaveUp
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Open:
		return "Open"
	case Closed:
		return "Closed"
	case Reopening:
		return "Reopening"
	case GaveUp:
		return "GaveUp"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// transitions lists the legal edges out of each state.
var transitions = map[State][]State{
	Disconnected: {Connecting},
	Connecting:   {Open, Disconnected},
	Open:         {Closed},
	Closed:       {Reopening, Disconnected},
	Reopening:    {Open, Closed, GaveUp, Disconnected},
	GaveUp:       {Disconnected},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionError describes a rejected state change.
type TransitionError struct {
	From, To State
	Current  State
}

func (e *TransitionError) Error() string {
	if e.Current != e.From {
		return fmt.Sprintf("client: invalid transition %s → %s (state is %s)", e.From, e.To, e.Current)
	}
	return fmt.Sprintf("client: invalid transition %s → %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// machine holds the current state. Changes are compare-and-swap: a
// transition names the state it expects to leave.
type machine struct {
	mu       sync.Mutex
	state    State
	onChange func(from, to State)
}

func (m *machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *machine) transition(from, to State) error {
	m.mu.Lock()
	cur := m.state
	if cur != from || !CanTransition(from, to) {
		m.mu.Unlock()
		return &TransitionError{From: from, To: to, Current: cur}
	}
	m.state = to
	m.mu.Unlock()

	if m.onChange != nil {
		m.onChange(from, to)
	}
	return nil
}

// reset moves to Disconnected from wherever the machine is, passing
// through Closed when leaving Open.
func (m *machine) reset() {
	for {
		cur := m.Current()
		switch cur {
		case Disconnected:
			return
		case Open:
			_ = m.transition(Open, Closed)
		default:
			_ = m.transition(cur, Disconnected)
		}
	}
}
