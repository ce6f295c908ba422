package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOpen is returned by Send and Request unless the connection is Open.
	ErrNotOpen = errors.New("client: connection not open")

	// ErrInvalidTransition is matched by every *TransitionError.
	ErrInvalidTransition = errors.New("client: invalid state transition")

	// ErrRequestTimeout is returned when a reply doesn't arrive in time.
	ErrRequestTimeout = errors.New("client: request timed out")

	// ErrClosed is returned to requests pending when Close is called.
	ErrClosed = errors.New("client: connection closed")

	// ErrDuplicateManager is returned by Attach for a second manager
	// with an already attached name.
	ErrDuplicateManager = errors.New("client: manager name already attached")

	// ErrGaveUp is matched by the error passed to the give-up hook.
	ErrGaveUp = errors.New("client: gave up reconnecting")
)

// TransportError is a dial failure or connection drop.
type TransportError struct {
	Op  string // dial, read, write, reconnect
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("client: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// GiveUpError is reported after the last reconnect attempt fails.
type GiveUpError struct {
	Attempts int
	Last     error
}

func (e *GiveUpError) Error() string {
	return fmt.Sprintf("client: gave up after %d reconnect attempts: %v", e.Attempts, e.Last)
}

func (e *GiveUpError) Unwrap() []error {
	return []error{ErrGaveUp, e.Last}
}
