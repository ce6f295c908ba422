package packet

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Handler handles one inbound packet. It receives the raw packet and is
// responsible for its own decode (see Typed).
type Handler func(ctx context.Context, in Inbound) error

// Registration is one handler bound to a key.
type Registration struct {
	ID          uint64
	Key         Key
	Handler     Handler
	Owner       string
	Description string
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithRegistry requires every registered key to have a schema in reg.
func WithRegistry(reg *Registry) TableOption {
	return func(t *Table) {
		t.reg = reg
	}
}

// WithLogger sets the table logger.
func WithLogger(l *zap.Logger) TableOption {
	return func(t *Table) {
		t.logger = l
	}
}

// WithMetrics sets dispatch metrics.
func WithMetrics(m *Metrics) TableOption {
	return func(t *Table) {
		t.metrics = m
	}
}

// Table maps packet keys to ordered handler registrations.
//
// Register never replaces: a key holds every handler registered for it and
// Dispatch runs them in registration order. Table is safe for concurrent
// use; Dispatch works on a snapshot, so handlers may register or unregister
// while running.
type Table struct {
	mu     sync.RWMutex
	byKey  map[Key][]Registration
	nextID uint64

	reg     *Registry
	logger  *zap.Logger
	metrics *Metrics
}

// NewTable creates an empty dispatch table.
func NewTable(opts ...TableOption) *Table {
	t := &Table{
		byKey:  make(map[Key][]Registration),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Register appends a handler for key.
func (t *Table) Register(key Key, h Handler, owner, description string) (Registration, error) {
	if !key.Valid() {
		return Registration{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if h == nil {
		return Registration{}, ErrNilHandler
	}
	if t.reg != nil && !t.reg.Bound(key) {
		return Registration{}, fmt.Errorf("%w: %s", ErrUnboundKey, key)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	r := Registration{
		ID:          t.nextID,
		Key:         key,
		Handler:     h,
		Owner:       owner,
		Description: description,
	}
	t.byKey[key] = append(t.byKey[key], r)
	return r, nil
}

// Unregister removes the registration with id. It reports whether one was
// found.
func (t *Table) Unregister(id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, regs := range t.byKey {
		for i, r := range regs {
			if r.ID != id {
				continue
			}
			t.byKey[key] = remove(regs, i)
			if len(t.byKey[key]) == 0 {
				delete(t.byKey, key)
			}
			return true
		}
	}
	return false
}

// UnregisterOwner removes every registration made by owner and returns how
// many were removed.
func (t *Table) UnregisterOwner(owner string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, regs := range t.byKey {
		kept := make([]Registration, 0, len(regs))
		for _, r := range regs {
			if r.Owner == owner {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			delete(t.byKey, key)
		} else {
			t.byKey[key] = kept
		}
	}
	return removed
}

// Registrations returns a copy of the registrations for key in order.
func (t *Table) Registrations(key Key) []Registration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Registration(nil), t.byKey[key]...)
}

// Len returns the number of handlers registered for key.
func (t *Table) Len(key Key) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byKey[key])
}

// Dispatch runs every handler registered for in.Key, in registration order.
//
// A key with no handlers is dropped and Dispatch returns nil. A handler that
// returns an error or panics does not stop the others; each failure becomes
// a *HandlerError and the failures are returned combined.
func (t *Table) Dispatch(ctx context.Context, in Inbound) error {
	regs := t.Registrations(in.Key)
	if len(regs) == 0 {
		t.logger.Debug("dropping packet with no handler",
			zap.String("key", string(in.Key)),
			zap.Int("bytes", len(in.Payload)))
		if t.metrics != nil {
			t.metrics.Dropped.WithLabelValues(string(in.Key)).Inc()
		}
		return nil
	}
	if t.metrics != nil {
		t.metrics.Dispatched.WithLabelValues(string(in.Key)).Inc()
	}

	var errs error
	for _, r := range regs {
		if err := t.invoke(ctx, r, in); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (t *Table) invoke(ctx context.Context, r Registration, in Inbound) (herr *HandlerError) {
	defer func() {
		if p := recover(); p != nil {
			herr = &HandlerError{
				Key:         r.Key,
				ID:          r.ID,
				Owner:       r.Owner,
				Description: r.Description,
				Panic:       p,
			}
		}
		if herr != nil {
			kind := "error"
			if herr.Panic != nil {
				kind = "panic"
			}
			t.logger.Warn("packet handler failed",
				zap.String("key", string(r.Key)),
				zap.String("owner", r.Owner),
				zap.String("kind", kind),
				zap.Error(herr))
			if t.metrics != nil {
				t.metrics.HandlerErrors.WithLabelValues(string(r.Key), kind).Inc()
			}
		}
	}()

	if err := r.Handler(ctx, in); err != nil {
		return &HandlerError{
			Key:         r.Key,
			ID:          r.ID,
			Owner:       r.Owner,
			Description: r.Description,
			Err:         err,
		}
	}
	return nil
}

func remove(regs []Registration, i int) []Registration {
	out := make([]Registration, 0, len(regs)-1)
	out = append(out, regs[:i]...)
	return append(out, regs[i+1:]...)
}
