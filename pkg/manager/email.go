package manager

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/beachbev/beachbev-site/pkg/packet"
	"github.com/beachbev/beachbev-site/pkg/packets"
)

// EmailState summarizes an EmailStatus.
type EmailState int

const (
	EmailUnknown EmailState = iota
	// EmailUnconfirmed: only an unverified address exists.
	EmailUnconfirmed
	// EmailChangePending: a verified address and a requested new one.
	EmailChangePending
	// EmailConfirmed: only a verified address exists.
	EmailConfirmed
)

func (s EmailState) String() string {
	switch s {
	case EmailUnconfirmed:
		return "unconfirmed"
	case EmailChangePending:
		return "change-pending"
	case EmailConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// EmailStatus is the account's email as last reported.
type EmailStatus struct {
	Verified   string
	Unverified string
}

// State classifies the status.
func (s EmailStatus) State() EmailState {
	switch {
	case s.Verified == "" && s.Unverified != "":
		return EmailUnconfirmed
	case s.Verified != "" && s.Unverified != "":
		return EmailChangePending
	case s.Verified != "":
		return EmailConfirmed
	default:
		return EmailUnknown
	}
}

// Email tracks the account's verified and unverified addresses.
type Email struct {
	Base
	view EmailView

	mu        sync.Mutex
	status    EmailStatus
	requested string
}

// NewEmail creates an Email manager. A nil view logs instead.
func NewEmail(conn Sender, view EmailView, logger *zap.Logger) *Email {
	e := &Email{Base: NewBase("email", conn, logger), view: view}
	if e.view == nil {
		e.view = NewLogView(logger)
	}
	return e
}

// Status returns the last reported email status.
func (e *Email) Status() EmailStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// OnOpen asks for the email status.
func (e *Email) OnOpen(ctx context.Context) { e.Refresh(ctx) }

// OnReopen asks for the email status again.
func (e *Email) OnReopen(ctx context.Context) { e.Refresh(ctx) }

// OnClose forgets everything learned on the closed connection.
func (e *Email) OnClose(err error) {
	e.mu.Lock()
	e.status = EmailStatus{}
	e.requested = ""
	e.mu.Unlock()
}

// Refresh sends an empty B5 query.
func (e *Email) Refresh(ctx context.Context) error {
	return e.SendEmpty(ctx, "B5")
}

// Resend asks the server to send the verification mail again.
func (e *Email) Resend(ctx context.Context) error {
	e.mu.Lock()
	addr := e.status.Unverified
	if addr != "" {
		e.requested = addr
	}
	e.mu.Unlock()

	if addr == "" {
		e.view.ShowEmailError("No unverified email")
		return ErrNoUnverifiedEmail
	}
	return e.Send(ctx, "B0", &packets.B0{Email: addr})
}

// Change requests a switch to addr. The address stays unverified until
// the user follows the mailed link.
func (e *Email) Change(ctx context.Context, addr string) error {
	if addr == "" {
		e.view.ShowEmailError("Email not entered")
		return ErrEmptyEmail
	}
	e.mu.Lock()
	e.requested = addr
	e.mu.Unlock()
	return e.Send(ctx, "B0", &packets.B0{Email: addr})
}

func (e *Email) RegisterHandlers(t *packet.Table) error {
	codec := e.Codec()
	if err := e.Register(t, "B5", packet.Typed(codec, func(ctx context.Context, m *packets.B5) error {
		var st EmailStatus
		if m.VerifiedEmail != "" {
			st.Verified = m.VerifiedEmail
		} else {
			st.Unverified = m.UnverifiedEmail
		}
		e.mu.Lock()
		e.status = st
		e.mu.Unlock()
		e.view.ShowEmail(st)
		return nil
	}), "email status"); err != nil {
		return err
	}

	return e.Register(t, "B1", packet.Typed(codec, func(ctx context.Context, m *packets.B1) error {
		if !m.Success {
			e.view.ShowEmailError(m.Msg)
			return nil
		}
		e.mu.Lock()
		e.status.Unverified = e.requested
		st := e.status
		e.mu.Unlock()
		e.view.ShowEmail(st)
		return nil
	}), "email change result")
}
