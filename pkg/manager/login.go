package manager

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/beachbev/beachbev-site/pkg/packet"
	"github.com/beachbev/beachbev-site/pkg/packets"
)

// Session identifies a logged in employee.
type Session struct {
	EID      uint64
	DeviceID uint32
	PwdToken string
}

// Valid reports whether s can be used for a token login.
func (s Session) Valid() bool {
	return s.PwdToken != ""
}

// Login signs in with a password (A3) or a saved token (A2) and keeps
// the session alive across reconnects.
type Login struct {
	Base
	view LoginView

	mu       sync.Mutex
	saved    Session
	loggedIn bool
	name     string
	hooks    []func(context.Context, Session)
}

// NewLogin creates a Login manager. A nil view logs instead.
func NewLogin(conn Sender, view LoginView, logger *zap.Logger) *Login {
	l := &Login{Base: NewBase("login", conn, logger), view: view}
	if l.view == nil {
		l.view = NewLogView(logger)
	}
	return l
}

// OnLoggedIn adds fn to the hooks run after every successful login.
// Hooks run on the connection's event goroutine.
func (l *Login) OnLoggedIn(fn func(context.Context, Session)) {
	l.mu.Lock()
	l.hooks = append(l.hooks, fn)
	l.mu.Unlock()
}

// Restore sets a token saved from an earlier run. The next open logs in
// with it.
func (l *Login) Restore(s Session) {
	l.mu.Lock()
	l.saved = s
	l.mu.Unlock()
}

// Session returns the saved session.
func (l *Login) Session() Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saved
}

// LoggedIn reports whether the current connection is authenticated.
func (l *Login) LoggedIn() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loggedIn
}

// DisplayName returns the employee's name once the server sent it.
func (l *Login) DisplayName() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.name
}

// Login sends a password login.
func (l *Login) Login(ctx context.Context, name, pwd string) error {
	l.mu.Lock()
	deviceID := l.saved.DeviceID
	l.mu.Unlock()
	return l.Send(ctx, "A3", &packets.A3{Name: name, Pwd: pwd, DeviceID: deviceID})
}

// OnOpen logs in with a restored token, if any.
func (l *Login) OnOpen(ctx context.Context) { l.tokenLogin(ctx) }

// OnReopen logs in again with the saved token.
func (l *Login) OnReopen(ctx context.Context) { l.tokenLogin(ctx) }

func (l *Login) tokenLogin(ctx context.Context) {
	s := l.Session()
	if !s.Valid() {
		return
	}
	_ = l.Send(ctx, "A2", &packets.A2{EID: s.EID, DeviceID: s.DeviceID, PwdToken: s.PwdToken})
}

// OnClose drops the authenticated state. The saved token survives for
// the next token login.
func (l *Login) OnClose(err error) {
	l.mu.Lock()
	l.loggedIn = false
	l.name = ""
	l.mu.Unlock()
}

func (l *Login) RegisterHandlers(t *packet.Table) error {
	codec := l.Codec()
	if err := l.Register(t, "A1", packet.Typed(codec, func(ctx context.Context, m *packets.A1) error {
		l.complete(ctx, m.Credentials)
		return nil
	}), "password login reply"); err != nil {
		return err
	}
	if err := l.Register(t, "A9", packet.Typed(codec, func(ctx context.Context, m *packets.A9) error {
		l.complete(ctx, m.Credentials)
		return nil
	}), "token login reply"); err != nil {
		return err
	}
	return l.Register(t, "C3", packet.Typed(codec, func(ctx context.Context, m *packets.C3) error {
		l.mu.Lock()
		l.name = m.Name
		l.mu.Unlock()
		l.view.NameChanged(m.Name)
		return nil
	}), "own name")
}

func (l *Login) complete(ctx context.Context, c packets.Credentials) {
	if c.PwdToken == "" {
		l.Logger().Info("login rejected", zap.String("msg", c.Msg))
		l.mu.Lock()
		l.loggedIn = false
		l.saved = Session{DeviceID: l.saved.DeviceID}
		l.mu.Unlock()
		l.view.LoginFailed(c.Msg)
		return
	}

	s := Session{EID: c.EID, DeviceID: c.DeviceID, PwdToken: c.PwdToken}
	l.mu.Lock()
	l.saved = s
	l.loggedIn = true
	hooks := slices.Clone(l.hooks)
	l.mu.Unlock()

	l.view.LoggedIn(s)
	_ = l.SendEmpty(ctx, "C2")
	for _, fn := range hooks {
		fn(ctx, s)
	}
}
