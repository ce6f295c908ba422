package manager

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/beachbev/beachbev-site/pkg/packet"
)

// Manager is a feature attached to a connection. Lifecycle hooks run on
// the connection's event goroutine, one at a time.
type Manager interface {
	// Name identifies the manager and owns its handler registrations.
	// Names are unique per connection.
	Name() string

	// OnProto is called once, before the manager's first OnOpen, with
	// the connection's schema registry.
	OnProto(reg *packet.Registry)

	// OnOpen is called after the first successful connect.
	OnOpen(ctx context.Context)

	// OnReopen is called after every successful reconnect.
	OnReopen(ctx context.Context)

	// OnClose is called when the connection closes. err is nil for a
	// requested close. Session state must be reset here.
	OnClose(err error)

	// RegisterHandlers adds the manager's packet handlers to t.
	RegisterHandlers(t *packet.Table) error
}

// Sender sends packets over a connection.
type Sender interface {
	Send(ctx context.Context, out packet.Outbound) error
	Codec() *packet.Codec
}

// Base supplies no-op hooks and send helpers. Embed it by value.
type Base struct {
	name   string
	conn   Sender
	logger *zap.Logger
	reg    *packet.Registry
}

// NewBase creates a Base for a manager called name.
func NewBase(name string, conn Sender, logger *zap.Logger) Base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Base{
		name:   name,
		conn:   conn,
		logger: logger.With(zap.String("manager", name)),
	}
}

func (b *Base) Name() string { return b.name }

// OnProto records the registry.
func (b *Base) OnProto(reg *packet.Registry) { b.reg = reg }

func (b *Base) OnOpen(ctx context.Context) {}

func (b *Base) OnReopen(ctx context.Context) {}

func (b *Base) OnClose(err error) {}

func (b *Base) RegisterHandlers(t *packet.Table) error { return nil }

// Registry returns the registry seen in OnProto, or nil before it.
func (b *Base) Registry() *packet.Registry { return b.reg }

// Logger returns the manager's logger.
func (b *Base) Logger() *zap.Logger { return b.logger }

// Codec returns the connection's codec.
func (b *Base) Codec() *packet.Codec { return b.conn.Codec() }

// Send encodes m under key and sends it reliably.
func (b *Base) Send(ctx context.Context, key packet.Key, m packet.Message) error {
	out, err := packet.MakeOutboundMessage(b.conn.Codec(), key, true, packet.DefaultRoute, m)
	if err != nil {
		return err
	}
	return b.send(ctx, out)
}

// SendEmpty sends a packet with no fields under key.
func (b *Base) SendEmpty(ctx context.Context, key packet.Key) error {
	md, ok := b.conn.Codec().Registry().Schema(key)
	if !ok {
		return fmt.Errorf("%w: %s", packet.ErrUnboundKey, key)
	}
	out, err := packet.MakeOutbound(b.conn.Codec(), key, true, packet.DefaultRoute, nil, md.FullName())
	if err != nil {
		return err
	}
	return b.send(ctx, out)
}

func (b *Base) send(ctx context.Context, out packet.Outbound) error {
	if err := b.conn.Send(ctx, out); err != nil {
		b.logger.Warn("send failed", zap.String("key", out.Key().String()), zap.Error(err))
		return err
	}
	b.logger.Debug("sent", zap.String("key", out.Key().String()))
	return nil
}

// Register registers h for key under the manager's name.
func (b *Base) Register(t *packet.Table, key packet.Key, h packet.Handler, description string) error {
	_, err := t.Register(key, h, b.name, description)
	return err
}
