package client

import (
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/beachbev/beachbev-site/pkg/packet"
)

// Options holds connection timing and reconnect settings.
type Options struct {
	// HandshakeTimeout bounds the websocket handshake.
	HandshakeTimeout time.Duration

	// RequestTimeout bounds Request when ctx has no earlier deadline.
	// 0 means wait for ctx only.
	RequestTimeout time.Duration

	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration

	// Heartbeat is the ping interval. 0 disables pings.
	Heartbeat time.Duration

	// MaxReconnectAttempts is the number of consecutive failed
	// reconnects before GaveUp. 0 disables reconnection.
	MaxReconnectAttempts int

	// BaseDelay is the first reconnect delay; each attempt doubles it
	// up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Header is sent with the handshake.
	Header http.Header
}

// DefaultOptions returns the default connection options.
func DefaultOptions() Options {
	return Options{
		HandshakeTimeout:     10 * time.Second,
		RequestTimeout:       15 * time.Second,
		WriteTimeout:         10 * time.Second,
		Heartbeat:            30 * time.Second,
		MaxReconnectAttempts: 5,
		BaseDelay:            500 * time.Millisecond,
		MaxDelay:             30 * time.Second,
	}
}

// Backoff returns the delay before reconnect attempt n (1-based).
func (o Options) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := o.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if d >= o.MaxDelay || d <= 0 {
			return o.MaxDelay
		}
	}
	if o.MaxDelay > 0 && d > o.MaxDelay {
		return o.MaxDelay
	}
	return d
}

// Option configures a Connection.
type Option func(*Connection)

// WithOptions replaces the connection options.
func WithOptions(o Options) Option {
	return func(c *Connection) {
		c.opts = o
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Connection) {
		c.logger = l
	}
}

// WithClock sets the clock driving heartbeats and reconnect delays.
func WithClock(clk clock.Clock) Option {
	return func(c *Connection) {
		c.clock = clk
	}
}

// WithMetrics enables connection metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Connection) {
		c.metrics = m
	}
}

// WithTable dispatches inbound packets to t instead of a private table.
func WithTable(t *packet.Table) Option {
	return func(c *Connection) {
		c.table = t
	}
}

// WithTracer sets the tracer used for requests.
func WithTracer(t trace.Tracer) Option {
	return func(c *Connection) {
		c.tracer = t
	}
}

// WithDialer sets the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Connection) {
		c.dialer = d
	}
}

// WithGiveUp sets a hook called once the connection enters GaveUp.
func WithGiveUp(fn func(error)) Option {
	return func(c *Connection) {
		c.onGiveUp = fn
	}
}
