package client

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/beachbev/beachbev-site/pkg/manager"
	"github.com/beachbev/beachbev-site/pkg/packet"
	"github.com/beachbev/beachbev-site/pkg/protocol"
)

const tracerName = "github.com/beachbev/beachbev-site/pkg/client"

// Connection is a packet connection to the BeachBev server. It owns the
// websocket, dispatches inbound packets to its table, drives manager
// lifecycle hooks and reconnects after transport drops.
//
// Dispatch and lifecycle hooks run on one event goroutine. Handlers must
// not call Request or Close, which wait on that goroutine.
type Connection struct {
	id       string
	url      string
	opts     Options
	codec    *packet.Codec
	table    *packet.Table
	dialer   *websocket.Dialer
	logger   *zap.Logger
	clock    clock.Clock
	metrics  *Metrics
	tracer   trace.Tracer
	onGiveUp func(error)

	state machine

	// lifeMu serializes Connect and Close.
	lifeMu sync.Mutex
	run    *run

	mu          sync.Mutex
	ws          *websocket.Conn
	managers    []*attached
	session     uint64
	waiters     map[packet.Key][]chan reply
	lastPongRTT time.Duration

	writeMu sync.Mutex
}

// run is one Connect..Close span of the event loop. Tasks posted to a
// run are dropped with it.
type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	tasks  chan func(context.Context)
}

// attached is a manager and the hooks it has seen. opened is the session
// in which it last saw OnOpen or OnReopen, 0 if never.
type attached struct {
	m        manager.Manager
	proto    bool
	opened   uint64
	detached bool
}

type reply struct {
	in  packet.Inbound
	err error
}

// New creates a disconnected Connection to url.
func New(url string, codec *packet.Codec, opts ...Option) *Connection {
	c := &Connection{
		id:      uuid.NewString(),
		url:     url,
		opts:    DefaultOptions(),
		codec:   codec,
		clock:   clock.New(),
		waiters: make(map[packet.Key][]chan reply),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.With(zap.String("component", "client"), zap.String("conn_id", c.id))
	if c.table == nil {
		c.table = packet.NewTable(packet.WithRegistry(codec.Registry()), packet.WithLogger(c.logger))
	}
	if c.dialer == nil {
		c.dialer = &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: c.opts.HandshakeTimeout,
		}
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	c.state.onChange = c.stateChanged

	return c
}

// ID returns the connection's unique ID.
func (c *Connection) ID() string { return c.id }

// URL returns the server URL.
func (c *Connection) URL() string { return c.url }

// State returns the current lifecycle state.
func (c *Connection) State() State { return c.state.Current() }

// Codec returns the packet codec.
func (c *Connection) Codec() *packet.Codec { return c.codec }

// Table returns the dispatch table.
func (c *Connection) Table() *packet.Table { return c.table }

// RTT returns the round trip time measured by the last heartbeat.
func (c *Connection) RTT() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPongRTT
}

func (c *Connection) stateChanged(from, to State) {
	c.logger.Debug("state", zap.Stringer("from", from), zap.Stringer("to", to))
	if c.metrics != nil {
		c.metrics.State.Set(float64(to))
	}
}

// Attach registers m's handlers and subscribes it to lifecycle hooks.
// Attaching the same manager twice is a no-op; another manager with the
// same name is rejected. If the connection is already Open, m's OnProto
// and OnOpen run on the event goroutine. Otherwise they run on the next
// open.
func (c *Connection) Attach(m manager.Manager) error {
	c.mu.Lock()
	for _, a := range c.managers {
		if a.m == m {
			c.mu.Unlock()
			return nil
		}
		if a.m.Name() == m.Name() {
			c.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrDuplicateManager, m.Name())
		}
	}
	c.mu.Unlock()

	if err := m.RegisterHandlers(c.table); err != nil {
		c.table.UnregisterOwner(m.Name())
		return fmt.Errorf("client: attach %s: %w", m.Name(), err)
	}

	a := &attached{m: m}
	c.mu.Lock()
	c.managers = append(c.managers, a)
	c.mu.Unlock()

	c.logger.Debug("manager attached", zap.String("manager", m.Name()))

	if c.State() == Open {
		c.post(func(ctx context.Context) {
			if c.State() != Open {
				return
			}
			c.mu.Lock()
			session := c.session
			c.mu.Unlock()
			c.openManager(ctx, a, session, false)
		})
	}
	return nil
}

// Detach unregisters m's handlers and stops its hooks.
func (c *Connection) Detach(m manager.Manager) {
	found := false
	c.mu.Lock()
	for i, a := range c.managers {
		if a.m == m {
			a.detached = true
			c.managers = append(c.managers[:i:i], c.managers[i+1:]...)
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return
	}

	n := c.table.UnregisterOwner(m.Name())
	c.logger.Debug("manager detached", zap.String("manager", m.Name()), zap.Int("handlers", n))
}

func (c *Connection) snapshotManagers() []*attached {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*attached(nil), c.managers...)
}

// post queues fn for the event goroutine of the current run.
func (c *Connection) post(fn func(context.Context)) {
	c.lifeMu.Lock()
	r := c.run
	c.lifeMu.Unlock()
	if r == nil {
		return
	}
	select {
	case r.tasks <- fn:
	case <-r.ctx.Done():
	}
}

// Connect dials the server. From Disconnected it is a first connect and
// managers see OnOpen; from Closed it is a manual reconnect and managers
// see OnReopen. Hooks have run by the time Connect returns.
func (c *Connection) Connect(ctx context.Context) error {
	c.lifeMu.Lock()
	from := c.state.Current()
	var to State
	switch from {
	case Disconnected:
		to = Connecting
	case Closed:
		to = Reopening
	default:
		c.lifeMu.Unlock()
		return &TransitionError{From: from, To: Connecting, Current: from}
	}
	if err := c.state.transition(from, to); err != nil {
		c.lifeMu.Unlock()
		return err
	}
	c.lifeMu.Unlock()

	ws, err := c.dial(ctx)
	if err != nil {
		_ = c.state.transition(to, from)
		return err
	}

	c.lifeMu.Lock()
	if err := c.state.transition(to, Open); err != nil {
		// Close won the race.
		c.lifeMu.Unlock()
		ws.Close()
		return err
	}
	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{
		ctx:    runCtx,
		cancel: cancel,
		done:   make(chan struct{}),
		tasks:  make(chan func(context.Context), 16),
	}
	c.run = r
	c.setSocket(ws)
	c.lifeMu.Unlock()

	c.logger.Info("connected", zap.String("url", c.url), zap.Bool("reopen", from == Closed))

	ticker := c.newTicker()
	c.fireOpen(runCtx, from == Closed)
	go c.loop(r, ws, ticker)
	return nil
}

// Close closes the connection and stops reconnecting. Managers see
// OnClose(nil) if the connection was Open. Close is safe to call in any
// state and ends in Disconnected.
func (c *Connection) Close() error {
	c.lifeMu.Lock()
	r := c.run
	c.run = nil
	c.lifeMu.Unlock()

	if r != nil {
		r.cancel()
		c.sendClose()
		<-r.done
	}

	c.lifeMu.Lock()
	c.state.reset()
	c.lifeMu.Unlock()
	return nil
}

// Send writes out to the server. It fails with ErrNotOpen unless the
// connection is Open.
func (c *Connection) Send(ctx context.Context, out packet.Outbound) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.State() != Open {
		return ErrNotOpen
	}
	data, err := out.Frame()
	if err != nil {
		return err
	}
	if err := c.write(data); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.Sent.WithLabelValues(out.Key().String()).Inc()
	}
	return nil
}

// Request sends out and waits for the next packet keyed replyKey. The
// reply is also dispatched to the table as usual. Only the first
// arriving reply answers a request.
func (c *Connection) Request(ctx context.Context, out packet.Outbound, replyKey packet.Key) (packet.Inbound, error) {
	requestID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "packet.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("beachbev.request_id", requestID),
			attribute.String("beachbev.key", out.Key().String()),
			attribute.String("beachbev.reply_key", replyKey.String()),
			attribute.String("beachbev.conn_id", c.id),
		))
	defer span.End()

	if c.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
		defer cancel()
	}

	ch := c.addWaiter(replyKey)
	defer c.removeWaiter(replyKey, ch)

	start := time.Now()
	if err := c.Send(ctx, out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return packet.Inbound{}, err
	}

	select {
	case rep := <-ch:
		if rep.err != nil {
			span.RecordError(rep.err)
			span.SetStatus(codes.Error, rep.err.Error())
			return packet.Inbound{}, rep.err
		}
		if c.metrics != nil {
			c.metrics.RequestDuration.WithLabelValues(out.Key().String()).Observe(time.Since(start).Seconds())
		}
		span.SetStatus(codes.Ok, "")
		return rep.in, nil
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: waiting for %s (request %s)", ErrRequestTimeout, replyKey, requestID)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("request abandoned", zap.String("request_id", requestID), zap.Error(err))
		return packet.Inbound{}, err
	}
}

func (c *Connection) addWaiter(key packet.Key) chan reply {
	ch := make(chan reply, 1)
	c.mu.Lock()
	c.waiters[key] = append(c.waiters[key], ch)
	c.mu.Unlock()
	return ch
}

func (c *Connection) removeWaiter(key packet.Key, ch chan reply) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.waiters[key]
	for i, w := range list {
		if w == ch {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(c.waiters, key)
	} else {
		c.waiters[key] = list
	}
}

// answer hands in to the oldest request waiting for its key.
func (c *Connection) answer(in packet.Inbound) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.waiters[in.Key]
	if len(list) == 0 {
		return
	}
	list[0] <- reply{in: in}
	if len(list) == 1 {
		delete(c.waiters, in.Key)
	} else {
		c.waiters[in.Key] = list[1:]
	}
}

func (c *Connection) failWaiters(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, list := range c.waiters {
		for _, ch := range list {
			ch <- reply{err: err}
		}
		delete(c.waiters, key)
	}
}

// fireOpen starts a new session and opens every attached manager.
func (c *Connection) fireOpen(ctx context.Context, reopen bool) {
	c.mu.Lock()
	c.session++
	session := c.session
	c.mu.Unlock()

	for _, a := range c.snapshotManagers() {
		c.openManager(ctx, a, session, reopen)
	}
}

// openManager runs a's open hooks once per session. OnProto runs before
// a manager's first open; a manager that was never opened sees OnOpen
// even on a reopen.
func (c *Connection) openManager(ctx context.Context, a *attached, session uint64, reopen bool) {
	c.mu.Lock()
	if a.detached || a.opened == session {
		c.mu.Unlock()
		return
	}
	proto := !a.proto
	first := a.opened == 0
	a.proto = true
	a.opened = session
	c.mu.Unlock()

	m := a.m
	if proto {
		c.safeHook(m, "OnProto", func() { m.OnProto(c.codec.Registry()) })
	}
	if reopen && !first {
		c.safeHook(m, "OnReopen", func() { m.OnReopen(ctx) })
	} else {
		c.safeHook(m, "OnOpen", func() { m.OnOpen(ctx) })
	}
}

// fireClose closes the managers opened in the current session.
func (c *Connection) fireClose(err error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	for _, a := range c.snapshotManagers() {
		c.mu.Lock()
		open := !a.detached && a.opened == session
		c.mu.Unlock()
		if open {
			c.safeHook(a.m, "OnClose", func() { a.m.OnClose(err) })
		}
	}
}

// safeHook runs a manager hook, recovering panics.
func (c *Connection) safeHook(m manager.Manager, hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("manager hook panicked",
				zap.String("manager", m.Name()),
				zap.String("hook", hook),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	fn()
}

func (c *Connection) dial(ctx context.Context) (*websocket.Conn, error) {
	ws, resp, err := c.dialer.DialContext(ctx, c.url, c.opts.Header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (HTTP %d)", err, resp.StatusCode)
		}
		return nil, &TransportError{Op: "dial", URL: c.url, Err: err}
	}
	ws.SetReadLimit(protocol.FrameHeaderSize + protocol.MaxPayloadSize)
	return ws, nil
}

func (c *Connection) setSocket(ws *websocket.Conn) {
	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
}

func (c *Connection) socket() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws
}

func (c *Connection) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ws := c.socket()
	if ws == nil {
		return ErrNotOpen
	}
	if c.opts.WriteTimeout > 0 {
		ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}
	if err := ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return &TransportError{Op: "write", URL: c.url, Err: err}
	}
	return nil
}

func (c *Connection) writeControl(ct protocol.ControlType, payload any) error {
	data, err := protocol.EncodeControl(ct, payload)
	if err != nil {
		return err
	}
	return c.write(data)
}

// sendClose tells the server we are leaving and closes the socket,
// which unblocks the read goroutine.
func (c *Connection) sendClose() {
	ws := c.socket()
	if ws == nil {
		return
	}
	ct, cm := protocol.NewClose(protocol.CloseNormal, "")
	if err := c.writeControl(ct, cm); err != nil {
		c.logger.Debug("close frame not sent", zap.Error(err))
	}

	c.writeMu.Lock()
	ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	ws.Close()
}
