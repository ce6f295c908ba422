package client

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/beachbev/beachbev-site/pkg/packet"
	"github.com/beachbev/beachbev-site/pkg/protocol"
)

// reader feeds raw messages from one socket to the event loop. err is
// valid once msgs is closed.
type reader struct {
	msgs chan []byte
	err  error
}

func (c *Connection) readLoop(ctx context.Context, ws *websocket.Conn, rd *reader) {
	defer close(rd.msgs)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			rd.err = err
			return
		}
		select {
		case rd.msgs <- data:
		case <-ctx.Done():
			rd.err = ctx.Err()
			return
		}
	}
}

// loop is the event goroutine of one run. It serves the socket until it
// drops, then reconnects until the run is cancelled or gives up.
func (c *Connection) loop(r *run, ws *websocket.Conn, ticker *clock.Ticker) {
	defer close(r.done)

	for {
		err := c.serve(r, ws, ticker)

		c.setSocket(nil)
		ws.Close()

		if r.ctx.Err() != nil {
			c.failWaiters(ErrClosed)
			if c.state.transition(Open, Closed) == nil {
				c.fireClose(nil)
			}
			c.logger.Info("connection closed")
			return
		}

		terr := &TransportError{Op: "read", URL: c.url, Err: err}
		c.logger.Warn("connection lost", zap.Error(err))
		c.failWaiters(terr)
		if c.state.transition(Open, Closed) == nil {
			c.fireClose(terr)
		}

		ws = c.reconnect(r)
		if ws == nil {
			return
		}
		ticker = c.newTicker()
		c.fireOpen(r.ctx, true)
	}
}

// serve runs the event loop for one socket.
func (c *Connection) serve(r *run, ws *websocket.Conn, ticker *clock.Ticker) error {
	ctx := r.ctx
	var tick <-chan time.Time
	if ticker != nil {
		defer ticker.Stop()
		tick = ticker.C
	}

	rd := &reader{msgs: make(chan []byte, 64)}
	go c.readLoop(ctx, ws, rd)

	for {
		select {
		case data, ok := <-rd.msgs:
			if !ok {
				return rd.err
			}
			c.handleMessage(ctx, data)

		case fn := <-r.tasks:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fn(ctx)

		case <-tick:
			c.ping()

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) handleMessage(ctx context.Context, data []byte) {
	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		c.logger.Warn("frame decode error", zap.Error(err), zap.Int("bytes", len(data)))
		return
	}
	if c.metrics != nil {
		c.metrics.Received.WithLabelValues(frame.Type.String()).Inc()
	}

	switch frame.Type {
	case protocol.FramePacket:
		env, err := protocol.DecodeEnvelope(frame)
		if err != nil {
			c.logger.Warn("packet decode error", zap.Error(err))
			return
		}
		in := packet.InboundFromEnvelope(env)
		c.answer(in)
		if err := c.table.Dispatch(ctx, in); err != nil {
			c.logger.Debug("dispatch finished with errors", zap.String("key", in.Key.String()), zap.Error(err))
		}

	case protocol.FrameControl:
		c.handleControl(frame)
	}
}

func (c *Connection) handleControl(frame *protocol.Frame) {
	ct, data, err := protocol.DecodeControl(frame)
	if err != nil {
		c.logger.Warn("control decode error", zap.Error(err))
		return
	}

	switch ct {
	case protocol.ControlPing:
		if pp, ok := data.(*protocol.PingPong); ok {
			pct, pong := protocol.NewPong(pp.Timestamp)
			if err := c.writeControl(pct, pong); err != nil {
				c.logger.Warn("pong error", zap.Error(err))
			}
		}

	case protocol.ControlPong:
		if pp, ok := data.(*protocol.PingPong); ok {
			rtt := time.Duration(c.clock.Now().UnixMilli()-int64(pp.Timestamp)) * time.Millisecond
			c.mu.Lock()
			c.lastPongRTT = rtt
			c.mu.Unlock()
			c.logger.Debug("received pong", zap.Duration("rtt", rtt))
		}

	case protocol.ControlClose:
		if cm, ok := data.(*protocol.CloseMessage); ok {
			c.logger.Info("server closing", zap.Stringer("reason", cm.Reason), zap.String("message", cm.Message))
		}
	}
}

func (c *Connection) ping() {
	ct, pp := protocol.NewPing(uint64(c.clock.Now().UnixMilli()))
	if err := c.writeControl(ct, pp); err != nil {
		c.logger.Warn("ping error", zap.Error(err))
	}
}

func (c *Connection) newTicker() *clock.Ticker {
	if c.opts.Heartbeat <= 0 {
		return nil
	}
	return c.clock.Ticker(c.opts.Heartbeat)
}

// reconnect dials with exponential backoff. It returns nil when the run
// is cancelled, reconnection is disabled or the attempts are exhausted.
func (c *Connection) reconnect(r *run) *websocket.Conn {
	max := c.opts.MaxReconnectAttempts
	if max <= 0 {
		c.logger.Info("reconnect disabled; staying closed")
		return nil
	}
	if err := c.state.transition(Closed, Reopening); err != nil {
		c.logger.Debug("reconnect skipped", zap.Error(err))
		return nil
	}

	var last error
	for attempt := 1; attempt <= max; attempt++ {
		delay := c.opts.Backoff(attempt)
		c.logger.Info("reconnecting", zap.Int("attempt", attempt), zap.Duration("delay", delay))

		timer := c.clock.Timer(delay)
		select {
		case <-timer.C:
		case <-r.ctx.Done():
			timer.Stop()
			return nil
		}

		ws, err := c.dial(r.ctx)
		if err == nil {
			if !c.reopened(r, ws) {
				ws.Close()
				return nil
			}
			c.countReconnect("success")
			c.logger.Info("reconnected", zap.Int("attempt", attempt))
			return ws
		}
		if r.ctx.Err() != nil {
			return nil
		}
		c.countReconnect("failure")
		c.logger.Warn("reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
		last = err
	}

	if err := c.state.transition(Reopening, GaveUp); err != nil {
		return nil
	}
	gerr := &GiveUpError{Attempts: max, Last: last}
	c.logger.Error("giving up", zap.Error(gerr))
	if c.onGiveUp != nil {
		c.onGiveUp(gerr)
	}
	return nil
}

// reopened installs ws unless Close has cancelled the run.
func (c *Connection) reopened(r *run, ws *websocket.Conn) bool {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if r.ctx.Err() != nil {
		return false
	}
	if err := c.state.transition(Reopening, Open); err != nil {
		return false
	}
	c.setSocket(ws)
	return true
}

func (c *Connection) countReconnect(result string) {
	if c.metrics != nil {
		c.metrics.Reconnects.WithLabelValues(result).Inc()
	}
}
