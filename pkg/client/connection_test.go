package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beachbev/beachbev-site/pkg/client"
	"github.com/beachbev/beachbev-site/pkg/manager"
	"github.com/beachbev/beachbev-site/pkg/packet"
	"github.com/beachbev/beachbev-site/pkg/packets"
	"github.com/beachbev/beachbev-site/pkg/protocol"
)

const waitFor = 3 * time.Second

// testServer accepts websocket connections and hands them to the test.
type testServer struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := &testServer{conns: make(chan *websocket.Conn, 8)}
	upgrader := websocket.Upgrader{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- ws
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *testServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *testServer) accept(t *testing.T) *serverConn {
	t.Helper()
	select {
	case ws := <-s.conns:
		t.Cleanup(func() { ws.Close() })
		return &serverConn{ws: ws}
	case <-time.After(waitFor):
		t.Fatal("no connection accepted")
		return nil
	}
}

type serverConn struct {
	ws *websocket.Conn
}

func (sc *serverConn) readFrame(t *testing.T) *protocol.Frame {
	t.Helper()
	sc.ws.SetReadDeadline(time.Now().Add(waitFor))
	_, data, err := sc.ws.ReadMessage()
	require.NoError(t, err)
	f, err := protocol.DecodeFrame(data)
	require.NoError(t, err)
	return f
}

// readPacket returns the next packet, skipping control frames.
func (sc *serverConn) readPacket(t *testing.T) *protocol.Envelope {
	t.Helper()
	for {
		f := sc.readFrame(t)
		if f.Type != protocol.FramePacket {
			continue
		}
		env, err := protocol.DecodeEnvelope(f)
		require.NoError(t, err)
		return env
	}
}

func (sc *serverConn) send(t *testing.T, codec *packet.Codec, key packet.Key, m packet.Message) {
	t.Helper()
	out, err := packet.MakeOutboundMessage(codec, key, true, packet.DefaultRoute, m)
	require.NoError(t, err)
	data, err := out.Frame()
	require.NoError(t, err)
	require.NoError(t, sc.ws.WriteMessage(websocket.BinaryMessage, data))
}

// recorder is a manager that records its lifecycle.
type recorder struct {
	manager.Base
	mu     sync.Mutex
	events []string
	got    chan packet.Inbound
}

func newRecorder(name string, conn *client.Connection) *recorder {
	return &recorder{
		Base: manager.NewBase(name, conn, nil),
		got:  make(chan packet.Inbound, 8),
	}
}

func (r *recorder) record(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) OnProto(reg *packet.Registry) {
	r.Base.OnProto(reg)
	r.record("proto")
}

func (r *recorder) OnOpen(ctx context.Context) { r.record("open") }

func (r *recorder) OnReopen(ctx context.Context) { r.record("reopen") }

func (r *recorder) OnClose(err error) {
	var te *client.TransportError
	switch {
	case err == nil:
		r.record("close")
	case errors.As(err, &te):
		r.record("close:" + te.Op)
	default:
		r.record("close:other")
	}
}

func (r *recorder) RegisterHandlers(t *packet.Table) error {
	return r.Register(t, "B5", func(ctx context.Context, in packet.Inbound) error {
		r.got <- in
		return nil
	}, "record B5")
}

func (r *recorder) waitEvents(t *testing.T, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, r.Events())
	}, waitFor, 5*time.Millisecond, "events = %v, want %v", r.Events(), want)
}

func testCodec() *packet.Codec {
	return packet.NewCodec(packets.Registry())
}

func quickOptions() client.Options {
	o := client.DefaultOptions()
	o.Heartbeat = 0
	o.RequestTimeout = time.Second
	o.BaseDelay = 5 * time.Millisecond
	o.MaxDelay = 20 * time.Millisecond
	o.MaxReconnectAttempts = 3
	return o
}

func TestSendBeforeOpen(t *testing.T) {
	codec := testCodec()
	conn := client.New("ws://127.0.0.1:1/", codec)

	out, err := packet.MakeOutboundMessage(codec, "B0", true, packet.DefaultRoute, &packets.B0{Email: "a@b.c"})
	require.NoError(t, err)

	assert.ErrorIs(t, conn.Send(context.Background(), out), client.ErrNotOpen)
	_, err = conn.Request(context.Background(), out, "B1")
	assert.ErrorIs(t, err, client.ErrNotOpen)
	assert.Equal(t, client.Disconnected, conn.State())
}

func TestConnectFailureReturnsTransportError(t *testing.T) {
	srv := newTestServer(t)
	url := srv.url()
	srv.srv.Close()

	conn := client.New(url, testCodec(), client.WithOptions(quickOptions()))
	err := conn.Connect(context.Background())

	var te *client.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "dial", te.Op)
	assert.Equal(t, client.Disconnected, conn.State())
}

func TestConnectFiresHooksAndDispatches(t *testing.T) {
	srv := newTestServer(t)
	codec := testCodec()
	conn := client.New(srv.url(), codec, client.WithOptions(quickOptions()))
	rec := newRecorder("rec", conn)
	require.NoError(t, conn.Attach(rec))

	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Close()
	sc := srv.accept(t)

	assert.Equal(t, client.Open, conn.State())
	assert.Equal(t, []string{"proto", "open"}, rec.Events())
	assert.NotNil(t, rec.Registry())

	// Outbound reaches the server.
	require.NoError(t, rec.Send(context.Background(), "B0", &packets.B0{Email: "new@beachbev.com"}))
	env := sc.readPacket(t)
	assert.Equal(t, "B0", env.Key)
	assert.True(t, env.Reliable)

	var b0 packets.B0
	require.NoError(t, codec.DecodeInto(packet.InboundFromEnvelope(env), &b0))
	assert.Equal(t, "new@beachbev.com", b0.Email)

	// Inbound is dispatched to the table.
	sc.send(t, codec, "B5", &packets.B5{VerifiedEmail: "v@beachbev.com"})
	select {
	case in := <-rec.got:
		assert.Equal(t, packet.Key("B5"), in.Key)
	case <-time.After(waitFor):
		t.Fatal("B5 not dispatched")
	}

	// Connect is not valid while Open.
	assert.ErrorIs(t, conn.Connect(context.Background()), client.ErrInvalidTransition)
}

func TestRequest(t *testing.T) {
	srv := newTestServer(t)
	codec := testCodec()
	conn := client.New(srv.url(), codec, client.WithOptions(quickOptions()))

	var dispatched []uint64
	var mu sync.Mutex
	_, err := conn.Table().Register("E3", packet.Typed(codec, func(ctx context.Context, m *packets.E3) error {
		mu.Lock()
		dispatched = append(dispatched, m.EID)
		mu.Unlock()
		return nil
	}), "test", "")
	require.NoError(t, err)

	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Close()
	sc := srv.accept(t)

	go func() {
		env := sc.readPacket(t)
		if env.Key != "E2" {
			return
		}
		sc.send(t, codec, "E3", &packets.E3{Success: true, EID: 12})
		sc.send(t, codec, "E3", &packets.E3{Success: true, EID: 13})
	}()

	out, err := packet.MakeOutboundMessage(codec, "E2", true, packet.DefaultRoute, &packets.E2{EID: 12, AState: 1})
	require.NoError(t, err)
	in, err := conn.Request(context.Background(), out, "E3")
	require.NoError(t, err)

	var e3 packets.E3
	require.NoError(t, codec.DecodeInto(in, &e3))
	assert.Equal(t, uint64(12), e3.EID)

	// Every arrival still reaches the table.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dispatched) == 2
	}, waitFor, 5*time.Millisecond)
}

func TestRequestTimeout(t *testing.T) {
	srv := newTestServer(t)
	codec := testCodec()
	opts := quickOptions()
	opts.RequestTimeout = 50 * time.Millisecond
	conn := client.New(srv.url(), codec, client.WithOptions(opts))

	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Close()
	srv.accept(t)

	out, err := packet.MakeOutbound(codec, "D3", true, packet.DefaultRoute, nil, packets.SchemaName("D3"))
	require.NoError(t, err)
	_, err = conn.Request(context.Background(), out, "D4")
	assert.ErrorIs(t, err, client.ErrRequestTimeout)
}

func TestReconnectFiresOnReopen(t *testing.T) {
	srv := newTestServer(t)
	codec := testCodec()
	m := client.NewMetrics(prometheus.NewRegistry(), "test")
	conn := client.New(srv.url(), codec, client.WithOptions(quickOptions()), client.WithMetrics(m))
	rec := newRecorder("rec", conn)
	require.NoError(t, conn.Attach(rec))

	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Close()

	first := srv.accept(t)
	first.ws.Close()

	second := srv.accept(t)
	rec.waitEvents(t, "proto", "open", "close:read", "reopen")
	assert.Equal(t, client.Open, conn.State())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Reconnects.WithLabelValues("success")))

	// Handlers survive the reconnect without duplication.
	assert.Equal(t, 1, conn.Table().Len("B5"))
	second.send(t, codec, "B5", &packets.B5{})
	select {
	case <-rec.got:
	case <-time.After(waitFor):
		t.Fatal("B5 not dispatched after reconnect")
	}
}

func TestGiveUpAfterMaxAttempts(t *testing.T) {
	srv := newTestServer(t)
	opts := quickOptions()
	opts.MaxReconnectAttempts = 2

	gaveUp := make(chan error, 1)
	conn := client.New(srv.url(), testCodec(), client.WithOptions(opts), client.WithGiveUp(func(err error) {
		gaveUp <- err
	}))
	rec := newRecorder("rec", conn)
	require.NoError(t, conn.Attach(rec))
	require.NoError(t, conn.Connect(context.Background()))

	sc := srv.accept(t)
	srv.srv.Close()
	sc.ws.Close()

	select {
	case err := <-gaveUp:
		assert.ErrorIs(t, err, client.ErrGaveUp)
		var ge *client.GiveUpError
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, 2, ge.Attempts)
	case <-time.After(waitFor):
		t.Fatal("never gave up")
	}
	assert.Equal(t, client.GaveUp, conn.State())
	assert.Equal(t, []string{"proto", "open", "close:read"}, rec.Events())

	require.NoError(t, conn.Close())
	assert.Equal(t, client.Disconnected, conn.State())
}

func TestCloseFiresOnCloseAndStopsReconnecting(t *testing.T) {
	srv := newTestServer(t)
	conn := client.New(srv.url(), testCodec(), client.WithOptions(quickOptions()))
	rec := newRecorder("rec", conn)
	require.NoError(t, conn.Attach(rec))
	require.NoError(t, conn.Connect(context.Background()))
	sc := srv.accept(t)

	require.NoError(t, conn.Close())
	assert.Equal(t, client.Disconnected, conn.State())
	assert.Equal(t, []string{"proto", "open", "close"}, rec.Events())

	// The server is told why.
	f := sc.readFrame(t)
	require.Equal(t, protocol.FrameControl, f.Type)
	ct, _, err := protocol.DecodeControl(f)
	require.NoError(t, err)
	assert.Equal(t, protocol.ControlClose, ct)

	select {
	case <-srv.conns:
		t.Fatal("reconnected after Close")
	case <-time.After(50 * time.Millisecond):
	}

	// Close is idempotent, and a later Connect is a first open again.
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Close()
	srv.accept(t)
	assert.Equal(t, []string{"proto", "open", "close", "open"}, rec.Events())
}

func TestConnectFromClosedReopens(t *testing.T) {
	srv := newTestServer(t)
	opts := quickOptions()
	opts.MaxReconnectAttempts = 0
	conn := client.New(srv.url(), testCodec(), client.WithOptions(opts))
	rec := newRecorder("rec", conn)
	require.NoError(t, conn.Attach(rec))
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Close()

	srv.accept(t).ws.Close()
	rec.waitEvents(t, "proto", "open", "close:read")
	assert.Equal(t, client.Closed, conn.State())

	require.NoError(t, conn.Connect(context.Background()))
	srv.accept(t)
	assert.Equal(t, client.Open, conn.State())
	assert.Equal(t, []string{"proto", "open", "close:read", "reopen"}, rec.Events())
}

func TestAttachRejectsDuplicateName(t *testing.T) {
	conn := client.New("ws://127.0.0.1:1/", testCodec())
	first := newRecorder("email", conn)
	second := newRecorder("email", conn)

	require.NoError(t, conn.Attach(first))
	assert.ErrorIs(t, conn.Attach(second), client.ErrDuplicateManager)
	assert.Equal(t, 1, conn.Table().Len("B5"))

	// Detaching a manager that was never attached leaves the other's handlers.
	conn.Detach(second)
	assert.Equal(t, 1, conn.Table().Len("B5"))

	conn.Detach(first)
	require.NoError(t, conn.Attach(second))
	assert.Equal(t, 1, conn.Table().Len("B5"))
}

func TestAttachWhileClosedGetsProtoOnNextOpen(t *testing.T) {
	srv := newTestServer(t)
	opts := quickOptions()
	opts.MaxReconnectAttempts = 0
	conn := client.New(srv.url(), testCodec(), client.WithOptions(opts))
	rec := newRecorder("rec", conn)
	require.NoError(t, conn.Attach(rec))
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Close()

	srv.accept(t).ws.Close()
	rec.waitEvents(t, "proto", "open", "close:read")
	require.Equal(t, client.Closed, conn.State())

	late := newRecorder("late", conn)
	require.NoError(t, conn.Attach(late))
	assert.Empty(t, late.Events())

	require.NoError(t, conn.Connect(context.Background()))
	srv.accept(t)
	assert.Equal(t, []string{"proto", "open"}, late.Events())
	assert.NotNil(t, late.Registry())
	assert.Equal(t, []string{"proto", "open", "close:read", "reopen"}, rec.Events())
}

func TestAttachPendingAtCloseIsDropped(t *testing.T) {
	srv := newTestServer(t)
	codec := testCodec()
	conn := client.New(srv.url(), codec, client.WithOptions(quickOptions()))

	entered := make(chan struct{}, 1)
	_, err := conn.Table().Register("B5", func(ctx context.Context, in packet.Inbound) error {
		entered <- struct{}{}
		<-ctx.Done()
		return nil
	}, "blocker", "")
	require.NoError(t, err)

	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Close()
	sc := srv.accept(t)

	sc.send(t, codec, "B5", &packets.B5{})
	select {
	case <-entered:
	case <-time.After(waitFor):
		t.Fatal("B5 handler never ran")
	}

	// The event goroutine is busy, so the hooks are only queued.
	late := newRecorder("late", conn)
	require.NoError(t, conn.Attach(late))
	require.NoError(t, conn.Close())
	assert.Empty(t, late.Events())

	require.NoError(t, conn.Connect(context.Background()))
	srv.accept(t)
	assert.Equal(t, []string{"proto", "open"}, late.Events())

	// Nothing stale runs on the new session.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"proto", "open"}, late.Events())
}

func TestAttachTwiceAndDetach(t *testing.T) {
	conn := client.New("ws://127.0.0.1:1/", testCodec())
	rec := newRecorder("rec", conn)

	require.NoError(t, conn.Attach(rec))
	require.NoError(t, conn.Attach(rec))
	assert.Equal(t, 1, conn.Table().Len("B5"))

	conn.Detach(rec)
	assert.Equal(t, 0, conn.Table().Len("B5"))

	require.NoError(t, conn.Attach(rec))
	assert.Equal(t, 1, conn.Table().Len("B5"))
}

func TestAttachWhileOpen(t *testing.T) {
	srv := newTestServer(t)
	conn := client.New(srv.url(), testCodec(), client.WithOptions(quickOptions()))
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Close()
	srv.accept(t)

	rec := newRecorder("late", conn)
	require.NoError(t, conn.Attach(rec))
	rec.waitEvents(t, "proto", "open")
}

func TestHeartbeat(t *testing.T) {
	srv := newTestServer(t)
	mock := clock.NewMock()
	opts := quickOptions()
	opts.Heartbeat = 30 * time.Second
	conn := client.New(srv.url(), testCodec(), client.WithOptions(opts), client.WithClock(mock))
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Close()
	sc := srv.accept(t)

	mock.Add(30 * time.Second)

	f := sc.readFrame(t)
	require.Equal(t, protocol.FrameControl, f.Type)
	ct, data, err := protocol.DecodeControl(f)
	require.NoError(t, err)
	require.Equal(t, protocol.ControlPing, ct)
	assert.Equal(t, uint64(mock.Now().UnixMilli()), data.(*protocol.PingPong).Timestamp)
}

func TestServerPingIsAnswered(t *testing.T) {
	srv := newTestServer(t)
	conn := client.New(srv.url(), testCodec(), client.WithOptions(quickOptions()))
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Close()
	sc := srv.accept(t)

	ct, pp := protocol.NewPing(123)
	data, err := protocol.EncodeControl(ct, pp)
	require.NoError(t, err)
	require.NoError(t, sc.ws.WriteMessage(websocket.BinaryMessage, data))

	f := sc.readFrame(t)
	ct, reply, err := protocol.DecodeControl(f)
	require.NoError(t, err)
	assert.Equal(t, protocol.ControlPong, ct)
	assert.Equal(t, uint64(123), reply.(*protocol.PingPong).Timestamp)
}
