package manager_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beachbev/beachbev-site/pkg/manager"
	"github.com/beachbev/beachbev-site/pkg/packet"
	"github.com/beachbev/beachbev-site/pkg/packets"
)

// fakeConn records everything sent through it.
type fakeConn struct {
	codec *packet.Codec

	mu   sync.Mutex
	sent []packet.Outbound
	err  error
}

func newFakeConn() *fakeConn {
	return &fakeConn{codec: packet.NewCodec(packets.Registry())}
}

func (f *fakeConn) Send(ctx context.Context, out packet.Outbound) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, out)
	return nil
}

func (f *fakeConn) Codec() *packet.Codec { return f.codec }

func (f *fakeConn) keys() []packet.Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]packet.Key, 0, len(f.sent))
	for _, out := range f.sent {
		keys = append(keys, out.Key())
	}
	return keys
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	f.sent = nil
	f.mu.Unlock()
}

// last decodes the most recent packet sent under key into m.
func (f *fakeConn) last(t *testing.T, key packet.Key, m packet.Message) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].Key() == key {
			in := packet.Inbound{Key: key, Payload: f.sent[i].Payload()}
			require.NoError(t, f.codec.DecodeInto(in, m))
			return
		}
	}
	t.Fatalf("nothing sent under %s", key)
}

// attach registers m's handlers on a fresh table the way a connection
// would.
func attach(t *testing.T, conn *fakeConn, m manager.Manager) *packet.Table {
	t.Helper()
	table := packet.NewTable(packet.WithRegistry(conn.codec.Registry()))
	require.NoError(t, m.RegisterHandlers(table))
	m.OnProto(conn.codec.Registry())
	return table
}

// deliver dispatches m as if the server had sent it under key.
func deliver(t *testing.T, table *packet.Table, conn *fakeConn, key packet.Key, m packet.Message) error {
	t.Helper()
	out, err := packet.MakeOutboundMessage(conn.codec, key, true, packet.DefaultRoute, m)
	require.NoError(t, err)
	return table.Dispatch(context.Background(), packet.Inbound{Key: key, Payload: out.Payload()})
}

// recordingView implements every view and keeps a log of calls.
type recordingView struct {
	events     []string
	session    manager.Session
	email      manager.EmailStatus
	accepted   []uint64
	unaccepted []uint64
	resumes    map[uint64][]string
	files      []manager.ResumeFile
}

func (v *recordingView) add(format string, args ...any) {
	v.events = append(v.events, fmt.Sprintf(format, args...))
}

func (v *recordingView) LoggedIn(s manager.Session) {
	v.session = s
	v.add("logged-in")
}

func (v *recordingView) LoginFailed(msg string) { v.add("login-failed:%s", msg) }

func (v *recordingView) NameChanged(name string) { v.add("name:%s", name) }

func (v *recordingView) ShowEmail(s manager.EmailStatus) {
	v.email = s
	v.add("email:%s", s.State())
}

func (v *recordingView) ShowEmailError(msg string) { v.add("email-error:%s", msg) }

func (v *recordingView) ShowCandidates(accepted, unaccepted []uint64) {
	v.accepted, v.unaccepted = accepted, unaccepted
	v.add("candidates")
}

func (v *recordingView) ShowResumes(resumes map[uint64][]string) {
	v.resumes = resumes
	v.add("resumes")
}

func (v *recordingView) ShowMasterError(msg string) { v.add("master-error:%s", msg) }

func (v *recordingView) ShowFiles(files []manager.ResumeFile) {
	v.files = files
	v.add("files:%d", len(files))
}

func (v *recordingView) ShowUploaded(name string) { v.add("uploaded:%s", name) }

func (v *recordingView) ShowHasResume(has bool) { v.add("has-resume:%t", has) }

func (v *recordingView) ShowResumeError(msg string) { v.add("resume-error:%s", msg) }

func TestBaseSendReportsErrors(t *testing.T) {
	conn := newFakeConn()
	conn.err = errors.New("not open")
	email := manager.NewEmail(conn, &recordingView{}, nil)

	require.ErrorIs(t, email.Refresh(context.Background()), conn.err)
	require.Empty(t, conn.keys())
}
