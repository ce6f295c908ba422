package manager

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/beachbev/beachbev-site/pkg/packet"
	"github.com/beachbev/beachbev-site/pkg/packets"
	"github.com/beachbev/beachbev-site/pkg/storage"
)

// AcceptState is the E2 acceptance state for "accepted".
const AcceptState uint32 = 1

// Master drives the employer review page: the candidate lists, their
// résumés and the accept action.
type Master struct {
	Base
	view   MasterView
	stores storage.Factory
	bucket string

	mu         sync.Mutex
	store      storage.Store
	accepted   []uint64
	unaccepted []uint64
	resumes    map[uint64][]string
}

// NewMaster creates a Master manager reading résumés from bucket.
func NewMaster(conn Sender, view MasterView, stores storage.Factory, bucket string, logger *zap.Logger) *Master {
	m := &Master{
		Base:   NewBase("master", conn, logger),
		view:   view,
		stores: stores,
		bucket: bucket,
	}
	if m.view == nil {
		m.view = NewLogView(logger)
	}
	return m
}

// OnOpen requests the candidate lists.
func (m *Master) OnOpen(ctx context.Context) { m.Refresh(ctx) }

// OnReopen requests the candidate lists again.
func (m *Master) OnReopen(ctx context.Context) { m.Refresh(ctx) }

// Refresh sends E0.
func (m *Master) Refresh(ctx context.Context) error {
	return m.SendEmpty(ctx, "E0")
}

// OnClose drops the lists and the storage credentials.
func (m *Master) OnClose(err error) {
	m.mu.Lock()
	m.store = nil
	m.accepted = nil
	m.unaccepted = nil
	m.resumes = nil
	m.mu.Unlock()
}

// Accepted returns the accepted candidate IDs.
func (m *Master) Accepted() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.accepted)
}

// Unaccepted returns the candidates still waiting for review.
func (m *Master) Unaccepted() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.unaccepted)
}

// Resumes returns the keys stored for eID.
func (m *Master) Resumes(eID uint64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.resumes[eID])
}

// HasResume reports whether eID has uploaded anything.
func (m *Master) HasResume(eID uint64) bool {
	return len(m.Resumes(eID)) > 0
}

// Accept marks eID accepted. The lists change when E3 confirms it.
func (m *Master) Accept(ctx context.Context, eID uint64) error {
	return m.Send(ctx, "E2", &packets.E2{EID: eID, AState: AcceptState})
}

// ViewResume fetches a candidate's file.
func (m *Master) ViewResume(ctx context.Context, key string) (*storage.File, error) {
	m.mu.Lock()
	store := m.store
	m.mu.Unlock()
	if store == nil {
		return nil, ErrNoStorage
	}
	return store.Get(ctx, m.bucket, key)
}

// ResumeURL returns a viewing link for a candidate's file.
func (m *Master) ResumeURL(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	store := m.store
	m.mu.Unlock()
	if store == nil {
		return "", ErrNoStorage
	}
	return store.URL(ctx, m.bucket, key)
}

func (m *Master) RegisterHandlers(t *packet.Table) error {
	codec := m.Codec()
	if err := m.Register(t, "E1", packet.Typed(codec, m.handleLists), "candidate lists"); err != nil {
		return err
	}
	if err := m.Register(t, "E3", packet.Typed(codec, m.handleAccepted), "accept result"); err != nil {
		return err
	}
	return m.Register(t, "D1", packet.Typed(codec, m.handleCredentials), "storage credentials")
}

func (m *Master) handleLists(ctx context.Context, msg *packets.E1) error {
	if !msg.Success {
		m.view.ShowMasterError(msg.Msg)
		return nil
	}
	m.mu.Lock()
	m.accepted = slices.Clone(msg.AcceptedEIDs)
	m.unaccepted = slices.Clone(msg.UnacceptedEIDs)
	accepted, unaccepted := slices.Clone(m.accepted), slices.Clone(m.unaccepted)
	m.mu.Unlock()

	m.view.ShowCandidates(accepted, unaccepted)
	return m.SendEmpty(ctx, "D2")
}

func (m *Master) handleAccepted(ctx context.Context, msg *packets.E3) error {
	if !msg.Success {
		m.view.ShowMasterError(msg.Msg)
		return nil
	}
	m.mu.Lock()
	if i := slices.Index(m.unaccepted, msg.EID); i >= 0 {
		m.unaccepted = slices.Delete(m.unaccepted, i, i+1)
	}
	if !slices.Contains(m.accepted, msg.EID) {
		m.accepted = append(m.accepted, msg.EID)
	}
	accepted, unaccepted := slices.Clone(m.accepted), slices.Clone(m.unaccepted)
	m.mu.Unlock()

	m.view.ShowCandidates(accepted, unaccepted)
	return nil
}

func (m *Master) handleCredentials(ctx context.Context, msg *packets.D1) error {
	if !msg.HasCredentials() {
		m.view.ShowMasterError(msg.Msg)
		return nil
	}
	if m.stores == nil {
		m.view.ShowMasterError("Could not load resumes: " + ErrNoStorage.Error())
		return ErrNoStorage
	}
	store, err := m.stores(ctx, storage.Credentials{
		AccessKeyID:     msg.AccessKeyID,
		SecretAccessKey: msg.AccessKey,
		SessionToken:    msg.SessionKey,
	})
	if err != nil {
		m.view.ShowMasterError("Could not load resumes: " + err.Error())
		return err
	}

	objects, err := store.List(ctx, m.bucket, "")
	if err != nil {
		m.view.ShowMasterError("Could not load resumes: " + err.Error())
		return err
	}
	resumes := make(map[uint64][]string)
	for _, obj := range objects {
		if id, ok := storage.CandidateID(obj.Key); ok {
			resumes[id] = append(resumes[id], obj.Key)
		}
	}

	m.mu.Lock()
	m.store = store
	m.resumes = resumes
	m.mu.Unlock()

	m.Logger().Debug("resumes listed", zap.Int("objects", len(objects)), zap.Int("candidates", len(resumes)))
	m.view.ShowResumes(resumes)
	return nil
}
