package manager

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/beachbev/beachbev-site/pkg/packet"
	"github.com/beachbev/beachbev-site/pkg/packets"
	"github.com/beachbev/beachbev-site/pkg/storage"
)

const (
	// MaxResumeSize is the largest accepted upload in bytes.
	MaxResumeSize = 2_000_000

	// PDFContentType is the only accepted upload type.
	PDFContentType = "application/pdf"

	// MaxListedFiles caps a folder listing.
	MaxListedFiles = 100
)

// ResumeFile is one file in the caller's folder.
type ResumeFile struct {
	Name string
	Size int64
}

// Resume manages the caller's own résumé folder.
type Resume struct {
	Base
	view   ResumeView
	stores storage.Factory
	bucket string

	mu     sync.Mutex
	store  storage.Store
	prefix string
	files  []ResumeFile
}

// NewResume creates a Resume manager storing files in bucket.
func NewResume(conn Sender, view ResumeView, stores storage.Factory, bucket string, logger *zap.Logger) *Resume {
	r := &Resume{
		Base:   NewBase("resume", conn, logger),
		view:   view,
		stores: stores,
		bucket: bucket,
	}
	if r.view == nil {
		r.view = NewLogView(logger)
	}
	return r
}

// OnOpen requests storage credentials.
func (r *Resume) OnOpen(ctx context.Context) { _ = r.SendEmpty(ctx, "D0") }

// OnReopen requests fresh credentials. The old ones died with the
// connection.
func (r *Resume) OnReopen(ctx context.Context) { _ = r.SendEmpty(ctx, "D0") }

// OnClose drops the credentials and the folder.
func (r *Resume) OnClose(err error) {
	r.mu.Lock()
	r.store = nil
	r.prefix = ""
	r.files = nil
	r.mu.Unlock()
}

// Folder returns the caller's folder key, empty before D1 arrives.
func (r *Resume) Folder() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prefix
}

// Files returns the last listing.
func (r *Resume) Files() []ResumeFile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ResumeFile(nil), r.files...)
}

// Ready reports whether storage credentials are held.
func (r *Resume) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store != nil
}

// CheckResume asks whether the caller has a résumé on file.
func (r *Resume) CheckResume(ctx context.Context) error {
	return r.SendEmpty(ctx, "D3")
}

func (r *Resume) current() (storage.Store, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store, r.prefix
}

// Upload stores a PDF named name in the caller's folder.
func (r *Resume) Upload(ctx context.Context, name, contentType string, size int64, body io.Reader) error {
	store, prefix := r.current()
	if store == nil {
		r.view.ShowResumeError("Storage not available")
		return ErrNoStorage
	}
	if contentType != PDFContentType {
		r.view.ShowResumeError("File was not a pdf")
		return ErrNotPDF
	}
	if size > MaxResumeSize {
		r.view.ShowResumeError("File size exceeded 2 Mb")
		return ErrTooLarge
	}

	key := storage.ObjectKey(prefix, name)
	if err := store.Put(ctx, r.bucket, key, contentType, size, body); err != nil {
		r.view.ShowResumeError("Upload failed: " + err.Error())
		return err
	}
	r.Logger().Info("uploaded", zap.String("key", key), zap.Int64("size", size))
	r.view.ShowUploaded(name)
	return r.Refresh(ctx)
}

// View fetches one of the caller's files by name.
func (r *Resume) View(ctx context.Context, name string) (*storage.File, error) {
	store, prefix := r.current()
	if store == nil {
		return nil, ErrNoStorage
	}
	return store.Get(ctx, r.bucket, storage.ObjectKey(prefix, name))
}

// Refresh lists the caller's folder again.
func (r *Resume) Refresh(ctx context.Context) error {
	store, prefix := r.current()
	if store == nil {
		return ErrNoStorage
	}
	objects, err := store.List(ctx, r.bucket, storage.FolderPrefix(prefix))
	if err != nil {
		r.view.ShowResumeError("Could not list files: " + err.Error())
		return err
	}
	if len(objects) > MaxListedFiles {
		objects = objects[:MaxListedFiles]
	}
	files := make([]ResumeFile, 0, len(objects))
	for _, obj := range objects {
		name := storage.FileName(obj.Key)
		if name == "" {
			continue
		}
		files = append(files, ResumeFile{Name: name, Size: obj.Size})
	}

	r.mu.Lock()
	r.files = files
	r.mu.Unlock()
	r.view.ShowFiles(append([]ResumeFile(nil), files...))
	return nil
}

func (r *Resume) RegisterHandlers(t *packet.Table) error {
	codec := r.Codec()
	if err := r.Register(t, "D1", packet.Typed(codec, r.handleCredentials), "storage credentials"); err != nil {
		return err
	}
	return r.Register(t, "D4", packet.Typed(codec, func(ctx context.Context, m *packets.D4) error {
		r.view.ShowHasResume(m.HasResume)
		return nil
	}), "has resume")
}

func (r *Resume) handleCredentials(ctx context.Context, m *packets.D1) error {
	if !m.HasCredentials() {
		r.view.ShowResumeError(m.Msg)
		return nil
	}
	if r.stores == nil {
		r.view.ShowResumeError("Storage not available")
		return ErrNoStorage
	}
	store, err := r.stores(ctx, storage.Credentials{
		AccessKeyID:     m.AccessKeyID,
		SecretAccessKey: m.AccessKey,
		SessionToken:    m.SessionKey,
	})
	if err != nil {
		r.view.ShowResumeError("Could not open storage: " + err.Error())
		return err
	}

	r.mu.Lock()
	r.store = store
	r.prefix = m.FolderObjKey
	r.mu.Unlock()
	return r.Refresh(ctx)
}
