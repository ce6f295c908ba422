package manager

import (
	"go.uber.org/zap"
)

// LoginView presents login results.
type LoginView interface {
	LoggedIn(s Session)
	LoginFailed(msg string)
	NameChanged(name string)
}

// EmailView presents the account's email state.
type EmailView interface {
	ShowEmail(status EmailStatus)
	ShowEmailError(msg string)
}

// MasterView presents the candidate review page.
type MasterView interface {
	ShowCandidates(accepted, unaccepted []uint64)
	ShowResumes(resumes map[uint64][]string)
	ShowMasterError(msg string)
}

// ResumeView presents the caller's résumé folder.
type ResumeView interface {
	ShowFiles(files []ResumeFile)
	ShowUploaded(name string)
	ShowHasResume(has bool)
	ShowResumeError(msg string)
}

// LogView writes every view update to a logger. The CLI uses it in
// place of a page.
type LogView struct {
	logger *zap.Logger
}

// NewLogView creates a LogView.
func NewLogView(logger *zap.Logger) *LogView {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogView{logger: logger.With(zap.String("component", "view"))}
}

func (v *LogView) LoggedIn(s Session) {
	v.logger.Info("logged in", zap.Uint64("eid", s.EID), zap.Uint32("device_id", s.DeviceID))
}

func (v *LogView) LoginFailed(msg string) {
	v.logger.Warn("login failed", zap.String("msg", msg))
}

func (v *LogView) NameChanged(name string) {
	v.logger.Info("name", zap.String("name", name))
}

func (v *LogView) ShowEmail(status EmailStatus) {
	v.logger.Info("email",
		zap.Stringer("state", status.State()),
		zap.String("verified", status.Verified),
		zap.String("unverified", status.Unverified))
}

func (v *LogView) ShowEmailError(msg string) {
	v.logger.Warn("email error", zap.String("msg", msg))
}

func (v *LogView) ShowCandidates(accepted, unaccepted []uint64) {
	v.logger.Info("candidates", zap.Uint64s("accepted", accepted), zap.Uint64s("unaccepted", unaccepted))
}

func (v *LogView) ShowResumes(resumes map[uint64][]string) {
	for id, keys := range resumes {
		v.logger.Info("resume", zap.Uint64("eid", id), zap.Strings("keys", keys))
	}
}

func (v *LogView) ShowMasterError(msg string) {
	v.logger.Warn("master error", zap.String("msg", msg))
}

func (v *LogView) ShowFiles(files []ResumeFile) {
	for _, f := range files {
		v.logger.Info("file", zap.String("name", f.Name), zap.Int64("size", f.Size))
	}
}

func (v *LogView) ShowUploaded(name string) {
	v.logger.Info("upload complete", zap.String("name", name))
}

func (v *LogView) ShowHasResume(has bool) {
	v.logger.Info("has resume", zap.Bool("has_resume", has))
}

func (v *LogView) ShowResumeError(msg string) {
	v.logger.Warn("resume error", zap.String("msg", msg))
}
