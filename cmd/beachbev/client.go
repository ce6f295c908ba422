package main

import (
	"context"
	stderrors "errors"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/beachbev/beachbev-site/internal/config"
	"github.com/beachbev/beachbev-site/internal/errors"
	"github.com/beachbev/beachbev-site/pkg/client"
	"github.com/beachbev/beachbev-site/pkg/manager"
	"github.com/beachbev/beachbev-site/pkg/packet"
	"github.com/beachbev/beachbev-site/pkg/storage"
)

type clientFlags struct {
	url      string
	name     string
	password string
	eid      uint64
	deviceID uint32
	token    string

	master   bool
	resume   bool
	upload   string
	accept   []uint
	newEmail string
	resend   bool
	duration time.Duration
}

func clientCmd(g *globals) *cobra.Command {
	f := &clientFlags{}

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Connect to the packet server and run the site features",
		Long: `Connect to the BeachBev packet server, log in, and run the
email, master and résumé features with their output logged.

The session is kept across reconnects: a dropped connection resets
everything learned on it, then logs in again with the saved token.

Examples:
  beachbev client --url=wss://beachbevs.com:5555 --name=ann
  beachbev client --name=ann --resume --upload=cv.pdf
  beachbev client --name=boss --master --accept=12,14
  beachbev client --eid=42 --device=1 --token=... --email=ann@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("url") {
				g.cfg.Client.URL = f.url
			}
			if f.password == "" {
				f.password = os.Getenv(config.EnvPrefix + "PASSWORD")
			}
			return runClient(g.cfg, g.logger, f)
		},
	}

	cmd.Flags().StringVarP(&f.url, "url", "u", "", "Packet server websocket URL (default client.url)")
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "Log in with this user name")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "Password (default $BEACHBEV_PASSWORD)")
	cmd.Flags().Uint64Var(&f.eid, "eid", 0, "Employee ID of a saved session")
	cmd.Flags().Uint32Var(&f.deviceID, "device", 0, "Device ID of a saved session")
	cmd.Flags().StringVar(&f.token, "token", "", "Token of a saved session")
	cmd.Flags().BoolVar(&f.master, "master", false, "Load candidates and résumés")
	cmd.Flags().BoolVar(&f.resume, "resume", false, "Load the own résumé folder")
	cmd.Flags().StringVar(&f.upload, "upload", "", "Upload this PDF to the own folder (implies --resume)")
	cmd.Flags().UintSliceVar(&f.accept, "accept", nil, "Accept these candidates (implies --master)")
	cmd.Flags().StringVar(&f.newEmail, "email", "", "Request a change to this email address")
	cmd.Flags().BoolVar(&f.resend, "resend", false, "Resend the verification email")
	cmd.Flags().DurationVarP(&f.duration, "duration", "d", 0, "Stop after this long (default run until interrupted)")

	return cmd
}

// acceptedIDs returns the --accept candidates as employee IDs.
func (f *clientFlags) acceptedIDs() []uint64 {
	ids := make([]uint64, len(f.accept))
	for i, id := range f.accept {
		ids[i] = uint64(id)
	}
	return ids
}

func runClient(cfg *config.Config, logger *zap.Logger, f *clientFlags) error {
	if cfg.Client.URL == "" {
		return errors.New(errors.CodeMissingFlag).WithDetail("--url or client.url is required")
	}
	if f.name != "" && f.password == "" {
		return errors.New(errors.CodeMissingFlag).WithDetail("--password or $BEACHBEV_PASSWORD is required with --name")
	}
	if f.name == "" && f.token == "" {
		return errors.New(errors.CodeMissingFlag).WithDetail("either --name or --token is required")
	}
	if f.upload != "" {
		f.resume = true
	}
	if len(f.accept) > 0 {
		f.master = true
	}

	reg, err := loadRegistry(cfg.Client.SchemaFile)
	if err != nil {
		return err
	}
	codec := packet.NewCodec(reg)

	promReg := prometheus.NewRegistry()
	table := packet.NewTable(
		packet.WithRegistry(reg),
		packet.WithLogger(logger),
		packet.WithMetrics(packet.NewMetrics(promReg, "beachbev")),
	)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancelCause(sigCtx)
	defer cancel(nil)
	if f.duration > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, f.duration)
		defer cancelTimeout()
	}

	opts := client.Options{
		HandshakeTimeout:     cfg.Client.HandshakeTimeout,
		RequestTimeout:       cfg.Client.RequestTimeout,
		WriteTimeout:         cfg.Client.WriteTimeout,
		Heartbeat:            cfg.Client.Heartbeat,
		MaxReconnectAttempts: cfg.Reconnect.MaxAttempts,
		BaseDelay:            cfg.Reconnect.BaseDelay,
		MaxDelay:             cfg.Reconnect.MaxDelay,
	}
	if cfg.Client.Origin != "" {
		opts.Header = http.Header{"Origin": {cfg.Client.Origin}}
	}
	conn := client.New(cfg.Client.URL, codec,
		client.WithOptions(opts),
		client.WithLogger(logger),
		client.WithTable(table),
		client.WithMetrics(client.NewMetrics(promReg, "beachbev")),
		client.WithGiveUp(func(err error) { cancel(err) }),
	)

	stores := storage.S3Factory(storage.S3Options{
		Region:       cfg.Storage.Region,
		Endpoint:     cfg.Storage.Endpoint,
		UsePathStyle: cfg.Storage.UsePathStyle,
		MaxAttempts:  cfg.Storage.MaxAttempts,
		MaxListKeys:  cfg.Storage.MaxListKeys,
		MaxSize:      cfg.Storage.MaxUploadBytes,
	})

	view := newCLIView(logger)
	login := manager.NewLogin(conn, view, logger)
	email := manager.NewEmail(conn, view, logger)
	features := []manager.Manager{email}
	var (
		master *manager.Master
		resume *manager.Resume
	)
	if f.master {
		master = manager.NewMaster(conn, view, stores, cfg.Storage.Bucket, logger)
		features = append(features, master)
	}
	if f.resume {
		resume = manager.NewResume(conn, view, stores, cfg.Storage.Bucket, logger)
		features = append(features, resume)
	}

	if f.token != "" {
		login.Restore(manager.Session{EID: f.eid, DeviceID: f.deviceID, PwdToken: f.token})
	}
	login.OnLoggedIn(func(ctx context.Context, s manager.Session) {
		for _, m := range features {
			if err := conn.Attach(m); err != nil {
				logger.Error("attach failed", zap.String("manager", m.Name()), zap.Error(err))
			}
		}
	})
	if err := conn.Attach(login); err != nil {
		return err
	}

	if err := conn.Connect(ctx); err != nil {
		return errors.New(errors.CodeDial).WithDetail(cfg.Client.URL).Wrap(err)
	}
	defer conn.Close()

	if f.name != "" {
		if err := login.Login(ctx, f.name, f.password); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if f.upload != "" {
		g.Go(func() error {
			if !view.storage.wait(gctx) {
				return nil
			}
			return uploadFile(gctx, resume, f.upload)
		})
	}
	if len(f.accept) > 0 {
		g.Go(func() error {
			if !view.candidates.wait(gctx) {
				return nil
			}
			for _, id := range f.acceptedIDs() {
				if err := master.Accept(gctx, id); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if f.newEmail != "" || f.resend {
		g.Go(func() error {
			if !view.email.wait(gctx) {
				return nil
			}
			if f.resend {
				if err := email.Resend(gctx); err != nil && !stderrors.Is(err, manager.ErrNoUnverifiedEmail) {
					return err
				}
			}
			if f.newEmail != "" {
				return email.Change(gctx, f.newEmail)
			}
			return nil
		})
	}
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics, promReg, logger)
		})
	}

	<-ctx.Done()
	conn.Close()
	if err := g.Wait(); err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}

	if cause := context.Cause(ctx); stderrors.Is(cause, client.ErrGaveUp) {
		return errors.New(errors.CodeGaveUp).WithDetail(cfg.Client.URL).Wrap(cause)
	}
	return nil
}

func uploadFile(ctx context.Context, resume *manager.Resume, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.New(errors.CodeInvalidArgument).WithDetail(path).Wrap(err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return errors.New(errors.CodeInvalidArgument).WithDetail(path).Wrap(err)
	}
	if info.IsDir() {
		return errors.Newf(errors.CategoryCLI, "%s is a directory, not a PDF", path)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if err := resume.Upload(ctx, filepath.Base(path), contentType, info.Size(), file); err != nil {
		return errors.New(errors.CodeStorage).WithDetail(path).Wrap(err)
	}
	return nil
}

func serveMetrics(ctx context.Context, cfg config.MetricsConfig, reg *prometheus.Registry, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", zap.String("addr", cfg.Addr), zap.String("path", cfg.Path))
	if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return errors.New(errors.CodeListen).WithDetail(cfg.Addr).Wrap(err)
	}
	return nil
}

// latch is closed the first time something happens.
type latch struct {
	once sync.Once
	ch   chan struct{}
}

func newLatch() *latch { return &latch{ch: make(chan struct{})} }

func (l *latch) fire() { l.once.Do(func() { close(l.ch) }) }

// wait reports whether the latch fired before ctx ended.
func (l *latch) wait(ctx context.Context) bool {
	select {
	case <-l.ch:
		return true
	case <-ctx.Done():
		return false
	}
}

// cliView logs like LogView and lets queued actions wait for the data
// they need.
type cliView struct {
	*manager.LogView
	storage    *latch
	candidates *latch
	email      *latch
}

func newCLIView(logger *zap.Logger) *cliView {
	return &cliView{
		LogView:    manager.NewLogView(logger),
		storage:    newLatch(),
		candidates: newLatch(),
		email:      newLatch(),
	}
}

func (v *cliView) ShowFiles(files []manager.ResumeFile) {
	v.LogView.ShowFiles(files)
	v.storage.fire()
}

func (v *cliView) ShowCandidates(accepted, unaccepted []uint64) {
	v.LogView.ShowCandidates(accepted, unaccepted)
	v.candidates.fire()
}

func (v *cliView) ShowEmail(status manager.EmailStatus) {
	v.LogView.ShowEmail(status)
	v.email.fire()
}
