package site

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/beachbev/beachbev-site/internal/config"
	"github.com/beachbev/beachbev-site/internal/errors"
)

// Server is the static site: the HTTPS file server, the plain HTTP
// redirect and an optional metrics listener.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *Metrics
	tracer   trace.Tracer
	static   fs.FS
	cache    CacheMode
	tls      *tls.Config
	ready    func(*Listeners)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRegistry collects site metrics in reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// WithTracer sets the tracer. The global provider is used otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithFS serves fsys instead of the configured static directory.
func WithFS(fsys fs.FS) Option {
	return func(s *Server) { s.static = fsys }
}

// WithCache sets the static cache policy.
func WithCache(mode CacheMode) Option {
	return func(s *Server) { s.cache = mode }
}

// WithReady is called once every listener is bound.
func WithReady(fn func(*Listeners)) Option {
	return func(s *Server) { s.ready = fn }
}

// New checks the configuration, the static directory and the TLS
// keypair and returns a Server ready to Run.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg, cache: CacheProduction}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.String("component", "site"))
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("github.com/beachbev/beachbev-site/pkg/site")
	}
	s.metrics = NewMetrics(s.registry, "beachbev")

	if s.static == nil {
		dir := cfg.StaticPath()
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			e := errors.New(errors.CodeStaticDir).WithDetail(fmt.Sprintf("static directory %q", dir))
			if err != nil {
				e = e.Wrap(err)
			}
			return nil, e
		}
		s.static = os.DirFS(dir)
	}

	if !cfg.Site.Insecure {
		if cfg.Site.CertFile == "" {
			return nil, errors.New(errors.CodeTLSLoad).
				WithDetail("site.cert_file and site.key_file are required unless site.insecure is set")
		}
		cert, err := tls.LoadX509KeyPair(cfg.Site.CertFile, cfg.Site.KeyFile)
		if err != nil {
			return nil, errors.New(errors.CodeTLSLoad).
				WithDetail(fmt.Sprintf("cert %s, key %s", cfg.Site.CertFile, cfg.Site.KeyFile)).
				Wrap(err)
		}
		s.tls = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
	}
	return s, nil
}

// Metrics returns the site collectors.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Handler returns the static site handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(AccessLog(s.logger))
	r.Use(Instrument(s.metrics))
	r.Use(Trace(s.tracer))
	r.Use(CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	static := NewStatic(s.static, s.cache)
	r.Handle("/*", static)
	return r
}

// RedirectHandler returns the plain HTTP handler.
func (s *Server) RedirectHandler() http.Handler {
	return Redirect(s.cfg.Site.HTTPSPort, s.metrics)
}

// MetricsHandler exposes the registry in the Prometheus text format.
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

// Listeners are the bound sockets. Redirect and Metrics are nil when
// disabled. Redirect is always disabled for an insecure site.
type Listeners struct {
	Site     net.Listener
	Redirect net.Listener
	Metrics  net.Listener
}

// Close closes every non-nil listener.
func (l *Listeners) Close() error {
	var err error
	for _, ln := range []net.Listener{l.Site, l.Redirect, l.Metrics} {
		if ln != nil {
			err = multierr.Append(err, ln.Close())
		}
	}
	return err
}

// Listen binds the configured ports.
func (s *Server) Listen() (*Listeners, error) {
	site := s.cfg.Site
	l := &Listeners{}
	var err error

	if l.Site, err = listen(site.Host, site.HTTPSPort); err != nil {
		return nil, err
	}
	if site.HTTPPort != 0 && s.tls != nil {
		if l.Redirect, err = listen(site.Host, site.HTTPPort); err != nil {
			_ = l.Close()
			return nil, err
		}
	}
	if s.cfg.Metrics.Enabled {
		if l.Metrics, err = net.Listen("tcp", s.cfg.Metrics.Addr); err != nil {
			_ = l.Close()
			return nil, errors.New(errors.CodeListen).WithDetail(s.cfg.Metrics.Addr).Wrap(err)
		}
	}
	return l, nil
}

func listen(host string, port int) (net.Listener, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.New(errors.CodeListen).WithDetail(addr).Wrap(err)
	}
	return ln, nil
}

// Run binds the ports and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	l, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is cancelled or a listener fails, then
// shuts every server down gracefully.
func (s *Server) Serve(ctx context.Context, l *Listeners) error {
	site := s.cfg.Site
	if l.Redirect != nil && s.tls == nil {
		// Nothing to redirect to without TLS.
		s.logger.Info("redirect disabled for plain HTTP site")
		_ = l.Redirect.Close()
		l.Redirect = nil
	}
	servers := []*namedServer{{
		name: "https",
		ln:   l.Site,
		srv: &http.Server{
			Handler:           s.Handler(),
			TLSConfig:         s.tls,
			ReadHeaderTimeout: site.ReadTimeout,
			ReadTimeout:       site.ReadTimeout,
			WriteTimeout:      site.WriteTimeout,
			ErrorLog:          zap.NewStdLog(s.logger),
		},
	}}
	if s.tls == nil {
		servers[0].name = "http"
	}
	if l.Redirect != nil {
		servers = append(servers, &namedServer{
			name: "redirect",
			ln:   l.Redirect,
			srv: &http.Server{
				Handler:           s.RedirectHandler(),
				ReadHeaderTimeout: site.ReadTimeout,
				ErrorLog:          zap.NewStdLog(s.logger),
			},
		})
	}
	if l.Metrics != nil {
		mux := chi.NewRouter()
		mux.Handle(s.cfg.Metrics.Path, s.MetricsHandler())
		servers = append(servers, &namedServer{
			name: "metrics",
			ln:   l.Metrics,
			srv:  &http.Server{Handler: mux, ReadHeaderTimeout: site.ReadTimeout},
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ns := range servers {
		g.Go(func() error {
			s.logger.Info("listening", zap.String("server", ns.name), zap.String("addr", ns.ln.Addr().String()))
			var err error
			if ns.name == "https" {
				err = ns.srv.ServeTLS(ns.ln, "", "")
			} else {
				err = ns.srv.Serve(ns.ln)
			}
			if stderrors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("site: %s server: %w", ns.name, err)
		})
	}
	if s.ready != nil {
		s.ready(l)
	}

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")
		timeout := site.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var err error
		for _, ns := range servers {
			err = multierr.Append(err, ns.srv.Shutdown(shutdownCtx))
		}
		if err != nil {
			s.logger.Error("shutdown error", zap.Error(err))
			return err
		}
		s.logger.Info("shutdown complete")
		return nil
	})
	return g.Wait()
}

type namedServer struct {
	name string
	ln   net.Listener
	srv  *http.Server
}
