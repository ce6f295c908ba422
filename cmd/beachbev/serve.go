package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/beachbev/beachbev-site/pkg/site"
)

func serveCmd(g *globals) *cobra.Command {
	var (
		host      string
		httpsPort int
		httpPort  int
		static    string
		certFile  string
		keyFile   string
		insecure  bool
		metrics   bool
		noCache   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the static site",
		Long: `Serve the static site over HTTPS and redirect plain HTTP to it.

Every response carries permissive CORS headers. The HTTP port answers
every request with a 301 to the same host and path over HTTPS.

Examples:
  beachbev serve
  beachbev serve --cert=/etc/letsencrypt/live/beachbevs.com/fullchain.pem \
                 --key=/etc/letsencrypt/live/beachbevs.com/privkey.pem
  beachbev serve --insecure --https-port=8443 --http-port=8080 --static=./public`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Site.Host = host
			}
			if flags.Changed("https-port") {
				cfg.Site.HTTPSPort = httpsPort
			}
			if flags.Changed("http-port") {
				cfg.Site.HTTPPort = httpPort
			}
			if flags.Changed("static") {
				cfg.Site.StaticDir = static
			}
			if flags.Changed("cert") {
				cfg.Site.CertFile = certFile
			}
			if flags.Changed("key") {
				cfg.Site.KeyFile = keyFile
			}
			if flags.Changed("insecure") {
				cfg.Site.Insecure = insecure
			}
			if flags.Changed("metrics") {
				cfg.Metrics.Enabled = metrics
			}

			cache := site.CacheProduction
			if noCache {
				cache = site.CacheNone
			}
			srv, err := site.New(cfg, site.WithLogger(g.logger), site.WithCache(cache))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g.logger.Info("starting site",
				zap.Int("https_port", cfg.Site.HTTPSPort),
				zap.Int("http_port", cfg.Site.HTTPPort),
				zap.String("static", cfg.StaticPath()),
				zap.Bool("insecure", cfg.Site.Insecure))
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&host, "host", "H", "", "Address to bind (default all interfaces)")
	cmd.Flags().IntVar(&httpsPort, "https-port", 0, "HTTPS port (default 443)")
	cmd.Flags().IntVar(&httpPort, "http-port", 0, "Redirect port, 0 disables (default 80)")
	cmd.Flags().StringVar(&static, "static", "", "Static directory (default ./public)")
	cmd.Flags().StringVar(&certFile, "cert", "", "TLS certificate chain (PEM)")
	cmd.Flags().StringVar(&keyFile, "key", "", "TLS private key (PEM)")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "Serve plain HTTP on the HTTPS port")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Expose Prometheus metrics on metrics.addr")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Disable static caching")

	return cmd
}
