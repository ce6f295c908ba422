package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/beachbev/beachbev-site/internal/config"
	"github.com/beachbev/beachbev-site/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globals are resolved once before any subcommand runs.
type globals struct {
	configPath  string
	logLevel    string
	errorFormat string
	noColor     bool

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	g := &globals{}
	rootCmd := newRootCmd(g)
	err := rootCmd.Execute()
	if g.logger != nil {
		_ = g.logger.Sync()
	}
	if err != nil {
		if g.noColor {
			errors.DisableColors()
		}
		errors.Fprint(os.Stderr, errors.FromError(err, errors.CodeCommand), g.errorFormat)
		os.Exit(1)
	}
}

func newRootCmd(g *globals) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "beachbev",
		Short: "BeachBev web front end",
		Long: `BeachBev serves the employer and résumé site and talks to the
BeachBev packet server.

  • serve   the static site over HTTPS with an HTTP redirect
  • client  log in over the packet protocol and drive the
            email, master and résumé features from the terminal
  • schema  inspect the packet schema registry
  • explain describe an error code`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file (default ./beachbev.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&g.errorFormat, "error-format", errors.OutputText, "Error output: text, json, compact")
	rootCmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable colored error output")

	rootCmd.AddCommand(
		serveCmd(g),
		clientCmd(g),
		schemaCmd(g),
		explainCmd(),
		versionCmd(),
	)
	return rootCmd
}

func (g *globals) load() error {
	if !errors.ValidOutput(g.errorFormat) {
		format := g.errorFormat
		g.errorFormat = errors.OutputText
		return errors.New(errors.CodeInvalidArgument).
			WithDetail("--error-format must be text, json or compact, got " + format)
	}
	cfg, err := config.Resolve(g.configPath)
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	g.cfg = cfg
	g.logger = logger
	if path := cfg.Path(); path != "" {
		logger.Debug("config loaded", zap.String("path", path))
	}
	return nil
}
