package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/beachbev/beachbev-site/internal/config"
	"github.com/beachbev/beachbev-site/internal/errors"
)

// newLogger builds the process logger. APP_ENV=development switches to
// the human readable encoder.
func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development || os.Getenv("APP_ENV") == "development" {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, errors.New(errors.CodeConfigValue).
				WithDetail(fmt.Sprintf("logging.level %q", cfg.Level)).
				Wrap(err)
		}
		zc.Level = level
	}
	return zc.Build()
}
