package cli

import (
	"log/slog"
	"os"

	"github.com/aretw0/opbridge/internal/logging"
	"github.com/aretw0/opbridge/pkg/config"
)

// NewLogger configures the process logger from the log section. Debug overrides the level.
func NewLogger(cfg config.LogConfig, debug bool) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if debug {
		level = slog.LevelDebug
	}
	return logging.NewWithFormat(os.Stderr, level, cfg.Format), nil
}
