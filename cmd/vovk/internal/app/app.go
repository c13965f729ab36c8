// Package app holds state shared by the vovk subcommands.
package app

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/finom/vovk/internal/config"
)

// Globals are flags accepted by every subcommand.
type Globals struct {
	Config  string `help:"Path to vovk.yaml (default: ./vovk.yaml, falling back to VOVK_* variables)." short:"c" type:"path"`
	Verbose bool   `help:"Enable debug logging." short:"v"`

	// Out receives log output. Nil means stderr.
	Out io.Writer `kong:"-"`
}

// Load reads the configuration and builds the logger it describes.
func (g *Globals) Load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadWithFallback(g.Config)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if g.Verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, NewLogger(cfg.Logging, g.writer()), nil
}

func (g *Globals) writer() io.Writer {
	if g.Out != nil {
		return g.Out
	}
	return os.Stderr
}

// NewLogger builds a zerolog logger for the given logging section.
func NewLogger(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: w != os.Stderr}
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
