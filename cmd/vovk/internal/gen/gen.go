// Package gen implements "vovk gen": regenerate the client modules from the
// schema directory, once or on every schema change.
package gen

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/finom/vovk/clientgen"
	"github.com/finom/vovk/cmd/vovk/internal/app"
	"github.com/finom/vovk/internal/config"
	"github.com/finom/vovk/schema"
)

type Cmd struct {
	Watch  bool   `help:"Watch the schema directory and regenerate on change." short:"w"`
	Out    string `help:"Override the client output directory." type:"path"`
	Stdout bool   `help:"Print the generated modules as a txtar archive instead of writing them."`

	// Print receives the --stdout archive. Nil means stdout.
	Print io.Writer `kong:"-"`
}

func (c *Cmd) Run(g *app.Globals) error {
	cfg, log, err := g.Load()
	if err != nil {
		return err
	}
	if c.Out != "" {
		cfg.ClientOutDir = c.Out
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Stdout {
		w := c.Print
		if w == nil {
			w = os.Stdout
		}
		return Preview(ctx, cfg, w)
	}

	if _, err := Generate(ctx, cfg, log); err != nil {
		if !c.Watch {
			return err
		}
		log.Error().Err(err).Msg("generate failed")
	}
	if !c.Watch {
		return nil
	}

	w, err := NewWatcher(cfg.MetadataDir(), log)
	if err != nil {
		return err
	}
	defer w.Close()
	return w.Run(ctx, func() {
		if _, err := Generate(ctx, cfg, log); err != nil {
			log.Error().Err(err).Msg("generate failed")
		}
	})
}

// generator loads the aggregate schema described by cfg.
func generator(ctx context.Context, cfg *config.Config) (*clientgen.Generator, error) {
	agg, err := schema.NewDirStore(cfg.MetadataDir()).LoadAggregate(ctx, cfg.Segments)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	clientCfg, err := cfg.Client()
	if err != nil {
		return nil, err
	}
	return clientgen.FromAggregate(agg).WithConfig(clientCfg), nil
}

// Preview writes the modules Generate would produce to w as a txtar archive.
func Preview(ctx context.Context, cfg *config.Config, w io.Writer) error {
	g, err := generator(ctx, cfg)
	if err != nil {
		return err
	}
	out, err := g.Generate()
	if err != nil {
		return fmt.Errorf("generate client: %w", err)
	}
	_, err = w.Write(out.Archive())
	return err
}

// Generate loads the aggregate schema described by cfg and writes the
// client modules. It reports whether the client changed.
func Generate(ctx context.Context, cfg *config.Config, log zerolog.Logger) (bool, error) {
	g, err := generator(ctx, cfg)
	if err != nil {
		return false, err
	}
	changed, err := g.ToDir(ctx, cfg.ClientDir())
	if err != nil {
		return false, fmt.Errorf("generate client: %w", err)
	}

	if changed {
		log.Info().Str("dir", cfg.ClientDir()).Msg("client generated")
	} else {
		log.Debug().Str("dir", cfg.ClientDir()).Msg("client unchanged")
	}
	return changed, nil
}
