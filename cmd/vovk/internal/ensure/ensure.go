// Package ensure implements "vovk ensure": reconcile the schema directory
// with the active segment set.
package ensure

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/finom/vovk/cmd/vovk/internal/app"
	"github.com/finom/vovk/internal/config"
	"github.com/finom/vovk/schema"
)

type Cmd struct {
	Segments []string `arg:"" optional:"" help:"Active segment names. Use \"\" for the root segment. Defaults to the segments in vovk.yaml."`
}

func (c *Cmd) Run(g *app.Globals) error {
	cfg, log, err := g.Load()
	if err != nil {
		return err
	}
	if len(c.Segments) > 0 {
		cfg.Segments = c.Segments
	}
	_, err = Ensure(context.Background(), cfg, log)
	return err
}

// Ensure reconciles the schema directory of cfg with cfg.Segments. An empty
// segment list means the root segment only.
func Ensure(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*schema.EnsureResult, error) {
	segments := cfg.Segments
	if len(segments) == 0 {
		segments = []string{""}
	}
	res, err := schema.NewDirStore(cfg.MetadataDir()).EnsureSchemaFiles(ctx, segments, func(e schema.EnsureEvent) {
		ev := log.Info().Str("segment", e.Segment).Str("path", e.Path)
		if e.Deleted {
			ev.Msg("schema file deleted")
			return
		}
		ev.Msg("schema file created")
	})
	if err != nil {
		return nil, err
	}
	log.Debug().
		Int("created", len(res.Created)).
		Int("deleted", len(res.Deleted)).
		Msg("schema directory reconciled")
	return res, nil
}
