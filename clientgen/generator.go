package clientgen

import (
	"context"

	"github.com/finom/vovk/schema"
	"github.com/finom/vovk/sink"
)

// Generator provides a fluent API for client generation.
// Create with FromAggregate and configure with method chaining.
//
// Example:
//
//	changed, err := clientgen.FromAggregate(agg).
//	    WithControllersModule("../../src/controllers").
//	    WithMetadataModule("../metadata/index.js").
//	    WithPrefix("/api").
//	    ToDir(ctx, "./node_modules/.vovk")
type Generator struct {
	agg *schema.Aggregate
	cfg Config
}

// FromAggregate creates a Generator for agg.
func FromAggregate(agg *schema.Aggregate) *Generator {
	return &Generator{agg: agg}
}

// WithConfig replaces the whole configuration.
func (g *Generator) WithConfig(cfg Config) *Generator {
	g.cfg = cfg
	return g
}

// WithControllersModule sets the module exporting Controllers and Workers types.
func (g *Generator) WithControllersModule(path string) *Generator {
	g.cfg.ControllersModule = path
	return g
}

// WithMetadataModule sets the schema index module.
func (g *Generator) WithMetadataModule(path string) *Generator {
	g.cfg.MetadataModule = path
	return g
}

// WithRuntimeModule sets the package providing clientizeController and
// promisifyWorker.
func (g *Generator) WithRuntimeModule(path string) *Generator {
	g.cfg.RuntimeModule = path
	return g
}

// WithFetcher sets the fetcher module.
func (g *Generator) WithFetcher(path string) *Generator {
	g.cfg.Fetcher = path
	return g
}

// WithStreamFetcher sets the stream fetcher module.
func (g *Generator) WithStreamFetcher(path string) *Generator {
	g.cfg.StreamFetcher = path
	return g
}

// WithValidateOnClient sets the client-side validation module.
func (g *Generator) WithValidateOnClient(path string) *Generator {
	g.cfg.ValidateOnClient = path
	return g
}

// WithPrefix sets the URL prefix.
func (g *Generator) WithPrefix(prefix string) *Generator {
	g.cfg.Prefix = prefix
	return g
}

// Config returns the configuration with defaults applied.
func (g *Generator) Config() Config {
	return g.cfg.withDefaults()
}

// Generate renders the module pair without writing it.
func (g *Generator) Generate() (*Output, error) {
	return Generate(g.agg, g.cfg)
}

// ToSink generates and writes to s. It reports whether anything changed.
func (g *Generator) ToSink(ctx context.Context, s sink.Store) (bool, error) {
	out, err := g.Generate()
	if err != nil {
		return false, err
	}
	return Write(ctx, s, out)
}

// ToDir generates and writes to dir on the local filesystem.
func (g *Generator) ToDir(ctx context.Context, dir string) (bool, error) {
	return g.ToSink(ctx, sink.NewFilesystemSink(dir))
}
