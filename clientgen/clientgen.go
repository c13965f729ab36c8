// Package clientgen emits the client module pair for a project's aggregate
// schema: a type declaration module (index.d.ts) and a CommonJS runtime module
// (index.js) with one binding per controller and per worker.
//
// Output is a pure function of the aggregate and the Config. Bindings appear
// in aggregate order, which is segment order followed by each segment's
// registration order.
package clientgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/tools/txtar"

	"github.com/finom/vovk/schema"
	"github.com/finom/vovk/sink"
)

// Output file names, relative to the client output directory.
const (
	DeclarationFile = "index.d.ts"
	RuntimeFile     = "index.js"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultRuntimeModule = "vovk"
	DefaultFetcher       = "vovk/client/defaultFetcher"
	DefaultStreamFetcher = "vovk/client/defaultStreamFetcher"
	DefaultPrefix        = "/api"
)

const header = "// auto-generated by vovk, do not edit\n/* eslint-disable */\n"

// Config holds the resolved module paths the generated client imports.
// Every path is emitted verbatim.
type Config struct {
	// ControllersModule exports the Controllers and Workers types.
	// Required.
	ControllersModule string

	// MetadataModule is the schema index module. Required.
	MetadataModule string

	// RuntimeModule provides "<RuntimeModule>/client" and
	// "<RuntimeModule>/worker". Default: "vovk".
	RuntimeModule string

	// Fetcher is the default export used for request/response calls.
	Fetcher string

	// StreamFetcher is the default export used for streaming calls.
	StreamFetcher string

	// ValidateOnClient is an optional module whose default export validates
	// requests before they are sent.
	ValidateOnClient string

	// Prefix is the URL prefix prepended to every route path. Controllers
	// of a non-root segment use Prefix + "/" + segment name.
	Prefix string
}

func (c Config) withDefaults() Config {
	if c.RuntimeModule == "" {
		c.RuntimeModule = DefaultRuntimeModule
	}
	if c.Fetcher == "" {
		c.Fetcher = DefaultFetcher
	}
	if c.StreamFetcher == "" {
		c.StreamFetcher = DefaultStreamFetcher
	}
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	return c
}

func (c Config) validate() error {
	if c.ControllersModule == "" {
		return errors.New("clientgen: ControllersModule is required")
	}
	if c.MetadataModule == "" {
		return errors.New("clientgen: MetadataModule is required")
	}
	return nil
}

// Output is a generated module pair.
type Output struct {
	DTS []byte
	JS  []byte
}

// Archive renders both modules as one txtar archive, for previewing a run
// without touching the client directory.
func (o *Output) Archive() []byte {
	return txtar.Format(&txtar.Archive{
		Files: []txtar.File{
			{Name: DeclarationFile, Data: o.DTS},
			{Name: RuntimeFile, Data: o.JS},
		},
	})
}

// Generate renders the declaration and runtime modules for agg.
func Generate(agg *schema.Aggregate, cfg Config) (*Output, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if agg == nil {
		agg = &schema.Aggregate{}
	}

	var dts, js bytes.Buffer
	e := emitter{cfg: cfg, dts: &dts, js: &js}
	e.preamble()
	for name, entry := range agg.Controllers() {
		if err := checkIdentifier(name); err != nil {
			return nil, fmt.Errorf("controller in segment %q: %w", entry.Segment, err)
		}
		e.controller(name, entry.Segment)
	}
	for name, entry := range agg.Workers() {
		if err := checkIdentifier(name); err != nil {
			return nil, fmt.Errorf("worker in segment %q: %w", entry.Segment, err)
		}
		e.worker(name, entry.Segment)
	}
	return &Output{DTS: dts.Bytes(), JS: js.Bytes()}, nil
}

// Write stores out in s. Nothing is written when both files already hold
// identical content; changed reports whether a write happened.
func Write(ctx context.Context, s sink.Store, out *Output) (changed bool, err error) {
	prevDTS, err := readExisting(ctx, s, DeclarationFile)
	if err != nil {
		return false, err
	}
	prevJS, err := readExisting(ctx, s, RuntimeFile)
	if err != nil {
		return false, err
	}
	if bytes.Equal(prevDTS, out.DTS) && bytes.Equal(prevJS, out.JS) {
		return false, nil
	}
	if err := s.WriteFile(ctx, DeclarationFile, out.DTS); err != nil {
		return false, fmt.Errorf("write %s: %w", DeclarationFile, err)
	}
	if err := s.WriteFile(ctx, RuntimeFile, out.JS); err != nil {
		return false, fmt.Errorf("write %s: %w", RuntimeFile, err)
	}
	return true, nil
}

// readExisting returns nil for a missing file.
func readExisting(ctx context.Context, s sink.Store, path string) ([]byte, error) {
	data, err := s.ReadFile(ctx, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

type emitter struct {
	cfg Config
	dts *bytes.Buffer
	js  *bytes.Buffer
}

// quote renders s as a JS string literal. JSON strings are valid JS strings.
func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (e *emitter) preamble() {
	cfg := e.cfg
	client := quote(cfg.RuntimeModule + "/client")
	worker := quote(cfg.RuntimeModule + "/worker")

	e.dts.WriteString(header)
	fmt.Fprintf(e.dts, "import type { Controllers, Workers } from %s;\n", quote(cfg.ControllersModule))
	fmt.Fprintf(e.dts, "import type { clientizeController } from %s;\n", client)
	fmt.Fprintf(e.dts, "import type { promisifyWorker } from %s;\n", worker)
	fmt.Fprintf(e.dts, "import type { VovkClientFetcher } from %s;\n", client)
	fmt.Fprintf(e.dts, "import type fetcher from %s;\n", quote(cfg.Fetcher))
	e.dts.WriteString("\ntype Options = typeof fetcher extends VovkClientFetcher<infer U> ? U : never;\n\n")

	e.js.WriteString(header)
	fmt.Fprintf(e.js, "const { clientizeController } = require(%s);\n", client)
	fmt.Fprintf(e.js, "const { promisifyWorker } = require(%s);\n", worker)
	fmt.Fprintf(e.js, "const schema = require(%s);\n", quote(cfg.MetadataModule))
	fmt.Fprintf(e.js, "const { default: fetcher } = require(%s);\n", quote(cfg.Fetcher))
	fmt.Fprintf(e.js, "const { default: streamFetcher } = require(%s);\n", quote(cfg.StreamFetcher))
	fmt.Fprintf(e.js, "const prefix = %s;\n", quote(cfg.Prefix))
	validator := "{}"
	if cfg.ValidateOnClient != "" {
		validator = "require(" + quote(cfg.ValidateOnClient) + ")"
	}
	fmt.Fprintf(e.js, "const { default: validateOnClient = null } = %s;\n\n", validator)
}

// controller emits a binding whose URL base is the configured prefix plus
// the segment name, matching where the segment is mounted.
func (e *emitter) controller(name, segment string) {
	fmt.Fprintf(e.dts, "export const %s: ReturnType<typeof clientizeController<Controllers[%s], Options>>;\n", name, quote(name))
	fmt.Fprintf(e.js, "exports.%s = clientizeController(schema[%s][%s], { fetcher, streamFetcher, validateOnClient, defaultOptions: { prefix: %s } });\n",
		name, quote(segment), quote(name), segmentPrefix(segment))
}

// segmentPrefix returns the JS expression for a segment's URL base.
func segmentPrefix(segment string) string {
	if segment == "" {
		return "prefix"
	}
	return "prefix + " + quote("/"+segment)
}

func (e *emitter) worker(name, segment string) {
	fmt.Fprintf(e.dts, "export const %s: ReturnType<typeof promisifyWorker<Workers[%s]>>;\n", name, quote(name))
	fmt.Fprintf(e.js, "exports.%s = promisifyWorker(null, schema[%s].workers[%s]);\n", name, quote(segment), quote(name))
}
