// Package config loads the vovk.yaml project file used by the vovk command.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/finom/vovk/clientgen"
	"github.com/finom/vovk/schema"
)

// FileName is the config file looked up when no path is given.
const FileName = "vovk.yaml"

// Config is the project configuration.
type Config struct {
	// MetadataOutDir holds one schema file per segment plus the index module.
	MetadataOutDir string `yaml:"metadataOutDir" validate:"required"`

	// ClientOutDir receives the generated index.d.ts and index.js.
	ClientOutDir string `yaml:"clientOutDir" validate:"required"`

	// Controllers is the module exporting the Controllers and Workers types.
	Controllers string `yaml:"controllers" validate:"required"`

	// Segments is the active segment set, in index order.
	// An empty list means "every schema file present".
	Segments []string `yaml:"segments"`

	Runtime          string `yaml:"runtime"`
	Fetcher          string `yaml:"fetcher"`
	StreamFetcher    string `yaml:"streamFetcher"`
	ValidateOnClient string `yaml:"validateOnClient"`
	Prefix           string `yaml:"prefix"`

	Logging LoggingConfig `yaml:"logging"`

	// dir is the directory relative paths are resolved against.
	dir string
}

// LoggingConfig controls CLI log output.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Load reads the config file at path. Environment variables in the file are
// expanded, then VOVK_* variables override individual fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	cfg.dir = abs

	return finish(&cfg)
}

// LoadFromEnv builds a config from VOVK_* variables alone, relative to the
// working directory.
func LoadFromEnv() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg := &Config{dir: wd}
	return finish(cfg)
}

// LoadWithFallback loads path if it exists, and the environment otherwise.
// An empty path means FileName in the working directory.
func LoadWithFallback(path string) (*Config, error) {
	if path == "" {
		path = FileName
	}
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return Load(path)
	case errors.Is(err, fs.ErrNotExist):
		return LoadFromEnv()
	default:
		return nil, fmt.Errorf("stat config: %w", err)
	}
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)
	setDefaults(cfg)
	if err := structValidator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VOVK_METADATA_OUT_DIR"); v != "" {
		cfg.MetadataOutDir = v
	}
	if v := os.Getenv("VOVK_CLIENT_OUT_DIR"); v != "" {
		cfg.ClientOutDir = v
	}
	if v := os.Getenv("VOVK_CONTROLLERS"); v != "" {
		cfg.Controllers = v
	}
	if v := os.Getenv("VOVK_SEGMENTS"); v != "" {
		cfg.Segments = splitList(v)
	}
	if v := os.Getenv("VOVK_RUNTIME"); v != "" {
		cfg.Runtime = v
	}
	if v := os.Getenv("VOVK_FETCHER"); v != "" {
		cfg.Fetcher = v
	}
	if v := os.Getenv("VOVK_STREAM_FETCHER"); v != "" {
		cfg.StreamFetcher = v
	}
	if v := os.Getenv("VOVK_VALIDATE_ON_CLIENT"); v != "" {
		cfg.ValidateOnClient = v
	}
	if v := os.Getenv("VOVK_PREFIX"); v != "" {
		cfg.Prefix = v
	}
	if v := os.Getenv("VOVK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VOVK_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// splitList parses a comma separated list. The root segment is written as
// an empty item, so empty items are kept.
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func setDefaults(cfg *Config) {
	if cfg.MetadataOutDir == "" {
		cfg.MetadataOutDir = ".vovk-schema"
	}
	if cfg.ClientOutDir == "" {
		cfg.ClientOutDir = "node_modules/.vovk"
	}
	if cfg.Runtime == "" {
		cfg.Runtime = clientgen.DefaultRuntimeModule
	}
	if cfg.Fetcher == "" {
		cfg.Fetcher = clientgen.DefaultFetcher
	}
	if cfg.StreamFetcher == "" {
		cfg.StreamFetcher = clientgen.DefaultStreamFetcher
	}
	if cfg.Prefix == "" {
		cfg.Prefix = clientgen.DefaultPrefix
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// Dir returns the directory relative paths are resolved against.
func (c *Config) Dir() string {
	return c.dir
}

// MetadataDir returns the absolute schema directory.
func (c *Config) MetadataDir() string {
	return c.abs(c.MetadataOutDir)
}

// ClientDir returns the absolute client output directory.
func (c *Config) ClientDir() string {
	return c.abs(c.ClientOutDir)
}

func (c *Config) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.dir, p)
}

// Client returns the generator configuration. Module paths starting with "."
// are relative to the config file; they are rewritten relative to the client
// output directory, where the generated modules import them from. Package
// names are passed through.
func (c *Config) Client() (clientgen.Config, error) {
	clientDir := c.ClientDir()

	metadata, err := relModule(clientDir, filepath.Join(c.MetadataDir(), schema.IndexFile))
	if err != nil {
		return clientgen.Config{}, err
	}

	out := clientgen.Config{
		MetadataModule: metadata,
		RuntimeModule:  c.Runtime,
		Prefix:         c.Prefix,
	}
	for _, m := range []struct {
		src string
		dst *string
	}{
		{c.Controllers, &out.ControllersModule},
		{c.Fetcher, &out.Fetcher},
		{c.StreamFetcher, &out.StreamFetcher},
		{c.ValidateOnClient, &out.ValidateOnClient},
	} {
		if !strings.HasPrefix(m.src, ".") {
			*m.dst = m.src
			continue
		}
		rel, err := relModule(clientDir, c.abs(m.src))
		if err != nil {
			return clientgen.Config{}, err
		}
		*m.dst = rel
	}
	return out, nil
}

// relModule expresses target as a relative module specifier from dir.
func relModule(dir, target string) (string, error) {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return "", fmt.Errorf("resolve module %s: %w", target, err)
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, "../") {
		rel = "./" + rel
	}
	return rel, nil
}
