package objstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file form of Options:
//
//	path: data/app.db
//	backend: bolt        # bolt, memory or sqlite
//	verbose: false
//	mmap_size: 0         # bolt only, bytes
//	timeout: 10s         # lock wait for bolt, busy timeout for sqlite
type Config struct {
	Path     string        `yaml:"path"`
	Backend  Backend       `yaml:"backend"`
	Verbose  bool          `yaml:"verbose"`
	MmapSize int           `yaml:"mmap_size"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ParseConfig decodes a YAML config. Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("objstore config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("objstore config: %w", err)
	}
	return ParseConfig(data)
}

func (cfg *Config) Validate() error {
	switch cfg.Backend {
	case "", BackendBolt, BackendSQLite:
		if cfg.Path == "" {
			return fmt.Errorf("objstore config: path is required for backend %q", cfg.backend())
		}
	case BackendMemory:
	default:
		return fmt.Errorf("objstore config: unknown backend %q", cfg.Backend)
	}
	if cfg.MmapSize < 0 {
		return fmt.Errorf("objstore config: mmap_size must not be negative")
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("objstore config: timeout must not be negative")
	}
	return nil
}

func (cfg *Config) backend() Backend {
	if cfg.Backend == "" {
		return BackendBolt
	}
	return cfg.Backend
}

func (cfg *Config) Options() Options {
	return Options{
		Backend:  cfg.backend(),
		Verbose:  cfg.Verbose,
		MmapSize: cfg.MmapSize,
		Timeout:  cfg.Timeout,
	}
}

// OpenConfig opens the database described by cfg. logf may be nil.
func OpenConfig(cfg *Config, schema *Schema, logf func(format string, args ...any)) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opt := cfg.Options()
	opt.Logf = logf
	return Open(cfg.Path, schema, opt)
}
