package vecforest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/vecforest/distance"
	"github.com/hupe1980/vecforest/resource"
)

// Config describes an index in YAML:
//
//	dimension: 128
//	metric: angular
//	seed: 42
//	resources:
//	  max_build_workers: 4
//	log:
//	  level: info
//	  format: json
type Config struct {
	Dimension    int             `yaml:"dimension"`
	Metric       distance.Metric `yaml:"metric"`
	LeafCapacity int             `yaml:"leaf_capacity,omitempty"`
	Seed         uint64          `yaml:"seed,omitempty"`
	Verbose      bool            `yaml:"verbose,omitempty"`
	OnDiskPath   string          `yaml:"on_disk_path,omitempty"`
	Resources    resource.Config `yaml:"resources,omitempty"`
	Log          LogConfig       `yaml:"log,omitempty"`
}

// LogConfig selects the logger built by NewFromConfig.
type LogConfig struct {
	// Level is debug, info, warn or error. Empty disables logging.
	Level string `yaml:"level,omitempty"`
	// Format is text (default) or json.
	Format string `yaml:"format,omitempty"`
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Dimension <= 0 {
		return &ErrInvalidDimension{Dimension: c.Dimension}
	}
	if !c.Metric.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidMetric, c.Metric)
	}
	if c.LeafCapacity < 0 || c.LeafCapacity == 1 {
		return fmt.Errorf("%w: %d", ErrInvalidLeafCapacity, c.LeafCapacity)
	}
	if _, err := c.Log.logger(); err != nil {
		return err
	}
	return nil
}

func (l LogConfig) logger() (*Logger, error) {
	if l.Level == "" {
		return nil, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return nil, fmt.Errorf("config: log level: %w", err)
	}
	switch strings.ToLower(l.Format) {
	case "", "text":
		return NewTextLogger(level), nil
	case "json":
		return NewJSONLogger(level), nil
	default:
		return nil, fmt.Errorf("config: unknown log format %q", l.Format)
	}
}

// ParseConfig decodes and validates a YAML configuration. Unknown keys are
// rejected.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return ParseConfig(data)
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// NewFromConfig creates an index from cfg. Options passed explicitly take
// precedence over the configuration. With OnDiskPath set the index is bound
// to that file as by OnDiskBuild.
func NewFromConfig(cfg *Config, optFns ...Option) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []Option{
		WithSeed(cfg.Seed),
		WithVerbose(cfg.Verbose),
		WithLeafCapacity(cfg.LeafCapacity),
	}
	if cfg.Resources != (resource.Config{}) {
		opts = append(opts, WithResourceLimits(cfg.Resources))
	}
	if logger, _ := cfg.Log.logger(); logger != nil {
		opts = append(opts, WithLogger(logger))
	}

	idx, err := New(cfg.Dimension, cfg.Metric, append(opts, optFns...)...)
	if err != nil {
		return nil, err
	}

	if cfg.OnDiskPath != "" {
		if err := idx.OnDiskBuild(cfg.OnDiskPath); err != nil {
			_ = idx.Close()
			return nil, err
		}
	}
	return idx, nil
}
