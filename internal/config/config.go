// Package config loads and validates the YAML configuration file that
// drives intake: which source to stream from, where to persist
// replication state, how segments are sized, and where output and the
// optional status server live.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceConfig describes the upstream system to stream mutations from.
type SourceConfig struct {
	Driver      string `yaml:"driver"`
	URL         string `yaml:"url"`
	State       string `yaml:"state"`
	Slot        string `yaml:"slot"`
	Publication string `yaml:"publication"`
}

// SegmentConfig controls how long a segment stays open and how many
// records it buffers before expiring.
type SegmentConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	Capacity int           `yaml:"capacity"`
}

// OutputConfig controls where closed segments are written as Parquet.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// HTTPConfig controls the optional status server. Addr left empty
// disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// Config is the top-level configuration document.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Segment SegmentConfig `yaml:"segment"`
	Output  OutputConfig  `yaml:"output"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

const (
	DefaultSegmentTTL      = 2 * time.Second
	DefaultSegmentCapacity = 1000
	DefaultOutputDir       = "."
)

// Load reads path, decodes exactly one YAML document into a Config,
// applies defaults, and validates required fields. Zero documents (an
// empty file) or more than one top-level document is a fatal error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg, err := decodeSingleDocument(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	return cfg, nil
}

// decodeSingleDocument enforces "exactly one top-level document":
// yaml.Decoder.Decode is called a second time to confirm the stream is
// exhausted, rather than trusting yaml.Unmarshal which silently takes
// only the first document of a multi-document stream.
func decodeSingleDocument(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if err == io.EOF {
			return nil, errors.New("empty configuration: exactly one top-level YAML document is required")
		}
		return nil, fmt.Errorf("parse: %w", err)
	}

	var extra yaml.Node
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return nil, errors.New("more than one YAML document present: exactly one top-level YAML document is required")
		}
		return nil, fmt.Errorf("parse: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Segment.TTL == 0 {
		c.Segment.TTL = DefaultSegmentTTL
	}
	if c.Segment.Capacity == 0 {
		c.Segment.Capacity = DefaultSegmentCapacity
	}
	if c.Output.Dir == "" {
		c.Output.Dir = DefaultOutputDir
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Validate checks that required fields are present and sane.
func (c *Config) Validate() error {
	var errs []error

	if c.Source.Driver == "" {
		errs = append(errs, errors.New("source.driver is required"))
	}
	if c.Source.URL == "" {
		errs = append(errs, errors.New("source.url is required"))
	}
	if c.Source.State == "" {
		errs = append(errs, errors.New("source.state is required"))
	}
	if c.Segment.TTL < 0 {
		errs = append(errs, errors.New("segment.ttl must not be negative"))
	}
	if c.Segment.Capacity < 1 {
		errs = append(errs, errors.New("segment.capacity must be at least 1"))
	}

	return errors.Join(errs...)
}
