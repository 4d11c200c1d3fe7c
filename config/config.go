// Package config loads router configuration from YAML files.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	goversion "github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"

	"github.com/spcent/msgflow"
	"github.com/spcent/msgflow/pubsub"
)

// Duration decodes YAML duration strings such as "100ms" or "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"100ms\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// File is the on-disk configuration schema. Zero-valued fields fall back to
// pubsub.DefaultConfig.
type File struct {
	// Requires pins a compatible module version range, e.g. ">= 1.0".
	Requires string `yaml:"requires"`

	DefaultQueueSize  int      `yaml:"default_queue_size"`
	WorkerCount       int      `yaml:"worker_count"`
	ProcessingTimeout Duration `yaml:"processing_timeout"`
	EnableStatistics  *bool    `yaml:"enable_statistics"`
	DedupWindow       Duration `yaml:"dedup_window"`
}

// Load reads and decodes the configuration file at path.
func Load(path string) (pubsub.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return pubsub.Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode decodes YAML from r, rejecting unknown fields so typos surface as
// errors instead of silently falling back to defaults.
func Decode(r io.Reader) (pubsub.Config, error) {
	var file File
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return pubsub.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if err := checkRequires(file.Requires); err != nil {
		return pubsub.Config{}, err
	}

	cfg := pubsub.DefaultConfig()
	if file.DefaultQueueSize > 0 {
		cfg.DefaultQueueSize = file.DefaultQueueSize
	}
	if file.WorkerCount > 0 {
		cfg.WorkerCount = file.WorkerCount
	}
	if file.ProcessingTimeout > 0 {
		cfg.ProcessingTimeout = time.Duration(file.ProcessingTimeout)
	}
	if file.EnableStatistics != nil {
		cfg.EnableStats = *file.EnableStatistics
	}
	if file.DedupWindow > 0 {
		cfg.DedupWindow = time.Duration(file.DedupWindow)
	}
	return cfg, nil
}

// checkRequires validates the running module version against the constraint
// declared in the file, if any.
func checkRequires(expr string) error {
	if expr == "" {
		return nil
	}
	constraint, err := goversion.NewConstraint(expr)
	if err != nil {
		return fmt.Errorf("invalid requires constraint %q: %w", expr, err)
	}
	current, err := goversion.NewVersion(msgflow.Version)
	if err != nil {
		return fmt.Errorf("parse module version: %w", err)
	}
	if !constraint.Check(current) {
		return fmt.Errorf("config requires msgflow %s, running %s", expr, msgflow.Version)
	}
	return nil
}
