// Package config holds the explicit configuration passed to every s3xfer
// component. Values come from defaults, then an optional YAML file, then
// command line flags that were set explicitly.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/franksops/s3xfer/errs"
)

// DefaultFileName is looked up in the home directory when no file is given.
const DefaultFileName = ".s3xfer.yaml"

// StageTags are the accepted values of the stage tag.
var StageTags = []string{"dev", "prod", "val"}

// RetryConfig configures the content type assignment after uploads.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// TagOptions are the S3 object tags applied to uploads.
type TagOptions struct {
	Description string `yaml:"-"`
	Developer   string `yaml:"-"`
	Project     string `yaml:"-"`
	Stage       string `yaml:"-"`
	Version     string `yaml:"-"`
}

// Map returns the non-empty tags keyed as "<name>_tag".
func (t TagOptions) Map() map[string]string {
	tags := make(map[string]string)
	for _, kv := range []struct{ name, value string }{
		{"description", t.Description},
		{"developer", t.Developer},
		{"project", t.Project},
		{"stage", t.Stage},
		{"version", t.Version},
	} {
		if kv.value != "" {
			tags[kv.name+"_tag"] = kv.value
		}
	}
	return tags
}

// Any reports whether any tag is set.
func (t TagOptions) Any() bool {
	return len(t.Map()) > 0
}

// Config is the configuration of one s3xfer invocation.
type Config struct {
	Profile     string      `yaml:"profile"`
	Region      string      `yaml:"region"`
	Workers     int         `yaml:"workers"`
	Bucket      string      `yaml:"bucket"`
	Basedir     string      `yaml:"basedir"`
	ContentType RetryConfig `yaml:"content_type"`
	Metric      string      `yaml:"metric"`
	Journal     string      `yaml:"journal"`
	MetricsFile string      `yaml:"metrics_file"`

	// Per-invocation settings, only taken from the command line.
	Sources   []string   `yaml:"-"`
	Order     string     `yaml:"-"`
	Download  bool       `yaml:"-"`
	Delete    bool       `yaml:"-"`
	Cloud     bool       `yaml:"-"`
	EndsWith  string     `yaml:"-"`
	Tags      TagOptions `yaml:"-"`
	DryRun    bool       `yaml:"-"`
	Verbose   bool       `yaml:"-"`
	Debug     bool       `yaml:"-"`
	KeepGoing bool       `yaml:"-"`
	Resume    bool       `yaml:"-"`
	Progress  bool       `yaml:"-"`
}

// NewDefault returns a configuration with the built-in defaults.
func NewDefault() *Config {
	return &Config{
		Workers: 12,
		ContentType: RetryConfig{
			Attempts: 8,
			Delay:    4 * time.Second,
		},
		Metric: "Maximum",
	}
}

// DefaultPath returns ~/.s3xfer.yaml, or "" when the home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DefaultFileName)
}

// LoadFromFile overlays the YAML file at filename onto c.
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return &errs.IOError{Op: "read config", Path: filename, Err: err}
	}

	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return errs.Configf("failed to parse config file %s: %v", filename, err)
	}
	return nil
}

// Load returns the defaults overlaid with filename. An empty filename means
// the default path, which may be absent; an explicitly named file must exist.
func Load(filename string) (*Config, error) {
	c := NewDefault()

	explicit := filename != ""
	if !explicit {
		filename = DefaultPath()
		if filename == "" {
			return c, nil
		}
	}

	if err := c.LoadFromFile(filename); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, err
	}
	return c, nil
}

// Validate checks the transfer options before any I/O happens. Every
// failure is a *errs.ConfigurationError.
func (c *Config) Validate() error {
	msg := ""
	if len(c.Sources) == 0 && c.Order == "" {
		msg = "You must specify an order file or source path(s)"
	}
	switch {
	case c.Download:
		if c.Basedir == "" {
			msg = "You must specify a local base directory"
		}
		if c.Tags.Any() {
			msg = "Tags may only be used when uploading files"
		}
	case c.Delete && c.Order == "":
		msg = "You must specify an order file with --delete"
	case c.Cloud && c.Order == "":
		msg = "You must specify an order file with --cloud"
	case !c.Delete && !c.Cloud:
		if c.Order == "" && c.Bucket == "" {
			msg = "You must specify an order file or a source path/bucket"
		}
	}
	if msg != "" {
		return &errs.ConfigurationError{Msg: msg}
	}

	if c.Delete && c.Cloud {
		return errs.Configf("--delete and --cloud are mutually exclusive")
	}
	if c.Download && (c.Delete || c.Cloud) {
		return errs.Configf("--download cannot be combined with --delete or --cloud")
	}
	if c.Tags.Stage != "" && !validStage(c.Tags.Stage) {
		return errs.Configf("invalid stage tag %q (must be one of: dev, prod, val)", c.Tags.Stage)
	}
	return c.ValidateCommon()
}

// ValidateCommon checks the settings shared by every tool.
func (c *Config) ValidateCommon() error {
	if c.Workers <= 0 {
		return errs.Configf("workers must be greater than 0")
	}
	if c.ContentType.Attempts <= 0 {
		return errs.Configf("content_type.attempts must be greater than 0")
	}
	if c.ContentType.Delay < 0 {
		return errs.Configf("content_type.delay must not be negative")
	}
	if c.Resume && c.Journal == "" {
		return errs.Configf("--resume requires --journal")
	}
	return nil
}

func validStage(s string) bool {
	for _, v := range StageTags {
		if s == v {
			return true
		}
	}
	return false
}
