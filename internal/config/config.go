package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	yaml "gopkg.in/yaml.v2"
)

const (
	// DefaultIndexURL is the Scryfall bulk-data index endpoint.
	DefaultIndexURL = "https://api.scryfall.com/bulk-data"
	// DefaultUserAgent identifies this tool on every outbound request.
	DefaultUserAgent = "mtg-collection-updater/1.0 (+https://github.com)"
	DefaultDataset   = "default_cards"
	DefaultOutput    = "cards.ndjson.gz"

	// MaxMetadataTimeout caps the index request regardless of the overall
	// download timeout.
	MaxMetadataTimeout = 60 * time.Second
)

// Output layouts understood by the record encoder.
const (
	StylePython  = "python"
	StyleCompact = "compact"
)

// ConfigError reports a configuration value that cannot be used.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// Config holds every setting of a fetch run. Default fills it, Load overlays
// a YAML file, and command-line flags are applied on top before Validate.
type Config struct {
	IndexURL  string `yaml:"index_url"`
	Dataset   string `yaml:"dataset"`
	UserAgent string `yaml:"user_agent"`
	// Outputs lists every sink path. The same lines are written to each, in
	// order. A ".gz" suffix selects gzip, ".zst" selects zstd.
	Outputs        []string `yaml:"outputs"`
	TimeoutSeconds float64  `yaml:"timeout_seconds"`
	// Limit stops the download after that many records. Zero means no limit.
	Limit int    `yaml:"limit"`
	Style string `yaml:"style"`
	// ProgressEvery controls how often a progress line is logged. Zero
	// disables progress logging.
	ProgressEvery int    `yaml:"progress_every"`
	LogLevel      string `yaml:"log_level"`
}

// Default returns the configuration used when no file and no flags are given.
func Default() *Config {
	return &Config{
		IndexURL:       DefaultIndexURL,
		Dataset:        DefaultDataset,
		UserAgent:      DefaultUserAgent,
		Outputs:        []string{DefaultOutput},
		TimeoutSeconds: 600,
		Style:          StylePython,
		ProgressEvery:  10_000,
		LogLevel:       "info",
	}
}

// Load reads the YAML file at path on top of the defaults and validates the
// result. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", absPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field and returns a *ConfigError for the first one
// that is unusable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.IndexURL)
	if c.IndexURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigError{Field: "index_url", Reason: fmt.Sprintf("%q is not an absolute http(s) URL", c.IndexURL)}
	}
	if c.Dataset == "" {
		return &ConfigError{Field: "dataset", Reason: "must not be empty"}
	}
	if len(c.Outputs) == 0 {
		return &ConfigError{Field: "outputs", Reason: "at least one output path is required"}
	}

	seen := make(map[string]struct{}, len(c.Outputs))
	for i, p := range c.Outputs {
		if p == "" {
			return &ConfigError{Field: "outputs", Reason: fmt.Sprintf("path at index %d is empty", i)}
		}
		// Two sinks on the same file would truncate each other.
		key := filepath.Clean(p)
		if _, dup := seen[key]; dup {
			return &ConfigError{Field: "outputs", Reason: fmt.Sprintf("path %q listed more than once", p)}
		}
		seen[key] = struct{}{}
	}

	if c.TimeoutSeconds <= 0 {
		return &ConfigError{Field: "timeout_seconds", Reason: "must be positive"}
	}
	if c.Limit < 0 {
		return &ConfigError{Field: "limit", Reason: "must not be negative"}
	}
	if c.ProgressEvery < 0 {
		return &ConfigError{Field: "progress_every", Reason: "must not be negative"}
	}

	switch c.Style {
	case StylePython, StyleCompact:
	default:
		return &ConfigError{Field: "style", Reason: fmt.Sprintf("unsupported style %q", c.Style)}
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return &ConfigError{Field: "log_level", Reason: err.Error()}
	}
	return nil
}

// Timeout is the overall timeout applied to the download request.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// MetadataTimeout is the timeout for the index request: the overall timeout,
// capped at MaxMetadataTimeout.
func (c *Config) MetadataTimeout() time.Duration {
	if t := c.Timeout(); t < MaxMetadataTimeout {
		return t
	}
	return MaxMetadataTimeout
}
