// Package config provides configuration loading for the parity tools.
//
// Configuration is loaded from a single YAML file specified by:
//   - the --config flag passed to the command, or
//   - the PARITY_CONFIG environment variable
//
// There is no discovery. Without either, the built-in defaults apply.
// Command-line flags are applied on top of the loaded values by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/parity/internal/bundle"
)

// EnvConfig names the environment variable holding the config file path.
const EnvConfig = "PARITY_CONFIG"

// Config is the configuration of the parity command.
type Config struct {
	// Compare configures artifact comparison.
	Compare CompareConfig `yaml:"compare"`

	// Export configures checkpoint export.
	Export ExportConfig `yaml:"export"`

	// Log configures diagnostic logging.
	Log LogConfig `yaml:"log"`
}

// CompareConfig configures artifact comparison.
type CompareConfig struct {
	// RTol is the relative tolerance, scaled by |right|.
	// Default: 1e-5
	RTol float64 `yaml:"rtol"`

	// ATol is the absolute tolerance.
	// Default: 1e-6
	ATol float64 `yaml:"atol"`

	// EarlyStop stops at the first failing key.
	EarlyStop bool `yaml:"early_stop"`

	// Workers bounds parallel key comparisons. 0 uses all CPUs.
	Workers int `yaml:"workers"`

	// Format is the report format: text, json or cbor.
	// Default: text
	Format string `yaml:"format"`
}

// ExportConfig configures checkpoint export.
type ExportConfig struct {
	// Policy names a built-in naming policy (see "parity policies").
	// Empty means detect from the checkpoint.
	Policy string `yaml:"policy"`

	// PolicyFile is a YAML or JSONC policy file. Takes precedence over Policy.
	PolicyFile string `yaml:"policy_file"`

	// Bounds overrides the policy's block counts, e.g. "1:3,2:4,3:6,4:3".
	Bounds string `yaml:"bounds"`

	// Compress stores NPZ entries with Deflate.
	Compress bool `yaml:"compress"`

	// Compression is the bundle entry compression for .pbnd outputs.
	// Default: none
	Compression string `yaml:"compression"`
}

// LogConfig configures diagnostic logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Compare: CompareConfig{
			RTol:   1e-5,
			ATol:   1e-6,
			Format: "text",
		},
		Export: ExportConfig{
			Compression: "none",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load resolves the configuration: the file at path if non-empty, else the
// file named by PARITY_CONFIG, else the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path. Values in the file
// override the defaults; unknown keys are rejected.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in file paths.
func (c *Config) expandVariables() {
	c.Export.PolicyFile = expandVars(c.Export.PolicyFile)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Formats accepted by compare.format.
var reportFormats = []string{"text", "json", "cbor"}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Compare.RTol < 0 {
		errs = append(errs, fmt.Errorf("compare.rtol must be >= 0, got %v", c.Compare.RTol))
	}
	if c.Compare.ATol < 0 {
		errs = append(errs, fmt.Errorf("compare.atol must be >= 0, got %v", c.Compare.ATol))
	}
	if c.Compare.Workers < 0 {
		errs = append(errs, fmt.Errorf("compare.workers must be >= 0, got %d", c.Compare.Workers))
	}
	if !slices.Contains(reportFormats, c.Compare.Format) {
		errs = append(errs, fmt.Errorf("compare.format must be one of: %v", reportFormats))
	}

	if _, err := bundle.ParseCompression(c.Export.Compression); err != nil {
		errs = append(errs, fmt.Errorf("export.compression: %w", err))
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return 0, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", name)
	}
	return level, nil
}
