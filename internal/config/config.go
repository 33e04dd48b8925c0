// Package config loads build settings from a .codeatlas.yml file at the
// project root. A missing file yields defaults; a malformed file is an
// error.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the per-project configuration file looked up at the root.
const FileName = ".codeatlas.yml"

// Config is the on-disk configuration shape.
type Config struct {
	// Environment names the build environment; defaults to "main".
	Environment string `yaml:"environment"`
	// SkipExtensions lists file extensions (with dot) excluded from builds.
	SkipExtensions []string `yaml:"skip_extensions"`
	// SkipNames lists file and directory names excluded from builds.
	SkipNames []string `yaml:"skip_names"`
	// Workers bounds parse parallelism; 0 picks the CPU count.
	Workers int `yaml:"workers"`
	// ReferenceTimeoutSeconds bounds one language-backend request.
	ReferenceTimeoutSeconds int `yaml:"reference_timeout_seconds"`
	// Servers overrides the command line per language id, e.g.
	//   servers:
	//     go: ["gopls", "-remote=auto"]
	Servers map[string][]string `yaml:"servers"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Environment:             "main",
		ReferenceTimeoutSeconds: 5,
	}
}

// Load reads the configuration from root, falling back to defaults when
// the file does not exist. Unset fields keep their defaults.
func Load(root string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(root, FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read %s: %w", FileName, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", FileName, err)
	}
	if cfg.Environment == "" {
		cfg.Environment = "main"
	}
	if cfg.ReferenceTimeoutSeconds <= 0 {
		cfg.ReferenceTimeoutSeconds = 5
	}
	return cfg, nil
}

// ReferenceTimeout returns the configured backend timeout as a duration.
func (c Config) ReferenceTimeout() time.Duration {
	return time.Duration(c.ReferenceTimeoutSeconds) * time.Second
}
