// Package config loads CLI configuration from an optional YAML file with
// environment variable overrides. Flags still win over both.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the aotgraph configuration file layout.
type Config struct {
	DB string `yaml:"db"`

	Staging struct {
		Dir           string `yaml:"dir"`
		KeepExtracted bool   `yaml:"keep_extracted"`
	} `yaml:"staging"`

	Workers int `yaml:"workers"`

	Log struct {
		Level string `yaml:"level"` // debug|info|warn|error
	} `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{DB: "aotgraph.db"}
	cfg.Log.Level = "info"
	return cfg
}

// Load reads a YAML config file and applies environment overrides. An
// empty path yields the defaults with overrides only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if db := os.Getenv("AOTGRAPH_DB"); db != "" {
		cfg.DB = db
	}
	if dir := os.Getenv("AOTGRAPH_STAGING_DIR"); dir != "" {
		cfg.Staging.Dir = dir
	}
	if keep := os.Getenv("AOTGRAPH_KEEP_EXTRACTED"); keep != "" {
		cfg.Staging.KeepExtracted, _ = strconv.ParseBool(keep)
	}
	if workers := os.Getenv("AOTGRAPH_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if level := os.Getenv("AOTGRAPH_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	return cfg, nil
}
