// Package config loads the YAML configuration for the classpath-cache CLI.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config controls where the cache lives and how batches run.
type Config struct {
	// CacheDir is the persistent cache root.
	CacheDir string `yaml:"cacheDir"`
	// Workers bounds the transform worker pool; 0 means all processors.
	Workers int `yaml:"workers"`
	// Journal toggles the leveldb access-time journal used by external
	// eviction policy.
	Journal struct {
		Enabled bool   `yaml:"enabled"`
		Dir     string `yaml:"dir"`
	} `yaml:"journal"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.CacheDir = "tmp/.classpath-cache"
	cfg.Workers = runtime.NumCPU()
	return cfg
}

// Load reads and validates a config file, filling defaults for omitted
// fields.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if cfg.CacheDir == "" {
		return Config{}, fmt.Errorf("config %s: cacheDir is required", path)
	}
	if cfg.Workers < 0 {
		return Config{}, fmt.Errorf("config %s: workers must be >= 0", path)
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Journal.Enabled && cfg.Journal.Dir == "" {
		cfg.Journal.Dir = cfg.CacheDir + ".journal"
	}
	return cfg, nil
}
