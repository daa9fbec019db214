package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds daemon configuration shared by the executor and worker
// commands. Values omitted from the file keep their defaults. No command-line
// flag overrides these values; --config only selects the file.
type Config struct {
	LogLevel     string `yaml:"log_level"`
	LogJSON      bool   `yaml:"log_json"`
	PollInterval string `yaml:"poll_interval"`
	CacheRoot    string `yaml:"cache_root"`
	DataDir      string `yaml:"data_dir"`
	Slots        int    `yaml:"slots"`
	MetricsAddr  string `yaml:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:     "info",
		PollInterval: "1s",
		DataDir:      ".tern",
		Slots:        0, // 0 lets the worker size its pool from the CPU count
		MetricsAddr:  "",
	}
}

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// PollIntervalDuration parses the poll interval, falling back to one second
// on a missing or malformed value.
func (c Config) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}
