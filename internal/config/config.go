package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults for the pipeline service.
const (
	DefaultListenAddr  = ":8080"
	DefaultDBPath      = "geoshard.db"
	DefaultInputDir    = "data/input"
	DefaultOutputDir   = "data/output"
	DefaultOutboxDir   = "data/outbox"
	DefaultMaxFileSize = 1 << 20 // 1 MiB
	DefaultMaxShards   = 3
)

// Config holds the service configuration. All fields have working defaults
// so an empty file (or no file at all) yields a runnable service.
type Config struct {
	ListenAddr       string `yaml:"listenAddr"`
	DBPath           string `yaml:"dbPath"`
	InputDir         string `yaml:"inputDir"`
	OutputDir        string `yaml:"outputDir"`
	OutboxDir        string `yaml:"outboxDir"`
	MaxFileSizeBytes int64  `yaml:"maxFileSizeBytes"`
	MaxShards        int    `yaml:"maxShards"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		ListenAddr:       DefaultListenAddr,
		DBPath:           DefaultDBPath,
		InputDir:         DefaultInputDir,
		OutputDir:        DefaultOutputDir,
		OutboxDir:        DefaultOutboxDir,
		MaxFileSizeBytes: DefaultMaxFileSize,
		MaxShards:        DefaultMaxShards,
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
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	if c.InputDir == "" {
		c.InputDir = DefaultInputDir
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.OutboxDir == "" {
		c.OutboxDir = DefaultOutboxDir
	}
	if c.MaxFileSizeBytes <= 0 {
		c.MaxFileSizeBytes = DefaultMaxFileSize
	}
	if c.MaxShards <= 0 {
		c.MaxShards = DefaultMaxShards
	}
}
