// Package config handles TOML configuration for costhound.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Provider string        `toml:"provider"`
	AWS      AWSConfig     `toml:"aws"`
	Engine   EngineConfig  `toml:"engine"`
	Pricing  PricingConfig `toml:"pricing"`
	Storage  StorageConfig `toml:"storage"`
	Daemon   DaemonConfig  `toml:"daemon"`
	OTEL     OTELConfig    `toml:"otel"`
	Log      LogConfig     `toml:"log"`
}

// AWSConfig holds AWS provider settings.
type AWSConfig struct {
	Regions []string `toml:"regions"`
	Profile string   `toml:"profile"`
}

// EngineConfig bounds scan execution.
type EngineConfig struct {
	MaxRegions        int    `toml:"max_regions"`
	RegionConcurrency int    `toml:"region_concurrency"`
	ScanDeadlineStr   string `toml:"scan_deadline"`
	ScanDeadline      time.Duration
	QueueWorkers      int `toml:"queue_workers"`
	QueueBuffer       int `toml:"queue_buffer"`
}

// PricingConfig tunes the price cache.
type PricingConfig struct {
	TTLStr string `toml:"ttl"`
	TTL    time.Duration
}

// StorageConfig locates the on-disk state.
type StorageConfig struct {
	Dir        string `toml:"dir"`
	JournalDir string `toml:"journal_dir"`
}

// DaemonConfig holds scheduled-scan settings.
type DaemonConfig struct {
	IntervalStr string `toml:"interval"`
	Interval    time.Duration
	MetricsPort int      `toml:"metrics_port"`
	Accounts    []string `toml:"accounts"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string `toml:"endpoint"`
	Insecure    bool   `toml:"insecure"`
	ServiceName string `toml:"service_name"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Load reads and parses a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := parseDurations(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	if err := parseDurations(cfg); err != nil {
		// Defaults are constants; a parse failure is a programming error
		panic(err)
	}
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Provider == "" {
		cfg.Provider = "aws"
	}
	if cfg.Engine.ScanDeadlineStr == "" {
		cfg.Engine.ScanDeadlineStr = "30m"
	}
	if cfg.Pricing.TTLStr == "" {
		cfg.Pricing.TTLStr = "24h"
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "./data"
	}
	if cfg.Storage.JournalDir == "" {
		cfg.Storage.JournalDir = cfg.Storage.Dir
	}
	if cfg.Daemon.IntervalStr == "" {
		cfg.Daemon.IntervalStr = "1h"
	}
	if cfg.Daemon.MetricsPort == 0 {
		cfg.Daemon.MetricsPort = 2113
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "costhound"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func parseDurations(cfg *Config) error {
	deadline, err := time.ParseDuration(cfg.Engine.ScanDeadlineStr)
	if err != nil {
		return fmt.Errorf("parse scan_deadline %q: %w", cfg.Engine.ScanDeadlineStr, err)
	}
	cfg.Engine.ScanDeadline = deadline

	ttl, err := time.ParseDuration(cfg.Pricing.TTLStr)
	if err != nil {
		return fmt.Errorf("parse pricing ttl %q: %w", cfg.Pricing.TTLStr, err)
	}
	cfg.Pricing.TTL = ttl

	interval, err := time.ParseDuration(cfg.Daemon.IntervalStr)
	if err != nil {
		return fmt.Errorf("parse daemon interval %q: %w", cfg.Daemon.IntervalStr, err)
	}
	cfg.Daemon.Interval = interval
	return nil
}

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if c.Engine.MaxRegions < 0 {
		return fmt.Errorf("engine: max_regions must not be negative")
	}
	if c.Engine.RegionConcurrency < 0 {
		return fmt.Errorf("engine: region_concurrency must not be negative")
	}
	if c.Daemon.Interval < time.Minute {
		return fmt.Errorf("daemon: interval below 1m would hammer provider APIs (got %s)", c.Daemon.Interval)
	}
	return nil
}
