// Package config provides configuration for the n2edm tools.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/n2edm/n2read/pkg/types"
)

// Config holds the configuration shared by every n2edm command.
type Config struct {
	// DataRoot is the directory holding the .hd/.EDMdat files
	DataRoot string `json:"data_root" yaml:"data_root"`

	// Layout is "sharded" (root/RRR/rrr/) or "flat"
	Layout string `json:"layout" yaml:"layout"`

	// StateDir holds the catalog database and staged downloads
	StateDir string `json:"state_dir" yaml:"state_dir"`

	// Log configuration
	Log LogConfig `json:"log" yaml:"log"`

	// Catalog configuration
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Read holds the default merge filter
	Read types.FilterSpec `json:"read" yaml:"read"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is debug, info (notice), warn or error
	Level string `json:"level" yaml:"level"`

	// Format is console or json
	Format string `json:"format" yaml:"format"`

	// File appends the log to a file instead of stderr
	File string `json:"file" yaml:"file"`

	// NoRepeatLastN is the number of recent distinct messages checked for repeats
	NoRepeatLastN int `json:"no_repeat_last_n" yaml:"no_repeat_last_n"`

	// RepeatMaxCount re-emits a repeated message after this many repeats
	RepeatMaxCount int `json:"repeat_max_count" yaml:"repeat_max_count"`

	// RepeatMaxInterval re-emits a repeated message after this long
	RepeatMaxInterval time.Duration `json:"repeat_max_interval" yaml:"repeat_max_interval"`
}

// CatalogConfig holds run span catalog configuration.
type CatalogConfig struct {
	// Path is the SQLite database path
	Path string `json:"path" yaml:"path"`

	// Subsystem selects the subsystem whose configs bound each run; empty picks the first
	Subsystem string `json:"subsystem" yaml:"subsystem"`

	// RefreshInterval is the interval between refreshes in watch mode
	RefreshInterval time.Duration `json:"refresh_interval" yaml:"refresh_interval"`

	// RefreshSchedule is a cron expression that overrides RefreshInterval
	RefreshSchedule string `json:"refresh_schedule" yaml:"refresh_schedule"`

	// Workers is the number of runs scanned in parallel
	Workers int `json:"workers" yaml:"workers"`
}

// StorageConfig holds archive storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`

	// Concurrency is the number of parallel downloads when staging
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Prefix is prepended to every object key
	Prefix string `json:"prefix" yaml:"prefix"`

	// UsePathStyle forces path-style addressing
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataRoot: "./data",
		Layout:   "sharded",
		StateDir: "./.n2edm",
		Log: LogConfig{
			Level:             "info",
			Format:            "console",
			NoRepeatLastN:     10,
			RepeatMaxCount:    100,
			RepeatMaxInterval: time.Minute,
		},
		Catalog: CatalogConfig{
			RefreshInterval: 10 * time.Minute,
			Workers:         4,
		},
		Storage: StorageConfig{
			Type:        "local",
			Concurrency: 8,
		},
	}
}

// Resolve fills paths that default to locations under StateDir.
func (c *Config) Resolve() {
	if c.StateDir == "" {
		c.StateDir = "./.n2edm"
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = filepath.Join(c.StateDir, "catalog.db")
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.StateDir, "archive")
	}
}

// LayoutValue parses Layout.
func (c *Config) LayoutValue() types.Layout {
	l, _ := types.ParseLayout(c.Layout)
	return l
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataRoot == "" {
		return fmt.Errorf("data_root is required")
	}

	if _, err := types.ParseLayout(c.Layout); err != nil {
		return fmt.Errorf("invalid layout: %s (must be sharded or flat)", c.Layout)
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Storage.Concurrency < 1 {
		return fmt.Errorf("storage.concurrency must be at least 1, got %d", c.Storage.Concurrency)
	}

	if c.Catalog.Workers < 1 {
		return fmt.Errorf("catalog.workers must be at least 1, got %d", c.Catalog.Workers)
	}

	if c.Catalog.RefreshSchedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(c.Catalog.RefreshSchedule); err != nil {
			return fmt.Errorf("invalid catalog.refresh_schedule %q: %w", c.Catalog.RefreshSchedule, err)
		}
	} else if c.Catalog.RefreshInterval <= 0 {
		return fmt.Errorf("catalog.refresh_interval must be positive")
	}

	if c.Read.StartTimestampNs != 0 && c.Read.EndTimestampNs != 0 && c.Read.StartTimestampNs > c.Read.EndTimestampNs {
		return fmt.Errorf("read.start_timestamp_ns is after read.end_timestamp_ns")
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the N2EDM_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("N2EDM_DATA_ROOT"); v != "" {
		cfg.DataRoot = v
	}
	if v := os.Getenv("N2EDM_LAYOUT"); v != "" {
		cfg.Layout = v
	}
	if v := os.Getenv("N2EDM_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}

	// Log configuration
	if v := os.Getenv("N2EDM_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("N2EDM_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("N2EDM_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("N2EDM_LOG_NO_REPEAT_LAST_N"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Log.NoRepeatLastN)
	}

	// Catalog configuration
	if v := os.Getenv("N2EDM_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("N2EDM_CATALOG_SUBSYSTEM"); v != "" {
		cfg.Catalog.Subsystem = v
	}
	if v := os.Getenv("N2EDM_CATALOG_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Catalog.RefreshInterval = d
		}
	}
	if v := os.Getenv("N2EDM_CATALOG_REFRESH_SCHEDULE"); v != "" {
		cfg.Catalog.RefreshSchedule = v
	}
	if v := os.Getenv("N2EDM_CATALOG_WORKERS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Catalog.Workers)
	}

	// Storage configuration
	if v := os.Getenv("N2EDM_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("N2EDM_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("N2EDM_STORAGE_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Storage.Concurrency)
	}
	if v := os.Getenv("N2EDM_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("N2EDM_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("N2EDM_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("N2EDM_S3_PREFIX"); v != "" {
		cfg.Storage.S3.Prefix = v
	}

	// Read filter
	if v := os.Getenv("N2EDM_READ_DECIMATION"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Read.Decimation)
	}
	if v := os.Getenv("N2EDM_READ_MAX_ROWS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Read.MaxRows)
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.StateDir,
		filepath.Dir(c.Catalog.Path),
	}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
