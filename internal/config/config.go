// Package config provides configuration for the cpkpack tool.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/arkilian/cpkpack/internal/cpk"
	cpkerrors "github.com/arkilian/cpkpack/internal/errors"
)

// EnvPrefix is the prefix of every environment variable LoadFromEnv reads.
const EnvPrefix = "CPKPACK_"

// Storage types.
const (
	StorageNone  = "none"
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds the configuration for building, cataloguing and publishing
// archives.
type Config struct {
	// DataDir is the base directory for the catalog and local storage
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Archive holds the defaults for new archives; a manifest may override
	// them per build
	Archive cpk.Config `json:"archive" yaml:"archive"`

	// Catalog configuration
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Log configuration
	Log LogConfig `json:"log" yaml:"log"`
}

// CatalogConfig holds build catalog configuration.
type CatalogConfig struct {
	// Enabled controls whether finished archives are registered
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the SQLite database path
	Path string `json:"path" yaml:"path"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// Type is the storage type: none, local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// Prefix is prepended to every object key
	Prefix string `json:"prefix" yaml:"prefix"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is a logrus level name
	Level string `json:"level" yaml:"level"`

	// Format is text or json
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns the default configuration for local use.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/cpkpack",
		Archive: cpk.DefaultConfig(),
		Catalog: CatalogConfig{
			Enabled: false,
		},
		Storage: StorageConfig{
			Type: StorageNone,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/cpkpack"
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = filepath.Join(c.DataDir, "catalog.db")
	}
	if c.Storage.Type == StorageLocal && c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return invalid("data_dir is required")
	}

	if err := c.Archive.Validate(); err != nil {
		return err
	}

	switch c.Storage.Type {
	case StorageNone, StorageLocal, StorageS3:
	default:
		return invalid("invalid storage type: %s (must be none, local or s3)", c.Storage.Type)
	}
	if c.Storage.Type == StorageS3 && c.Storage.S3.Bucket == "" {
		return invalid("s3.bucket is required when storage type is s3")
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return invalid("invalid log level: %s", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	return nil
}

func invalid(format string, args ...interface{}) error {
	return cpkerrors.NewValidationError(cpkerrors.CodeInvalidConfig, fmt.Sprintf("config: "+format, args...))
}

// NewLogger builds a logger from the log section. The config must be
// valid.
func (c *Config) NewLogger() *logrus.Logger {
	l := logrus.New()
	if level, err := logrus.ParseLevel(c.Log.Level); err == nil {
		l.SetLevel(level)
	}
	if c.Log.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l
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
// Environment variables use the CPKPACK_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Archive configuration
	if v := os.Getenv(EnvPrefix + "ALIGNMENT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Archive.Alignment)
	}
	if v := os.Getenv(EnvPrefix + "CIPHER_TABLES"); v != "" {
		cfg.Archive.CipherTables = v == "true" || v == "1"
	}
	if v := os.Getenv(EnvPrefix + "RANDOMIZE_PADDING"); v != "" {
		cfg.Archive.RandomizePadding = v == "true" || v == "1"
	}
	if v := os.Getenv(EnvPrefix + "COMMENT"); v != "" {
		cfg.Archive.Comment = v
	}

	// Catalog configuration
	if v := os.Getenv(EnvPrefix + "CATALOG_ENABLED"); v != "" {
		cfg.Catalog.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv(EnvPrefix + "CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}

	// Storage configuration
	if v := os.Getenv(EnvPrefix + "STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv(EnvPrefix + "STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv(EnvPrefix + "STORAGE_PREFIX"); v != "" {
		cfg.Storage.Prefix = v
	}
	if v := os.Getenv(EnvPrefix + "S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv(EnvPrefix + "S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv(EnvPrefix + "S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}

	// Log configuration
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.Catalog.Enabled {
		dirs = append(dirs, filepath.Dir(c.Catalog.Path))
	}
	if c.Storage.Type == StorageLocal {
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
