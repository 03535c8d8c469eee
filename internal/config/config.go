// Package config loads client configuration from an optional YAML file and
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"
	"gopkg.in/yaml.v3"
)

// Overwrite policies for existing destinations.
const (
	OverwriteAsk    = "ask"
	OverwriteAlways = "always"
	OverwriteNever  = "never"
)

// Config holds all dirfetch configuration.
type Config struct {
	// Server
	ServerURL         string        `yaml:"server"`
	Encoding          string        `yaml:"encoding"`
	MaxAttempts       int           `yaml:"max_attempts"`
	AttemptTimeout    time.Duration `yaml:"attempt_timeout"`
	ChunkSize         int           `yaml:"chunk_size"`
	RequestsPerSecond float64       `yaml:"max_rps"`

	// Destination: local directory or s3://bucket/prefix
	Destination string `yaml:"dest"`
	Overwrite   string `yaml:"overwrite"`
	NoProgress  bool   `yaml:"no_progress"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Metrics endpoint (empty = disabled)
	MetricsAddr string `yaml:"metrics_addr"`

	S3 S3Config `yaml:"s3"`
}

// S3Config holds credentials for s3:// destinations.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Encoding:       "utf-8",
		MaxAttempts:    7,
		AttemptTimeout: 5 * time.Second,
		ChunkSize:      1 << 20,
		Overwrite:      OverwriteAsk,
		LogLevel:       "info",
		LogFormat:      "console",
		S3: S3Config{
			Region: "us-east-1",
			UseSSL: true,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (or
// $DIRFETCH_CONFIG when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("DIRFETCH_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ServerURL = envOr("DIRFETCH_SERVER", cfg.ServerURL)
	cfg.Encoding = envOr("DIRFETCH_ENCODING", cfg.Encoding)
	cfg.MaxAttempts = envInt("DIRFETCH_MAX_ATTEMPTS", cfg.MaxAttempts)
	cfg.AttemptTimeout = envDuration("DIRFETCH_ATTEMPT_TIMEOUT", cfg.AttemptTimeout)
	cfg.ChunkSize = envInt("DIRFETCH_CHUNK_SIZE", cfg.ChunkSize)
	cfg.RequestsPerSecond = envFloat("DIRFETCH_MAX_RPS", cfg.RequestsPerSecond)
	cfg.Destination = envOr("DIRFETCH_DEST", cfg.Destination)
	cfg.Overwrite = envOr("DIRFETCH_OVERWRITE", cfg.Overwrite)
	cfg.NoProgress = envBool("DIRFETCH_NO_PROGRESS", cfg.NoProgress)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("LOG_FORMAT", cfg.LogFormat)
	cfg.MetricsAddr = envOr("METRICS_ADDR", cfg.MetricsAddr)
	cfg.S3.Endpoint = envOr("S3_ENDPOINT", cfg.S3.Endpoint)
	cfg.S3.Region = envOr("S3_REGION", cfg.S3.Region)
	cfg.S3.AccessKey = envOr("S3_ACCESS_KEY", cfg.S3.AccessKey)
	cfg.S3.SecretKey = envOr("S3_SECRET_KEY", cfg.S3.SecretKey)
	cfg.S3.UseSSL = envBool("S3_USE_SSL", cfg.S3.UseSSL)

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for values the client cannot use.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server URL is required")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.AttemptTimeout <= 0 {
		return fmt.Errorf("attempt timeout must be positive, got %s", c.AttemptTimeout)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("max rps must not be negative, got %g", c.RequestsPerSecond)
	}
	if _, err := htmlindex.Get(c.Encoding); err != nil {
		return fmt.Errorf("unknown encoding %q", c.Encoding)
	}
	switch c.Overwrite {
	case OverwriteAsk, OverwriteAlways, OverwriteNever:
	default:
		return fmt.Errorf("overwrite must be ask, always or never, got %q", c.Overwrite)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log format must be console or json, got %q", c.LogFormat)
	}
	if c.IsS3Destination() {
		if bucket, _ := c.S3Location(); bucket == "" {
			return fmt.Errorf("s3 destination %q has no bucket", c.Destination)
		}
	}
	return nil
}

// IsS3Destination reports whether downloads go to an S3 bucket.
func (c *Config) IsS3Destination() bool {
	return strings.HasPrefix(c.Destination, "s3://")
}

// S3Location splits an s3://bucket/prefix destination.
func (c *Config) S3Location() (bucket, prefix string) {
	rest := strings.TrimPrefix(c.Destination, "s3://")
	bucket, prefix, _ = strings.Cut(rest, "/")
	return bucket, strings.Trim(prefix, "/")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
