// Package config loads the pipeline configuration from a YAML file and
// applies defaults for anything the file leaves unset.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfig marks a missing or invalid configuration value.
var ErrConfig = errors.New("invalid configuration")

// Config represents the application configuration
type Config struct {
	Source struct {
		BaseURL        string `yaml:"base_url"`
		ExecutionHour  string `yaml:"execution_hour"` // YYYYMMDD-HH
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"source"`

	Paths struct {
		RawDir      string `yaml:"raw_dir"`
		StagingDir  string `yaml:"staging_dir"`
		AnalysisLog string `yaml:"analysis_log"`
		RunSummary  string `yaml:"run_summary"`
	} `yaml:"paths"`

	Postgres struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Database string `yaml:"database"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"postgres"`

	Retry struct {
		Retries      int `yaml:"retries"`       // re-attempts per stage after the first try
		DelaySeconds int `yaml:"delay_seconds"` // fixed delay between attempts
	} `yaml:"retry"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Set defaults
	if cfg.Source.TimeoutSeconds == 0 {
		cfg.Source.TimeoutSeconds = 60
	}
	if cfg.Paths.AnalysisLog == "" {
		cfg.Paths.AnalysisLog = "logs/analysis_result.log"
	}
	if cfg.Paths.RunSummary == "" {
		cfg.Paths.RunSummary = "logs/run_summary.json"
	}
	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = "localhost"
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	if cfg.Retry.Retries == 0 {
		cfg.Retry.Retries = 3
	}
	if cfg.Retry.DelaySeconds == 0 {
		cfg.Retry.DelaySeconds = 30
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that every required value is present.
func (c *Config) Validate() error {
	if c.Source.BaseURL == "" {
		return fmt.Errorf("%w: source.base_url is required", ErrConfig)
	}
	if c.Source.ExecutionHour == "" {
		return fmt.Errorf("%w: source.execution_hour is required", ErrConfig)
	}
	if c.Paths.RawDir == "" {
		return fmt.Errorf("%w: paths.raw_dir is required", ErrConfig)
	}
	if c.Paths.StagingDir == "" {
		return fmt.Errorf("%w: paths.staging_dir is required", ErrConfig)
	}
	if c.Postgres.Database == "" {
		return fmt.Errorf("%w: postgres.database is required", ErrConfig)
	}
	return nil
}

// GetPostgresConnectionString returns a connection string for PostgreSQL
func (c *Config) GetPostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Database,
		c.Postgres.SSLMode,
	)
}

// DownloadTimeout bounds the whole transfer of one snapshot.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}

// RetryDelay is the fixed pause between stage attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Retry.DelaySeconds) * time.Second
}
