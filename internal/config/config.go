// Package config loads the marketcorr YAML configuration and applies
// environment variable overrides.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the marketcorr service.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Server   Server         `yaml:"server"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Yahoo    Yahoo          `yaml:"yahoo"`
	Redis    Redis          `yaml:"redis"`
	Update   UpdateConfig   `yaml:"update"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Logging  Logging        `yaml:"logging"`
	Schedule Schedule       `yaml:"schedule"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// Yahoo configures the direct Yahoo chart API fallback transport.
type Yahoo struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Redis configures the optional result cache. An empty Addr disables Redis
// and the service falls back to an in-process cache.
type Redis struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

// UpdateConfig holds parameters for bulk download and incremental update runs.
type UpdateConfig struct {
	StartDate          string `yaml:"start_date"`
	BatchSize          int    `yaml:"batch_size"`
	MaxWorkers         int    `yaml:"max_workers"`
	BatchPauseSeconds  int    `yaml:"batch_pause_seconds"`
	DegradedPauseMilli int    `yaml:"degraded_pause_ms"`
	RetryAttempts      int    `yaml:"retry_attempts"`
	RequestsPerMinute  int    `yaml:"requests_per_minute"` // 0 disables the budget
}

// AnalysisConfig holds correlation engine defaults.
type AnalysisConfig struct {
	MinOverlap        int     `yaml:"min_overlap"`
	MinCorrelation    float64 `yaml:"min_correlation"`
	ResultLimit       int     `yaml:"result_limit"`
	DrawdownThreshold float64 `yaml:"drawdown_threshold"`
}

// Logging configures the application logger.
type Logging struct {
	Level string `yaml:"level"`
}

// Schedule holds the cron expression for the periodic incremental refresh.
// Empty disables scheduling.
type Schedule struct {
	UpdateCron string `yaml:"update_cron"`
}

// BatchPause returns the configured inter-batch pause for normal operation.
func (u UpdateConfig) BatchPause() time.Duration {
	return time.Duration(u.BatchPauseSeconds) * time.Second
}

// DegradedPause returns the shorter inter-batch pause used once the run has
// switched to the fallback transport.
func (u UpdateConfig) DegradedPause() time.Duration {
	return time.Duration(u.DegradedPauseMilli) * time.Millisecond
}

// Timeout returns the Yahoo per-request timeout.
func (y Yahoo) Timeout() time.Duration {
	if y.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(y.TimeoutSeconds) * time.Second
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies defaults, and then applies environment variable
// overrides. A missing file is not an error: the service runs on defaults
// and environment variables alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data/prices"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Update.StartDate == "" {
		cfg.Update.StartDate = "2010-01-01"
	}
	if cfg.Update.BatchSize <= 0 {
		cfg.Update.BatchSize = 50
	}
	if cfg.Update.MaxWorkers <= 0 {
		cfg.Update.MaxWorkers = 5
	}
	if cfg.Update.BatchPauseSeconds <= 0 {
		cfg.Update.BatchPauseSeconds = 2
	}
	if cfg.Update.DegradedPauseMilli <= 0 {
		cfg.Update.DegradedPauseMilli = 500
	}
	if cfg.Update.RetryAttempts <= 0 {
		cfg.Update.RetryAttempts = 3
	}
	if cfg.Analysis.MinOverlap <= 0 {
		cfg.Analysis.MinOverlap = 50
	}
	if cfg.Analysis.MinCorrelation == 0 {
		cfg.Analysis.MinCorrelation = 0.5
	}
	if cfg.Analysis.ResultLimit <= 0 {
		cfg.Analysis.ResultLimit = 100
	}
	if cfg.Analysis.DrawdownThreshold <= 0 {
		cfg.Analysis.DrawdownThreshold = 0.15
	}
	if cfg.Yahoo.BaseURL == "" {
		cfg.Yahoo.BaseURL = "https://query2.finance.yahoo.com"
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
