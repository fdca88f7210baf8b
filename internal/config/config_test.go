package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	yamlContent := []byte(`
storage:
  data_dir: "/tmp/marketcorr/data"
  sqlite_path: "/tmp/marketcorr/marketcorr.db"
server:
  host: "0.0.0.0"
  port: 8000
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  data_url: "https://data.alpaca.markets"
yahoo:
  base_url: "https://query2.finance.yahoo.com"
  timeout_seconds: 15
redis:
  addr: "localhost:6379"
  db: 0
update:
  start_date: "2010-01-01"
  batch_size: 50
  max_workers: 5
  batch_pause_seconds: 2
  degraded_pause_ms: 500
  retry_attempts: 3
analysis:
  min_overlap: 50
  min_correlation: 0.5
  result_limit: 100
  drawdown_threshold: 0.15
logging:
  level: "info"
schedule:
  update_cron: "0 30 22 * * 1-5"
`)

	path := filepath.Join(t.TempDir(), "marketcorr.yaml")
	if err := os.WriteFile(path, yamlContent, 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	os.Unsetenv("APCA_API_KEY_ID")
	os.Unsetenv("APCA_API_SECRET_KEY")
	os.Unsetenv("DATA_DIR")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.DataDir != "/tmp/marketcorr/data" {
		t.Errorf("DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("APIKey = %q", cfg.Alpaca.APIKey)
	}
	if cfg.Update.BatchSize != 50 {
		t.Errorf("BatchSize = %d, want 50", cfg.Update.BatchSize)
	}
	if cfg.Analysis.MinOverlap != 50 {
		t.Errorf("MinOverlap = %d, want 50", cfg.Analysis.MinOverlap)
	}
	if cfg.Schedule.UpdateCron == "" {
		t.Error("UpdateCron should be set")
	}
}

func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  data_dir: /tmp/x\n"), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Update.StartDate != "2010-01-01" {
		t.Errorf("default StartDate = %q, want 2010-01-01", cfg.Update.StartDate)
	}
	if cfg.Update.BatchSize != 50 || cfg.Update.MaxWorkers != 5 {
		t.Errorf("default batch params = (%d, %d), want (50, 5)", cfg.Update.BatchSize, cfg.Update.MaxWorkers)
	}
	if cfg.Analysis.MinCorrelation != 0.5 {
		t.Errorf("default MinCorrelation = %v, want 0.5", cfg.Analysis.MinCorrelation)
	}
	if cfg.Yahoo.BaseURL == "" {
		t.Error("default Yahoo base URL should be set")
	}
}

func TestLoadMissingFile(t *testing.T) {
	os.Unsetenv("DATA_DIR")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("a missing config file must not be an error, got %v", err)
	}
	if cfg.Storage.DataDir != "data/prices" {
		t.Errorf("DataDir = %q, want default", cfg.Storage.DataDir)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want default 8080", cfg.Server.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	if err := os.WriteFile(path, []byte("alpaca:\n  api_key: from-file\n"), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	t.Setenv("APCA_API_KEY_ID", "from-env")
	t.Setenv("DATA_DIR", "/override/data")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Alpaca.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want env override", cfg.Alpaca.APIKey)
	}
	if cfg.Storage.DataDir != "/override/data" {
		t.Errorf("DataDir = %q, want env override", cfg.Storage.DataDir)
	}
}
