package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "server.yaml")
	contents := `
http_listen: 127.0.0.1:9000
repository:
  source: gs://claims-models/prod
  retry_interval: 250ms
models:
  - classify_claim_value
  - calculate_complex_claim_payout
`
	if err := os.WriteFile(configFile, []byte(contents), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(configFile)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if cfg.HTTPListen != "127.0.0.1:9000" {
		t.Errorf("unexpected http_listen %q", cfg.HTTPListen)
	}
	if cfg.GRPCListen != ":8081" {
		t.Errorf("expected default grpc_listen, got %q", cfg.GRPCListen)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("expected default shutdown_timeout, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Repository.Source != "gs://claims-models/prod" || cfg.Repository.RetryInterval != 250*time.Millisecond {
		t.Errorf("unexpected repository config %+v", cfg.Repository)
	}
	if cfg.Repository.MaxDownloadAttempts != 5 {
		t.Errorf("expected default max_download_attempts, got %d", cfg.Repository.MaxDownloadAttempts)
	}
	if !slices.Equal(cfg.Models, []string{"classify_claim_value", "calculate_complex_claim_payout"}) {
		t.Errorf("unexpected models %v", cfg.Models)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("CLAIMS_REPOSITORY_SOURCE", "/srv/models")
	t.Setenv("CLAIMS_MAX_REQUEST_BYTES", "1024")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if cfg.Repository.Source != "/srv/models" {
		t.Errorf("unexpected source %q", cfg.Repository.Source)
	}
	if cfg.MaxRequestBytes != 1024 {
		t.Errorf("unexpected max_request_bytes %d", cfg.MaxRequestBytes)
	}
}

func TestLoadConfigRequiresRepository(t *testing.T) {
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected missing repository source to be rejected")
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing config file to be rejected")
	}
}

func TestLoadDeployConfig(t *testing.T) {
	cfg, err := LoadConfig("../../deploy/claimserver.yaml")
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if cfg.Repository.Source != "deploy/models" {
		t.Errorf("unexpected repository source %q", cfg.Repository.Source)
	}
	if cfg.MaxRequestBytes != 8<<20 || cfg.Repository.MaxDownloadAttempts != 5 {
		t.Errorf("unexpected limits %+v", cfg)
	}
	if len(cfg.Models) != 0 {
		t.Errorf("expected every model to be served, got %v", cfg.Models)
	}
}
