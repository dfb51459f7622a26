// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, duration parsing, and defaults

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"

database:
  path: "./test.db"

auth:
  jwt_secret: "test-secret"
  admin_token: "admin-token"
  lookup_timeout: "3s"

realtime:
  rate_window: "30s"
  rate_threshold: 5
  max_idle: "2h"
  sweep_interval: "90s"
  exempt_paths:
    - "/internal/dashboard"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/metrics"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Verify server config
	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}

	// Verify database config
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}

	// Verify auth config with duration parsing
	if cfg.Auth.JWTSecret != "test-secret" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "test-secret")
	}
	if cfg.Auth.LookupTimeout != 3*time.Second {
		t.Errorf("Auth.LookupTimeout = %v, want %v", cfg.Auth.LookupTimeout, 3*time.Second)
	}

	// Verify realtime config
	if cfg.Realtime.RateWindow != 30*time.Second {
		t.Errorf("Realtime.RateWindow = %v, want %v", cfg.Realtime.RateWindow, 30*time.Second)
	}
	if cfg.Realtime.RateThreshold != 5 {
		t.Errorf("Realtime.RateThreshold = %d, want 5", cfg.Realtime.RateThreshold)
	}
	if cfg.Realtime.MaxIdle != 2*time.Hour {
		t.Errorf("Realtime.MaxIdle = %v, want %v", cfg.Realtime.MaxIdle, 2*time.Hour)
	}
	if cfg.Realtime.SweepInterval != 90*time.Second {
		t.Errorf("Realtime.SweepInterval = %v, want %v", cfg.Realtime.SweepInterval, 90*time.Second)
	}
	if len(cfg.Realtime.ExemptPaths) != 1 || cfg.Realtime.ExemptPaths[0] != "/internal/dashboard" {
		t.Errorf("Realtime.ExemptPaths = %v, want [/internal/dashboard]", cfg.Realtime.ExemptPaths)
	}

	// Verify logging config
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}

	// Verify metrics config
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "./test.db"
auth:
  jwt_secret: "s"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.LookupTimeout != DefaultLookupTimeout {
		t.Errorf("Auth.LookupTimeout = %v, want default %v", cfg.Auth.LookupTimeout, DefaultLookupTimeout)
	}
	if cfg.Realtime.RateThreshold != DefaultRateThreshold {
		t.Errorf("Realtime.RateThreshold = %d, want default %d", cfg.Realtime.RateThreshold, DefaultRateThreshold)
	}
	if cfg.Realtime.RateWindow != DefaultRateWindow {
		t.Errorf("Realtime.RateWindow = %v, want default %v", cfg.Realtime.RateWindow, DefaultRateWindow)
	}
	if cfg.Realtime.MaxIdle != DefaultMaxIdle {
		t.Errorf("Realtime.MaxIdle = %v, want default %v", cfg.Realtime.MaxIdle, DefaultMaxIdle)
	}
	if cfg.Realtime.SweepInterval != DefaultSweepInterval {
		t.Errorf("Realtime.SweepInterval = %v, want default %v", cfg.Realtime.SweepInterval, DefaultSweepInterval)
	}
	if len(cfg.Realtime.ExemptPaths) != 0 {
		t.Errorf("Realtime.ExemptPaths = %v, want empty", cfg.Realtime.ExemptPaths)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want /metrics", cfg.Metrics.Path)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("QFGW_TEST_SECRET", "secret-from-env")

	configPath := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "./test.db"
auth:
  jwt_secret: "${QFGW_TEST_SECRET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.JWTSecret != "secret-from-env" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "secret-from-env")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Load() error = nil, want error for missing file")
	}
	if !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("Load() error = %v, want reading config file error", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "./test.db"
auth:
  jwt_secret: "s"
realtime:
  rate_window: "not-a-duration"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() error = nil, want duration parse error")
	}
	if !strings.Contains(err.Error(), "rate_window") {
		t.Errorf("Load() error = %v, want rate_window parse error", err)
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing http addr",
			content: `
database:
  path: "./test.db"
auth:
  jwt_secret: "s"
`,
			wantErr: "server.http_addr",
		},
		{
			name: "missing database path",
			content: `
server:
  http_addr: ":8080"
auth:
  jwt_secret: "s"
`,
			wantErr: "database.path",
		},
		{
			name: "missing jwt secret",
			content: `
server:
  http_addr: ":8080"
database:
  path: "./test.db"
`,
			wantErr: "auth.jwt_secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, tt.content)
			_, err := Load(configPath)
			if err == nil {
				t.Fatal("Load() error = nil, want validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
