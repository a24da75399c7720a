package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"weft/internal/config"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Capture.HardLimit <= cfg.Capture.WarnLimit-1 && cfg.Capture.WarnLimit > cfg.Capture.HardLimit {
		t.Fatal("warn limit must not exceed hard limit")
	}
}

func TestStaleThresholdConvertsMinutes(t *testing.T) {
	cfg := config.Default()
	cfg.Capture.StaleThresholdMinutes = 45
	if got := cfg.StaleThreshold(); got != 45*time.Minute {
		t.Fatalf("StaleThreshold = %v", got)
	}
}

func TestLoadParsesFileAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"
api_bind = " 127.0.0.1:9000 "

[capture]
hard_limit = 100
warn_limit = 80
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %s to be used, got %s exists=%v", path, resolved, exists)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9000" {
		t.Fatalf("api_bind not trimmed: %q", cfg.Paths.APIBind)
	}
	if cfg.Capture.HardLimit != 100 || cfg.Capture.WarnLimit != 80 {
		t.Fatalf("capture limits not applied: %+v", cfg.Capture)
	}
	if cfg.Capture.MaxBatchEvents == 0 {
		t.Fatal("expected max_batch_events default to be filled in")
	}
}

func TestLoadRejectsWarnAboveHard(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[capture]
hard_limit = 10
warn_limit = 20
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error when warn_limit exceeds hard_limit")
	} else if !strings.Contains(err.Error(), "warn_limit") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[capture]
hard_limit = 100
warn_limit = 80
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("WEFT_HARD_LIMIT", "500")
	t.Setenv("WEFT_LOG_LEVEL", "debug")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Capture.HardLimit != 500 {
		t.Fatalf("env override not applied: %d", cfg.Capture.HardLimit)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("env log level not applied: %q", cfg.Logging.Level)
	}
}

func TestValidateRejectsUnknownLogFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported log format")
	}
}
