package testsupport

import (
	"path/filepath"
	"testing"

	"weft/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithAPIToken sets the operator bearer token on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.APIToken = token
	}
}

// WithCaptureLimits overrides the session capacity limits.
func WithCaptureLimits(hard, warn int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Capture.HardLimit = hard
		cfg.Capture.WarnLimit = warn
	}
}

// WithStaleMinutes overrides the staleness threshold.
func WithStaleMinutes(minutes int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Capture.StaleThresholdMinutes = minutes
	}
}
