package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.APIBind == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Capture.StaleThresholdMinutes <= 0 {
		return errors.New("capture.stale_threshold_minutes must be positive")
	}
	if c.Capture.HardLimit <= 0 {
		return errors.New("capture.hard_limit must be positive")
	}
	if c.Capture.WarnLimit <= 0 {
		return errors.New("capture.warn_limit must be positive")
	}
	if c.Capture.WarnLimit > c.Capture.HardLimit {
		return errors.New("capture.warn_limit must not exceed capture.hard_limit")
	}
	if c.Capture.MaxBatchEvents <= 0 {
		return errors.New("capture.max_batch_events must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
