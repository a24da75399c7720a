package config

import "time"

const (
	defaultDataDir               = "~/.local/share/weft"
	defaultLogDir                = "~/.local/share/weft/logs"
	defaultAPIBind               = "127.0.0.1:7810"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultStaleThresholdMinutes = 30
	defaultHardLimit             = 2000
	defaultWarnLimit             = 1600
	defaultMaxBatchEvents        = 500
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Capture: Capture{
			StaleThresholdMinutes: defaultStaleThresholdMinutes,
			HardLimit:             defaultHardLimit,
			WarnLimit:             defaultWarnLimit,
			MaxBatchEvents:        defaultMaxBatchEvents,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// StaleThreshold returns the session staleness deadline as a duration.
func (c *Config) StaleThreshold() time.Duration {
	return time.Duration(c.Capture.StaleThresholdMinutes) * time.Minute
}
