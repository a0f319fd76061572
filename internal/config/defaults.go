package config

import "time"

const (
	defaultLogDir             = "~/.local/state/housekeeper/logs"
	defaultStateDir           = "~/.local/state/housekeeper"
	defaultDebounceWindowText = "300ms"
	defaultBufferSize         = 512
	defaultResyncMaxEntries   = 10000
	defaultRetryLimit         = 5
	defaultRetryBackoffText   = "1s"
	defaultStopTimeoutText    = "10s"
	defaultShutdownText       = "5s"
	defaultServiceName        = "housekeeper"
	defaultDisplayName        = "Housekeeper Directory Monitor"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
	defaultRequestTimeout     = 10
)

const (
	defaultDebounceWindow  = 300 * time.Millisecond
	defaultRetryBackoff    = time.Second
	defaultStopTimeout     = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Watch: Watch{
			DebounceWindow:   defaultDebounceWindowText,
			BufferSize:       defaultBufferSize,
			ResyncMaxEntries: defaultResyncMaxEntries,
			RetryLimit:       defaultRetryLimit,
			RetryBackoff:     defaultRetryBackoffText,
		},
		Notifications: Notifications{
			Enabled:        true,
			Backends:       []string{"desktop"},
			RequestTimeout: defaultRequestTimeout,
		},
		Daemon: Daemon{
			StopTimeout:     defaultStopTimeoutText,
			ShutdownTimeout: defaultShutdownText,
			ServiceName:     defaultServiceName,
			DisplayName:     defaultDisplayName,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		History: History{
			Enabled: true,
		},
	}
}
