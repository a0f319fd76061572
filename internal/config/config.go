package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir   string `toml:"log_dir"`
	StateDir string `toml:"state_dir"`
}

// Watch contains global watch engine tuning. Individual targets may override
// the debounce window.
type Watch struct {
	DebounceWindow   string `toml:"debounce_window"`
	BufferSize       int    `toml:"buffer_size"`
	ResyncMaxEntries int    `toml:"resync_max_entries"`
	RetryLimit       int    `toml:"retry_limit"`
	RetryBackoff     string `toml:"retry_backoff"`
}

// Debounce returns the parsed global debounce window.
func (w Watch) Debounce() time.Duration {
	return parseDurationOr(w.DebounceWindow, defaultDebounceWindow)
}

// Backoff returns the parsed watch re-establish backoff.
func (w Watch) Backoff() time.Duration {
	return parseDurationOr(w.RetryBackoff, defaultRetryBackoff)
}

// Target describes one watched filesystem location.
type Target struct {
	Path           string   `toml:"path"`
	Recursive      bool     `toml:"recursive"`
	Include        []string `toml:"include"`
	Exclude        []string `toml:"exclude"`
	DebounceWindow string   `toml:"debounce_window"`
}

// Debounce returns the target debounce window, falling back to the global
// value when the target does not override it.
func (t Target) Debounce(global Watch) time.Duration {
	if strings.TrimSpace(t.DebounceWindow) == "" {
		return global.Debounce()
	}
	return parseDurationOr(t.DebounceWindow, global.Debounce())
}

// Rule describes one housekeeping rule evaluated against dispatched events.
type Rule struct {
	Name        string `toml:"name"`
	Pattern     string `toml:"pattern"`
	Action      string `toml:"action"`
	Destination string `toml:"destination"`
	Cooldown    string `toml:"cooldown"`
	Exclusive   bool   `toml:"exclusive"`
	Notify      bool   `toml:"notify"`
}

// CooldownWindow returns the parsed per-rule cooldown.
func (r Rule) CooldownWindow() time.Duration {
	return parseDurationOr(r.Cooldown, 0)
}

// Notifications contains configuration for notification delivery.
type Notifications struct {
	Enabled        bool     `toml:"enabled"`
	Backends       []string `toml:"backends"`
	NtfyTopic      string   `toml:"ntfy_topic"`
	RequestTimeout int      `toml:"request_timeout"`
}

// Daemon contains lifecycle timing and service identity.
type Daemon struct {
	StopTimeout     string `toml:"stop_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
	ServiceName     string `toml:"service_name"`
	DisplayName     string `toml:"display_name"`
}

// StopWindow returns the parsed operator stop grace period.
func (d Daemon) StopWindow() time.Duration {
	return parseDurationOr(d.StopTimeout, defaultStopTimeout)
}

// ShutdownWindow returns the parsed internal drain deadline.
func (d Daemon) ShutdownWindow() time.Duration {
	return parseDurationOr(d.ShutdownTimeout, defaultShutdownTimeout)
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// History contains configuration for the action ledger.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Config encapsulates all configuration values for Housekeeper.
//
// Configuration sections by subsystem:
//   - Paths: log and state directories
//   - Watch: debounce, buffering, and watch recovery tuning
//   - Targets: watched filesystem locations
//   - Rules: housekeeping rules matched against dispatched events
//   - Notifications: desktop and ntfy delivery settings
//   - Daemon: stop/shutdown timing and service identity
//   - Logging: log format, level, and retention
//   - History: SQLite action ledger toggle
type Config struct {
	Paths         Paths         `toml:"paths"`
	Watch         Watch         `toml:"watch"`
	Targets       []Target      `toml:"targets"`
	Rules         []Rule        `toml:"rules"`
	Notifications Notifications `toml:"notifications"`
	Daemon        Daemon        `toml:"daemon"`
	Logging       Logging       `toml:"logging"`
	History       History       `toml:"history"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/housekeeper/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. The boolean reports whether a
// config file was found; absent files yield repository defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/housekeeper/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("housekeeper.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Save writes the configuration back to path as TOML. Used by the dirs
// commands when targets are edited from the CLI.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(trimmed)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
