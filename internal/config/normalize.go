package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTargets(); err != nil {
		return err
	}
	c.normalizeRules()
	c.normalizeWatch()
	c.normalizeNotifications()
	c.normalizeDaemon()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTargets() error {
	normalized := make([]Target, 0, len(c.Targets))
	seen := make(map[string]struct{}, len(c.Targets))
	for i := range c.Targets {
		target := c.Targets[i]
		trimmed := strings.TrimSpace(target.Path)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("targets[%d].path: %w", i, err)
		}
		if _, dup := seen[expanded]; dup {
			continue
		}
		seen[expanded] = struct{}{}
		target.Path = expanded
		target.Include = cleanPatterns(target.Include)
		target.Exclude = cleanPatterns(target.Exclude)
		target.DebounceWindow = strings.TrimSpace(target.DebounceWindow)
		normalized = append(normalized, target)
	}
	c.Targets = normalized
	return nil
}

func (c *Config) normalizeRules() {
	for i := range c.Rules {
		rule := &c.Rules[i]
		rule.Name = strings.TrimSpace(rule.Name)
		rule.Pattern = strings.TrimSpace(rule.Pattern)
		rule.Action = strings.ToLower(strings.TrimSpace(rule.Action))
		rule.Destination = strings.TrimSpace(rule.Destination)
		rule.Cooldown = strings.TrimSpace(rule.Cooldown)
		if rule.Destination != "" {
			if expanded, err := expandPath(rule.Destination); err == nil {
				rule.Destination = expanded
			}
		}
	}
}

func (c *Config) normalizeWatch() {
	c.Watch.DebounceWindow = strings.TrimSpace(c.Watch.DebounceWindow)
	if c.Watch.DebounceWindow == "" {
		c.Watch.DebounceWindow = defaultDebounceWindowText
	}
	if c.Watch.BufferSize <= 0 {
		c.Watch.BufferSize = defaultBufferSize
	}
	if c.Watch.ResyncMaxEntries <= 0 {
		c.Watch.ResyncMaxEntries = defaultResyncMaxEntries
	}
	if c.Watch.RetryLimit <= 0 {
		c.Watch.RetryLimit = defaultRetryLimit
	}
	c.Watch.RetryBackoff = strings.TrimSpace(c.Watch.RetryBackoff)
	if c.Watch.RetryBackoff == "" {
		c.Watch.RetryBackoff = defaultRetryBackoffText
	}
}

func (c *Config) normalizeNotifications() {
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("HOUSEKEEPER_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultRequestTimeout
	}

	backends := make([]string, 0, len(c.Notifications.Backends))
	seen := make(map[string]struct{}, len(c.Notifications.Backends))
	for _, backend := range c.Notifications.Backends {
		normalized := strings.ToLower(strings.TrimSpace(backend))
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		backends = append(backends, normalized)
	}
	if len(backends) == 0 {
		backends = []string{"desktop"}
	}
	c.Notifications.Backends = backends
}

func (c *Config) normalizeDaemon() {
	c.Daemon.StopTimeout = strings.TrimSpace(c.Daemon.StopTimeout)
	if c.Daemon.StopTimeout == "" {
		c.Daemon.StopTimeout = defaultStopTimeoutText
	}
	c.Daemon.ShutdownTimeout = strings.TrimSpace(c.Daemon.ShutdownTimeout)
	if c.Daemon.ShutdownTimeout == "" {
		c.Daemon.ShutdownTimeout = defaultShutdownText
	}
	c.Daemon.ServiceName = strings.TrimSpace(c.Daemon.ServiceName)
	if c.Daemon.ServiceName == "" {
		c.Daemon.ServiceName = defaultServiceName
	}
	c.Daemon.DisplayName = strings.TrimSpace(c.Daemon.DisplayName)
	if c.Daemon.DisplayName == "" {
		c.Daemon.DisplayName = defaultDisplayName
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func cleanPatterns(patterns []string) []string {
	cleaned := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		trimmed := strings.TrimSpace(pattern)
		if trimmed == "" {
			continue
		}
		cleaned = append(cleaned, trimmed)
	}
	return cleaned
}
