package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalid marks configuration validation failures so callers can
// distinguish them from runtime faults.
var ErrInvalid = errors.New("invalid configuration")

// ActionNames lists the housekeeping actions rules may reference.
var ActionNames = []string{"delete", "move", "notify"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateTargets(); err != nil {
		return err
	}
	if err := c.validateRules(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateDaemon(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWatch() error {
	if err := checkDuration("watch.debounce_window", c.Watch.DebounceWindow, true); err != nil {
		return err
	}
	if err := checkDuration("watch.retry_backoff", c.Watch.RetryBackoff, true); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTargets() error {
	for i, target := range c.Targets {
		if target.DebounceWindow != "" {
			field := fmt.Sprintf("targets[%d].debounce_window", i)
			if err := checkDuration(field, target.DebounceWindow, true); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Config) validateRules() error {
	names := make(map[string]struct{}, len(c.Rules))
	for i, rule := range c.Rules {
		if rule.Name == "" {
			return fmt.Errorf("%w: rules[%d].name must be set", ErrInvalid, i)
		}
		if _, dup := names[rule.Name]; dup {
			return fmt.Errorf("%w: rules[%d].name %q is duplicated", ErrInvalid, i, rule.Name)
		}
		names[rule.Name] = struct{}{}

		if rule.Pattern == "" {
			return fmt.Errorf("%w: rules[%d].pattern must be set", ErrInvalid, i)
		}
		if !validAction(rule.Action) {
			return fmt.Errorf("%w: rules[%d].action %q is not one of %s", ErrInvalid, i, rule.Action, strings.Join(ActionNames, ", "))
		}
		if rule.Action == "move" && rule.Destination == "" {
			return fmt.Errorf("%w: rules[%d].destination must be set for the move action", ErrInvalid, i)
		}
		if rule.Cooldown != "" {
			field := fmt.Sprintf("rules[%d].cooldown", i)
			if err := checkDuration(field, rule.Cooldown, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	for _, backend := range c.Notifications.Backends {
		switch backend {
		case "desktop", "ntfy":
		default:
			return fmt.Errorf("%w: notifications.backends %q is not one of desktop, ntfy", ErrInvalid, backend)
		}
		if backend == "ntfy" && c.Notifications.Enabled && c.Notifications.NtfyTopic == "" {
			return fmt.Errorf("%w: notifications.ntfy_topic must be set when the ntfy backend is enabled", ErrInvalid)
		}
	}
	return nil
}

func (c *Config) validateDaemon() error {
	if err := checkDuration("daemon.stop_timeout", c.Daemon.StopTimeout, true); err != nil {
		return err
	}
	if err := checkDuration("daemon.shutdown_timeout", c.Daemon.ShutdownTimeout, true); err != nil {
		return err
	}
	if c.Daemon.ShutdownWindow() >= c.Daemon.StopWindow() {
		return fmt.Errorf("%w: daemon.shutdown_timeout must be shorter than daemon.stop_timeout", ErrInvalid)
	}
	return nil
}

func validAction(action string) bool {
	for _, name := range ActionNames {
		if action == name {
			return true
		}
	}
	return false
}

func checkDuration(field, value string, requirePositive bool) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: %s %q is not a valid duration", ErrInvalid, field, value)
	}
	if parsed < 0 || (requirePositive && parsed == 0) {
		return fmt.Errorf("%w: %s must be positive", ErrInvalid, field)
	}
	return nil
}
