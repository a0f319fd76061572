// Package config loads, normalizes, and validates Housekeeper configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// HOUSEKEEPER_NTFY_TOPIC. The Config type centralizes every knob the daemon
// and CLI need: watched targets, housekeeping rules, debounce tuning, and
// lifecycle timing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, parsed durations, and clear validation errors.
package config
