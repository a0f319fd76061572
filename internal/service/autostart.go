//go:build !windows

package service

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"housekeeper/internal/logging"
)

// writeAutostart renders the platform artifact and writes it only when the
// content differs from what is on disk. Returns whether anything changed.
func writeAutostart(desc Descriptor) (bool, error) {
	path := autostartPath(desc.Name)
	if path == "" {
		return false, nil
	}
	want := renderAutostart(desc)
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, want) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create autostart directory: %w", err)
	}
	if err := os.WriteFile(path, want, 0o644); err != nil {
		return false, fmt.Errorf("write autostart artifact: %w", err)
	}
	return true, nil
}

func removeAutostart(desc Descriptor) error {
	path := autostartPath(desc.Name)
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove autostart artifact: %w", err)
	}
	return nil
}

func autostartInstalled(name string) bool {
	path := autostartPath(name)
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func (c *unixController) enableAutostart(desc Descriptor) error {
	if !desc.AutoStart {
		return nil
	}
	for _, argv := range autostartEnableCommands(desc) {
		if err := c.runCmd(argv[0], argv[1:]...); err != nil {
			return fmt.Errorf("enable autostart: %w", err)
		}
	}
	return nil
}

func (c *unixController) disableAutostart(desc Descriptor) error {
	if !autostartInstalled(desc.Name) {
		return nil
	}
	for _, argv := range autostartDisableCommands(desc) {
		if err := c.runCmd(argv[0], argv[1:]...); err != nil {
			// Artifact removal still proceeds; a missing manager tool
			// must not leave the service stuck installed.
			c.logger.Warn("disable autostart", logging.Error(err))
		}
	}
	return nil
}
