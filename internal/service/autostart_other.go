//go:build !linux && !darwin && !windows

package service

// Platforms without a supported init integration run the daemon manually;
// install and uninstall manage only the pid record.

func autostartPath(string) string { return "" }

func renderAutostart(Descriptor) []byte { return nil }

func autostartEnableCommands(Descriptor) [][]string { return nil }

func autostartDisableCommands(Descriptor) [][]string { return nil }
