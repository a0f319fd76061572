package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// autostartPath returns the systemd user unit location for the service.
func autostartPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "systemd", "user", name+".service")
}

func renderAutostart(desc Descriptor) []byte {
	var b strings.Builder
	b.WriteString("[Unit]\n")
	fmt.Fprintf(&b, "Description=%s\n", desc.DisplayName)
	b.WriteString("\n[Service]\n")
	fmt.Fprintf(&b, "ExecStart=%s", desc.Executable)
	for _, arg := range desc.Args {
		fmt.Fprintf(&b, " %s", arg)
	}
	b.WriteString("\n")
	if desc.WorkingDir != "" {
		fmt.Fprintf(&b, "WorkingDirectory=%s\n", desc.WorkingDir)
	}
	b.WriteString("Restart=on-failure\nRestartSec=5\n")
	b.WriteString("\n[Install]\nWantedBy=default.target\n")
	return []byte(b.String())
}

func autostartEnableCommands(desc Descriptor) [][]string {
	return [][]string{
		{"systemctl", "--user", "daemon-reload"},
		{"systemctl", "--user", "enable", desc.Name + ".service"},
	}
}

func autostartDisableCommands(desc Descriptor) [][]string {
	return [][]string{
		{"systemctl", "--user", "disable", desc.Name + ".service"},
		{"systemctl", "--user", "daemon-reload"},
	}
}
