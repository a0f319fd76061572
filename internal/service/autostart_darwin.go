package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// autostartPath returns the launchd agent location for the service.
func autostartPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "Library", "LaunchAgents", name+".plist")
}

func renderAutostart(desc Descriptor) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">` + "\n")
	b.WriteString("<plist version=\"1.0\">\n<dict>\n")
	fmt.Fprintf(&b, "\t<key>Label</key>\n\t<string>%s</string>\n", desc.Name)
	b.WriteString("\t<key>ProgramArguments</key>\n\t<array>\n")
	fmt.Fprintf(&b, "\t\t<string>%s</string>\n", desc.Executable)
	for _, arg := range desc.Args {
		fmt.Fprintf(&b, "\t\t<string>%s</string>\n", arg)
	}
	b.WriteString("\t</array>\n")
	if desc.WorkingDir != "" {
		fmt.Fprintf(&b, "\t<key>WorkingDirectory</key>\n\t<string>%s</string>\n", desc.WorkingDir)
	}
	if desc.AutoStart {
		b.WriteString("\t<key>RunAtLoad</key>\n\t<true/>\n")
	} else {
		b.WriteString("\t<key>RunAtLoad</key>\n\t<false/>\n")
	}
	b.WriteString("\t<key>KeepAlive</key>\n\t<false/>\n")
	b.WriteString("</dict>\n</plist>\n")
	return []byte(b.String())
}

func autostartEnableCommands(desc Descriptor) [][]string {
	return [][]string{
		{"launchctl", "load", "-w", autostartPath(desc.Name)},
	}
}

func autostartDisableCommands(desc Descriptor) [][]string {
	return [][]string{
		{"launchctl", "unload", "-w", autostartPath(desc.Name)},
	}
}
