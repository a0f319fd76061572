// Package paths resolves the user directories housekeeper watches when no
// targets are configured.
package paths

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var userDirKeys = []string{"DESKTOP", "DOCUMENTS", "DOWNLOAD", "MUSIC", "PICTURES", "VIDEOS"}

var userDirFallbacks = map[string]string{
	"DESKTOP":   "Desktop",
	"DOCUMENTS": "Documents",
	"DOWNLOAD":  "Downloads",
	"MUSIC":     "Music",
	"PICTURES":  "Pictures",
	"VIDEOS":    "Videos",
}

// DefaultWatchDirs returns the home directory plus every standard user
// directory that exists on this machine. On systems with a freedesktop
// user-dirs.dirs file the configured locations win over the conventional
// names.
func DefaultWatchDirs() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	return watchDirsUnder(home), nil
}

func watchDirsUnder(home string) []string {
	dirs := []string{home}
	overrides := parseUserDirs(filepath.Join(home, ".config", "user-dirs.dirs"), home)
	for _, key := range userDirKeys {
		dir := overrides[key]
		if dir == "" {
			dir = filepath.Join(home, userDirFallbacks[key])
		}
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		if !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// parseUserDirs reads a freedesktop user-dirs.dirs file. A missing file or
// malformed lines yield no overrides. Entries pointing at $HOME itself mark
// the directory disabled per the XDG convention; deduplication against the
// home entry handles that.
func parseUserDirs(path, home string) map[string]string {
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	overrides := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if !strings.HasPrefix(name, "XDG_") || !strings.HasSuffix(name, "_DIR") {
			continue
		}
		key := strings.TrimSuffix(strings.TrimPrefix(name, "XDG_"), "_DIR")
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if value == "" {
			continue
		}
		if after, found := strings.CutPrefix(value, "$HOME"); found {
			value = filepath.Join(home, after)
		}
		overrides[key] = filepath.Clean(value)
	}
	return overrides
}
