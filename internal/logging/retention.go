package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RetentionTarget describes a directory of log files subject to age-based
// cleanup. Pattern is a filepath.Match glob applied to base names; Exclude
// lists base names that are never removed (the current-log pointer).
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// RetentionTargets returns the cleanup targets for a housekeeper log
// directory.
func RetentionTargets(logDir string) []RetentionTarget {
	return []RetentionTarget{
		{
			Dir:     logDir,
			Pattern: "housekeeper-*.log",
			Exclude: []string{"housekeeper.log"},
		},
	}
}

// CleanupOldLogs removes log files older than retentionDays from each
// target. A non-positive retention disables cleanup. Failures are logged
// and skipped so retention never blocks startup.
func CleanupOldLogs(logger *slog.Logger, targets []RetentionTarget, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	if logger == nil {
		logger = NewNop()
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, target := range targets {
		cleanupTarget(logger, target, cutoff)
	}
}

func cleanupTarget(logger *slog.Logger, target RetentionTarget, cutoff time.Time) {
	entries, err := os.ReadDir(target.Dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("log cleanup: read dir failed",
				String("dir", target.Dir),
				Error(err))
		}
		return
	}
	excluded := make(map[string]struct{}, len(target.Exclude))
	for _, name := range target.Exclude {
		excluded[name] = struct{}{}
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, skip := excluded[name]; skip {
			continue
		}
		if target.Pattern != "" {
			matched, matchErr := filepath.Match(target.Pattern, name)
			if matchErr != nil || !matched {
				continue
			}
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(target.Dir, name)
		if removeErr := os.Remove(path); removeErr != nil {
			logger.Warn("log cleanup: remove failed",
				String(FieldPath, path),
				Error(removeErr))
			continue
		}
		logger.Debug("log cleanup: removed old log", String(FieldPath, path))
	}
}
