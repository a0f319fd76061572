package logging_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"housekeeper/internal/logging"
)

func writeAgedFile(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte("log"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestCleanupOldLogsRemovesExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "housekeeper-20250101T000000.000Z.log")
	young := filepath.Join(dir, "housekeeper-20250820T000000.000Z.log")
	pointer := filepath.Join(dir, "housekeeper.log")
	unrelated := filepath.Join(dir, "notes.txt")

	writeAgedFile(t, old, 45*24*time.Hour)
	writeAgedFile(t, young, 24*time.Hour)
	writeAgedFile(t, pointer, 45*24*time.Hour)
	writeAgedFile(t, unrelated, 45*24*time.Hour)

	logging.CleanupOldLogs(logging.NewNop(), logging.RetentionTargets(dir), 30)

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected %s removed, stat err = %v", old, err)
	}
	if _, err := os.Stat(young); err != nil {
		t.Fatalf("young log should survive: %v", err)
	}
	if _, err := os.Stat(pointer); err != nil {
		t.Fatalf("current-log pointer should survive: %v", err)
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Fatalf("non-matching file should survive: %v", err)
	}
}

func TestCleanupOldLogsDisabledByZeroRetention(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "housekeeper-20240101T000000.000Z.log")
	writeAgedFile(t, old, 400*24*time.Hour)

	logging.CleanupOldLogs(logging.NewNop(), logging.RetentionTargets(dir), 0)

	if _, err := os.Stat(old); err != nil {
		t.Fatalf("retention disabled, file should survive: %v", err)
	}
}

func TestCleanupOldLogsMissingDirIsQuiet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "never-created")
	logging.CleanupOldLogs(logging.NewNop(), logging.RetentionTargets(dir), 30)
}
