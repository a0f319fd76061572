package paths_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"housekeeper/internal/paths"
)

func TestDefaultWatchDirsKeepsOnlyExisting(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	for _, name := range []string{"Downloads", "Pictures"} {
		if err := os.Mkdir(filepath.Join(home, name), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
	}

	dirs, err := paths.DefaultWatchDirs()
	if err != nil {
		t.Fatalf("DefaultWatchDirs: %v", err)
	}

	want := []string{home, filepath.Join(home, "Downloads"), filepath.Join(home, "Pictures")}
	if !slices.Equal(dirs, want) {
		t.Fatalf("dirs = %v, want %v", dirs, want)
	}
}

func TestDefaultWatchDirsHonorsUserDirsFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	for _, name := range []string{"dl", ".config"} {
		if err := os.Mkdir(filepath.Join(home, name), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
	}
	userDirs := `# produced by xdg-user-dirs-update
XDG_DOWNLOAD_DIR="$HOME/dl"
XDG_DESKTOP_DIR="$HOME"
`
	if err := os.WriteFile(filepath.Join(home, ".config", "user-dirs.dirs"), []byte(userDirs), 0o644); err != nil {
		t.Fatalf("write user-dirs.dirs: %v", err)
	}
	// Desktop exists but its entry points at $HOME, which disables it.
	if err := os.Mkdir(filepath.Join(home, "Desktop"), 0o755); err != nil {
		t.Fatalf("mkdir Desktop: %v", err)
	}

	dirs, err := paths.DefaultWatchDirs()
	if err != nil {
		t.Fatalf("DefaultWatchDirs: %v", err)
	}

	if !slices.Contains(dirs, filepath.Join(home, "dl")) {
		t.Fatalf("override dir missing from %v", dirs)
	}
	if slices.Contains(dirs, filepath.Join(home, "Desktop")) {
		t.Fatalf("disabled desktop entry should be skipped, got %v", dirs)
	}
	if slices.Contains(dirs, filepath.Join(home, "Downloads")) {
		t.Fatalf("conventional Downloads should lose to the override, got %v", dirs)
	}
}

func TestDefaultWatchDirsAlwaysIncludesHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dirs, err := paths.DefaultWatchDirs()
	if err != nil {
		t.Fatalf("DefaultWatchDirs: %v", err)
	}
	if len(dirs) != 1 || dirs[0] != home {
		t.Fatalf("dirs = %v, want just the home directory", dirs)
	}
}
