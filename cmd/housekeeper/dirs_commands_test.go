package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"housekeeper/internal/config"
)

func TestDirsAddListRemove(t *testing.T) {
	env := setupCLITestEnv(t)
	extra := filepath.Join(env.baseDir, "extra")
	if err := os.MkdirAll(extra, 0o755); err != nil {
		t.Fatalf("mkdir extra: %v", err)
	}

	out, _, err := runCLI(t, []string{"dirs", "add", extra}, env.configPath)
	if err != nil {
		t.Fatalf("dirs add: %v", err)
	}
	requireContains(t, out, "Added: "+extra)

	cfg, _, _, err := config.Load(env.configPath)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	found := false
	for _, target := range cfg.Targets {
		if target.Path == extra {
			found = true
		}
	}
	if !found {
		t.Fatalf("added directory missing from saved config: %+v", cfg.Targets)
	}

	out, _, err = runCLI(t, []string{"dirs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("dirs list: %v", err)
	}
	requireContains(t, out, env.watched)
	requireContains(t, out, extra)

	out, _, err = runCLI(t, []string{"dirs", "remove", extra}, env.configPath)
	if err != nil {
		t.Fatalf("dirs remove: %v", err)
	}
	requireContains(t, out, "Removed: "+extra)

	out, _, err = runCLI(t, []string{"dirs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("dirs list after remove: %v", err)
	}
	if strings.Contains(out, extra) {
		t.Fatalf("removed directory still listed: %q", out)
	}
	requireContains(t, out, env.watched)
}

func TestDirsAddRejectsDuplicate(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"dirs", "add", env.watched}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "already in config") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestDirsRemoveUnknownPath(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"dirs", "remove", filepath.Join(env.baseDir, "nope")}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not in config") {
		t.Fatalf("expected not-in-config error, got %v", err)
	}
}

func TestDirsAddRecursiveRoundTrips(t *testing.T) {
	env := setupCLITestEnv(t)
	tree := filepath.Join(env.baseDir, "tree")
	if err := os.MkdirAll(tree, 0o755); err != nil {
		t.Fatalf("mkdir tree: %v", err)
	}

	if _, _, err := runCLI(t, []string{"dirs", "add", "--recursive", tree}, env.configPath); err != nil {
		t.Fatalf("dirs add --recursive: %v", err)
	}

	cfg, _, _, err := config.Load(env.configPath)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	for _, target := range cfg.Targets {
		if target.Path == tree {
			if !target.Recursive {
				t.Fatal("recursive flag lost in round trip")
			}
			return
		}
	}
	t.Fatalf("tree target missing from saved config: %+v", cfg.Targets)
}

func TestDirsListEmptyConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	// Rewrite the config without targets.
	content := fmt.Sprintf("[paths]\nlog_dir = %q\nstate_dir = %q\n", env.logDir, env.stateDir)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	out, _, err := runCLI(t, []string{"dirs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("dirs list: %v", err)
	}
	requireContains(t, out, "No directories in config")
}
