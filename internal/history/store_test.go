package history_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"housekeeper/internal/history"
)

func mustOpen(t *testing.T, stateDir string) *history.Store {
	t.Helper()
	store, err := history.Open(stateDir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return store
}

func TestOpenAppliesMigrations(t *testing.T) {
	store := mustOpen(t, t.TempDir())

	ctx := context.Background()
	if err := store.StartRun(ctx, "run-1", time.Now()); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	firing := history.Firing{
		RunID:     "run-1",
		Rule:      "clean-downloads",
		Action:    "delete",
		Target:    "/home/u/Downloads",
		Path:      "/home/u/Downloads/old.tmp",
		EventKind: "created",
		Outcome:   history.OutcomeOK,
	}
	if err := store.RecordFiring(ctx, firing); err != nil {
		t.Fatalf("RecordFiring failed: %v", err)
	}

	firings, err := store.RecentFirings(ctx, 10)
	if err != nil {
		t.Fatalf("RecentFirings failed: %v", err)
	}
	if len(firings) != 1 {
		t.Fatalf("expected 1 firing, got %d", len(firings))
	}
	got := firings[0]
	if got.Rule != "clean-downloads" || got.Action != "delete" || got.Outcome != history.OutcomeOK {
		t.Fatalf("unexpected firing: %#v", got)
	}
	if got.FiredAt.IsZero() {
		t.Fatal("expected fired_at to be populated")
	}
}

func TestReopenKeepsExistingData(t *testing.T) {
	stateDir := t.TempDir()
	ctx := context.Background()

	first, err := history.Open(stateDir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if err := first.StartRun(ctx, "run-1", time.Now()); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second := mustOpen(t, stateDir)
	run, err := second.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	if run == nil || run.RunID != "run-1" {
		t.Fatalf("expected run-1 to survive reopen, got %#v", run)
	}
}

func TestFinishRunRecordsReason(t *testing.T) {
	store := mustOpen(t, t.TempDir())
	ctx := context.Background()

	if err := store.StartRun(ctx, "run-1", time.Now()); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if err := store.FinishRun(ctx, "run-1", "signal: terminated"); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	run, err := store.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	if run == nil {
		t.Fatal("expected a run")
	}
	if run.ExitReason != "signal: terminated" {
		t.Fatalf("unexpected exit reason %q", run.ExitReason)
	}
	if run.FinishedAt.IsZero() {
		t.Fatal("expected finished_at to be set")
	}
}

func TestLastRunEmptyDatabase(t *testing.T) {
	store := mustOpen(t, t.TempDir())

	run, err := store.LastRun(context.Background())
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	if run != nil {
		t.Fatalf("expected nil run, got %#v", run)
	}
}

func TestRecentFiringsNewestFirstWithLimit(t *testing.T) {
	store := mustOpen(t, t.TempDir())
	ctx := context.Background()

	if err := store.StartRun(ctx, "run-1", time.Now()); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	for i := 1; i <= 3; i++ {
		firing := history.Firing{
			RunID:     "run-1",
			Rule:      fmt.Sprintf("rule-%d", i),
			Action:    "notify",
			Target:    "/watched",
			Path:      fmt.Sprintf("/watched/f%d", i),
			EventKind: "modified",
			Outcome:   history.OutcomeOK,
		}
		if err := store.RecordFiring(ctx, firing); err != nil {
			t.Fatalf("RecordFiring %d failed: %v", i, err)
		}
	}

	firings, err := store.RecentFirings(ctx, 2)
	if err != nil {
		t.Fatalf("RecentFirings failed: %v", err)
	}
	if len(firings) != 2 {
		t.Fatalf("expected 2 firings, got %d", len(firings))
	}
	if firings[0].Rule != "rule-3" || firings[1].Rule != "rule-2" {
		t.Fatalf("expected newest first, got %q then %q", firings[0].Rule, firings[1].Rule)
	}
}

func TestRecordResyncRoundtrip(t *testing.T) {
	store := mustOpen(t, t.TempDir())
	ctx := context.Background()

	resync := history.Resync{
		RunID:   "run-1",
		Target:  "/home/u/Downloads",
		Reason:  "event overflow",
		Entries: 42,
	}
	if err := store.RecordResync(ctx, resync); err != nil {
		t.Fatalf("RecordResync failed: %v", err)
	}

	resyncs, err := store.RecentResyncs(ctx, 5)
	if err != nil {
		t.Fatalf("RecentResyncs failed: %v", err)
	}
	if len(resyncs) != 1 {
		t.Fatalf("expected 1 resync, got %d", len(resyncs))
	}
	got := resyncs[0]
	if got.Reason != "event overflow" || got.Entries != 42 {
		t.Fatalf("unexpected resync: %#v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatal("expected occurred_at to be populated")
	}
}

func TestDuplicateRunIDRejected(t *testing.T) {
	store := mustOpen(t, t.TempDir())
	ctx := context.Background()

	if err := store.StartRun(ctx, "run-1", time.Now()); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if err := store.StartRun(ctx, "run-1", time.Now()); err == nil {
		t.Fatal("expected duplicate run_id to be rejected")
	}
}

func TestStatsAggregatesPerRule(t *testing.T) {
	store := mustOpen(t, t.TempDir())
	ctx := context.Background()

	firings := []history.Firing{
		{RunID: "run-1", Rule: "clean-tmp", Action: "delete", Outcome: history.OutcomeOK},
		{RunID: "run-1", Rule: "clean-tmp", Action: "delete", Outcome: history.OutcomeOK},
		{RunID: "run-1", Rule: "clean-tmp", Action: "delete", Outcome: history.OutcomeSuppressed},
		{RunID: "run-1", Rule: "archive", Action: "move", Outcome: history.OutcomeError, Detail: "disk full"},
	}
	for _, firing := range firings {
		if err := store.RecordFiring(ctx, firing); err != nil {
			t.Fatalf("RecordFiring failed: %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d rule stats, want 2", len(stats))
	}
	if stats[0].Rule != "archive" || stats[0].Errors != 1 || stats[0].Fired != 0 {
		t.Fatalf("archive stats = %+v", stats[0])
	}
	if stats[1].Rule != "clean-tmp" || stats[1].Fired != 2 || stats[1].Suppressed != 1 {
		t.Fatalf("clean-tmp stats = %+v", stats[1])
	}
	if stats[1].LastFired.IsZero() {
		t.Fatal("clean-tmp LastFired not populated")
	}
}

func TestNopRecorderDiscards(t *testing.T) {
	var recorder history.Recorder = history.NopRecorder{}

	if err := recorder.RecordFiring(context.Background(), history.Firing{Rule: "x"}); err != nil {
		t.Fatalf("NopRecorder.RecordFiring returned error: %v", err)
	}
	if err := recorder.RecordResync(context.Background(), history.Resync{Target: "y"}); err != nil {
		t.Fatalf("NopRecorder.RecordResync returned error: %v", err)
	}
}

func TestOpenUnwritableStateDir(t *testing.T) {
	if _, err := history.Open("/proc/nonexistent/state"); err == nil {
		t.Fatal("expected Open to fail for unwritable state dir")
	}
}
