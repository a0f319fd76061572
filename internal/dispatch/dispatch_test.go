package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"housekeeper/internal/config"
	"housekeeper/internal/history"
	"housekeeper/internal/logging"
	"housekeeper/internal/rules"
	"housekeeper/internal/watch"
)

type recorderSpy struct {
	mu      sync.Mutex
	firings []history.Firing
	resyncs []history.Resync
}

func (r *recorderSpy) RecordFiring(_ context.Context, firing history.Firing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.firings = append(r.firings, firing)
	return nil
}

func (r *recorderSpy) RecordResync(_ context.Context, resync history.Resync) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resyncs = append(r.resyncs, resync)
	return nil
}

func (r *recorderSpy) snapshot() ([]history.Firing, []history.Resync) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]history.Firing(nil), r.firings...), append([]history.Resync(nil), r.resyncs...)
}

type notifierSpy struct {
	mu        sync.Mutex
	newItems  []string
	ruleFired []string
	resyncs   []string
}

func (n *notifierSpy) NotifyNewItem(_ context.Context, path string, _ bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.newItems = append(n.newItems, path)
	return nil
}

func (n *notifierSpy) NotifyRuleFired(_ context.Context, rule, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ruleFired = append(n.ruleFired, rule)
	return nil
}

func (n *notifierSpy) NotifyResync(_ context.Context, target string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resyncs = append(n.resyncs, target)
	return nil
}

func (n *notifierSpy) NotifyWatchFailed(context.Context, string, error) error { return nil }
func (n *notifierSpy) TestNotification(context.Context) error                 { return nil }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	dispatcher *Dispatcher
	recorder   *recorderSpy
	notifier   *notifierSpy
	clock      *fakeClock
	done       chan error
}

func startDispatcher(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		recorder: &recorderSpy{},
		notifier: &notifierSpy{},
		clock:    &fakeClock{now: time.Now()},
		done:     make(chan error, 1),
	}
	opts.Recorder = h.recorder
	opts.Notifier = h.notifier
	opts.Clock = h.clock.Now
	if opts.RunID == "" {
		opts.RunID = "test-run"
	}
	h.dispatcher = New(logging.NewNop(), opts)
	go func() {
		h.done <- h.dispatcher.Run(context.Background())
	}()
	return h
}

func (h *harness) submit(t *testing.T, ev watch.Event) {
	t.Helper()
	if err := h.dispatcher.Submit(context.Background(), ev); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
}

func (h *harness) finish(t *testing.T) {
	t.Helper()
	h.dispatcher.Close()
	select {
	case err := <-h.done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

// waitFirings blocks until at least n firings are recorded. Submission is
// asynchronous, so tests that step the clock between events need it.
func (h *harness) waitFirings(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		firings, _ := h.recorder.snapshot()
		if len(firings) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d firings", n)
}

func compileRule(t *testing.T, rc config.Rule) rules.Rule {
	t.Helper()
	rule, err := rules.New(rc)
	if err != nil {
		t.Fatalf("compile rule %q: %v", rc.Name, err)
	}
	return rule
}

func event(target, path string, kind watch.Kind) watch.Event {
	return watch.Event{Target: target, Path: path, Kind: kind, Time: time.Now()}
}

func TestDispatcherFiresMatchingRule(t *testing.T) {
	dir := t.TempDir()
	junk := filepath.Join(dir, "stale.tmp")
	if err := os.WriteFile(junk, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := startDispatcher(t, Options{
		Rules:   []rules.Rule{compileRule(t, config.Rule{Name: "clean", Pattern: "*.tmp", Action: "delete"})},
		Targets: []config.Target{{Path: dir}},
	})
	h.submit(t, event(dir, junk, watch.KindCreated))
	h.finish(t)

	if _, err := os.Lstat(junk); !os.IsNotExist(err) {
		t.Fatalf("expected file deleted, stat err = %v", err)
	}
	firings, _ := h.recorder.snapshot()
	if len(firings) != 1 {
		t.Fatalf("expected 1 firing, got %d", len(firings))
	}
	if firings[0].Rule != "clean" || firings[0].Outcome != history.OutcomeOK {
		t.Fatalf("unexpected firing: %#v", firings[0])
	}
	if stats := h.dispatcher.Stats(); stats.Fired != 1 || stats.Events != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRulesEvaluateInConfiguredOrder(t *testing.T) {
	dir := t.TempDir()
	h := startDispatcher(t, Options{
		Rules: []rules.Rule{
			compileRule(t, config.Rule{Name: "first", Pattern: "*", Action: "notify"}),
			compileRule(t, config.Rule{Name: "second", Pattern: "*", Action: "notify"}),
		},
		Targets: []config.Target{{Path: dir}},
	})
	h.submit(t, event(dir, filepath.Join(dir, "a.txt"), watch.KindModified))
	h.finish(t)

	firings, _ := h.recorder.snapshot()
	if len(firings) != 2 {
		t.Fatalf("expected both rules to fire, got %d", len(firings))
	}
	if firings[0].Rule != "first" || firings[1].Rule != "second" {
		t.Fatalf("wrong order: %q then %q", firings[0].Rule, firings[1].Rule)
	}
}

func TestExclusiveRuleStopsEvaluation(t *testing.T) {
	dir := t.TempDir()
	h := startDispatcher(t, Options{
		Rules: []rules.Rule{
			compileRule(t, config.Rule{Name: "first", Pattern: "*", Action: "notify", Exclusive: true}),
			compileRule(t, config.Rule{Name: "second", Pattern: "*", Action: "notify"}),
		},
		Targets: []config.Target{{Path: dir}},
	})
	h.submit(t, event(dir, filepath.Join(dir, "a.txt"), watch.KindModified))
	h.finish(t)

	firings, _ := h.recorder.snapshot()
	if len(firings) != 1 || firings[0].Rule != "first" {
		t.Fatalf("expected only the exclusive rule to fire, got %#v", firings)
	}
}

func TestSuppressedExclusiveRuleStillStopsEvaluation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	h := startDispatcher(t, Options{
		Rules: []rules.Rule{
			compileRule(t, config.Rule{Name: "first", Pattern: "*", Action: "notify", Exclusive: true, Cooldown: "1m"}),
			compileRule(t, config.Rule{Name: "second", Pattern: "*", Action: "notify"}),
		},
		Targets: []config.Target{{Path: dir}},
	})
	h.submit(t, event(dir, path, watch.KindModified))
	h.submit(t, event(dir, path, watch.KindModified))
	h.finish(t)

	firings, _ := h.recorder.snapshot()
	if len(firings) != 2 {
		t.Fatalf("expected 2 firings, got %#v", firings)
	}
	if firings[0].Outcome != history.OutcomeOK || firings[1].Outcome != history.OutcomeSuppressed {
		t.Fatalf("expected ok then suppressed, got %q, %q", firings[0].Outcome, firings[1].Outcome)
	}
	for _, firing := range firings {
		if firing.Rule == "second" {
			t.Fatal("suppressed exclusive match must still stop evaluation")
		}
	}
}

func TestCooldownSuppressesPerPathOnly(t *testing.T) {
	dir := t.TempDir()
	h := startDispatcher(t, Options{
		Rules:   []rules.Rule{compileRule(t, config.Rule{Name: "r", Pattern: "*", Action: "notify", Cooldown: "1m"})},
		Targets: []config.Target{{Path: dir}},
	})
	h.submit(t, event(dir, filepath.Join(dir, "a"), watch.KindModified))
	h.submit(t, event(dir, filepath.Join(dir, "b"), watch.KindModified))
	h.submit(t, event(dir, filepath.Join(dir, "a"), watch.KindModified))
	h.finish(t)

	firings, _ := h.recorder.snapshot()
	if len(firings) != 3 {
		t.Fatalf("expected 3 firings, got %d", len(firings))
	}
	outcomes := []string{firings[0].Outcome, firings[1].Outcome, firings[2].Outcome}
	want := []string{history.OutcomeOK, history.OutcomeOK, history.OutcomeSuppressed}
	for i := range want {
		if outcomes[i] != want[i] {
			t.Fatalf("outcomes = %v, want %v", outcomes, want)
		}
	}
	if stats := h.dispatcher.Stats(); stats.Suppressed != 1 {
		t.Fatalf("expected 1 suppression, stats = %+v", stats)
	}
}

func TestCooldownExpiresWithClock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a")
	h := startDispatcher(t, Options{
		Rules:   []rules.Rule{compileRule(t, config.Rule{Name: "r", Pattern: "*", Action: "notify", Cooldown: "1m"})},
		Targets: []config.Target{{Path: dir}},
	})
	h.submit(t, event(dir, path, watch.KindModified))
	h.waitFirings(t, 1)
	h.clock.Advance(2 * time.Minute)
	h.submit(t, event(dir, path, watch.KindModified))
	h.finish(t)

	firings, _ := h.recorder.snapshot()
	if len(firings) != 2 {
		t.Fatalf("expected 2 firings, got %d", len(firings))
	}
	for i, firing := range firings {
		if firing.Outcome != history.OutcomeOK {
			t.Fatalf("firing %d outcome = %q, want ok", i, firing.Outcome)
		}
	}
}

func TestResyncRescanEvaluatesEntries(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.tmp", "b.tmp", "keep.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	h := startDispatcher(t, Options{
		Rules:   []rules.Rule{compileRule(t, config.Rule{Name: "clean", Pattern: "*.tmp", Action: "delete"})},
		Targets: []config.Target{{Path: dir}},
	})
	h.submit(t, watch.Event{Target: dir, Path: dir, Kind: watch.KindResync, Time: time.Now()})
	h.finish(t)

	if _, err := os.Lstat(filepath.Join(dir, "a.tmp")); !os.IsNotExist(err) {
		t.Fatal("expected a.tmp removed by rescan")
	}
	if _, err := os.Lstat(filepath.Join(dir, "keep.txt")); err != nil {
		t.Fatalf("keep.txt must survive: %v", err)
	}

	_, resyncs := h.recorder.snapshot()
	if len(resyncs) != 1 {
		t.Fatalf("expected 1 resync record, got %d", len(resyncs))
	}
	if resyncs[0].Entries != 3 {
		t.Fatalf("expected 3 scanned entries, got %d", resyncs[0].Entries)
	}
	if stats := h.dispatcher.Stats(); stats.Resyncs != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(h.notifier.resyncs) != 1 || h.notifier.resyncs[0] != dir {
		t.Fatalf("expected resync notification for %s, got %v", dir, h.notifier.resyncs)
	}
}

func TestResyncHonorsEntryCap(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("f%d", i)), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	h := startDispatcher(t, Options{
		Rules:            []rules.Rule{compileRule(t, config.Rule{Name: "r", Pattern: "*", Action: "notify"})},
		Targets:          []config.Target{{Path: dir}},
		ResyncMaxEntries: 2,
	})
	h.submit(t, watch.Event{Target: dir, Path: dir, Kind: watch.KindResync, Time: time.Now()})
	h.finish(t)

	_, resyncs := h.recorder.snapshot()
	if len(resyncs) != 1 || resyncs[0].Entries != 2 {
		t.Fatalf("expected rescan capped at 2 entries, got %#v", resyncs)
	}
}

func TestResyncKeepsCooldownsIntact(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	h := startDispatcher(t, Options{
		Rules:   []rules.Rule{compileRule(t, config.Rule{Name: "r", Pattern: "*", Action: "notify", Cooldown: "1h"})},
		Targets: []config.Target{{Path: dir}},
	})
	h.submit(t, event(dir, filepath.Join(dir, "a.txt"), watch.KindModified))
	h.submit(t, watch.Event{Target: dir, Path: dir, Kind: watch.KindResync, Time: time.Now()})
	h.finish(t)

	firings, _ := h.recorder.snapshot()
	byOutcome := map[string]int{}
	for _, firing := range firings {
		byOutcome[firing.Outcome]++
	}
	// a.txt fired before the resync, so the rescan suppresses it and only
	// b.txt fires fresh.
	if byOutcome[history.OutcomeOK] != 2 || byOutcome[history.OutcomeSuppressed] != 1 {
		t.Fatalf("unexpected outcome mix: %v", byOutcome)
	}
}

func TestNotifyRuleAnnouncesNewItem(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "incoming.bin")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := startDispatcher(t, Options{
		Rules:   []rules.Rule{rules.BuiltinNotifyNewItem()},
		Targets: []config.Target{{Path: dir}},
	})
	h.submit(t, event(dir, path, watch.KindCreated))
	h.finish(t)

	if len(h.notifier.newItems) != 1 || h.notifier.newItems[0] != path {
		t.Fatalf("expected new item notification for %s, got %v", path, h.notifier.newItems)
	}
}

func TestNotifyFlagAnnouncesRuleFiring(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stale.tmp")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := startDispatcher(t, Options{
		Rules:   []rules.Rule{compileRule(t, config.Rule{Name: "clean", Pattern: "*.tmp", Action: "delete", Notify: true})},
		Targets: []config.Target{{Path: dir}},
	})
	h.submit(t, event(dir, path, watch.KindCreated))
	h.finish(t)

	if len(h.notifier.ruleFired) != 1 || h.notifier.ruleFired[0] != "clean" {
		t.Fatalf("expected rule firing notification, got %v", h.notifier.ruleFired)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	d := New(logging.NewNop(), Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestSubmitUnblocksOnContextCancel(t *testing.T) {
	d := New(logging.NewNop(), Options{QueueSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Submit(context.Background(), watch.Event{Kind: watch.KindModified}); err != nil {
		t.Fatalf("first Submit must fit the queue: %v", err)
	}
	if err := d.Submit(ctx, watch.Event{Kind: watch.KindModified}); !errors.Is(err, context.Canceled) {
		t.Fatalf("blocked Submit returned %v, want context.Canceled", err)
	}
}
