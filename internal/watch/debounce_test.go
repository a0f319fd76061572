package watch

import (
	"sync"
	"testing"
	"time"
)

type emitRecorder struct {
	mu     sync.Mutex
	events []recordedEmit
}

type recordedEmit struct {
	kind Kind
	path string
	at   time.Time
	when time.Time
}

func (r *emitRecorder) emit(kind Kind, path string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEmit{kind: kind, path: path, at: at, when: time.Now()})
}

func (r *emitRecorder) snapshot() []recordedEmit {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedEmit, len(r.events))
	copy(out, r.events)
	return out
}

func TestDebouncerCoalescesBurst(t *testing.T) {
	rec := &emitRecorder{}
	deb := newDebouncer(100*time.Millisecond, rec.emit)
	defer deb.close()

	base := time.Now()
	deb.observe(KindModified, "/w/a.txt", base)
	deb.observe(KindModified, "/w/a.txt", base.Add(20*time.Millisecond))
	deb.observe(KindModified, "/w/a.txt", base.Add(40*time.Millisecond))

	time.Sleep(250 * time.Millisecond)

	events := rec.snapshot()
	if len(events) != 1 {
		t.Fatalf("emitted %d events, want 1: %+v", len(events), events)
	}
	if events[0].kind != KindModified {
		t.Fatalf("kind = %v, want modified", events[0].kind)
	}
	if !events[0].at.Equal(base.Add(40 * time.Millisecond)) {
		t.Fatalf("merged event should keep the latest timestamp, got %v", events[0].at)
	}
}

func TestDebouncerWindowAnchoredAtFirstEvent(t *testing.T) {
	rec := &emitRecorder{}
	window := 300 * time.Millisecond
	deb := newDebouncer(window, rec.emit)
	defer deb.close()

	start := time.Now()
	deb.observe(KindModified, "/w/a.txt", start)
	time.Sleep(250 * time.Millisecond)
	// Still inside the first window: must merge, not extend.
	deb.observe(KindModified, "/w/a.txt", time.Now())

	time.Sleep(150 * time.Millisecond)
	// ~400ms after start: the first window has closed, this opens a second.
	deb.observe(KindModified, "/w/a.txt", time.Now())

	time.Sleep(400 * time.Millisecond)

	events := rec.snapshot()
	if len(events) != 2 {
		t.Fatalf("emitted %d events, want 2: %+v", len(events), events)
	}
	firstDelay := events[0].when.Sub(start)
	if firstDelay < window || firstDelay > window+150*time.Millisecond {
		t.Fatalf("first emission at %v after start, want near %v", firstDelay, window)
	}
}

func TestDebouncerSuppressesCreateDelete(t *testing.T) {
	rec := &emitRecorder{}
	deb := newDebouncer(100*time.Millisecond, rec.emit)
	defer deb.close()

	now := time.Now()
	deb.observe(KindCreated, "/w/tmp123", now)
	deb.observe(KindModified, "/w/tmp123", now.Add(10*time.Millisecond))
	deb.observe(KindDeleted, "/w/tmp123", now.Add(20*time.Millisecond))

	time.Sleep(250 * time.Millisecond)

	if events := rec.snapshot(); len(events) != 0 {
		t.Fatalf("create+delete inside one window should emit nothing, got %+v", events)
	}
}

func TestDebouncerDeleteCreateBecomesModified(t *testing.T) {
	rec := &emitRecorder{}
	deb := newDebouncer(100*time.Millisecond, rec.emit)
	defer deb.close()

	now := time.Now()
	deb.observe(KindDeleted, "/w/doc.txt", now)
	deb.observe(KindCreated, "/w/doc.txt", now.Add(10*time.Millisecond))

	time.Sleep(250 * time.Millisecond)

	events := rec.snapshot()
	if len(events) != 1 {
		t.Fatalf("emitted %d events, want 1: %+v", len(events), events)
	}
	if events[0].kind != KindModified {
		t.Fatalf("delete+create should collapse to modified, got %v", events[0].kind)
	}
}

func TestDebouncerTracksPathsIndependently(t *testing.T) {
	rec := &emitRecorder{}
	deb := newDebouncer(100*time.Millisecond, rec.emit)
	defer deb.close()

	now := time.Now()
	deb.observe(KindCreated, "/w/a.txt", now)
	deb.observe(KindCreated, "/w/b.txt", now)

	time.Sleep(250 * time.Millisecond)

	if events := rec.snapshot(); len(events) != 2 {
		t.Fatalf("emitted %d events, want one per path: %+v", len(events), events)
	}
}

func TestDebouncerResetDropsPending(t *testing.T) {
	rec := &emitRecorder{}
	deb := newDebouncer(100*time.Millisecond, rec.emit)
	defer deb.close()

	deb.observe(KindCreated, "/w/a.txt", time.Now())
	deb.observe(KindCreated, "/w/b.txt", time.Now())
	if got := deb.pendingCount(); got != 2 {
		t.Fatalf("pendingCount = %d, want 2", got)
	}

	deb.reset()

	time.Sleep(250 * time.Millisecond)
	if events := rec.snapshot(); len(events) != 0 {
		t.Fatalf("reset should drop pending windows, got %+v", events)
	}
}

func TestMergeKinds(t *testing.T) {
	cases := []struct {
		pending  Kind
		next     Kind
		want     Kind
		suppress bool
	}{
		{KindCreated, KindModified, KindCreated, false},
		{KindCreated, KindCreated, KindCreated, false},
		{KindCreated, KindDeleted, 0, true},
		{KindCreated, KindRenamed, 0, true},
		{KindModified, KindModified, KindModified, false},
		{KindModified, KindDeleted, KindDeleted, false},
		{KindModified, KindRenamed, KindRenamed, false},
		{KindDeleted, KindCreated, KindModified, false},
		{KindDeleted, KindModified, KindModified, false},
		{KindDeleted, KindDeleted, KindDeleted, false},
		{KindRenamed, KindCreated, KindModified, false},
		{KindRenamed, KindDeleted, KindDeleted, false},
	}
	for _, tc := range cases {
		got, suppress := mergeKinds(tc.pending, tc.next)
		if suppress != tc.suppress {
			t.Errorf("mergeKinds(%v, %v) suppress = %v, want %v", tc.pending, tc.next, suppress, tc.suppress)
			continue
		}
		if !suppress && got != tc.want {
			t.Errorf("mergeKinds(%v, %v) = %v, want %v", tc.pending, tc.next, got, tc.want)
		}
	}
}
