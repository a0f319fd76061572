package watch

import (
	"sync"
	"time"
)

// debouncer coalesces raw per-path observations into at most one event per
// path and window. The window is anchored at the first observation for a
// path; later observations inside the window merge without extending it.
type debouncer struct {
	window time.Duration
	emit   func(kind Kind, path string, at time.Time)

	mu      sync.Mutex
	pending map[string]*pendingEvent
	closed  bool
}

type pendingEvent struct {
	kind  Kind
	at    time.Time
	timer *time.Timer
}

func newDebouncer(window time.Duration, emit func(Kind, string, time.Time)) *debouncer {
	return &debouncer{
		window:  window,
		emit:    emit,
		pending: make(map[string]*pendingEvent),
	}
}

// observe records a raw event. The first observation for a path opens its
// window and schedules emission; subsequent observations merge into the
// pending state.
func (d *debouncer) observe(kind Kind, path string, at time.Time) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}

	if p, ok := d.pending[path]; ok {
		merged, suppress := mergeKinds(p.kind, kind)
		if suppress {
			p.timer.Stop()
			delete(d.pending, path)
			d.mu.Unlock()
			return
		}
		p.kind = merged
		p.at = at
		d.mu.Unlock()
		return
	}

	p := &pendingEvent{kind: kind, at: at}
	p.timer = time.AfterFunc(d.window, func() {
		d.fire(path)
	})
	d.pending[path] = p
	d.mu.Unlock()
}

func (d *debouncer) fire(path string) {
	d.mu.Lock()
	p, ok := d.pending[path]
	if !ok || d.closed {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	kind, at := p.kind, p.at
	d.mu.Unlock()

	d.emit(kind, path, at)
}

// reset drops all pending state without emitting. Used when fidelity is
// already lost and a resync supersedes the window contents.
func (d *debouncer) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for path, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, path)
	}
}

// close stops all timers and rejects further observations.
func (d *debouncer) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for path, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, path)
	}
}

func (d *debouncer) pendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// mergeKinds folds a new observation into the pending kind for the same
// path. suppress means the pair cancels out and nothing should be emitted
// for this window: a path created and gone again within one window never
// meaningfully existed.
func mergeKinds(pending, next Kind) (merged Kind, suppress bool) {
	switch pending {
	case KindCreated:
		switch next {
		case KindDeleted, KindRenamed:
			return 0, true
		default:
			return KindCreated, false
		}
	case KindModified:
		switch next {
		case KindDeleted:
			return KindDeleted, false
		case KindRenamed:
			return KindRenamed, false
		default:
			return KindModified, false
		}
	case KindDeleted:
		switch next {
		case KindCreated, KindModified:
			// Delete then recreate inside one window is how editors save
			// through temp files. Report the net effect.
			return KindModified, false
		default:
			return KindDeleted, false
		}
	case KindRenamed:
		switch next {
		case KindCreated, KindModified:
			return KindModified, false
		case KindDeleted:
			return KindDeleted, false
		default:
			return KindRenamed, false
		}
	default:
		return next, false
	}
}
