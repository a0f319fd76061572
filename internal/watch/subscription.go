package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"housekeeper/internal/logging"
)

// Subscription is a live event stream for one watch target. Events carries
// debounced events until the subscription ends; after Events closes, Err
// reports whether the stream died of watch loss or ended cleanly.
type Subscription struct {
	target Target
	opts   Options
	logger *slog.Logger
	filter *PathFilter
	deb    *debouncer

	// ctx bounds the subscription's lifetime alongside Close.
	ctx context.Context

	events  chan Event
	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once

	// watcher is owned by the run goroutine after start.
	watcher *fsnotify.Watcher

	// emitMu serializes emission so observed sequence numbers are strictly
	// increasing even when debounce timers fire concurrently.
	emitMu      sync.Mutex
	seq         uint64
	resyncArmed bool
	sendClosed  bool

	errMu sync.Mutex
	err   error
}

// Events returns the stream of debounced events. It is closed when the
// subscription ends.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Target returns the subscribed target.
func (s *Subscription) Target() Target {
	return s.target
}

// Err returns the terminal error, if any, once Events has closed.
func (s *Subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close stops the subscription and waits for its goroutine to finish.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		close(s.closeCh)
	})
	<-s.done
	return nil
}

func (s *Subscription) setErr(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)
	defer func() {
		s.deb.close()
		s.emitMu.Lock()
		s.sendClosed = true
		s.emitMu.Unlock()
		close(s.events)
		if s.watcher != nil {
			_ = s.watcher.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closeCh:
			return
		case fsEvent, ok := <-s.watcher.Events:
			if !ok {
				if !s.rewatch(ctx) {
					return
				}
				continue
			}
			if rootLost := s.handleRaw(fsEvent); rootLost {
				if !s.rewatch(ctx) {
					return
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				if !s.rewatch(ctx) {
					return
				}
				continue
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				s.overflow("kernel event queue overflow")
				continue
			}
			s.logger.Warn("watch error",
				logging.String(logging.FieldTarget, s.target.Path),
				logging.Error(err))
		}
	}
}

// handleRaw maps one fsnotify event into the debouncer. It reports whether
// the target root itself vanished and the watch must be re-established.
func (s *Subscription) handleRaw(ev fsnotify.Event) (rootLost bool) {
	name := filepath.Clean(ev.Name)

	if ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
		if name == s.target.Path {
			s.logger.Warn("watch root vanished",
				logging.String(logging.FieldTarget, s.target.Path))
			return true
		}
	}

	// Attribute-only changes carry no housekeeping signal.
	if ev.Op == fsnotify.Chmod {
		return false
	}

	// New directories must be wired into a recursive watch even when the
	// include patterns would hide the directory itself.
	if s.target.Recursive && ev.Op.Has(fsnotify.Create) {
		s.maybeWatchDir(name)
	}

	if !s.filter.Allows(name) {
		return false
	}

	now := time.Now()
	switch {
	case ev.Op.Has(fsnotify.Create):
		s.deb.observe(KindCreated, name, now)
	case ev.Op.Has(fsnotify.Write):
		s.deb.observe(KindModified, name, now)
	case ev.Op.Has(fsnotify.Remove):
		s.deb.observe(KindDeleted, name, now)
	case ev.Op.Has(fsnotify.Rename):
		s.deb.observe(KindRenamed, name, now)
	}
	return false
}

func (s *Subscription) maybeWatchDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if s.filter.SkipsDir(path) {
		return
	}
	if err := s.addTree(s.watcher, path); err != nil {
		s.logger.Warn("watch new directory",
			logging.String(logging.FieldPath, path),
			logging.Error(err))
	}
}

// emit delivers one debounced event. On a full outbound buffer the pending
// window state is dropped and a single resync marker takes its place, an
// explicit signal of lost fidelity.
func (s *Subscription) emit(kind Kind, path string, at time.Time) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.sendClosed {
		return
	}

	ev := Event{
		Target: s.target.Path,
		Path:   path,
		Kind:   kind,
		Seq:    s.seq + 1,
		Time:   at,
	}
	if kind == KindRenamed {
		ev.OldPath = path
	}

	select {
	case s.events <- ev:
		s.seq++
		s.resyncArmed = true
	default:
		s.deb.reset()
		s.logger.Warn("event buffer full, resyncing",
			logging.String(logging.FieldTarget, s.target.Path))
		s.sendResyncLocked()
	}
}

// overflow reacts to kernel-side event loss reported by fsnotify.
func (s *Subscription) overflow(reason string) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.sendClosed {
		return
	}
	s.deb.reset()
	s.logger.Warn("watch overflow, resyncing",
		logging.String(logging.FieldTarget, s.target.Path),
		logging.String("reason", reason))
	s.sendResyncLocked()
}

func (s *Subscription) emitResync(reason string) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.sendClosed {
		return
	}
	s.logger.Info("resync",
		logging.String(logging.FieldTarget, s.target.Path),
		logging.String("reason", reason))
	s.sendResyncLocked()
}

// sendResyncLocked emits one resync marker unless an undelivered marker
// already covers this loss. Callers hold emitMu.
func (s *Subscription) sendResyncLocked() {
	if !s.resyncArmed {
		return
	}
	ev := Event{
		Target: s.target.Path,
		Path:   s.target.Path,
		Kind:   KindResync,
		Seq:    s.seq + 1,
		Time:   time.Now(),
	}
	select {
	case s.events <- ev:
		s.seq++
		s.resyncArmed = false
	case <-s.closeCh:
	case <-s.ctx.Done():
	}
}

// rewatch re-establishes a lost OS watch with doubling backoff. Pending
// debounce state for sibling paths survives; a successful re-establishment
// emits one resync so downstream re-scans the target. It reports false when
// the subscription should end.
func (s *Subscription) rewatch(ctx context.Context) bool {
	if s.watcher != nil {
		_ = s.watcher.Close()
		s.watcher = nil
	}

	backoff := s.opts.RetryBackoff
	for attempt := 1; attempt <= s.opts.RetryLimit; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-s.closeCh:
			return false
		case <-time.After(backoff):
		}

		watcher, err := s.openWatcher()
		if err != nil {
			s.logger.Warn("re-establish watch",
				logging.String(logging.FieldTarget, s.target.Path),
				logging.Int("attempt", attempt),
				logging.Error(err))
			backoff *= 2
			continue
		}

		s.watcher = watcher
		s.logger.Info("watch re-established",
			logging.String(logging.FieldTarget, s.target.Path),
			logging.Int("attempt", attempt))
		s.emitResync("watch re-established")
		return true
	}

	s.setErr(fmt.Errorf("%w: %s not recovered after %d attempts",
		ErrWatchLost, s.target.Path, s.opts.RetryLimit))
	return false
}

func (s *Subscription) openWatcher() (*fsnotify.Watcher, error) {
	if err := statDir(s.target.Path); err != nil {
		return nil, fmt.Errorf("watch target: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if s.target.Recursive {
		if err := s.addTree(watcher, s.target.Path); err != nil {
			_ = watcher.Close()
			return nil, err
		}
		return watcher, nil
	}

	if err := watcher.Add(s.target.Path); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", s.target.Path, err)
	}
	return watcher, nil
}

// addTree watches dir and every non-excluded subdirectory beneath it.
func (s *Subscription) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			// Entries can vanish mid-walk; keep going.
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if path != dir && s.filter.SkipsDir(path) {
			return filepath.SkipDir
		}
		if addErr := watcher.Add(path); addErr != nil {
			if path == dir {
				return fmt.Errorf("watch %s: %w", path, addErr)
			}
			s.logger.Warn("watch subdirectory",
				logging.String(logging.FieldPath, path),
				logging.Error(addErr))
		}
		return nil
	})
}
