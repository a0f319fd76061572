package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"housekeeper/internal/logging"
)

// ErrWatchLost reports that a target's OS watch could not be re-established
// within the configured retry budget. The subscription is dead once this
// surfaces.
var ErrWatchLost = errors.New("watch lost")

// Target describes one watched location.
type Target struct {
	Path      string
	Recursive bool
	Include   []string
	Exclude   []string
	// Debounce overrides the engine-wide window when positive.
	Debounce time.Duration
}

// Options tune engine behavior. Zero values fall back to defaults.
type Options struct {
	DebounceWindow time.Duration
	BufferSize     int
	RetryLimit     int
	RetryBackoff   time.Duration
}

func (o Options) withDefaults() Options {
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = 300 * time.Millisecond
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 512
	}
	if o.RetryLimit <= 0 {
		o.RetryLimit = 5
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Second
	}
	return o
}

// Engine creates subscriptions that turn raw filesystem notifications into
// debounced, ordered event streams.
type Engine struct {
	logger *slog.Logger
	opts   Options
}

// NewEngine constructs an engine. A nil logger disables logging.
func NewEngine(logger *slog.Logger, opts Options) *Engine {
	return &Engine{
		logger: logging.NewComponentLogger(logger, "watch"),
		opts:   opts.withDefaults(),
	}
}

// Subscribe opens a live event stream for target. The stream ends when ctx
// is cancelled, Close is called, or the watch is lost beyond recovery; in
// the last case Err reports the cause after Events is drained.
func (e *Engine) Subscribe(ctx context.Context, target Target) (*Subscription, error) {
	abs, err := filepath.Abs(target.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve watch target %s: %w", target.Path, err)
	}
	target.Path = filepath.Clean(abs)

	filter, err := NewPathFilter(target.Path, target.Include, target.Exclude)
	if err != nil {
		return nil, fmt.Errorf("watch target %s: %w", target.Path, err)
	}

	window := target.Debounce
	if window <= 0 {
		window = e.opts.DebounceWindow
	}

	if ctx == nil {
		ctx = context.Background()
	}
	s := &Subscription{
		target:      target,
		opts:        e.opts,
		logger:      e.logger,
		filter:      filter,
		ctx:         ctx,
		events:      make(chan Event, e.opts.BufferSize),
		closeCh:     make(chan struct{}),
		done:        make(chan struct{}),
		resyncArmed: true,
	}
	s.deb = newDebouncer(window, s.emit)

	watcher, err := s.openWatcher()
	if err != nil {
		return nil, err
	}
	s.watcher = watcher

	go s.run(ctx)

	e.logger.Info("subscription established",
		logging.String(logging.FieldTarget, target.Path),
		logging.Bool("recursive", target.Recursive),
		logging.Duration("debounce", window))
	return s, nil
}

func statDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", path)
	}
	return nil
}
