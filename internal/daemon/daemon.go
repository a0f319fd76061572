package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"housekeeper/internal/config"
	"housekeeper/internal/dispatch"
	"housekeeper/internal/history"
	"housekeeper/internal/logging"
	"housekeeper/internal/notify"
	"housekeeper/internal/paths"
	"housekeeper/internal/pidfile"
	"housekeeper/internal/rules"
	"housekeeper/internal/watch"
)

// State tracks the supervisor lifecycle.
type State string

const (
	StateStarting     State = "starting"
	StateRunning      State = "running"
	StateShuttingDown State = "shutting-down"
	StateStopped      State = "stopped"
)

// Options carries the collaborators the runtime bootstrap wires in.
type Options struct {
	RunID    string
	Notifier notify.Service
	Recorder history.Recorder

	// Unguarded skips the single-instance pid record. Foreground watch
	// sessions run alongside the managed daemon and each other.
	Unguarded bool
}

// Status represents supervisor runtime information.
type Status struct {
	State     State
	PID       int
	RunID     string
	StartedAt time.Time
	Uptime    time.Duration
	Targets   []string
	Rules     []string
	Dispatch  dispatch.Stats
}

// Daemon owns one daemon process end to end: the single-instance guard,
// the watch subscriptions, the pump goroutines feeding the dispatcher,
// and the bounded shutdown drain.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	notifier  notify.Service
	recorder  history.Recorder
	runID     string
	unguarded bool

	mu          sync.Mutex
	state       State
	startedAt   time.Time
	targetPaths []string
	ruleNames   []string
	dispatcher  *dispatch.Dispatcher
}

// New constructs a supervisor with initialized dependencies. A nil logger
// disables logging; a nil notifier falls back to the configured sink.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NewService(cfg, logger)
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = history.NopRecorder{}
	}
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		notifier:  notifier,
		recorder:  recorder,
		runID:     opts.RunID,
		unguarded: opts.Unguarded,
		state:     StateStopped,
	}, nil
}

// State returns the current lifecycle state.
func (d *Daemon) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Status returns the current supervisor status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := Status{
		State:     d.state,
		PID:       os.Getpid(),
		RunID:     d.runID,
		StartedAt: d.startedAt,
		Targets:   append([]string(nil), d.targetPaths...),
		Rules:     append([]string(nil), d.ruleNames...),
	}
	if !d.startedAt.IsZero() {
		st.Uptime = time.Since(d.startedAt)
	}
	if d.dispatcher != nil {
		st.Dispatch = d.dispatcher.Stats()
	}
	return st
}

// Run executes the daemon until ctx is cancelled or a fatal fault occurs.
// Rules and targets are resolved before the instance guard or any watch is
// touched, so configuration problems fail without side effects. Cancellation
// stops event intake and drains already-queued events within the shutdown
// window; Run then returns nil for an operator stop or the fault that forced
// the daemon down.
func (d *Daemon) Run(ctx context.Context) error {
	d.setState(StateStarting)
	defer d.setState(StateStopped)

	ruleset, err := d.loadRules()
	if err != nil {
		return err
	}
	targets, err := d.loadTargets()
	if err != nil {
		return err
	}

	if !d.unguarded {
		guard, err := pidfile.Acquire(d.cfg.Paths.StateDir, d.cfg.Daemon.ServiceName)
		if err != nil {
			return err
		}
		defer func() {
			if releaseErr := guard.Release(); releaseErr != nil {
				d.logger.Warn("release instance guard", logging.Error(releaseErr))
			}
		}()
	}

	engine := watch.NewEngine(d.logger, watch.Options{
		DebounceWindow: d.cfg.Watch.Debounce(),
		BufferSize:     d.cfg.Watch.BufferSize,
		RetryLimit:     d.cfg.Watch.RetryLimit,
		RetryBackoff:   d.cfg.Watch.Backoff(),
	})

	subs := make([]*watch.Subscription, 0, len(targets))
	closeSubs := func() {
		for _, sub := range subs {
			_ = sub.Close()
		}
	}
	for _, target := range targets {
		sub, err := engine.Subscribe(ctx, watch.Target{
			Path:      target.Path,
			Recursive: target.Recursive,
			Include:   target.Include,
			Exclude:   target.Exclude,
			Debounce:  target.Debounce(d.cfg.Watch),
		})
		if err != nil {
			closeSubs()
			return fmt.Errorf("subscribe %s: %w", target.Path, err)
		}
		subs = append(subs, sub)
	}

	// The dispatcher outlives ctx so the queue can drain after a stop
	// signal; only the shutdown window cancels it.
	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	defer cancelDispatch()

	dispatcher := dispatch.New(d.logger, dispatch.Options{
		Rules:            ruleset,
		Targets:          targets,
		Notifier:         d.notifier,
		Recorder:         d.recorder,
		RunID:            d.runID,
		QueueSize:        d.cfg.Watch.BufferSize,
		ResyncMaxEntries: d.cfg.Watch.ResyncMaxEntries,
	})

	names := make([]string, 0, len(ruleset))
	for _, rule := range ruleset {
		names = append(names, rule.Name)
	}
	roots := make([]string, 0, len(targets))
	for _, target := range targets {
		roots = append(roots, target.Path)
	}
	d.mu.Lock()
	d.dispatcher = dispatcher
	d.targetPaths = roots
	d.ruleNames = names
	d.startedAt = time.Now()
	d.mu.Unlock()

	dispatchDone := make(chan error, 1)
	go func() {
		dispatchDone <- dispatcher.Run(dispatchCtx)
	}()

	fatals := make(chan error, len(subs))
	var pumps sync.WaitGroup
	for _, sub := range subs {
		pumps.Add(1)
		go d.pump(dispatchCtx, sub, dispatcher, fatals, &pumps)
	}

	d.setState(StateRunning)
	d.logger.Info("daemon running",
		logging.String(logging.FieldRunID, d.runID),
		logging.Int("targets", len(targets)),
		logging.Int("rules", len(ruleset)))

	var fatal error
	select {
	case <-ctx.Done():
		d.logger.Info("shutdown requested")
	case fatal = <-fatals:
		d.logger.Error("fatal fault, shutting down", logging.Error(fatal))
	}

	d.setState(StateShuttingDown)

	// Stop intake first, then drain what already made it into the queue.
	// The window cancels the dispatcher, which also unblocks any pump
	// stuck in Submit.
	drain := time.AfterFunc(d.cfg.Daemon.ShutdownWindow(), cancelDispatch)
	defer drain.Stop()

	closeSubs()
	pumps.Wait()
	dispatcher.Close()

	if runErr := <-dispatchDone; errors.Is(runErr, context.Canceled) {
		d.logger.Warn("shutdown window expired before queue drained",
			logging.Duration("window", d.cfg.Daemon.ShutdownWindow()))
	} else if runErr != nil {
		d.logger.Warn("dispatcher exit", logging.Error(runErr))
	}

	stats := dispatcher.Stats()
	d.logger.Info("daemon stopped",
		logging.Uint64("events", stats.Events),
		logging.Uint64("fired", stats.Fired),
		logging.Uint64("suppressed", stats.Suppressed),
		logging.Uint64("errors", stats.Errors),
		logging.Uint64("resyncs", stats.Resyncs))
	return fatal
}

// pump forwards one subscription's events into the dispatcher. A lost watch
// or a panic is a fatal fault; either routes the supervisor through the
// controlled shutdown path instead of wedging or crashing the process.
func (d *Daemon) pump(ctx context.Context, sub *watch.Subscription, dispatcher *dispatch.Dispatcher, fatals chan<- error, wg *sync.WaitGroup) {
	defer wg.Done()
	target := sub.Target().Path
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event pump panic",
				logging.String(logging.FieldTarget, target),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())))
			fatals <- fmt.Errorf("event pump for %s panicked: %v", target, r)
		}
	}()

	for ev := range sub.Events() {
		if err := dispatcher.Submit(ctx, ev); err != nil {
			return
		}
	}

	if err := sub.Err(); errors.Is(err, watch.ErrWatchLost) {
		fatals <- err
		if notifyErr := d.notifier.NotifyWatchFailed(context.Background(), target, err); notifyErr != nil {
			d.logger.Debug("watch failure notification failed", logging.Error(notifyErr))
		}
	}
}

func (d *Daemon) setState(state State) {
	d.mu.Lock()
	d.state = state
	d.mu.Unlock()
}

func (d *Daemon) loadRules() ([]rules.Rule, error) {
	if len(d.cfg.Rules) == 0 {
		return []rules.Rule{rules.BuiltinNotifyNewItem()}, nil
	}
	return rules.FromConfig(d.cfg.Rules)
}

// loadTargets returns the configured watch targets, or the home directory
// plus the standard user directories when none are configured.
func (d *Daemon) loadTargets() ([]config.Target, error) {
	if len(d.cfg.Targets) > 0 {
		return d.cfg.Targets, nil
	}
	dirs, err := paths.DefaultWatchDirs()
	if err != nil {
		return nil, fmt.Errorf("resolve default watch directories: %w", err)
	}
	if len(dirs) == 0 {
		return nil, errors.New("no watch targets configured and no default directories found")
	}
	targets := make([]config.Target, 0, len(dirs))
	for _, dir := range dirs {
		targets = append(targets, config.Target{Path: dir})
	}
	return targets, nil
}
