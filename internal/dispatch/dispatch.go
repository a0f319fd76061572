package dispatch

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"housekeeper/internal/config"
	"housekeeper/internal/history"
	"housekeeper/internal/logging"
	"housekeeper/internal/notify"
	"housekeeper/internal/rules"
	"housekeeper/internal/watch"
)

// Options configures a Dispatcher.
type Options struct {
	Rules            []rules.Rule
	Targets          []config.Target
	Notifier         notify.Service
	Recorder         history.Recorder
	RunID            string
	QueueSize        int
	ResyncMaxEntries int

	// Clock overrides time.Now. Tests use it to step cooldown windows.
	Clock func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Recorder == nil {
		o.Recorder = history.NopRecorder{}
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	if o.ResyncMaxEntries <= 0 {
		o.ResyncMaxEntries = 512
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Stats is a point-in-time snapshot of dispatcher activity.
type Stats struct {
	Events     uint64
	Fired      uint64
	Suppressed uint64
	Errors     uint64
	Resyncs    uint64
}

// Dispatcher drains one ordered event queue fed by every subscription and
// evaluates housekeeping rules against each event. A single consumer
// goroutine owns rule evaluation, so rules observe events in submission
// order; only notification delivery runs concurrently.
type Dispatcher struct {
	logger   *slog.Logger
	opts     Options
	registry rules.Registry
	targets  map[string]config.Target

	events    chan watch.Event
	closeOnce sync.Once
	cooldowns *cooldownLedger
	notifyWG  sync.WaitGroup

	seen       atomic.Uint64
	fired      atomic.Uint64
	suppressed atomic.Uint64
	errs       atomic.Uint64
	resyncs    atomic.Uint64
}

// New constructs a dispatcher. A nil logger disables logging.
func New(logger *slog.Logger, opts Options) *Dispatcher {
	opts = opts.withDefaults()
	targets := make(map[string]config.Target, len(opts.Targets))
	for _, target := range opts.Targets {
		targets[target.Path] = target
	}
	return &Dispatcher{
		logger:    logging.NewComponentLogger(logger, "dispatch"),
		opts:      opts,
		registry:  rules.NewRegistry(),
		targets:   targets,
		events:    make(chan watch.Event, opts.QueueSize),
		cooldowns: newCooldownLedger(),
	}
}

// Submit queues one event for evaluation. It blocks while the queue is
// full, which backpressures the subscription pumps and lets the watch
// layer degrade to a resync instead of dropping events silently.
func (d *Dispatcher) Submit(ctx context.Context, ev watch.Event) error {
	select {
	case d.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the input stream. Run drains queued events and then returns.
// Callers must not Submit after Close.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.events)
	})
}

// Run consumes events until the input is closed or ctx is canceled, then
// waits for in-flight notification deliveries.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.notifyWG.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-d.events:
			if !ok {
				return nil
			}
			d.handle(ctx, ev)
		}
	}
}

// Stats returns activity counters for status reporting.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Events:     d.seen.Load(),
		Fired:      d.fired.Load(),
		Suppressed: d.suppressed.Load(),
		Errors:     d.errs.Load(),
		Resyncs:    d.resyncs.Load(),
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev watch.Event) {
	d.seen.Add(1)
	if ev.Kind == watch.KindResync {
		d.handleResync(ctx, ev)
		return
	}
	d.evaluate(ctx, ev)
}

// evaluate walks the configured rules in order. An exclusive rule ends
// evaluation at its first match whether it fired or was suppressed, so a
// cooldown never changes which later rules run.
func (d *Dispatcher) evaluate(ctx context.Context, ev watch.Event) {
	for i := range d.opts.Rules {
		rule := &d.opts.Rules[i]
		if !rule.AppliesTo(ev.Kind) {
			continue
		}
		if !rule.Matches(ev.Target, ev.Path) {
			continue
		}

		if !d.cooldowns.allow(rule.Name, ev.Path, rule.Cooldown, d.opts.Clock()) {
			d.suppressed.Add(1)
			d.logger.Debug("rule suppressed by cooldown",
				logging.String(logging.FieldRule, rule.Name),
				logging.String(logging.FieldPath, ev.Path))
			d.record(ctx, rule, ev, history.OutcomeSuppressed, "cooldown")
			if rule.Exclusive {
				return
			}
			continue
		}

		d.fire(ctx, rule, ev)
		if rule.Exclusive {
			return
		}
	}
}

func (d *Dispatcher) fire(ctx context.Context, rule *rules.Rule, ev watch.Event) {
	action, ok := d.registry.Lookup(rule.Action)
	if !ok {
		d.errs.Add(1)
		d.logger.Error("unknown action",
			logging.String(logging.FieldRule, rule.Name),
			logging.String("action", rule.Action))
		return
	}

	inv := rules.Invocation{Rule: *rule, Target: ev.Target, Path: ev.Path, Kind: ev.Kind}
	err := action.Run(ctx, inv)
	if err != nil {
		d.errs.Add(1)
		d.logger.Error("rule action failed",
			logging.String(logging.FieldRule, rule.Name),
			logging.String("action", rule.Action),
			logging.String(logging.FieldPath, ev.Path),
			logging.Error(err))
		d.record(ctx, rule, ev, history.OutcomeError, err.Error())
		return
	}

	d.fired.Add(1)
	d.logger.Info("rule fired",
		logging.String(logging.FieldRule, rule.Name),
		logging.String("action", rule.Action),
		logging.String(logging.FieldPath, ev.Path),
		logging.String(logging.FieldEvent, ev.Kind.String()))
	d.record(ctx, rule, ev, history.OutcomeOK, "")

	if rule.Notify || rule.Action == rules.ActionNotify {
		d.notifyFired(ctx, *rule, ev)
	}
}

func (d *Dispatcher) record(ctx context.Context, rule *rules.Rule, ev watch.Event, outcome, detail string) {
	firing := history.Firing{
		RunID:     d.opts.RunID,
		Rule:      rule.Name,
		Action:    rule.Action,
		Target:    ev.Target,
		Path:      ev.Path,
		EventKind: ev.Kind.String(),
		Outcome:   outcome,
		Detail:    detail,
		FiredAt:   d.opts.Clock(),
	}
	if err := d.opts.Recorder.RecordFiring(ctx, firing); err != nil {
		d.logger.Warn("record firing", logging.Error(err))
	}
}

// notifyFired delivers on a tracked goroutine so a slow sink never stalls
// the evaluation loop.
func (d *Dispatcher) notifyFired(ctx context.Context, rule rules.Rule, ev watch.Event) {
	if d.opts.Notifier == nil {
		return
	}
	d.notifyWG.Add(1)
	go func() {
		defer d.notifyWG.Done()
		var err error
		if rule.Action == rules.ActionNotify && ev.Kind == watch.KindCreated {
			isDir := false
			if info, statErr := os.Stat(ev.Path); statErr == nil {
				isDir = info.IsDir()
			}
			err = d.opts.Notifier.NotifyNewItem(ctx, ev.Path, isDir)
		} else {
			err = d.opts.Notifier.NotifyRuleFired(ctx, rule.Name, rule.Action, ev.Path)
		}
		if err != nil {
			d.logger.Debug("notification delivery failed",
				logging.String(logging.FieldRule, rule.Name),
				logging.Error(err))
		}
	}()
}
