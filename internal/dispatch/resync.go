package dispatch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"housekeeper/internal/config"
	"housekeeper/internal/history"
	"housekeeper/internal/logging"
	"housekeeper/internal/watch"
)

// handleResync re-scans a target after the watch layer lost fidelity. Each
// discovered entry is evaluated as a synthesized Modified event; cooldowns
// stay intact so a rule that already fired for a path is not repeated.
func (d *Dispatcher) handleResync(ctx context.Context, ev watch.Event) {
	d.resyncs.Add(1)

	target, ok := d.targets[ev.Target]
	if !ok {
		target = config.Target{Path: ev.Target}
	}

	entries, err := d.rescan(ctx, target)
	if err != nil {
		d.logger.Warn("resync scan failed",
			logging.String(logging.FieldTarget, ev.Target),
			logging.Error(err))
	} else {
		d.logger.Info("resync scan complete",
			logging.String(logging.FieldTarget, ev.Target),
			logging.Int("entries", entries))
	}

	resync := history.Resync{
		RunID:      d.opts.RunID,
		Target:     ev.Target,
		Reason:     "watch resync",
		Entries:    entries,
		OccurredAt: d.opts.Clock(),
	}
	if err := d.opts.Recorder.RecordResync(ctx, resync); err != nil {
		d.logger.Warn("record resync", logging.Error(err))
	}

	if d.opts.Notifier != nil {
		d.notifyWG.Add(1)
		go func() {
			defer d.notifyWG.Done()
			if err := d.opts.Notifier.NotifyResync(ctx, ev.Target); err != nil {
				d.logger.Debug("resync notification failed", logging.Error(err))
			}
		}()
	}
}

// rescan walks the target per its recursive flag and filters, evaluating
// entries until ResyncMaxEntries is reached.
func (d *Dispatcher) rescan(ctx context.Context, target config.Target) (int, error) {
	filter, err := watch.NewPathFilter(target.Path, target.Include, target.Exclude)
	if err != nil {
		return 0, fmt.Errorf("compile target filter: %w", err)
	}

	count := 0
	synthesize := func(path string) {
		count++
		d.evaluate(ctx, watch.Event{
			Target: target.Path,
			Path:   path,
			Kind:   watch.KindModified,
			Time:   d.opts.Clock(),
		})
	}

	if !target.Recursive {
		dirEntries, err := os.ReadDir(target.Path)
		if err != nil {
			return 0, fmt.Errorf("read target: %w", err)
		}
		for _, entry := range dirEntries {
			if ctx.Err() != nil {
				return count, ctx.Err()
			}
			if count >= d.opts.ResyncMaxEntries {
				d.logResyncTruncated(target.Path)
				break
			}
			path := filepath.Join(target.Path, entry.Name())
			if !filter.Allows(path) {
				continue
			}
			synthesize(path)
		}
		return count, nil
	}

	walkErr := filepath.WalkDir(target.Path, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Entries can vanish mid-walk when actions fire.
			return nil
		}
		if path == target.Path {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() && filter.SkipsDir(path) {
			return fs.SkipDir
		}
		if count >= d.opts.ResyncMaxEntries {
			d.logResyncTruncated(target.Path)
			return fs.SkipAll
		}
		if !filter.Allows(path) {
			return nil
		}
		synthesize(path)
		return nil
	})
	if walkErr != nil {
		return count, fmt.Errorf("walk target: %w", walkErr)
	}
	return count, nil
}

func (d *Dispatcher) logResyncTruncated(target string) {
	d.logger.Warn("resync scan truncated",
		logging.String(logging.FieldTarget, target),
		logging.Int("limit", d.opts.ResyncMaxEntries))
}
