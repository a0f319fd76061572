package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"housekeeper/internal/config"
	"housekeeper/internal/daemon"
	"housekeeper/internal/history"
	"housekeeper/internal/logging"
	"housekeeper/internal/notify"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides the configured level when non-empty.
	LogLevel string
}

// Run executes the housekeeper daemon runtime loop: run-scoped logging,
// the history ledger, the notification sink, and the supervisor, blocking
// until a stop signal lands or a fatal fault forces the daemon down.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := uuid.NewString()
	startedAt := time.Now().UTC()
	logPath := filepath.Join(cfg.Paths.LogDir,
		fmt.Sprintf("housekeeper-%s.log", startedAt.Format("20060102T150405.000Z")))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String(logging.FieldRunID, runID))

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update housekeeper.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, logging.RetentionTargets(cfg.Paths.LogDir), cfg.Logging.RetentionDays)

	var recorder history.Recorder = history.NopRecorder{}
	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.Paths.StateDir)
		if err != nil {
			logger.Error("open history store", logging.Error(err))
			return err
		}
		defer store.Close()
		// Not signalCtx: a stop signal racing startup must not lose the row.
		if err := store.StartRun(context.Background(), runID, startedAt); err != nil {
			logger.Warn("record run start", logging.Error(err))
		}
		recorder = store
	}

	d, err := daemon.New(cfg, logger, daemon.Options{
		RunID:    runID,
		Notifier: notify.NewService(cfg, logger),
		Recorder: recorder,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	runErr := d.Run(signalCtx)

	if store != nil {
		reason := "signal"
		if runErr != nil {
			reason = runErr.Error()
		}
		// The signal context is already cancelled on the normal path; the
		// run row still deserves its exit reason.
		if err := store.FinishRun(context.Background(), runID, reason); err != nil {
			logger.Warn("record run finish", logging.Error(err))
		}
	}
	return runErr
}

// ensureCurrentLogPointer keeps housekeeper.log pointing at the newest
// run-scoped log file. Symlinks are preferred; filesystems without them get
// a hard link.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "housekeeper.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}
