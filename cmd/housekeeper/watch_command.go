package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"housekeeper/internal/config"
	"housekeeper/internal/daemon"
	"housekeeper/internal/logging"
	"housekeeper/internal/paths"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var only bool
	var logLevel string

	cmd := &cobra.Command{
		Use:   "watch [dir ...]",
		Short: "Watch directories in the foreground",
		Long: "Watch runs the full watch/rule pipeline attached to the terminal.\n" +
			"Without flags it covers the platform default directories, the\n" +
			"configured targets, and any directories given as arguments.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			targets, err := resolveWatchTargets(cfg, args, only)
			if err != nil {
				return err
			}

			level := logLevel
			if level == "" {
				level = cfg.Logging.Level
			}
			logger, err := logging.New(logging.Options{
				Level:  level,
				Format: "console",
			})
			if err != nil {
				return err
			}

			runCfg := *cfg
			runCfg.Targets = targets
			d, err := daemon.New(&runCfg, logger, daemon.Options{
				RunID:     uuid.NewString(),
				Unguarded: true,
			})
			if err != nil {
				return err
			}

			signalCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop...")
			if err := d.Run(signalCtx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&only, "only", false, "Watch only the given directories, ignoring defaults and config")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}

// resolveWatchTargets builds the target list for a foreground session.
// Explicit directories must exist; with --only they stand alone (or the
// working directory when none are given), otherwise they extend the
// platform defaults and the configured targets.
func resolveWatchTargets(cfg *config.Config, args []string, only bool) ([]config.Target, error) {
	argTargets := make([]config.Target, 0, len(args))
	for _, arg := range args {
		path, err := config.ExpandPath(arg)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("inspect %q: %w", arg, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("not a directory: %s", path)
		}
		argTargets = append(argTargets, config.Target{Path: path})
	}

	if only {
		if len(argTargets) > 0 {
			return argTargets, nil
		}
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		return []config.Target{{Path: cwd}}, nil
	}

	defaults, err := paths.DefaultWatchDirs()
	if err != nil {
		return nil, fmt.Errorf("resolve default watch directories: %w", err)
	}
	defaultTargets := make([]config.Target, 0, len(defaults))
	for _, dir := range defaults {
		defaultTargets = append(defaultTargets, config.Target{Path: dir})
	}
	return mergeTargets(defaultTargets, cfg.Targets, argTargets), nil
}

// mergeTargets concatenates target groups, deduplicating by path. A later
// duplicate replaces the earlier entry in place, so a configured target's
// patterns win over a bare platform default for the same directory.
func mergeTargets(groups ...[]config.Target) []config.Target {
	var merged []config.Target
	index := make(map[string]int)
	for _, group := range groups {
		for _, target := range group {
			if i, ok := index[target.Path]; ok {
				merged[i] = target
				continue
			}
			index[target.Path] = len(merged)
			merged = append(merged, target)
		}
	}
	return merged
}
