package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"housekeeper/internal/config"
	"housekeeper/internal/history"
	"housekeeper/internal/pidfile"
	"housekeeper/internal/service"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background daemon",
	}

	daemonCmd.AddCommand(newDaemonInstallCommand(ctx))
	daemonCmd.AddCommand(newDaemonUninstallCommand(ctx))
	daemonCmd.AddCommand(newDaemonStartCommand(ctx))
	daemonCmd.AddCommand(newDaemonStopCommand(ctx))
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	daemonCmd.AddCommand(newDaemonRunCommand(ctx))

	return daemonCmd
}

func newDaemonInstallCommand(ctx *commandContext) *cobra.Command {
	var noAutostart bool

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Register the daemon with the platform service manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			desc, err := daemonDescriptor(ctx, cfg, !noAutostart)
			if err != nil {
				return err
			}
			controller := service.NewController(cfg, ctx.cliLogger(), desc)
			if err := controller.Install(desc); err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Installed %s (%s)\n", desc.Name, desc.DisplayName)
			if noAutostart {
				fmt.Fprintln(stdout, "Autostart disabled; use `housekeeper daemon start` to launch it")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noAutostart, "no-autostart", false, "Register without starting at login/boot")
	return cmd
}

func newDaemonUninstallCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Stop the daemon and remove its service registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			desc, err := daemonDescriptor(ctx, cfg, true)
			if err != nil {
				return err
			}
			controller := service.NewController(cfg, ctx.cliLogger(), desc)
			if err := controller.Uninstall(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uninstalled %s\n", desc.Name)
			return nil
		},
	}
}

func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the housekeeper daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			desc, err := daemonDescriptor(ctx, cfg, true)
			if err != nil {
				return err
			}
			controller := service.NewController(cfg, ctx.cliLogger(), desc)
			if err := controller.Start(); err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if rec, err := pidfile.Read(cfg.Paths.StateDir, cfg.Daemon.ServiceName); err == nil {
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", rec.PID)
			} else {
				fmt.Fprintln(stdout, "Daemon started")
			}
			return nil
		},
	}
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the housekeeper daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			desc, err := daemonDescriptor(ctx, cfg, true)
			if err != nil {
				return err
			}
			controller := service.NewController(cfg, ctx.cliLogger(), desc)
			if err := controller.Stop(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
			return nil
		},
	}
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon state, watched directories, and rule activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			desc, err := daemonDescriptor(ctx, cfg, true)
			if err != nil {
				return err
			}
			controller := service.NewController(cfg, ctx.cliLogger(), desc)
			state, err := controller.Status()
			if err != nil {
				return err
			}

			p := newStatusPrinter(cmd.OutOrStdout())

			p.section("Daemon")
			kind, detail := describeServiceState(state, cfg)
			p.line("Service", kind, detail)
			p.line("Config", statusInfo, configDetail(ctx))
			p.line("Logs", statusInfo, cfg.Paths.LogDir)
			p.line("History", statusInfo, historyDetail(cfg))
			p.blank()

			p.section("Watched Directories")
			targetRows := buildTargetRows(cfg)
			if len(targetRows) == 0 {
				p.text("No directories configured; platform defaults are watched")
			} else {
				p.text(renderTable(
					[]tableColumn{{title: "Path"}, {title: "Recursive"}, {title: "Debounce", numeric: true}},
					targetRows,
				))
			}
			p.blank()

			p.section("Rules")
			ruleRows := buildRuleRows(cfg)
			if len(ruleRows) == 0 {
				p.text("No rules configured; new items are announced")
			} else {
				p.text(renderTable(
					[]tableColumn{
						{title: "Rule"}, {title: "Pattern"}, {title: "Action"},
						{title: "Cooldown", numeric: true}, {title: "Notify"},
					},
					ruleRows,
				))
			}

			if cfg.History.Enabled {
				p.blank()
				p.section("Rule Activity")
				renderRuleActivity(cmd, cfg, p)
			}
			return nil
		},
	}
}

func renderRuleActivity(cmd *cobra.Command, cfg *config.Config, p *statusPrinter) {
	store, err := history.Open(cfg.Paths.StateDir)
	if err != nil {
		p.line("Ledger", statusWarn, err.Error())
		return
	}
	defer store.Close()

	stats, err := store.Stats(cmd.Context())
	if err != nil {
		p.line("Ledger", statusWarn, err.Error())
		return
	}
	if len(stats) == 0 {
		p.text("No rule firings recorded")
		return
	}

	rows := make([][]string, 0, len(stats))
	for _, stat := range stats {
		rows = append(rows, []string{
			stat.Rule,
			fmt.Sprintf("%d", stat.Fired),
			fmt.Sprintf("%d", stat.Suppressed),
			fmt.Sprintf("%d", stat.Errors),
			formatTimestamp(stat.LastFired),
		})
	}
	p.text(renderTable(
		[]tableColumn{
			{title: "Rule"}, {title: "Fired", numeric: true},
			{title: "Suppressed", numeric: true}, {title: "Errors", numeric: true},
			{title: "Last Fired"},
		},
		rows,
	))
}

// describeServiceState folds the controller state and the pid record into
// one status line.
func describeServiceState(state service.State, cfg *config.Config) (statusKind, string) {
	switch state {
	case service.StateRunning:
		if running, rec, err := pidfile.IsRunning(cfg.Paths.StateDir, cfg.Daemon.ServiceName); err == nil && running {
			uptime := time.Since(rec.StartedAt).Round(time.Second)
			return statusOK, fmt.Sprintf("Running (pid %d, up %s)", rec.PID, uptime)
		}
		return statusOK, "Running"
	case service.StateInstalled:
		return statusWarn, "Installed, not running"
	case service.StateStopped:
		return statusWarn, "Stopped (stale pid record)"
	case service.StateFailed:
		return statusError, "Failed"
	default:
		return statusInfo, "Not installed"
	}
}

func configDetail(ctx *commandContext) string {
	if ctx.configPath == "" {
		return "defaults (no config file)"
	}
	if !ctx.configExists {
		return fmt.Sprintf("%s (not present, defaults in use)", ctx.configPath)
	}
	return ctx.configPath
}

func historyDetail(cfg *config.Config) string {
	if !cfg.History.Enabled {
		return "disabled"
	}
	return "enabled"
}

func buildTargetRows(cfg *config.Config) [][]string {
	rows := make([][]string, 0, len(cfg.Targets))
	for _, target := range cfg.Targets {
		rows = append(rows, []string{
			target.Path,
			yesNo(target.Recursive),
			target.Debounce(cfg.Watch).String(),
		})
	}
	return rows
}

func buildRuleRows(cfg *config.Config) [][]string {
	rows := make([][]string, 0, len(cfg.Rules))
	for _, rule := range cfg.Rules {
		action := rule.Action
		if rule.Destination != "" {
			action = fmt.Sprintf("%s -> %s", rule.Action, rule.Destination)
		}
		rows = append(rows, []string{
			rule.Name,
			rule.Pattern,
			action,
			rule.CooldownWindow().String(),
			yesNo(rule.Notify),
		})
	}
	return rows
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}

// daemonDescriptor builds the service registration for the current binary.
// The config flag travels into the daemon's argument list so the managed
// process resolves the same file the operator pointed at.
func daemonDescriptor(ctx *commandContext, cfg *config.Config, autoStart bool) (service.Descriptor, error) {
	exe, err := daemonExecutable()
	if err != nil {
		return service.Descriptor{}, err
	}
	args := []string{"daemon", "run"}
	if ctx.configFlag != nil {
		if path := strings.TrimSpace(*ctx.configFlag); path != "" {
			args = append(args, "--config", path)
		}
	}
	return service.Descriptor{
		Name:        cfg.Daemon.ServiceName,
		DisplayName: cfg.Daemon.DisplayName,
		Executable:  exe,
		Args:        args,
		AutoStart:   autoStart,
	}, nil
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}
