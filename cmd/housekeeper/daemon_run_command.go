package main

import (
	"context"

	"github.com/spf13/cobra"

	"housekeeper/internal/daemonrun"
	"housekeeper/internal/service"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:          "run",
		Short:        "Run the daemon in the foreground (internal)",
		Hidden:       true,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := daemonrun.Options{LogLevel: logLevel}

			// Under the service control manager the stop request arrives
			// through the SCM channel instead of a signal.
			if isService, svcErr := service.IsWindowsService(); svcErr == nil && isService {
				return service.RunAsService(cfg.Daemon.ServiceName, cfg.Daemon.StopWindow(), func(runCtx context.Context) error {
					return daemonrun.Run(runCtx, cfg, opts)
				})
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}
