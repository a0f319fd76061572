package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"housekeeper/internal/notify"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			sink := notify.NewService(cfg, ctx.cliLogger())
			if err := sink.TestNotification(cmd.Context()); err != nil {
				return err
			}
			if !cfg.Notifications.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "Notifications are disabled; nothing was sent")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
