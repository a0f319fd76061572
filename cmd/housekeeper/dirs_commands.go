package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"housekeeper/internal/config"
)

func newDirsCommand(ctx *commandContext) *cobra.Command {
	dirsCmd := &cobra.Command{
		Use:   "dirs",
		Short: "Manage watched directories in the configuration",
	}

	dirsCmd.AddCommand(newDirsListCommand(ctx))
	dirsCmd.AddCommand(newDirsAddCommand(ctx))
	dirsCmd.AddCommand(newDirsRemoveCommand(ctx))

	return dirsCmd
}

func newDirsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			stdout := cmd.OutOrStdout()
			if len(cfg.Targets) == 0 {
				fmt.Fprintln(stdout, "No directories in config")
				return nil
			}
			for _, target := range cfg.Targets {
				if target.Recursive {
					fmt.Fprintf(stdout, "%s (recursive)\n", target.Path)
					continue
				}
				fmt.Fprintln(stdout, target.Path)
			}
			return nil
		},
	}
}

func newDirsAddCommand(ctx *commandContext) *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Add a directory to the configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			resolved, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			for _, target := range cfg.Targets {
				if target.Path == resolved {
					return fmt.Errorf("already in config: %s", resolved)
				}
			}

			cfg.Targets = append(cfg.Targets, config.Target{Path: resolved, Recursive: recursive})
			path, err := ctx.savePath()
			if err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added: %s\n", resolved)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Watch the directory tree, not just the top level")
	return cmd
}

func newDirsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <path>",
		Short: "Remove a directory from the configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			resolved, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			kept := cfg.Targets[:0]
			removed := false
			for _, target := range cfg.Targets {
				if target.Path == resolved {
					removed = true
					continue
				}
				kept = append(kept, target)
			}
			if !removed {
				return fmt.Errorf("not in config: %s", resolved)
			}

			cfg.Targets = kept
			path, err := ctx.savePath()
			if err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed: %s\n", resolved)
			return nil
		},
	}
}
