package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"housekeeper/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var resyncs bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent rule firings from the action ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			store, err := history.Open(cfg.Paths.StateDir)
			if err != nil {
				return err
			}
			defer store.Close()

			stdout := cmd.OutOrStdout()
			if resyncs {
				entries, err := store.RecentResyncs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(stdout, "No resyncs recorded")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						formatTimestamp(entry.OccurredAt),
						entry.Target,
						entry.Reason,
						fmt.Sprintf("%d", entry.Entries),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]tableColumn{{title: "Time"}, {title: "Target"}, {title: "Reason"}, {title: "Entries", numeric: true}},
					rows,
				))
				return nil
			}

			firings, err := store.RecentFirings(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(firings) == 0 {
				fmt.Fprintln(stdout, "No rule firings recorded")
				return nil
			}
			rows := make([][]string, 0, len(firings))
			for _, firing := range firings {
				rows = append(rows, []string{
					formatTimestamp(firing.FiredAt),
					firing.Rule,
					firing.Action,
					firing.Path,
					firing.Outcome,
					firing.Detail,
				})
			}
			fmt.Fprintln(stdout, renderTable(
				[]tableColumn{
					{title: "Time"}, {title: "Rule"}, {title: "Action"},
					{title: "Path"}, {title: "Outcome"}, {title: "Detail"},
				},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to show")
	cmd.Flags().BoolVar(&resyncs, "resyncs", false, "Show resync scans instead of rule firings")
	return cmd
}
