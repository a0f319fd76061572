package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"housekeeper/internal/rules"
)

func newRulesCommand(ctx *commandContext) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect configured housekeeping rules",
	}

	rulesCmd.AddCommand(newRulesListCommand(ctx))
	return rulesCmd
}

func newRulesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			stdout := cmd.OutOrStdout()

			// Compiling surfaces pattern problems the same way daemon
			// startup would.
			compiled, err := rules.FromConfig(cfg.Rules)
			if err != nil {
				return err
			}
			if len(compiled) == 0 {
				fmt.Fprintln(stdout, "No rules configured; new items are announced")
				return nil
			}

			rows := make([][]string, 0, len(compiled))
			for _, rule := range compiled {
				action := rule.Action
				if rule.Destination != "" {
					action = fmt.Sprintf("%s -> %s", rule.Action, rule.Destination)
				}
				rows = append(rows, []string{
					rule.Name,
					rule.Pattern(),
					action,
					rule.Cooldown.String(),
					yesNo(rule.Exclusive),
					yesNo(rule.Notify),
				})
			}
			fmt.Fprintln(stdout, renderTable(
				[]tableColumn{
					{title: "Rule"}, {title: "Pattern"}, {title: "Action"},
					{title: "Cooldown", numeric: true}, {title: "Exclusive"}, {title: "Notify"},
				},
				rows,
			))
			return nil
		},
	}
}
