package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"confsched/internal/agenda"
)

func newAgendaCmd(root *rootOptions) *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Print the built schedule for one or all conference days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var days []agenda.Day
			if day != "" {
				d, err := a.builder.BuildDay(ctx, day)
				if err != nil {
					return err
				}
				days = []agenda.Day{d}
			} else {
				days, err = a.builder.BuildDays(ctx)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			for i, d := range days {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "%s  (%d entries, %d conflicts)\n", d.Date, len(d.Entries), d.Conflicts)
				if err := writeTable(out, d.Entries, a.loc); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "Conference day (YYYY-MM-DD); all days when empty")
	return cmd
}
