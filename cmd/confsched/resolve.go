package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"confsched/internal/model"
	"confsched/internal/schedule"
)

type resolveOptions struct {
	scope          string
	allowedOverlap time.Duration
	carve          bool
	minFree        time.Duration
	output         string
	timezone       string
}

func newResolveCmd() *cobra.Command {
	opts := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve <items.json|->",
		Short: "Order a JSON item list and flag conflicts",
		Long: `resolve reads a JSON array of schedule items, e.g.

  [{"id":"i1","title":"Intro","start":"2014-06-25T14:30:00Z",
    "end":"2014-06-25T15:00:00Z","type":"session","in_schedule":true}]

and prints them in start order with conflict flags.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			var items []model.Item
			if err := sonic.Unmarshal(data, &items); err != nil {
				return fmt.Errorf("failed to decode items: %w", err)
			}
			return runResolve(cmd.OutOrStdout(), items, opts)
		},
	}

	cmd.Flags().StringVar(&opts.scope, "scope", string(schedule.DefaultScope), "Conflict scope (all, scheduled-filter, scheduled-aware)")
	cmd.Flags().DurationVar(&opts.allowedOverlap, "allowed-overlap", 0, "Overlap tolerated before items conflict")
	cmd.Flags().BoolVar(&opts.carve, "carve", false, "Carve free blocks around fixed items first")
	cmd.Flags().DurationVar(&opts.minFree, "min-free", schedule.DefaultMinFreeBlock, "Shortest free block kept when carving")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "table", "Output format (table, json)")
	cmd.Flags().StringVar(&opts.timezone, "timezone", "UTC", "Timezone for table output")
	return cmd
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(name)
}

func runResolve(w io.Writer, items []model.Item, opts *resolveOptions) error {
	scope, err := schedule.ParseScope(opts.scope)
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(opts.timezone)
	if err != nil {
		return err
	}

	if opts.carve {
		items, err = schedule.CarveFreeBlocks(items, schedule.CarveOptions{
			AllowedOverlap: opts.allowedOverlap,
			MinLength:      opts.minFree,
		})
		if err != nil {
			return err
		}
	}
	resolved, err := schedule.Resolve(items, schedule.Options{
		Scope:          scope,
		AllowedOverlap: opts.allowedOverlap,
	})
	if err != nil {
		return err
	}

	switch opts.output {
	case "json":
		data, err := sonic.MarshalIndent(resolved, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "table":
		entries := make([]model.Entry, len(resolved))
		for i, it := range resolved {
			entries[i] = model.Entry{Item: it}
		}
		return writeTable(w, entries, loc)
	default:
		return fmt.Errorf("unknown output format %q", opts.output)
	}
}
