package main

import (
	"github.com/spf13/cobra"

	"confsched/internal/config"
	appLog "confsched/internal/log"
)

const version = "0.1.0-dev"

type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "confsched",
		Short: "Conference \"My Schedule\" engine",
		Long: `confsched builds a conference attendee's personal schedule from an ICS
agenda, flags overlapping sessions and manages schedule/reservation state.

Examples:
  confsched serve --config ./config.yaml      # HTTP API
  confsched agenda --day 2014-06-25            # print one built day
  confsched resolve items.json --scope all     # resolve a JSON item list`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.debug {
				appLog.SetLevel(appLog.LevelDebug)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "./config.yaml", "Path to config file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newAgendaCmd(opts),
		newResolveCmd(),
	)
	return cmd
}

// loadConfig loads and validates the config file; --debug wins over
// log_level.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !o.debug {
		appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	}
	return cfg, nil
}
