package main

import (
	"context"

	"github.com/spf13/cobra"

	"confsched/internal/ics"
	appLog "confsched/internal/log"
	"confsched/internal/refresh"
	"confsched/internal/web"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the schedule HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			// CLI --listen overrides config file listen if provided.
			if listen != "" {
				cfg.Listen = listen
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			appLog.Info("confsched starting", "version", version)

			srv := web.NewServer(cfg, a.builder, a.store, a.feed)

			if _, err := refresh.Start(ctx, cfg.RefreshCron, a.loc, func(ctx context.Context) error {
				defer srv.Invalidate()
				return a.feed.Refresh(ctx)
			}); err != nil {
				return err
			}

			go func() {
				err := ics.WatchLocal(ctx, a.feed.Sources(), func() {
					appLog.Info("local agenda changed, reloading")
					a.feed.Invalidate()
					srv.Invalidate()
				})
				if err != nil {
					appLog.Error("agenda file watch stopped", err)
				}
			}()

			err = srv.Run(ctx)
			appLog.Info("confsched exiting")
			return err
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}
