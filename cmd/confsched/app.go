package main

import (
	"context"
	"fmt"
	"time"

	"confsched/internal/agenda"
	"confsched/internal/config"
	"confsched/internal/ics"
	appLog "confsched/internal/log"
	"confsched/internal/schedule"
	"confsched/internal/userdata"
)

// app holds the collaborators shared by serve and agenda.
type app struct {
	cfg     *config.Config
	loc     *time.Location
	store   *userdata.Store
	feed    *ics.Feed
	builder *agenda.Builder
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store, err := userdata.Open(cfg.UserdataPath)
	if err != nil {
		return nil, err
	}

	sources := make([]ics.Source, 0, len(cfg.Agenda))
	for _, a := range cfg.Agenda {
		sources = append(sources, ics.Source{ID: a.ID, URL: a.URL})
	}
	feed := ics.NewFeed(ics.NewFetcher(cfg.CacheDir), sources, loc)
	if err := feed.Refresh(ctx); err != nil {
		appLog.Warn("initial agenda refresh incomplete", "error", err)
	}

	opts, err := builderOptions(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	builder, err := agenda.NewBuilder(feed, store, cfg.Days, loc, opts)
	if err != nil {
		store.Close()
		return nil, err
	}

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"days", len(cfg.Days),
		"agenda_sources", len(sources),
		"conflict_scope", cfg.Schedule.ConflictScope,
		"allowed_overlap", cfg.Schedule.AllowedOverlap,
		"carve_free_blocks", cfg.Schedule.CarveFreeBlocks,
		"reservations", cfg.Reservations.Enabled,
	)

	return &app{cfg: cfg, loc: loc, store: store, feed: feed, builder: builder}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func builderOptions(cfg *config.Config) (agenda.Options, error) {
	scope, err := cfg.Scope()
	if err != nil {
		return agenda.Options{}, fmt.Errorf("schedule.conflict_scope: %w", err)
	}
	return agenda.Options{
		Resolve: schedule.Options{
			Scope:          scope,
			AllowedOverlap: cfg.Schedule.AllowedOverlap,
		},
		CarveFreeBlocks: cfg.Schedule.CarveFreeBlocks,
		MinFreeBlock:    cfg.Schedule.MinFreeBlock,
		SessionsOnly:    cfg.Schedule.SessionsOnly,
		LivestreamOnly:  cfg.Schedule.LivestreamOnly,
		AttendeeAtVenue: cfg.Schedule.AttendeeAtVenue,
	}, nil
}
