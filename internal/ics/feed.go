package ics

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	appLog "confsched/internal/log"
	"confsched/internal/model"
)

// Feed keeps the parsed events of every configured source in memory and
// serves agenda entries for arbitrary windows.
type Feed struct {
	fetcher *Fetcher
	sources []Source
	loc     *time.Location

	mu      sync.RWMutex
	events  []ParsedEvent
	loaded  bool
	fetched time.Time
}

// NewFeed creates a Feed. Entries are reported in loc.
func NewFeed(fetcher *Fetcher, sources []Source, loc *time.Location) *Feed {
	if loc == nil {
		loc = time.Local
	}
	return &Feed{fetcher: fetcher, sources: sources, loc: loc}
}

// Sources returns the configured sources.
func (f *Feed) Sources() []Source {
	return slices.Clone(f.sources)
}

// Refresh fetches and parses every source. Sources that fail keep their
// previously parsed events; the returned error joins every failure.
func (f *Feed) Refresh(ctx context.Context) error {
	results, errs := f.fetcher.FetchAll(ctx, f.sources)

	fresh := make(map[string][]ParsedEvent, len(results))
	for _, res := range results {
		evs, err := ParseAgenda(res.Source, res.Body)
		if err != nil {
			errs = append(errs, fmt.Errorf("agenda source %s: %w", res.Source.ID, err))
			continue
		}
		fresh[res.Source.ID] = evs
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	merged := make([]ParsedEvent, 0, len(f.events))
	for _, src := range f.sources {
		if evs, ok := fresh[src.ID]; ok {
			merged = append(merged, evs...)
			continue
		}
		for _, ev := range f.events {
			if ev.Source.ID == src.ID {
				merged = append(merged, ev)
			}
		}
	}
	f.events = merged
	f.loaded = true
	f.fetched = time.Now()

	appLog.Info("agenda refreshed", "sources", len(f.sources), "ok", len(fresh), "events", len(merged))
	return errors.Join(errs...)
}

// Invalidate forces the next Entries call to refresh.
func (f *Feed) Invalidate() {
	f.mu.Lock()
	f.loaded = false
	f.mu.Unlock()
}

// LastRefresh returns when the feed was last refreshed.
func (f *Feed) LastRefresh() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.fetched
}

// Entries returns the agenda entries starting in [start, end), sorted by
// start time.
func (f *Feed) Entries(ctx context.Context, start, end time.Time) ([]model.Entry, error) {
	f.mu.RLock()
	loaded := f.loaded
	f.mu.RUnlock()

	if !loaded {
		if err := f.Refresh(ctx); err != nil {
			f.mu.RLock()
			empty := len(f.events) == 0
			f.mu.RUnlock()
			if empty {
				return nil, err
			}
			appLog.Warn("agenda refresh partially failed, serving stale events", "error", err)
		}
	}

	f.mu.RLock()
	events := slices.Clone(f.events)
	f.mu.RUnlock()

	res, err := Expand(events, ExpandConfig{
		DisplayLocation: f.loc,
		RangeStart:      start,
		RangeEnd:        end,
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(res.Entries, func(a, b model.Entry) int {
		return a.Start.Compare(b.Start)
	})
	return res.Entries, nil
}
