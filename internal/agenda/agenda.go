// Package agenda builds the per-day "My Schedule" view: it pulls the day's
// entries from the agenda feed, overlays the attendee's own schedule and
// reservation state, applies the display filters and runs the resolver.
package agenda

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	appLog "confsched/internal/log"
	"confsched/internal/model"
	"confsched/internal/schedule"
	"confsched/internal/userdata"
)

const dateLayout = "2006-01-02"

var (
	// ErrUnknownDay indicates a date that is not one of the conference days.
	ErrUnknownDay = errors.New("unknown conference day")

	// ErrUnknownSession indicates a session id absent from the agenda.
	ErrUnknownSession = errors.New("unknown session")
)

// Source supplies the agenda entries starting in [start, end).
type Source interface {
	Entries(ctx context.Context, start, end time.Time) ([]model.Entry, error)
}

// UserData supplies the attendee's per-session state keyed by session id.
type UserData interface {
	All(ctx context.Context) (map[string]userdata.Record, error)
}

// Options control how a day is assembled.
type Options struct {
	Resolve schedule.Options

	// CarveFreeBlocks trims free blocks around the attendee's commitments
	// before resolving. MinFreeBlock defaults to schedule.DefaultMinFreeBlock.
	CarveFreeBlocks bool
	MinFreeBlock    time.Duration

	// SessionsOnly drops codelabs, sandbox talks and other non-session
	// content. LivestreamOnly drops sessions that are not streamed.
	SessionsOnly   bool
	LivestreamOnly bool

	// AttendeeAtVenue shows breaks, which are meaningless to remote viewers.
	AttendeeAtVenue bool
}

// Day is one built conference day.
type Day struct {
	Date      string        `json:"date"`
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end"`
	Entries   []model.Entry `json:"entries"`
	Conflicts int           `json:"conflicts"`
}

// Builder builds conference days. It is safe for concurrent use.
type Builder struct {
	source Source
	user   UserData
	loc    *time.Location
	days   []time.Time
	opts   Options
}

// NewBuilder creates a Builder for the given conference dates (YYYY-MM-DD,
// interpreted in loc). user may be nil.
func NewBuilder(source Source, user UserData, dates []string, loc *time.Location, opts Options) (*Builder, error) {
	if source == nil {
		return nil, errors.New("agenda source is nil")
	}
	if loc == nil {
		loc = time.Local
	}
	b := &Builder{source: source, user: user, loc: loc, opts: opts}
	for _, d := range dates {
		t, err := time.ParseInLocation(dateLayout, d, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid conference day %q: %w", d, err)
		}
		b.days = append(b.days, t)
	}
	return b, nil
}

// Days returns the conference dates in configured order.
func (b *Builder) Days() []string {
	out := make([]string, len(b.days))
	for i, d := range b.days {
		out[i] = d.Format(dateLayout)
	}
	return out
}

func (b *Builder) lookup(date string) (time.Time, error) {
	for _, d := range b.days {
		if d.Format(dateLayout) == date {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("%s: %w", date, ErrUnknownDay)
}

// BuildDay builds one conference day.
func (b *Builder) BuildDay(ctx context.Context, date string) (Day, error) {
	dayStart, err := b.lookup(date)
	if err != nil {
		return Day{}, err
	}
	dayEnd := time.Date(dayStart.Year(), dayStart.Month(), dayStart.Day()+1, 0, 0, 0, 0, b.loc)

	entries, err := b.source.Entries(ctx, dayStart, dayEnd)
	if err != nil {
		return Day{}, fmt.Errorf("failed to load agenda for %s: %w", date, err)
	}

	var marks map[string]userdata.Record
	if b.user != nil {
		marks, err = b.user.All(ctx)
		if err != nil {
			return Day{}, fmt.Errorf("failed to load user schedule: %w", err)
		}
	}

	byID := make(map[string]model.Entry, len(entries))
	items := make([]model.Item, 0, len(entries))
	for _, e := range entries {
		if e.IsSession() {
			if rec, ok := marks[e.SessionID]; ok {
				e.InSchedule = rec.InSchedule
				e.ReservationStatus = rec.ReservationStatus
			}
		} else if e.Type != model.TypeFree {
			e.Flags |= model.FlagNotRemovable
		}
		if !b.keep(e) {
			continue
		}
		if _, dup := byID[e.ID]; dup {
			appLog.Warn("duplicate agenda entry skipped", "day", date, "id", e.ID)
			continue
		}
		if err := schedule.Validate([]model.Item{e.Item}); err != nil {
			appLog.Warn("invalid agenda entry skipped", "day", date, "id", e.ID, "error", err)
			continue
		}
		byID[e.ID] = e
		items = append(items, e.Item)
	}

	pool := items
	if b.opts.CarveFreeBlocks {
		items, err = schedule.CarveFreeBlocks(items, schedule.CarveOptions{
			AllowedOverlap: b.opts.Resolve.AllowedOverlap,
			MinLength:      b.opts.MinFreeBlock,
		})
		if err != nil {
			return Day{}, fmt.Errorf("failed to carve free blocks for %s: %w", date, err)
		}
	}

	resolved, err := schedule.Resolve(items, b.opts.Resolve)
	if err != nil {
		return Day{}, fmt.Errorf("failed to resolve %s: %w", date, err)
	}

	day := Day{
		Date:    date,
		Start:   dayStart,
		End:     dayEnd,
		Entries: make([]model.Entry, 0, len(resolved)),
	}
	pieces := make(map[string]int)
	for _, it := range resolved {
		e := byID[it.ID]
		e.Item = it
		// Split free blocks share their origin's id.
		if n := pieces[it.ID]; n > 0 {
			e.ID = it.ID + "#" + strconv.Itoa(n+1)
		}
		pieces[it.ID]++
		if it.Type == model.TypeFree {
			e.AvailableSessions = schedule.CountAvailable(it, pool)
		}
		day.Entries = append(day.Entries, e)
	}

	pairs := schedule.Conflicting(resolved)
	day.Conflicts = len(pairs)
	if appLog.DebugEnabled() {
		for _, p := range pairs {
			a, c := resolved[p[0]], resolved[p[1]]
			appLog.Debug("schedule conflict",
				"day", date,
				"previous", a.Title, "previous_start", a.Start.Format("15:04"),
				"item", c.Title, "item_start", c.Start.Format("15:04"))
		}
	}

	return day, nil
}

// Session finds a session by id on any conference day, ignoring the
// display filters and the attendee's schedule.
func (b *Builder) Session(ctx context.Context, sessionID string) (model.Entry, error) {
	for _, d := range b.days {
		end := time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, b.loc)
		entries, err := b.source.Entries(ctx, d, end)
		if err != nil {
			return model.Entry{}, err
		}
		for _, e := range entries {
			if e.IsSession() && e.SessionID == sessionID {
				return e, nil
			}
		}
	}
	return model.Entry{}, fmt.Errorf("%s: %w", sessionID, ErrUnknownSession)
}

// keep applies the display filters. Free blocks always survive here; the
// carver decides what is left of them.
func (b *Builder) keep(e model.Entry) bool {
	switch e.Type {
	case model.TypeBreak:
		return b.opts.AttendeeAtVenue
	case model.TypeSession:
		if b.opts.SessionsOnly && e.SessionType != model.SessionTypeSession {
			return false
		}
		if b.opts.LivestreamOnly && !e.Flags.Has(model.FlagHasLivestream) {
			return false
		}
	}
	return true
}

// BuildDays builds every conference day concurrently. The result follows
// the configured day order.
func (b *Builder) BuildDays(ctx context.Context) ([]Day, error) {
	out := make([]Day, len(b.days))
	g, ctx := errgroup.WithContext(ctx)
	for i, d := range b.days {
		g.Go(func() error {
			day, err := b.BuildDay(ctx, d.Format(dateLayout))
			if err != nil {
				return err
			}
			out[i] = day
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
