package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "confsched/internal/log"
	"confsched/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone to which all occurrences will be converted.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the window for occurrences. An entry is
	// kept when its start lies in [RangeStart, RangeEnd).
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the expanded entries and the UIDs that hit the cap.
type ExpandResult struct {
	Entries         []model.Entry
	TruncatedEvents []string
}

// Expand turns parsed VEVENTs into agenda entries inside the configured
// window. It handles single events, RRULE recurrence (used by conferences
// for daily breakfast or lunch blocks), EXDATE and RECURRENCE-ID overrides.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	var order []string

	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	entries := make([]model.Entry, 0)

	for _, uid := range order {
		ov := overridesByUID[uid]
		truncated := false

		for _, ev := range baseByUID[uid] {
			var (
				out    []model.Entry
				hitCap bool
			)
			if ev.RawRRule == "" {
				out = expandSingleEvent(ev, ov, cfg)
			} else {
				out, hitCap = expandRecurringEvent(ev, ov, cfg)
			}
			truncated = truncated || hitCap
			entries = append(entries, out...)
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	result.Entries = entries
	return result, nil
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Entry {
	if o, ok := findOverrideForStart(overrides, ev.Start); ok {
		ev = o
	}
	if !inWindow(ev.Start, cfg) {
		return nil
	}
	return []model.Entry{makeEntry(ev, ev.Start, ev.End, cfg.DisplayLocation)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Entry, bool) {
	out := make([]model.Entry, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Between is inclusive on both ends; the window end is filtered below.
	rangeStart := cfg.RangeStart.In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())
	occTimes := set.Between(rangeStart, rangeEnd, true)

	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.End.Sub(ev.Start)
	for _, occStart := range occTimes {
		base := ev
		start, end := occStart, occStart.Add(dur)

		if o, ok := findOverrideForStart(overrides, occStart); ok {
			base = o
			start, end = o.Start, o.End
		}
		if !inWindow(start, cfg) {
			continue
		}
		e := makeEntry(base, start, end, cfg.DisplayLocation)
		// Instance IDs stay keyed by the rule slot, even when overridden.
		e.ID = ev.UID + "@" + occStart.UTC().Format(time.RFC3339)
		out = append(out, e)
	}

	return out, hitCap
}

// findOverrideForStart finds an override whose RECURRENCE-ID equals start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func inWindow(start time.Time, cfg ExpandConfig) bool {
	return !start.Before(cfg.RangeStart) && start.Before(cfg.RangeEnd)
}

// makeEntry converts a parsed event at a concrete start/end into an agenda
// entry normalized into displayLoc.
func makeEntry(ev ParsedEvent, start, end time.Time, displayLoc *time.Location) model.Entry {
	typ := model.TypeSession
	if ev.BlockType != "" {
		typ = model.BlockType(ev.BlockType)
	}

	e := model.Entry{
		Item: model.Item{
			ID:                ev.UID,
			Title:             ev.Summary,
			Start:             start.In(displayLoc),
			End:               end.In(displayLoc),
			Type:              typ,
			ReservationStatus: model.ReservationUnreserved,
		},
		SessionID:     ev.UID,
		SourceID:      ev.Source.ID,
		Room:          ev.Room,
		Subtitle:      subtitle(ev),
		Tags:          ev.Tags,
		MainTag:       ev.MainTag,
		LivestreamURL: ev.LivestreamURL,
		SeatsLeft:     ev.SeatsLeft,
	}
	if ev.LivestreamURL != "" {
		e.Flags |= model.FlagHasLivestream
	}
	if typ == model.TypeSession {
		e.SessionType = model.DetectSessionType(ev.Tags)
	}
	return e
}

// subtitle is "room - speakers", or whichever of the two is present.
func subtitle(ev ParsedEvent) string {
	switch {
	case ev.Room != "" && ev.Speakers != "":
		return ev.Room + " - " + ev.Speakers
	case ev.Speakers != "":
		return ev.Speakers
	default:
		return ev.Room
	}
}
