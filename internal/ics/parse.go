package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "confsched/internal/log"
)

// Agenda-specific VEVENT extensions.
const (
	propBlockType  ical.ComponentProperty = "X-BLOCK-TYPE"
	propMainTag    ical.ComponentProperty = "X-MAIN-TAG"
	propLivestream ical.ComponentProperty = "X-LIVESTREAM-URL"
	propSeatsLeft  ical.ComponentProperty = "X-SEATS-LEFT"
	propSpeakers   ical.ComponentProperty = "X-SPEAKERS"
	propRecurrence ical.ComponentProperty = "RECURRENCE-ID"
)

// ParsedEvent is one VEVENT of an agenda feed before recurrence expansion.
type ParsedEvent struct {
	Source Source

	UID string
	Seq int

	Summary  string
	Room     string
	Speakers string
	Tags     []string
	MainTag  string

	// BlockType is empty for sessions and holds the agenda block kind
	// ("free", "break", "meal", "keynote") otherwise.
	BlockType string

	LivestreamURL string
	SeatsLeft     int

	Start time.Time
	End   time.Time

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, if this VEVENT overrides one instance
	IsOverride bool
}

// ParseAgenda parses one feed body. Broken VEVENTs are logged and skipped.
func ParseAgenda(src Source, body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty agenda body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("agenda parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp)
		if perr != nil {
			appLog.Error("agenda vevent skipped", perr, "id", src.ID)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("agenda parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	out := ParsedEvent{Source: src, SeatsLeft: -1}

	out.UID = propValue(ve, ical.ComponentPropertyUniqueId)
	if out.UID == "" {
		return out, errors.New("missing UID")
	}
	if n, err := strconv.Atoi(propValue(ve, ical.ComponentPropertySequence)); err == nil {
		out.Seq = n
	}

	out.Summary = propValue(ve, ical.ComponentPropertySummary)
	out.Room = propValue(ve, ical.ComponentPropertyLocation)
	out.Speakers = propValue(ve, propSpeakers)
	out.MainTag = propValue(ve, propMainTag)
	out.BlockType = strings.ToLower(propValue(ve, propBlockType))
	out.LivestreamURL = propValue(ve, propLivestream)
	if n, err := strconv.Atoi(propValue(ve, propSeatsLeft)); err == nil && n >= 0 {
		out.SeatsLeft = n
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		for _, tag := range strings.Split(p.Value, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				out.Tags = append(out.Tags, tag)
			}
		}
	}
	if out.MainTag == "" && len(out.Tags) > 0 {
		out.MainTag = out.Tags[0]
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return out, err
	}
	out.Start = start
	out.End = end

	out.RawRRule = propValue(ve, ical.ComponentPropertyRrule)

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, start.Location()); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if rid := propValue(ve, propRecurrence); rid != "" {
		if t, err := parseICSTime(rid, start.Location()); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return strings.TrimSpace(prop.Value)
	}
	return ""
}

// parseICSTime parses the basic DATE / DATE-TIME forms used by EXDATE and
// RECURRENCE-ID. Floating times are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.Local
	}
	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
