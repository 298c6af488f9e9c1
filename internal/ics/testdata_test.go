package ics

import (
	"strings"
	"time"
)

func ics(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//confsched//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR", "")
	return []byte(strings.Join(all, "\r\n"))
}

// agendaFixture holds one day-two session, a daily lunch with one
// exception and one moved instance, and an event without UID.
var agendaFixture = ics(
	"BEGIN:VEVENT",
	"UID:android-keynote",
	"SUMMARY:What's new in Android",
	"DTSTART:20140625T090000Z",
	"DTEND:20140625T100000Z",
	"LOCATION:Room 5",
	"X-SPEAKERS:Ada Lovelace",
	"CATEGORIES:TYPE_SESSIONS,TOPIC_ANDROID",
	"X-LIVESTREAM-URL:https://example.com/live/1",
	"X-SEATS-LEFT:12",
	"END:VEVENT",

	"BEGIN:VEVENT",
	"UID:lunch",
	"SUMMARY:Lunch",
	"DTSTART:20140625T120000Z",
	"DTEND:20140625T130000Z",
	"X-BLOCK-TYPE:Meal",
	"RRULE:FREQ=DAILY;COUNT=3",
	"EXDATE:20140626T120000Z",
	"END:VEVENT",

	"BEGIN:VEVENT",
	"UID:lunch",
	"SUMMARY:Late lunch",
	"RECURRENCE-ID:20140627T120000Z",
	"DTSTART:20140627T123000Z",
	"DTEND:20140627T133000Z",
	"X-BLOCK-TYPE:meal",
	"END:VEVENT",

	"BEGIN:VEVENT",
	"SUMMARY:No UID",
	"DTSTART:20140625T150000Z",
	"DTEND:20140625T160000Z",
	"END:VEVENT",
)

func utc(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}
