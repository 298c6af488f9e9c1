package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"confsched/internal/model"
)

const maxTitleWidth = 40

var tableHeader = []string{"", "TIME", "TYPE", "TITLE", "NOTE", "FLAGS"}

// writeTable prints entries as an aligned table. Widths are measured in
// terminal cells so CJK titles line up.
func writeTable(w io.Writer, entries []model.Entry, loc *time.Location) error {
	rows := [][]string{tableHeader}
	for _, e := range entries {
		rows = append(rows, []string{
			marker(e),
			e.Start.In(loc).Format("15:04") + "-" + e.End.In(loc).Format("15:04"),
			e.Type.String(),
			runewidth.Truncate(e.Title, maxTitleWidth, "…"),
			note(e),
			flagNames(e.Flags),
		})
	}

	widths := make([]int, len(tableHeader))
	for _, r := range rows {
		for i, cell := range r {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	for _, r := range rows {
		var b strings.Builder
		for i, cell := range r {
			if i > 0 {
				b.WriteString("  ")
			}
			if i == len(r)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(runewidth.FillRight(cell, widths[i]))
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(b.String(), " ")); err != nil {
			return err
		}
	}
	return nil
}

// marker is "*" for scheduled sessions and "!" for conflicting ones.
func marker(e model.Entry) string {
	switch {
	case e.Flags.Has(model.FlagConflictsWithPrevious):
		return "!"
	case e.IsSession() && e.InSchedule:
		return "*"
	}
	return ""
}

func note(e model.Entry) string {
	switch {
	case e.Type == model.TypeFree:
		if e.AvailableSessions > 0 {
			return fmt.Sprintf("%d sessions available", e.AvailableSessions)
		}
		return ""
	case e.IsSession() && e.ReservationStatus != model.ReservationUnreserved:
		return e.ReservationStatus.String()
	default:
		return e.Room
	}
}

func flagNames(f model.Flag) string {
	var names []string
	if f.Has(model.FlagConflictsWithPrevious) {
		names = append(names, "conflict-prev")
	}
	if f.Has(model.FlagConflictsWithNext) {
		names = append(names, "conflict-next")
	}
	if f.Has(model.FlagHasLivestream) {
		names = append(names, "live")
	}
	if f.Has(model.FlagNotRemovable) {
		names = append(names, "fixed")
	}
	return strings.Join(names, ",")
}
