package schedule

import (
	"time"

	"confsched/internal/model"
)

var testDay = time.Date(2014, time.June, 25, 0, 0, 0, 0, time.UTC)

func at(hhmm string) time.Time {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		panic(err)
	}
	return testDay.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
}

// session builds a scheduled session, the common case in these tests.
func session(start, end, title string) model.Item {
	return model.Item{
		ID:                title,
		Title:             title,
		Start:             at(start),
		End:               at(end),
		Type:              model.TypeSession,
		InSchedule:        true,
		ReservationStatus: model.ReservationUnreserved,
	}
}

func unscheduled(start, end, title string) model.Item {
	it := session(start, end, title)
	it.InSchedule = false
	return it
}

func free(start, end, title string) model.Item {
	it := session(start, end, title)
	it.Type = model.TypeFree
	it.InSchedule = false
	return it
}

func block(start, end, title string, typ model.Type) model.Item {
	it := session(start, end, title)
	it.Type = typ
	it.InSchedule = false
	return it
}

// row is a compact (title, start, end, conflict) view of an item.
type row struct {
	title    string
	start    string
	end      string
	conflict bool
}

func summarize(items []model.Item) []row {
	out := make([]row, 0, len(items))
	for _, it := range items {
		out = append(out, row{
			title:    it.Title,
			start:    it.Start.Format("15:04"),
			end:      it.End.Format("15:04"),
			conflict: it.Flags.Has(model.FlagConflictsWithPrevious),
		})
	}
	return out
}
