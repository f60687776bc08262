// Package expand turns registry records into disaggregated events: one row
// per matched admin-1 unit, then one row per calendar month overlapped.
package expand

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/cskoven/go-flood-panel/internal/models"
	"github.com/cskoven/go-flood-panel/internal/registry"
)

// Processing notes appended to rows when a date part is inferred. The flag
// stage matches on these exact strings.
const (
	NoteStartDayInferred = "start day originally missing"
	NoteEndDayInferred   = "end day originally missing"
)

// AdminUnits expands each record into one event per resolved admin-1 unit.
// Records whose admin-unit list fails to parse are dropped with a warning;
// units that resolve to no admin-1 code are dropped silently (the recovery
// branch of the flag stage re-surfaces the affected ids). Duplicate
// (id, admin-1) pairs keep the first occurrence.
func AdminUnits(records []*models.DisasterRecord, b *registry.Boundary) []*models.AdminUnitEvent {
	var out []*models.AdminUnitEvent
	seen := make(map[string]bool)

	for _, rec := range records {
		units, err := registry.ResolveUnits(rec, b)
		if err != nil {
			slog.Warn("dropping record with unparsable admin units", "id", rec.ID, "error", err)
			continue
		}
		for _, u := range units {
			if u.Adm1Code == 0 {
				continue
			}
			key := fmt.Sprintf("%s|%d", rec.ID, u.Adm1Code)
			if seen[key] {
				continue
			}
			seen[key] = true

			ev := &models.AdminUnitEvent{
				DisasterRecord: *rec,
				Adm1Code:       u.Adm1Code,
				Adm1Name:       u.Adm1Name,
				Adm2Code:       u.Adm2Code,
				Adm2Name:       u.Adm2Name,
			}
			ev.Notes = slices.Clone(rec.Notes)
			if ev.Adm1Name == "" {
				if info, ok := b.Adm1(u.Adm1Code); ok {
					ev.Adm1Name = info.Name
				}
			}
			out = append(out, ev)
		}
	}
	return out
}

// EventDates resolves Start/End Date on every event, inferring missing day
// fields. Inference happens before month splitting so every monthly row of
// an event inherits the note.
func EventDates(events []*models.AdminUnitEvent) {
	for _, ev := range events {
		start, end, notes := ResolveDates(&ev.DisasterRecord)
		ev.StartDate = start
		ev.EndDate = end
		ev.Notes = append(ev.Notes, notes...)
	}
}

// ResolveDates builds calendar dates from a record's date parts. A missing
// start day defaults to 1; a missing end day defaults to the last day of
// the end month; each substitution is reported as a note. A date whose
// parts do not form a real calendar day resolves to the zero time.
func ResolveDates(rec *models.DisasterRecord) (start, end time.Time, notes []string) {
	startDay := 1
	if rec.StartDay != nil {
		startDay = *rec.StartDay
	} else {
		notes = append(notes, NoteStartDayInferred)
	}
	start = makeDate(rec.StartYear, rec.StartMonth, startDay)

	endDay := lastDayOfMonth(rec.EndYear, rec.EndMonth)
	if rec.EndDay != nil {
		endDay = *rec.EndDay
	} else if endDay > 0 {
		notes = append(notes, NoteEndDayInferred)
	}
	end = makeDate(rec.EndYear, rec.EndMonth, endDay)

	return start, end, notes
}

func makeDate(year, month, day int) time.Time {
	if year < 1 || month < 1 || month > 12 || day < 1 || day > lastDayOfMonth(year, month) {
		return time.Time{}
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func lastDayOfMonth(year, month int) int {
	if year < 1 || month < 1 || month > 12 {
		return 0
	}
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ByMonth splits one admin-unit event into one row per calendar month
// overlapped by [StartDate, EndDate], each clamped to its month. The
// resulting intervals tile the original interval exactly. Events with an
// unresolved start or end date produce a single row with empty month keys;
// those rows are excluded from the panel downstream.
func ByMonth(ev *models.AdminUnitEvent) []*models.MonthlyEvent {
	if ev.StartDate.IsZero() || ev.EndDate.IsZero() {
		me := &models.MonthlyEvent{AdminUnitEvent: *ev}
		me.Notes = slices.Clone(ev.Notes)
		me.Normalized = models.NewNormalizedImpacts()
		return []*models.MonthlyEvent{me}
	}

	var out []*models.MonthlyEvent
	cursor := time.Date(ev.StartDate.Year(), ev.StartDate.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(ev.EndDate) {
		monthEnd := cursor.AddDate(0, 1, -1)

		me := &models.MonthlyEvent{AdminUnitEvent: *ev}
		me.Notes = slices.Clone(ev.Notes)
		me.Normalized = models.NewNormalizedImpacts()
		me.StartDate = maxTime(ev.StartDate, cursor)
		me.EndDate = minTime(ev.EndDate, monthEnd)
		me.MonYr = models.MonYrKey(cursor.Year(), cursor.Month())
		me.MonYrID = fmt.Sprintf("%02d-%s", int(cursor.Month()), ev.ID)
		me.Key = fmt.Sprintf("%s-%d", me.MonYrID, ev.Adm1Code)

		out = append(out, me)
		cursor = cursor.AddDate(0, 1, 0)
	}
	return out
}

// Monthly splits every event and returns the concatenated rows.
func Monthly(events []*models.AdminUnitEvent) []*models.MonthlyEvent {
	var out []*models.MonthlyEvent
	for _, ev := range events {
		out = append(out, ByMonth(ev)...)
	}
	return out
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
