// Package flags compiles every processing note, extraction error, and
// structural condition accumulated across the pipeline into the canonical
// per-row flag set.
//
// The rule table below is a closed, order-independent set of predicate to
// code mappings: each rule is evaluated against every row from its source
// conditions, never from previously assigned flags, so re-running the
// stage on flagged output reproduces it exactly.
package flags

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/cskoven/go-flood-panel/internal/expand"
	"github.com/cskoven/go-flood-panel/internal/models"
)

// Assigner holds the stage's only parameter: the first day of flood-mask
// coverage, before which no mask can exist (flag 3).
type Assigner struct {
	SatelliteEraStart time.Time
}

type rule struct {
	code  models.FlagCode
	match func(a *Assigner, ev *models.MonthlyEvent) bool
}

var rules = []rule{
	{models.FlagStartDayInferred, func(_ *Assigner, ev *models.MonthlyEvent) bool {
		return hasNote(ev, expand.NoteStartDayInferred)
	}},
	{models.FlagEndDayInferred, func(_ *Assigner, ev *models.MonthlyEvent) bool {
		return hasNote(ev, expand.NoteEndDayInferred)
	}},
	{models.FlagPreSatelliteEra, func(a *Assigner, ev *models.MonthlyEvent) bool {
		return preSatellite(a, ev)
	}},
	{models.FlagMaskFileMissing, func(a *Assigner, ev *models.MonthlyEvent) bool {
		return hasErrorParts(ev, "RasterioIOError", ".tif: No such file or directory") && !preSatellite(a, ev)
	}},
	{models.FlagPopGridMissing, func(_ *Assigner, ev *models.MonthlyEvent) bool {
		return hasErrorParts(ev, "GPW_by_adm1/", "FileNotFound")
	}},
	{models.FlagGridMismatch, func(_ *Assigner, ev *models.MonthlyEvent) bool {
		return hasErrorParts(ev, "ValueError", "Coordinate", "has mismatched shapes")
	}},
	{models.FlagAdminManual, numericNote("7")},
	{models.FlagAdminCountryLevel, numericNote("8")},
	{models.FlagMissingDates, func(_ *Assigner, ev *models.MonthlyEvent) bool {
		return ev.Recovered && (ev.StartDate.IsZero() || ev.EndDate.IsZero())
	}},
	{models.FlagMissingAdmin, func(_ *Assigner, ev *models.MonthlyEvent) bool {
		return ev.Recovered && ev.AdminUnitsRaw == ""
	}},
	{models.FlagMissingOther, func(_ *Assigner, ev *models.MonthlyEvent) bool {
		return ev.Recovered &&
			!(ev.StartDate.IsZero() || ev.EndDate.IsZero()) &&
			ev.AdminUnitsRaw != ""
	}},
	{models.FlagZeroFloodedArea, func(_ *Assigner, ev *models.MonthlyEvent) bool {
		return ev.Metrics != nil && ev.Metrics.FloodedArea == 0
	}},
	{models.FlagEqualSplit, numericNote("13")},
	{models.FlagPopWeighted, numericNote("14")},
	{models.FlagMixedSplit, numericNote("15")},
}

func hasNote(ev *models.MonthlyEvent, substr string) bool {
	for _, n := range ev.Notes {
		if strings.Contains(n, substr) {
			return true
		}
	}
	return false
}

// numericNote matches a bare flag code carried as its own note segment,
// the form upstream stages and pre-pipeline tooling use.
func numericNote(code string) func(*Assigner, *models.MonthlyEvent) bool {
	return func(_ *Assigner, ev *models.MonthlyEvent) bool {
		return slices.Contains(ev.Notes, code)
	}
}

func hasErrorParts(ev *models.MonthlyEvent, parts ...string) bool {
	if ev.Metrics == nil || ev.Metrics.Error == "" {
		return false
	}
	for _, p := range parts {
		if !strings.Contains(ev.Metrics.Error, p) {
			return false
		}
	}
	return true
}

func preSatellite(a *Assigner, ev *models.MonthlyEvent) bool {
	return !ev.StartDate.IsZero() && ev.StartDate.Before(a.SatelliteEraStart)
}

// Apply recomputes every row's flag set from scratch. Safe to run any
// number of times.
func (a *Assigner) Apply(events []*models.MonthlyEvent) {
	for _, ev := range events {
		var set models.FlagSet
		for _, r := range rules {
			if r.match(a, ev) {
				set = set.Add(r.code)
			}
		}
		ev.Flags = set
	}
}

// Recover finds registry ids entirely absent from the processed events and
// rebuilds them as single recovered rows so the final table accounts for
// every record. Recovered rows get resolved dates (and the matching
// inference notes) but no month split, no metrics, and no allocation.
func Recover(orig []*models.DisasterRecord, events []*models.MonthlyEvent) []*models.MonthlyEvent {
	present := make(map[string]bool, len(events))
	for _, ev := range events {
		present[ev.ID] = true
	}

	var out []*models.MonthlyEvent
	for _, rec := range orig {
		if present[rec.ID] {
			continue
		}
		start, end, notes := expand.ResolveDates(rec)
		me := &models.MonthlyEvent{
			AdminUnitEvent: models.AdminUnitEvent{
				DisasterRecord: *rec,
				StartDate:      start,
				EndDate:        end,
			},
			Recovered:  true,
			Normalized: models.NewNormalizedImpacts(),
		}
		me.Notes = append(slices.Clone(rec.Notes), notes...)
		out = append(out, me)
	}
	if len(out) > 0 {
		slog.Info("recovered records missing from processed table", "count", len(out))
	}
	return out
}

// Assign runs the complete stage: recover missing registry records, union
// them with the processed events, and compute every row's flag set.
func (a *Assigner) Assign(orig []*models.DisasterRecord, events []*models.MonthlyEvent) []*models.MonthlyEvent {
	combined := append(slices.Clone(events), Recover(orig, events)...)
	a.Apply(combined)
	return combined
}

// Stat summarizes one flag's footprint over the final table.
type Stat struct {
	Code models.FlagCode

	SubEvents   int
	SubEventPct float64
	Events      int
	EventPct    float64
}

// Summarize counts, per flag, the unique sub-event keys and unique
// disaster ids carrying it, with percentages of the table totals.
func Summarize(events []*models.MonthlyEvent) []Stat {
	totalKeys := make(map[string]bool)
	totalIDs := make(map[string]bool)
	keysByCode := make(map[models.FlagCode]map[string]bool)
	idsByCode := make(map[models.FlagCode]map[string]bool)

	for _, ev := range events {
		totalKeys[ev.Key] = true
		totalIDs[ev.ID] = true
		for _, c := range ev.Flags {
			if keysByCode[c] == nil {
				keysByCode[c] = make(map[string]bool)
				idsByCode[c] = make(map[string]bool)
			}
			keysByCode[c][ev.Key] = true
			idsByCode[c][ev.ID] = true
		}
	}

	codes := make([]models.FlagCode, 0, len(keysByCode))
	for c := range keysByCode {
		codes = append(codes, c)
	}
	slices.Sort(codes)

	stats := make([]Stat, 0, len(codes))
	for _, c := range codes {
		s := Stat{
			Code:      c,
			SubEvents: len(keysByCode[c]),
			Events:    len(idsByCode[c]),
		}
		if len(totalKeys) > 0 {
			s.SubEventPct = 100 * float64(s.SubEvents) / float64(len(totalKeys))
		}
		if len(totalIDs) > 0 {
			s.EventPct = 100 * float64(s.Events) / float64(len(totalIDs))
		}
		stats = append(stats, s)
	}
	return stats
}
