// Package panel assembles the balanced (admin1 x month) regression
// dataset from the disaggregated events and the climate covariate.
package panel

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/cskoven/go-flood-panel/internal/models"
	"github.com/cskoven/go-flood-panel/internal/registry"
)

// Infill percentiles. Events with missing impact values sit at the 5th
// percentile of the observed distribution; cells with no event at all sit
// lower, at the 2nd percentile, so non-occurrence reads as a smaller but
// nonzero residual impact and the later log transform stays finite.
const (
	eventFillQuantile   = 0.05
	noEventFillQuantile = 0.02
)

// Builder carries the panel stage inputs.
type Builder struct {
	Boundary  *registry.Boundary
	Anomalies map[int]map[string]float64 // adm1 -> mon-yr -> precip std anomaly
	StartYear int
	EndYear   int
}

// Build produces one cell per (admin-1, month) over the study window,
// restricted to admin units with at least one real flood event. Rows
// without a mon-yr or carrying the recovery flags never enter the panel.
func (b *Builder) Build(events []*models.MonthlyEvent) []*models.PanelCell {
	var usable []*models.MonthlyEvent
	for _, ev := range events {
		if ev.MonYr == "" {
			continue
		}
		if ev.Flags.ContainsAny(models.FlagMissingDates, models.FlagMissingAdmin, models.FlagMissingOther) {
			continue
		}
		usable = append(usable, ev)
	}

	affectedFill := round5(quantileOf(usable, eventFillQuantile, affectedNorm))
	damagesFill := round5(quantileOf(usable, eventFillQuantile, damagesStd))
	affectedNoEvent := round5(quantileOf(usable, noEventFillQuantile, affectedNorm))
	damagesNoEvent := round5(quantileOf(usable, noEventFillQuantile, damagesStd))
	slog.Info("panel infill constants",
		"affected_p05", affectedFill, "damages_p05", damagesFill,
		"affected_p02", affectedNoEvent, "damages_p02", damagesNoEvent)

	// Aggregate events sharing a cell. Missing normalized values take the
	// event-level fill before summation.
	type cellAgg struct {
		affected     float64
		damages      float64
		affectedNorm float64
		damagesStd   float64
	}
	agg := make(map[string]*cellAgg)
	adm1Set := make(map[int]bool)
	cellKey := func(adm1 int, monYr string) string { return fmt.Sprintf("%d|%s", adm1, monYr) }

	for _, ev := range usable {
		adm1Set[ev.Adm1Code] = true
		k := cellKey(ev.Adm1Code, ev.MonYr)
		a := agg[k]
		if a == nil {
			a = &cellAgg{}
			agg[k] = a
		}
		a.affectedNorm += fillNaN(affectedNorm(ev), affectedFill)
		a.damagesStd += fillNaN(damagesStd(ev), damagesFill)
		if ev.Impact != nil {
			a.affected += zeroNaN(ev.Impact.AffectedWeighted)
			a.damages += zeroNaN(ev.Impact.DamageWeighted)
		}
	}

	adm1Codes := make([]int, 0, len(adm1Set))
	for code := range adm1Set {
		adm1Codes = append(adm1Codes, code)
	}
	sort.Ints(adm1Codes)

	var cells []*models.PanelCell
	for _, code := range adm1Codes {
		info, _ := b.Boundary.Adm1(code)
		for year := b.StartYear; year <= b.EndYear; year++ {
			for month := time.January; month <= time.December; month++ {
				monYr := models.MonYrKey(year, month)
				cell := &models.PanelCell{
					Adm1Code:      code,
					MonYr:         monYr,
					Adm1Name:      info.Name,
					Adm0Code:      info.Adm0Code,
					Country:       info.Adm0Name,
					CountryYr:     fmt.Sprintf("%s_%04d", info.Adm0Name, year),
					CountryMon:    fmt.Sprintf("%s_%02d", info.Adm0Name, int(month)),
					PrecipStdAnom: b.anomaly(code, monYr),
				}

				if a, ok := agg[cellKey(code, monYr)]; ok {
					cell.EventOccurrance = 1
					cell.TotalAffected = a.affected
					cell.Damages = a.damages
					cell.AffectedNormalized = a.affectedNorm
					cell.DamagesGDPStd = a.damagesStd
				} else {
					cell.AffectedNormalized = affectedNoEvent
					cell.DamagesGDPStd = damagesNoEvent
				}

				// Log transform runs strictly after infill so empty cells
				// never produce log(0).
				cell.LnAffectedNormalized = math.Log(cell.AffectedNormalized)
				cell.LnDamagesGDPStd = math.Log(cell.DamagesGDPStd)

				cells = append(cells, cell)
			}
		}
	}

	slog.Info("panel assembled", "admin_units", len(adm1Codes), "cells", len(cells))
	return cells
}

func (b *Builder) anomaly(adm1 int, monYr string) float64 {
	if byMonth, ok := b.Anomalies[adm1]; ok {
		if v, ok := byMonth[monYr]; ok {
			return v
		}
	}
	return math.NaN()
}

func affectedNorm(ev *models.MonthlyEvent) float64 { return ev.Normalized.AffectedPctPopulation }
func damagesStd(ev *models.MonthlyEvent) float64   { return ev.Normalized.DamagePctGDP }

func fillNaN(v, fill float64) float64 {
	if math.IsNaN(v) {
		return fill
	}
	return v
}

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func round5(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Round(v*1e5) / 1e5
}

func quantileOf(events []*models.MonthlyEvent, q float64, get func(*models.MonthlyEvent) float64) float64 {
	var vals []float64
	for _, ev := range events {
		if v := get(ev); !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	return Quantile(vals, q)
}

// Quantile computes the q-th quantile with linear interpolation between
// order statistics, skipping nothing (callers drop NaNs first). An empty
// slice yields NaN.
func Quantile(vals []float64, q float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	h := q * float64(len(sorted)-1)
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
