// Package normalize scales allocated impacts by the matching admin-unit
// denominators: resident population, yearly GDP, and surface area.
package normalize

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/cskoven/go-flood-panel/internal/csvio"
	"github.com/cskoven/go-flood-panel/internal/models"
	"github.com/cskoven/go-flood-panel/internal/registry"
)

// gdpYearMin/Max bound the gdp_YYYY columns present in the GDP table.
const (
	gdpYearMin = 1990
	gdpYearMax = 2024
)

// GPWReferenceYear maps a calendar year to the nearest census-grid
// reference year at or below it (the grids come in 5-year vintages).
func GPWReferenceYear(year int) int {
	return year - year%5
}

// Tables holds the denominator lookups, keyed by admin-1 code.
type Tables struct {
	pop  map[int]map[int]float64 // reference year -> population count
	area map[int]float64         // km2
	gdp  map[int]map[int]float64 // calendar year -> GDP, country-mean filled
}

// LoadTables reads the population/area summary and the GDP table. Admin
// units with no GDP extraction of their own are filled with their
// country's yearly mean before any division happens, so a missing
// denominator downstream always means the whole country is missing.
func LoadTables(gpwPath, gdpPath string, b *registry.Boundary) (*Tables, error) {
	t := &Tables{
		pop:  make(map[int]map[int]float64),
		area: make(map[int]float64),
		gdp:  make(map[int]map[int]float64),
	}

	gpw, err := csvio.ReadFile(gpwPath)
	if err != nil {
		return nil, fmt.Errorf("loading population summary: %w", err)
	}
	var refYears []int
	for _, name := range gpw.Header {
		var y int
		if _, err := fmt.Sscanf(name, "%d_total_pop_count", &y); err == nil {
			refYears = append(refYears, y)
		}
	}
	for _, row := range gpw.Rows {
		code, ok := gpw.Int(row, "adm1_code")
		if !ok {
			continue
		}
		t.area[code] = gpw.Float(row, "area_km2")
		byYear := make(map[int]float64, len(refYears))
		for _, y := range refYears {
			byYear[y] = gpw.Float(row, fmt.Sprintf("%d_total_pop_count", y))
		}
		t.pop[code] = byYear
	}

	gdp, err := csvio.ReadFile(gdpPath)
	if err != nil {
		return nil, fmt.Errorf("loading GDP table: %w", err)
	}
	for _, row := range gdp.Rows {
		code, ok := gdp.Int(row, "adm1_code")
		if !ok {
			continue
		}
		byYear := make(map[int]float64)
		for y := gdpYearMin; y <= gdpYearMax; y++ {
			byYear[y] = gdp.Float(row, fmt.Sprintf("gdp_%d", y))
		}
		t.gdp[code] = byYear
	}

	t.fillGDPWithCountryMeans(b)

	slog.Info("denominator tables loaded", "adm1_pop", len(t.pop), "adm1_gdp", len(t.gdp))
	return t, nil
}

// fillGDPWithCountryMeans replaces each missing per-admin-unit GDP value
// with the mean over that country's admin units for the same year.
func (t *Tables) fillGDPWithCountryMeans(b *registry.Boundary) {
	type acc struct {
		sum float64
		n   int
	}
	means := make(map[string]map[int]*acc) // country -> year -> accumulator

	countryOf := func(code int) string {
		if info, ok := b.Adm1(code); ok {
			return info.Adm0Name
		}
		return ""
	}

	for code, byYear := range t.gdp {
		country := countryOf(code)
		if country == "" {
			continue
		}
		if means[country] == nil {
			means[country] = make(map[int]*acc)
		}
		for y, v := range byYear {
			if math.IsNaN(v) {
				continue
			}
			if means[country][y] == nil {
				means[country][y] = &acc{}
			}
			means[country][y].sum += v
			means[country][y].n++
		}
	}

	filled := 0
	for code, byYear := range t.gdp {
		country := countryOf(code)
		for y, v := range byYear {
			if !math.IsNaN(v) {
				continue
			}
			if a := means[country][y]; a != nil && a.n > 0 {
				byYear[y] = a.sum / float64(a.n)
				filled++
			}
		}
	}
	if filled > 0 {
		slog.Info("filled missing admin-unit GDP with country means", "cells", filled)
	}
}

// Run computes the three normalized impact columns for every event. Any
// missing key or denominator yields NaN for that column only; no row is
// ever dropped or aborted here.
func (t *Tables) Run(events []*models.MonthlyEvent) {
	for _, ev := range events {
		ev.Normalized = models.NormalizedImpacts{
			AffectedPctPopulation: t.affectedPctPopulation(ev),
			DamagePctGDP:          t.damagePctGDP(ev),
			FloodedAreaPctAdm1:    t.floodedAreaPct(ev),
		}
	}
}

func (t *Tables) affectedPctPopulation(ev *models.MonthlyEvent) float64 {
	year, err := models.YearFromMonYr(ev.MonYr)
	if err != nil || ev.Adm1Code == 0 || ev.Impact == nil {
		return math.NaN()
	}
	affected := ev.Impact.AffectedWeighted
	if math.IsNaN(affected) {
		return math.NaN()
	}
	pop, ok := t.pop[ev.Adm1Code][GPWReferenceYear(year)]
	if !ok {
		return math.NaN()
	}
	return affected / pop * 100
}

func (t *Tables) damagePctGDP(ev *models.MonthlyEvent) float64 {
	year, err := models.YearFromMonYr(ev.MonYr)
	if err != nil || ev.Adm1Code == 0 || ev.Impact == nil {
		return math.NaN()
	}
	damage := ev.Impact.DamageWeighted
	if math.IsNaN(damage) {
		return math.NaN()
	}
	gdp, ok := t.gdp[ev.Adm1Code][year]
	if !ok {
		return math.NaN()
	}
	return damage / gdp * 100
}

func (t *Tables) floodedAreaPct(ev *models.MonthlyEvent) float64 {
	if ev.Adm1Code == 0 || ev.Metrics == nil || math.IsNaN(ev.Metrics.FloodedArea) {
		return math.NaN()
	}
	area, ok := t.area[ev.Adm1Code]
	if !ok {
		return math.NaN()
	}
	return ev.Metrics.FloodedArea / area * 100
}
