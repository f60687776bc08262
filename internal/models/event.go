package models

import (
	"fmt"
	"math"
	"time"
)

// DisasterRecord is one row of the raw registry. It is the source of truth
// for an event and is never mutated after ingestion; every later stage works
// on expanded copies.
type DisasterRecord struct {
	ID              string
	Country         string
	ISO             string
	Subregion       string
	DisasterType    string
	DisasterSubtype string
	EventName       string

	StartYear  int
	StartMonth int
	StartDay   *int // nil when the registry left the day blank
	EndYear    int
	EndMonth   int
	EndDay     *int

	TotalDeaths    float64 // NaN when unreported
	TotalAffected  float64
	TotalDamage    float64 // '000 US$, nominal
	TotalDamageAdj float64 // '000 US$, CPI adjusted
	CPI            float64

	// AdminUnitsRaw is the registry's string-encoded list of admin-unit
	// matches, e.g. [{'adm1_code': 825, 'adm1_name': 'Ontario'}].
	AdminUnitsRaw string

	// Notes carries upstream processing annotations. Purely numeric notes
	// ("7", "8") are flag codes assigned before this pipeline runs.
	Notes []string
}

// AdminUnit is one resolved entry of a record's admin-unit list. Codes are
// GAUL integer keys; zero means the level is absent.
type AdminUnit struct {
	Adm1Code int
	Adm1Name string
	Adm2Code int
	Adm2Name string
}

// AdminUnitEvent is one (DisasterRecord, admin-1 unit) pair with resolved
// calendar dates. Zero dates mean the record's date parts could not be
// resolved; such rows survive with an empty mon-yr downstream.
type AdminUnitEvent struct {
	DisasterRecord

	Adm1Code int
	Adm1Name string
	Adm2Code int
	Adm2Name string

	StartDate time.Time
	EndDate   time.Time
}

// MonthlyEvent is the finest-grained unit of analysis: one admin-1 unit, one
// calendar month, one source disaster id.
type MonthlyEvent struct {
	AdminUnitEvent

	MonYr   string // MM-YYYY, empty when dates are unresolved
	MonYrID string // MM-<id>
	Key     string // mon-yr-adm1-id: MM-<id>-<adm1_code>

	Metrics *FloodMetrics
	Impact  *AllocatedImpact

	Normalized NormalizedImpacts

	DurationDays int

	// Recovered marks a registry record that vanished from the processed
	// table upstream and was re-added by the flag stage's recovery branch.
	Recovered bool

	Flags FlagSet
}

// FloodMetrics is the satellite-derived measurement for one MonthlyEvent.
// All numeric fields are NaN when extraction failed; Error then carries the
// collaborator's "ClassName: message" string. Extraction is never retried.
type FloodMetrics struct {
	Key      string
	Adm1Code int

	TotalPopulation   float64
	AvgPopDensity     float64
	TotalArea         float64
	TotalPixels       float64
	FloodedPixels     float64
	FloodedPopulation float64
	FloodedArea       float64
	MeanFloodDuration float64
	MeanCloudCover    float64
	MeanClearViews    float64
	FloodedPixelDays  float64

	Error string
}

// AllocatedImpact is one MonthlyEvent's share of its parent record's
// aggregate impact. PopulationWeight is NaN under the mixed policy, where
// the true per-row weight differs between the two impact variables.
type AllocatedImpact struct {
	Policy int // 1 population weighted, 2 equal split, 3 mixed 95/5

	PopulationWeight float64
	AffectedWeighted float64
	DamageWeighted   float64
}

// NormalizedImpacts holds the denominator-scaled impact columns, all
// expressed as percentages. NaN marks an unresolvable denominator.
type NormalizedImpacts struct {
	AffectedPctPopulation float64
	DamagePctGDP          float64
	FloodedAreaPctAdm1    float64
}

func NewNormalizedImpacts() NormalizedImpacts {
	nan := math.NaN()
	return NormalizedImpacts{
		AffectedPctPopulation: nan,
		DamagePctGDP:          nan,
		FloodedAreaPctAdm1:    nan,
	}
}

// PanelCell is one row of the balanced (admin1 x month) regression panel.
type PanelCell struct {
	Adm1Code int
	MonYr    string

	EventOccurrance int

	TotalAffected      float64 // absolute, zero-filled for non-event cells
	Damages            float64
	AffectedNormalized float64
	DamagesGDPStd      float64

	LnAffectedNormalized float64
	LnDamagesGDPStd      float64

	PrecipStdAnom float64 // NaN where no climate coverage

	Adm1Name   string
	Adm0Code   int
	Country    string
	CountryYr  string
	CountryMon string
}

// MonYrKey formats a calendar month the way every composite id in the
// pipeline expects it: MM-YYYY.
func MonYrKey(year int, month time.Month) string {
	return fmt.Sprintf("%02d-%04d", int(month), year)
}

// YearFromMonYr extracts the four-digit year from an MM-YYYY key.
func YearFromMonYr(monYr string) (int, error) {
	if len(monYr) != 7 || monYr[2] != '-' {
		return 0, fmt.Errorf("malformed mon-yr %q", monYr)
	}
	var y int
	if _, err := fmt.Sscanf(monYr[3:], "%d", &y); err != nil {
		return 0, fmt.Errorf("malformed mon-yr %q: %w", monYr, err)
	}
	return y, nil
}
