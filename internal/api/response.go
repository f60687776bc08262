package api

import (
	"math"
	"time"

	"github.com/cskoven/go-flood-panel/internal/models"
)

// JSON cannot carry NaN, so every unreported numeric field is rendered as
// a null via a nil pointer.

type eventResponse struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	MonYrID  string `json:"mon_yr_id"`
	MonYr    string `json:"mon_yr,omitempty"`
	Country  string `json:"country"`
	ISO      string `json:"iso"`
	Adm1Code int    `json:"adm1_code"`
	Adm1Name string `json:"adm1_name"`

	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
	DurationDays int    `json:"event_duration_days,omitempty"`

	TotalAffected  *float64 `json:"total_affected"`
	TotalDamageAdj *float64 `json:"total_damage_adjusted"`

	FloodedPopulation *float64 `json:"flooded_population"`
	FloodedArea       *float64 `json:"flooded_area"`
	ExtractionError   string   `json:"extraction_error,omitempty"`

	AllocationPolicy int      `json:"allocation_policy,omitempty"`
	PopulationWeight *float64 `json:"population_weight"`
	AffectedWeighted *float64 `json:"total_affected_weighted"`
	DamageWeighted   *float64 `json:"total_damage_weighted"`

	AffectedPctPopulation *float64 `json:"affected_pct_population"`
	DamagePctGDP          *float64 `json:"damage_pct_gdp"`
	FloodedAreaPctAdm1    *float64 `json:"flooded_area_pct_adm1"`

	Recovered bool   `json:"recovered,omitempty"`
	Flags     string `json:"flags,omitempty"`
}

func toEventResponse(ev *models.MonthlyEvent) eventResponse {
	resp := eventResponse{
		ID:           ev.ID,
		Key:          ev.Key,
		MonYrID:      ev.MonYrID,
		MonYr:        ev.MonYr,
		Country:      ev.Country,
		ISO:          ev.ISO,
		Adm1Code:     ev.Adm1Code,
		Adm1Name:     ev.Adm1Name,
		StartDate:    dateString(ev.StartDate),
		EndDate:      dateString(ev.EndDate),
		DurationDays: ev.DurationDays,

		TotalAffected:  fptr(ev.TotalAffected),
		TotalDamageAdj: fptr(ev.TotalDamageAdj),

		AffectedPctPopulation: fptr(ev.Normalized.AffectedPctPopulation),
		DamagePctGDP:          fptr(ev.Normalized.DamagePctGDP),
		FloodedAreaPctAdm1:    fptr(ev.Normalized.FloodedAreaPctAdm1),

		Recovered: ev.Recovered,
		Flags:     ev.Flags.String(),
	}
	if ev.Metrics != nil {
		resp.FloodedPopulation = fptr(ev.Metrics.FloodedPopulation)
		resp.FloodedArea = fptr(ev.Metrics.FloodedArea)
		resp.ExtractionError = ev.Metrics.Error
	}
	if ev.Impact != nil {
		resp.AllocationPolicy = ev.Impact.Policy
		resp.PopulationWeight = fptr(ev.Impact.PopulationWeight)
		resp.AffectedWeighted = fptr(ev.Impact.AffectedWeighted)
		resp.DamageWeighted = fptr(ev.Impact.DamageWeighted)
	}
	return resp
}

type panelResponse struct {
	Adm1Code        int    `json:"adm1_code"`
	Adm1Name        string `json:"adm1_name"`
	Country         string `json:"country"`
	MonYr           string `json:"mon_yr"`
	EventOccurrance int    `json:"event_occurrance"`

	TotalAffected      *float64 `json:"total_affected"`
	Damages            *float64 `json:"damages"`
	AffectedNormalized *float64 `json:"affected_normalized"`
	DamagesGDPStd      *float64 `json:"damages_pct_gdp"`

	LnAffectedNormalized *float64 `json:"ln_affected_normalized"`
	LnDamagesGDPStd      *float64 `json:"ln_damages_pct_gdp"`

	PrecipStdAnom *float64 `json:"precip_std_anom"`

	CountryYr  string `json:"country_yr"`
	CountryMon string `json:"country_mon"`
}

func toPanelResponse(c *models.PanelCell) panelResponse {
	return panelResponse{
		Adm1Code:        c.Adm1Code,
		Adm1Name:        c.Adm1Name,
		Country:         c.Country,
		MonYr:           c.MonYr,
		EventOccurrance: c.EventOccurrance,

		TotalAffected:      fptr(c.TotalAffected),
		Damages:            fptr(c.Damages),
		AffectedNormalized: fptr(c.AffectedNormalized),
		DamagesGDPStd:      fptr(c.DamagesGDPStd),

		LnAffectedNormalized: fptr(c.LnAffectedNormalized),
		LnDamagesGDPStd:      fptr(c.LnDamagesGDPStd),

		PrecipStdAnom: fptr(c.PrecipStdAnom),

		CountryYr:  c.CountryYr,
		CountryMon: c.CountryMon,
	}
}

type flagStatResponse struct {
	Flag        int     `json:"flag"`
	SubEvents   int     `json:"sub_events"`
	SubEventPct float64 `json:"sub_events_pct"`
	Events      int     `json:"events"`
	EventPct    float64 `json:"events_pct"`
}

func fptr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func dateString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
