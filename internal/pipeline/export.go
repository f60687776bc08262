package pipeline

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cskoven/go-flood-panel/internal/csvio"
	"github.com/cskoven/go-flood-panel/internal/flags"
	"github.com/cskoven/go-flood-panel/internal/models"
)

const dateLayout = "2006-01-02"

var disaggregatedHeader = []string{
	"id", "mon-yr-adm1-id", "mon-yr-id", "mon-yr",
	"Country", "ISO", "adm1_code", "adm1_name", "adm2_code", "adm2_name",
	"Start Date", "End Date",
	"Total Deaths", "Total Affected",
	"Total Damage ('000 US$)", "Total Damage, Adjusted ('000 US$)",
	"notes",
}

// exportDisaggregated writes the monthly sub-event table before any flood
// metric joins, one row per (id, month, adm1).
func (p *Pipeline) exportDisaggregated(events []*models.MonthlyEvent) error {
	w, err := csvio.NewWriter(filepath.Join(p.cfg.Data.OutputDir, "floods_by_mon_yr_adm1.csv"), disaggregatedHeader)
	if err != nil {
		return err
	}
	for _, ev := range events {
		row := []string{
			ev.ID, ev.Key, ev.MonYrID, ev.MonYr,
			ev.Country, ev.ISO,
			strconv.Itoa(ev.Adm1Code), ev.Adm1Name,
			formatCode(ev.Adm2Code), ev.Adm2Name,
			formatDate(ev.StartDate), formatDate(ev.EndDate),
			csvio.FormatFloat(ev.TotalDeaths), csvio.FormatFloat(ev.TotalAffected),
			csvio.FormatFloat(ev.TotalDamage), csvio.FormatFloat(ev.TotalDamageAdj),
			strings.Join(ev.Notes, "; "),
		}
		if err := w.Write(row); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

var eventLevelHeader = []string{
	"id", "mon-yr-adm1-id", "mon-yr-id", "mon-yr",
	"Country", "ISO", "adm1_code", "adm1_name",
	"Start Date", "End Date", "event_duration (days)",
	"Total Affected", "Total Damage, Adjusted ('000 US$)",
	"flooded_population", "flooded_area", "total_population", "total_area",
	"mean_flood_duration",
	"allocation_policy", "population_weight",
	"Total Affected, Population Weighted",
	"Total Damage, Adjusted ('000 US$), Population Weighted",
	"Total Affected, Population Weighted (% of Population)",
	"Total Damage, Adjusted ('000 US$), Population Weighted (% of GDP)",
	"flooded_area (% of adm1 area)",
	"recovered", "flags",
}

// exportEventLevel writes the full per-sub-event dataset, derived and flag
// columns last.
func (p *Pipeline) exportEventLevel(events []*models.MonthlyEvent) error {
	w, err := csvio.NewWriter(filepath.Join(p.cfg.Data.OutputDir, "event_level_flood_dataset.csv"), eventLevelHeader)
	if err != nil {
		return err
	}
	for _, ev := range events {
		var m models.FloodMetrics
		if ev.Metrics != nil {
			m = *ev.Metrics
		} else {
			m = emptyMetrics()
		}
		var im models.AllocatedImpact
		policy := ""
		if ev.Impact != nil {
			im = *ev.Impact
			policy = strconv.Itoa(im.Policy)
		} else {
			im = emptyImpact()
		}

		duration := ""
		if ev.DurationDays > 0 {
			duration = strconv.Itoa(ev.DurationDays)
		}
		recovered := ""
		if ev.Recovered {
			recovered = "1"
		}

		row := []string{
			ev.ID, ev.Key, ev.MonYrID, ev.MonYr,
			ev.Country, ev.ISO,
			strconv.Itoa(ev.Adm1Code), ev.Adm1Name,
			formatDate(ev.StartDate), formatDate(ev.EndDate), duration,
			csvio.FormatFloat(ev.TotalAffected), csvio.FormatFloat(ev.TotalDamageAdj),
			csvio.FormatFloat(m.FloodedPopulation), csvio.FormatFloat(m.FloodedArea),
			csvio.FormatFloat(m.TotalPopulation), csvio.FormatFloat(m.TotalArea),
			csvio.FormatFloat(m.MeanFloodDuration),
			policy, csvio.FormatFloat(im.PopulationWeight),
			csvio.FormatFloat(im.AffectedWeighted), csvio.FormatFloat(im.DamageWeighted),
			csvio.FormatFloat(ev.Normalized.AffectedPctPopulation),
			csvio.FormatFloat(ev.Normalized.DamagePctGDP),
			csvio.FormatFloat(ev.Normalized.FloodedAreaPctAdm1),
			recovered, ev.Flags.String(),
		}
		if err := w.Write(row); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

var flagSummaryHeader = []string{
	"flag", "sub_events", "sub_events_pct", "events", "events_pct",
}

func (p *Pipeline) exportFlagSummary(events []*models.MonthlyEvent) error {
	w, err := csvio.NewWriter(filepath.Join(p.cfg.Data.OutputDir, "flag_summary.csv"), flagSummaryHeader)
	if err != nil {
		return err
	}
	for _, s := range flags.Summarize(events) {
		row := []string{
			strconv.Itoa(int(s.Code)),
			strconv.Itoa(s.SubEvents),
			fmt.Sprintf("%.2f", s.SubEventPct),
			strconv.Itoa(s.Events),
			fmt.Sprintf("%.2f", s.EventPct),
		}
		if err := w.Write(row); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

var panelHeader = []string{
	"adm1_code", "mon-yr", "event_occurrance",
	"Total Affected", "Damages ('000 US$)",
	"Total Affected, Population Weighted (% of Population)",
	"Total Damage (% of GDP)",
	"ln Total Affected (% of Population)", "ln Total Damage (% of GDP)",
	"precip_std_anom",
	"adm1_name", "adm0_code", "Country", "country_yr", "country_mon",
}

func (p *Pipeline) exportPanel(cells []*models.PanelCell) error {
	w, err := csvio.NewWriter(filepath.Join(p.cfg.Data.OutputDir, "panel_dataset.csv"), panelHeader)
	if err != nil {
		return err
	}
	for _, c := range cells {
		row := []string{
			strconv.Itoa(c.Adm1Code), c.MonYr, strconv.Itoa(c.EventOccurrance),
			csvio.FormatFloat(c.TotalAffected), csvio.FormatFloat(c.Damages),
			csvio.FormatFloat(c.AffectedNormalized), csvio.FormatFloat(c.DamagesGDPStd),
			csvio.FormatFloat(c.LnAffectedNormalized), csvio.FormatFloat(c.LnDamagesGDPStd),
			csvio.FormatFloat(c.PrecipStdAnom),
			c.Adm1Name, strconv.Itoa(c.Adm0Code), c.Country, c.CountryYr, c.CountryMon,
		}
		if err := w.Write(row); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func formatCode(code int) string {
	if code == 0 {
		return ""
	}
	return strconv.Itoa(code)
}

func emptyMetrics() models.FloodMetrics {
	nan := math.NaN()
	return models.FloodMetrics{
		TotalPopulation:   nan,
		AvgPopDensity:     nan,
		TotalArea:         nan,
		TotalPixels:       nan,
		FloodedPixels:     nan,
		FloodedPopulation: nan,
		FloodedArea:       nan,
		MeanFloodDuration: nan,
		MeanCloudCover:    nan,
		MeanClearViews:    nan,
		FloodedPixelDays:  nan,
	}
}

func emptyImpact() models.AllocatedImpact {
	nan := math.NaN()
	return models.AllocatedImpact{
		PopulationWeight: nan,
		AffectedWeighted: nan,
		DamageWeighted:   nan,
	}
}
