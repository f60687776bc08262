// Package pipeline wires the processing stages into one batch run: from
// raw registry CSV to the event-level dataset, the balanced panel, the
// stage CSV exports, and the sqlite store.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cskoven/go-flood-panel/internal/allocate"
	"github.com/cskoven/go-flood-panel/internal/climate"
	"github.com/cskoven/go-flood-panel/internal/config"
	"github.com/cskoven/go-flood-panel/internal/expand"
	"github.com/cskoven/go-flood-panel/internal/flags"
	"github.com/cskoven/go-flood-panel/internal/floodmask"
	"github.com/cskoven/go-flood-panel/internal/logging"
	"github.com/cskoven/go-flood-panel/internal/metrics"
	"github.com/cskoven/go-flood-panel/internal/models"
	"github.com/cskoven/go-flood-panel/internal/normalize"
	"github.com/cskoven/go-flood-panel/internal/panel"
	"github.com/cskoven/go-flood-panel/internal/registry"
	"github.com/cskoven/go-flood-panel/internal/repository"
)

type Pipeline struct {
	cfg       *config.Config
	collector *metrics.Collector
	store     *repository.SQLiteDB
}

func New(cfg *config.Config, collector *metrics.Collector, store *repository.SQLiteDB) *Pipeline {
	return &Pipeline{cfg: cfg, collector: collector, store: store}
}

// checkInputs fails fast on any missing input before a single row is
// processed.
func (p *Pipeline) checkInputs() error {
	files := []string{
		p.cfg.Data.RegistryCSV,
		p.cfg.Data.Adm1CSV,
		p.cfg.Data.Adm2CSV,
		p.cfg.Data.GPWSummaryCSV,
		p.cfg.Data.GDPCSV,
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("input file missing: %s", f)
		}
	}
	if info, err := os.Stat(p.cfg.Data.MetricsDir); err != nil || !info.IsDir() {
		return fmt.Errorf("metrics directory missing: %s", p.cfg.Data.MetricsDir)
	}
	return os.MkdirAll(p.cfg.Data.OutputDir, 0o755)
}

// Run executes the full batch. Results go to the output directory as CSVs
// and into the sqlite store for serving.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.checkInputs(); err != nil {
		return err
	}

	boundary, err := registry.LoadBoundary(p.cfg.Data.Adm1CSV, p.cfg.Data.Adm2CSV)
	if err != nil {
		return err
	}

	done := p.stage("registry")
	records, err := registry.Load(p.cfg.Data.RegistryCSV)
	if err != nil {
		return err
	}
	records = registry.Preprocess(records, p.cfg.Study.CPIRatio2024)
	done(len(records))

	done = p.stage("expand")
	adminEvents := expand.AdminUnits(records, boundary)
	expand.EventDates(adminEvents)
	monthly := expand.Monthly(adminEvents)
	done(len(monthly))

	if err := p.exportDisaggregated(monthly); err != nil {
		return err
	}

	done = p.stage("metrics")
	floodMetrics, err := floodmask.LoadDir(p.cfg.Data.MetricsDir)
	if err != nil {
		return err
	}
	for _, m := range floodMetrics {
		if m.Error != "" {
			p.collector.ExtractionErrors.Inc()
		}
	}
	if err := floodmask.WriteCombined(filepath.Join(p.cfg.Data.OutputDir, "event_metrics.csv"), floodMetrics); err != nil {
		return err
	}
	processed := floodmask.Attach(monthly, floodMetrics)
	p.collector.RecordsDroppedTotal.WithLabelValues("no_metrics").Add(float64(len(monthly) - len(processed)))
	done(len(processed))

	done = p.stage("allocate")
	allocate.Run(processed)
	for _, ev := range processed {
		if ev.Impact != nil {
			p.collector.AllocationPolicy.WithLabelValues(strconv.Itoa(ev.Impact.Policy)).Inc()
		}
	}
	done(len(processed))

	done = p.stage("flags")
	assigner := &flags.Assigner{SatelliteEraStart: p.cfg.Study.SatelliteEraStart}
	flagged := assigner.Assign(records, processed)
	for _, ev := range flagged {
		for _, c := range ev.Flags {
			p.collector.FlagsAssignedTotal.WithLabelValues(strconv.Itoa(int(c))).Inc()
		}
	}
	done(len(flagged))

	done = p.stage("normalize")
	tables, err := normalize.LoadTables(p.cfg.Data.GPWSummaryCSV, p.cfg.Data.GDPCSV, boundary)
	if err != nil {
		return err
	}
	tables.Run(flagged)
	addDurations(flagged)
	done(len(flagged))

	if err := p.exportEventLevel(flagged); err != nil {
		return err
	}
	if err := p.exportFlagSummary(flagged); err != nil {
		return err
	}
	if err := p.store.ReplaceEvents(ctx, flagged); err != nil {
		return err
	}

	done = p.stage("panel")
	anomalies := map[int]map[string]float64{}
	if _, statErr := os.Stat(p.cfg.Data.PrecipNetCDF); statErr == nil {
		anomalies, err = climate.Anomalies(p.cfg.Data.PrecipNetCDF)
		if err != nil {
			return err
		}
	}
	builder := &panel.Builder{
		Boundary:  boundary,
		Anomalies: anomalies,
		StartYear: p.cfg.Study.StartYear,
		EndYear:   p.cfg.Study.EndYear,
	}
	cells := builder.Build(flagged)
	done(len(cells))

	if err := p.exportPanel(cells); err != nil {
		return err
	}
	return p.store.ReplacePanel(ctx, cells)
}

// stage pairs the log timer with the prometheus stage instruments.
func (p *Pipeline) stage(name string) func(rows int) {
	start := time.Now()
	done := logging.Stage(name)
	return func(rows int) {
		done(rows)
		p.collector.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		p.collector.StageRowsTotal.WithLabelValues(name).Add(float64(rows))
	}
}

// addDurations fills the event-duration column, inclusive of both ends.
func addDurations(events []*models.MonthlyEvent) {
	for _, ev := range events {
		if ev.StartDate.IsZero() || ev.EndDate.IsZero() {
			continue
		}
		ev.DurationDays = int(ev.EndDate.Sub(ev.StartDate).Hours()/24) + 1
	}
}
