// Package floodmask is the boundary to the external satellite flood
// detection collaborator: it submits extraction jobs against a capacity
// limited remote task queue and reads back the per-event metric files the
// extractor produces. The detection algorithm itself is not part of this
// repository.
package floodmask

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cskoven/go-flood-panel/internal/csvio"
	"github.com/cskoven/go-flood-panel/internal/models"
)

// Error-class fragments the flag stage matches against metrics_error.
// These come from the extractor's "ClassName: message" convention and are
// part of the flag-code contract.
const (
	ErrClassRasterMissing = "RasterioIOError"
	ErrClassFileNotFound  = "FileNotFoundError"
	ErrClassValue         = "ValueError"
)

// MetricsHeader is the column schema of a per-event metrics CSV.
var MetricsHeader = []string{
	"mon-yr-adm1-id",
	"adm1_code",
	"total_population",
	"average_population_density",
	"total_area",
	"total_num_pixels",
	"num_flooded_pixels",
	"flooded_population",
	"flooded_area",
	"mean_duration_flooded_pixels",
	"mean_percent_cloud_cover_flooded_pixels",
	"mean_clear_views_flooded_pixels",
	"total_flooded_pixel_days",
	"metrics_error",
}

// ReadMetricsFile parses one extractor output file. Each file holds a
// single row keyed by mon-yr-adm1-id; numeric fields are NaN when the
// extraction failed and metrics_error carries the structured error string.
func ReadMetricsFile(path string) (*models.FloodMetrics, error) {
	t, err := csvio.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(t.Rows) == 0 {
		return nil, fmt.Errorf("metrics file %s has no data row", path)
	}
	row := t.Rows[0]

	m := &models.FloodMetrics{
		Key:               t.Cell(row, "mon-yr-adm1-id"),
		TotalPopulation:   t.Float(row, "total_population"),
		AvgPopDensity:     t.Float(row, "average_population_density"),
		TotalArea:         t.Float(row, "total_area"),
		TotalPixels:       t.Float(row, "total_num_pixels"),
		FloodedPixels:     t.Float(row, "num_flooded_pixels"),
		FloodedPopulation: t.Float(row, "flooded_population"),
		FloodedArea:       t.Float(row, "flooded_area"),
		MeanFloodDuration: t.Float(row, "mean_duration_flooded_pixels"),
		MeanCloudCover:    t.Float(row, "mean_percent_cloud_cover_flooded_pixels"),
		MeanClearViews:    t.Float(row, "mean_clear_views_flooded_pixels"),
		FloodedPixelDays:  t.Float(row, "total_flooded_pixel_days"),
		Error:             t.Cell(row, "metrics_error"),
	}
	m.Adm1Code, _ = t.Int(row, "adm1_code")
	if m.Key == "" {
		return nil, fmt.Errorf("metrics file %s has no mon-yr-adm1-id", path)
	}
	return m, nil
}

// LoadDir combines every per-event metrics file in a directory into one
// map keyed by mon-yr-adm1-id. A malformed file is logged and skipped; a
// missing directory is a fail-fast error.
func LoadDir(dir string) (map[string]*models.FloodMetrics, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading metrics directory: %w", err)
	}

	out := make(map[string]*models.FloodMetrics)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), "_metrics.csv") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		m, err := ReadMetricsFile(path)
		if err != nil {
			slog.Warn("skipping malformed metrics file", "path", path, "error", err)
			continue
		}
		if _, dup := out[m.Key]; dup {
			slog.Warn("duplicate metrics row, keeping first", "key", m.Key)
			continue
		}
		out[m.Key] = m
	}
	slog.Info("flood metrics loaded", "dir", dir, "events", len(out))
	return out, nil
}

// Attach joins metrics onto monthly events by composite key, keeping only
// events with a metrics row (extraction runs exactly once per key, so a
// missing row means the event never reached the extractor). Disaster ids
// whose every row is dropped here resurface through the flag stage's
// recovery branch.
func Attach(events []*models.MonthlyEvent, metrics map[string]*models.FloodMetrics) []*models.MonthlyEvent {
	var out []*models.MonthlyEvent
	dropped := 0
	for _, ev := range events {
		m, ok := metrics[ev.Key]
		if !ok || ev.Key == "" {
			dropped++
			continue
		}
		ev.Metrics = m
		out = append(out, ev)
	}
	if dropped > 0 {
		slog.Info("events without metrics rows dropped from processed table", "count", dropped)
	}
	return out
}

// WriteCombined exports the merged metrics table, one row per event, in
// the extractor's column order.
func WriteCombined(path string, metrics map[string]*models.FloodMetrics) error {
	w, err := csvio.NewWriter(path, MetricsHeader)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	// Deterministic output independent of directory listing order.
	sort.Strings(keys)
	for _, k := range keys {
		m := metrics[k]
		row := []string{
			m.Key,
			fmt.Sprintf("%d", m.Adm1Code),
			csvio.FormatFloat(m.TotalPopulation),
			csvio.FormatFloat(m.AvgPopDensity),
			csvio.FormatFloat(m.TotalArea),
			csvio.FormatFloat(m.TotalPixels),
			csvio.FormatFloat(m.FloodedPixels),
			csvio.FormatFloat(m.FloodedPopulation),
			csvio.FormatFloat(m.FloodedArea),
			csvio.FormatFloat(m.MeanFloodDuration),
			csvio.FormatFloat(m.MeanCloudCover),
			csvio.FormatFloat(m.MeanClearViews),
			csvio.FormatFloat(m.FloodedPixelDays),
			m.Error,
		}
		if err := w.Write(row); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}
