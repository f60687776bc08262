// Package climate turns the daily zonal precipitation series into the
// panel's standardized monthly anomaly covariate.
package climate

import (
	"fmt"
	"math"
	"time"

	"github.com/fhs/go-netcdf/netcdf"

	"github.com/cskoven/go-flood-panel/internal/models"
)

// DailySeries is the gridded zonal-statistics file in memory: one daily
// precipitation mean per admin-1 unit.
type DailySeries struct {
	Times  []time.Time
	Adm1   []int
	Values [][]float64 // [time][adm1]
}

// epoch anchors the file's "days since 2000-01-01" time axis.
var epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// ReadZonalPrecip loads the precipitation NetCDF. Expected layout: dims
// (time, adm1), variables time (days since 2000-01-01), adm1_code, and
// precipitation_mean(time, adm1).
func ReadZonalPrecip(path string) (*DailySeries, error) {
	ds, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer ds.Close()

	timeVar, err := ds.Var("time")
	if err != nil {
		return nil, fmt.Errorf("reading time axis: %w", err)
	}
	nTime, err := timeVar.Len()
	if err != nil {
		return nil, fmt.Errorf("reading time axis length: %w", err)
	}
	days := make([]float64, nTime)
	if err := timeVar.ReadFloat64s(days); err != nil {
		return nil, fmt.Errorf("reading time axis values: %w", err)
	}

	admVar, err := ds.Var("adm1_code")
	if err != nil {
		return nil, fmt.Errorf("reading adm1_code axis: %w", err)
	}
	nAdm, err := admVar.Len()
	if err != nil {
		return nil, fmt.Errorf("reading adm1_code length: %w", err)
	}
	admRaw := make([]float64, nAdm)
	if err := admVar.ReadFloat64s(admRaw); err != nil {
		return nil, fmt.Errorf("reading adm1_code values: %w", err)
	}

	precipVar, err := ds.Var("precipitation_mean")
	if err != nil {
		return nil, fmt.Errorf("reading precipitation_mean: %w", err)
	}
	flat := make([]float64, nTime*nAdm)
	if err := precipVar.ReadFloat64s(flat); err != nil {
		return nil, fmt.Errorf("reading precipitation values: %w", err)
	}

	s := &DailySeries{
		Times:  make([]time.Time, nTime),
		Adm1:   make([]int, nAdm),
		Values: make([][]float64, nTime),
	}
	for i, d := range days {
		s.Times[i] = epoch.AddDate(0, 0, int(d))
	}
	for j, code := range admRaw {
		s.Adm1[j] = int(code)
	}
	for i := range s.Values {
		s.Values[i] = flat[i*int(nAdm) : (i+1)*int(nAdm)]
	}
	return s, nil
}

// MonthlyMeans collapses the daily series to one mean per admin-1 unit
// per calendar month. NaN days are skipped; a month of only NaN days is
// NaN.
func (s *DailySeries) MonthlyMeans() map[int]map[string]float64 {
	sums := make(map[int]map[string]float64)
	counts := make(map[int]map[string]int)

	for i, t := range s.Times {
		monYr := models.MonYrKey(t.Year(), t.Month())
		for j, code := range s.Adm1 {
			v := s.Values[i][j]
			if math.IsNaN(v) {
				continue
			}
			if sums[code] == nil {
				sums[code] = make(map[string]float64)
				counts[code] = make(map[string]int)
			}
			sums[code][monYr] += v
			counts[code][monYr]++
		}
	}

	out := make(map[int]map[string]float64, len(sums))
	for code, byMonth := range sums {
		out[code] = make(map[string]float64, len(byMonth))
		for monYr, sum := range byMonth {
			out[code][monYr] = sum / float64(counts[code][monYr])
		}
	}
	return out
}

// StandardizedAnomaly standardizes each admin unit's monthly series
// against its own across-time mean and standard deviation, not a global
// one, so the covariate is an admin-unit-relative anomaly. A unit with
// zero variance gets NaN everywhere.
func StandardizedAnomaly(monthly map[int]map[string]float64) map[int]map[string]float64 {
	out := make(map[int]map[string]float64, len(monthly))
	for code, byMonth := range monthly {
		var sum float64
		n := 0
		for _, v := range byMonth {
			if !math.IsNaN(v) {
				sum += v
				n++
			}
		}
		if n == 0 {
			continue
		}
		mean := sum / float64(n)

		var ss float64
		for _, v := range byMonth {
			if !math.IsNaN(v) {
				ss += (v - mean) * (v - mean)
			}
		}
		std := math.Sqrt(ss / float64(n))

		out[code] = make(map[string]float64, len(byMonth))
		for monYr, v := range byMonth {
			out[code][monYr] = (v - mean) / std
		}
	}
	return out
}

// Anomalies is the full covariate computation: read, resample monthly,
// standardize.
func Anomalies(path string) (map[int]map[string]float64, error) {
	s, err := ReadZonalPrecip(path)
	if err != nil {
		return nil, err
	}
	return StandardizedAnomaly(s.MonthlyMeans()), nil
}
