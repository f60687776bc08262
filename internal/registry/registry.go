// Package registry ingests the raw disaster registry and resolves its
// admin-unit references against the boundary code tables.
package registry

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/cskoven/go-flood-panel/internal/csvio"
	"github.com/cskoven/go-flood-panel/internal/models"
)

const (
	colID         = "id"
	colIDAlt      = "DisNo."
	colCountry    = "Country"
	colISO        = "ISO"
	colSubregion  = "Subregion"
	colType       = "Disaster Type"
	colSubtype    = "Disaster Subtype"
	colEventName  = "Event Name"
	colStartYear  = "Start Year"
	colStartMonth = "Start Month"
	colStartDay   = "Start Day"
	colEndYear    = "End Year"
	colEndMonth   = "End Month"
	colEndDay     = "End Day"
	colDeaths     = "Total Deaths"
	colAffected   = "Total Affected"
	colDamage     = "Total Damage ('000 US$)"
	colDamageAdj  = "Total Damage, Adjusted ('000 US$)"
	colCPI        = "CPI"
	colAdminUnits = "Admin Units"
	colNotes      = "data_processing_flags"
)

// Load reads the raw registry CSV into DisasterRecords. Records missing
// Start or End Year/Month cannot be placed on the study grid and are
// dropped here, logged with a count. This is the only whole-record date
// filter in the pipeline; later stages never drop on dates.
func Load(path string) ([]*models.DisasterRecord, error) {
	t, err := csvio.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading registry: %w", err)
	}

	idCol := colID
	if t.Col(idCol) < 0 {
		idCol = colIDAlt
	}
	if t.Col(idCol) < 0 {
		return nil, fmt.Errorf("registry %s has no id column", path)
	}

	var records []*models.DisasterRecord
	droppedDates := 0
	for _, row := range t.Rows {
		rec := &models.DisasterRecord{
			ID:              t.Cell(row, idCol),
			Country:         t.Cell(row, colCountry),
			ISO:             t.Cell(row, colISO),
			Subregion:       t.Cell(row, colSubregion),
			DisasterType:    t.Cell(row, colType),
			DisasterSubtype: t.Cell(row, colSubtype),
			EventName:       t.Cell(row, colEventName),
			TotalDeaths:     t.Float(row, colDeaths),
			TotalAffected:   t.Float(row, colAffected),
			TotalDamage:     t.Float(row, colDamage),
			TotalDamageAdj:  t.Float(row, colDamageAdj),
			CPI:             t.Float(row, colCPI),
			AdminUnitsRaw:   t.Cell(row, colAdminUnits),
			Notes:           parseNotes(t.Cell(row, colNotes)),
		}
		if rec.ID == "" {
			continue
		}

		var okSY, okSM, okEY, okEM bool
		rec.StartYear, okSY = t.Int(row, colStartYear)
		rec.StartMonth, okSM = t.Int(row, colStartMonth)
		rec.EndYear, okEY = t.Int(row, colEndYear)
		rec.EndMonth, okEM = t.Int(row, colEndMonth)
		if !okSY || !okSM || !okEY || !okEM {
			droppedDates++
			continue
		}

		if d, ok := t.Int(row, colStartDay); ok {
			rec.StartDay = &d
		}
		if d, ok := t.Int(row, colEndDay); ok {
			rec.EndDay = &d
		}

		records = append(records, rec)
	}

	if droppedDates > 0 {
		slog.Warn("dropped registry rows missing start or end year/month", "count", droppedDates)
	}
	slog.Info("registry loaded", "path", path, "records", len(records))
	return records, nil
}

// parseNotes splits an accumulated upstream notes cell. Upstream writes
// semicolon-joined fragments, sometimes with a leading separator.
func parseNotes(raw string) []string {
	if raw == "" {
		return nil
	}
	// A bare numeric cell is a single pre-assigned flag code.
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return []string{strconv.Itoa(int(f))}
	}
	var notes []string
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part != "" {
			notes = append(notes, part)
		}
	}
	return notes
}

// Preprocess subsets the registry to inland floods and puts 2024 damages on
// the same CPI-adjusted scale as earlier years. The registry's adjusted
// damages run through 2023 only; 2024 rows carry nominal values that are
// deflated by the 2024/2023 CPI ratio.
func Preprocess(records []*models.DisasterRecord, cpiRatio2024 float64) []*models.DisasterRecord {
	var out []*models.DisasterRecord
	for _, rec := range records {
		if rec.DisasterType != "Flood" || rec.DisasterSubtype == "Coastal flood" {
			continue
		}
		if rec.StartYear == 2024 {
			rec.TotalDamageAdj = rec.TotalDamage / cpiRatio2024
		}
		out = append(out, rec)
	}
	slog.Info("registry preprocessed", "inland_floods", len(out))
	return out
}

// ResolveUnits parses a record's admin-units cell and fills in missing
// codes from the boundary reference: name-only units are looked up within
// the record's (reconciled) country, and admin-2 units inherit their parent
// admin-1. A parse failure returns an error; the caller drops the record.
func ResolveUnits(rec *models.DisasterRecord, b *Boundary) ([]models.AdminUnit, error) {
	units, err := ParseAdminUnits(rec.AdminUnitsRaw)
	if err != nil {
		return nil, fmt.Errorf("admin units for event %s: %w", rec.ID, err)
	}

	for i := range units {
		u := &units[i]
		if u.Adm1Code == 0 && u.Adm1Name != "" {
			if code, ok := b.Adm1CodeByName(rec.Country, u.Adm1Name); ok {
				u.Adm1Code = code
			}
		}
		if u.Adm2Code == 0 && u.Adm2Name != "" {
			if code, ok := b.Adm2CodeByName(rec.Country, u.Adm2Name); ok {
				u.Adm2Code = code
			}
		}
		if u.Adm1Code == 0 && u.Adm2Code != 0 {
			if code, name, ok := b.Adm1Parent(u.Adm2Code); ok {
				u.Adm1Code = code
				if u.Adm1Name == "" {
					u.Adm1Name = name
				}
			}
		}
	}
	return units, nil
}
