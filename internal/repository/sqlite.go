package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cskoven/go-flood-panel/internal/models"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS events (
			key TEXT NOT NULL,
			event_id TEXT NOT NULL,
			adm1_code INTEGER NOT NULL,
			adm1_name TEXT,
			country TEXT,
			mon_yr TEXT,
			start_date TEXT,
			end_date TEXT,
			duration_days INTEGER,
			total_affected REAL,
			total_damage_adj REAL,
			flooded_population REAL,
			flooded_area REAL,
			population_weight REAL,
			affected_weighted REAL,
			damage_weighted REAL,
			affected_normalized REAL,
			damages_gdp_std REAL,
			flooded_area_pct REAL,
			recovered INTEGER NOT NULL DEFAULT 0,
			flags TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS panel_cells (
			adm1_code INTEGER NOT NULL,
			mon_yr TEXT NOT NULL,
			event_occurrance INTEGER NOT NULL,
			total_affected REAL,
			damages REAL,
			affected_normalized REAL,
			damages_gdp_std REAL,
			ln_affected_normalized REAL,
			ln_damages_gdp_std REAL,
			precip_std_anom REAL,
			adm1_name TEXT,
			adm0_code INTEGER,
			country TEXT,
			country_yr TEXT,
			country_mon TEXT,
			PRIMARY KEY (adm1_code, mon_yr)
		);

		CREATE INDEX IF NOT EXISTS idx_events_key ON events(key);
		CREATE INDEX IF NOT EXISTS idx_events_event_id ON events(event_id);
		CREATE INDEX IF NOT EXISTS idx_events_adm1 ON events(adm1_code);
		CREATE INDEX IF NOT EXISTS idx_panel_mon_yr ON panel_cells(mon_yr);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// nullable maps the pipeline's NaN sentinel onto SQL NULL.
func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func dateString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ReplaceEvents rewrites the events table in one transaction. The store
// holds exactly one pipeline run.
func (s *SQLiteDB) ReplaceEvents(ctx context.Context, events []*models.MonthlyEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return fmt.Errorf("error clearing events: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (
			key, event_id, adm1_code, adm1_name, country, mon_yr,
			start_date, end_date, duration_days,
			total_affected, total_damage_adj,
			flooded_population, flooded_area,
			population_weight, affected_weighted, damage_weighted,
			affected_normalized, damages_gdp_std, flooded_area_pct,
			recovered, flags
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		var floodedPop, floodedArea any
		if ev.Metrics != nil {
			floodedPop = nullable(ev.Metrics.FloodedPopulation)
			floodedArea = nullable(ev.Metrics.FloodedArea)
		}
		var popWeight, affectedW, damageW any
		if ev.Impact != nil {
			popWeight = nullable(ev.Impact.PopulationWeight)
			affectedW = nullable(ev.Impact.AffectedWeighted)
			damageW = nullable(ev.Impact.DamageWeighted)
		}
		recovered := 0
		if ev.Recovered {
			recovered = 1
		}

		_, err := stmt.ExecContext(ctx,
			ev.Key, ev.ID, ev.Adm1Code, ev.Adm1Name, ev.Country, ev.MonYr,
			dateString(ev.StartDate), dateString(ev.EndDate), ev.DurationDays,
			nullable(ev.TotalAffected), nullable(ev.TotalDamageAdj),
			floodedPop, floodedArea,
			popWeight, affectedW, damageW,
			nullable(ev.Normalized.AffectedPctPopulation),
			nullable(ev.Normalized.DamagePctGDP),
			nullable(ev.Normalized.FloodedAreaPctAdm1),
			recovered, ev.Flags.String(),
		)
		if err != nil {
			return fmt.Errorf("error inserting event %s: %w", ev.Key, err)
		}
	}

	return tx.Commit()
}

const eventColumns = `
	key, event_id, adm1_code, adm1_name, country, mon_yr,
	start_date, end_date, duration_days,
	total_affected, total_damage_adj,
	flooded_population, flooded_area,
	population_weight, affected_weighted, damage_weighted,
	affected_normalized, damages_gdp_std, flooded_area_pct,
	recovered, flags`

func (s *SQLiteDB) scanEvent(row interface{ Scan(...any) error }) (*models.MonthlyEvent, error) {
	var (
		ev        models.MonthlyEvent
		startDate string
		endDate   string
		recovered int
		flagsStr  string

		totalAffected, totalDamageAdj            sql.NullFloat64
		floodedPop, floodedArea                  sql.NullFloat64
		popWeight, affectedW, damageW            sql.NullFloat64
		affectedNorm, damagesStd, floodedAreaPct sql.NullFloat64
	)

	err := row.Scan(
		&ev.Key, &ev.ID, &ev.Adm1Code, &ev.Adm1Name, &ev.Country, &ev.MonYr,
		&startDate, &endDate, &ev.DurationDays,
		&totalAffected, &totalDamageAdj,
		&floodedPop, &floodedArea,
		&popWeight, &affectedW, &damageW,
		&affectedNorm, &damagesStd, &floodedAreaPct,
		&recovered, &flagsStr,
	)
	if err != nil {
		return nil, err
	}

	ev.StartDate = parseDate(startDate)
	ev.EndDate = parseDate(endDate)
	ev.TotalAffected = fromNull(totalAffected)
	ev.TotalDamageAdj = fromNull(totalDamageAdj)
	ev.Recovered = recovered != 0

	if floodedPop.Valid || floodedArea.Valid {
		ev.Metrics = &models.FloodMetrics{
			Key:               ev.Key,
			Adm1Code:          ev.Adm1Code,
			FloodedPopulation: fromNull(floodedPop),
			FloodedArea:       fromNull(floodedArea),
		}
	}
	if popWeight.Valid || affectedW.Valid || damageW.Valid {
		ev.Impact = &models.AllocatedImpact{
			PopulationWeight: fromNull(popWeight),
			AffectedWeighted: fromNull(affectedW),
			DamageWeighted:   fromNull(damageW),
		}
	}
	ev.Normalized = models.NormalizedImpacts{
		AffectedPctPopulation: fromNull(affectedNorm),
		DamagePctGDP:          fromNull(damagesStd),
		FloodedAreaPctAdm1:    fromNull(floodedAreaPct),
	}

	flagSet, err := models.ParseFlagSet(flagsStr)
	if err != nil {
		return nil, fmt.Errorf("malformed flags %q: %w", flagsStr, err)
	}
	ev.Flags = flagSet

	return &ev, nil
}

func (s *SQLiteDB) GetEventByKey(ctx context.Context, key string) (*models.MonthlyEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+eventColumns+` FROM events WHERE key = ? LIMIT 1`, key)
	ev, err := s.scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("event %s not found", key)
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching event %s: %w", key, err)
	}
	return ev, nil
}

func (s *SQLiteDB) ListEvents(ctx context.Context, opts Filter) ([]*models.MonthlyEvent, error) {
	query := `SELECT` + eventColumns + ` FROM events`
	var conds []string
	var args []any

	if opts.Adm1Code != nil {
		conds = append(conds, "adm1_code = ?")
		args = append(args, *opts.Adm1Code)
	}
	if opts.MonYr != nil {
		conds = append(conds, "mon_yr = ?")
		args = append(args, *opts.MonYr)
	}
	if opts.EventID != nil {
		conds = append(conds, "event_id = ?")
		args = append(args, *opts.EventID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY event_id, key"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing events: %w", err)
	}
	defer rows.Close()

	var out []*models.MonthlyEvent
	for rows.Next() {
		ev, err := s.scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning event: %w", err)
		}
		// The flags filter checks set membership, which SQL string
		// matching cannot do safely against "1; 12" style values.
		if opts.Flag != nil && !ev.Flags.Contains(*opts.Flag) {
			continue
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) ReplacePanel(ctx context.Context, cells []*models.PanelCell) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM panel_cells`); err != nil {
		return fmt.Errorf("error clearing panel: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO panel_cells (
			adm1_code, mon_yr, event_occurrance,
			total_affected, damages,
			affected_normalized, damages_gdp_std,
			ln_affected_normalized, ln_damages_gdp_std,
			precip_std_anom,
			adm1_name, adm0_code, country, country_yr, country_mon
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cells {
		_, err := stmt.ExecContext(ctx,
			c.Adm1Code, c.MonYr, c.EventOccurrance,
			nullable(c.TotalAffected), nullable(c.Damages),
			nullable(c.AffectedNormalized), nullable(c.DamagesGDPStd),
			nullable(c.LnAffectedNormalized), nullable(c.LnDamagesGDPStd),
			nullable(c.PrecipStdAnom),
			c.Adm1Name, c.Adm0Code, c.Country, c.CountryYr, c.CountryMon,
		)
		if err != nil {
			return fmt.Errorf("error inserting panel cell %d %s: %w", c.Adm1Code, c.MonYr, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteDB) ListPanel(ctx context.Context, opts Filter) ([]*models.PanelCell, error) {
	query := `
		SELECT adm1_code, mon_yr, event_occurrance,
			total_affected, damages,
			affected_normalized, damages_gdp_std,
			ln_affected_normalized, ln_damages_gdp_std,
			precip_std_anom,
			adm1_name, adm0_code, country, country_yr, country_mon
		FROM panel_cells`
	var conds []string
	var args []any

	if opts.Adm1Code != nil {
		conds = append(conds, "adm1_code = ?")
		args = append(args, *opts.Adm1Code)
	}
	if opts.MonYr != nil {
		conds = append(conds, "mon_yr = ?")
		args = append(args, *opts.MonYr)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY adm1_code, substr(mon_yr, 4, 4), substr(mon_yr, 1, 2)"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing panel cells: %w", err)
	}
	defer rows.Close()

	var out []*models.PanelCell
	for rows.Next() {
		var (
			c                             models.PanelCell
			totalAffected, damages        sql.NullFloat64
			affectedNorm, damagesStd      sql.NullFloat64
			lnAffected, lnDamages, precip sql.NullFloat64
		)
		err := rows.Scan(
			&c.Adm1Code, &c.MonYr, &c.EventOccurrance,
			&totalAffected, &damages,
			&affectedNorm, &damagesStd,
			&lnAffected, &lnDamages,
			&precip,
			&c.Adm1Name, &c.Adm0Code, &c.Country, &c.CountryYr, &c.CountryMon,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning panel cell: %w", err)
		}
		c.TotalAffected = fromNull(totalAffected)
		c.Damages = fromNull(damages)
		c.AffectedNormalized = fromNull(affectedNorm)
		c.DamagesGDPStd = fromNull(damagesStd)
		c.LnAffectedNormalized = fromNull(lnAffected)
		c.LnDamagesGDPStd = fromNull(lnDamages)
		c.PrecipStdAnom = fromNull(precip)
		out = append(out, &c)
	}
	return out, rows.Err()
}
