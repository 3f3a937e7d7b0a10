// Package mysql reads series from the MySQL financial warehouse and writes
// forecasts back into it.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/sartorproj/revforecast/store"
	"github.com/sartorproj/revforecast/timeseries"
)

// Pool settings applied to every connection.
const (
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
)

const forecastsSchema = `
CREATE TABLE IF NOT EXISTS forecasts (
    entity_type VARCHAR(32) NOT NULL,
    entity_name VARCHAR(255) NOT NULL,
    year INT NOT NULL,
    model_used VARCHAR(32) NOT NULL,
    forecast_value DOUBLE NOT NULL,
    run_id CHAR(36) NOT NULL,
    generated_at DATETIME(3) NOT NULL,
    UNIQUE KEY uq_forecast (entity_type, entity_name, year, model_used)
)`

const listEntitiesQuery = `
SELECT 'company_revenue', company FROM company_financials
 WHERE revenue_usd IS NOT NULL GROUP BY company
UNION ALL
SELECT 'company_net_income', company FROM company_financials
 WHERE net_income_usd IS NOT NULL GROUP BY company
UNION ALL
SELECT 'macro_indicator', CONCAT(country_code, '/', indicator) FROM macro_indicators
 WHERE value IS NOT NULL GROUP BY country_code, indicator
ORDER BY 1, 2`

// Store is a warehouse-backed store.Store.
type Store struct {
	db *sql.DB
}

var (
	_ store.Store             = (*Store)(nil)
	_ store.ObservationWriter = (*Store)(nil)
)

// macroSource is recorded on macro indicator rows written by this service.
const macroSource = "World Bank"

// DSN builds a TCP connection string with parseTime enabled.
func DSN(host string, port int, user, password, dbName string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = host + ":" + strconv.Itoa(port)
	cfg.DBName = dbName
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

// Open connects to the warehouse and ensures the forecasts table exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("mysql dsn is required")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("open mysql db: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql db: %w", err)
	}
	if _, err := db.ExecContext(ctx, forecastsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure forecasts table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks that the warehouse answers.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping mysql db: %w", err)
	}
	return nil
}

// ListEntities returns every company and macro indicator with data.
func (s *Store) ListEntities(ctx context.Context) ([]store.Entity, error) {
	rows, err := s.db.QueryContext(ctx, listEntitiesQuery)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var entities []store.Entity
	for rows.Next() {
		var e store.Entity
		if err := rows.Scan(&e.Type, &e.Name); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return entities, nil
}

// seriesQuery selects the warehouse query for an entity kind. Macro values
// reported by several sources for one year are averaged.
func seriesQuery(entity store.Entity) (string, []any, error) {
	switch entity.Type {
	case store.KindCompanyRevenue:
		return `SELECT year, revenue_usd FROM company_financials
		         WHERE company = ? AND revenue_usd IS NOT NULL
		         ORDER BY year`, []any{entity.Name}, nil
	case store.KindCompanyNetIncome:
		return `SELECT year, net_income_usd FROM company_financials
		         WHERE company = ? AND net_income_usd IS NOT NULL
		         ORDER BY year`, []any{entity.Name}, nil
	case store.KindMacroIndicator:
		country, indicator, ok := store.SplitMacroName(entity.Name)
		if !ok {
			return "", nil, fmt.Errorf("macro indicator name %q must be COUNTRY/INDICATOR", entity.Name)
		}
		return `SELECT year, AVG(value) FROM macro_indicators
		         WHERE country_code = ? AND indicator = ? AND value IS NOT NULL
		         GROUP BY year
		         ORDER BY year`, []any{country, indicator}, nil
	default:
		return "", nil, fmt.Errorf("unknown entity type %q", entity.Type)
	}
}

// ReadSeries returns the annual observations of one entity.
func (s *Store) ReadSeries(ctx context.Context, entity store.Entity) (*timeseries.Series, error) {
	query, args, err := seriesQuery(entity)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read series: %w", err)
	}
	defer rows.Close()

	series := &timeseries.Series{Name: entity.ID()}
	for rows.Next() {
		var o timeseries.Observation
		if err := rows.Scan(&o.Period, &o.Value); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		series.Observations = append(series.Observations, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	if len(series.Observations) == 0 {
		return nil, store.ErrNotFound
	}
	return series, nil
}

// observationUpsert returns the statement and per-observation arguments that
// store one entity's value for a year in its warehouse table.
func observationUpsert(entity store.Entity) (string, func(timeseries.Observation) []any, error) {
	switch entity.Type {
	case store.KindCompanyRevenue, store.KindCompanyNetIncome:
		column := "revenue_usd"
		if entity.Type == store.KindCompanyNetIncome {
			column = "net_income_usd"
		}
		query := `INSERT INTO company_financials (company, year, ` + column + `)
		          VALUES (?, ?, ?)
		          ON DUPLICATE KEY UPDATE ` + column + ` = VALUES(` + column + `)`
		return query, func(o timeseries.Observation) []any {
			return []any{entity.Name, o.Period, o.Value}
		}, nil
	case store.KindMacroIndicator:
		country, indicator, ok := store.SplitMacroName(entity.Name)
		if !ok {
			return "", nil, fmt.Errorf("macro indicator name %q must be COUNTRY/INDICATOR", entity.Name)
		}
		query := `INSERT INTO macro_indicators (country_code, year, indicator, value, source)
		          VALUES (?, ?, ?, ?, ?)
		          ON DUPLICATE KEY UPDATE value = VALUES(value), source = VALUES(source)`
		return query, func(o timeseries.Observation) []any {
			return []any{country, o.Period, indicator, o.Value, macroSource}
		}, nil
	default:
		return "", nil, fmt.Errorf("unknown entity type %q", entity.Type)
	}
}

// WriteObservations upserts historical observations into the warehouse.
func (s *Store) WriteObservations(ctx context.Context, entity store.Entity, series *timeseries.Series) error {
	if err := entity.Validate(); err != nil {
		return err
	}
	if series == nil || series.Len() == 0 {
		return nil
	}
	query, argsFor, err := observationUpsert(entity)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin observations transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare observation insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range series.Observations {
		if _, err := stmt.ExecContext(ctx, argsFor(o)...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("write observation %s %d: %w", entity.ID(), o.Period, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit observations: %w", err)
	}
	return nil
}

const deleteStaleForecasts = `DELETE FROM forecasts
 WHERE entity_type = ? AND entity_name = ? AND run_id <> ?`

// WriteForecast upserts a batch of rows in one transaction after removing
// rows the entities kept from earlier runs.
func (s *Store) WriteForecast(ctx context.Context, rows []store.ForecastRow) error {
	if len(rows) == 0 {
		return nil
	}
	runs, err := store.RunIDs(rows)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin forecast transaction: %w", err)
	}
	for entity, runID := range runs {
		if _, err := tx.ExecContext(ctx, deleteStaleForecasts, entity.Type, entity.Name, runID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("clear stale forecasts %s: %w", entity.ID(), err)
		}
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO forecasts (
		   entity_type, entity_name, year, model_used,
		   forecast_value, run_id, generated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE
		   forecast_value = VALUES(forecast_value),
		   run_id = VALUES(run_id),
		   generated_at = VALUES(generated_at)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare forecast insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.Entity.Type, r.Entity.Name, r.Year, r.ModelUsed,
			r.Value, r.RunID, r.GeneratedAt.UTC(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("write forecast %s %d: %w", r.Entity.ID(), r.Year, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit forecast: %w", err)
	}
	return nil
}

// ReadForecasts returns the stored forecast rows of one entity.
func (s *Store) ReadForecasts(ctx context.Context, entity store.Entity) ([]store.ForecastRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT year, model_used, forecast_value, run_id, generated_at
		   FROM forecasts
		  WHERE entity_type = ? AND entity_name = ?
		  ORDER BY model_used, year`,
		entity.Type, entity.Name)
	if err != nil {
		return nil, fmt.Errorf("read forecasts: %w", err)
	}
	defer rows.Close()

	var out []store.ForecastRow
	for rows.Next() {
		r := store.ForecastRow{Entity: entity}
		if err := rows.Scan(&r.Year, &r.ModelUsed, &r.Value, &r.RunID, &r.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan forecast: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forecasts: %w", err)
	}
	return out, nil
}
