// Package sqlite provides a SQLite-backed series source and forecast sink.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sartorproj/revforecast/store"
	"github.com/sartorproj/revforecast/store/sqlite/migrations"
	"github.com/sartorproj/revforecast/timeseries"
	_ "modernc.org/sqlite"
)

// Store persists observations and forecasts in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var (
	_ store.Store             = (*Store)(nil)
	_ store.ObservationWriter = (*Store)(nil)
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := s.sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// ListEntities returns every entity with at least one observation, ordered by
// type and name.
func (s *Store) ListEntities(ctx context.Context) ([]store.Entity, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT DISTINCT entity_type, entity_name
		   FROM observations
		  ORDER BY entity_type, entity_name`)
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

// ReadSeries returns the observations of one entity in year order.
func (s *Store) ReadSeries(ctx context.Context, entity store.Entity) (*timeseries.Series, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT year, value
		   FROM observations
		  WHERE entity_type = ? AND entity_name = ?
		  ORDER BY year`,
		entity.Type, entity.Name)
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

// WriteObservations upserts the observations of one entity.
func (s *Store) WriteObservations(ctx context.Context, entity store.Entity, series *timeseries.Series) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := entity.Validate(); err != nil {
		return err
	}
	if series == nil {
		return fmt.Errorf("series is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin observations transaction: %w", err)
	}
	for _, o := range series.Observations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO observations (entity_type, entity_name, year, value)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (entity_type, entity_name, year) DO UPDATE SET value = excluded.value`,
			entity.Type, entity.Name, o.Period, o.Value,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("write observation %s %d: %w", entity.ID(), o.Period, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit observations: %w", err)
	}
	return nil
}

// WriteForecast upserts a batch of forecast rows in one transaction after
// removing rows the entities kept from earlier runs.
func (s *Store) WriteForecast(ctx context.Context, rows []store.ForecastRow) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	runs, err := store.RunIDs(rows)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin forecast transaction: %w", err)
	}
	for entity, runID := range runs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM forecasts
			  WHERE entity_type = ? AND entity_name = ? AND run_id <> ?`,
			entity.Type, entity.Name, runID,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("clear stale forecasts %s: %w", entity.ID(), err)
		}
	}
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO forecasts (
			   entity_type, entity_name, year, model_used,
			   forecast_value, run_id, generated_at
			 ) VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (entity_type, entity_name, year, model_used) DO UPDATE SET
			   forecast_value = excluded.forecast_value,
			   run_id = excluded.run_id,
			   generated_at = excluded.generated_at`,
			r.Entity.Type, r.Entity.Name, r.Year, r.ModelUsed,
			r.Value, r.RunID, toMillis(r.GeneratedAt),
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

// ReadForecasts returns the stored forecast rows of one entity ordered by
// model and year.
func (s *Store) ReadForecasts(ctx context.Context, entity store.Entity) ([]store.ForecastRow, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
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
		var generatedAt int64
		if err := rows.Scan(&r.Year, &r.ModelUsed, &r.Value, &r.RunID, &generatedAt); err != nil {
			return nil, fmt.Errorf("scan forecast: %w", err)
		}
		r.GeneratedAt = fromMillis(generatedAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forecasts: %w", err)
	}
	return out, nil
}
