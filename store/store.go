// Package store defines the series source and forecast sink used by the
// forecasting pipeline.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sartorproj/revforecast/timeseries"
)

// ErrNotFound is returned when an entity has no stored observations.
var ErrNotFound = errors.New("store: not found")

// Entity kinds tracked by the warehouse.
const (
	KindCompanyRevenue   = "company_revenue"
	KindCompanyNetIncome = "company_net_income"
	KindMacroIndicator   = "macro_indicator"
)

// Kinds lists every supported entity kind.
var Kinds = []string{KindCompanyRevenue, KindCompanyNetIncome, KindMacroIndicator}

// Entity identifies one forecastable series. Macro indicator names have the
// form COUNTRY/INDICATOR.
type Entity struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// ID returns the entity key used in logs, results and errors.
func (e Entity) ID() string {
	return e.Type + "/" + e.Name
}

// ParseEntityID splits an ID of the form TYPE/NAME and validates it.
func ParseEntityID(id string) (Entity, error) {
	kind, name, ok := strings.Cut(id, "/")
	if !ok {
		return Entity{}, fmt.Errorf("entity id %q must be TYPE/NAME", id)
	}
	e := Entity{Type: kind, Name: name}
	if err := e.Validate(); err != nil {
		return Entity{}, err
	}
	return e, nil
}

// Validate checks the kind and name.
func (e Entity) Validate() error {
	switch e.Type {
	case KindCompanyRevenue, KindCompanyNetIncome:
	case KindMacroIndicator:
		if _, _, ok := SplitMacroName(e.Name); !ok {
			return fmt.Errorf("macro indicator name %q must be COUNTRY/INDICATOR", e.Name)
		}
	default:
		return fmt.Errorf("unknown entity type %q", e.Type)
	}
	if strings.TrimSpace(e.Name) == "" {
		return errors.New("entity name is required")
	}
	return nil
}

// SplitMacroName splits a COUNTRY/INDICATOR name.
func SplitMacroName(name string) (country, indicator string, ok bool) {
	country, indicator, ok = strings.Cut(name, "/")
	if !ok || country == "" || indicator == "" {
		return "", "", false
	}
	return country, indicator, true
}

// MacroName joins a country code and indicator into an entity name.
func MacroName(country, indicator string) string {
	return country + "/" + indicator
}

// ForecastRow is one persisted forecast point. Rows are keyed by entity,
// year and model.
type ForecastRow struct {
	Entity      Entity    `json:"entity"`
	Year        int       `json:"year"`
	Value       float64   `json:"forecast_value"`
	ModelUsed   string    `json:"model_used"`
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
}

// RunIDs returns the run id of each entity in a forecast batch. Every row of
// one entity must carry the same run id.
func RunIDs(rows []ForecastRow) (map[Entity]string, error) {
	runs := make(map[Entity]string)
	for _, r := range rows {
		if r.RunID == "" {
			return nil, fmt.Errorf("forecast row %s %d has no run id", r.Entity.ID(), r.Year)
		}
		prev, ok := runs[r.Entity]
		if ok && prev != r.RunID {
			return nil, fmt.Errorf("forecast batch mixes runs %s and %s for %s", prev, r.RunID, r.Entity.ID())
		}
		runs[r.Entity] = r.RunID
	}
	return runs, nil
}

// Store reads historical series and persists forecasts.
type Store interface {
	ListEntities(ctx context.Context) ([]Entity, error)
	// ReadSeries returns ErrNotFound for an entity with no observations.
	ReadSeries(ctx context.Context, entity Entity) (*timeseries.Series, error)
	// WriteForecast replaces every stored row of each entity in the batch.
	// Rows from earlier runs are removed in the same transaction.
	WriteForecast(ctx context.Context, rows []ForecastRow) error
	ReadForecasts(ctx context.Context, entity Entity) ([]ForecastRow, error)
	// Ping reports whether the backing database is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// ObservationWriter stores historical observations.
type ObservationWriter interface {
	WriteObservations(ctx context.Context, entity Entity, series *timeseries.Series) error
}
