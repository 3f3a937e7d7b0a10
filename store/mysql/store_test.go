package mysql

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/sartorproj/revforecast/store"
	"github.com/sartorproj/revforecast/timeseries"
)

func TestDSN(t *testing.T) {
	dsn := DSN("warehouse", 3306, "forecaster", "s3cret", "financials")

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to parse DSN %q: %v", dsn, err)
	}
	if cfg.Addr != "warehouse:3306" || cfg.Net != "tcp" {
		t.Errorf("Unexpected address %s(%s)", cfg.Net, cfg.Addr)
	}
	if cfg.User != "forecaster" || cfg.Passwd != "s3cret" || cfg.DBName != "financials" {
		t.Errorf("Unexpected credentials in %+v", cfg)
	}
	if !cfg.ParseTime {
		t.Error("Expected parseTime to be enabled")
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Error("Expected error for empty DSN")
	}
}

func TestSeriesQuery(t *testing.T) {
	tests := []struct {
		name      string
		entity    store.Entity
		wantTable string
		wantArgs  []any
		wantErr   bool
	}{
		{
			name:      "revenue",
			entity:    store.Entity{Type: store.KindCompanyRevenue, Name: "Apple"},
			wantTable: "revenue_usd",
			wantArgs:  []any{"Apple"},
		},
		{
			name:      "net income",
			entity:    store.Entity{Type: store.KindCompanyNetIncome, Name: "Apple"},
			wantTable: "net_income_usd",
			wantArgs:  []any{"Apple"},
		},
		{
			name:      "macro",
			entity:    store.Entity{Type: store.KindMacroIndicator, Name: "USA/NY.GDP.MKTP.CD"},
			wantTable: "macro_indicators",
			wantArgs:  []any{"USA", "NY.GDP.MKTP.CD"},
		},
		{
			name:    "malformed macro",
			entity:  store.Entity{Type: store.KindMacroIndicator, Name: "USA"},
			wantErr: true,
		},
		{
			name:    "unknown",
			entity:  store.Entity{Type: "stock_price", Name: "AAPL"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := seriesQuery(tt.entity)
			if (err != nil) != tt.wantErr {
				t.Fatalf("seriesQuery() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !strings.Contains(query, tt.wantTable) {
				t.Errorf("Expected query to reference %s, got %s", tt.wantTable, query)
			}
			if !strings.Contains(query, "ORDER BY year") {
				t.Errorf("Expected query ordered by year, got %s", query)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("Expected %d args, got %d", len(tt.wantArgs), len(args))
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("Arg %d: expected %v, got %v", i, tt.wantArgs[i], args[i])
				}
			}
		})
	}
}

func TestObservationUpsert(t *testing.T) {
	obs := timeseries.Observation{Period: 2023, Value: 42}
	tests := []struct {
		name       string
		entity     store.Entity
		wantColumn string
		wantArgs   []any
		wantErr    bool
	}{
		{
			name:       "revenue",
			entity:     store.Entity{Type: store.KindCompanyRevenue, Name: "Apple"},
			wantColumn: "revenue_usd = VALUES(revenue_usd)",
			wantArgs:   []any{"Apple", 2023, 42.0},
		},
		{
			name:       "net income",
			entity:     store.Entity{Type: store.KindCompanyNetIncome, Name: "Apple"},
			wantColumn: "net_income_usd = VALUES(net_income_usd)",
			wantArgs:   []any{"Apple", 2023, 42.0},
		},
		{
			name:       "macro",
			entity:     store.Entity{Type: store.KindMacroIndicator, Name: "IND/SP.POP.TOTL"},
			wantColumn: "macro_indicators",
			wantArgs:   []any{"IND", 2023, "SP.POP.TOTL", 42.0, macroSource},
		},
		{
			name:    "malformed macro",
			entity:  store.Entity{Type: store.KindMacroIndicator, Name: "IND"},
			wantErr: true,
		},
		{
			name:    "unknown",
			entity:  store.Entity{Type: "stock_price", Name: "AAPL"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, argsFor, err := observationUpsert(tt.entity)
			if (err != nil) != tt.wantErr {
				t.Fatalf("observationUpsert() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !strings.Contains(query, tt.wantColumn) {
				t.Errorf("Expected query to contain %q, got %s", tt.wantColumn, query)
			}
			args := argsFor(obs)
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("Expected %d args, got %d", len(tt.wantArgs), len(args))
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("Arg %d: expected %v, got %v", i, tt.wantArgs[i], args[i])
				}
			}
		})
	}
}

func TestDeleteStaleForecastsKeepsCurrentRun(t *testing.T) {
	if !strings.Contains(deleteStaleForecasts, "run_id <> ?") {
		t.Errorf("Expected stale delete to keep the current run, got %s", deleteStaleForecasts)
	}
	if !strings.Contains(deleteStaleForecasts, "entity_type = ? AND entity_name = ?") {
		t.Errorf("Expected stale delete scoped to one entity, got %s", deleteStaleForecasts)
	}
}

func TestWriteForecastRejectsMixedRuns(t *testing.T) {
	e := store.Entity{Type: store.KindCompanyRevenue, Name: "Apple"}
	now := time.Now()
	rows := []store.ForecastRow{
		{Entity: e, Year: 2024, Value: 1, ModelUsed: "ARIMA", RunID: "run-1", GeneratedAt: now},
		{Entity: e, Year: 2025, Value: 2, ModelUsed: "ARIMA", RunID: "run-2", GeneratedAt: now},
	}

	s := &Store{}
	if err := s.WriteForecast(context.Background(), rows); err == nil {
		t.Error("Expected error for a batch mixing runs of one entity")
	}
}

func TestPingUnconfigured(t *testing.T) {
	var s *Store
	if err := s.Ping(context.Background()); err == nil {
		t.Error("Expected error pinging an unconfigured store")
	}
}
