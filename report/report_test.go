package report

import (
	"bytes"
	"strings"
	"testing"

	"golang.org/x/text/language"

	"github.com/sartorproj/revforecast/arima"
	"github.com/sartorproj/revforecast/forecast"
	"github.com/sartorproj/revforecast/stats"
)

func TestAmount(t *testing.T) {
	pr := NewPrinter(language.English)

	tests := []struct {
		value float64
		want  string
	}{
		{1234567, "1,234,567.00"},
		{-98.5, "-98.50"},
		{0, "0.00"},
	}

	for _, tt := range tests {
		if got := pr.Amount(tt.value); got != tt.want {
			t.Errorf("Amount(%v) = %q, expected %q", tt.value, got, tt.want)
		}
	}
}

func TestForecasts(t *testing.T) {
	pr := NewPrinter(language.English)
	results := []*forecast.Result{
		{
			EntityID:  "company_revenue/Apple",
			ModelUsed: forecast.ModelARIMA,
			Order:     &arima.Order{P: 1, D: 1, Q: 0},
			Diagnostics: &forecast.Diagnostics{
				Residuals: 12,
				LjungBox:  &stats.LjungBoxResult{Statistic: 4.2, PValue: 0.8372, Lags: 10, DOF: 9},
			},
			Points: []forecast.Point{{Period: 2024, Value: 391035000000}, {Period: 2025, Value: 402500000000}},
		},
		{
			EntityID:  "company_revenue/Startup",
			ModelUsed: forecast.ModelLinearRegression,
			Note:      "fewer than 3 observations, linear trend only",
			Points:    []forecast.Point{{Period: 2024, Value: 1234567}},
		},
	}

	var buf bytes.Buffer
	if err := pr.Forecasts(&buf, results); err != nil {
		t.Fatalf("Failed to write report: %v", err)
	}
	out := buf.String()
	t.Logf("\n%s", out)

	for _, want := range []string{
		"ARIMA(1,1,0)",
		"LB P",
		"0.837",
		"391,035,000,000.00",
		"1,234,567.00",
		"2025",
		"note: company_revenue/Startup: fewer than 3 observations",
		"2 entities forecast, 1 degraded",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected report to contain %q", want)
		}
	}
	if strings.Contains(out, "2,024") {
		t.Error("Years should not be grouped")
	}
}

func TestAccuracy(t *testing.T) {
	pr := NewPrinter(language.English)

	var buf bytes.Buffer
	err := pr.Accuracy(&buf, []string{"macro_indicator/USA/GDP"}, []*forecast.Accuracy{
		{Holdout: 2, ModelUsed: forecast.ModelARIMA, RMSE: 1520.5, MAE: 1400, MAPE: 3.25},
	})
	if err != nil {
		t.Fatalf("Failed to write accuracy: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "1,520.50") || !strings.Contains(out, "3.25") {
		t.Errorf("Unexpected accuracy table:\n%s", out)
	}

	if err := pr.Accuracy(&buf, []string{"a", "b"}, nil); err == nil {
		t.Error("Expected error for mismatched lengths")
	}
}
