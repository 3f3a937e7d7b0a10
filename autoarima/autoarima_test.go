package autoarima

import (
	"errors"
	"math"
	"testing"

	"github.com/sartorproj/revforecast/timeseries"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.MaxP != 2 {
		t.Errorf("Expected MaxP=2, got %d", config.MaxP)
	}
	if config.MaxD != 1 {
		t.Errorf("Expected MaxD=1, got %d", config.MaxD)
	}
	if config.MaxQ != 2 {
		t.Errorf("Expected MaxQ=2, got %d", config.MaxQ)
	}
	if config.Criterion != "aic" {
		t.Errorf("Expected Criterion='aic', got %s", config.Criterion)
	}
	if config.Differencing != DifferencingGrid {
		t.Errorf("Expected Differencing='grid', got %s", config.Differencing)
	}
	if config.Stepwise {
		t.Error("Expected exhaustive search by default")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"empty criterion", func(c *Config) { c.Criterion = "" }, false},
		{"aicc", func(c *Config) { c.Criterion = "aicc" }, false},
		{"negative p", func(c *Config) { c.MaxP = -1 }, true},
		{"unknown criterion", func(c *Config) { c.Criterion = "hqic" }, true},
		{"unknown differencing", func(c *Config) { c.Differencing = "pp" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func ar1Series(n int) *timeseries.Series {
	values := make([]float64, n)
	values[0] = 100
	for i := 1; i < n; i++ {
		values[i] = 0.6*(values[i-1]-100) + 100 + float64(i%7-3)/3
	}
	return timeseries.FromValues(1800, values)
}

func TestAutoARIMAStationary(t *testing.T) {
	result, err := AutoARIMA(ar1Series(200), DefaultConfig())
	if err != nil {
		t.Fatalf("AutoARIMA failed: %v", err)
	}

	t.Logf("Selected model: %s", result.Order)
	t.Logf("AIC: %f, BIC: %f", result.AIC, result.BIC)

	// 3 x 3 x 2 candidate orders
	if got := result.ModelsEvaluated + result.ModelsFailed; got != 18 {
		t.Errorf("Expected 18 candidates, got %d", got)
	}
	if result.Criterion != result.AIC {
		t.Errorf("Criterion should be the AIC, got %f vs %f", result.Criterion, result.AIC)
	}
}

func TestAutoARIMASelectsMinimum(t *testing.T) {
	series := ar1Series(120)
	config := DefaultConfig()

	result, err := AutoARIMA(series, config)
	if err != nil {
		t.Fatalf("AutoARIMA failed: %v", err)
	}

	// No single fit in the grid may beat the selected criterion.
	for d := 0; d <= config.MaxD; d++ {
		for p := 0; p <= config.MaxP; p++ {
			for q := 0; q <= config.MaxQ; q++ {
				s := &search{series: series, config: config}
				c, ok := s.try(p, d, q)
				if ok && c < result.Criterion {
					t.Errorf("ARIMA(%d,%d,%d) has AIC %f below selected %f", p, d, q, c, result.Criterion)
				}
			}
		}
	}
}

func TestAutoARIMANonStationary(t *testing.T) {
	n := 200
	values := make([]float64, n)
	values[0] = 100
	for i := 1; i < n; i++ {
		values[i] = values[i-1] + float64(i%5-2)/2
	}

	result, err := AutoARIMA(timeseries.FromValues(1800, values), DefaultConfig())
	if err != nil {
		t.Fatalf("AutoARIMA failed: %v", err)
	}

	t.Logf("Selected model: %s, AIC: %f", result.Order, result.AIC)
}

func TestAutoARIMAShortAnnualSeries(t *testing.T) {
	series := timeseries.FromValues(2019, []float64{260, 274, 294, 283, 295})

	result, err := AutoARIMA(series, nil)
	if err != nil {
		t.Fatalf("AutoARIMA failed: %v", err)
	}
	if result.ModelsFailed == 0 {
		t.Error("Expected some high orders to be rejected on five points")
	}

	forecasts, err := result.Predict(3)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	for i, f := range forecasts {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Errorf("Forecast %d is NaN or Inf", i)
		}
	}
	t.Logf("Selected %s, forecasts %v", result.Order, forecasts)
}

func TestAutoARIMANoViableOrder(t *testing.T) {
	series := timeseries.FromValues(2020, []float64{100, 100, 100})

	_, err := AutoARIMA(series, DefaultConfig())
	if !errors.Is(err, ErrNoViableOrder) {
		t.Errorf("Expected ErrNoViableOrder, got %v", err)
	}
}

func TestAutoARIMAInvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.Criterion = "hqic"

	if _, err := AutoARIMA(ar1Series(50), config); err == nil {
		t.Error("Expected error for unknown criterion")
	}
}

func TestAutoARIMAPredict(t *testing.T) {
	n := 100
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = 100 + float64(i)/10 + float64(i%5-2)
	}

	result, err := AutoARIMA(timeseries.FromValues(1900, values), DefaultConfig())
	if err != nil {
		t.Fatalf("AutoARIMA failed: %v", err)
	}

	forecasts, err := result.Predict(5)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(forecasts) != 5 {
		t.Errorf("Expected 5 forecasts, got %d", len(forecasts))
	}
	for i, f := range forecasts {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Errorf("Forecast %d is NaN or Inf", i)
		}
	}
}

func TestAutoARIMAResiduals(t *testing.T) {
	n := 100
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = 100 + float64(i%5-2)
	}

	result, err := AutoARIMA(timeseries.FromValues(1900, values), DefaultConfig())
	if err != nil {
		t.Fatalf("AutoARIMA failed: %v", err)
	}

	residuals := result.Residuals()
	if len(residuals) == 0 {
		t.Error("Residuals should not be empty")
	}

	var empty Result
	if empty.Residuals() != nil {
		t.Error("Empty result should have no residuals")
	}
	if _, err := empty.Predict(1); !errors.Is(err, ErrNoViableOrder) {
		t.Errorf("Expected ErrNoViableOrder, got %v", err)
	}
}

func TestAutoARIMACriteria(t *testing.T) {
	series := ar1Series(100)

	for _, criterion := range []string{"aic", "aicc", "bic"} {
		t.Run(criterion, func(t *testing.T) {
			config := DefaultConfig()
			config.Criterion = criterion

			result, err := AutoARIMA(series, config)
			if err != nil {
				t.Fatalf("AutoARIMA failed: %v", err)
			}

			want := map[string]float64{"aic": result.AIC, "aicc": result.AICc, "bic": result.BIC}[criterion]
			if result.Criterion != want {
				t.Errorf("Criterion value %f does not match %s %f", result.Criterion, criterion, want)
			}
			t.Logf("%s: %s", criterion, result.Order)
		})
	}
}

func TestAutoARIMAStepwise(t *testing.T) {
	config := DefaultConfig()
	config.Stepwise = true
	config.MaxP = 3
	config.MaxQ = 3

	result, err := AutoARIMA(ar1Series(150), config)
	if err != nil {
		t.Fatalf("AutoARIMA failed: %v", err)
	}

	// Stepwise visits at most the full grid.
	if total := result.ModelsEvaluated + result.ModelsFailed; total > 4*4*2 {
		t.Errorf("Stepwise tried %d orders, more than the grid", total)
	}
	t.Logf("Stepwise search: %s, models evaluated: %d", result.Order, result.ModelsEvaluated)
}

func TestAutoARIMATestDifferencing(t *testing.T) {
	n := 150
	values := make([]float64, n)
	values[0] = 100
	for i := 1; i < n; i++ {
		values[i] = values[i-1] + 0.5 + float64(i%5-2)/5
	}
	series := timeseries.FromValues(1850, values)

	for _, strategy := range []string{DifferencingKPSS, DifferencingADF} {
		t.Run(strategy, func(t *testing.T) {
			config := DefaultConfig()
			config.Differencing = strategy

			result, err := AutoARIMA(series, config)
			if err != nil {
				t.Fatalf("AutoARIMA failed: %v", err)
			}

			// d is fixed by the test, so only p and q are searched.
			if total := result.ModelsEvaluated + result.ModelsFailed; total != 9 {
				t.Errorf("Expected 9 candidates, got %d", total)
			}
			t.Logf("%s selected: %s", strategy, result.Order)
		})
	}
}

func TestCandidateDifferencing(t *testing.T) {
	series := timeseries.FromValues(2019, []float64{260, 274, 294, 283, 295})

	config := DefaultConfig()
	if got := candidateDifferencing(series, config); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("Expected [0 1], got %v", got)
	}

	config.Differencing = DifferencingKPSS
	if got := candidateDifferencing(series, config); len(got) != 1 || got[0] != 0 {
		t.Errorf("Expected [0] for a sample too short to test, got %v", got)
	}

	config.MaxD = 0
	if got := candidateDifferencing(series, config); len(got) != 1 || got[0] != 0 {
		t.Errorf("Expected [0] with MaxD=0, got %v", got)
	}
}

func TestAutoARIMADeterministic(t *testing.T) {
	series := timeseries.FromValues(2015, []float64{120, 131, 129, 140, 152, 149, 160, 171})

	first, err := AutoARIMA(series, nil)
	if err != nil {
		t.Fatalf("AutoARIMA failed: %v", err)
	}
	second, err := AutoARIMA(series, nil)
	if err != nil {
		t.Fatalf("AutoARIMA failed: %v", err)
	}

	if first.Order != second.Order || first.AIC != second.AIC {
		t.Errorf("Search is not deterministic: %s/%f vs %s/%f",
			first.Order, first.AIC, second.Order, second.AIC)
	}
}
