package arima

import (
	"errors"
	"math"
	"testing"

	"github.com/sartorproj/revforecast/timeseries"
)

func TestNewARIMA(t *testing.T) {
	model := New(2, 1, 1)

	if model.Order.P != 2 {
		t.Errorf("Expected P=2, got %d", model.Order.P)
	}
	if model.Order.D != 1 {
		t.Errorf("Expected D=1, got %d", model.Order.D)
	}
	if model.Order.Q != 1 {
		t.Errorf("Expected Q=1, got %d", model.Order.Q)
	}
	if got := model.Order.String(); got != "ARIMA(2,1,1)" {
		t.Errorf("Expected ARIMA(2,1,1), got %s", got)
	}
}

func TestARIMAFitAR1(t *testing.T) {
	n := 200
	phi := 0.7
	values := make([]float64, n)
	values[0] = 100
	for i := 1; i < n; i++ {
		innovation := float64(i%7-3) / 3
		values[i] = phi*(values[i-1]-100) + 100 + innovation
	}

	model := New(1, 0, 0)
	if err := model.Fit(timeseries.FromValues(1900, values)); err != nil {
		t.Fatalf("Failed to fit AR(1) model: %v", err)
	}

	if len(model.ARCoeffs) != 1 {
		t.Fatalf("Expected 1 AR coefficient, got %d", len(model.ARCoeffs))
	}
	t.Logf("True AR coeff: %f, Estimated: %f", phi, model.ARCoeffs[0])

	if model.ARCoeffs[0] <= 0 || model.ARCoeffs[0] > coeffBound {
		t.Errorf("Expected a positive bounded AR coefficient, got %f", model.ARCoeffs[0])
	}

	if residuals := model.Residuals(); len(residuals) != n {
		t.Errorf("Expected %d residuals, got %d", n, len(residuals))
	}
}

func TestARIMAFitMA1(t *testing.T) {
	n := 200
	innovations := make([]float64, n)
	for i := 0; i < n; i++ {
		innovations[i] = float64(i%7-3) / 3
	}

	theta := 0.5
	values := make([]float64, n)
	values[0] = 100 + innovations[0]
	for i := 1; i < n; i++ {
		values[i] = 100 + innovations[i] + theta*innovations[i-1]
	}

	model := New(0, 0, 1)
	if err := model.Fit(timeseries.FromValues(1900, values)); err != nil {
		t.Fatalf("Failed to fit MA(1) model: %v", err)
	}

	if math.Abs(model.MACoeffs[0]) > coeffBound {
		t.Errorf("MA coefficient out of bounds: %f", model.MACoeffs[0])
	}
	t.Logf("True MA coeff: %f, Estimated: %f", theta, model.MACoeffs[0])
}

func TestARIMAFitShortAnnualSeries(t *testing.T) {
	values := []float64{260, 274, 294, 283, 295, 301, 312, 305, 318, 330}
	series := timeseries.FromValues(2014, values)

	model := New(1, 1, 1)
	if err := model.Fit(series); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	if model.Variance <= 0 || math.IsNaN(model.Variance) {
		t.Errorf("Expected a positive residual variance, got %f", model.Variance)
	}
	if math.IsNaN(model.AIC) || math.IsInf(model.AIC, 0) {
		t.Errorf("Expected a finite AIC, got %f", model.AIC)
	}
}

func TestARIMAFitWithDifferencing(t *testing.T) {
	n := 200
	values := make([]float64, n)
	values[0] = 100
	for i := 1; i < n; i++ {
		values[i] = values[i-1] + float64(i%5-2)/2
	}

	model := New(1, 1, 0)
	if err := model.Fit(timeseries.FromValues(1800, values)); err != nil {
		t.Fatalf("Failed to fit ARIMA(1,1,0) model: %v", err)
	}

	t.Logf("ARIMA(1,1,0) - AIC: %f, BIC: %f", model.AIC, model.BIC)
}

func TestARIMAPredict(t *testing.T) {
	n := 100
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = 100 + float64(i)/10 + float64(i%7-3)/2
	}

	model := New(1, 1, 0)
	if err := model.Fit(timeseries.FromValues(1900, values)); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	forecasts, err := model.Predict(5)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	if len(forecasts) != 5 {
		t.Fatalf("Expected 5 forecasts, got %d", len(forecasts))
	}

	lastValue := values[n-1]
	for i, f := range forecasts {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Errorf("Forecast %d is NaN or Inf", i)
		}
		if math.Abs(f-lastValue) > 50 {
			t.Errorf("Forecast %d is far from the last value: %f (last value: %f)", i, f, lastValue)
		}
	}

	t.Logf("Last value: %f, Forecasts: %v", lastValue, forecasts)
}

func TestARIMAPredictErrors(t *testing.T) {
	model := New(1, 0, 0)
	if _, err := model.Predict(3); !errors.Is(err, ErrNotFitted) {
		t.Errorf("Expected ErrNotFitted, got %v", err)
	}

	values := []float64{1, 3, 2, 5, 4, 6, 5, 8}
	if err := model.Fit(timeseries.FromValues(2000, values)); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	if _, err := model.Predict(0); err == nil {
		t.Error("Expected error for zero steps")
	}
}

func TestIntegrate(t *testing.T) {
	tests := []struct {
		name      string
		d         int
		data      []float64
		forecasts []float64
		want      []float64
	}{
		{"d0", 0, []float64{1, 2}, []float64{5, 6}, []float64{5, 6}},
		{"d1", 1, []float64{10, 12, 15}, []float64{1, 2}, []float64{16, 18}},
		// squares: first differences 3,5,7, second differences 2,2
		{"d2", 2, []float64{1, 4, 9, 16}, []float64{2, 2}, []float64{25, 36}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := New(0, tt.d, 0)
			model.data = tt.data

			got := model.integrate(tt.forecasts)
			for i := range tt.want {
				if math.Abs(got[i]-tt.want[i]) > 1e-12 {
					t.Errorf("Expected %v, got %v", tt.want, got)
					break
				}
			}
		})
	}
}

func TestARIMASummary(t *testing.T) {
	n := 100
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = 100 + float64(i%7-3)/2
	}

	model := New(1, 0, 1)
	if model.Summary() != nil {
		t.Error("Summary should be nil before fitting")
	}
	if err := model.Fit(timeseries.FromValues(1900, values)); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	summary := model.Summary()
	if summary == nil {
		t.Fatal("Summary should not be nil")
	}
	if summary.NObs != n {
		t.Errorf("Expected NObs=%d, got %d", n, summary.NObs)
	}
	if summary.LjungBox == nil || summary.BoxPierce == nil {
		t.Fatal("Expected portmanteau results for 100 residuals")
	}
	if summary.BoxPierce.Statistic > summary.LjungBox.Statistic {
		t.Errorf("Box-Pierce Q %f should not exceed Ljung-Box Q %f",
			summary.BoxPierce.Statistic, summary.LjungBox.Statistic)
	}

	t.Logf("Summary - AIC: %f, BIC: %f, LogLik: %f", summary.AIC, summary.BIC, summary.LogLik)
}

func TestARIMAFitErrors(t *testing.T) {
	tests := []struct {
		name    string
		order   Order
		values  []float64
		wantErr error
	}{
		{"too short", Order{5, 2, 5}, []float64{1, 2, 3}, ErrInsufficientData},
		{"111 on three points", Order{1, 1, 1}, []float64{260, 274, 294}, ErrInsufficientData},
		{"constant", Order{0, 0, 1}, []float64{100, 100, 100, 100}, ErrDegenerate},
		{"constant differences", Order{0, 1, 0}, []float64{10, 12, 14, 16}, ErrDegenerate},
		{"negative order", Order{-1, 0, 0}, []float64{1, 2, 3}, ErrInvalidOrder},
		{"empty", Order{0, 0, 0}, nil, ErrInsufficientData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := New(tt.order.P, tt.order.D, tt.order.Q)
			err := model.Fit(timeseries.FromValues(2000, tt.values))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if model.Residuals() != nil {
				t.Error("Residuals should be nil after a failed fit")
			}
		})
	}
}

func TestARIMAFitRejectsNonFinite(t *testing.T) {
	model := New(0, 0, 0)
	err := model.Fit(timeseries.FromValues(2000, []float64{1, math.NaN(), 3}))
	if !errors.Is(err, timeseries.ErrNonFinite) {
		t.Errorf("Expected ErrNonFinite, got %v", err)
	}
}

func TestARIMAResiduals(t *testing.T) {
	n := 100
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = float64(i) + float64(i%5-2)/2
	}

	model := New(1, 0, 0)
	if model.Residuals() != nil {
		t.Error("Residuals should be nil before fitting")
	}
	if err := model.Fit(timeseries.FromValues(1900, values)); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	residuals := model.Residuals()
	if len(residuals) != n {
		t.Fatalf("Expected %d residuals, got %d", n, len(residuals))
	}
	residuals[0] = math.Inf(1)
	if math.IsInf(model.Residuals()[0], 1) {
		t.Error("Residuals should return a copy")
	}
}

func TestARIMAWhiteNoise(t *testing.T) {
	n := 200
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = float64(i%7-3) / 3
	}
	series := timeseries.FromValues(1800, values)

	model := New(0, 0, 0)
	if err := model.Fit(series); err != nil {
		t.Fatalf("Failed to fit white noise: %v", err)
	}

	if math.Abs(model.Intercept-series.Mean()) > 1e-12 {
		t.Errorf("Intercept should equal the mean: got %f, expected %f", model.Intercept, series.Mean())
	}

	forecasts, err := model.Predict(2)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	for _, f := range forecasts {
		if math.Abs(f-model.Intercept) > 1e-12 {
			t.Errorf("Expected mean forecast %f, got %f", model.Intercept, f)
		}
	}
}

func TestARIMADeterministic(t *testing.T) {
	series := timeseries.FromValues(2019, []float64{260, 274, 294, 283, 295})

	run := func() ([]float64, float64) {
		model := New(1, 0, 1)
		if err := model.Fit(series); err != nil {
			t.Fatalf("Failed to fit: %v", err)
		}
		f, err := model.Predict(3)
		if err != nil {
			t.Fatalf("Failed to predict: %v", err)
		}
		return f, model.AIC
	}

	f1, aic1 := run()
	f2, aic2 := run()
	if aic1 != aic2 {
		t.Errorf("AIC differs between runs: %f vs %f", aic1, aic2)
	}
	for i := range f1 {
		if f1[i] != f2[i] {
			t.Errorf("Forecast %d differs between runs: %f vs %f", i, f1[i], f2[i])
		}
	}
}

func TestARIMAMultipleOrders(t *testing.T) {
	tests := []struct {
		name    string
		p, d, q int
	}{
		{"AR1", 1, 0, 0},
		{"AR2", 2, 0, 0},
		{"MA1", 0, 0, 1},
		{"MA2", 0, 0, 2},
		{"ARMA11", 1, 0, 1},
		{"ARIMA110", 1, 1, 0},
		{"ARIMA011", 0, 1, 1},
		{"ARIMA111", 1, 1, 1},
		{"ARIMA211", 2, 1, 1},
		{"ARIMA212", 2, 1, 2},
	}

	n := 150
	values := make([]float64, n)
	values[0] = 100
	for i := 1; i < n; i++ {
		values[i] = 0.6*(values[i-1]-100) + 100 + float64(i%7-3)/3
	}
	series := timeseries.FromValues(1870, values)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := New(tt.p, tt.d, tt.q)
			if err := model.Fit(series); err != nil {
				t.Fatalf("Model %s failed to fit: %v", tt.name, err)
			}

			for _, c := range append(model.ARCoeffs, model.MACoeffs...) {
				if math.Abs(c) > coeffBound {
					t.Errorf("Coefficient %f exceeds bound", c)
				}
			}

			forecasts, err := model.Predict(3)
			if err != nil {
				t.Fatalf("Prediction failed: %v", err)
			}
			if len(forecasts) != 3 {
				t.Errorf("Expected 3 forecasts, got %d", len(forecasts))
			}

			t.Logf("%s - AIC: %.2f, BIC: %.2f, Forecasts: %v",
				tt.name, model.AIC, model.BIC, forecasts)
		})
	}
}
