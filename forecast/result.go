package forecast

import (
	"time"

	"github.com/sartorproj/revforecast/arima"
	"github.com/sartorproj/revforecast/stats"
)

// Model identifies which rung of the fallback ladder produced a forecast.
type Model string

const (
	ModelLinearRegression Model = "LINEAR_REGRESSION"
	ModelARIMA            Model = "ARIMA"
	ModelARIMAFallback    Model = "ARIMA_FALLBACK"
)

// Point is one forecast period.
type Point struct {
	Period int     `json:"period"`
	Value  float64 `json:"value"`
}

// Attempt records one rung of the fallback ladder.
type Attempt struct {
	Strategy string       `json:"strategy"`
	Order    *arima.Order `json:"order,omitempty"`
	Err      string       `json:"error,omitempty"`
}

// Diagnostics are residual checks of the fitted ARIMA model. A Ljung-Box
// p-value below 0.05 means the model left autocorrelation unexplained.
type Diagnostics struct {
	Residuals    int                   `json:"residuals"`
	LjungBox     *stats.LjungBoxResult `json:"ljung_box,omitempty"`
	BoxPierce    *stats.LjungBoxResult `json:"box_pierce,omitempty"`
	DurbinWatson *float64              `json:"durbin_watson,omitempty"`
	ACFLags      []int                 `json:"significant_acf_lags,omitempty"`
	PACFLags     []int                 `json:"significant_pacf_lags,omitempty"`
}

// Result is a forecast for one entity. It is not modified after Forecast
// returns it.
type Result struct {
	EntityID    string       `json:"entity_id"`
	Points      []Point      `json:"points"`
	ModelUsed   Model        `json:"model_used"`
	GeneratedAt time.Time    `json:"generated_at"`
	Order       *arima.Order `json:"order,omitempty"`
	AIC         float64      `json:"aic,omitempty"`
	Note        string       `json:"note,omitempty"`
	Attempts    []Attempt    `json:"attempts,omitempty"`
	Diagnostics *Diagnostics `json:"diagnostics,omitempty"`
}

// Degraded reports whether the engine had to settle for a simpler model than
// automatic ARIMA. Note explains why.
func (r *Result) Degraded() bool {
	return r.ModelUsed != ModelARIMA && r.Note != ""
}

// Periods returns the forecast periods in order.
func (r *Result) Periods() []int {
	periods := make([]int, len(r.Points))
	for i, p := range r.Points {
		periods[i] = p.Period
	}
	return periods
}

// Values returns the forecast values in period order.
func (r *Result) Values() []float64 {
	values := make([]float64, len(r.Points))
	for i, p := range r.Points {
		values[i] = p.Value
	}
	return values
}
