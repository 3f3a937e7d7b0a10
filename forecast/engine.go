// Package forecast produces short-horizon forecasts for annual series.
//
// Forecast walks a fallback ladder: automatic ARIMA order search, then a
// fixed ARIMA(1,1,1), then a linear trend, then the last observation held
// flat. Once the input is valid a result is always returned; the rung that
// produced it is recorded in Result.ModelUsed and Result.Attempts.
package forecast

import (
	"errors"
	"fmt"
	"math"

	"github.com/sartorproj/revforecast/arima"
	"github.com/sartorproj/revforecast/autoarima"
	"github.com/sartorproj/revforecast/stats"
	"github.com/sartorproj/revforecast/timeseries"
)

// MinARIMAObs is the shortest series for which ARIMA is attempted.
const MinARIMAObs = 3

// Strategy names recorded in Result.Attempts.
const (
	StrategyAutoARIMA  = "auto_arima"
	StrategyFixedARIMA = "fixed_arima"
	StrategyLinear     = "linear_regression"
	StrategyLastValue  = "last_value"
)

// diagnosticLags is the number of residual lags checked for autocorrelation.
const diagnosticLags = 10

// outcome is the successful product of one ladder rung.
type outcome struct {
	values      []float64
	order       *arima.Order
	aic         float64
	diagnostics *Diagnostics
}

type rung struct {
	strategy string
	model    Model
	note     string
	fit      func() (outcome, error)
}

// Forecast projects series horizon periods past its last period.
// The returned error is always a *Error.
func Forecast(entityID string, series *timeseries.Series, horizon int, opts ...Option) (*Result, error) {
	o := newOptions(opts)
	if err := validate(entityID, series, horizon); err != nil {
		return nil, err
	}

	periods := series.FuturePeriods(horizon)
	linear := func() (outcome, error) { return linearOutcome(series, periods) }
	last := func() (outcome, error) { return lastValueOutcome(series, len(periods)), nil }

	if series.Len() < MinARIMAObs {
		note := fmt.Sprintf("fewer than %d observations, linear trend only", MinARIMAObs)
		return run(entityID, periods, o, []rung{
			{strategy: StrategyLinear, model: ModelLinearRegression, note: note, fit: linear},
			{strategy: StrategyLastValue, model: ModelLinearRegression, note: note + ", held last value flat", fit: last},
		})
	}

	fixed := o.fallbackOrder
	return run(entityID, periods, o, []rung{
		{
			strategy: StrategyAutoARIMA,
			model:    ModelARIMA,
			fit:      func() (outcome, error) { return autoOutcome(series, horizon, o.search) },
		},
		{
			strategy: StrategyFixedARIMA,
			model:    ModelARIMAFallback,
			note:     fmt.Sprintf("automatic order search failed, used %s", fixed),
			fit:      func() (outcome, error) { return fixedOutcome(series, horizon, fixed) },
		},
		{
			strategy: StrategyLinear,
			model:    ModelARIMAFallback,
			note:     "ARIMA fits failed, used linear trend",
			fit:      linear,
		},
		{
			strategy: StrategyLastValue,
			model:    ModelARIMAFallback,
			note:     "all fits failed, held last value flat",
			fit:      last,
		},
	})
}

// Baseline returns the linear trend projection regardless of series length.
func Baseline(entityID string, series *timeseries.Series, horizon int, opts ...Option) (*Result, error) {
	o := newOptions(opts)
	if err := validate(entityID, series, horizon); err != nil {
		return nil, err
	}

	periods := series.FuturePeriods(horizon)
	return run(entityID, periods, o, []rung{
		{
			strategy: StrategyLinear,
			model:    ModelLinearRegression,
			fit:      func() (outcome, error) { return linearOutcome(series, periods) },
		},
		{
			strategy: StrategyLastValue,
			model:    ModelLinearRegression,
			note:     "linear trend failed, held last value flat",
			fit:      func() (outcome, error) { return lastValueOutcome(series, len(periods)), nil },
		},
	})
}

func validate(entityID string, series *timeseries.Series, horizon int) *Error {
	if series.Len() == 0 {
		return newError(entityID, CodeInsufficientData, "series has no observations", timeseries.ErrEmpty)
	}
	if err := series.Validate(); err != nil {
		if errors.Is(err, timeseries.ErrEmpty) {
			return newError(entityID, CodeInsufficientData, err.Error(), err)
		}
		return newError(entityID, CodeInvalidInput, err.Error(), err)
	}
	if horizon < 1 {
		return newError(entityID, CodeInvalidInput, fmt.Sprintf("horizon must be at least 1, got %d", horizon), nil)
	}
	return nil
}

// run walks the rungs in order and builds the result from the first success.
func run(entityID string, periods []int, o *options, rungs []rung) (*Result, error) {
	attempts := make([]Attempt, 0, len(rungs))
	var failures []error

	for _, r := range rungs {
		out, err := attempt(r.fit)
		if err == nil {
			if len(out.values) != len(periods) {
				err = fmt.Errorf("got %d values for %d periods", len(out.values), len(periods))
			} else if !allFinite(out.values) {
				err = errors.New("non-finite forecast value")
			}
		}
		if err != nil {
			o.logger.Debug("forecast attempt failed",
				"entity", entityID, "strategy", r.strategy, "error", err)
			attempts = append(attempts, Attempt{Strategy: r.strategy, Order: out.order, Err: err.Error()})
			failures = append(failures, fmt.Errorf("%s: %w", r.strategy, err))
			continue
		}
		attempts = append(attempts, Attempt{Strategy: r.strategy, Order: out.order})

		points := make([]Point, len(periods))
		for i, p := range periods {
			points[i] = Point{Period: p, Value: out.values[i]}
		}

		note := r.note
		if note != "" && len(failures) > 0 {
			note = fmt.Sprintf("%s: %v", note, failures[0])
		}

		result := &Result{
			EntityID:    entityID,
			Points:      points,
			ModelUsed:   r.model,
			GeneratedAt: o.now(),
			Order:       out.order,
			AIC:         out.aic,
			Note:        note,
			Attempts:    attempts,
			Diagnostics: out.diagnostics,
		}
		o.logger.Debug("forecast produced",
			"entity", entityID, "model", result.ModelUsed, "strategy", r.strategy, "horizon", len(points))
		return result, nil
	}

	// The last-value rung cannot fail on a validated series.
	return nil, newError(entityID, CodeInvalidInput, "no model could be fitted", errors.Join(failures...))
}

// attempt runs fit, turning a panic into an error.
func attempt(fit func() (outcome, error)) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = outcome{}, fmt.Errorf("panic: %v", r)
		}
	}()
	return fit()
}

func autoOutcome(series *timeseries.Series, horizon int, cfg *autoarima.Config) (outcome, error) {
	result, err := autoarima.AutoARIMA(series, cfg)
	if err != nil {
		return outcome{}, err
	}
	order := result.Order
	values, err := result.Predict(horizon)
	if err != nil {
		return outcome{order: &order}, err
	}
	return outcome{
		values:      values,
		order:       &order,
		aic:         result.AIC,
		diagnostics: residualDiagnostics(result.Model.Summary(), result.Residuals()),
	}, nil
}

func fixedOutcome(series *timeseries.Series, horizon int, order arima.Order) (outcome, error) {
	model := arima.New(order.P, order.D, order.Q)
	if err := model.Fit(series); err != nil {
		return outcome{order: &order}, err
	}
	values, err := model.Predict(horizon)
	if err != nil {
		return outcome{order: &order}, err
	}
	return outcome{
		values:      values,
		order:       &order,
		aic:         model.AIC,
		diagnostics: residualDiagnostics(model.Summary(), model.Residuals()),
	}, nil
}

// linearOutcome evaluates the OLS line of value on period at each future
// period. A single observation gives a flat line through that value.
func linearOutcome(series *timeseries.Series, periods []int) (outcome, error) {
	trend, err := stats.FitLinearTrend(series.Periods(), series.Values())
	if err != nil {
		return outcome{}, err
	}
	values := make([]float64, len(periods))
	for i, p := range periods {
		values[i] = trend.At(float64(p))
	}
	return outcome{values: values}, nil
}

// lastValueOutcome repeats the final observation over the horizon.
func lastValueOutcome(series *timeseries.Series, horizon int) outcome {
	last := series.Observations[series.Len()-1].Value
	values := make([]float64, horizon)
	for i := range values {
		values[i] = last
	}
	return outcome{values: values}
}

// residualDiagnostics summarizes how much autocorrelation the fitted model
// left in its residuals.
func residualDiagnostics(summary *arima.Summary, residuals []float64) *Diagnostics {
	if summary == nil || len(residuals) == 0 {
		return nil
	}
	d := &Diagnostics{
		Residuals: len(residuals),
		LjungBox:  summary.LjungBox,
		BoxPierce: summary.BoxPierce,
	}
	if dw, ok := stats.DurbinWatson(residuals); ok {
		d.DurbinWatson = &dw
	}
	if acf := stats.ACF(residuals, diagnosticLags); acf != nil {
		d.ACFLags = stats.SignificantLags(acf, len(residuals))
	}
	if pacf := stats.PACF(residuals, diagnosticLags); pacf != nil {
		d.PACFLags = stats.SignificantLags(pacf, len(residuals))
	}
	return d
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
