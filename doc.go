// Package revforecast forecasts annual company financials and macroeconomic
// indicators.
//
// For each tracked entity the forecast engine chooses between an automatically
// selected ARIMA model and a linear trend, and falls back to simpler models
// when the preferred one cannot be fitted. A forecast never fails once its
// input has been validated.
//
// # Quick Start
//
//	series, _ := timeseries.New(
//	    []int{2019, 2020, 2021, 2022, 2023},
//	    []float64{260, 274, 294, 283, 295},
//	)
//	result, err := forecast.Forecast("company_revenue/Apple", series, 3)
//	if err != nil {
//	    // *forecast.Error with code INSUFFICIENT_DATA or INVALID_INPUT
//	}
//	// result.ModelUsed is ARIMA, ARIMA_FALLBACK or LINEAR_REGRESSION
//
// # Packages
//
//   - timeseries: annual series, validation and CSV I/O
//   - stats: autocorrelation, stationarity tests, trend regression
//   - arima: ARIMA(p,d,q) fitted by conditional sum of squares
//   - autoarima: order selection by information criterion
//   - forecast: the fallback ladder, backtesting and the error taxonomy
//   - store: the series source and forecast sink, backed by SQLite or MySQL
//   - pipeline: concurrent forecast passes over a store, with scheduling
//   - api: HTTP access to stored and on-demand forecasts
//   - config, telemetry, report: environment config, tracing, console tables
//
// The forecaster command in cmd/forecaster ties these together.
//
// # References
//
//   - Hyndman, R.J., & Athanasopoulos, G. (2021). Forecasting: Principles and Practice
//   - Box, G. E. P., & Jenkins, G. M. (1976). Time Series Analysis: Forecasting and Control
package revforecast
