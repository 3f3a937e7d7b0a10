// Package stats provides statistical tests and analysis functions for time series.
//
// # Stationarity Tests
//
//	// Augmented Dickey-Fuller, H0: unit root
//	adf := stats.ADF(values, 0)
//
//	// KPSS, H0: stationary around a level ("c") or trend ("ct")
//	kpss := stats.KPSS(values, "c", 0)
//
// Both return nil when the sample is shorter than MinTestObs.
//
// # Differencing Analysis
//
//	d := stats.NDiffs(values, 2, "kpss")
//
// # Autocorrelation Functions
//
//	acf := stats.ACF(values, 10)
//	pacf := stats.PACF(values, 10)
//	significant := stats.SignificantLags(pacf, len(values))
//	phi := stats.YuleWalker(acf, 2)
//
// # Residual Diagnostics
//
//	lb := stats.LjungBox(residuals, 10, p+q)
//	bp := stats.BoxPierce(residuals, 10, p+q)
//	dw, ok := stats.DurbinWatson(residuals)
//
// # Trend Regression
//
//	trend, err := stats.FitLinearTrend(periods, values)
//	next := trend.At(float64(last + 1))
package stats
