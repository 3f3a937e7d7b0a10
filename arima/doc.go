// Package arima implements non-seasonal ARIMA(p,d,q) models for short annual
// series.
//
// Models are fitted by conditional sum of squares: the series is differenced
// d times, standardized, and the AR and MA coefficients are found by gradient
// descent with backtracking, starting from Yule-Walker estimates. Coefficients
// are bounded to (-0.99, 0.99).
//
//	model := arima.New(1, 1, 1)
//	if err := model.Fit(series); err != nil {
//	    // errors.Is(err, arima.ErrInsufficientData), ErrDegenerate, ErrNotConverged
//	}
//	forecasts, _ := model.Predict(3)
//
// Fit needs at least p+q+2 values after differencing and rejects a
// differenced series with zero variance. For automatic order selection, use
// the autoarima package.
package arima
