// Package autoarima selects an ARIMA order automatically.
//
// By default every order with p in [0, MaxP], d in [0, MaxD] and q in
// [0, MaxQ] is fitted and the one with the lowest information criterion is
// kept:
//
//	result, err := autoarima.AutoARIMA(series, autoarima.DefaultConfig())
//	if errors.Is(err, autoarima.ErrNoViableOrder) {
//	    // every candidate failed to fit
//	}
//	fmt.Println(result.Order, result.AIC)
//	forecasts, _ := result.Predict(3)
//
// Config.Differencing set to "kpss" or "adf" fixes d with stats.NDiffs
// instead of searching it, and Config.Stepwise replaces the exhaustive search
// over p and q with a neighbourhood search.
package autoarima
