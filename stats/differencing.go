package stats

import (
	"math"
)

// Diff applies first differencing d times. It returns an empty slice when
// the input is too short.
func Diff(values []float64, d int) []float64 {
	current := values
	for k := 0; k < d; k++ {
		if len(current) < 2 {
			return []float64{}
		}
		next := make([]float64, len(current)-1)
		for i := 1; i < len(current); i++ {
			next[i-1] = current[i] - current[i-1]
		}
		current = next
	}
	out := make([]float64, len(current))
	copy(out, current)
	return out
}

// NDiffs estimates how many first differences are needed for stationarity.
// testType is "kpss" (default) or "adf". When a test cannot run because the
// sample is too small, differencing stops at the current order rather than
// differencing blindly.
func NDiffs(values []float64, maxD int, testType string) int {
	if maxD <= 0 {
		maxD = 2
	}

	current := values
	for d := 0; d < maxD; d++ {
		switch testType {
		case "adf":
			result := ADF(current, 0)
			if result == nil || result.IsStationary {
				return d
			}
		default:
			result := KPSS(current, "c", 0)
			if result == nil || result.IsStationary {
				return d
			}
		}
		current = Diff(current, 1)
	}

	return maxD
}

// InformationCriteria holds AIC, AICc, BIC and the log-likelihood of a fit.
type InformationCriteria struct {
	AIC    float64
	AICc   float64
	BIC    float64
	LogLik float64
}

// CalculateIC calculates all information criteria from a log-likelihood, the
// number of observations and the number of estimated parameters.
func CalculateIC(logLik float64, nObs int, nParams int) *InformationCriteria {
	k := float64(nParams)
	n := float64(nObs)

	aic := -2*logLik + 2*k
	return &InformationCriteria{
		AIC:    aic,
		AICc:   AICc(aic, nObs, nParams),
		BIC:    -2*logLik + k*math.Log(n),
		LogLik: logLik,
	}
}

// AICc applies the small-sample correction 2k(k+1)/(n-k-1) to an AIC.
// It is +Inf when n-k-1 <= 0.
func AICc(aic float64, nObs int, nParams int) float64 {
	k := float64(nParams)
	n := float64(nObs)
	if n-k-1 <= 0 {
		return math.Inf(1)
	}
	return aic + 2*k*(k+1)/(n-k-1)
}

// GaussianLogLik is the concentrated Gaussian log-likelihood of n residuals
// with sum of squares sse.
func GaussianLogLik(sse float64, n int) float64 {
	if n <= 0 || sse <= 0 {
		return math.Inf(-1)
	}
	nf := float64(n)
	sigma2 := sse / nf
	return -nf / 2 * (math.Log(2*math.Pi*sigma2) + 1)
}
