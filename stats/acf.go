// Package stats provides statistical tests and functions for time series analysis.
package stats

import (
	"math"
)

// ACF calculates the autocorrelation function of values for lags 0 to maxLag.
// It returns nil when the values have zero variance.
func ACF(values []float64, maxLag int) []float64 {
	n := len(values)
	maxLag = min(maxLag, n-1)
	if maxLag < 0 {
		return nil
	}

	mean := Mean(values)
	denom := 0.0
	for _, v := range values {
		diff := v - mean
		denom += diff * diff
	}
	if denom == 0 {
		return nil
	}

	acf := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		sum := 0.0
		for i := k; i < n; i++ {
			sum += (values[i] - mean) * (values[i-k] - mean)
		}
		acf[k] = sum / denom
	}

	return acf
}

// PACF calculates the partial autocorrelation function using the Durbin-Levinson
// recursion. Index 0 is always 1.
func PACF(values []float64, maxLag int) []float64 {
	maxLag = min(maxLag, len(values)-1)
	if maxLag < 1 {
		return nil
	}

	acf := ACF(values, maxLag)
	if acf == nil {
		return nil
	}

	pacf := make([]float64, maxLag+1)
	pacf[0] = 1

	phi := make([][]float64, maxLag+1)
	for i := range phi {
		phi[i] = make([]float64, maxLag+1)
	}
	phi[1][1] = acf[1]
	pacf[1] = acf[1]

	for k := 2; k <= maxLag; k++ {
		num := acf[k]
		den := 1.0
		for j := 1; j < k; j++ {
			num -= phi[k-1][j] * acf[k-j]
			den -= phi[k-1][j] * acf[j]
		}
		if den == 0 {
			continue
		}

		phi[k][k] = num / den
		pacf[k] = phi[k][k]
		for j := 1; j < k; j++ {
			phi[k][j] = phi[k-1][j] - phi[k][k]*phi[k-1][k-j]
		}
	}

	return pacf
}

// YuleWalker estimates AR coefficients of the given order from an ACF using the
// Levinson-Durbin recursion. acf must hold at least order+1 lags.
func YuleWalker(acf []float64, order int) []float64 {
	if order <= 0 || len(acf) <= order {
		return nil
	}

	phi := make([]float64, order)
	phi[0] = acf[1]
	if order == 1 {
		return phi
	}

	v := 1 - phi[0]*phi[0]
	for i := 1; i < order; i++ {
		if v <= 0 {
			break
		}
		lambda := acf[i+1]
		for j := 0; j < i; j++ {
			lambda -= phi[j] * acf[i-j]
		}
		lambda /= v

		next := make([]float64, i+1)
		for j := 0; j < i; j++ {
			next[j] = phi[j] - lambda*phi[i-1-j]
		}
		next[i] = lambda
		copy(phi, next)

		v *= 1 - lambda*lambda
	}

	return phi
}

// SignificantLags returns the lags (excluding 0) whose absolute value exceeds
// the approximate 95% bound 1.96/sqrt(n).
func SignificantLags(values []float64, n int) []int {
	if n <= 0 {
		return nil
	}
	bound := 1.96 / math.Sqrt(float64(n))

	var significant []int
	for i := 1; i < len(values); i++ {
		if math.Abs(values[i]) > bound {
			significant = append(significant, i)
		}
	}
	return significant
}

// Mean returns the arithmetic mean of values, or 0 when empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance returns the sample variance of values.
func Variance(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	mean := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return sumSq / float64(n-1)
}
