package stats

import (
	"math"
)

// LjungBoxResult represents the result of a Ljung-Box test.
type LjungBoxResult struct {
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
	Lags      int     `json:"lags"`
	DOF       int     `json:"dof"` // Degrees of freedom
}

// LjungBox tests residuals for autocorrelation up to the given lag.
// fitdf is the number of estimated ARMA parameters (p + q). Returns nil when
// the residuals are too short or have zero variance.
func LjungBox(residuals []float64, lags, fitdf int) *LjungBoxResult {
	n := len(residuals)
	if n < 4 || lags < 1 {
		return nil
	}
	lags = min(lags, n-1)

	acf := ACF(residuals, lags)
	if acf == nil {
		return nil
	}

	q := 0.0
	for k := 1; k <= lags; k++ {
		q += acf[k] * acf[k] / float64(n-k)
	}
	q *= float64(n * (n + 2))

	dof := max(lags-fitdf, 1)
	return &LjungBoxResult{
		Statistic: q,
		PValue:    1 - chiSquaredCDF(q, dof),
		Lags:      lags,
		DOF:       dof,
	}
}

// BoxPierce is the unweighted variant of LjungBox.
func BoxPierce(residuals []float64, lags, fitdf int) *LjungBoxResult {
	n := len(residuals)
	if n < 4 || lags < 1 {
		return nil
	}
	lags = min(lags, n-1)

	acf := ACF(residuals, lags)
	if acf == nil {
		return nil
	}

	q := 0.0
	for k := 1; k <= lags; k++ {
		q += acf[k] * acf[k]
	}
	q *= float64(n)

	dof := max(lags-fitdf, 1)
	return &LjungBoxResult{
		Statistic: q,
		PValue:    1 - chiSquaredCDF(q, dof),
		Lags:      lags,
		DOF:       dof,
	}
}

// DurbinWatson returns the Durbin-Watson statistic of residuals.
// Values near 2 indicate no first-order autocorrelation. ok is false when the
// statistic is undefined.
func DurbinWatson(residuals []float64) (stat float64, ok bool) {
	if len(residuals) < 2 {
		return 0, false
	}

	num, den := 0.0, 0.0
	for i, r := range residuals {
		den += r * r
		if i > 0 {
			d := r - residuals[i-1]
			num += d * d
		}
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}

// chiSquaredCDF is P(k/2, x/2), the regularized lower incomplete gamma.
func chiSquaredCDF(x float64, k int) float64 {
	if x <= 0 {
		return 0
	}
	a := float64(k) / 2
	return lowerIncompleteGamma(a, x/2) / math.Gamma(a)
}

// lowerIncompleteGamma calculates the lower incomplete gamma function.
func lowerIncompleteGamma(a, x float64) float64 {
	if x < 0 || a <= 0 {
		return 0
	}
	if x < a+1 {
		return gammaIncSeries(a, x)
	}
	return math.Gamma(a) - gammaIncCF(a, x)
}

// gammaIncSeries evaluates the lower incomplete gamma by series expansion.
func gammaIncSeries(a, x float64) float64 {
	if x == 0 {
		return 0
	}

	const (
		maxIter = 200
		eps     = 1e-10
	)

	ap := a
	sum := 1.0 / a
	del := sum
	for n := 1; n < maxIter; n++ {
		ap++
		del *= x / ap
		sum += del
		if math.Abs(del) < math.Abs(sum)*eps {
			break
		}
	}

	lg, _ := math.Lgamma(a)
	return sum * math.Exp(-x+a*math.Log(x)-lg) * math.Gamma(a)
}

// gammaIncCF evaluates the upper incomplete gamma by continued fraction.
func gammaIncCF(a, x float64) float64 {
	const (
		maxIter = 200
		eps     = 1e-10
		fpmin   = 1e-30
	)

	b := x + 1 - a
	c := 1.0 / fpmin
	d := 1.0 / b
	h := d
	for i := 1; i < maxIter; i++ {
		an := -float64(i) * (float64(i) - a)
		b += 2
		d = an*d + b
		if math.Abs(d) < fpmin {
			d = fpmin
		}
		c = b + an/c
		if math.Abs(c) < fpmin {
			c = fpmin
		}
		d = 1.0 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < eps {
			break
		}
	}

	lg, _ := math.Lgamma(a)
	return math.Exp(-x+a*math.Log(x)-lg) * h * math.Gamma(a)
}
