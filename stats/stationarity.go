package stats

import (
	"math"
)

// MinTestObs is the smallest sample the stationarity tests will run on.
// Annual series are short, so this is lower than the textbook minimum.
const MinTestObs = 8

// ADFResult represents the result of an Augmented Dickey-Fuller test.
type ADFResult struct {
	Statistic    float64
	PValue       float64
	Lags         int
	NObs         int
	CriticalVals map[string]float64 // Critical values at 1%, 5%, 10%
	IsStationary bool
}

// ADF performs the Augmented Dickey-Fuller test for a unit root.
// The null hypothesis is that the series is non-stationary; it is rejected when
// the p-value falls below 0.05. Returns nil when the sample is too small.
func ADF(values []float64, maxLag int) *ADFResult {
	n := len(values)
	if n < MinTestObs {
		return nil
	}

	// Schwert-style default: floor((n-1)^(1/3))
	if maxLag <= 0 {
		maxLag = int(math.Floor(math.Pow(float64(n-1), 1.0/3.0)))
	}
	maxLag = min(maxLag, n-3)

	diff := Diff(values, 1)

	// delta_y_t = alpha + beta*y_{t-1} + sum(gamma_i * delta_y_{t-i})
	nObs := len(diff) - maxLag
	if nObs < maxLag+3 {
		return nil
	}

	y := make([]float64, nObs)
	x := make([][]float64, nObs)
	for i := 0; i < nObs; i++ {
		t := i + maxLag
		y[i] = diff[t]

		x[i] = make([]float64, 2+maxLag)
		x[i][0] = 1
		x[i][1] = values[t]
		for j := 1; j <= maxLag; j++ {
			x[i][1+j] = diff[t-j]
		}
	}

	coeffs, se := OLS(x, y)
	if len(coeffs) < 2 || len(se) < 2 || se[1] == 0 {
		return nil
	}

	tStat := coeffs[1] / se[1]
	pValue := mackinnonPValue(tStat)

	return &ADFResult{
		Statistic: tStat,
		PValue:    pValue,
		Lags:      maxLag,
		NObs:      nObs,
		CriticalVals: map[string]float64{
			"1%":  -3.43,
			"5%":  -2.86,
			"10%": -2.57,
		},
		IsStationary: pValue < 0.05,
	}
}

// KPSSResult represents the result of a KPSS test.
type KPSSResult struct {
	Statistic    float64
	PValue       float64
	Lags         int
	CriticalVals map[string]float64
	IsStationary bool
}

// KPSS performs the Kwiatkowski-Phillips-Schmidt-Shin test.
// The null hypothesis is stationarity around a level ("c") or a trend ("ct").
// Returns nil when the sample is too small.
func KPSS(values []float64, regression string, nlags int) *KPSSResult {
	n := len(values)
	if n < MinTestObs {
		return nil
	}

	if nlags <= 0 {
		nlags = int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	}
	nlags = min(nlags, n-1)

	residuals := make([]float64, n)
	if regression == "ct" {
		index := make([]float64, n)
		for i := range index {
			index[i] = float64(i)
		}
		trend, err := FitLine(index, values)
		if err != nil {
			return nil
		}
		for i, v := range values {
			residuals[i] = v - trend.At(index[i])
		}
	} else {
		mean := Mean(values)
		for i, v := range values {
			residuals[i] = v - mean
		}
	}

	// Newey-West long-run variance with Bartlett weights.
	s2 := 0.0
	for _, r := range residuals {
		s2 += r * r
	}
	s2 /= float64(n)
	for l := 1; l <= nlags; l++ {
		cov := 0.0
		for i := l; i < n; i++ {
			cov += residuals[i] * residuals[i-l]
		}
		cov /= float64(n)
		s2 += 2 * (1 - float64(l)/float64(nlags+1)) * cov
	}
	if s2 <= 0 {
		s2 = 1e-10
	}

	etaSq, cum := 0.0, 0.0
	for _, r := range residuals {
		cum += r
		etaSq += cum * cum
	}
	stat := etaSq / (float64(n) * float64(n) * s2)

	critical := map[string]float64{"10%": 0.347, "5%": 0.463, "1%": 0.739}
	if regression == "ct" {
		critical = map[string]float64{"10%": 0.119, "5%": 0.146, "1%": 0.216}
	}

	pValue := kpssPValue(stat, regression)
	return &KPSSResult{
		Statistic:    stat,
		PValue:       pValue,
		Lags:         nlags,
		CriticalVals: critical,
		IsStationary: pValue >= 0.05,
	}
}

// OLS performs ordinary least squares of y on the rows of x.
// It returns the coefficients and their standard errors; standard errors are
// nil when there are no residual degrees of freedom. Both are nil when X'X is
// singular.
func OLS(x [][]float64, y []float64) (coeffs, stdErrors []float64) {
	n := len(y)
	if n == 0 || len(x) != n {
		return nil, nil
	}

	k := len(x[0])
	xtx := make([][]float64, k)
	for i := range xtx {
		xtx[i] = make([]float64, k)
	}
	xty := make([]float64, k)

	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			xty[j] += x[i][j] * y[i]
			for l := 0; l < k; l++ {
				xtx[j][l] += x[i][j] * x[i][l]
			}
		}
	}

	xtxInv := invertMatrix(xtx)
	if xtxInv == nil {
		return nil, nil
	}

	coeffs = make([]float64, k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			coeffs[i] += xtxInv[i][j] * xty[j]
		}
	}

	if n <= k {
		return coeffs, nil
	}

	sse := 0.0
	for i := 0; i < n; i++ {
		pred := 0.0
		for j := 0; j < k; j++ {
			pred += coeffs[j] * x[i][j]
		}
		r := y[i] - pred
		sse += r * r
	}

	s2 := sse / float64(n-k)
	stdErrors = make([]float64, k)
	for i := 0; i < k; i++ {
		stdErrors[i] = math.Sqrt(s2 * xtxInv[i][i])
	}

	return coeffs, stdErrors
}

// invertMatrix inverts a square matrix using Gauss-Jordan elimination with
// partial pivoting. Returns nil for a singular matrix.
func invertMatrix(m [][]float64) [][]float64 {
	n := len(m)
	if n == 0 {
		return nil
	}

	aug := make([][]float64, n)
	for i := 0; i < n; i++ {
		aug[i] = make([]float64, 2*n)
		copy(aug[i][:n], m[i])
		aug[i][n+i] = 1
	}

	for i := 0; i < n; i++ {
		pivotRow := i
		for k := i + 1; k < n; k++ {
			if math.Abs(aug[k][i]) > math.Abs(aug[pivotRow][i]) {
				pivotRow = k
			}
		}
		aug[i], aug[pivotRow] = aug[pivotRow], aug[i]

		if math.Abs(aug[i][i]) < 1e-10 {
			return nil
		}

		pivot := aug[i][i]
		for j := range aug[i] {
			aug[i][j] /= pivot
		}
		for k := 0; k < n; k++ {
			if k == i {
				continue
			}
			factor := aug[k][i]
			for j := range aug[k] {
				aug[k][j] -= factor * aug[i][j]
			}
		}
	}

	inv := make([][]float64, n)
	for i := range inv {
		inv[i] = make([]float64, n)
		copy(inv[i], aug[i][n:])
	}
	return inv
}

// mackinnonPValue maps an ADF statistic (constant, no trend) to an approximate
// p-value by interpolating MacKinnon's asymptotic critical values.
func mackinnonPValue(stat float64) float64 {
	switch {
	case stat < -3.96:
		return 0.001
	case stat < -3.43:
		return 0.01
	case stat < -2.86:
		return 0.05
	case stat < -2.57:
		return 0.10
	case stat < -1.94:
		return 0.25
	case stat < -1.62:
		return 0.50
	default:
		return math.Min(0.5+(stat+1.62)*0.25, 0.99)
	}
}

// kpssPValue approximates the KPSS p-value from tabulated critical values.
func kpssPValue(stat float64, regression string) float64 {
	if regression == "ct" {
		switch {
		case stat > 0.216:
			return 0.01
		case stat > 0.146:
			return 0.05
		case stat > 0.119:
			return 0.10
		default:
			return 0.10 + (0.119-stat)*2
		}
	}

	switch {
	case stat > 0.739:
		return 0.01
	case stat > 0.463:
		return 0.05
	case stat > 0.347:
		return 0.10
	default:
		return 0.10 + (0.347-stat)*0.5
	}
}
