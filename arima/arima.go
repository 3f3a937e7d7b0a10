// Package arima implements ARIMA (AutoRegressive Integrated Moving Average) models.
package arima

import (
	"errors"
	"fmt"
	"math"

	"github.com/sartorproj/revforecast/stats"
	"github.com/sartorproj/revforecast/timeseries"
)

var (
	// ErrInvalidOrder is returned for a negative p, d or q.
	ErrInvalidOrder = errors.New("arima: invalid order")
	// ErrInsufficientData is returned when the differenced series is shorter
	// than p+q+2.
	ErrInsufficientData = errors.New("arima: insufficient data for order")
	// ErrDegenerate is returned when the differenced series has zero variance.
	ErrDegenerate = errors.New("arima: differenced series has zero variance")
	// ErrNotConverged is returned when the fit or forecast is not finite.
	ErrNotConverged = errors.New("arima: fit did not converge")
	// ErrNotFitted is returned by Predict before a successful Fit.
	ErrNotFitted = errors.New("arima: model must be fitted before prediction")
)

const (
	coeffBound = 0.99
	maxIter    = 200
	minStep    = 1e-8
	tolerance  = 1e-9
)

// Order represents ARIMA model order (p, d, q).
type Order struct {
	P int `json:"p"` // AR order (number of autoregressive terms)
	D int `json:"d"` // Differencing order
	Q int `json:"q"` // MA order (number of moving average terms)
}

// String formats the order as ARIMA(p,d,q).
func (o Order) String() string {
	return fmt.Sprintf("ARIMA(%d,%d,%d)", o.P, o.D, o.Q)
}

// Model represents an ARIMA model.
type Model struct {
	Order     Order
	ARCoeffs  []float64 // AR coefficients (phi)
	MACoeffs  []float64 // MA coefficients (theta)
	Intercept float64   // mean of the differenced series
	Variance  float64   // Residual variance
	AIC       float64
	AICc      float64 // Corrected AIC for small sample sizes
	BIC       float64
	LogLik    float64
	fitted    bool
	data      []float64
	diffData  []float64
	residuals []float64
}

// New creates a new ARIMA model with the specified order.
func New(p, d, q int) *Model {
	return &Model{
		Order:    Order{P: p, D: d, Q: q},
		ARCoeffs: make([]float64, max(p, 0)),
		MACoeffs: make([]float64, max(q, 0)),
	}
}

// Fit fits the model to series by conditional sum of squares.
func (m *Model) Fit(series *timeseries.Series) error {
	m.fitted = false

	p, d, q := m.Order.P, m.Order.D, m.Order.Q
	if p < 0 || d < 0 || q < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidOrder, m.Order)
	}
	if series.Len() == 0 {
		return fmt.Errorf("%w: empty series", ErrInsufficientData)
	}
	if err := series.Validate(); err != nil {
		return fmt.Errorf("arima: %w", err)
	}

	values := series.Values()
	diff := stats.Diff(values, d)
	if len(diff) < p+q+2 {
		return fmt.Errorf("%w: %s needs %d differenced values, have %d",
			ErrInsufficientData, m.Order, p+q+2, len(diff))
	}

	variance := stats.Variance(diff)
	if variance <= 0 {
		return ErrDegenerate
	}

	m.data = values
	m.diffData = diff

	if err := m.fitCSS(math.Sqrt(variance)); err != nil {
		return err
	}

	m.calculateIC()
	if math.IsNaN(m.AIC) {
		return fmt.Errorf("%w: %s information criterion is NaN", ErrNotConverged, m.Order)
	}

	m.fitted = true
	return nil
}

// fitCSS estimates the coefficients on the standardized differenced series
// and stores residuals on the original scale.
func (m *Model) fitCSS(std float64) error {
	y := m.diffData
	n := len(y)
	p, q := m.Order.P, m.Order.Q

	m.Intercept = stats.Mean(y)
	z := make([]float64, n)
	for i, v := range y {
		z[i] = (v - m.Intercept) / std
	}

	m.ARCoeffs = make([]float64, p)
	m.MACoeffs = make([]float64, q)

	if p > 0 {
		// Yule-Walker start values
		if phi := stats.YuleWalker(stats.ACF(z, p), p); phi != nil {
			for i, v := range phi {
				m.ARCoeffs[i] = clampCoeff(v)
			}
		}
	}
	for i := range m.MACoeffs {
		m.MACoeffs[i] = 0.1
	}

	if p+q > 0 {
		if err := m.optimizeCSS(z); err != nil {
			return err
		}
	}

	// Final residuals
	start := max(p, q)
	e := make([]float64, n)
	cssResiduals(z, m.ARCoeffs, m.MACoeffs, start, e)

	m.residuals = make([]float64, n)
	for t := 0; t < n; t++ {
		r := z[t]
		if t >= start {
			r = e[t]
		}
		m.residuals[t] = r * std
	}

	sse := 0.0
	count := 0
	for t := start; t < n; t++ {
		sse += m.residuals[t] * m.residuals[t]
		count++
	}
	if count > p+q+1 {
		m.Variance = sse / float64(count-p-q-1)
	} else {
		m.Variance = sse / float64(count)
	}

	for _, c := range append(append([]float64{}, m.ARCoeffs...), m.MACoeffs...) {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: %s non-finite coefficient", ErrNotConverged, m.Order)
		}
	}
	if math.IsNaN(m.Variance) || math.IsInf(m.Variance, 0) {
		return fmt.Errorf("%w: %s non-finite variance", ErrNotConverged, m.Order)
	}

	return nil
}

// optimizeCSS runs gradient descent with backtracking on the conditional sum
// of squares. A step is only taken when it lowers the SSE.
func (m *Model) optimizeCSS(z []float64) error {
	n := len(z)
	p, q := m.Order.P, m.Order.Q
	start := max(p, q)
	count := float64(n - start)

	e := make([]float64, n)
	sse := cssResiduals(z, m.ARCoeffs, m.MACoeffs, start, e)
	if math.IsNaN(sse) || math.IsInf(sse, 0) {
		return fmt.Errorf("%w: %s initial SSE is not finite", ErrNotConverged, m.Order)
	}

	arGrad := make([]float64, p)
	maGrad := make([]float64, q)
	candAR := make([]float64, p)
	candMA := make([]float64, q)
	candE := make([]float64, n)

	lr := 0.1
	for iter := 0; iter < maxIter; iter++ {
		clear(arGrad)
		clear(maGrad)
		for t := start; t < n; t++ {
			for i := 0; i < p; i++ {
				arGrad[i] -= 2 * e[t] * z[t-i-1]
			}
			for i := 0; i < q; i++ {
				maGrad[i] -= 2 * e[t] * e[t-i-1]
			}
		}

		accepted := false
		candSSE := sse
		for lr >= minStep {
			for i := range candAR {
				candAR[i] = clampCoeff(m.ARCoeffs[i] - lr*arGrad[i]/count)
			}
			for i := range candMA {
				candMA[i] = clampCoeff(m.MACoeffs[i] - lr*maGrad[i]/count)
			}
			candSSE = cssResiduals(z, candAR, candMA, start, candE)
			if candSSE < sse {
				accepted = true
				break
			}
			lr /= 2
		}
		if !accepted {
			break
		}

		improvement := sse - candSSE
		copy(m.ARCoeffs, candAR)
		copy(m.MACoeffs, candMA)
		copy(e, candE)
		sse = candSSE

		if improvement < tolerance*(1+sse) {
			break
		}
		lr = math.Min(lr*2, 1)
	}

	return nil
}

// cssResiduals fills e with one-step residuals of the zero-mean series z
// from index start on and returns their sum of squares. Residuals before
// start are taken as zero.
func cssResiduals(z, ar, ma []float64, start int, e []float64) float64 {
	clear(e)
	sse := 0.0
	for t := start; t < len(z); t++ {
		pred := 0.0
		for i := range ar {
			pred += ar[i] * z[t-i-1]
		}
		for i := range ma {
			pred += ma[i] * e[t-i-1]
		}
		e[t] = z[t] - pred
		sse += e[t] * e[t]
	}
	return sse
}

func clampCoeff(v float64) float64 {
	return math.Max(-coeffBound, math.Min(coeffBound, v))
}

// calculateIC calculates AIC, AICc, and BIC.
func (m *Model) calculateIC() {
	n := len(m.residuals)
	k := m.Order.P + m.Order.Q + 1 // AR + MA + intercept

	sse := 0.0
	for _, r := range m.residuals {
		sse += r * r
	}

	ic := stats.CalculateIC(stats.GaussianLogLik(sse, n), n, k)
	m.LogLik = ic.LogLik
	m.AIC = ic.AIC
	m.AICc = ic.AICc
	m.BIC = ic.BIC
}

// Predict generates forecasts for the specified number of steps ahead on the
// original scale.
func (m *Model) Predict(steps int) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if steps < 1 {
		return nil, errors.New("arima: steps must be at least 1")
	}

	p, q := m.Order.P, m.Order.Q
	y := m.diffData
	n := len(y)

	extY := make([]float64, n+steps)
	copy(extY, y)
	extResiduals := make([]float64, n+steps)
	copy(extResiduals, m.residuals)

	for h := 0; h < steps; h++ {
		t := n + h
		pred := m.Intercept
		for i := 0; i < p && t-i-1 >= 0; i++ {
			pred += m.ARCoeffs[i] * (extY[t-i-1] - m.Intercept)
		}
		// future residuals are zero
		for i := 0; i < q && t-i-1 >= 0 && t-i-1 < n; i++ {
			pred += m.MACoeffs[i] * extResiduals[t-i-1]
		}
		extY[t] = pred
	}

	forecasts := m.integrate(extY[n:])
	for _, f := range forecasts {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %s produced a non-finite forecast", ErrNotConverged, m.Order)
		}
	}
	return forecasts, nil
}

// integrate undoes differencing level by level, anchoring each level on the
// last observed value of the series differenced one order less.
func (m *Model) integrate(forecasts []float64) []float64 {
	result := make([]float64, len(forecasts))
	copy(result, forecasts)

	for level := m.Order.D - 1; level >= 0; level-- {
		base := stats.Diff(m.data, level)
		acc := base[len(base)-1]
		for j := range result {
			acc += result[j]
			result[j] = acc
		}
	}

	return result
}

// Residuals returns the model residuals.
func (m *Model) Residuals() []float64 {
	if !m.fitted {
		return nil
	}
	result := make([]float64, len(m.residuals))
	copy(result, m.residuals)
	return result
}

// Summary returns a summary of the fitted model.
type Summary struct {
	Order     Order
	ARCoeffs  []float64
	MACoeffs  []float64
	Intercept float64
	Variance  float64
	AIC       float64
	AICc      float64 // Corrected AIC
	BIC       float64
	LogLik    float64
	NObs      int
	LjungBox  *stats.LjungBoxResult // nil when there are too few residuals
	BoxPierce *stats.LjungBoxResult
}

// Summary returns a summary of the fitted model.
func (m *Model) Summary() *Summary {
	if !m.fitted {
		return nil
	}

	return &Summary{
		Order:     m.Order,
		ARCoeffs:  append([]float64(nil), m.ARCoeffs...),
		MACoeffs:  append([]float64(nil), m.MACoeffs...),
		Intercept: m.Intercept,
		Variance:  m.Variance,
		AIC:       m.AIC,
		AICc:      m.AICc,
		BIC:       m.BIC,
		LogLik:    m.LogLik,
		NObs:      len(m.data),
		LjungBox:  stats.LjungBox(m.residuals, 10, m.Order.P+m.Order.Q),
		BoxPierce: stats.BoxPierce(m.residuals, 10, m.Order.P+m.Order.Q),
	}
}
