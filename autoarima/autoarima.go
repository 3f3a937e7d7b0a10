// Package autoarima implements automatic ARIMA model selection.
package autoarima

import (
	"errors"
	"fmt"
	"math"

	"github.com/sartorproj/revforecast/arima"
	"github.com/sartorproj/revforecast/stats"
	"github.com/sartorproj/revforecast/timeseries"
)

// ErrNoViableOrder is returned when no candidate order could be fitted.
var ErrNoViableOrder = errors.New("autoarima: no viable order")

// Differencing strategies.
const (
	DifferencingGrid = "grid" // search d in [0, MaxD] alongside p and q
	DifferencingKPSS = "kpss"
	DifferencingADF  = "adf"
)

// Config holds configuration for auto ARIMA search.
type Config struct {
	MaxP         int    // Maximum AR order (default: 2)
	MaxD         int    // Maximum differencing order (default: 1)
	MaxQ         int    // Maximum MA order (default: 2)
	Criterion    string // "aic", "aicc" or "bic" (default: "aic")
	Differencing string // "grid", "kpss" or "adf" (default: "grid")
	Stepwise     bool   // Use stepwise search instead of exhaustive
}

// DefaultConfig returns the default auto ARIMA configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxP:         2,
		MaxD:         1,
		MaxQ:         2,
		Criterion:    "aic",
		Differencing: DifferencingGrid,
		Stepwise:     false,
	}
}

// Validate reports whether the configuration can be searched.
func (c *Config) Validate() error {
	if c.MaxP < 0 || c.MaxD < 0 || c.MaxQ < 0 {
		return fmt.Errorf("autoarima: negative search bound (p=%d d=%d q=%d)", c.MaxP, c.MaxD, c.MaxQ)
	}
	switch c.Criterion {
	case "", "aic", "aicc", "bic":
	default:
		return fmt.Errorf("autoarima: unknown criterion %q", c.Criterion)
	}
	switch c.Differencing {
	case "", DifferencingGrid, DifferencingKPSS, DifferencingADF:
	default:
		return fmt.Errorf("autoarima: unknown differencing strategy %q", c.Differencing)
	}
	return nil
}

// Result represents the result of auto ARIMA model selection.
type Result struct {
	Model *arima.Model
	Order arima.Order

	// Model metrics
	AIC       float64
	AICc      float64
	BIC       float64
	LogLik    float64
	Criterion float64 // value of the configured criterion

	// Search information
	ModelsEvaluated int // successful fits
	ModelsFailed    int
}

// AutoARIMA fits every candidate order and keeps the one with the lowest
// information criterion. Ties keep the first order in (d, p, q) ascending
// order, so the search is deterministic.
func AutoARIMA(series *timeseries.Series, config *Config) (*Result, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &search{series: series, config: config}
	for _, d := range candidateDifferencing(series, config) {
		if config.Stepwise {
			s.stepwise(d)
		} else {
			s.grid(d)
		}
	}

	if s.best == nil {
		return nil, fmt.Errorf("%w: %d candidate orders failed, last error: %v",
			ErrNoViableOrder, s.failed, s.lastErr)
	}

	m := s.best
	return &Result{
		Model:           m,
		Order:           m.Order,
		AIC:             m.AIC,
		AICc:            m.AICc,
		BIC:             m.BIC,
		LogLik:          m.LogLik,
		Criterion:       s.bestCriterion,
		ModelsEvaluated: s.evaluated,
		ModelsFailed:    s.failed,
	}, nil
}

// candidateDifferencing returns the differencing orders to search.
func candidateDifferencing(series *timeseries.Series, config *Config) []int {
	switch config.Differencing {
	case DifferencingKPSS, DifferencingADF:
		if config.MaxD == 0 {
			return []int{0}
		}
		return []int{stats.NDiffs(series.Values(), config.MaxD, config.Differencing)}
	default:
		ds := make([]int, 0, config.MaxD+1)
		for d := 0; d <= config.MaxD; d++ {
			ds = append(ds, d)
		}
		return ds
	}
}

type search struct {
	series *timeseries.Series
	config *Config

	best          *arima.Model
	bestCriterion float64
	evaluated     int
	failed        int
	lastErr       error
	tried         map[arima.Order]bool
}

// try fits one order, keeps it if it beats the overall best, and returns its
// criterion. ok is false when the order was already tried or failed to fit.
func (s *search) try(p, d, q int) (criterion float64, ok bool) {
	order := arima.Order{P: p, D: d, Q: q}
	if s.tried == nil {
		s.tried = make(map[arima.Order]bool)
	}
	if s.tried[order] {
		return 0, false
	}
	s.tried[order] = true

	model := arima.New(p, d, q)
	if err := model.Fit(s.series); err != nil {
		s.failed++
		s.lastErr = err
		return 0, false
	}

	criterion = criterionOf(model, s.config.Criterion)
	if math.IsNaN(criterion) || math.IsInf(criterion, 0) {
		s.failed++
		s.lastErr = fmt.Errorf("%s: non-finite %s", order, s.config.Criterion)
		return 0, false
	}

	s.evaluated++
	if s.best == nil || criterion < s.bestCriterion {
		s.best = model
		s.bestCriterion = criterion
	}
	return criterion, true
}

// grid performs an exhaustive search over p and q for a fixed d.
func (s *search) grid(d int) {
	for p := 0; p <= s.config.MaxP; p++ {
		for q := 0; q <= s.config.MaxQ; q++ {
			s.try(p, d, q)
		}
	}
}

// stepwise performs a neighbourhood search over p and q for a fixed d.
func (s *search) stepwise(d int) {
	type modelSpec struct {
		p, q int
	}

	inBounds := func(spec modelSpec) bool {
		return spec.p >= 0 && spec.p <= s.config.MaxP && spec.q >= 0 && spec.q <= s.config.MaxQ
	}

	// Start with simple models
	startModels := []modelSpec{
		{0, 0}, {1, 0}, {0, 1}, {1, 1}, {2, 2},
	}

	var current modelSpec
	localBest := math.Inf(1)
	for _, spec := range startModels {
		if !inBounds(spec) {
			continue
		}
		if c, ok := s.try(spec.p, d, spec.q); ok && c < localBest {
			current, localBest = spec, c
		}
	}
	if math.IsInf(localBest, 1) {
		return
	}

	improved := true
	for improved {
		improved = false
		base := current

		neighbors := []modelSpec{
			{base.p + 1, base.q},
			{base.p - 1, base.q},
			{base.p, base.q + 1},
			{base.p, base.q - 1},
			{base.p + 1, base.q + 1},
			{base.p - 1, base.q - 1},
		}

		for _, spec := range neighbors {
			if !inBounds(spec) {
				continue
			}
			if c, ok := s.try(spec.p, d, spec.q); ok && c < localBest {
				current, localBest = spec, c
				improved = true
			}
		}
	}
}

func criterionOf(model *arima.Model, name string) float64 {
	switch name {
	case "bic":
		return model.BIC
	case "aicc":
		return model.AICc
	default:
		return model.AIC
	}
}

// Predict generates forecasts using the selected model.
func (r *Result) Predict(steps int) ([]float64, error) {
	if r.Model == nil {
		return nil, ErrNoViableOrder
	}
	return r.Model.Predict(steps)
}

// Residuals returns the model residuals.
func (r *Result) Residuals() []float64 {
	if r.Model == nil {
		return nil
	}
	return r.Model.Residuals()
}
