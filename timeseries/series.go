// Package timeseries provides the annual series type used by the forecasting packages.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Validation errors returned by Series.Validate.
var (
	ErrEmpty           = errors.New("series has no observations")
	ErrNonFinite       = errors.New("series contains a non-finite value")
	ErrDuplicatePeriod = errors.New("series contains a duplicate period")
	ErrUnsorted        = errors.New("series periods are not strictly increasing")
)

// Observation is a single (period, value) pair. Period is an integer year.
type Observation struct {
	Period int     `json:"period"`
	Value  float64 `json:"value"`
}

// Series represents an ordered sequence of observations, one per period.
type Series struct {
	Name         string
	Observations []Observation
}

// New creates a series from parallel period and value slices.
func New(periods []int, values []float64) (*Series, error) {
	if len(periods) != len(values) {
		return nil, errors.New("periods and values must have the same length")
	}
	obs := make([]Observation, len(values))
	for i := range values {
		obs[i] = Observation{Period: periods[i], Value: values[i]}
	}
	return &Series{Observations: obs}, nil
}

// FromValues creates a series with consecutive periods starting at start.
func FromValues(start int, values []float64) *Series {
	obs := make([]Observation, len(values))
	for i, v := range values {
		obs[i] = Observation{Period: start + i, Value: v}
	}
	return &Series{Observations: obs}
}

// Validate checks that the series is non-empty, finite and strictly increasing in period.
// The series is never reordered; callers must supply sorted data.
func (s *Series) Validate() error {
	if s == nil || len(s.Observations) == 0 {
		return ErrEmpty
	}

	seen := make(map[int]struct{}, len(s.Observations))
	for i, o := range s.Observations {
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return fmt.Errorf("period %d: %w", o.Period, ErrNonFinite)
		}
		if _, dup := seen[o.Period]; dup {
			return fmt.Errorf("period %d: %w", o.Period, ErrDuplicatePeriod)
		}
		seen[o.Period] = struct{}{}
		if i > 0 && o.Period <= s.Observations[i-1].Period {
			return fmt.Errorf("period %d after %d: %w", o.Period, s.Observations[i-1].Period, ErrUnsorted)
		}
	}
	return nil
}

// Len returns the number of observations.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Observations)
}

// Values returns a copy of the observation values in period order.
func (s *Series) Values() []float64 {
	if s == nil {
		return nil
	}
	values := make([]float64, s.Len())
	for i, o := range s.Observations {
		values[i] = o.Value
	}
	return values
}

// Periods returns a copy of the observation periods.
func (s *Series) Periods() []int {
	if s == nil {
		return nil
	}
	periods := make([]int, s.Len())
	for i, o := range s.Observations {
		periods[i] = o.Period
	}
	return periods
}

// LastPeriod returns the final observed period, or 0 for an empty series.
func (s *Series) LastPeriod() int {
	if s.Len() == 0 {
		return 0
	}
	return s.Observations[len(s.Observations)-1].Period
}

// FuturePeriods returns the contiguous periods last+1 .. last+horizon.
func (s *Series) FuturePeriods(horizon int) []int {
	if horizon < 1 {
		return nil
	}
	last := s.LastPeriod()
	periods := make([]int, horizon)
	for i := range periods {
		periods[i] = last + 1 + i
	}
	return periods
}

// Mean calculates the arithmetic mean of the values.
func (s *Series) Mean() float64 {
	if s.Len() == 0 {
		return 0
	}
	sum := 0.0
	for _, o := range s.Observations {
		sum += o.Value
	}
	return sum / float64(s.Len())
}

// Variance calculates the sample variance of the values.
func (s *Series) Variance() float64 {
	if s.Len() < 2 {
		return 0
	}
	mean := s.Mean()
	sumSq := 0.0
	for _, o := range s.Observations {
		diff := o.Value - mean
		sumSq += diff * diff
	}
	return sumSq / float64(s.Len()-1)
}

// Std calculates the sample standard deviation.
func (s *Series) Std() float64 {
	return math.Sqrt(s.Variance())
}

// Min returns the minimum value in the series.
func (s *Series) Min() float64 {
	if s.Len() == 0 {
		return math.NaN()
	}
	lo := s.Observations[0].Value
	for _, o := range s.Observations[1:] {
		lo = math.Min(lo, o.Value)
	}
	return lo
}

// Max returns the maximum value in the series.
func (s *Series) Max() float64 {
	if s.Len() == 0 {
		return math.NaN()
	}
	hi := s.Observations[0].Value
	for _, o := range s.Observations[1:] {
		hi = math.Max(hi, o.Value)
	}
	return hi
}

// Median returns the median value of the series.
func (s *Series) Median() float64 {
	if s.Len() == 0 {
		return math.NaN()
	}
	sorted := s.Values()
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Slice returns observations from start to end (exclusive).
func (s *Series) Slice(start, end int) *Series {
	start = max(start, 0)
	end = min(end, s.Len())
	if start >= end {
		return &Series{Name: s.Name}
	}

	obs := make([]Observation, end-start)
	copy(obs, s.Observations[start:end])
	return &Series{Name: s.Name, Observations: obs}
}
