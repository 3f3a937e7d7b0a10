package stats

import (
	"errors"
)

// ErrSingular is returned when every regressor value is identical.
var ErrSingular = errors.New("regressor has zero variance")

// LinearTrend is a fitted straight line y = Level + Slope*(x - Origin).
// Keeping the origin at the mean of x avoids cancellation for year-valued x.
type LinearTrend struct {
	Slope    float64
	Level    float64 // fitted value at Origin (the mean of y)
	Origin   float64 // mean of x
	RSquared float64
	NObs     int
}

// At evaluates the line at x.
func (l LinearTrend) At(x float64) float64 {
	return l.Level + l.Slope*(x-l.Origin)
}

// FitLine fits y on x by ordinary least squares.
// A single observation yields a flat line through that value.
func FitLine(x, y []float64) (LinearTrend, error) {
	n := len(y)
	if n == 0 || len(x) != n {
		return LinearTrend{}, errors.New("x and y must be non-empty and the same length")
	}
	if n == 1 {
		return LinearTrend{Level: y[0], Origin: x[0], RSquared: 1, NObs: 1}, nil
	}

	xMean, yMean := Mean(x), Mean(y)
	sxx, sxy := 0.0, 0.0
	for i := range x {
		dx := x[i] - xMean
		sxx += dx * dx
		sxy += dx * (y[i] - yMean)
	}
	if sxx == 0 {
		return LinearTrend{}, ErrSingular
	}

	trend := LinearTrend{
		Slope:  sxy / sxx,
		Level:  yMean,
		Origin: xMean,
		NObs:   n,
	}

	sse, sst := 0.0, 0.0
	for i := range y {
		r := y[i] - trend.At(x[i])
		sse += r * r
		d := y[i] - yMean
		sst += d * d
	}
	trend.RSquared = 1
	if sst > 0 {
		trend.RSquared = 1 - sse/sst
	}

	return trend, nil
}

// FitLinearTrend regresses values on integer periods.
func FitLinearTrend(periods []int, values []float64) (LinearTrend, error) {
	x := make([]float64, len(periods))
	for i, p := range periods {
		x[i] = float64(p)
	}
	return FitLine(x, values)
}
