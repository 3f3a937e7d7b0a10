package forecast

import (
	"fmt"
	"math"

	"github.com/sartorproj/revforecast/timeseries"
)

// Accuracy compares a forecast with held-out observations.
type Accuracy struct {
	Holdout   int     `json:"holdout"`
	ModelUsed Model   `json:"model_used"`
	RMSE      float64 `json:"rmse"`
	MAE       float64 `json:"mae"`
	MAPE      float64 `json:"mape"` // percent; zero actuals are skipped
}

// Backtest forecasts the last holdout observations from the ones before them
// and reports the error. The training part must leave at least one point.
func Backtest(entityID string, series *timeseries.Series, holdout int, opts ...Option) (*Accuracy, error) {
	if err := validate(entityID, series, holdout); err != nil {
		return nil, err
	}
	n := series.Len()
	if holdout >= n {
		return nil, newError(entityID, CodeInsufficientData,
			fmt.Sprintf("holdout %d leaves no training data in %d observations", holdout, n), nil)
	}

	train := series.Slice(0, n-holdout)
	test := series.Slice(n-holdout, n)

	result, err := Forecast(entityID, train, holdout, opts...)
	if err != nil {
		return nil, err
	}

	// Forecast periods are contiguous, so gapped history is matched by period.
	predicted := make(map[int]float64, len(result.Points))
	for _, p := range result.Points {
		predicted[p.Period] = p.Value
	}
	var actual, forecasts []float64
	for _, o := range test.Observations {
		if v, ok := predicted[o.Period]; ok {
			actual = append(actual, o.Value)
			forecasts = append(forecasts, v)
		}
	}
	if len(actual) == 0 {
		return nil, newError(entityID, CodeInsufficientData, "held-out periods are outside the forecast horizon", nil)
	}

	rmse, mae, mape := errorMetrics(actual, forecasts)
	return &Accuracy{
		Holdout:   holdout,
		ModelUsed: result.ModelUsed,
		RMSE:      rmse,
		MAE:       mae,
		MAPE:      mape,
	}, nil
}

func errorMetrics(actual, predicted []float64) (rmse, mae, mape float64) {
	n := len(actual)
	nonZero := 0
	for i := 0; i < n; i++ {
		d := actual[i] - predicted[i]
		rmse += d * d
		mae += math.Abs(d)
		if actual[i] != 0 {
			mape += math.Abs(d) / math.Abs(actual[i]) * 100
			nonZero++
		}
	}
	if nonZero > 0 {
		mape /= float64(nonZero)
	}
	return math.Sqrt(rmse / float64(n)), mae / float64(n), mape
}
