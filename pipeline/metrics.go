package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	runs        *prometheus.CounterVec
	forecasts   *prometheus.CounterVec
	failures    *prometheus.CounterVec
	runDuration prometheus.Histogram
	fitDuration *prometheus.HistogramVec
}

// NewMetrics registers the pipeline collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "revforecast_runs_total",
			Help: "Forecast passes by outcome",
		}, []string{"status"}),
		forecasts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "revforecast_forecasts_total",
			Help: "Entity forecasts produced by model",
		}, []string{"model"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "revforecast_entity_failures_total",
			Help: "Entities that could not be forecast, by reason",
		}, []string{"reason"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "revforecast_run_duration_seconds",
			Help:    "Duration of a full forecast pass",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		}),
		fitDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "revforecast_entity_duration_seconds",
			Help:    "Time to read, forecast and store one entity",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		}, []string{"model"}),
	}
}
