// Package pipeline runs the forecast engine over every entity in a store and
// writes the results back.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/sartorproj/revforecast/autoarima"
	"github.com/sartorproj/revforecast/forecast"
	"github.com/sartorproj/revforecast/store"
	"github.com/sartorproj/revforecast/telemetry"
)

// Options controls a forecast pass.
type Options struct {
	Horizon int
	Workers int
	// ClampNonNegative floors stored values at zero. Results returned to
	// callers are never clamped.
	ClampNonNegative bool
	// WriteBaseline also stores the linear-regression projection.
	WriteBaseline bool
	Search        *autoarima.Config
}

// Summary reports the outcome of one pass.
type Summary struct {
	RunID     string        `json:"run_id"`
	Entities  int           `json:"entities"`
	Forecasts int           `json:"forecasts"`
	Degraded  int           `json:"degraded"`
	Failed    int           `json:"failed"`
	Errors    []string      `json:"errors,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Runner forecasts store entities concurrently.
type Runner struct {
	store   store.Store
	opts    Options
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	now      func() time.Time
	newRunID func() string
}

// New creates a runner. A nil logger discards output; nil metrics disables
// instrumentation.
func New(st store.Store, opts Options, logger *slog.Logger, metrics *Metrics) *Runner {
	if opts.Horizon < 1 {
		opts.Horizon = 5
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		store:    st,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer(telemetry.TracerName),
		now:      func() time.Time { return time.Now().UTC() },
		newRunID: func() string { return uuid.NewString() },
	}
}

// Horizon returns the default forecast horizon.
func (r *Runner) Horizon() int {
	return r.opts.Horizon
}

// Run forecasts every entity in the store. Entity failures are logged and
// counted; only store listing errors and cancellation fail the pass.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	runID := r.newRunID()
	ctx, span := r.tracer.Start(ctx, "pipeline.Run",
		trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	logger := r.logger.With("run_id", runID)
	entities, err := r.store.ListEntities(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list entities")
		r.observeRun("error", start)
		return nil, fmt.Errorf("list entities: %w", err)
	}

	summary := &Summary{RunID: runID, Entities: len(entities)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for _, entity := range entities {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := r.forecastEntity(gctx, entity, r.opts.Horizon, runID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				summary.Failed++
				summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", entity.ID(), err))
				logger.Warn("entity forecast failed", "entity", entity.ID(), "error", err)
				return nil
			}
			summary.Forecasts++
			if result.Degraded() {
				summary.Degraded++
			}
			return nil
		})
	}
	err = g.Wait()
	summary.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("entities", summary.Entities),
		attribute.Int("failed", summary.Failed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run interrupted")
		r.observeRun("canceled", start)
		return summary, err
	}

	r.observeRun("ok", start)
	logger.Info("forecast run complete",
		"entities", summary.Entities,
		"forecasts", summary.Forecasts,
		"degraded", summary.Degraded,
		"failed", summary.Failed,
		"duration", summary.Duration)
	return summary, nil
}

// ForecastEntity forecasts one entity over horizon and stores the rows under
// a new run id.
func (r *Runner) ForecastEntity(ctx context.Context, entity store.Entity, horizon int) (*forecast.Result, error) {
	return r.forecastEntity(ctx, entity, horizon, r.newRunID())
}

func (r *Runner) forecastEntity(ctx context.Context, entity store.Entity, horizon int, runID string) (*forecast.Result, error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "pipeline.ForecastEntity",
		trace.WithAttributes(
			attribute.String("entity.id", entity.ID()),
			attribute.Int("horizon", horizon),
		))
	defer span.End()

	fail := func(reason string, err error) (*forecast.Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		if r.metrics != nil {
			r.metrics.failures.WithLabelValues(reason).Inc()
		}
		return nil, err
	}

	series, err := r.store.ReadSeries(ctx, entity)
	if err != nil {
		return fail("read", fmt.Errorf("read series %s: %w", entity.ID(), err))
	}

	generatedAt := r.now()
	opts := []forecast.Option{
		forecast.WithClock(func() time.Time { return generatedAt }),
		forecast.WithLogger(r.logger),
	}
	if r.opts.Search != nil {
		opts = append(opts, forecast.WithSearch(r.opts.Search))
	}

	result, err := forecast.Forecast(entity.ID(), series, horizon, opts...)
	if err != nil {
		var ferr *forecast.Error
		if errors.As(err, &ferr) {
			return fail(string(ferr.Code), err)
		}
		return fail("forecast", err)
	}

	rows := RowsFromResult(entity, result, runID, r.opts.ClampNonNegative)
	if r.opts.WriteBaseline && result.ModelUsed != forecast.ModelLinearRegression {
		baseline, err := forecast.Baseline(entity.ID(), series, horizon, opts...)
		if err != nil {
			return fail("baseline", err)
		}
		rows = append(rows, RowsFromResult(entity, baseline, runID, r.opts.ClampNonNegative)...)
	}

	if err := r.store.WriteForecast(ctx, rows); err != nil {
		return fail("write", fmt.Errorf("write forecast %s: %w", entity.ID(), err))
	}

	span.SetAttributes(attribute.String("model", string(result.ModelUsed)))
	if r.metrics != nil {
		r.metrics.forecasts.WithLabelValues(string(result.ModelUsed)).Inc()
		r.metrics.fitDuration.WithLabelValues(string(result.ModelUsed)).Observe(time.Since(start).Seconds())
	}
	return result, nil
}

func (r *Runner) observeRun(status string, start time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.runs.WithLabelValues(status).Inc()
	r.metrics.runDuration.Observe(time.Since(start).Seconds())
}

// RowsFromResult converts a forecast into store rows, one per point. With
// clamp set, negative values are stored as zero.
func RowsFromResult(entity store.Entity, result *forecast.Result, runID string, clamp bool) []store.ForecastRow {
	rows := make([]store.ForecastRow, len(result.Points))
	for i, p := range result.Points {
		value := p.Value
		if clamp {
			value = math.Max(value, 0)
		}
		rows[i] = store.ForecastRow{
			Entity:      entity,
			Year:        p.Period,
			Value:       value,
			ModelUsed:   string(result.ModelUsed),
			RunID:       runID,
			GeneratedAt: result.GeneratedAt,
		}
	}
	return rows
}
