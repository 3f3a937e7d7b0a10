package forecast

import (
	"io"
	"log/slog"
	"time"

	"github.com/sartorproj/revforecast/arima"
	"github.com/sartorproj/revforecast/autoarima"
)

// Option configures a single Forecast or Baseline call.
type Option func(*options)

type options struct {
	now           func() time.Time
	logger        *slog.Logger
	search        *autoarima.Config
	fallbackOrder arima.Order
}

func newOptions(opts []Option) *options {
	o := &options{
		now:           time.Now,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		search:        autoarima.DefaultConfig(),
		fallbackOrder: arima.Order{P: 1, D: 1, Q: 1},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithClock sets the clock used for Result.GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger that receives per-attempt diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSearch sets the automatic order search configuration.
func WithSearch(cfg *autoarima.Config) Option {
	return func(o *options) {
		if cfg != nil {
			c := *cfg
			o.search = &c
		}
	}
}

// WithFallbackOrder sets the fixed order tried when the search fails.
// The default is ARIMA(1,1,1).
func WithFallbackOrder(order arima.Order) Option {
	return func(o *options) {
		o.fallbackOrder = order
	}
}
