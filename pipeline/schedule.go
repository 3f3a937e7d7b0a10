package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
)

// Schedule runs a forecast pass immediately and then every interval until
// ctx is canceled. Overlapping passes are skipped.
func (r *Runner) Schedule(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("schedule interval must be positive, got %s", interval)
	}

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	_, err := scheduler.Every(interval).Do(func() {
		if _, err := r.Run(ctx); err != nil {
			r.logger.Error("scheduled forecast run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule forecast run: %w", err)
	}

	scheduler.StartAsync()
	r.logger.Info("forecast scheduler started", "interval", interval)

	<-ctx.Done()

	scheduler.Stop()
	r.logger.Info("forecast scheduler stopped")
	return nil
}
