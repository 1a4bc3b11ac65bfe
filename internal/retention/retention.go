package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"weatherdesk/internal/logger"
	"weatherdesk/internal/metrics"
)

// Purger deletes audit rows older than a cutoff
type Purger interface {
	PurgeAPIRequests(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor periodically trims the api_requests audit table to a fixed age
type Janitor struct {
	scheduler *gocron.Scheduler
	purger    Purger
	ttl       time.Duration
	interval  time.Duration
	now       func() time.Time
}

// New creates a Janitor. Rows older than ttl are removed every interval.
func New(purger Purger, ttl, interval time.Duration) *Janitor {
	return &Janitor{
		scheduler: gocron.NewScheduler(time.UTC),
		purger:    purger,
		ttl:       ttl,
		interval:  interval,
		now:       time.Now,
	}
}

// Start schedules the purge job and runs it once right away
func (j *Janitor) Start() error {
	if j.ttl <= 0 || j.interval <= 0 {
		return fmt.Errorf("retention ttl and interval must be positive")
	}

	_, err := j.scheduler.Every(j.interval).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if _, err := j.RunOnce(ctx); err != nil {
			logger.L().Error("retention job failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention job: %w", err)
	}

	j.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (j *Janitor) Stop() {
	if j.scheduler != nil {
		j.scheduler.Stop()
	}
}

// RunOnce purges everything older than now - ttl
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.ttl)

	deleted, err := j.purger.PurgeAPIRequests(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	metrics.RetentionDeletedTotal.Add(float64(deleted))
	logger.L().Info("✓ Purged api request audit rows",
		zap.Int64("deleted", deleted),
		zap.Time("cutoff", cutoff),
	)
	return deleted, nil
}
