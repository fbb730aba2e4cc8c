package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Job purges declined match requests once their retention window expires.
// Pending and accepted requests are never touched.
type Job struct {
	purger    declinedPurger
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

type declinedPurger interface {
	DeleteDeclinedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

func NewDeclinedRequestJob(purger declinedPurger, retention time.Duration, logger *zap.Logger) *Job {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		purger:    purger,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.purger == nil {
		return nil
	}

	cutoff := j.now().Add(-j.retention)
	rows, err := j.purger.DeleteDeclinedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge declined requests: %w", err)
	}
	if rows > 0 {
		j.logger.Info("purged declined requests", zap.Int64("deleted", rows))
	}

	return nil
}

// RunLoop runs the job immediately and then on every tick until ctx is done.
func (j *Job) RunLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	if err := j.Run(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				return err
			}
		}
	}
}
