package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"chatpdf-backend/internal/logger"
)

// StuckSweeper fails documents stuck in a non-terminal status.
type StuckSweeper interface {
	FailStuck(ctx context.Context, cutoff time.Time, reason string) (int64, error)
}

// StartWatchdog runs a minutely sweep that moves documents stuck in a
// non-terminal status past stuckAfter to failed, so a crashed worker
// never leaves a document in limbo forever. Returns the scheduler so the
// caller can stop it on shutdown.
func StartWatchdog(sweeper StuckSweeper, stuckAfter time.Duration) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)

	_, err := scheduler.Every(1).Minute().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		cutoff := time.Now().Add(-stuckAfter)
		swept, err := sweeper.FailStuck(ctx, cutoff, "indexing timed out")
		if err != nil {
			logger.Error("watchdog sweep failed", "error", err)
			return
		}
		if swept > 0 {
			logger.Warn("watchdog failed stuck documents", "count", swept)
		}
	})
	if err != nil {
		return nil, err
	}

	scheduler.StartAsync()
	return scheduler, nil
}
