// Package scheduler runs the periodic credit replenishment tick.
package scheduler

import (
	"context"
	"os"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
	"github.com/skirmish-game/skirmish/internal/ledger"
)

// DefaultReplenishInterval applies when REPLENISH_INTERVAL is unset.
const DefaultReplenishInterval = time.Minute

// ReplenishInterval reads REPLENISH_INTERVAL (any time.ParseDuration
// string) or falls back to the default. The schedule format lives here;
// the ledger has no opinion on it.
func ReplenishInterval() time.Duration {
	if v := os.Getenv("REPLENISH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return DefaultReplenishInterval
}

// StartReplenish schedules Ledger.ReplenishAll on the configured interval
// and returns the running scheduler. Callers shut it down on exit.
func StartReplenish(l *ledger.Ledger, logger *logrus.Logger) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	interval := ReplenishInterval()
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			rows, err := l.ReplenishAll(ctx)
			if err != nil {
				logger.WithError(err).Error("credit replenishment failed")
				return
			}
			logger.WithFields(logrus.Fields{"accounts": rows}).Info("replenished credits")
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	logger.Infof("replenish scheduler started (every %s)", interval)
	return sched, nil
}
