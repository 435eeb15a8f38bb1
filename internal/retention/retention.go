// Package retention schedules journal compaction: tombstoned records
// older than the configured period are dropped from local storage on a
// cron schedule.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"chatsync/pkg/journal"
	"chatsync/pkg/logger"
	"chatsync/pkg/telemetry"
)

// Options configures the scheduler.
type Options struct {
	Enabled bool
	// Cron is a standard five-field expression; empty means daily at 03:00.
	Cron string
	// Period is how long tombstones are kept before compaction.
	Period time.Duration
}

const defaultCron = "0 3 * * *"

// DefaultPeriod keeps tombstones around long enough for every client
// replica to observe the deletion.
const DefaultPeriod = 7 * 24 * time.Hour

// Start launches the scheduler and returns its cancel func. A disabled
// config returns a no-op cancel.
func Start(ctx context.Context, j *journal.Store, opts Options) (context.CancelFunc, error) {
	if !opts.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}
	if j == nil || !j.Ready() {
		return nil, fmt.Errorf("retention requires an open journal")
	}

	cronExpr := opts.Cron
	if cronExpr == "" {
		cronExpr = defaultCron
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", opts.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", opts.Cron)
	}
	period := opts.Period
	if period <= 0 {
		period = DefaultPeriod
	}

	logger.Info("retention_enabled", "cron", cronExpr, "period", period)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, j, cronExpr, period)
	return cancel, nil
}

// runScheduler sleeps until each next cron tick and compacts once per
// tick.
func runScheduler(ctx context.Context, j *journal.Store, cronExpr string, period time.Duration) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}

		if err := RunOnce(j, period); err != nil {
			logger.Error("retention_run_error", "error", err)
		}
	}
}

// RunOnce compacts immediately; admin triggers and tests call it
// directly.
func RunOnce(j *journal.Store, period time.Duration) error {
	start := time.Now()
	n, err := j.CompactTombstones(start.Add(-period))
	if err != nil {
		return err
	}
	telemetry.TombstonesCompacted.Add(float64(n))
	logger.Info("retention_run_complete", "removed", n, "took", time.Since(start).String())
	return nil
}
