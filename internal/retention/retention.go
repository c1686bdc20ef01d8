// Package retention schedules the notification purge: read notifications
// older than the configured period are deleted on a cron cadence.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"glimpse/pkg/config"
	"glimpse/pkg/logger"
	"glimpse/pkg/store"
)

const defaultPeriod = 30 * 24 * time.Hour

// Start starts the retention scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg config.RetentionConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	// default: daily at 02:00
	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Cron)
	}

	period := cfg.Period.Duration()
	if period <= 0 {
		period = defaultPeriod
	}

	logger.Info("retention_enabled", "cron", cronExpr, "period", period.String())
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, period)
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured
// cron expression and sleeps until that time.
func runScheduler(ctx context.Context, cronExpr string, period time.Duration) {
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

		wait := time.Until(next)
		if wait <= 0 {
			RunOnce(period)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			RunOnce(period)
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// RunOnce purges read notifications older than period. Exposed so the
// admin surface can trigger a run on demand.
func RunOnce(period time.Duration) {
	cutoff := time.Now().UTC().Add(-period).UnixNano()
	n, err := store.PurgeReadNotifications(cutoff)
	if err != nil {
		logger.Error("retention_run_error", "error", err)
		return
	}
	logger.Info("retention_run_complete", "purged", n)
}
