// internal/lifecycle/sweep.go
package lifecycle

import (
	"context"
	"time"

	"subscription-bot/internal/common/metrics"
	"subscription-bot/internal/store"
)

// SweepStats summarizes one sweep run.
type SweepStats struct {
	Scanned   int
	Reminded  int
	Expired   int
	RowErrors int
}

// Sweep scans the active-row snapshot once. Per row the checks are mutually
// exclusive and evaluated in priority order: first reminder, final reminder,
// expiry. A row already reminded or expired this pass gets nothing else, and
// a failure on one row never aborts the rest. Reminder flags make re-runs
// idempotent.
func (e *Engine) Sweep(ctx context.Context, now time.Time) (SweepStats, error) {
	start := time.Now()
	metrics.SweepRunsTotal.Inc()

	rows, err := e.store.ListActive(ctx)
	if err != nil {
		e.logger.Error("sweep snapshot failed", map[string]interface{}{"error": err.Error()})
		return SweepStats{}, err
	}

	stats := SweepStats{Scanned: len(rows)}
	for _, row := range rows {
		if err := e.sweepRow(ctx, row, now, &stats); err != nil {
			stats.RowErrors++
			e.logger.Error("sweep row failed", map[string]interface{}{
				"userId": row.UserID,
				"error":  err.Error(),
			})
		}
	}

	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	e.logger.Info("sweep finished", map[string]interface{}{
		"scanned":   stats.Scanned,
		"reminded":  stats.Reminded,
		"expired":   stats.Expired,
		"rowErrors": stats.RowErrors,
	})
	return stats, nil
}

func (e *Engine) sweepRow(ctx context.Context, row store.ActiveRow, now time.Time, stats *SweepStats) error {
	daysLeft := int(row.ExpireAt.Sub(now).Hours() / 24)

	switch {
	case daysLeft == e.cfg.FirstReminderDays && !row.ReminderSent2d:
		return e.remind(ctx, row.UserID, daysLeft, store.ReminderTwoDays, stats)

	case daysLeft == e.cfg.FinalReminderDays && !row.ReminderSent1d:
		return e.remind(ctx, row.UserID, daysLeft, store.ReminderOneDay, stats)

	case now.After(row.ExpireAt):
		return e.expire(ctx, row.UserID, stats)
	}
	return nil
}

func (e *Engine) remind(ctx context.Context, userID int64, daysLeft int, r store.Reminder, stats *SweepStats) error {
	// Send first, flag after: a delivery failure leaves the flag unset so
	// the next run retries, while a flag-write failure at worst repeats one
	// reminder.
	if err := e.notifier.SendUser(ctx, userID, msgReminder(daysLeft)); err != nil {
		return err
	}
	if err := e.store.SetReminder(ctx, userID, r); err != nil {
		return err
	}
	metrics.RemindersTotal.WithLabelValues(r.Label()).Inc()
	stats.Reminded++
	return nil
}

func (e *Engine) expire(ctx context.Context, userID int64, stats *SweepStats) error {
	// Kick failures are logged but never block the status transition; a
	// member the API would not remove is still expired in the store.
	if err := e.gate.Kick(ctx, userID); err != nil {
		e.logger.Warn("channel kick failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	}

	if err := e.store.MarkExpired(ctx, userID); err != nil {
		return err
	}

	metrics.ExpirationsTotal.Inc()
	stats.Expired++
	e.sendUser(ctx, userID, msgExpired, e.logger)
	return nil
}
