package territory

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// nextResetAfter computes the next global reset instant: time is
// shifted by the configured offset, aligned up to the next fixed-width
// UTC hour block, then shifted back.
func nextResetAfter(now time.Time, blockHours int, offset time.Duration) time.Time {
	if blockHours <= 0 {
		blockHours = 3
	}
	block := time.Duration(blockHours) * time.Hour

	shifted := now.Add(offset).UTC()
	dayStart := time.Date(shifted.Year(), shifted.Month(), shifted.Day(), 0, 0, 0, 0, time.UTC)
	elapsed := shifted.Sub(dayStart)
	next := dayStart.Add((elapsed/block + 1) * block)
	return next.Add(-offset)
}

// NextReset returns the scheduled time of the next global reset.
func (e *Engine) NextReset() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextReset
}

// CheckReset fires the global reset if its boundary has passed: every
// claim and every claim-history entry is cleared and the next boundary
// is armed. Broadcasts a notification when it fires.
func (e *Engine) CheckReset(ctx context.Context) {
	block := time.Duration(e.cfg.ResetBlockHours) * time.Hour
	if block <= 0 {
		block = 3 * time.Hour
	}

	e.mu.Lock()
	now := e.now()
	fired := false
	for !now.Before(e.nextReset) {
		fired = true
		e.nextReset = e.nextReset.Add(block)
	}
	if fired {
		e.claims = make(map[string]*Claim)
		e.history = make(map[string]map[string]struct{})
		e.inside = make(map[string]map[string]struct{})
	}
	next := e.nextReset
	e.mu.Unlock()

	if !fired {
		return
	}
	e.log.Info("global reset: all claims and histories cleared",
		zap.Time("next_reset", next))
	e.send(ctx, "All POI claims have been reset for the new server cycle.")
}
