package leasing

import (
	"context"
	"time"
)

// sweepWorker reclaims expired active leases on a fixed period. It is
// deliberately redundant with the usage watchers: after a restart, or
// when a watcher's reclaim fails, the sweeper is what converges the
// system.
func (e *Engine) sweepWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			if err := e.sweepOnce(ctx); err != nil {
				e.logger.Warn("sweep failed",
					"error", err,
				)
				if !e.backoff() {
					return
				}
			}
		}
	}
}

// sweepOnce reclaims every active lease whose term has elapsed.
func (e *Engine) sweepOnce(ctx context.Context) error {
	start := time.Now()

	expired, err := e.store.ListActiveExpired(ctx, start.UTC())
	if err != nil {
		return err
	}

	reclaimed := 0
	for _, l := range expired {
		if err := e.Reclaim(ctx, l.ID); err != nil {
			if !isBenign(err) {
				e.logger.Warn("sweeper reclaim failed",
					"lease_id", l.ID.String(),
					"address", l.Address,
					"error", err,
				)
			}
			continue
		}
		reclaimed++
	}

	elapsed := time.Since(start)
	e.plugins.EmitSweepCompleted(ctx, reclaimed, elapsed)

	if len(expired) > 0 {
		e.logger.Info("sweep completed",
			"expired", len(expired),
			"reclaimed", reclaimed,
			"elapsed_ms", elapsed.Milliseconds(),
		)
	}

	return nil
}
