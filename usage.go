package leasing

import (
	"context"
	"time"

	"github.com/xraph/leasing/id"
	"github.com/xraph/leasing/lease"
)

// spawnUsageWatcher starts one cancellable goroutine observing a newly
// active lease. Spawning twice for the same lease is a no-op. After a
// restart no watchers exist for previously active leases; the sweeper
// is the recovery path for those.
func (e *Engine) spawnUsageWatcher(l *lease.Lease) {
	e.watchersMu.Lock()
	defer e.watchersMu.Unlock()

	key := l.ID.String()
	if _, exists := e.watchers[key]; exists {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.watchers[key] = cancel

	e.wg.Add(1)
	go e.usageWatchLoop(ctx, l)
}

// stopUsageWatcher cancels the watcher for a lease, if one is running.
func (e *Engine) stopUsageWatcher(leaseID id.LeaseID) {
	e.watchersMu.Lock()
	defer e.watchersMu.Unlock()

	key := leaseID.String()
	if cancel, ok := e.watchers[key]; ok {
		cancel()
		delete(e.watchers, key)
	}
}

func (e *Engine) cancelAllUsageWatchers() {
	e.watchersMu.Lock()
	defer e.watchersMu.Unlock()

	for key, cancel := range e.watchers {
		cancel()
		delete(e.watchers, key)
	}
}

// usageWatchLoop polls for a usage transfer from the lease address. On
// usage, or at expiry, it reclaims and exits. It is one of the racing
// reclaim participants; Reclaim's idempotence resolves the race.
func (e *Engine) usageWatchLoop(ctx context.Context, l *lease.Lease) {
	defer e.wg.Done()
	defer e.stopUsageWatcher(l.ID)

	startedAt := time.Now().UTC()
	ticker := time.NewTicker(e.usagePoll)
	defer ticker.Stop()

	e.logger.Debug("usage watcher started",
		"lease_id", l.ID.String(),
		"address", l.Address,
		"expires_at", l.ExpiresAt,
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopChan:
			return
		case <-ticker.C:
			now := time.Now().UTC()
			if l.IsExpired(now) {
				e.reclaimFromWatcher(ctx, l.ID)
				return
			}

			usageRef, found, err := e.findUsage(ctx, l.Address, startedAt)
			if err != nil {
				e.logger.Warn("usage poll failed",
					"lease_id", l.ID.String(),
					"address", l.Address,
					"error", err,
				)
				continue
			}
			if !found {
				continue
			}

			e.recordUsage(ctx, l.ID, usageRef)
			e.reclaimFromWatcher(ctx, l.ID)
			return
		}
	}
}

// findUsage returns the reference of the first usage transfer observed
// after the watcher started.
func (e *Engine) findUsage(ctx context.Context, address string, since time.Time) (string, bool, error) {
	transfers, err := e.gateway.UsageTransfers(ctx, address, e.usageFetchLimit)
	if err != nil {
		return "", false, err
	}

	for _, t := range transfers {
		if t.Timestamp.After(since) {
			return t.TxID, true, nil
		}
	}
	return "", false, nil
}

// recordUsage stamps the usage reference on the lease, best effort. A
// lost CAS means the lease already moved on; the reclaim path handles
// the rest either way.
func (e *Engine) recordUsage(ctx context.Context, leaseID id.LeaseID, usageRef string) {
	updated, err := e.store.UpdateLeaseStatus(ctx, leaseID, lease.StatusActive, func(u *lease.Lease) {
		u.UsageRef = usageRef
	})
	if err != nil {
		if !IsConflict(err) {
			e.logger.Warn("failed to record usage ref",
				"lease_id", leaseID.String(),
				"usage_ref", usageRef,
				"error", err,
			)
		}
		return
	}

	e.plugins.EmitUsageDetected(ctx, updated, usageRef)
	e.logger.Info("usage detected",
		"lease_id", leaseID.String(),
		"address", updated.Address,
		"usage_ref", usageRef,
	)
}

func (e *Engine) reclaimFromWatcher(ctx context.Context, leaseID id.LeaseID) {
	if err := e.Reclaim(ctx, leaseID); err != nil && !isBenign(err) {
		e.logger.Warn("watcher reclaim failed, sweeper will retry",
			"lease_id", leaseID.String(),
			"error", err,
		)
	}
}
