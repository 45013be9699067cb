// Package plugin provides an extensible plugin system for Leasing.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentObserved is called for every qualifying payment the watcher
// picks up, before any lease is created.
type OnPaymentObserved interface {
	Plugin
	OnPaymentObserved(ctx context.Context, transfer interface{}) error
}

// OnPaymentRejected is called when a payment does not produce a lease
// for a business reason (ineligible sender, conflict, stale transfer).
type OnPaymentRejected interface {
	Plugin
	OnPaymentRejected(ctx context.Context, sender, paymentRef, reason string) error
}

// ──────────────────────────────────────────────────
// Lease lifecycle hooks
// ──────────────────────────────────────────────────

// OnLeaseCreated is called when a new lease is created (status pending).
type OnLeaseCreated interface {
	Plugin
	OnLeaseCreated(ctx context.Context, l interface{}) error
}

// OnLeaseActivated is called when capacity has been granted and the
// lease transitions to active.
type OnLeaseActivated interface {
	Plugin
	OnLeaseActivated(ctx context.Context, l interface{}) error
}

// OnLeaseCompleted is called when a lease is reclaimed and reaches its
// completed terminal status.
type OnLeaseCompleted interface {
	Plugin
	OnLeaseCompleted(ctx context.Context, l interface{}) error
}

// OnLeaseFailed is called when a lease fails before activation.
type OnLeaseFailed interface {
	Plugin
	OnLeaseFailed(ctx context.Context, l interface{}, err error) error
}

// ──────────────────────────────────────────────────
// Usage hooks
// ──────────────────────────────────────────────────

// OnUsageDetected is called when a usage transfer is observed for an
// active lease, before the reclaim is attempted.
type OnUsageDetected interface {
	Plugin
	OnUsageDetected(ctx context.Context, l interface{}, usageRef string) error
}

// ──────────────────────────────────────────────────
// Reclaim hooks
// ──────────────────────────────────────────────────

// OnReclaimed is called after a successful capacity revocation.
type OnReclaimed interface {
	Plugin
	OnReclaimed(ctx context.Context, l interface{}, reclaimRef string) error
}

// OnReclaimRetry is called when a reclaim attempt fails and the lease
// stays active for the sweeper to retry.
type OnReclaimRetry interface {
	Plugin
	OnReclaimRetry(ctx context.Context, leaseID string, err error) error
}

// ──────────────────────────────────────────────────
// Sweep hooks
// ──────────────────────────────────────────────────

// OnSweepCompleted is called at the end of each sweeper pass.
type OnSweepCompleted interface {
	Plugin
	OnSweepCompleted(ctx context.Context, reclaimed int, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Eligibility hooks
// ──────────────────────────────────────────────────

// OnEligibilityChecked is called whenever the native-capacity check runs.
type OnEligibilityChecked interface {
	Plugin
	OnEligibilityChecked(ctx context.Context, address string, result interface{}) error
}
