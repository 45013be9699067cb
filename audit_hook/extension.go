// Package audithook bridges Leasing lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/leasing/lease"
	"github.com/xraph/leasing/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin            = (*Extension)(nil)
	_ plugin.OnPaymentRejected = (*Extension)(nil)
	_ plugin.OnLeaseCreated    = (*Extension)(nil)
	_ plugin.OnLeaseActivated  = (*Extension)(nil)
	_ plugin.OnLeaseCompleted  = (*Extension)(nil)
	_ plugin.OnLeaseFailed     = (*Extension)(nil)
	_ plugin.OnUsageDetected   = (*Extension)(nil)
	_ plugin.OnReclaimed       = (*Extension)(nil)
	_ plugin.OnReclaimRetry    = (*Extension)(nil)
	_ plugin.OnSweepCompleted  = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Leasing lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRejected implements plugin.OnPaymentRejected.
func (e *Extension) OnPaymentRejected(ctx context.Context, sender, paymentRef, reason string) error {
	return e.record(ctx, ActionPaymentRejected, SeverityWarning, OutcomeFailure,
		ResourcePayment, paymentRef, CategoryPayment, nil,
		"sender", sender,
		"payment_ref", paymentRef,
		"reject_reason", reason,
	)
}

// ──────────────────────────────────────────────────
// Lease lifecycle hooks
// ──────────────────────────────────────────────────

// OnLeaseCreated implements plugin.OnLeaseCreated.
func (e *Extension) OnLeaseCreated(ctx context.Context, l interface{}) error {
	id, kv := leaseFields(l)
	return e.record(ctx, ActionLeaseCreated, SeverityInfo, OutcomeSuccess,
		ResourceLease, id, CategoryLease, nil, kv...)
}

// OnLeaseActivated implements plugin.OnLeaseActivated.
func (e *Extension) OnLeaseActivated(ctx context.Context, l interface{}) error {
	id, kv := leaseFields(l)
	return e.record(ctx, ActionLeaseActivated, SeverityInfo, OutcomeSuccess,
		ResourceLease, id, CategoryLease, nil, kv...)
}

// OnLeaseCompleted implements plugin.OnLeaseCompleted.
func (e *Extension) OnLeaseCompleted(ctx context.Context, l interface{}) error {
	id, kv := leaseFields(l)
	return e.record(ctx, ActionLeaseCompleted, SeverityInfo, OutcomeSuccess,
		ResourceLease, id, CategoryLease, nil, kv...)
}

// OnLeaseFailed implements plugin.OnLeaseFailed.
func (e *Extension) OnLeaseFailed(ctx context.Context, l interface{}, err error) error {
	id, kv := leaseFields(l)
	return e.record(ctx, ActionLeaseFailed, SeverityError, OutcomeFailure,
		ResourceLease, id, CategoryLease, err, kv...)
}

// ──────────────────────────────────────────────────
// Usage and reclaim hooks
// ──────────────────────────────────────────────────

// OnUsageDetected implements plugin.OnUsageDetected.
func (e *Extension) OnUsageDetected(ctx context.Context, l interface{}, usageRef string) error {
	id, kv := leaseFields(l)
	kv = append(kv, "usage_ref", usageRef)
	return e.record(ctx, ActionUsageDetected, SeverityInfo, OutcomeSuccess,
		ResourceUsage, id, CategoryLease, nil, kv...)
}

// OnReclaimed implements plugin.OnReclaimed.
func (e *Extension) OnReclaimed(ctx context.Context, l interface{}, reclaimRef string) error {
	id, kv := leaseFields(l)
	kv = append(kv, "reclaim_ref", reclaimRef)
	return e.record(ctx, ActionReclaimed, SeverityInfo, OutcomeSuccess,
		ResourceLease, id, CategoryReclaim, nil, kv...)
}

// OnReclaimRetry implements plugin.OnReclaimRetry.
func (e *Extension) OnReclaimRetry(ctx context.Context, leaseID string, err error) error {
	return e.record(ctx, ActionReclaimRetry, SeverityWarning, OutcomePartial,
		ResourceLease, leaseID, CategoryReclaim, err,
		"lease_id", leaseID,
	)
}

// OnSweepCompleted implements plugin.OnSweepCompleted.
func (e *Extension) OnSweepCompleted(ctx context.Context, reclaimed int, elapsed time.Duration) error {
	// Only audit sweeps that actually reclaimed something
	if reclaimed == 0 {
		return nil
	}
	return e.record(ctx, ActionSweepComplete, SeverityInfo, OutcomeSuccess,
		ResourceSweep, "", CategoryReclaim, nil,
		"reclaimed", reclaimed,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// leaseFields extracts the resource id and common metadata pairs from a
// lease payload, tolerating unknown payload types.
func leaseFields(payload interface{}) (string, []any) {
	l, ok := payload.(*lease.Lease)
	if !ok {
		return "", nil
	}
	return l.ID.String(), []any{
		"address", l.Address,
		"capacity", l.CapacityAmount,
		"payment_ref", l.PaymentRef,
		"status", string(l.Status),
	}
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
