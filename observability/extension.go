// Package observability provides a metrics extension for Leasing that records
// lifecycle event counts via go-utils MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/leasing/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnInit               = (*MetricsExtension)(nil)
	_ plugin.OnPaymentObserved    = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRejected    = (*MetricsExtension)(nil)
	_ plugin.OnLeaseCreated       = (*MetricsExtension)(nil)
	_ plugin.OnLeaseActivated     = (*MetricsExtension)(nil)
	_ plugin.OnLeaseCompleted     = (*MetricsExtension)(nil)
	_ plugin.OnLeaseFailed        = (*MetricsExtension)(nil)
	_ plugin.OnUsageDetected      = (*MetricsExtension)(nil)
	_ plugin.OnReclaimed          = (*MetricsExtension)(nil)
	_ plugin.OnReclaimRetry       = (*MetricsExtension)(nil)
	_ plugin.OnSweepCompleted     = (*MetricsExtension)(nil)
	_ plugin.OnEligibilityChecked = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Leasing plugin to automatically track lease metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Payment metrics
	PaymentObserved Counter
	PaymentRejected Counter

	// Lease metrics
	LeaseCreated   Counter
	LeaseActivated Counter
	LeaseCompleted Counter
	LeaseFailed    Counter

	// Usage metrics
	UsageDetected Counter

	// Reclaim metrics
	Reclaimed     Counter
	ReclaimRetry  Counter
	SweepRuns     Counter
	SweepReclaims Counter
	SweepLatency  Histogram

	// Eligibility metrics
	EligibilityChecks Counter

	// Error metrics
	StoreErrors   Counter
	GatewayErrors Counter
	PluginErrors  Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Payment metrics
		PaymentObserved: factory.Counter("leasing.payment.observed"),
		PaymentRejected: factory.Counter("leasing.payment.rejected"),

		// Lease metrics
		LeaseCreated:   factory.Counter("leasing.lease.created"),
		LeaseActivated: factory.Counter("leasing.lease.activated"),
		LeaseCompleted: factory.Counter("leasing.lease.completed"),
		LeaseFailed:    factory.Counter("leasing.lease.failed"),

		// Usage metrics
		UsageDetected: factory.Counter("leasing.usage.detected"),

		// Reclaim metrics
		Reclaimed:     factory.Counter("leasing.reclaim.success"),
		ReclaimRetry:  factory.Counter("leasing.reclaim.retry"),
		SweepRuns:     factory.Counter("leasing.sweep.runs"),
		SweepReclaims: factory.Counter("leasing.sweep.reclaims"),
		SweepLatency:  factory.Histogram("leasing.sweep.latency_ms"),

		// Eligibility metrics
		EligibilityChecks: factory.Counter("leasing.eligibility.checks"),

		// Error metrics
		StoreErrors:   factory.Counter("leasing.store.errors"),
		GatewayErrors: factory.Counter("leasing.gateway.errors"),
		PluginErrors:  factory.Counter("leasing.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentObserved implements plugin.OnPaymentObserved.
func (m *MetricsExtension) OnPaymentObserved(_ context.Context, _ interface{}) error {
	m.PaymentObserved.Inc()
	return nil
}

// OnPaymentRejected implements plugin.OnPaymentRejected.
func (m *MetricsExtension) OnPaymentRejected(_ context.Context, _, _, _ string) error {
	m.PaymentRejected.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Lease lifecycle hooks
// ──────────────────────────────────────────────────

// OnLeaseCreated implements plugin.OnLeaseCreated.
func (m *MetricsExtension) OnLeaseCreated(_ context.Context, _ interface{}) error {
	m.LeaseCreated.Inc()
	return nil
}

// OnLeaseActivated implements plugin.OnLeaseActivated.
func (m *MetricsExtension) OnLeaseActivated(_ context.Context, _ interface{}) error {
	m.LeaseActivated.Inc()
	return nil
}

// OnLeaseCompleted implements plugin.OnLeaseCompleted.
func (m *MetricsExtension) OnLeaseCompleted(_ context.Context, _ interface{}) error {
	m.LeaseCompleted.Inc()
	return nil
}

// OnLeaseFailed implements plugin.OnLeaseFailed.
func (m *MetricsExtension) OnLeaseFailed(_ context.Context, _ interface{}, _ error) error {
	m.LeaseFailed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Usage hooks
// ──────────────────────────────────────────────────

// OnUsageDetected implements plugin.OnUsageDetected.
func (m *MetricsExtension) OnUsageDetected(_ context.Context, _ interface{}, _ string) error {
	m.UsageDetected.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Reclaim hooks
// ──────────────────────────────────────────────────

// OnReclaimed implements plugin.OnReclaimed.
func (m *MetricsExtension) OnReclaimed(_ context.Context, _ interface{}, _ string) error {
	m.Reclaimed.Inc()
	return nil
}

// OnReclaimRetry implements plugin.OnReclaimRetry.
func (m *MetricsExtension) OnReclaimRetry(_ context.Context, _ string, _ error) error {
	m.ReclaimRetry.Inc()
	return nil
}

// OnSweepCompleted implements plugin.OnSweepCompleted.
func (m *MetricsExtension) OnSweepCompleted(_ context.Context, reclaimed int, elapsed time.Duration) error {
	m.SweepRuns.Inc()
	m.SweepReclaims.Add(float64(reclaimed))
	m.SweepLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// Eligibility hooks
// ──────────────────────────────────────────────────

// OnEligibilityChecked implements plugin.OnEligibilityChecked.
func (m *MetricsExtension) OnEligibilityChecked(_ context.Context, _ string, _ interface{}) error {
	m.EligibilityChecks.Inc()
	return nil
}
