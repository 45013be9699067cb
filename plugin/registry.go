package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit               []OnInit
	onShutdown           []OnShutdown
	onPaymentObserved    []OnPaymentObserved
	onPaymentRejected    []OnPaymentRejected
	onLeaseCreated       []OnLeaseCreated
	onLeaseActivated     []OnLeaseActivated
	onLeaseCompleted     []OnLeaseCompleted
	onLeaseFailed        []OnLeaseFailed
	onUsageDetected      []OnUsageDetected
	onReclaimed          []OnReclaimed
	onReclaimRetry       []OnReclaimRetry
	onSweepCompleted     []OnSweepCompleted
	onEligibilityChecked []OnEligibilityChecked
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnPaymentObserved); ok {
		r.onPaymentObserved = append(r.onPaymentObserved, v)
	}
	if v, ok := p.(OnPaymentRejected); ok {
		r.onPaymentRejected = append(r.onPaymentRejected, v)
	}
	if v, ok := p.(OnLeaseCreated); ok {
		r.onLeaseCreated = append(r.onLeaseCreated, v)
	}
	if v, ok := p.(OnLeaseActivated); ok {
		r.onLeaseActivated = append(r.onLeaseActivated, v)
	}
	if v, ok := p.(OnLeaseCompleted); ok {
		r.onLeaseCompleted = append(r.onLeaseCompleted, v)
	}
	if v, ok := p.(OnLeaseFailed); ok {
		r.onLeaseFailed = append(r.onLeaseFailed, v)
	}
	if v, ok := p.(OnUsageDetected); ok {
		r.onUsageDetected = append(r.onUsageDetected, v)
	}
	if v, ok := p.(OnReclaimed); ok {
		r.onReclaimed = append(r.onReclaimed, v)
	}
	if v, ok := p.(OnReclaimRetry); ok {
		r.onReclaimRetry = append(r.onReclaimRetry, v)
	}
	if v, ok := p.(OnSweepCompleted); ok {
		r.onSweepCompleted = append(r.onSweepCompleted, v)
	}
	if v, ok := p.(OnEligibilityChecked); ok {
		r.onEligibilityChecked = append(r.onEligibilityChecked, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnPaymentObserved)(nil)).Elem(), "OnPaymentObserved")
	checkInterface(reflect.TypeOf((*OnLeaseCreated)(nil)).Elem(), "OnLeaseCreated")
	checkInterface(reflect.TypeOf((*OnLeaseActivated)(nil)).Elem(), "OnLeaseActivated")
	checkInterface(reflect.TypeOf((*OnLeaseCompleted)(nil)).Elem(), "OnLeaseCompleted")
	checkInterface(reflect.TypeOf((*OnUsageDetected)(nil)).Elem(), "OnUsageDetected")
	checkInterface(reflect.TypeOf((*OnReclaimed)(nil)).Elem(), "OnReclaimed")
	checkInterface(reflect.TypeOf((*OnSweepCompleted)(nil)).Elem(), "OnSweepCompleted")
	checkInterface(reflect.TypeOf((*OnEligibilityChecked)(nil)).Elem(), "OnEligibilityChecked")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPaymentObserved emits a payment observed event.
func (r *Registry) EmitPaymentObserved(ctx context.Context, transfer interface{}) {
	r.mu.RLock()
	plugins := r.onPaymentObserved
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPaymentObserved(ctx, transfer)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentObserved failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPaymentRejected emits a payment rejected event.
func (r *Registry) EmitPaymentRejected(ctx context.Context, sender, paymentRef, reason string) {
	r.mu.RLock()
	plugins := r.onPaymentRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPaymentRejected(ctx, sender, paymentRef, reason)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentRejected failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitLeaseCreated emits a lease created event.
func (r *Registry) EmitLeaseCreated(ctx context.Context, l interface{}) {
	r.mu.RLock()
	plugins := r.onLeaseCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLeaseCreated(ctx, l)
		}); err != nil {
			r.logger.Warn("plugin OnLeaseCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitLeaseActivated emits a lease activated event.
func (r *Registry) EmitLeaseActivated(ctx context.Context, l interface{}) {
	r.mu.RLock()
	plugins := r.onLeaseActivated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLeaseActivated(ctx, l)
		}); err != nil {
			r.logger.Warn("plugin OnLeaseActivated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitLeaseCompleted emits a lease completed event.
func (r *Registry) EmitLeaseCompleted(ctx context.Context, l interface{}) {
	r.mu.RLock()
	plugins := r.onLeaseCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLeaseCompleted(ctx, l)
		}); err != nil {
			r.logger.Warn("plugin OnLeaseCompleted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitLeaseFailed emits a lease failed event.
func (r *Registry) EmitLeaseFailed(ctx context.Context, l interface{}, failure error) {
	r.mu.RLock()
	plugins := r.onLeaseFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLeaseFailed(ctx, l, failure)
		}); err != nil {
			r.logger.Warn("plugin OnLeaseFailed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitUsageDetected emits a usage detected event.
func (r *Registry) EmitUsageDetected(ctx context.Context, l interface{}, usageRef string) {
	r.mu.RLock()
	plugins := r.onUsageDetected
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnUsageDetected(ctx, l, usageRef)
		}); err != nil {
			r.logger.Warn("plugin OnUsageDetected failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReclaimed emits a reclaimed event.
func (r *Registry) EmitReclaimed(ctx context.Context, l interface{}, reclaimRef string) {
	r.mu.RLock()
	plugins := r.onReclaimed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnReclaimed(ctx, l, reclaimRef)
		}); err != nil {
			r.logger.Warn("plugin OnReclaimed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReclaimRetry emits a reclaim retry event.
func (r *Registry) EmitReclaimRetry(ctx context.Context, leaseID string, cause error) {
	r.mu.RLock()
	plugins := r.onReclaimRetry
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnReclaimRetry(ctx, leaseID, cause)
		}); err != nil {
			r.logger.Warn("plugin OnReclaimRetry failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSweepCompleted emits a sweep completed event.
func (r *Registry) EmitSweepCompleted(ctx context.Context, reclaimed int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onSweepCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSweepCompleted(ctx, reclaimed, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnSweepCompleted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitEligibilityChecked emits an eligibility checked event.
func (r *Registry) EmitEligibilityChecked(ctx context.Context, address string, result interface{}) {
	r.mu.RLock()
	plugins := r.onEligibilityChecked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnEligibilityChecked(ctx, address, result)
		}); err != nil {
			r.logger.Warn("plugin OnEligibilityChecked failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the lease pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
