package extension

import (
	"time"

	leasing "github.com/xraph/leasing"
	"github.com/xraph/leasing/gateway"
	"github.com/xraph/leasing/plugin"
	"github.com/xraph/leasing/store"
)

// Option configures the Leasing Forge extension.
type Option func(*Extension)

// WithStore sets the store for the leasing engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGateway sets the ledger gateway for the leasing engine.
// If not set, the simulated in-memory gateway is used.
func WithGateway(gw gateway.Gateway) Option {
	return func(e *Extension) {
		e.gateway = gw
	}
}

// WithEngineOption passes a leasing.Option through to the underlying engine.
func WithEngineOption(opt leasing.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a leasing plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, leasing.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithWatchAddress sets the ledger address the engine observes for payments.
func WithWatchAddress(address string) Option {
	return func(e *Extension) { e.config.WatchAddress = address }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithPaymentPollInterval sets how frequently the payment watcher polls.
func WithPaymentPollInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.PaymentPollInterval = d }
}

// WithUsagePollInterval sets how frequently usage watchers poll.
func WithUsagePollInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.UsagePollInterval = d }
}

// WithSweepInterval sets how frequently the expiry sweeper runs.
func WithSweepInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.SweepInterval = d }
}

// WithFreshnessWindow bounds how old an observed payment may be and still
// produce a lease.
func WithFreshnessWindow(d time.Duration) Option {
	return func(e *Extension) { e.config.FreshnessWindow = d }
}
