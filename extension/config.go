package extension

import "time"

// Config holds the Leasing extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.leasing" or "leasing" keys).
type Config struct {
	// WatchAddress is the ledger address the engine observes for
	// incoming payments. Required unless provided programmatically.
	WatchAddress string `json:"watch_address" mapstructure:"watch_address" yaml:"watch_address"`

	// PaymentPollInterval is how frequently the payment watcher polls the
	// gateway for new transfers (default: 3s).
	PaymentPollInterval time.Duration `json:"payment_poll_interval" mapstructure:"payment_poll_interval" yaml:"payment_poll_interval"`

	// UsagePollInterval is how frequently each per-lease usage watcher
	// polls the gateway (default: 3s).
	UsagePollInterval time.Duration `json:"usage_poll_interval" mapstructure:"usage_poll_interval" yaml:"usage_poll_interval"`

	// SweepInterval is how frequently the expiry sweeper scans for
	// expired active leases (default: 1m).
	SweepInterval time.Duration `json:"sweep_interval" mapstructure:"sweep_interval" yaml:"sweep_interval"`

	// FreshnessWindow bounds how old an observed payment may be and still
	// produce a lease (default: 5m).
	FreshnessWindow time.Duration `json:"freshness_window" mapstructure:"freshness_window" yaml:"freshness_window"`

	// RatePriceSun is the qualifying payment amount in sun
	// (default: 100000, i.e. 0.1 TRX).
	RatePriceSun int64 `json:"rate_price_sun" mapstructure:"rate_price_sun" yaml:"rate_price_sun"`

	// RateCapacity is the capacity units granted per lease (default: 11800).
	RateCapacity int64 `json:"rate_capacity" mapstructure:"rate_capacity" yaml:"rate_capacity"`

	// RateDuration is the lease term (default: 10m).
	RateDuration time.Duration `json:"rate_duration" mapstructure:"rate_duration" yaml:"rate_duration"`

	// RateMinNativeCapacity is the native capacity threshold above which a
	// sender is ineligible for a lease (default: 60000).
	RateMinNativeCapacity int64 `json:"rate_min_native_capacity" mapstructure:"rate_min_native_capacity" yaml:"rate_min_native_capacity"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PaymentPollInterval:   3 * time.Second,
		UsagePollInterval:     3 * time.Second,
		SweepInterval:         time.Minute,
		FreshnessWindow:       5 * time.Minute,
		RatePriceSun:          100_000,
		RateCapacity:          11_800,
		RateDuration:          10 * time.Minute,
		RateMinNativeCapacity: 60_000,
	}
}
