// Package extension provides the Forge extension adapter for Leasing.
//
// It implements the forge.Extension interface to integrate Leasing
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.leasing" or "leasing" keys.
package extension

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	leasing "github.com/xraph/leasing"
	"github.com/xraph/leasing/gateway"
	gwmemory "github.com/xraph/leasing/gateway/memory"
	"github.com/xraph/leasing/rate"
	"github.com/xraph/leasing/store"
	"github.com/xraph/leasing/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "leasing"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Payment-driven capacity lease engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Leasing as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *leasing.Engine
	store      store.Store
	gateway    gateway.Gateway
	engineOpts []leasing.Option
}

// New creates a new Leasing Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Engine instance.
// This is nil until Register is called.
func (e *Extension) Engine() *leasing.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the leasing engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	// Use the simulated memory gateway if none was provided. Production
	// deployments wire a real ledger gateway via WithGateway.
	if e.gateway == nil {
		e.gateway = gwmemory.New()
	}

	// Build engine options from resolved config.
	opts := e.buildEngineOpts()

	eng := leasing.New(e.store, e.gateway, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*leasing.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("leasing: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("leasing: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs leasing.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []leasing.Option {
	opts := make([]leasing.Option, 0, len(e.engineOpts)+6)

	// Apply config-derived options.
	if e.config.WatchAddress != "" {
		opts = append(opts, leasing.WithWatchAddress(e.config.WatchAddress))
	}
	if e.config.PaymentPollInterval > 0 {
		opts = append(opts, leasing.WithPaymentPollInterval(e.config.PaymentPollInterval))
	}
	if e.config.UsagePollInterval > 0 {
		opts = append(opts, leasing.WithUsagePollInterval(e.config.UsagePollInterval))
	}
	if e.config.SweepInterval > 0 {
		opts = append(opts, leasing.WithSweepInterval(e.config.SweepInterval))
	}
	if e.config.FreshnessWindow > 0 {
		opts = append(opts, leasing.WithFreshnessWindow(e.config.FreshnessWindow))
	}
	opts = append(opts, leasing.WithRate(e.buildRate()))

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// buildRate constructs the lease rate from config, falling back to the
// built-in defaults for unset fields.
func (e *Extension) buildRate() rate.Rate {
	r := rate.Default()
	if e.config.RatePriceSun > 0 {
		r.Price = leasing.Sun(e.config.RatePriceSun)
	}
	if e.config.RateCapacity > 0 {
		r.Capacity = e.config.RateCapacity
	}
	if e.config.RateDuration > 0 {
		r.Duration = e.config.RateDuration
	}
	if e.config.RateMinNativeCapacity > 0 {
		r.MinNativeCapacity = e.config.RateMinNativeCapacity
	}
	return r
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("leasing: configuration is required but not found in config files; " +
				"ensure 'extensions.leasing' or 'leasing' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("leasing: configuration loaded",
		forge.F("watch_address", e.config.WatchAddress),
		forge.F("payment_poll_interval", e.config.PaymentPollInterval),
		forge.F("usage_poll_interval", e.config.UsagePollInterval),
		forge.F("sweep_interval", e.config.SweepInterval),
		forge.F("freshness_window", e.config.FreshnessWindow),
		forge.F("rate_price_sun", e.config.RatePriceSun),
		forge.F("rate_capacity", e.config.RateCapacity),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.leasing" first (namespaced pattern).
	if cm.IsSet("extensions.leasing") {
		if err := cm.Bind("extensions.leasing", &cfg); err == nil {
			e.Logger().Debug("leasing: loaded config from file",
				forge.F("key", "extensions.leasing"),
			)
			return cfg, true
		}
		e.Logger().Warn("leasing: failed to bind extensions.leasing config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "leasing" key.
	if cm.IsSet("leasing") {
		if err := cm.Bind("leasing", &cfg); err == nil {
			e.Logger().Debug("leasing: loaded config from file",
				forge.F("key", "leasing"),
			)
			return cfg, true
		}
		e.Logger().Warn("leasing: failed to bind leasing config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.PaymentPollInterval == 0 {
		cfg.PaymentPollInterval = defaults.PaymentPollInterval
	}
	if cfg.UsagePollInterval == 0 {
		cfg.UsagePollInterval = defaults.UsagePollInterval
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.FreshnessWindow == 0 {
		cfg.FreshnessWindow = defaults.FreshnessWindow
	}
	if cfg.RatePriceSun == 0 {
		cfg.RatePriceSun = defaults.RatePriceSun
	}
	if cfg.RateCapacity == 0 {
		cfg.RateCapacity = defaults.RateCapacity
	}
	if cfg.RateDuration == 0 {
		cfg.RateDuration = defaults.RateDuration
	}
	if cfg.RateMinNativeCapacity == 0 {
		cfg.RateMinNativeCapacity = defaults.RateMinNativeCapacity
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// String fields: YAML takes precedence.
	if yamlConfig.WatchAddress == "" && programmaticConfig.WatchAddress != "" {
		yamlConfig.WatchAddress = programmaticConfig.WatchAddress
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	fill := func(dst *time.Duration, src time.Duration) {
		if *dst == 0 && src != 0 {
			*dst = src
		}
	}
	fill(&yamlConfig.PaymentPollInterval, programmaticConfig.PaymentPollInterval)
	fill(&yamlConfig.UsagePollInterval, programmaticConfig.UsagePollInterval)
	fill(&yamlConfig.SweepInterval, programmaticConfig.SweepInterval)
	fill(&yamlConfig.FreshnessWindow, programmaticConfig.FreshnessWindow)
	fill(&yamlConfig.RateDuration, programmaticConfig.RateDuration)

	if yamlConfig.RatePriceSun == 0 && programmaticConfig.RatePriceSun != 0 {
		yamlConfig.RatePriceSun = programmaticConfig.RatePriceSun
	}
	if yamlConfig.RateCapacity == 0 && programmaticConfig.RateCapacity != 0 {
		yamlConfig.RateCapacity = programmaticConfig.RateCapacity
	}
	if yamlConfig.RateMinNativeCapacity == 0 && programmaticConfig.RateMinNativeCapacity != 0 {
		yamlConfig.RateMinNativeCapacity = programmaticConfig.RateMinNativeCapacity
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
