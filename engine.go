package leasing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/leasing/eligibility"
	"github.com/xraph/leasing/gateway"
	"github.com/xraph/leasing/id"
	"github.com/xraph/leasing/lease"
	"github.com/xraph/leasing/plugin"
	"github.com/xraph/leasing/rate"
	"github.com/xraph/leasing/store"
	"github.com/xraph/leasing/types"
)

// Engine is the lease lifecycle manager. It watches for payments to the
// configured address, grants leased capacity through the gateway, and
// reclaims it on usage or expiry with exactly-once semantics.
type Engine struct {
	store   store.Store
	gateway gateway.Gateway
	plugins *plugin.Registry
	logger  *slog.Logger

	// Background workers
	paymentBuffer chan gateway.Transfer
	stopChan      chan struct{}
	wg            sync.WaitGroup
	stopped       atomic.Bool

	// Per-lease reclaim claims. The holder of a claim is the only
	// in-process caller allowed to attempt the revocation.
	claimsMu sync.Mutex
	claims   map[string]struct{}

	// Per-lease usage watchers, keyed by lease ID.
	watchersMu sync.Mutex
	watchers   map[string]context.CancelFunc

	// Configuration
	rate              rate.Rate
	watchAddress      string
	paymentPoll       time.Duration
	usagePoll         time.Duration
	sweepInterval     time.Duration
	errorBackoff      time.Duration
	freshnessWindow   time.Duration
	paymentFetchLimit int
	usageFetchLimit   int
}

// New creates a new Engine instance.
func New(s store.Store, gw gateway.Gateway, opts ...Option) *Engine {
	e := &Engine{
		store:             s,
		gateway:           gw,
		plugins:           plugin.NewRegistry(),
		logger:            slog.Default(),
		paymentBuffer:     make(chan gateway.Transfer, 1024),
		stopChan:          make(chan struct{}),
		claims:            make(map[string]struct{}),
		watchers:          make(map[string]context.CancelFunc),
		rate:              rate.Default(),
		paymentPoll:       3 * time.Second,
		usagePoll:         3 * time.Second,
		sweepInterval:     time.Minute,
		errorBackoff:      5 * time.Second,
		freshnessWindow:   5 * time.Minute,
		paymentFetchLimit: 10,
		usageFetchLimit:   20,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithRate sets the lease rate.
func WithRate(r rate.Rate) Option {
	return func(e *Engine) {
		e.rate = r
	}
}

// WithWatchAddress sets the address payments are observed on.
func WithWatchAddress(address string) Option {
	return func(e *Engine) {
		e.watchAddress = address
	}
}

// WithPaymentPollInterval sets how often incoming transfers are polled.
func WithPaymentPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.paymentPoll = d
	}
}

// WithUsagePollInterval sets how often usage watchers poll.
func WithUsagePollInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.usagePoll = d
	}
}

// WithSweepInterval sets the expiry sweeper period.
func WithSweepInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.sweepInterval = d
	}
}

// WithErrorBackoff sets how long watcher loops pause after a gateway error.
func WithErrorBackoff(d time.Duration) Option {
	return func(e *Engine) {
		e.errorBackoff = d
	}
}

// WithFreshnessWindow sets the maximum age of a transfer still treated
// as a new payment.
func WithFreshnessWindow(d time.Duration) Option {
	return func(e *Engine) {
		e.freshnessWindow = d
	}
}

// WithPaymentFetchLimit sets how many incoming transfers each poll fetches.
func WithPaymentFetchLimit(n int) Option {
	return func(e *Engine) {
		e.paymentFetchLimit = n
	}
}

// WithUsageFetchLimit sets how many usage transfers each poll fetches.
func WithUsageFetchLimit(n int) Option {
	return func(e *Engine) {
		e.usageFetchLimit = n
	}
}

// Start validates configuration, migrates the store, and launches the
// background workers. Configuration problems are fatal: a misconfigured
// engine refuses to start rather than running half-blind.
func (e *Engine) Start(ctx context.Context) error {
	if e.store == nil {
		return fmt.Errorf("%w: store is nil", ErrInvalidInput)
	}
	if e.gateway == nil {
		return fmt.Errorf("%w: gateway is nil", ErrInvalidInput)
	}
	if e.watchAddress == "" {
		return ErrWatchAddressMissing
	}
	if !e.rate.Valid() {
		return ErrInvalidRate
	}

	// Migrate database
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	// Initialize plugins
	e.plugins.EmitInit(ctx, e)

	// Exactly three process-wide workers. Usage watchers are spawned
	// per lease as leases activate.
	e.wg.Add(3)
	go e.paymentWatchWorker(ctx)
	go e.paymentDispatchWorker(ctx)
	go e.sweepWorker(ctx)

	e.logger.Info("leasing engine started",
		"watch_address", e.watchAddress,
		"price", e.rate.Price.String(),
		"capacity", e.rate.Capacity,
		"duration", e.rate.Duration,
		"payment_poll", e.paymentPoll,
		"sweep_interval", e.sweepInterval,
	)

	return nil
}

// Stop shuts down the Engine. Workers finish their current iteration;
// in-flight gateway calls complete.
func (e *Engine) Stop() error {
	if !e.stopped.CompareAndSwap(false, true) {
		return ErrEngineStopped
	}

	close(e.stopChan)
	e.cancelAllUsageWatchers()
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// ──────────────────────────────────────────────────
// Payment handling
// ──────────────────────────────────────────────────

// HandlePayment processes one observed payment. An ineligible sender is
// a business rejection, returned in the eligibility result with a nil
// error. Conflicts (another observer already created the lease) are
// silent no-ops.
func (e *Engine) HandlePayment(ctx context.Context, sender, paymentRef string, paid types.Amount) (*lease.Lease, eligibility.Result, error) {
	if e.stopped.Load() {
		return nil, eligibility.Result{}, ErrEngineStopped
	}

	result, err := e.checkEligibility(ctx, sender)
	if err != nil {
		return nil, eligibility.Result{}, err
	}
	if !result.Eligible {
		e.plugins.EmitPaymentRejected(ctx, sender, paymentRef, result.Reason)
		e.logger.Info("payment rejected, sender holds enough capacity",
			"sender", sender,
			"payment_ref", paymentRef,
			"available", result.Available,
		)
		return nil, result, nil
	}

	l := &lease.Lease{
		Entity:         types.NewEntity(),
		ID:             id.NewLeaseID(),
		Address:        sender,
		CapacityAmount: e.rate.Capacity,
		PaymentRef:     paymentRef,
		PaidAmount:     paid,
		Status:         lease.StatusPending,
		ExpiresAt:      time.Now().UTC().Add(e.rate.Duration),
	}

	if err := e.store.InsertLease(ctx, l); err != nil {
		if IsConflict(err) {
			// Another observer won the insert race, or the payment was
			// already handled. Nothing to do.
			e.logger.Debug("lease insert conflict",
				"address", sender,
				"payment_ref", paymentRef,
				"reason", err,
			)
			return nil, result, nil
		}
		return nil, result, err
	}

	e.plugins.EmitLeaseCreated(ctx, l)
	e.logger.Info("lease created",
		"lease_id", l.ID.String(),
		"address", l.Address,
		"capacity", l.CapacityAmount,
		"paid", paid.String(),
		"expires_at", l.ExpiresAt,
	)

	activated, err := e.grant(ctx, l)
	if err != nil {
		return nil, result, err
	}
	return activated, result, nil
}

// checkEligibility runs the native-capacity business check. The check
// happens once, at creation time; a later balance change does not undo
// a qualifying payment.
func (e *Engine) checkEligibility(ctx context.Context, address string) (eligibility.Result, error) {
	available, err := e.gateway.AvailableCapacity(ctx, address)
	if err != nil {
		return eligibility.Result{}, fmt.Errorf("leasing: check available capacity for %s: %w", address, err)
	}

	var result eligibility.Result
	if available >= e.rate.MinNativeCapacity {
		result = eligibility.Ineligible(available, e.rate.MinNativeCapacity)
	} else {
		result = eligibility.Eligible(available, e.rate.MinNativeCapacity)
	}

	e.plugins.EmitEligibilityChecked(ctx, address, result)
	return result, nil
}

// grant delegates capacity for a pending lease and activates it. A
// gateway failure fails the lease permanently; there is no grant retry.
func (e *Engine) grant(ctx context.Context, l *lease.Lease) (*lease.Lease, error) {
	grantRef, err := e.gateway.GrantCapacity(ctx, l.Address, l.CapacityAmount)
	if err != nil {
		failed, casErr := e.store.UpdateLeaseStatus(ctx, l.ID, lease.StatusPending, func(u *lease.Lease) {
			u.Status = lease.StatusFailed
		})
		if casErr != nil && !IsConflict(casErr) {
			e.logger.Error("failed to mark lease failed",
				"lease_id", l.ID.String(),
				"error", casErr,
			)
		}
		if failed == nil {
			failed = l
		}
		e.plugins.EmitLeaseFailed(ctx, failed, err)
		e.logger.Error("capacity grant failed",
			"lease_id", l.ID.String(),
			"address", l.Address,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrGrantRejected, err)
	}

	active, err := e.store.UpdateLeaseStatus(ctx, l.ID, lease.StatusPending, func(u *lease.Lease) {
		u.Status = lease.StatusActive
		u.GrantRef = grantRef
	})
	if err != nil {
		if IsConflict(err) {
			// Someone else transitioned the lease first.
			return nil, nil
		}
		return nil, err
	}

	e.spawnUsageWatcher(active)
	e.plugins.EmitLeaseActivated(ctx, active)
	e.logger.Info("lease activated",
		"lease_id", active.ID.String(),
		"address", active.Address,
		"grant_ref", grantRef,
	)

	return active, nil
}

// ──────────────────────────────────────────────────
// Reclaim
// ──────────────────────────────────────────────────

// Reclaim revokes the capacity of an active lease and completes it,
// exactly once. Concurrent callers (usage watcher, sweeper, operator)
// race safely: one revokes, the rest observe ErrNotActive or lose the
// in-process claim and no-op.
func (e *Engine) Reclaim(ctx context.Context, leaseID id.LeaseID) error {
	if !e.tryClaim(leaseID) {
		// Another caller is reclaiming this lease right now.
		return nil
	}
	defer e.releaseClaim(leaseID)

	l, err := e.store.GetLease(ctx, leaseID)
	if err != nil {
		return err
	}
	if l.Status != lease.StatusActive {
		return ErrNotActive
	}

	reclaimRef, err := e.gateway.RevokeCapacity(ctx, l.Address)
	if err != nil {
		// The lease stays active; the next sweep retries.
		e.plugins.EmitReclaimRetry(ctx, leaseID.String(), err)
		e.logger.Warn("capacity revocation failed, will retry",
			"lease_id", leaseID.String(),
			"address", l.Address,
			"error", err,
		)
		return fmt.Errorf("%w: %v", ErrRevokeRejected, err)
	}

	completed, err := e.store.UpdateLeaseStatus(ctx, leaseID, lease.StatusActive, func(u *lease.Lease) {
		u.Status = lease.StatusCompleted
		u.ReclaimRef = reclaimRef
	})
	if err != nil {
		if IsConflict(err) {
			// Another process completed it between our read and the CAS.
			return nil
		}
		return err
	}

	e.stopUsageWatcher(leaseID)
	e.plugins.EmitReclaimed(ctx, completed, reclaimRef)
	e.plugins.EmitLeaseCompleted(ctx, completed)
	e.logger.Info("lease completed",
		"lease_id", leaseID.String(),
		"address", completed.Address,
		"reclaim_ref", reclaimRef,
	)

	return nil
}

// tryClaim takes the in-process reclaim claim for a lease.
func (e *Engine) tryClaim(leaseID id.LeaseID) bool {
	e.claimsMu.Lock()
	defer e.claimsMu.Unlock()

	key := leaseID.String()
	if _, held := e.claims[key]; held {
		return false
	}
	e.claims[key] = struct{}{}
	return true
}

func (e *Engine) releaseClaim(leaseID id.LeaseID) {
	e.claimsMu.Lock()
	defer e.claimsMu.Unlock()
	delete(e.claims, leaseID.String())
}

// ──────────────────────────────────────────────────
// Manual operations
// ──────────────────────────────────────────────────

// ManualLease creates and grants a lease without a funding payment.
// Pass amount <= 0 to use the rate's capacity.
func (e *Engine) ManualLease(ctx context.Context, address string, amount int64) (*lease.Lease, eligibility.Result, error) {
	if e.stopped.Load() {
		return nil, eligibility.Result{}, ErrEngineStopped
	}

	result, err := e.checkEligibility(ctx, address)
	if err != nil {
		return nil, eligibility.Result{}, err
	}
	if !result.Eligible {
		return nil, result, ErrNotEligible
	}

	if amount <= 0 {
		amount = e.rate.Capacity
	}

	l := &lease.Lease{
		Entity:         types.NewEntity(),
		ID:             id.NewLeaseID(),
		Address:        address,
		CapacityAmount: amount,
		PaymentRef:     lease.ManualPaymentRef,
		Status:         lease.StatusPending,
		ExpiresAt:      time.Now().UTC().Add(e.rate.Duration),
	}

	if err := e.store.InsertLease(ctx, l); err != nil {
		return nil, result, err
	}
	e.plugins.EmitLeaseCreated(ctx, l)
	e.logger.Info("manual lease created",
		"lease_id", l.ID.String(),
		"address", address,
		"capacity", amount,
	)

	activated, err := e.grant(ctx, l)
	if err != nil {
		return nil, result, err
	}
	return activated, result, nil
}

// ManualReclaim reclaims the active lease on an address, if any.
func (e *Engine) ManualReclaim(ctx context.Context, address string) (*lease.Lease, error) {
	if e.stopped.Load() {
		return nil, ErrEngineStopped
	}

	l, err := e.store.GetActiveLeaseByAddress(ctx, address)
	if err != nil {
		return nil, err
	}

	if err := e.Reclaim(ctx, l.ID); err != nil && !IsConflict(err) {
		return nil, err
	}
	return e.store.GetLease(ctx, l.ID)
}

// ──────────────────────────────────────────────────
// Read accessors
// ──────────────────────────────────────────────────

// Lease retrieves a lease by ID.
func (e *Engine) Lease(ctx context.Context, leaseID id.LeaseID) (*lease.Lease, error) {
	return e.store.GetLease(ctx, leaseID)
}

// LeaseByAddress retrieves the active lease on an address.
func (e *Engine) LeaseByAddress(ctx context.Context, address string) (*lease.Lease, error) {
	return e.store.GetActiveLeaseByAddress(ctx, address)
}

// Remaining returns the time left on a lease. Zero for expired or
// terminal leases.
func (e *Engine) Remaining(ctx context.Context, leaseID id.LeaseID) (time.Duration, error) {
	l, err := e.store.GetLease(ctx, leaseID)
	if err != nil {
		return 0, err
	}
	if l.IsTerminal() {
		return 0, nil
	}
	return l.Remaining(time.Now().UTC()), nil
}

// Snapshot is an aggregate view of the engine's ledger.
type Snapshot struct {
	TotalLeases    int64        `json:"total_leases"`
	ActiveLeases   int64        `json:"active_leases"`
	PendingLeases  int64        `json:"pending_leases"`
	CapacityOnLoan int64        `json:"capacity_on_loan"`
	Revenue        types.Amount `json:"revenue"`
}

// Snapshot computes the current system totals: lease counts, capacity
// currently on loan, and revenue observed across all leases.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	counts, err := e.store.CountLeasesByStatus(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	for _, n := range counts {
		snap.TotalLeases += n
	}
	snap.ActiveLeases = counts[lease.StatusActive]
	snap.PendingLeases = counts[lease.StatusPending]

	active, err := e.store.ListLeases(ctx, "", lease.ListOpts{Status: lease.StatusActive})
	if err != nil {
		return Snapshot{}, err
	}
	for _, l := range active {
		snap.CapacityOnLoan += l.CapacityAmount
	}

	all, err := e.store.ListLeases(ctx, "", lease.ListOpts{})
	if err != nil {
		return Snapshot{}, err
	}
	for _, l := range all {
		if l.Status != lease.StatusFailed {
			snap.Revenue = snap.Revenue.Add(l.PaidAmount)
		}
	}

	return snap, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// backoff pauses a worker loop after an error, or returns early when
// the engine stops.
func (e *Engine) backoff() bool {
	select {
	case <-e.stopChan:
		return false
	case <-time.After(e.errorBackoff):
		return true
	}
}

// isBenign reports whether a reclaim or payment error is an expected
// race outcome rather than a real failure.
func isBenign(err error) bool {
	return err == nil || IsConflict(err) || errors.Is(err, ErrLeaseNotFound)
}
