package leasing_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/leasing"
	"github.com/xraph/leasing/gateway"
	gwmemory "github.com/xraph/leasing/gateway/memory"
	"github.com/xraph/leasing/lease"
	"github.com/xraph/leasing/rate"
	memstore "github.com/xraph/leasing/store/memory"
	"github.com/xraph/leasing/types"
)

const poolAddr = "TPoolWatchAddr111111111111111111"

// newTestEngine builds an engine on fresh memory backends. Usage watchers
// are parked on a long poll interval so tests stay deterministic unless
// they opt in.
func newTestEngine(opts ...leasing.Option) (*leasing.Engine, *gwmemory.Gateway, *memstore.Store) {
	st := memstore.New()
	gw := gwmemory.New()

	base := []leasing.Option{
		leasing.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		leasing.WithWatchAddress(poolAddr),
		leasing.WithUsagePollInterval(time.Hour),
	}
	eng := leasing.New(st, gw, append(base, opts...)...)

	return eng, gw, st
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestHandlePaymentCreatesActiveLease(t *testing.T) {
	ctx := context.Background()
	eng, gw, _ := newTestEngine()

	before := time.Now().UTC()
	l, result, err := eng.HandlePayment(ctx, "TSender1", "tx_1", types.Sun(100_000))
	if err != nil {
		t.Fatalf("HandlePayment: %v", err)
	}
	if !result.Eligible {
		t.Fatalf("Expected eligible sender, got %+v", result)
	}

	if l.Status != lease.StatusActive {
		t.Errorf("Status: got %s, want active", l.Status)
	}
	if l.CapacityAmount != 11_800 {
		t.Errorf("Capacity: got %d, want 11800", l.CapacityAmount)
	}
	if l.GrantRef == "" {
		t.Error("Expected a grant ref")
	}
	want := before.Add(10 * time.Minute)
	if l.ExpiresAt.Before(want.Add(-2*time.Second)) || l.ExpiresAt.After(want.Add(2*time.Second)) {
		t.Errorf("ExpiresAt: got %s, want about %s", l.ExpiresAt, want)
	}
	if gw.Granted("TSender1") != 11_800 {
		t.Errorf("Granted capacity: got %d, want 11800", gw.Granted("TSender1"))
	}
}

func TestHandlePaymentIneligibleSender(t *testing.T) {
	ctx := context.Background()
	eng, gw, st := newTestEngine()

	gw.SetCapacity("TRich1", 60_000)

	l, result, err := eng.HandlePayment(ctx, "TRich1", "tx_1", types.Sun(100_000))
	if err != nil {
		t.Fatalf("HandlePayment: %v", err)
	}
	if l != nil {
		t.Errorf("Expected no lease, got %+v", l)
	}
	if result.Eligible {
		t.Error("Expected ineligible result")
	}
	if result.Reason == "" {
		t.Error("Expected a rejection reason")
	}

	leases, err := st.ListLeases(ctx, "TRich1", lease.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(leases) != 0 {
		t.Errorf("Expected no stored lease, got %d", len(leases))
	}
}

func TestDuplicatePaymentRefFundsOneLease(t *testing.T) {
	ctx := context.Background()
	eng, _, st := newTestEngine()

	first, _, err := eng.HandlePayment(ctx, "TSender1", "tx_dup", types.Sun(100_000))
	if err != nil {
		t.Fatal(err)
	}

	// Same payment observed again from a different poll cycle.
	second, result, err := eng.HandlePayment(ctx, "TSender2", "tx_dup", types.Sun(100_000))
	if err != nil {
		t.Fatalf("Duplicate HandlePayment: %v", err)
	}
	if second != nil {
		t.Errorf("Duplicate payment produced a lease: %+v", second)
	}
	if !result.Eligible {
		t.Error("Eligibility should pass before the conflict is hit")
	}

	stored, err := st.GetLeaseByPaymentRef(ctx, "tx_dup")
	if err != nil {
		t.Fatal(err)
	}
	if stored.ID != first.ID {
		t.Errorf("Payment ref points at %s, want %s", stored.ID, first.ID)
	}
}

func TestSingleOpenLeasePerAddress(t *testing.T) {
	ctx := context.Background()
	eng, _, st := newTestEngine()

	if _, _, err := eng.HandlePayment(ctx, "TSender1", "tx_1", types.Sun(100_000)); err != nil {
		t.Fatal(err)
	}

	// A second payment while the first lease is still active is dropped.
	l, _, err := eng.HandlePayment(ctx, "TSender1", "tx_2", types.Sun(100_000))
	if err != nil {
		t.Fatalf("Second HandlePayment: %v", err)
	}
	if l != nil {
		t.Errorf("Second payment produced a lease: %+v", l)
	}

	leases, err := st.ListLeases(ctx, "TSender1", lease.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	open := 0
	for _, stored := range leases {
		if !stored.IsTerminal() {
			open++
		}
	}
	if open != 1 {
		t.Errorf("Open leases on address: got %d, want 1", open)
	}
}

func TestGrantFailureFailsLease(t *testing.T) {
	ctx := context.Background()
	eng, gw, st := newTestEngine()

	gw.FailGrants(errors.New("node unavailable"))

	_, _, err := eng.HandlePayment(ctx, "TSender1", "tx_1", types.Sun(100_000))
	if !errors.Is(err, leasing.ErrGrantRejected) {
		t.Fatalf("Expected ErrGrantRejected, got %v", err)
	}

	stored, err := st.GetLeaseByPaymentRef(ctx, "tx_1")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != lease.StatusFailed {
		t.Errorf("Status: got %s, want failed", stored.Status)
	}

	// Nothing was granted, so nothing must ever be reclaimed.
	if gw.RevokeCalls() != 0 {
		t.Errorf("RevokeCalls: got %d, want 0", gw.RevokeCalls())
	}
	expired, err := st.ListActiveExpired(ctx, time.Now().UTC().Add(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 0 {
		t.Errorf("Failed lease visible to sweeper: %d", len(expired))
	}
}

func TestConcurrentReclaimRevokesOnce(t *testing.T) {
	ctx := context.Background()
	eng, gw, st := newTestEngine()

	l, _, err := eng.HandlePayment(ctx, "TSender1", "tx_1", types.Sun(100_000))
	if err != nil {
		t.Fatal(err)
	}

	const callers = 16
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := eng.Reclaim(ctx, l.ID); err != nil && !leasing.IsConflict(err) {
				t.Errorf("Reclaim: %v", err)
			}
		}()
	}
	wg.Wait()

	if gw.RevokeCalls() != 1 {
		t.Errorf("RevokeCalls: got %d, want 1", gw.RevokeCalls())
	}

	stored, err := st.GetLease(ctx, l.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != lease.StatusCompleted {
		t.Errorf("Status: got %s, want completed", stored.Status)
	}
	if stored.ReclaimRef == "" {
		t.Error("Expected a reclaim ref")
	}
}

func TestReclaimIdempotent(t *testing.T) {
	ctx := context.Background()
	eng, gw, st := newTestEngine()

	l, _, err := eng.HandlePayment(ctx, "TSender1", "tx_1", types.Sun(100_000))
	if err != nil {
		t.Fatal(err)
	}

	if err := eng.Reclaim(ctx, l.ID); err != nil {
		t.Fatalf("First Reclaim: %v", err)
	}
	first, err := st.GetLease(ctx, l.ID)
	if err != nil {
		t.Fatal(err)
	}

	// Reclaiming a completed lease is a benign no-op.
	err = eng.Reclaim(ctx, l.ID)
	if !errors.Is(err, leasing.ErrNotActive) {
		t.Errorf("Second Reclaim: got %v, want ErrNotActive", err)
	}
	if !leasing.IsConflict(err) {
		t.Error("ErrNotActive should classify as a conflict")
	}

	if gw.RevokeCalls() != 1 {
		t.Errorf("RevokeCalls: got %d, want 1", gw.RevokeCalls())
	}
	again, err := st.GetLease(ctx, l.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.ReclaimRef != first.ReclaimRef {
		t.Errorf("ReclaimRef changed: %s -> %s", first.ReclaimRef, again.ReclaimRef)
	}
}

func TestRevokeFailureLeavesLeaseActive(t *testing.T) {
	ctx := context.Background()
	eng, gw, st := newTestEngine()

	l, _, err := eng.HandlePayment(ctx, "TSender1", "tx_1", types.Sun(100_000))
	if err != nil {
		t.Fatal(err)
	}

	gw.FailRevokes(errors.New("node unavailable"))
	if err := eng.Reclaim(ctx, l.ID); !errors.Is(err, leasing.ErrRevokeRejected) {
		t.Fatalf("Expected ErrRevokeRejected, got %v", err)
	}

	stored, err := st.GetLease(ctx, l.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != lease.StatusActive {
		t.Errorf("Status after failed revoke: got %s, want active", stored.Status)
	}

	// A later attempt succeeds once the gateway recovers.
	gw.FailRevokes(nil)
	if err := eng.Reclaim(ctx, l.ID); err != nil {
		t.Fatalf("Retry Reclaim: %v", err)
	}
	stored, err = st.GetLease(ctx, l.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != lease.StatusCompleted {
		t.Errorf("Status after retry: got %s, want completed", stored.Status)
	}
}

func TestManualLeaseAndReclaim(t *testing.T) {
	ctx := context.Background()
	eng, gw, _ := newTestEngine()

	l, _, err := eng.ManualLease(ctx, "TSender1", 0)
	if err != nil {
		t.Fatalf("ManualLease: %v", err)
	}
	if l.Status != lease.StatusActive {
		t.Errorf("Status: got %s, want active", l.Status)
	}
	if !l.IsManual() {
		t.Error("Expected manual lease")
	}
	if l.CapacityAmount != 11_800 {
		t.Errorf("Default capacity: got %d, want 11800", l.CapacityAmount)
	}

	// The sentinel payment ref must not conflict across manual leases.
	if _, _, err := eng.ManualLease(ctx, "TSender2", 5_000); err != nil {
		t.Fatalf("Second ManualLease: %v", err)
	}

	// Manual leases still honor the eligibility threshold, but as an error
	// the operator sees.
	gw.SetCapacity("TRich1", 100_000)
	if _, _, err := eng.ManualLease(ctx, "TRich1", 0); !errors.Is(err, leasing.ErrNotEligible) {
		t.Errorf("Ineligible ManualLease: got %v, want ErrNotEligible", err)
	}

	done, err := eng.ManualReclaim(ctx, "TSender1")
	if err != nil {
		t.Fatalf("ManualReclaim: %v", err)
	}
	if done.Status != lease.StatusCompleted || done.ReclaimRef == "" {
		t.Errorf("Reclaimed lease: %+v", done)
	}

	// No active lease remains on the address.
	if _, err := eng.ManualReclaim(ctx, "TSender1"); !leasing.IsNotFound(err) {
		t.Errorf("Second ManualReclaim: got %v, want not found", err)
	}
}

func TestUsageTriggersEarlyReclaim(t *testing.T) {
	ctx := context.Background()
	eng, gw, st := newTestEngine(leasing.WithUsagePollInterval(10 * time.Millisecond))

	l, _, err := eng.HandlePayment(ctx, "TSender1", "tx_1", types.Sun(100_000))
	if err != nil {
		t.Fatal(err)
	}

	// The sender spends the leased capacity.
	gw.AddUsage("TSender1", gateway.Transfer{
		TxID:      "use_1",
		From:      "TSender1",
		To:        "TOther",
		Amount:    types.Sun(1),
		Timestamp: time.Now().UTC().Add(time.Second),
	})

	waitFor(t, 2*time.Second, "usage reclaim", func() bool {
		stored, err := st.GetLease(ctx, l.ID)
		return err == nil && stored.Status == lease.StatusCompleted
	})

	stored, err := st.GetLease(ctx, l.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.UsageRef != "use_1" {
		t.Errorf("UsageRef: got %s, want use_1", stored.UsageRef)
	}
	if stored.ReclaimRef == "" {
		t.Error("Expected a reclaim ref")
	}
	if gw.RevokeCalls() != 1 {
		t.Errorf("RevokeCalls: got %d, want 1", gw.RevokeCalls())
	}
}

func TestSweeperCompletesExpiredLease(t *testing.T) {
	ctx := context.Background()
	eng, gw, st := newTestEngine(
		leasing.WithRate(rate.Rate{
			Price:             types.Sun(100_000),
			Capacity:          11_800,
			Duration:          50 * time.Millisecond,
			MinNativeCapacity: 60_000,
		}),
		leasing.WithSweepInterval(20*time.Millisecond),
		leasing.WithPaymentPollInterval(time.Hour),
	)

	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer eng.Stop()

	l, _, err := eng.HandlePayment(ctx, "TSender1", "tx_1", types.Sun(100_000))
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, 2*time.Second, "sweep reclaim", func() bool {
		stored, err := st.GetLease(ctx, l.ID)
		return err == nil && stored.Status == lease.StatusCompleted
	})

	if gw.RevokeCalls() != 1 {
		t.Errorf("RevokeCalls: got %d, want 1", gw.RevokeCalls())
	}
}

func TestPaymentWatcherEndToEnd(t *testing.T) {
	ctx := context.Background()
	eng, gw, st := newTestEngine(
		leasing.WithPaymentPollInterval(10*time.Millisecond),
		leasing.WithSweepInterval(time.Hour),
	)

	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer eng.Stop()

	now := time.Now().UTC()

	// Underpayment and stale payments are never leased.
	gw.Pay("TCheap1", poolAddr, types.Sun(99_999), now)
	gw.Pay("TLate1", poolAddr, types.Sun(100_000), now.Add(-time.Hour))

	// A fresh qualifying payment is.
	paid := gw.Pay("TSender1", poolAddr, types.Sun(100_000), now)

	waitFor(t, 2*time.Second, "watched payment lease", func() bool {
		l, err := st.GetLeaseByPaymentRef(ctx, paid.TxID)
		return err == nil && l.Status == lease.StatusActive
	})

	all, err := st.ListLeases(ctx, "", lease.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("Leases created: got %d, want 1", len(all))
	}
}

func TestStartValidation(t *testing.T) {
	st := memstore.New()
	gw := gwmemory.New()
	ctx := context.Background()

	t.Run("MissingWatchAddress", func(t *testing.T) {
		eng := leasing.New(st, gw)
		if err := eng.Start(ctx); !errors.Is(err, leasing.ErrWatchAddressMissing) {
			t.Errorf("Got %v, want ErrWatchAddressMissing", err)
		}
	})

	t.Run("InvalidRate", func(t *testing.T) {
		eng := leasing.New(st, gw,
			leasing.WithWatchAddress(poolAddr),
			leasing.WithRate(rate.Rate{}),
		)
		if err := eng.Start(ctx); !errors.Is(err, leasing.ErrInvalidRate) {
			t.Errorf("Got %v, want ErrInvalidRate", err)
		}
	})

	t.Run("NilStore", func(t *testing.T) {
		eng := leasing.New(nil, gw, leasing.WithWatchAddress(poolAddr))
		if err := eng.Start(ctx); !errors.Is(err, leasing.ErrInvalidInput) {
			t.Errorf("Got %v, want ErrInvalidInput", err)
		}
	})

	t.Run("NilGateway", func(t *testing.T) {
		eng := leasing.New(st, nil, leasing.WithWatchAddress(poolAddr))
		if err := eng.Start(ctx); !errors.Is(err, leasing.ErrInvalidInput) {
			t.Errorf("Got %v, want ErrInvalidInput", err)
		}
	})
}

func TestStoppedEngineRejectsOperations(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine()

	if err := eng.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if _, _, err := eng.HandlePayment(ctx, "TSender1", "tx_1", types.Sun(100_000)); !errors.Is(err, leasing.ErrEngineStopped) {
		t.Errorf("HandlePayment: got %v, want ErrEngineStopped", err)
	}
	if _, _, err := eng.ManualLease(ctx, "TSender1", 0); !errors.Is(err, leasing.ErrEngineStopped) {
		t.Errorf("ManualLease: got %v, want ErrEngineStopped", err)
	}
	if _, err := eng.ManualReclaim(ctx, "TSender1"); !errors.Is(err, leasing.ErrEngineStopped) {
		t.Errorf("ManualReclaim: got %v, want ErrEngineStopped", err)
	}
	if err := eng.Stop(); !errors.Is(err, leasing.ErrEngineStopped) {
		t.Errorf("Second Stop: got %v, want ErrEngineStopped", err)
	}
}

func TestRemainingAccessor(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine()

	l, _, err := eng.HandlePayment(ctx, "TSender1", "tx_1", types.Sun(100_000))
	if err != nil {
		t.Fatal(err)
	}

	remaining, err := eng.Remaining(ctx, l.ID)
	if err != nil {
		t.Fatal(err)
	}
	if remaining <= 0 || remaining > 10*time.Minute {
		t.Errorf("Remaining: got %v", remaining)
	}

	if err := eng.Reclaim(ctx, l.ID); err != nil {
		t.Fatal(err)
	}
	remaining, err = eng.Remaining(ctx, l.ID)
	if err != nil {
		t.Fatal(err)
	}
	if remaining != 0 {
		t.Errorf("Remaining on completed lease: got %v, want 0", remaining)
	}
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine()

	if _, _, err := eng.HandlePayment(ctx, "TSender1", "tx_1", types.Sun(100_000)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := eng.ManualLease(ctx, "TSender2", 5_000); err != nil {
		t.Fatal(err)
	}

	snap, err := eng.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.TotalLeases != 2 {
		t.Errorf("TotalLeases: got %d, want 2", snap.TotalLeases)
	}
	if snap.ActiveLeases != 2 {
		t.Errorf("ActiveLeases: got %d, want 2", snap.ActiveLeases)
	}
	if snap.CapacityOnLoan != 11_800+5_000 {
		t.Errorf("CapacityOnLoan: got %d, want 16800", snap.CapacityOnLoan)
	}
	if !snap.Revenue.Equal(types.Sun(100_000)) {
		t.Errorf("Revenue: got %v, want 0.1 TRX", snap.Revenue)
	}
}
