package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/leasing/gateway"
	"github.com/xraph/leasing/types"
)

func TestCapacityBalance(t *testing.T) {
	ctx := context.Background()
	g := New()

	got, err := g.AvailableCapacity(ctx, "TAddr1")
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("Unknown address capacity: got %d, want 0", got)
	}

	g.SetCapacity("TAddr1", 75_000)
	got, err = g.AvailableCapacity(ctx, "TAddr1")
	if err != nil {
		t.Fatal(err)
	}
	if got != 75_000 {
		t.Errorf("Capacity: got %d, want 75000", got)
	}
}

func TestIncomingTransfersNewestFirst(t *testing.T) {
	ctx := context.Background()
	g := New()
	now := time.Now().UTC()

	first := g.Pay("TSender", "TPool", types.Sun(100_000), now.Add(-2*time.Minute))
	second := g.Pay("TSender", "TPool", types.Sun(100_000), now.Add(-time.Minute))
	third := g.Pay("TSender", "TPool", types.Sun(100_000), now)

	transfers, err := g.IncomingTransfers(ctx, "TPool", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(transfers) != 2 {
		t.Fatalf("Limit: got %d transfers, want 2", len(transfers))
	}
	if transfers[0].TxID != third.TxID || transfers[1].TxID != second.TxID {
		t.Errorf("Order: got %s, %s; want %s, %s",
			transfers[0].TxID, transfers[1].TxID, third.TxID, second.TxID)
	}

	all, err := g.IncomingTransfers(ctx, "TPool", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("Zero limit: got %d transfers, want 3", len(all))
	}
	if all[2].TxID != first.TxID {
		t.Errorf("Oldest last: got %s, want %s", all[2].TxID, first.TxID)
	}
}

func TestGrantAndRevoke(t *testing.T) {
	ctx := context.Background()
	g := New()

	ref, err := g.GrantCapacity(ctx, "TAddr1", 11_800)
	if err != nil {
		t.Fatalf("GrantCapacity: %v", err)
	}
	if ref == "" {
		t.Error("Expected a grant reference")
	}
	if g.Granted("TAddr1") != 11_800 {
		t.Errorf("Granted: got %d, want 11800", g.Granted("TAddr1"))
	}

	ref, err = g.RevokeCapacity(ctx, "TAddr1")
	if err != nil {
		t.Fatalf("RevokeCapacity: %v", err)
	}
	if ref == "" {
		t.Error("Expected a revoke reference")
	}
	if g.Granted("TAddr1") != 0 {
		t.Errorf("Granted after revoke: got %d, want 0", g.Granted("TAddr1"))
	}

	if g.GrantCalls() != 1 || g.RevokeCalls() != 1 {
		t.Errorf("Call counts: grants %d revokes %d, want 1 each", g.GrantCalls(), g.RevokeCalls())
	}
}

func TestScriptedFailures(t *testing.T) {
	ctx := context.Background()
	g := New()
	boom := errors.New("node unavailable")

	g.FailGrants(boom)
	if _, err := g.GrantCapacity(ctx, "TAddr1", 100); !errors.Is(err, boom) {
		t.Errorf("Scripted grant failure: got %v", err)
	}

	g.FailGrants(nil)
	if _, err := g.GrantCapacity(ctx, "TAddr1", 100); err != nil {
		t.Errorf("Restored grants: got %v", err)
	}

	g.FailRevokes(boom)
	if _, err := g.RevokeCapacity(ctx, "TAddr1"); !errors.Is(err, boom) {
		t.Errorf("Scripted revoke failure: got %v", err)
	}

	// Failed calls are still counted.
	if g.GrantCalls() != 2 || g.RevokeCalls() != 1 {
		t.Errorf("Call counts: grants %d revokes %d", g.GrantCalls(), g.RevokeCalls())
	}
}

func TestUsageTransfers(t *testing.T) {
	ctx := context.Background()
	g := New()
	now := time.Now().UTC()

	g.AddUsage("TAddr1", gateway.Transfer{
		TxID:      "use_1",
		From:      "TAddr1",
		To:        "TOther",
		Amount:    types.Sun(1),
		Timestamp: now,
	})

	transfers, err := g.UsageTransfers(ctx, "TAddr1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(transfers) != 1 {
		t.Fatalf("Usage transfers: got %d, want 1", len(transfers))
	}
	if transfers[0].From != "TAddr1" {
		t.Errorf("From: got %s, want TAddr1", transfers[0].From)
	}
}
