package leasing_test

import (
	"context"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/leasing"
	gwmemory "github.com/xraph/leasing/gateway/memory"
	"github.com/xraph/leasing/rate"
	"github.com/xraph/leasing/store/memory"
	"github.com/xraph/leasing/types"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from README
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		// Simulated ledger gateway (use a real gateway in production)
		gw := gwmemory.New()

		// Initialize the engine
		eng := leasing.New(store, gw,
			leasing.WithLogger(slog.Default()),
			leasing.WithWatchAddress("TPool1111111111111111111111111111"),
			leasing.WithRate(rate.Rate{
				Price:             leasing.Sun(100_000), // 0.1 TRX
				Capacity:          11_800,
				Duration:          10 * time.Minute,
				MinNativeCapacity: 60_000,
			}),
		)

		// Start the engine
		ctx := context.Background()
		if err := eng.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer eng.Stop()

		// A payment arrives on the watched address
		payment := gw.Pay("TSender111111111111111111111111111", "TPool1111111111111111111111111111",
			leasing.Sun(100_000), time.Now().UTC())

		// Process it directly (the payment watcher does this automatically)
		l, result, err := eng.HandlePayment(ctx, payment.From, payment.TxID, payment.Amount)
		if err != nil {
			t.Fatal(err)
		}
		if !result.Eligible {
			log.Printf("payment rejected: %s\n", result.Reason)
			return
		}

		log.Printf("lease %s active, %d capacity until %s\n",
			l.ID.String(), l.CapacityAmount, l.ExpiresAt)

		// Check remaining time
		remaining, err := eng.Remaining(ctx, l.ID)
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("remaining: %s\n", remaining)

		// Operator-initiated reclaim
		done, err := eng.ManualReclaim(ctx, l.Address)
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("lease %s completed, reclaim ref %s\n", done.ID.String(), done.ReclaimRef)
	})

	// Test Amount type examples
	t.Run("AmountExamples", func(t *testing.T) {
		// Constructors
		_ = types.TRX(1)        // 1 TRX
		_ = types.Sun(100_000)  // 0.1 TRX
		_ = types.ZeroAmount    // 0 TRX

		// Arithmetic
		a1 := types.Sun(100_000)
		a2 := types.Sun(200_000)
		_ = a1.Add(a2)      // 0.3 TRX
		_ = a1.Multiply(3)  // 0.3 TRX
		_ = a2.Subtract(a1) // 0.1 TRX

		// Comparison
		if a1.LessThan(a2) {
			// a1 is less than a2
		}
		if a2.AtLeast(a1) {
			// a2 covers the price a1
		}

		// Formatting
		_ = a1.String()    // "0.100000 TRX"
		_ = a1.FormatTRX() // "0.100000"
	})
}
