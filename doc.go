// Package leasing provides an embeddable capacity-leasing engine for Go
// applications.
//
// Leasing is designed as a library, not a service. Import it directly into
// your Go application. It watches an external ledger for payments to a
// configured address, grants a time-bound capacity lease to each paying
// sender, and reclaims the capacity the moment it is used or the lease
// expires, whichever comes first. It provides:
//
//   - Payment-driven lease creation with integer-only money arithmetic
//   - Exactly-once capacity reclamation under concurrent observers
//   - A per-lease usage watcher plus a redundant expiry sweeper
//   - Pluggable persistence (memory, SQLite, PostgreSQL, MongoDB)
//   - Lifecycle plugin hooks for metrics, audit, and notifications
//
// # Quick Start
//
// Create an engine with your preferred store and a ledger gateway:
//
//	import (
//	    "github.com/xraph/leasing"
//	    "github.com/xraph/leasing/store/memory"
//	)
//
//	eng := leasing.New(memory.New(), gw,
//	    leasing.WithWatchAddress("TPooLwatchaddress"),
//	)
//
//	// Start the engine (begins background workers)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
// # Core Concepts
//
// A Rate binds the qualifying payment to what it buys:
//
//	r := rate.Rate{
//	    Price:             types.Sun(100_000), // 0.1 TRX
//	    Capacity:          11_800,
//	    Duration:          10 * time.Minute,
//	    MinNativeCapacity: 60_000,
//	}
//
// Leases progress pending → active → completed (or failed). The engine
// owns every status transition; watchers and sweepers race safely
// because transitions are compare-and-set on the current status and a
// lost race is a silent no-op.
//
// Manual operations cover operator intervention:
//
//	l, _, err := eng.ManualLease(ctx, address, 0)
//	l, err = eng.ManualReclaim(ctx, address)
//
// # Money
//
// All monetary calculations use integer arithmetic to avoid
// floating-point precision issues. The Amount type carries values in
// sun, the smallest ledger unit (1 TRX = 1,000,000 sun).
//
// # TypeID
//
// Leases use TypeID for globally unique, type-safe identifiers:
//
//	lease_01h2xcejqtf2nbrexx3vqjhp41
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package leasing
