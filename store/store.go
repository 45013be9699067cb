package store

import (
	"context"
	"time"

	"github.com/xraph/leasing/id"
	"github.com/xraph/leasing/lease"
)

// Store is the unified storage interface for all Leasing entities.
// Method names carry the entity to avoid conflicts if more entities are
// added later.
type Store interface {
	// Lease methods
	InsertLease(ctx context.Context, l *lease.Lease) error
	GetLease(ctx context.Context, leaseID id.LeaseID) (*lease.Lease, error)
	GetLeaseByPaymentRef(ctx context.Context, paymentRef string) (*lease.Lease, error)
	GetActiveLeaseByAddress(ctx context.Context, address string) (*lease.Lease, error)
	UpdateLeaseStatus(ctx context.Context, leaseID id.LeaseID, expected lease.Status, apply func(*lease.Lease)) (*lease.Lease, error)
	ListActiveExpired(ctx context.Context, now time.Time) ([]*lease.Lease, error)
	ListLeases(ctx context.Context, address string, opts lease.ListOpts) ([]*lease.Lease, error)
	CountLeasesByStatus(ctx context.Context) (map[lease.Status]int64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
