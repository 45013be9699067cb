package lease

import (
	"context"
	"time"

	"github.com/xraph/leasing/id"
)

// Store is the per-entity view of lease persistence. The unified store
// interface embeds it; the engine depends on nothing more.
type Store interface {
	// Insert persists a new lease. It fails with a conflict error when the
	// address already has a pending or active lease, or when PaymentRef is
	// a non-sentinel value already recorded on another lease.
	Insert(ctx context.Context, l *Lease) error

	Get(ctx context.Context, leaseID id.LeaseID) (*Lease, error)
	GetByPaymentRef(ctx context.Context, paymentRef string) (*Lease, error)
	GetActiveByAddress(ctx context.Context, address string) (*Lease, error)

	// UpdateStatus is the optimistic transition primitive. It loads the
	// lease, fails with a status conflict when the stored status differs
	// from expected, applies the mutation, and persists atomically with
	// respect to other UpdateStatus calls on the same lease.
	UpdateStatus(ctx context.Context, leaseID id.LeaseID, expected Status, apply func(*Lease)) (*Lease, error)

	ListActiveExpired(ctx context.Context, now time.Time) ([]*Lease, error)
	List(ctx context.Context, address string, opts ListOpts) ([]*Lease, error)
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}

type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
