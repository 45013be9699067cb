// Package memory provides a mutex-guarded in-memory store. It implements
// the same conflict and compare-and-set semantics as the database
// backends and is the default store for tests and embedded use.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/leasing"
	"github.com/xraph/leasing/id"
	"github.com/xraph/leasing/lease"
)

type Store struct {
	mu sync.RWMutex

	// Lease storage, keyed by lease ID string.
	leases map[string]*lease.Lease
}

func New() *Store {
	return &Store{
		leases: make(map[string]*lease.Lease),
	}
}

// Lease Store implementation

func (s *Store) InsertLease(_ context.Context, l *lease.Lease) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.leases {
		if existing.Address == l.Address && !existing.IsTerminal() {
			return leasing.ErrLeaseConflict
		}
		if l.PaymentRef != lease.ManualPaymentRef && existing.PaymentRef == l.PaymentRef {
			return leasing.ErrPaymentSeen
		}
	}

	stored := *l
	s.leases[l.ID.String()] = &stored
	return nil
}

func (s *Store) GetLease(_ context.Context, leaseID id.LeaseID) (*lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if l, ok := s.leases[leaseID.String()]; ok {
		return clone(l), nil
	}
	return nil, leasing.ErrLeaseNotFound
}

func (s *Store) GetLeaseByPaymentRef(_ context.Context, paymentRef string) (*lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.leases {
		if l.PaymentRef == paymentRef {
			return clone(l), nil
		}
	}
	return nil, leasing.ErrLeaseNotFound
}

func (s *Store) GetActiveLeaseByAddress(_ context.Context, address string) (*lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.leases {
		if l.Address == address && l.Status == lease.StatusActive {
			return clone(l), nil
		}
	}
	return nil, leasing.ErrLeaseNotFound
}

func (s *Store) UpdateLeaseStatus(_ context.Context, leaseID id.LeaseID, expected lease.Status, apply func(*lease.Lease)) (*lease.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leases[leaseID.String()]
	if !ok {
		return nil, leasing.ErrLeaseNotFound
	}
	if l.Status != expected {
		return nil, leasing.ErrStatusConflict
	}

	updated := clone(l)
	apply(updated)
	updated.Touch()
	s.leases[leaseID.String()] = updated

	return clone(updated), nil
}

func (s *Store) ListActiveExpired(_ context.Context, now time.Time) ([]*lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*lease.Lease, 0)
	for _, l := range s.leases {
		if l.Status == lease.StatusActive && l.IsExpired(now) {
			result = append(result, clone(l))
		}
	}
	sortByCreated(result)
	return result, nil
}

func (s *Store) ListLeases(_ context.Context, address string, opts lease.ListOpts) ([]*lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*lease.Lease, 0)
	for _, l := range s.leases {
		if address != "" && l.Address != address {
			continue
		}
		if opts.Status != "" && l.Status != opts.Status {
			continue
		}
		result = append(result, clone(l))
	}
	sortByCreated(result)

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) CountLeasesByStatus(_ context.Context) (map[lease.Status]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[lease.Status]int64)
	for _, l := range s.leases {
		counts[l.Status]++
	}
	return counts, nil
}

// Store management

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}

// Helper functions

func clone(l *lease.Lease) *lease.Lease {
	c := *l
	if l.Metadata != nil {
		c.Metadata = make(map[string]string, len(l.Metadata))
		for k, v := range l.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func sortByCreated(leases []*lease.Lease) {
	sort.Slice(leases, func(i, j int) bool {
		return leases[i].CreatedAt.Before(leases[j].CreatedAt)
	})
}
