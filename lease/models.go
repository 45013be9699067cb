package lease

import (
	"time"

	"github.com/xraph/leasing/id"
	"github.com/xraph/leasing/types"
)

// ManualPaymentRef is the sentinel payment reference recorded on leases
// created by an operator instead of an observed payment.
const ManualPaymentRef = "manual_operation"

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Lease is a time-bound grant of capacity to an external address.
// Status moves pending → active → {completed | failed}; a grant failure
// moves pending → failed directly.
type Lease struct {
	types.Entity
	ID             id.LeaseID        `json:"id"`
	Address        string            `json:"address"`
	CapacityAmount int64             `json:"capacity_amount"`
	PaymentRef     string            `json:"payment_ref"`
	PaidAmount     types.Amount      `json:"paid_amount"`
	GrantRef       string            `json:"grant_ref,omitempty"`
	ReclaimRef     string            `json:"reclaim_ref,omitempty"`
	UsageRef       string            `json:"usage_ref,omitempty"`
	Status         Status            `json:"status"`
	ExpiresAt      time.Time         `json:"expires_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// IsManual reports whether the lease was created by an operator.
func (l *Lease) IsManual() bool {
	return l.PaymentRef == ManualPaymentRef
}

// IsTerminal reports whether the lease is in a terminal status.
func (l *Lease) IsTerminal() bool {
	return l.Status.IsTerminal()
}

// IsExpired reports whether the lease term has elapsed at now.
func (l *Lease) IsExpired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// Remaining returns the time left on the lease term at now,
// clamped at zero.
func (l *Lease) Remaining(now time.Time) time.Duration {
	if l.IsExpired(now) {
		return 0
	}

	return l.ExpiresAt.Sub(now)
}
