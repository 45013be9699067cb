package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/leasing/id"
	"github.com/xraph/leasing/lease"
	"github.com/xraph/leasing/types"
)

// ==================== Lease models ====================

type leaseModel struct {
	grove.BaseModel `grove:"table:leasing_leases"`

	ID             string            `grove:"id,pk"`
	Address        string            `grove:"address"`
	CapacityAmount int64             `grove:"capacity_amount"`
	PaymentRef     string            `grove:"payment_ref"`
	PaidSun        int64             `grove:"paid_sun"`
	GrantRef       string            `grove:"grant_ref"`
	ReclaimRef     string            `grove:"reclaim_ref"`
	UsageRef       string            `grove:"usage_ref"`
	Status         string            `grove:"status"`
	ExpiresAt      time.Time         `grove:"expires_at"`
	Metadata       map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt      time.Time         `grove:"created_at"`
	UpdatedAt      time.Time         `grove:"updated_at"`
}

func toLeaseModel(l *lease.Lease) *leaseModel {
	return &leaseModel{
		ID:             l.ID.String(),
		Address:        l.Address,
		CapacityAmount: l.CapacityAmount,
		PaymentRef:     l.PaymentRef,
		PaidSun:        l.PaidAmount.Sun,
		GrantRef:       l.GrantRef,
		ReclaimRef:     l.ReclaimRef,
		UsageRef:       l.UsageRef,
		Status:         string(l.Status),
		ExpiresAt:      l.ExpiresAt,
		Metadata:       l.Metadata,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

func fromLeaseModel(m *leaseModel) (*lease.Lease, error) {
	leaseID, err := id.ParseLeaseID(m.ID)
	if err != nil {
		return nil, err
	}

	return &lease.Lease{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             leaseID,
		Address:        m.Address,
		CapacityAmount: m.CapacityAmount,
		PaymentRef:     m.PaymentRef,
		PaidAmount:     types.Sun(m.PaidSun),
		GrantRef:       m.GrantRef,
		ReclaimRef:     m.ReclaimRef,
		UsageRef:       m.UsageRef,
		Status:         lease.Status(m.Status),
		ExpiresAt:      m.ExpiresAt,
		Metadata:       m.Metadata,
	}, nil
}

func fromLeaseModels(models []leaseModel) ([]*lease.Lease, error) {
	result := make([]*lease.Lease, len(models))
	for i := range models {
		l, err := fromLeaseModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = l
	}
	return result, nil
}
