package rate

import (
	"time"

	"github.com/xraph/leasing/types"
)

// Rate binds the qualifying payment to what it buys: a payment of at
// least Price leases Capacity units for Duration. Accounts that already
// hold MinNativeCapacity or more of their own capacity are not leased to.
type Rate struct {
	Price             types.Amount  `json:"price"`
	Capacity          int64         `json:"capacity"`
	Duration          time.Duration `json:"duration"`
	MinNativeCapacity int64         `json:"min_native_capacity"`
}

// Default returns the stock rate: 0.1 TRX buys 11,800 capacity units for
// 10 minutes, and accounts holding 60,000 or more units are ineligible.
func Default() Rate {
	return Rate{
		Price:             types.Sun(100_000),
		Capacity:          11_800,
		Duration:          10 * time.Minute,
		MinNativeCapacity: 60_000,
	}
}

// Valid reports whether every rate parameter is usable.
func (r Rate) Valid() bool {
	return r.Price.IsPositive() && r.Capacity > 0 && r.Duration > 0 && r.MinNativeCapacity > 0
}

// Qualifies reports whether a payment of paid meets the rate's price.
func (r Rate) Qualifies(paid types.Amount) bool {
	return paid.AtLeast(r.Price)
}
