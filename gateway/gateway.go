// Package gateway defines the boundary to the external ledger that holds
// capacity balances and transfer history. The engine consumes this
// interface; it never signs or submits ledger transactions itself.
package gateway

import (
	"context"
	"time"

	"github.com/xraph/leasing/types"
)

// Transfer is a value movement observed on the external ledger.
type Transfer struct {
	TxID      string       `json:"tx_id"`
	From      string       `json:"from"`
	To        string       `json:"to"`
	Amount    types.Amount `json:"amount"`
	Timestamp time.Time    `json:"timestamp"`
}

// Gateway is the external ledger boundary. Every call may fail
// transiently; callers treat failures as retryable unless stated
// otherwise.
type Gateway interface {
	// AvailableCapacity returns the capacity units the address currently
	// holds in its own right.
	AvailableCapacity(ctx context.Context, address string) (int64, error)

	// IncomingTransfers returns up to limit of the newest transfers sent
	// to the address, newest first.
	IncomingTransfers(ctx context.Context, address string, limit int) ([]Transfer, error)

	// UsageTransfers returns up to limit of the newest outbound transfers
	// from the address that consume leased capacity, newest first.
	UsageTransfers(ctx context.Context, address string, limit int) ([]Transfer, error)

	// GrantCapacity delegates amount capacity units to the address and
	// returns the ledger transaction id of the grant.
	GrantCapacity(ctx context.Context, address string, amount int64) (string, error)

	// RevokeCapacity withdraws a previous grant from the address and
	// returns the ledger transaction id of the revocation.
	RevokeCapacity(ctx context.Context, address string) (string, error)
}
