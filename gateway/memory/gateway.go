// Package memory provides an in-memory simulated ledger implementing
// gateway.Gateway. It backs tests and local development; balances,
// transfer history, and grant/revoke behavior are all scriptable.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/leasing/gateway"
	"github.com/xraph/leasing/types"
)

// Gateway is a concurrency-safe simulated ledger.
type Gateway struct {
	mu sync.RWMutex

	capacity map[string]int64
	incoming map[string][]gateway.Transfer
	usage    map[string][]gateway.Transfer
	granted  map[string]int64

	grantErr  error
	revokeErr error

	grantCalls  atomic.Int64
	revokeCalls atomic.Int64
	txSeq       atomic.Int64
}

var _ gateway.Gateway = (*Gateway)(nil)

// New creates an empty simulated ledger.
func New() *Gateway {
	return &Gateway{
		capacity: make(map[string]int64),
		incoming: make(map[string][]gateway.Transfer),
		usage:    make(map[string][]gateway.Transfer),
		granted:  make(map[string]int64),
	}
}

// SetCapacity seeds the native capacity balance of an address.
func (g *Gateway) SetCapacity(address string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.capacity[address] = amount
}

// AddIncoming records a transfer into the address's incoming history.
func (g *Gateway) AddIncoming(to string, t gateway.Transfer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.incoming[to] = append(g.incoming[to], t)
}

// AddUsage records an outbound transfer from the address that consumes
// capacity.
func (g *Gateway) AddUsage(from string, t gateway.Transfer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.usage[from] = append(g.usage[from], t)
}

// Pay is a convenience that records an incoming payment and returns the
// generated transfer.
func (g *Gateway) Pay(from, to string, amount types.Amount, at time.Time) gateway.Transfer {
	t := gateway.Transfer{
		TxID:      g.nextTxID("pay"),
		From:      from,
		To:        to,
		Amount:    amount,
		Timestamp: at,
	}
	g.AddIncoming(to, t)

	return t
}

// FailGrants makes subsequent GrantCapacity calls return err.
// Pass nil to restore normal behavior.
func (g *Gateway) FailGrants(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.grantErr = err
}

// FailRevokes makes subsequent RevokeCapacity calls return err.
// Pass nil to restore normal behavior.
func (g *Gateway) FailRevokes(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.revokeErr = err
}

// GrantCalls returns the number of GrantCapacity calls observed.
func (g *Gateway) GrantCalls() int64 { return g.grantCalls.Load() }

// RevokeCalls returns the number of RevokeCapacity calls observed.
func (g *Gateway) RevokeCalls() int64 { return g.revokeCalls.Load() }

// Granted returns the capacity currently on loan to the address.
func (g *Gateway) Granted(address string) int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.granted[address]
}

func (g *Gateway) AvailableCapacity(_ context.Context, address string) (int64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.capacity[address], nil
}

func (g *Gateway) IncomingTransfers(_ context.Context, address string, limit int) ([]gateway.Transfer, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return newestFirst(g.incoming[address], limit), nil
}

func (g *Gateway) UsageTransfers(_ context.Context, address string, limit int) ([]gateway.Transfer, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return newestFirst(g.usage[address], limit), nil
}

func (g *Gateway) GrantCapacity(_ context.Context, address string, amount int64) (string, error) {
	g.grantCalls.Add(1)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.grantErr != nil {
		return "", g.grantErr
	}

	g.granted[address] += amount

	return g.nextTxID("grant"), nil
}

func (g *Gateway) RevokeCapacity(_ context.Context, address string) (string, error) {
	g.revokeCalls.Add(1)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.revokeErr != nil {
		return "", g.revokeErr
	}

	g.granted[address] = 0

	return g.nextTxID("revoke"), nil
}

func (g *Gateway) nextTxID(kind string) string {
	return fmt.Sprintf("%s_%06d", kind, g.txSeq.Add(1))
}

// newestFirst returns up to limit transfers ordered newest first.
// History is appended oldest first, so iterate from the tail.
func newestFirst(history []gateway.Transfer, limit int) []gateway.Transfer {
	if limit <= 0 || limit > len(history) {
		limit = len(history)
	}

	out := make([]gateway.Transfer, 0, limit)
	for i := len(history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, history[i])
	}

	return out
}
