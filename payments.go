package leasing

import (
	"context"
	"time"

	"github.com/xraph/leasing/gateway"
)

// paymentWatchWorker polls the ledger for incoming transfers to the
// watch address and feeds qualifying ones to the dispatcher. Gateway
// errors never kill the loop; each failed iteration logs and backs off.
func (e *Engine) paymentWatchWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.paymentPoll)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			if err := e.pollPayments(ctx); err != nil {
				e.logger.Warn("payment poll failed",
					"address", e.watchAddress,
					"error", err,
				)
				if !e.backoff() {
					return
				}
			}
		}
	}
}

// pollPayments fetches the newest incoming transfers and enqueues the
// ones that look like new payments. The store insert is the real
// duplicate guard; the GetLeaseByPaymentRef read is only a cheap
// pre-filter to keep noise out of the buffer.
func (e *Engine) pollPayments(ctx context.Context) error {
	transfers, err := e.gateway.IncomingTransfers(ctx, e.watchAddress, e.paymentFetchLimit)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, t := range transfers {
		if t.Amount.LessThan(e.rate.Price) {
			continue
		}
		if now.Sub(t.Timestamp) > e.freshnessWindow {
			continue
		}
		if _, err := e.store.GetLeaseByPaymentRef(ctx, t.TxID); err == nil {
			continue
		}

		e.plugins.EmitPaymentObserved(ctx, t)

		select {
		case e.paymentBuffer <- t:
		default:
			// Drop rather than block the poll; the transfer is picked
			// up again on the next iteration.
			e.logger.Warn("payment buffer full, deferring transfer",
				"tx_id", t.TxID,
				"from", t.From,
			)
		}
	}

	return nil
}

// paymentDispatchWorker consumes buffered payments and runs the lease
// creation pipeline for each one.
func (e *Engine) paymentDispatchWorker(ctx context.Context) {
	defer e.wg.Done()

	for {
		select {
		case <-e.stopChan:
			return
		case t := <-e.paymentBuffer:
			e.dispatchPayment(ctx, t)
		}
	}
}

func (e *Engine) dispatchPayment(ctx context.Context, t gateway.Transfer) {
	_, _, err := e.HandlePayment(ctx, t.From, t.TxID, t.Amount)
	if err != nil && !isBenign(err) {
		e.logger.Error("payment handling failed",
			"tx_id", t.TxID,
			"from", t.From,
			"amount", t.Amount.String(),
			"error", err,
		)
	}
}
