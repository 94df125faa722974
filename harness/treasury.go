package harness

import (
	"context"
	"errors"

	"github.com/cloudx-io/auctionledger/core"
)

var errPaymentRefused = errors.New("recipient refused payment")

// scriptedTreasury accepts every collection and pays unless the recipient
// has been set to refuse. A pending hook runs inside the next Pay call.
type scriptedTreasury struct {
	collected map[core.Identity]core.Amount
	paid      map[core.Identity]core.Amount
	refusing  map[core.Identity]bool

	onPay func(ctx context.Context)
}

func newScriptedTreasury() *scriptedTreasury {
	return &scriptedTreasury{
		collected: make(map[core.Identity]core.Amount),
		paid:      make(map[core.Identity]core.Amount),
		refusing:  make(map[core.Identity]bool),
	}
}

func (t *scriptedTreasury) Collect(_ context.Context, from core.Identity, amount core.Amount) error {
	t.collected[from] += amount
	return nil
}

func (t *scriptedTreasury) Pay(ctx context.Context, to core.Identity, amount core.Amount) error {
	if hook := t.onPay; hook != nil {
		t.onPay = nil
		hook(ctx)
	}
	if t.refusing[to] {
		return errPaymentRefused
	}
	t.paid[to] += amount
	return nil
}

func (t *scriptedTreasury) totalPaid() core.Amount {
	var total core.Amount
	for _, amount := range t.paid {
		total += amount
	}
	return total
}
