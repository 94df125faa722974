package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
)

var testStart = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

const testOrganizer Identity = "organizer"

// payment records one outbound transfer.
type payment struct {
	To     Identity
	Amount Amount
}

// mockTreasury records transfers and can be told to refuse them.
type mockTreasury struct {
	collected   map[Identity]Amount
	payments    []payment
	refuseIn    map[Identity]bool
	refuseOut   map[Identity]bool
	onPay       func(to Identity, amount Amount)
	payAttempts int
}

func newMockTreasury() *mockTreasury {
	return &mockTreasury{
		collected: make(map[Identity]Amount),
		refuseIn:  make(map[Identity]bool),
		refuseOut: make(map[Identity]bool),
	}
}

func (m *mockTreasury) Collect(_ context.Context, from Identity, amount Amount) error {
	if m.refuseIn[from] {
		return fmt.Errorf("account %s has insufficient balance", from)
	}
	m.collected[from] += amount
	return nil
}

func (m *mockTreasury) Pay(_ context.Context, to Identity, amount Amount) error {
	m.payAttempts++
	// The receiver runs before the outcome is known, as an untrusted
	// recipient would.
	if m.onPay != nil {
		m.onPay(to, amount)
	}
	if m.refuseOut[to] {
		return fmt.Errorf("recipient %s rejected payment", to)
	}
	m.payments = append(m.payments, payment{To: to, Amount: amount})
	return nil
}

// paidTo sums successful payments to id.
func (m *mockTreasury) paidTo(id Identity) Amount {
	var total Amount
	for _, p := range m.payments {
		if p.To == id {
			total += p.Amount
		}
	}
	return total
}

// newTestLedger builds a ledger with a manual clock at testStart.
func newTestLedger(t *testing.T, duration time.Duration) (*Ledger, *ManualClock, *mockTreasury) {
	t.Helper()
	clock := NewManualClock(testStart)
	treasury := newMockTreasury()
	ledger, err := NewLedger(Config{
		ID:        uuid.MustParse("00000000-0000-4000-8000-000000000001"),
		Duration:  duration,
		Organizer: testOrganizer,
	}, clock, treasury)
	assert.NoError(t, err)
	return ledger, clock, treasury
}

// mustBid places a bid that is expected to succeed and audits the ledger.
func mustBid(t *testing.T, l *Ledger, bidder Identity, amount Amount) {
	t.Helper()
	assert.NoError(t, l.PlaceBid(context.Background(), bidder, amount))
	assert.NoError(t, l.Audit())
}

// eventKinds lists the kinds of events in order.
func eventKinds(events []Event) []EventKind {
	kinds := make([]EventKind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}
