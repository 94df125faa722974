package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestSnapshot(t *testing.T) {
	ledger, _, _ := newTestLedger(t, time.Hour)
	mustBid(t, ledger, "alice", 100)
	mustBid(t, ledger, "bob", 105)

	snapshot := ledger.Snapshot()
	check.Equal(t, "00000000-0000-4000-8000-000000000001", snapshot.AuctionID)
	check.Equal(t, testOrganizer, snapshot.Organizer)
	check.Equal(t, testStart.Add(time.Hour), snapshot.Deadline)
	check.False(t, snapshot.Ended)
	check.Equal(t, Bid{Bidder: "bob", Amount: 105}, snapshot.Highest)
	check.Equal(t, Amount(205), snapshot.Custody)
	check.Equal(t, Amount(2), snapshot.FeesRetained)
	check.Equal(t, Amount(0), snapshot.FeesWithdrawn)
	check.Equal(t, uint64(3), snapshot.LastEventSeq)
	check.Equal(t, []Participant{
		{Bidder: "alice", LatestBid: 100, PendingReturn: 98},
		{Bidder: "bob", LatestBid: 105, PendingReturn: 0},
	}, snapshot.Participants)
}

func TestAudit_HoldsThroughLifecycle(t *testing.T) {
	ctx := context.Background()
	ledger, clock, _ := newTestLedger(t, 100*time.Second)

	check.NoError(t, ledger.Audit())
	for i, amount := range []Amount{100, 105, 111, 117, 123, 130} {
		bidder := Identity([]string{"alice", "bob", "carol"}[i%3])
		mustBid(t, ledger, bidder, amount)
	}

	assert.NoError(t, ledger.Withdraw(ctx, "alice"))
	check.NoError(t, ledger.Audit())

	clock.Advance(100 * time.Second)
	assert.NoError(t, ledger.Finalize(ctx))
	check.NoError(t, ledger.Audit())

	_, err := ledger.WithdrawFees(ctx, testOrganizer)
	assert.NoError(t, err)
	check.NoError(t, ledger.Audit())
	check.Equal(t, ledger.Snapshot().FeesRetained, ledger.Snapshot().FeesWithdrawn)
	check.Equal(t, Amount(0), ledger.RetainedFees())
}

func TestAudit_DetectsCorruption(t *testing.T) {
	ledger, _, _ := newTestLedger(t, time.Hour)
	mustBid(t, ledger, "alice", 100)
	mustBid(t, ledger, "bob", 105)

	ledger.custody++
	err := ledger.Audit()
	check.True(t, errors.Is(err, ErrAuditFailed))
	ledger.custody--

	ledger.registry.setPending("alice", 99)
	err = ledger.Audit()
	check.True(t, errors.Is(err, ErrAuditFailed))
}
