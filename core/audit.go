package core

import (
	"errors"
	"fmt"
)

// ErrAuditFailed reports a broken accounting invariant.
var ErrAuditFailed = errors.New("ledger audit failed")

// Snapshot captures the ledger's full observable state.
func (l *Ledger) Snapshot() Snapshot {
	participants := make([]Participant, 0, l.registry.Len())
	l.registry.Each(func(bidder Identity, latest, pending Amount) {
		participants = append(participants, Participant{
			Bidder:        bidder,
			LatestBid:     latest,
			PendingReturn: pending,
		})
	})

	return Snapshot{
		AuctionID:     l.id.String(),
		Organizer:     l.cfg.Organizer,
		Deadline:      l.deadline,
		Ended:         l.ended,
		Highest:       l.highest,
		Custody:       l.custody,
		FeesRetained:  l.feesRetained,
		FeesWithdrawn: l.feesWithdrawn,
		Participants:  participants,
		LastEventSeq:  l.lastSeq,
	}
}

// Audit cross-checks the derived fee pool against the running fee totals:
//
//	custody == Σ pending + escrowed highest bid + (retained − withdrawn)
//
// where the highest bid counts as escrowed until the auction is finalized.
// It also checks that the leader is registered and its current bid is not
// counted in its own pending return.
func (l *Ledger) Audit() error {
	if l.feesWithdrawn > l.feesRetained {
		return fmt.Errorf("%w: withdrawn fees %d exceed retained fees %d", ErrAuditFailed, l.feesWithdrawn, l.feesRetained)
	}

	expected := l.registry.TotalPending() + (l.feesRetained - l.feesWithdrawn)
	if !l.ended {
		expected += l.highest.Amount
	}
	if expected != l.custody {
		return fmt.Errorf("%w: custody %d, obligations %d", ErrAuditFailed, l.custody, expected)
	}

	if l.highest.Amount > 0 {
		if !l.registry.Contains(l.highest.Bidder) {
			return fmt.Errorf("%w: leader %q not registered", ErrAuditFailed, l.highest.Bidder)
		}
		if l.registry.Latest(l.highest.Bidder) != l.highest.Amount {
			return fmt.Errorf("%w: leader %q latest bid %d, highest %d", ErrAuditFailed,
				l.highest.Bidder, l.registry.Latest(l.highest.Bidder), l.highest.Amount)
		}
	}
	return nil
}
