package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Treasury moves value in and out of the ledger's custody.
//
// Collect runs against the host's own escrow and must not call back into the
// ledger. Pay delivers value to a recipient and may run arbitrary receiver
// code, including calls back into the same ledger before it returns.
type Treasury interface {
	Collect(ctx context.Context, from Identity, amount Amount) error
	Pay(ctx context.Context, to Identity, amount Amount) error
}

// Ledger is a single-item soft-close auction with fee retention and
// pull-style refunds.
//
// A Ledger holds no locks: callers run one operation at a time to completion.
// Each operation brings its state to the post-operation value before paying
// anyone, so a payment that re-enters the ledger observes settled balances.
type Ledger struct {
	id       uuid.UUID
	cfg      Config
	clock    Clock
	treasury Treasury

	deadline time.Time
	highest  Bid
	registry *Registry
	ended    bool
	// settling is set while Finalize pays the organizer; ended is not final
	// until that payment returns.
	settling bool

	custody       Amount
	feesRetained  Amount
	feesWithdrawn Amount

	events  []Event
	lastSeq uint64
}

// NewLedger opens an auction that closes cfg.Duration after clock.Now().
func NewLedger(cfg Config, clock Clock, treasury Treasury) (*Ledger, error) {
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive, got %s", ErrInvalidConfig, cfg.Duration)
	}
	if cfg.Organizer == "" {
		return nil, fmt.Errorf("%w: organizer must be set", ErrInvalidConfig)
	}
	if cfg.ExtensionWindow < 0 || cfg.MinIncrementBasisPoints < 0 || cfg.FeeBasisPoints < 0 {
		return nil, fmt.Errorf("%w: window and basis points must not be negative", ErrInvalidConfig)
	}
	if cfg.FeeBasisPoints > basisPointsPerUnit {
		return nil, fmt.Errorf("%w: fee exceeds 100%%", ErrInvalidConfig)
	}
	if clock == nil || treasury == nil {
		return nil, fmt.Errorf("%w: clock and treasury are required", ErrInvalidConfig)
	}
	cfg = cfg.withDefaults()

	return &Ledger{
		id:       cfg.ID,
		cfg:      cfg,
		clock:    clock,
		treasury: treasury,
		deadline: clock.Now().Add(cfg.Duration),
		registry: NewRegistry(),
		events:   make([]Event, 0),
	}, nil
}

// PlaceBid submits amount on behalf of bidder and collects it into custody.
//
// Check order: ended, deadline, identity, amount, soft close, increment,
// custody overflow.
// A late bid that fails the increment check leaves the deadline untouched.
func (l *Ledger) PlaceBid(ctx context.Context, bidder Identity, amount Amount) error {
	const op = "place_bid"
	now := l.clock.Now()

	if l.ended {
		return newError(op, CodeState, ErrAlreadyEnded)
	}
	if now.After(l.deadline) {
		return newError(op, CodeTemporal, ErrAuctionClosed)
	}
	if bidder == "" {
		return newError(op, CodeValue, ErrEmptyIdentity)
	}
	if amount == 0 {
		return newError(op, CodeValue, ErrZeroAmount)
	}

	// Extension is additive to the current deadline, not relative to now.
	deadline := l.deadline
	extended := false
	if l.highest.Amount > 0 && l.deadline.Sub(now) <= l.cfg.ExtensionWindow {
		deadline = l.deadline.Add(l.cfg.ExtensionWindow)
		extended = true
	}

	if !BidMeetsIncrement(amount, l.highest.Amount, l.cfg.MinIncrementBasisPoints) {
		return newError(op, CodeValue, ErrBidTooLow)
	}

	if l.custody+amount < l.custody {
		return newError(op, CodeValue, ErrCustodyOverflow)
	}

	if err := l.treasury.Collect(ctx, bidder, amount); err != nil {
		return transferError(op, err)
	}

	events := make([]Event, 0, 3)
	if extended {
		l.deadline = deadline
		events = append(events, Event{Kind: EventAuctionTimeExtended, Deadline: deadline})
	}

	if prev := l.highest; prev.Bidder != "" {
		fee, returnable := SplitOutbidFee(prev.Amount, l.cfg.FeeBasisPoints)
		l.registry.setPending(prev.Bidder, l.registry.Pending(prev.Bidder)+returnable)
		l.feesRetained += fee
		events = append(events, Event{Kind: EventFundsRetained, Bidder: prev.Bidder, Amount: fee})
	}

	l.registry.register(bidder).latest = amount
	l.highest = Bid{Bidder: bidder, Amount: amount}
	l.custody += amount
	events = append(events, Event{Kind: EventHighestBidIncreased, Bidder: bidder, Amount: amount})

	l.emit(now, events...)
	return nil
}

// Withdraw pays caller everything it is owed from being outbid.
// The balance is zeroed before the payment and restored if it fails.
func (l *Ledger) Withdraw(ctx context.Context, caller Identity) error {
	const op = "withdraw"

	owed := l.registry.Pending(caller)
	if owed == 0 {
		return newError(op, CodeInsufficientFunds, ErrNothingToWithdraw)
	}

	l.registry.setPending(caller, 0)
	l.custody -= owed

	if err := l.treasury.Pay(ctx, caller, owed); err != nil {
		// Add back rather than overwrite: a re-entrant call may have credited
		// caller while the payment was in flight.
		l.registry.setPending(caller, l.registry.Pending(caller)+owed)
		l.custody += owed
		return transferError(op, err)
	}
	return nil
}

// Finalize closes the auction and pays the winning bid to the organizer.
// It succeeds at most once; a failed payment leaves the auction open to a
// later Finalize.
func (l *Ledger) Finalize(ctx context.Context) error {
	const op = "finalize"
	now := l.clock.Now()

	if l.ended {
		return newError(op, CodeState, ErrAlreadyEnded)
	}
	if now.Before(l.deadline) {
		return newError(op, CodeTemporal, ErrAuctionNotYetEnded)
	}

	l.ended = true
	winner := l.highest

	if winner.Amount > 0 {
		l.custody -= winner.Amount
		l.settling = true
		err := l.treasury.Pay(ctx, l.cfg.Organizer, winner.Amount)
		l.settling = false
		if err != nil {
			l.custody += winner.Amount
			l.ended = false
			return transferError(op, err)
		}
	}

	l.emit(now, Event{Kind: EventAuctionEnded, Bidder: winner.Bidder, Amount: winner.Amount})
	return nil
}

// WithdrawFees pays the organizer every unit in custody not owed to a bidder.
// The amount is reconstructed by subtracting all pending returns from custody.
func (l *Ledger) WithdrawFees(ctx context.Context, caller Identity) (Amount, error) {
	const op = "withdraw_fees"

	if caller != l.cfg.Organizer {
		return 0, newError(op, CodeAuthorization, ErrNotOrganizer)
	}
	if !l.ended || l.settling {
		return 0, newError(op, CodeState, ErrNotEnded)
	}

	owed := l.registry.TotalPending()
	if l.custody <= owed {
		return 0, newError(op, CodeInsufficientFunds, ErrNoFees)
	}
	amount := l.custody - owed

	l.custody -= amount
	l.feesWithdrawn += amount

	if err := l.treasury.Pay(ctx, l.cfg.Organizer, amount); err != nil {
		l.custody += amount
		l.feesWithdrawn -= amount
		return 0, transferError(op, err)
	}
	return amount, nil
}

// CurrentWinner returns the leading bidder ("" before any bid) and amount.
func (l *Ledger) CurrentWinner() (Identity, Amount) {
	return l.highest.Bidder, l.highest.Amount
}

// AllBids returns every participant with its most recent bid, in first-bid order.
func (l *Ledger) AllBids() ([]Identity, []Amount) {
	bidders := make([]Identity, 0, l.registry.Len())
	amounts := make([]Amount, 0, l.registry.Len())
	l.registry.Each(func(bidder Identity, latest, _ Amount) {
		bidders = append(bidders, bidder)
		amounts = append(amounts, latest)
	})
	return bidders, amounts
}

// TimeRemaining returns the time left until the deadline, never negative.
func (l *Ledger) TimeRemaining() time.Duration {
	remaining := l.deadline.Sub(l.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (l *Ledger) ID() uuid.UUID { return l.id }
func (l *Ledger) Organizer() Identity { return l.cfg.Organizer }
func (l *Ledger) Deadline() time.Time { return l.deadline }
func (l *Ledger) Ended() bool { return l.ended }
func (l *Ledger) Custody() Amount { return l.custody }
func (l *Ledger) Config() Config { return l.cfg }
func (l *Ledger) Participants() int { return l.registry.Len() }
func (l *Ledger) LastEventSeq() uint64 { return l.lastSeq }

// PendingReturn returns what bidder can currently withdraw.
func (l *Ledger) PendingReturn(bidder Identity) Amount {
	return l.registry.Pending(bidder)
}

// RetainedFees returns the fees currently held: custody minus every
// obligation to bidders, including the escrowed highest bid until finalized.
func (l *Ledger) RetainedFees() Amount {
	obligations := l.registry.TotalPending()
	if !l.ended {
		obligations += l.highest.Amount
	}
	if l.custody <= obligations {
		return 0
	}
	return l.custody - obligations
}

// Events returns a copy of the full notification log.
func (l *Ledger) Events() []Event {
	return l.EventsSince(0)
}

// EventsSince returns the events with a sequence number above seq.
func (l *Ledger) EventsSince(seq uint64) []Event {
	if seq >= l.lastSeq {
		return []Event{}
	}
	// Seq n is stored at index n-1.
	out := make([]Event, len(l.events)-int(seq))
	copy(out, l.events[seq:])
	return out
}

// emit appends committed events to the log, stamping sequence and time.
func (l *Ledger) emit(at time.Time, events ...Event) {
	for _, ev := range events {
		l.lastSeq++
		ev.Seq = l.lastSeq
		ev.At = at
		l.events = append(l.events, ev)
	}
}
