package core

import (
	"time"

	"github.com/google/uuid"
)

// Identity names a caller: a bidder, the organizer, or any payee.
// The empty Identity is the null identity.
type Identity string

// Amount is a quantity of value in its smallest indivisible unit.
type Amount uint64

// Bid is an offer placed on the auction.
type Bid struct {
	Bidder Identity `json:"bidder" cbor:"bidder"`
	Amount Amount   `json:"amount" cbor:"amount"`
}

// EventKind identifies a notification emitted by the ledger.
type EventKind string

const (
	EventHighestBidIncreased EventKind = "HighestBidIncreased"
	EventAuctionEnded        EventKind = "AuctionEnded"
	EventFundsRetained       EventKind = "FundsRetained"
	EventAuctionTimeExtended EventKind = "AuctionTimeExtended"
)

// Event is one entry of the ledger's append-only notification log.
// Seq starts at 1 and increases by one per committed event.
type Event struct {
	Seq      uint64    `json:"seq" cbor:"seq"`
	Kind     EventKind `json:"kind" cbor:"kind"`
	Bidder   Identity  `json:"bidder,omitempty" cbor:"bidder,omitempty"`
	Amount   Amount    `json:"amount,omitempty" cbor:"amount,omitempty"`
	Deadline time.Time `json:"deadline,omitzero" cbor:"deadline"`
	At       time.Time `json:"at" cbor:"at"`
}

// Config holds construction parameters for a Ledger.
type Config struct {
	// ID identifies the auction. A random ID is assigned when zero.
	ID uuid.UUID

	// Duration is the initial bidding period, counted from construction.
	Duration time.Duration

	// Organizer receives the winning bid and the retained fees.
	Organizer Identity

	// ExtensionWindow is both the late-bid window and the extension step.
	// Defaults to DefaultExtensionWindow.
	ExtensionWindow time.Duration

	// MinIncrementBasisPoints is the minimum raise over the highest bid.
	// Defaults to DefaultMinIncrementBasisPoints.
	MinIncrementBasisPoints int64

	// FeeBasisPoints is the share of an outbid bid kept by the ledger.
	// Defaults to DefaultFeeBasisPoints.
	FeeBasisPoints int64
}

const (
	DefaultExtensionWindow               = 10 * time.Second
	DefaultMinIncrementBasisPoints int64 = 500 // 5%
	DefaultFeeBasisPoints          int64 = 200 // 2%
)

// withDefaults fills unset optional fields.
func (c Config) withDefaults() Config {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.ExtensionWindow == 0 {
		c.ExtensionWindow = DefaultExtensionWindow
	}
	if c.MinIncrementBasisPoints == 0 {
		c.MinIncrementBasisPoints = DefaultMinIncrementBasisPoints
	}
	if c.FeeBasisPoints == 0 {
		c.FeeBasisPoints = DefaultFeeBasisPoints
	}
	return c
}

// Snapshot is the complete observable state of a ledger at one instant.
type Snapshot struct {
	AuctionID     string        `json:"auction_id" cbor:"auction_id"`
	Organizer     Identity      `json:"organizer" cbor:"organizer"`
	Deadline      time.Time     `json:"deadline" cbor:"deadline"`
	Ended         bool          `json:"ended" cbor:"ended"`
	Highest       Bid           `json:"highest" cbor:"highest"`
	Custody       Amount        `json:"custody" cbor:"custody"`
	FeesRetained  Amount        `json:"fees_retained" cbor:"fees_retained"`
	FeesWithdrawn Amount        `json:"fees_withdrawn" cbor:"fees_withdrawn"`
	Participants  []Participant `json:"participants" cbor:"participants"`
	LastEventSeq  uint64        `json:"last_event_seq" cbor:"last_event_seq"`
}

// Participant is one registry entry as exposed in a Snapshot.
type Participant struct {
	Bidder        Identity `json:"bidder" cbor:"bidder"`
	LatestBid     Amount   `json:"latest_bid" cbor:"latest_bid"`
	PendingReturn Amount   `json:"pending_return" cbor:"pending_return"`
}
