package core

import (
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestRegistry_PreservesFirstBidOrder(t *testing.T) {
	r := NewRegistry()
	r.register("carol").latest = 1
	r.register("alice").latest = 2
	r.register("carol").latest = 3
	r.register("bob").latest = 4

	var order []Identity
	var latest []Amount
	r.Each(func(bidder Identity, l, _ Amount) {
		order = append(order, bidder)
		latest = append(latest, l)
	})

	check.Equal(t, 3, r.Len())
	check.Equal(t, []Identity{"carol", "alice", "bob"}, order)
	check.Equal(t, []Amount{3, 2, 4}, latest)
}

func TestRegistry_PendingBookkeeping(t *testing.T) {
	r := NewRegistry()
	check.False(t, r.Contains("alice"))
	check.Equal(t, Amount(0), r.Pending("alice"))
	check.Equal(t, Amount(0), r.Latest("alice"))

	// Unknown bidders are ignored.
	r.setPending("alice", 10)
	check.Equal(t, Amount(0), r.TotalPending())

	r.register("alice")
	r.register("bob")
	r.setPending("alice", 10)
	r.setPending("bob", 32)

	check.True(t, r.Contains("alice"))
	check.Equal(t, Amount(10), r.Pending("alice"))
	check.Equal(t, Amount(42), r.TotalPending())

	r.setPending("alice", 0)
	check.Equal(t, Amount(32), r.TotalPending())
}
