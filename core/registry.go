package core

// registryEntry is the per-bidder bookkeeping. pending is value owed back to
// the bidder; latest is used for reporting only and never for accounting.
type registryEntry struct {
	bidder  Identity
	latest  Amount
	pending Amount
}

// Registry is an insertion-ordered map of every identity that has bid.
// Each bidder appears once, in order of first bid.
type Registry struct {
	index   map[Identity]int
	entries []registryEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		index:   make(map[Identity]int),
		entries: make([]registryEntry, 0),
	}
}

// Len returns the number of registered bidders.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Contains reports whether bidder has ever bid.
func (r *Registry) Contains(bidder Identity) bool {
	_, ok := r.index[bidder]
	return ok
}

// register appends bidder if it is not present yet and returns its slot.
func (r *Registry) register(bidder Identity) *registryEntry {
	if i, ok := r.index[bidder]; ok {
		return &r.entries[i]
	}
	r.index[bidder] = len(r.entries)
	r.entries = append(r.entries, registryEntry{bidder: bidder})
	return &r.entries[len(r.entries)-1]
}

func (r *Registry) entry(bidder Identity) *registryEntry {
	i, ok := r.index[bidder]
	if !ok {
		return nil
	}
	return &r.entries[i]
}

// Pending returns the amount owed to bidder, zero if unknown.
func (r *Registry) Pending(bidder Identity) Amount {
	if e := r.entry(bidder); e != nil {
		return e.pending
	}
	return 0
}

// Latest returns bidder's most recent bid, zero if unknown.
func (r *Registry) Latest(bidder Identity) Amount {
	if e := r.entry(bidder); e != nil {
		return e.latest
	}
	return 0
}

// setPending overwrites the owed amount of a registered bidder.
func (r *Registry) setPending(bidder Identity, amount Amount) {
	if e := r.entry(bidder); e != nil {
		e.pending = amount
	}
}

// TotalPending sums every outstanding pending return.
// This is a full scan of the registry.
func (r *Registry) TotalPending() Amount {
	var total Amount
	for _, e := range r.entries {
		total += e.pending
	}
	return total
}

// Each calls fn for every bidder in registration order.
func (r *Registry) Each(fn func(bidder Identity, latest, pending Amount)) {
	for _, e := range r.entries {
		fn(e.bidder, e.latest, e.pending)
	}
}
