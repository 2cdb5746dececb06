package track

import "sync"

// Entry associates an item id with its origin reference for one batch.
type Entry struct {
	ID     string
	Origin Origin
}

// Registry is the inflight registry: batch id to the ordered entries that
// produced the batch. An entry exists from dispatch until either a
// matching result set arrives or the batch is abandoned. Lookups happen
// only by the batch id echoed back over the channel.
type Registry struct {
	mu       sync.Mutex
	inflight map[string][]Entry
}

// NewRegistry creates an empty inflight registry.
func NewRegistry() *Registry {
	return &Registry{
		inflight: make(map[string][]Entry),
	}
}

// Add records the entries for a dispatched batch.
func (r *Registry) Add(batchID string, entries []Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight[batchID] = entries
}

// Take removes and returns the entries for a batch. The second return is
// false when the batch is unknown: already reconciled, already abandoned,
// or never dispatched. Removal on first delivery is what makes duplicate
// and late deliveries idempotent.
func (r *Registry) Take(batchID string) ([]Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries, ok := r.inflight[batchID]
	if ok {
		delete(r.inflight, batchID)
	}
	return entries, ok
}

// Abandon drops the entries for a batch whose dispatch was rejected.
// The affected items stay in processing state; there is no sweep that
// resolves them later.
func (r *Registry) Abandon(batchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, batchID)
}

// Len returns the number of batches currently in flight.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}
