package osmloc

import (
	"iter"
	"slices"
	"sort"
)

// storeState tracks the write/read phase of a sorted-sequence store.
// Building accepts Sets and rejects lookups; Queryable is entered through
// Sort and accepts lookups. A Set while Queryable drops back to Building.
type storeState uint8

const (
	stateBuilding storeState = iota
	stateQueryable
)

type sparseEntry struct {
	id     uint64
	packed uint64
}

// compareSparse orders entries by id only; values are deliberately left out
// of the comparison so that a stable sort preserves insertion order among
// duplicates.
func compareSparse(a, b sparseEntry) int {
	switch {
	case a.id < b.id:
		return -1
	case a.id > b.id:
		return 1
	default:
		return 0
	}
}

// searchSparse returns the index of the leftmost entry with the given id,
// or -1. entries must be sorted.
func searchSparse(entries []sparseEntry, id uint64) int {
	i := sort.Search(len(entries), func(i int) bool { return entries[i].id >= id })
	if i < len(entries) && entries[i].id == id {
		return i
	}
	return -1
}

// Sparse is an append-only sequence of (id, location) pairs with
// binary-search lookup after an explicit Sort. It trades the O(max-id)
// memory of Dense for O(log n) lookups and a sort barrier between the
// populate and query phases.
//
// Duplicate ids are not rejected: the sort is stable and Get returns the
// first entry written for an id (first write wins after sort). Callers that
// need last-write semantics must dedupe before inserting.
type Sparse struct {
	entries []sparseEntry
	state   storeState
	closed  bool
}

// NewSparse creates an in-memory sparse store. capacity is an optional hint
// for the initial entry capacity.
func NewSparse(capacity int) *Sparse {
	s := &Sparse{}
	if capacity > 0 {
		s.entries = make([]sparseEntry, 0, capacity)
	}
	return s
}

// Set appends the pair without deduplicating. The store returns to its
// building state; Sort must run before the next lookup.
func (s *Sparse) Set(id uint64, loc Location) error {
	if s.closed {
		return ErrClosed
	}
	s.entries = append(s.entries, sparseEntry{id: id, packed: loc.Pack()})
	s.state = stateBuilding
	return nil
}

// Sort orders the sequence by id ascending and makes the store queryable.
// The sort is stable so earlier writes stay ahead of later ones.
func (s *Sparse) Sort() error {
	if s.closed {
		return ErrClosed
	}
	slices.SortStableFunc(s.entries, compareSparse)
	s.state = stateQueryable
	return nil
}

// Get binary-searches for id and returns the first matching entry. It fails
// with ErrUnsorted when Sort has not run since the last Set.
func (s *Sparse) Get(id uint64) (Location, error) {
	if s.closed {
		return Location{}, ErrClosed
	}
	if s.state != stateQueryable {
		return Location{}, ErrUnsorted
	}
	i := searchSparse(s.entries, id)
	if i < 0 {
		return Location{}, ErrNotFound
	}
	return Unpack(s.entries[i].packed), nil
}

// Len returns the number of entries, duplicates included.
func (s *Sparse) Len() int { return len(s.entries) }

// All yields the entries in their current order: insertion order while
// building, id order once sorted.
func (s *Sparse) All() iter.Seq2[uint64, Location] {
	return func(yield func(uint64, Location) bool) {
		for _, e := range s.entries {
			if !yield(e.id, Unpack(e.packed)) {
				return
			}
		}
	}
}

// Close releases the backing sequence.
func (s *Sparse) Close() error {
	s.entries = nil
	s.state = stateBuilding
	s.closed = true
	return nil
}
