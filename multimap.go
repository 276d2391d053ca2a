package osmloc

import (
	"iter"
	"slices"
)

// MultimapStore is the sorted-sequence store variant that keeps every
// location recorded for an id instead of resolving duplicates. It is used
// when a location table doubles as a general id-to-value multimap, e.g. for
// member lists keyed by relation id.
//
// It shares the Sparse mechanics: append on Set, explicit Sort barrier,
// binary-search lookup.
type MultimapStore struct {
	entries []sparseEntry
	state   storeState
	closed  bool
}

// NewMultimap creates an in-memory multimap store. capacity is an optional
// hint for the initial entry capacity.
func NewMultimap(capacity int) *MultimapStore {
	m := &MultimapStore{}
	if capacity > 0 {
		m.entries = make([]sparseEntry, 0, capacity)
	}
	return m
}

// Set appends the pair. Duplicate ids are expected.
func (m *MultimapStore) Set(id uint64, loc Location) error {
	if m.closed {
		return ErrClosed
	}
	m.entries = append(m.entries, sparseEntry{id: id, packed: loc.Pack()})
	m.state = stateBuilding
	return nil
}

// Sort orders the sequence by id ascending (stable, so values for one id
// keep their insertion order) and makes the store queryable.
func (m *MultimapStore) Sort() error {
	if m.closed {
		return ErrClosed
	}
	slices.SortStableFunc(m.entries, compareSparse)
	m.state = stateQueryable
	return nil
}

// Get returns the first location recorded for id, mirroring the Sparse
// duplicate policy. Use GetAll for the full set.
func (m *MultimapStore) Get(id uint64) (Location, error) {
	if m.closed {
		return Location{}, ErrClosed
	}
	if m.state != stateQueryable {
		return Location{}, ErrUnsorted
	}
	i := searchSparse(m.entries, id)
	if i < 0 {
		return Location{}, ErrNotFound
	}
	return Unpack(m.entries[i].packed), nil
}

// GetAll returns every location recorded for id in insertion order. An id
// with no records yields an empty slice, not an error.
func (m *MultimapStore) GetAll(id uint64) ([]Location, error) {
	if m.closed {
		return nil, ErrClosed
	}
	if m.state != stateQueryable {
		return nil, ErrUnsorted
	}
	locs := []Location{}
	i := searchSparse(m.entries, id)
	if i < 0 {
		return locs, nil
	}
	for ; i < len(m.entries) && m.entries[i].id == id; i++ {
		locs = append(locs, Unpack(m.entries[i].packed))
	}
	return locs, nil
}

// Clear drops all records and returns the store to its building state.
func (m *MultimapStore) Clear() {
	m.entries = m.entries[:0]
	m.state = stateBuilding
}

// Len returns the number of entries, duplicates included.
func (m *MultimapStore) Len() int { return len(m.entries) }

// All yields the entries in their current order.
func (m *MultimapStore) All() iter.Seq2[uint64, Location] {
	return func(yield func(uint64, Location) bool) {
		for _, e := range m.entries {
			if !yield(e.id, Unpack(e.packed)) {
				return
			}
		}
	}
}

// Close releases the backing sequence.
func (m *MultimapStore) Close() error {
	m.entries = nil
	m.state = stateBuilding
	m.closed = true
	return nil
}
