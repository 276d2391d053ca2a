package osmloc

import "iter"

// NoneStore discards every write and reports every id as absent. It is the
// backend to pick when a pass over the data does not need locations at all
// but the pipeline still expects a store to exist.
type NoneStore struct{}

// NewNone creates the null store.
func NewNone() *NoneStore { return &NoneStore{} }

// Set discards the pair.
func (*NoneStore) Set(uint64, Location) error { return nil }

// Get always fails with ErrNotFound.
func (*NoneStore) Get(uint64) (Location, error) { return Location{}, ErrNotFound }

// Sort is a no-op.
func (*NoneStore) Sort() error { return nil }

// Len is always zero.
func (*NoneStore) Len() int { return 0 }

// All yields nothing.
func (*NoneStore) All() iter.Seq2[uint64, Location] {
	return func(func(uint64, Location) bool) {}
}

// Close is a no-op.
func (*NoneStore) Close() error { return nil }
