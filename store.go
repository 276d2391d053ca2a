package osmloc

import "iter"

// Store maps OSM node ids to locations during a streaming pass over OSM
// data: populate with Set while reading nodes, then look up with Get while
// resolving way geometries.
//
// Concurrency: a store must be populated from a single goroutine. Once
// population is finished (and Sort has run, for sorted-sequence backends)
// the store is effectively immutable and concurrent Get calls are safe
// without further synchronization. No backend locks internally.
type Store interface {
	// Set records the location for id. Backends grow as needed; growth may
	// reallocate or remap backing storage, so callers must not retain
	// references into the store across Set.
	Set(id uint64, loc Location) error

	// Get returns the location recorded for id, or ErrNotFound.
	Get(id uint64) (Location, error)

	// Sort prepares a sorted-sequence store for lookups. It is a no-op for
	// direct-indexed backends and is kept on the interface so callers can
	// treat all backends uniformly between the populate and query phases.
	Sort() error

	// Len returns the number of records currently held.
	Len() int

	// Close releases backing memory or files. Mapped stores created on a
	// private temporary file remove it. Close is idempotent.
	Close() error
}

// Flusher is implemented by file-backed stores that can force pending
// writes to disk. Flush must not race a concurrent Get.
type Flusher interface {
	Flush() error
}

// Multimap is implemented by stores that permit multiple locations per id.
type Multimap interface {
	// GetAll returns every location recorded for id in sorted order. An id
	// with no records yields an empty slice, not an error.
	GetAll(id uint64) ([]Location, error)

	// Clear drops all records and returns the store to its building state.
	Clear()
}

// Iterator is implemented by all compiled-in backends and yields the
// (id, location) pairs currently held, in backend order. Used by the
// snapshot package to dump a store regardless of its physical layout.
type Iterator interface {
	All() iter.Seq2[uint64, Location]
}
