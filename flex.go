package osmloc

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// flexPageBits sizes flex pages at 4096 slots (32 KiB per page).
const flexPageBits = 12

const flexPageSize = 1 << flexPageBits

type flexPage [flexPageSize]uint64

// Flex is the default general-purpose backend: dense 4096-slot pages
// allocated on demand, with a compressed bitmap recording exactly which ids
// are set. It keeps the O(1) lookups of Dense without paying O(max-id)
// memory when the populated id ranges are patchy, which is the common shape
// of regional OSM extracts.
type Flex struct {
	pages  map[uint64]*flexPage
	ids    *roaring64.Bitmap
	closed bool
}

// NewFlex creates an in-memory flex store.
func NewFlex() *Flex {
	return &Flex{
		pages: make(map[uint64]*flexPage),
		ids:   roaring64.New(),
	}
}

// Set records the location for id, allocating its page on first touch.
// Setting the undefined location removes the id.
func (f *Flex) Set(id uint64, loc Location) error {
	if f.closed {
		return ErrClosed
	}
	if !loc.Defined() {
		f.ids.Remove(id)
		return nil
	}
	pageNo := id >> flexPageBits
	page, ok := f.pages[pageNo]
	if !ok {
		page = new(flexPage)
		f.pages[pageNo] = page
	}
	page[id&(flexPageSize-1)] = loc.Pack()
	f.ids.Add(id)
	return nil
}

// Get returns the location for id. Membership is decided by the id bitmap,
// so zero-valued slots of a freshly allocated page are never mistaken for
// coordinate (0, 0).
func (f *Flex) Get(id uint64) (Location, error) {
	if f.closed {
		return Location{}, ErrClosed
	}
	if !f.ids.Contains(id) {
		return Location{}, ErrNotFound
	}
	return Unpack(f.pages[id>>flexPageBits][id&(flexPageSize-1)]), nil
}

// Sort is a no-op; pages are id-ordered by construction.
func (f *Flex) Sort() error {
	if f.closed {
		return ErrClosed
	}
	return nil
}

// Len returns the number of ids set.
func (f *Flex) Len() int { return int(f.ids.GetCardinality()) }

// All yields the recorded (id, location) pairs in id order.
func (f *Flex) All() iter.Seq2[uint64, Location] {
	return func(yield func(uint64, Location) bool) {
		it := f.ids.Iterator()
		for it.HasNext() {
			id := it.Next()
			loc := Unpack(f.pages[id>>flexPageBits][id&(flexPageSize-1)])
			if !yield(id, loc) {
				return
			}
		}
	}
}

// Close releases all pages and the id bitmap.
func (f *Flex) Close() error {
	f.pages = nil
	f.ids = nil
	f.closed = true
	return nil
}
