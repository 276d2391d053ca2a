package osmloc

import (
	"fmt"
	"iter"
	"math"
)

// denseInitialCapacity is the slot count allocated by the first Set when no
// capacity hint was given.
const denseInitialCapacity = 1024

// Dense is a direct-indexed array store: the packed location for id lives at
// offset id. Lookups are O(1); memory is proportional to the highest id
// seen, which makes it the right choice for full-planet extracts and the
// wrong one for small extracts with high-magnitude ids.
type Dense struct {
	slots  []uint64
	count  int
	closed bool
}

// NewDense creates an in-memory dense store. capacity is an optional hint
// for the initial slot count.
func NewDense(capacity int) *Dense {
	d := &Dense{}
	if capacity > 0 {
		d.slots = newUndefinedSlots(capacity)
	}
	return d
}

func newUndefinedSlots(n int) []uint64 {
	s := make([]uint64, n)
	fillUndefined(s)
	return s
}

func fillUndefined(s []uint64) {
	undef := Undefined().Pack()
	for i := range s {
		s[i] = undef
	}
}

// Set records the location for id, extending the array to at least id+1
// slots. Extension doubles the capacity, so repeated Sets with roughly
// increasing ids are amortized O(1).
func (d *Dense) Set(id uint64, loc Location) error {
	if d.closed {
		return ErrClosed
	}
	if id >= math.MaxInt {
		return fmt.Errorf("dense_mem: id %d: %w", id, ErrCapacity)
	}
	if id >= uint64(len(d.slots)) {
		d.grow(id + 1)
	}
	prev := Unpack(d.slots[id])
	if !prev.Defined() && loc.Defined() {
		d.count++
	} else if prev.Defined() && !loc.Defined() {
		d.count--
	}
	d.slots[id] = loc.Pack()
	return nil
}

func (d *Dense) grow(minSlots uint64) {
	newCap := uint64(len(d.slots)) * 2
	if newCap < denseInitialCapacity {
		newCap = denseInitialCapacity
	}
	if newCap < minSlots {
		newCap = minSlots
	}
	if newCap > math.MaxInt {
		newCap = math.MaxInt
	}
	grown := newUndefinedSlots(int(newCap))
	copy(grown, d.slots)
	d.slots = grown
}

// Get returns the location for id, or ErrNotFound when id is beyond the
// populated range or its slot still holds the undefined sentinel.
func (d *Dense) Get(id uint64) (Location, error) {
	if d.closed {
		return Location{}, ErrClosed
	}
	if id >= uint64(len(d.slots)) {
		return Location{}, ErrNotFound
	}
	loc := Unpack(d.slots[id])
	if !loc.Defined() {
		return Location{}, ErrNotFound
	}
	return loc, nil
}

// Sort is a no-op; the array is id-ordered by construction.
func (d *Dense) Sort() error {
	if d.closed {
		return ErrClosed
	}
	return nil
}

// Len returns the number of defined locations held.
func (d *Dense) Len() int { return d.count }

// All yields the defined (id, location) pairs in id order.
func (d *Dense) All() iter.Seq2[uint64, Location] {
	return func(yield func(uint64, Location) bool) {
		for id, packed := range d.slots {
			loc := Unpack(packed)
			if !loc.Defined() {
				continue
			}
			if !yield(uint64(id), loc) {
				return
			}
		}
	}
}

// Close releases the backing array.
func (d *Dense) Close() error {
	d.slots = nil
	d.count = 0
	d.closed = true
	return nil
}
