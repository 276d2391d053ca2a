package osmloc

import (
	"encoding/binary"
	"fmt"
	"iter"
	"math"
	"os"

	"github.com/agrenott/osmloc/internal/mmap"
)

const slotBytes = 8

// mappedDenseInitialSlots sizes a fresh mapped dense file when no capacity
// hint was given.
const mappedDenseInitialSlots = 1 << 16

// maxMappedDenseSlots bounds the slot count so byte offsets and the file
// size never overflow.
const maxMappedDenseSlots = math.MaxInt / slotBytes

// MappedDense is the dense array store over a growable memory-mapped file:
// the packed location for id lives at byte offset id*8, little-endian. The
// file persists across process restarts; reopening an existing file
// restores the index without repopulating.
//
// Byte slices into the mapping are never exposed, but the documented growth
// invariant still applies: Set may remap, so Get must not run concurrently
// with Set, Flush, or Close.
type MappedDense struct {
	file *mmap.File
	path string
	// logicalSlots is the slot count a reopen must see: everything written
	// in this or a previous session. The mapping itself may be larger due
	// to growth doubling; Close truncates the difference away.
	logicalSlots uint64
	count        int
	temp         bool
}

// NewMappedDense opens a dense store backed by the file at path, creating
// it if needed. An empty path creates a private temporary file that is
// removed on Close. capacity is an optional hint in slots.
func NewMappedDense(path string, capacity int) (*MappedDense, error) {
	temp := false
	if path == "" {
		f, err := os.CreateTemp("", "osmloc-dense-*.idx")
		if err != nil {
			return nil, fmt.Errorf("mapped_dense: create temp file: %w", err)
		}
		path = f.Name()
		f.Close()
		temp = true
	}

	if capacity <= 0 {
		capacity = mappedDenseInitialSlots
	}

	existing, err := fileSize(path)
	if err != nil {
		return nil, fmt.Errorf("mapped_dense: stat %s: %w", path, err)
	}

	file, err := mmap.Create(path, capacity*slotBytes)
	if err != nil {
		if temp {
			os.Remove(path)
		}
		return nil, fmt.Errorf("mapped_dense: open %s: %w", path, err)
	}

	d := &MappedDense{
		file:         file,
		path:         path,
		logicalSlots: uint64(existing) / slotBytes,
		temp:         temp,
	}
	// Everything beyond the previous session's records is fresh zero-fill
	// from the extend; stamp it with the undefined pattern so it can never
	// read back as coordinate (0, 0).
	d.fillUndefined(existing, int64(file.Size()))
	d.recount()

	// Population is append-heavy but the query phase is random access.
	_ = file.Advise(mmap.AccessRandom)

	return d, nil
}

func fileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (d *MappedDense) fillUndefined(from, to int64) {
	data := d.file.Bytes()
	undef := Undefined().Pack()
	for off := from; off+slotBytes <= to; off += slotBytes {
		binary.LittleEndian.PutUint64(data[off:], undef)
	}
}

func (d *MappedDense) recount() {
	data := d.file.Bytes()
	for off := uint64(0); off < d.logicalSlots*slotBytes; off += slotBytes {
		if Unpack(binary.LittleEndian.Uint64(data[off:])).Defined() {
			d.count++
		}
	}
}

// Set records the location for id, growing the backing file (doubling, or
// to id+1 slots if larger) when id is beyond the mapped capacity. Growth
// remaps; it fails with a wrapped IO error when the filesystem cannot
// extend the file, and with ErrCapacity when the byte offset for id would
// overflow.
func (d *MappedDense) Set(id uint64, loc Location) error {
	if id >= maxMappedDenseSlots {
		return fmt.Errorf("mapped_dense: id %d: %w", id, ErrCapacity)
	}
	capSlots := uint64(d.file.Size()) / slotBytes
	if id >= capSlots {
		newSlots := capSlots * 2
		if newSlots < id+1 {
			newSlots = id + 1
		}
		if newSlots > maxMappedDenseSlots {
			newSlots = maxMappedDenseSlots
		}
		oldBytes := int64(d.file.Size())
		if err := d.file.Grow(int(newSlots) * slotBytes); err != nil {
			return fmt.Errorf("mapped_dense: %w", err)
		}
		d.fillUndefined(oldBytes, int64(d.file.Size()))
	}

	data := d.file.Bytes()
	if data == nil {
		return ErrClosed
	}
	off := id * slotBytes
	prev := Unpack(binary.LittleEndian.Uint64(data[off:]))
	if !prev.Defined() && loc.Defined() {
		d.count++
	} else if prev.Defined() && !loc.Defined() {
		d.count--
	}
	binary.LittleEndian.PutUint64(data[off:], loc.Pack())
	if id >= d.logicalSlots {
		d.logicalSlots = id + 1
	}
	return nil
}

// Get returns the location for id, or ErrNotFound when id is beyond the
// mapped range or its slot holds the undefined sentinel.
func (d *MappedDense) Get(id uint64) (Location, error) {
	data := d.file.Bytes()
	if data == nil {
		return Location{}, ErrClosed
	}
	if id >= uint64(len(data))/slotBytes {
		return Location{}, ErrNotFound
	}
	loc := Unpack(binary.LittleEndian.Uint64(data[id*slotBytes:]))
	if !loc.Defined() {
		return Location{}, ErrNotFound
	}
	return loc, nil
}

// Sort is a no-op; the file is id-ordered by construction.
func (d *MappedDense) Sort() error {
	if d.file.Bytes() == nil {
		return ErrClosed
	}
	return nil
}

// Len returns the number of defined locations held.
func (d *MappedDense) Len() int { return d.count }

// All yields the defined (id, location) pairs in id order.
func (d *MappedDense) All() iter.Seq2[uint64, Location] {
	return func(yield func(uint64, Location) bool) {
		data := d.file.Bytes()
		if data == nil {
			return
		}
		for id := uint64(0); id < d.logicalSlots; id++ {
			loc := Unpack(binary.LittleEndian.Uint64(data[id*slotBytes:]))
			if !loc.Defined() {
				continue
			}
			if !yield(id, loc) {
				return
			}
		}
	}
}

// Flush forces pending writes through to the backing file.
func (d *MappedDense) Flush() error {
	if err := d.file.Flush(); err != nil {
		return fmt.Errorf("mapped_dense: %w", err)
	}
	return nil
}

// Path returns the backing file path.
func (d *MappedDense) Path() string { return d.path }

// Close unmaps, truncates the file to the written slots, and closes it.
// A store created on a private temporary file removes it. Close is
// idempotent.
func (d *MappedDense) Close() error {
	err := d.file.CloseTruncate(int64(d.logicalSlots) * slotBytes)
	d.count = 0
	if d.temp {
		d.temp = false
		if rerr := os.Remove(d.path); rerr != nil && err == nil {
			err = rerr
		}
	}
	return err
}
