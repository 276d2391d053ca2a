package osmloc

import (
	"encoding/binary"
	"fmt"
	"iter"
	"math"
	"os"
	"sort"

	"github.com/agrenott/osmloc/internal/mmap"
)

const recordBytes = 16

// mappedSparseInitialRecords sizes a fresh mapped sparse file when no
// capacity hint was given.
const mappedSparseInitialRecords = 1 << 12

// maxMappedSparseRecords bounds the record count so byte offsets and the
// file size never overflow.
const maxMappedSparseRecords = math.MaxInt / recordBytes

// MappedSparse is the sorted-sequence store over a growable memory-mapped
// file: 16-byte little-endian (id, packed location) records, appended
// during population and sorted in place by Sort. The file persists across
// process restarts; a reopened store holds the same record set but starts
// in the building state, so Sort must run again before lookups.
type MappedSparse struct {
	file  *mmap.File
	path  string
	n     uint64 // records written
	state storeState
	temp  bool
}

// NewMappedSparse opens a sparse store backed by the file at path, creating
// it if needed. An empty path creates a private temporary file that is
// removed on Close. capacity is an optional hint in records.
func NewMappedSparse(path string, capacity int) (*MappedSparse, error) {
	temp := false
	if path == "" {
		f, err := os.CreateTemp("", "osmloc-sparse-*.idx")
		if err != nil {
			return nil, fmt.Errorf("mapped_sparse: create temp file: %w", err)
		}
		path = f.Name()
		f.Close()
		temp = true
	}

	if capacity <= 0 {
		capacity = mappedSparseInitialRecords
	}

	existing, err := fileSize(path)
	if err != nil {
		return nil, fmt.Errorf("mapped_sparse: stat %s: %w", path, err)
	}

	file, err := mmap.Create(path, capacity*recordBytes)
	if err != nil {
		if temp {
			os.Remove(path)
		}
		return nil, fmt.Errorf("mapped_sparse: open %s: %w", path, err)
	}

	return &MappedSparse{
		file:  file,
		path:  path,
		n:     uint64(existing) / recordBytes,
		state: stateBuilding,
		temp:  temp,
	}, nil
}

// Set appends the pair, growing the backing file (doubling) when full. The
// store returns to its building state.
func (s *MappedSparse) Set(id uint64, loc Location) error {
	if s.n >= maxMappedSparseRecords {
		return fmt.Errorf("mapped_sparse: %w", ErrCapacity)
	}
	capRecords := uint64(s.file.Size()) / recordBytes
	if s.n >= capRecords {
		newRecords := capRecords * 2
		if newRecords < mappedSparseInitialRecords {
			newRecords = mappedSparseInitialRecords
		}
		if newRecords > maxMappedSparseRecords {
			newRecords = maxMappedSparseRecords
		}
		if err := s.file.Grow(int(newRecords) * recordBytes); err != nil {
			return fmt.Errorf("mapped_sparse: %w", err)
		}
	}

	data := s.file.Bytes()
	if data == nil {
		return ErrClosed
	}
	off := s.n * recordBytes
	binary.LittleEndian.PutUint64(data[off:], id)
	binary.LittleEndian.PutUint64(data[off+8:], loc.Pack())
	s.n++
	s.state = stateBuilding
	return nil
}

// mappedRecords adapts the record region to sort.Interface. The sort must
// be stable so that the first write for a duplicated id stays first.
type mappedRecords struct {
	data []byte
	n    int
}

func (r mappedRecords) Len() int { return r.n }

func (r mappedRecords) Less(i, j int) bool {
	return binary.LittleEndian.Uint64(r.data[i*recordBytes:]) <
		binary.LittleEndian.Uint64(r.data[j*recordBytes:])
}

func (r mappedRecords) Swap(i, j int) {
	var tmp [recordBytes]byte
	a := r.data[i*recordBytes : i*recordBytes+recordBytes]
	b := r.data[j*recordBytes : j*recordBytes+recordBytes]
	copy(tmp[:], a)
	copy(a, b)
	copy(b, tmp[:])
}

// Sort orders the records in place by id ascending and makes the store
// queryable.
func (s *MappedSparse) Sort() error {
	data := s.file.Bytes()
	if data == nil {
		return ErrClosed
	}
	sort.Stable(mappedRecords{data: data, n: int(s.n)})
	s.state = stateQueryable
	return nil
}

// Get binary-searches the sorted records and returns the first match. It
// fails with ErrUnsorted when Sort has not run since the last Set (or since
// the file was reopened).
func (s *MappedSparse) Get(id uint64) (Location, error) {
	data := s.file.Bytes()
	if data == nil {
		return Location{}, ErrClosed
	}
	if s.state != stateQueryable {
		return Location{}, ErrUnsorted
	}
	n := int(s.n)
	i := sort.Search(n, func(i int) bool {
		return binary.LittleEndian.Uint64(data[i*recordBytes:]) >= id
	})
	if i >= n || binary.LittleEndian.Uint64(data[i*recordBytes:]) != id {
		return Location{}, ErrNotFound
	}
	return Unpack(binary.LittleEndian.Uint64(data[i*recordBytes+8:])), nil
}

// Len returns the number of records, duplicates included.
func (s *MappedSparse) Len() int { return int(s.n) }

// All yields the records in their current file order: append order while
// building, id order once sorted.
func (s *MappedSparse) All() iter.Seq2[uint64, Location] {
	return func(yield func(uint64, Location) bool) {
		data := s.file.Bytes()
		if data == nil {
			return
		}
		for i := uint64(0); i < s.n; i++ {
			off := i * recordBytes
			id := binary.LittleEndian.Uint64(data[off:])
			loc := Unpack(binary.LittleEndian.Uint64(data[off+8:]))
			if !yield(id, loc) {
				return
			}
		}
	}
}

// Flush forces pending writes through to the backing file.
func (s *MappedSparse) Flush() error {
	if err := s.file.Flush(); err != nil {
		return fmt.Errorf("mapped_sparse: %w", err)
	}
	return nil
}

// Path returns the backing file path.
func (s *MappedSparse) Path() string { return s.path }

// Close unmaps, truncates the file to the written records, and closes it.
// A store created on a private temporary file removes it. Close is
// idempotent.
func (s *MappedSparse) Close() error {
	err := s.file.CloseTruncate(int64(s.n) * recordBytes)
	s.n = 0
	if s.temp {
		s.temp = false
		if rerr := os.Remove(s.path); rerr != nil && err == nil {
			err = rerr
		}
	}
	return err
}
