package mmap

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// File is a memory-mapped file. Read-write files (from Create) own the
// underlying *os.File and can grow; read-only files (from Open) just wrap
// an established mapping.
type File struct {
	f        *os.File
	data     []byte
	size     int
	readonly bool
	closed   atomic.Bool
	// unmap is the platform-specific function to unmap the memory.
	unmap func([]byte) error
}

// Open maps the file at path into memory as read-only.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := fi.Size()
	if size < 0 {
		return nil, ErrInvalidSize
	}
	if size == 0 {
		return &File{readonly: true}, nil
	}

	data, unmapFunc, err := osMap(f, int(size), false)
	if err != nil {
		return nil, err
	}

	return &File{
		data:     data,
		size:     int(size),
		readonly: true,
		unmap:    unmapFunc,
	}, nil
}

// Create opens (creating if necessary) the file at path read-write, extends
// it to at least size bytes, and maps it shared. An existing larger file
// keeps its length. size must be positive: empty mappings cannot grow in
// place on every platform.
func Create(path string, size int) (*File, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() > int64(size) {
		size = int(fi.Size())
	} else if fi.Size() < int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("mmap: extend %s: %w", path, err)
		}
	}

	data, unmapFunc, err := osMap(f, size, true)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap: map %s: %w", path, err)
	}

	return &File{
		f:     f,
		data:  data,
		size:  size,
		unmap: unmapFunc,
	}, nil
}

// Grow extends the backing file to newSize bytes and replaces the mapping.
// Any byte slice previously returned by Bytes is invalid afterwards. Grow
// never shrinks: a newSize at or below the current size is a no-op.
func (m *File) Grow(newSize int) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.readonly {
		return ErrReadOnly
	}
	if newSize <= m.size {
		return nil
	}

	if err := m.unmapNow(); err != nil {
		return fmt.Errorf("mmap: unmap before grow: %w", err)
	}
	if err := m.f.Truncate(int64(newSize)); err != nil {
		// The old mapping is gone; leave the file open but mark the mapping
		// unusable so the owning store surfaces the failure on every access.
		m.closed.Store(true)
		return fmt.Errorf("mmap: extend to %d bytes: %w", newSize, err)
	}

	data, unmapFunc, err := osMap(m.f, newSize, true)
	if err != nil {
		m.closed.Store(true)
		return fmt.Errorf("mmap: remap to %d bytes: %w", newSize, err)
	}
	m.data = data
	m.size = newSize
	m.unmap = unmapFunc
	return nil
}

func (m *File) unmapNow() error {
	if m.unmap == nil || m.data == nil {
		return nil
	}
	err := m.unmap(m.data)
	m.data = nil
	m.unmap = nil
	return err
}

// Bytes returns the mapped byte slice. The slice is valid only until the
// next Grow or Close.
func (m *File) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *File) Size() int {
	return m.size
}

// Flush forces pending writes through to the backing file.
func (m *File) Flush() error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.readonly {
		return ErrReadOnly
	}
	if m.data != nil {
		if err := osFlush(m.data); err != nil {
			return fmt.Errorf("mmap: flush: %w", err)
		}
	}
	return m.f.Sync()
}

// Advise provides hints to the kernel about how the memory will be accessed.
func (m *File) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.data == nil {
		return nil
	}
	return osAdvise(m.data, pattern)
}

// ReadAt implements io.ReaderAt.
func (m *File) ReadAt(p []byte, off int64) (n int, err error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n = copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close unmaps the memory and closes the underlying file. It is idempotent.
func (m *File) Close() error {
	return m.close(-1)
}

// CloseTruncate closes like Close but first truncates the backing file to
// logical bytes, discarding growth slack so a reopen sees exactly the
// written records.
//
// Truncation happens after the unmap so it is safe on platforms that refuse
// to shrink a file with active views.
func (m *File) CloseTruncate(logical int64) error {
	return m.close(logical)
}

func (m *File) close(logical int64) error {
	if m.closed.Swap(true) {
		return nil
	}
	err := m.unmapNow()
	if m.f != nil {
		if logical >= 0 && !m.readonly {
			if terr := m.f.Truncate(logical); terr != nil && err == nil {
				err = fmt.Errorf("mmap: truncate to %d bytes: %w", logical, terr)
			}
		}
		if cerr := m.f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		m.f = nil
	}
	return err
}
