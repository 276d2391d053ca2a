package osmloc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMappedDenseSetGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dense.idx")
	d, err := NewMappedDense(path, 0)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Set(0, MustLocation(1, 1)))
	require.NoError(t, d.Set(3, MustLocation(2, 2)))

	loc, err := d.Get(0)
	require.NoError(t, err)
	assert.Equal(t, MustLocation(1, 1), loc)

	_, err = d.Get(1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = d.Get(1 << 30)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, d.Len())
}

func TestMappedDenseGrowth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dense.idx")
	d, err := NewMappedDense(path, 8)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Set(0, MustLocation(1, 1)))
	require.NoError(t, d.Set(1000000, MustLocation(2, 2)))

	loc, err := d.Get(1000000)
	require.NoError(t, err)
	assert.Equal(t, MustLocation(2, 2), loc)

	// The grown gap is the undefined fill, never coordinate (0, 0).
	_, err = d.Get(500000)
	assert.ErrorIs(t, err, ErrNotFound)

	loc, err = d.Get(0)
	require.NoError(t, err)
	assert.Equal(t, MustLocation(1, 1), loc)
}

func TestMappedDenseHugeIDRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dense.idx")
	d, err := NewMappedDense(path, 8)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Set(0, MustLocation(1, 1)))

	// An id whose byte offset would overflow must be rejected up front,
	// not wrapped around into a low slot.
	assert.ErrorIs(t, d.Set(1<<61, MustLocation(2, 2)), ErrCapacity)

	loc, err := d.Get(0)
	require.NoError(t, err)
	assert.Equal(t, MustLocation(1, 1), loc, "slot 0 must still hold its own write")
	assert.Equal(t, 1, d.Len())
}

func TestMappedDensePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dense.idx")

	want := map[uint64]Location{}
	d, err := NewMappedDense(path, 16)
	require.NoError(t, err)
	for id := uint64(0); id < 1000; id += 7 {
		loc := MustLocation(float64(id%180), float64(id%90))
		want[id] = loc
		require.NoError(t, d.Set(id, loc))
	}
	require.NoError(t, d.Flush())
	require.NoError(t, d.Close())

	// Reopen and verify every record reads back identically.
	d, err = NewMappedDense(path, 0)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, len(want), d.Len())
	for id, loc := range want {
		got, err := d.Get(id)
		require.NoError(t, err)
		assert.Equal(t, loc, got)
	}
	_, err = d.Get(5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMappedDenseCloseTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dense.idx")
	d, err := NewMappedDense(path, 1<<16)
	require.NoError(t, err)
	require.NoError(t, d.Set(9, MustLocation(1, 1)))
	require.NoError(t, d.Close())

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(10*8), fi.Size(), "growth slack is trimmed on close")
}

func TestMappedDenseTempFileRemoved(t *testing.T) {
	d, err := NewMappedDense("", 0)
	require.NoError(t, err)
	path := d.Path()

	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, d.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "temporary backing file is removed on close")
}

func TestMappedSparseSetGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sparse.idx")
	s, err := NewMappedSparse(path, 0)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(500, MustLocation(5, 5)))
	require.NoError(t, s.Set(1, MustLocation(1, 1)))

	_, err = s.Get(1)
	assert.ErrorIs(t, err, ErrUnsorted)

	require.NoError(t, s.Sort())
	loc, err := s.Get(500)
	require.NoError(t, err)
	assert.Equal(t, MustLocation(5, 5), loc)

	_, err = s.Get(2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMappedSparseDuplicateFirstWriteWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sparse.idx")
	s, err := NewMappedSparse(path, 0)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(7, MustLocation(1, 1)))
	require.NoError(t, s.Set(7, MustLocation(2, 2)))
	require.NoError(t, s.Sort())

	loc, err := s.Get(7)
	require.NoError(t, err)
	assert.Equal(t, MustLocation(1, 1), loc)
}

func TestMappedSparseGrowthAcrossInitialCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sparse.idx")
	s, err := NewMappedSparse(path, 4)
	require.NoError(t, err)
	defer s.Close()

	for id := uint64(0); id < 10000; id++ {
		require.NoError(t, s.Set(id*3, MustLocation(float64(id%90), float64(id%90))))
	}
	require.NoError(t, s.Sort())

	loc, err := s.Get(3 * 9999)
	require.NoError(t, err)
	assert.Equal(t, MustLocation(float64(9999%90), float64(9999%90)), loc)
	assert.Equal(t, 10000, s.Len())
}

func TestMappedSparsePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sparse.idx")

	s, err := NewMappedSparse(path, 0)
	require.NoError(t, err)
	require.NoError(t, s.Set(30, MustLocation(3, 3)))
	require.NoError(t, s.Set(10, MustLocation(1, 1)))
	require.NoError(t, s.Set(20, MustLocation(2, 2)))
	require.NoError(t, s.Close())

	s, err = NewMappedSparse(path, 0)
	require.NoError(t, err)
	defer s.Close()

	// The pair set survives; order before re-sort is unspecified.
	got := map[uint64]Location{}
	for id, loc := range s.All() {
		got[id] = loc
	}
	assert.Equal(t, map[uint64]Location{
		10: MustLocation(1, 1),
		20: MustLocation(2, 2),
		30: MustLocation(3, 3),
	}, got)

	// A reopened store is in the building state until re-sorted.
	_, err = s.Get(10)
	assert.ErrorIs(t, err, ErrUnsorted)

	require.NoError(t, s.Sort())
	loc, err := s.Get(20)
	require.NoError(t, err)
	assert.Equal(t, MustLocation(2, 2), loc)
}

func TestMappedSparseTempFileRemoved(t *testing.T) {
	s, err := NewMappedSparse("", 0)
	require.NoError(t, err)
	path := s.Path()

	require.NoError(t, s.Set(1, MustLocation(1, 1)))
	require.NoError(t, s.Close())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestMappedStoresClosed(t *testing.T) {
	for _, spec := range []string{"mapped_dense", "mapped_sparse"} {
		t.Run(spec, func(t *testing.T) {
			st, err := Create(spec + "," + filepath.Join(t.TempDir(), "f.idx"))
			require.NoError(t, err)
			require.NoError(t, st.Set(1, MustLocation(1, 1)))
			require.NoError(t, st.Close())

			assert.ErrorIs(t, st.Set(1, MustLocation(1, 1)), ErrClosed)
			assert.ErrorIs(t, st.Sort(), ErrClosed)
			_, err = st.Get(1)
			assert.ErrorIs(t, err, ErrClosed)
			assert.Equal(t, 0, st.Len())
			require.NoError(t, st.Close(), "Close is idempotent")
		})
	}
}

func TestMappedStoresImplementFlusher(t *testing.T) {
	for _, spec := range []string{"mapped_dense", "mapped_sparse"} {
		t.Run(spec, func(t *testing.T) {
			st, err := Create(spec + "," + filepath.Join(t.TempDir(), "f.idx"))
			require.NoError(t, err)
			defer st.Close()

			f, ok := st.(Flusher)
			require.True(t, ok)
			require.NoError(t, st.Set(1, MustLocation(1, 1)))
			require.NoError(t, f.Flush())
		})
	}
}
