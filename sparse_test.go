package osmloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSparseRequiresSort(t *testing.T) {
	s := NewSparse(0)
	defer s.Close()

	require.NoError(t, s.Set(10, MustLocation(1, 1)))

	// Lookups before Sort must be rejected, not silently wrong.
	_, err := s.Get(10)
	assert.ErrorIs(t, err, ErrUnsorted)

	require.NoError(t, s.Sort())
	loc, err := s.Get(10)
	require.NoError(t, err)
	assert.Equal(t, MustLocation(1, 1), loc)
}

func TestSparseSetGet(t *testing.T) {
	s := NewSparse(8)
	defer s.Close()

	// Deliberately out of order.
	require.NoError(t, s.Set(500, MustLocation(5, 5)))
	require.NoError(t, s.Set(1, MustLocation(1, 1)))
	require.NoError(t, s.Set(1000000000000, MustLocation(9, 9)))
	require.NoError(t, s.Sort())

	for id, want := range map[uint64]Location{
		1:             MustLocation(1, 1),
		500:           MustLocation(5, 5),
		1000000000000: MustLocation(9, 9),
	} {
		got, err := s.Get(id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := s.Get(499)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSparseDuplicateFirstWriteWins(t *testing.T) {
	s := NewSparse(0)
	defer s.Close()

	require.NoError(t, s.Set(7, MustLocation(1, 1)))
	require.NoError(t, s.Set(7, MustLocation(2, 2)))
	require.NoError(t, s.Set(3, MustLocation(3, 3)))
	require.NoError(t, s.Set(7, MustLocation(4, 4)))
	require.NoError(t, s.Sort())

	// The stable sort keeps insertion order among duplicates and lookup
	// returns the first match: first write wins after sort.
	loc, err := s.Get(7)
	require.NoError(t, err)
	assert.Equal(t, MustLocation(1, 1), loc)

	assert.Equal(t, 4, s.Len(), "duplicates are not deduplicated")
}

func TestSparseSetAfterSortInvalidates(t *testing.T) {
	s := NewSparse(0)
	defer s.Close()

	require.NoError(t, s.Set(1, MustLocation(1, 1)))
	require.NoError(t, s.Sort())

	_, err := s.Get(1)
	require.NoError(t, err)

	// A Set drops back to the building state; lookups need a new Sort.
	require.NoError(t, s.Set(2, MustLocation(2, 2)))
	_, err = s.Get(1)
	assert.ErrorIs(t, err, ErrUnsorted)

	require.NoError(t, s.Sort())
	_, err = s.Get(2)
	require.NoError(t, err)
}

func TestSparseEmpty(t *testing.T) {
	s := NewSparse(0)
	defer s.Close()

	require.NoError(t, s.Sort())
	_, err := s.Get(1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestSparseAllOrder(t *testing.T) {
	s := NewSparse(0)
	defer s.Close()

	require.NoError(t, s.Set(5, MustLocation(5, 5)))
	require.NoError(t, s.Set(2, MustLocation(2, 2)))

	var ids []uint64
	for id := range s.All() {
		ids = append(ids, id)
	}
	assert.Equal(t, []uint64{5, 2}, ids, "insertion order while building")

	require.NoError(t, s.Sort())
	ids = ids[:0]
	for id := range s.All() {
		ids = append(ids, id)
	}
	assert.Equal(t, []uint64{2, 5}, ids, "id order once sorted")
}

func TestSparseClosed(t *testing.T) {
	s := NewSparse(0)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Set(1, MustLocation(1, 1)), ErrClosed)
	assert.ErrorIs(t, s.Sort(), ErrClosed)
	_, err := s.Get(1)
	assert.ErrorIs(t, err, ErrClosed)
}
