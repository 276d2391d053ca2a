package osmloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexSetGet(t *testing.T) {
	f := NewFlex()
	defer f.Close()

	require.NoError(t, f.Set(0, MustLocation(1, 1)))
	require.NoError(t, f.Set(4095, MustLocation(2, 2)))
	require.NoError(t, f.Set(4096, MustLocation(3, 3)))
	require.NoError(t, f.Sort()) // no-op

	for id, want := range map[uint64]Location{
		0:    MustLocation(1, 1),
		4095: MustLocation(2, 2),
		4096: MustLocation(3, 3),
	} {
		got, err := f.Get(id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 3, f.Len())
}

func TestFlexSparseIds(t *testing.T) {
	f := NewFlex()
	defer f.Close()

	// Ids scattered across a huge range touch only a handful of pages.
	ids := []uint64{3, 1 << 20, 1 << 32, 1<<40 + 17}
	for i, id := range ids {
		require.NoError(t, f.Set(id, MustLocation(float64(i+1), float64(i+1))))
	}
	for i, id := range ids {
		loc, err := f.Get(id)
		require.NoError(t, err)
		assert.Equal(t, MustLocation(float64(i+1), float64(i+1)), loc)
	}

	// Neighbors on the same page are still misses.
	_, err := f.Get(4)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.Get(1<<32 + 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFlexOriginCoordinateIsNotAMiss(t *testing.T) {
	f := NewFlex()
	defer f.Close()

	// (0, 0) packs to the zero value of a fresh page; membership must be
	// decided by the id bitmap, not the slot contents.
	require.NoError(t, f.Set(100, MustLocation(0, 0)))

	loc, err := f.Get(100)
	require.NoError(t, err)
	assert.Equal(t, MustLocation(0, 0), loc)

	// The untouched neighbor slot holds the same zero bytes and must miss.
	_, err = f.Get(101)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFlexAllOrder(t *testing.T) {
	f := NewFlex()
	defer f.Close()

	require.NoError(t, f.Set(1<<30, MustLocation(2, 2)))
	require.NoError(t, f.Set(5, MustLocation(1, 1)))

	var ids []uint64
	for id := range f.All() {
		ids = append(ids, id)
	}
	assert.Equal(t, []uint64{5, 1 << 30}, ids)
}

func TestFlexOverwrite(t *testing.T) {
	f := NewFlex()
	defer f.Close()

	require.NoError(t, f.Set(8, MustLocation(1, 1)))
	require.NoError(t, f.Set(8, MustLocation(2, 2)))

	loc, err := f.Get(8)
	require.NoError(t, err)
	assert.Equal(t, MustLocation(2, 2), loc)
	assert.Equal(t, 1, f.Len())

	// Writing the undefined location removes the id.
	require.NoError(t, f.Set(8, Undefined()))
	_, err = f.Get(8)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, f.Len())
}
