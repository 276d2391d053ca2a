package osmloc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDenseSetGet(t *testing.T) {
	d := NewDense(0)
	defer d.Close()

	require.NoError(t, d.Set(0, MustLocation(1, 1)))
	require.NoError(t, d.Set(42, MustLocation(2, 2)))
	require.NoError(t, d.Sort()) // no-op, interface symmetry

	loc, err := d.Get(0)
	require.NoError(t, err)
	assert.Equal(t, MustLocation(1, 1), loc)

	loc, err = d.Get(42)
	require.NoError(t, err)
	assert.Equal(t, MustLocation(2, 2), loc)

	assert.Equal(t, 2, d.Len())
}

func TestDenseGrowth(t *testing.T) {
	d := NewDense(0)
	defer d.Close()

	require.NoError(t, d.Set(0, MustLocation(1, 1)))
	require.NoError(t, d.Set(1000000, MustLocation(2, 2)))

	// Both written slots resolve.
	loc, err := d.Get(1000000)
	require.NoError(t, err)
	assert.Equal(t, MustLocation(2, 2), loc)

	// A slot inside the grown range that was never written must be a miss,
	// not the undefined fill-pattern mistaken for a real coordinate.
	_, err = d.Get(500000)
	assert.ErrorIs(t, err, ErrNotFound)

	// Beyond the grown range as well.
	_, err = d.Get(1 << 40)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDenseHugeIDRejected(t *testing.T) {
	d := NewDense(16)
	defer d.Close()

	require.NoError(t, d.Set(1, MustLocation(1, 1)))
	assert.ErrorIs(t, d.Set(math.MaxUint64, MustLocation(2, 2)), ErrCapacity)

	loc, err := d.Get(1)
	require.NoError(t, err)
	assert.Equal(t, MustLocation(1, 1), loc)
	assert.Equal(t, 1, d.Len())
}

func TestDenseOverwrite(t *testing.T) {
	d := NewDense(16)
	defer d.Close()

	require.NoError(t, d.Set(7, MustLocation(1, 1)))
	require.NoError(t, d.Set(7, MustLocation(3, 3)))

	loc, err := d.Get(7)
	require.NoError(t, err)
	assert.Equal(t, MustLocation(3, 3), loc)
	assert.Equal(t, 1, d.Len())
}

func TestDenseUnsetUndefined(t *testing.T) {
	d := NewDense(16)
	defer d.Close()

	require.NoError(t, d.Set(3, MustLocation(1, 1)))
	require.NoError(t, d.Set(3, Undefined()))

	_, err := d.Get(3)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, d.Len())
}

func TestDenseAll(t *testing.T) {
	d := NewDense(0)
	defer d.Close()

	require.NoError(t, d.Set(9, MustLocation(9, 9)))
	require.NoError(t, d.Set(2, MustLocation(2, 2)))
	require.NoError(t, d.Set(5, MustLocation(5, 5)))

	var ids []uint64
	for id, loc := range d.All() {
		ids = append(ids, id)
		assert.True(t, loc.Defined())
	}
	assert.Equal(t, []uint64{2, 5, 9}, ids, "All yields in id order")
}

func TestDenseClosed(t *testing.T) {
	d := NewDense(0)
	require.NoError(t, d.Set(1, MustLocation(1, 1)))
	require.NoError(t, d.Close())

	assert.ErrorIs(t, d.Set(1, MustLocation(1, 1)), ErrClosed)
	_, err := d.Get(1)
	assert.ErrorIs(t, err, ErrClosed)
	require.NoError(t, d.Close(), "Close is idempotent")
}
