package mmap

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWriteReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")

	f, err := Create(path, 64)
	require.NoError(t, err)
	require.Equal(t, 64, f.Size())

	copy(f.Bytes(), "hello")
	require.NoError(t, f.Flush())
	require.NoError(t, f.Close())

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, 64, m.Size())
	assert.Equal(t, []byte("hello"), m.Bytes()[:5])
}

func TestCreateKeepsLargerExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 128), 0o600))

	f, err := Create(path, 64)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, 128, f.Size())
}

func TestGrow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")

	f, err := Create(path, 16)
	require.NoError(t, err)
	defer f.Close()

	copy(f.Bytes(), "abcd")
	require.NoError(t, f.Grow(1024))
	assert.Equal(t, 1024, f.Size())
	assert.Equal(t, []byte("abcd"), f.Bytes()[:4], "contents survive the remap")

	// Growth is monotonic; a smaller size is a no-op.
	require.NoError(t, f.Grow(8))
	assert.Equal(t, 1024, f.Size())
}

func TestGrowFailureClosesMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")

	f, err := Create(path, 16)
	require.NoError(t, err)
	defer f.Close()

	copy(f.Bytes(), "abcd")

	// A size no filesystem or address space can satisfy fails either at
	// the extend or at the remap; both paths must leave the mapping in a
	// state that surfaces the failure on every later access.
	require.Error(t, f.Grow(math.MaxInt>>1))

	assert.Nil(t, f.Bytes())
	assert.ErrorIs(t, f.Flush(), ErrClosed)
	assert.ErrorIs(t, f.Grow(64), ErrClosed)
}

func TestCloseTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")

	f, err := Create(path, 4096)
	require.NoError(t, err)
	copy(f.Bytes(), "xyz")
	require.NoError(t, f.CloseTruncate(3))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("xyz"), data)
}

func TestCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	f, err := Create(path, 16)
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.Nil(t, f.Bytes())
	assert.ErrorIs(t, f.Grow(64), ErrClosed)
	assert.ErrorIs(t, f.Flush(), ErrClosed)
}

func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("readonly"), 0o600))

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	assert.ErrorIs(t, m.Grow(64), ErrReadOnly)
	assert.ErrorIs(t, m.Flush(), ErrReadOnly)

	buf := make([]byte, 4)
	n, err := m.ReadAt(buf, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("only"), buf)
}

func TestCreateRejectsInvalidSize(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "data.bin"), 0)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestAdvise(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	f, err := Create(path, 4096)
	require.NoError(t, err)
	defer f.Close()

	// Advisory only; must not fail on any supported platform.
	require.NoError(t, f.Advise(AccessRandom))
	require.NoError(t, f.Advise(AccessSequential))
}
