package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "terms")
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestMap(t *testing.T) {
	content := []byte("<http://example.org/a>")
	r, err := Map(writeFile(t, content))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, len(content), r.Len())
	assert.Equal(t, content, r.Bytes())
	for _, a := range []Advice{Normal, Sequential, Random, WillNeed} {
		require.NoError(t, r.Advise(a), a.String())
	}

	buf := make([]byte, 7)
	n, err := r.ReadAt(buf, 1)
	require.NoError(t, err)
	assert.Equal(t, "http://", string(buf[:n]))

	n, err = r.ReadAt(make([]byte, 10), int64(len(content)-3))
	assert.Equal(t, 3, n)
	assert.Equal(t, io.EOF, err)

	_, err = r.ReadAt(buf, 100)
	assert.Equal(t, io.EOF, err)
}

func TestMap_Empty(t *testing.T) {
	r, err := Map(writeFile(t, nil))
	require.NoError(t, err)
	assert.Zero(t, r.Len())
	assert.Nil(t, r.Bytes())
	require.NoError(t, r.Advise(Random))
	require.NoError(t, r.Close())
}

func TestMap_Missing(t *testing.T) {
	_, err := Map(filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRegion_Close(t *testing.T) {
	r, err := Map(writeFile(t, []byte("data")))
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	assert.True(t, r.Closed())
	assert.Nil(t, r.Bytes())
	assert.ErrorIs(t, r.Advise(Random), ErrClosed)
	_, err = r.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAnonymous(t *testing.T) {
	r, err := Anonymous(4096)
	require.NoError(t, err)
	defer r.Close()

	b := r.Bytes()
	require.Len(t, b, 4096)
	assert.Zero(t, b[4095])
	copy(b, "block")
	assert.Equal(t, "block", string(r.Bytes()[:5]))

	_, err = Anonymous(0)
	assert.ErrorIs(t, err, ErrSize)
}
