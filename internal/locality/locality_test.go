package locality

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/termdict/internal/dictfile"
	"github.com/hupe1980/termdict/internal/mmap"
	"github.com/hupe1980/termdict/split"
)

func TestAssignIsInOrder(t *testing.T) {
	for n := uint64(0); n <= 64; n++ {
		perm := make([]uint64, n+1)
		var next uint64
		Assign(1, n, &next, perm)
		require.Equal(t, n, next)

		// In-order walk of the implicit tree must visit 1..n.
		var walk func(k uint64, out *[]uint64)
		walk = func(k uint64, out *[]uint64) {
			if k > n {
				return
			}
			walk(2*k, out)
			*out = append(*out, perm[k])
			walk(2*k+1, out)
		}
		var got []uint64
		walk(1, &got)
		for i, v := range got {
			require.Equal(t, uint64(i+1), v, "n=%d", n)
		}
		if n > 0 {
			assert.Equal(t, uint64(1), perm[Leftmost(n)], "n=%d", n)
		}
	}
	assert.Equal(t, uint64(0), Leftmost(0))
}

func TestAssignSmallTree(t *testing.T) {
	perm := make([]uint64, 8)
	var next uint64
	Assign(1, 7, &next, perm)
	assert.Equal(t, []uint64{0, 4, 2, 6, 1, 3, 5, 7}, perm)
}

func build(t *testing.T, path string, flags dictfile.Flags, entries [][]byte) {
	t.Helper()
	w, err := dictfile.Create(path, dictfile.Options{Flags: flags})
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, w.Add(e))
	}
	_, err = w.Finish()
	require.NoError(t, err)
}

func descend(s *dictfile.Store, key []byte) int {
	k := 1
	for k <= s.Len() {
		c := bytes.Compare(key, s.Entry(k))
		if c == 0 {
			return k
		}
		k *= 2
		if c > 0 {
			k++
		}
	}
	return 0
}

func TestConvertStandalone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terms.dict")
	var entries [][]byte
	entries = append(entries, []byte{})
	for i := 0; i < 100; i++ {
		entries = append(entries, []byte(fmt.Sprintf("term-%03d", i)))
	}
	build(t, path, 0, entries)

	st, err := Convert(t.Context(), path, Config{})
	require.NoError(t, err)
	assert.False(t, st.Embedded)
	assert.Equal(t, 101, st.Entries)

	s, err := dictfile.OpenFile(path, mmap.Random)
	require.NoError(t, err)
	defer s.Close()
	assert.True(t, s.Header().Flags.Has(dictfile.FlagLocality))
	assert.False(t, s.Header().Flags.Has(dictfile.FlagEmbeddedIDs))

	for _, e := range entries {
		k := descend(s, e)
		require.NotZero(t, k, "%q", e)
		assert.Equal(t, e, s.Entry(k))
	}
	assert.Empty(t, s.Entry(int(Leftmost(101))))

	_, err = Convert(t.Context(), path, Config{})
	assert.Error(t, err)
}

func TestConvertEmbedsSharedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "composite.dict")
	var entries [][]byte
	for id := uint32(1); id <= 5; id++ {
		for _, side := range []split.Side{split.SideSuffix, split.SidePrefix} {
			for _, local := range []string{"", "a", "b>"} {
				entries = append(entries, split.AppendKey(nil, id, side, []byte(local)))
			}
		}
	}
	build(t, path, dictfile.FlagShared.WithMode(split.Penultimate), entries)

	st, err := Convert(t.Context(), path, Config{})
	require.NoError(t, err)
	assert.True(t, st.Embedded)

	s, err := dictfile.OpenFile(path, mmap.Random)
	require.NoError(t, err)
	defer s.Close()

	h := s.Header()
	assert.True(t, h.Flags.Has(dictfile.FlagLocality|dictfile.FlagEmbeddedIDs|dictfile.FlagWideOffsets|dictfile.FlagShared))
	assert.Equal(t, split.Penultimate, h.Flags.Mode())

	seen := map[string]bool{}
	for k := 1; k <= s.Len(); k++ {
		tag := s.Tag(k)
		seen[string(split.AppendKey(nil, tag.ID(), tag.Side(), s.Entry(k)))] = true
	}
	for _, e := range entries {
		assert.True(t, seen[string(e)], "%q", e)
	}
	assert.Len(t, seen, len(entries))
}
