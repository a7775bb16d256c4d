package merge

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/termdict/internal/dictfile"
	"github.com/hupe1980/termdict/internal/mmap"
)

type sliceSource struct {
	items [][]byte
}

func (s *sliceSource) Next() ([]byte, bool) {
	if len(s.items) == 0 {
		return nil, false
	}
	v := s.items[0]
	s.items = s.items[1:]
	return v, true
}

func readAll(t *testing.T, path string) []string {
	t.Helper()
	s, err := dictfile.OpenFile(path, mmap.Sequential)
	require.NoError(t, err)
	defer s.Close()
	out := make([]string, 0, s.Len())
	for i := 1; i <= s.Len(); i++ {
		out = append(out, string(s.Entry(i)))
	}
	return out
}

func TestTreeOrdersAllSources(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 9))
	for _, k := range []int{1, 2, 3, 7, 16} {
		var sources []Source
		var all [][]byte
		for i := 0; i < k; i++ {
			n := rng.IntN(50)
			items := make([][]byte, n)
			for j := range items {
				items[j] = []byte(fmt.Sprintf("%04d", rng.IntN(500)))
			}
			slices.SortFunc(items, bytes.Compare)
			all = append(all, items...)
			sources = append(sources, &sliceSource{items: items})
		}
		slices.SortFunc(all, bytes.Compare)

		tr := newTree(sources, bytes.Compare)
		var got [][]byte
		for !tr.empty() {
			got = append(got, tr.min())
			tr.advance()
		}
		if len(all) == 0 {
			assert.Empty(t, got)
			continue
		}
		assert.Equal(t, all, got, "k=%d", k)
	}
}

func TestTreeNoSources(t *testing.T) {
	tr := newTree(nil, bytes.Compare)
	assert.True(t, tr.empty())
}

func TestSourcesDeduplicatesAcrossInputs(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "merged.dict")
	srcs := []Source{
		&sliceSource{items: [][]byte{[]byte(""), []byte("a"), []byte("c")}},
		&sliceSource{items: [][]byte{[]byte("a"), []byte("b"), []byte("c")}},
		&sliceSource{items: [][]byte{[]byte("c"), []byte("d")}},
	}

	var logs bytes.Buffer
	stats, err := Sources(t.Context(), dest, srcs, Config{
		Flags:         dictfile.FlagShared,
		ProgressEvery: 2,
		Logger:        slog.New(slog.NewTextHandler(&logs, nil)),
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(8), stats.Read)
	assert.Equal(t, uint64(5), stats.Written)
	assert.Equal(t, uint64(3), stats.Duplicates)
	assert.True(t, stats.Summary.Header.Flags.Has(dictfile.FlagShared))
	assert.Equal(t, []string{"", "a", "b", "c", "d"}, readAll(t, dest))
	assert.Contains(t, logs.String(), "merge progress")
}

func TestSourcesRejectsUnsortedInput(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "merged.dict")
	srcs := []Source{&sliceSource{items: [][]byte{[]byte("b"), []byte("a")}}}

	_, err := Sources(t.Context(), dest, srcs, Config{})
	require.Error(t, err)
	assert.NoFileExists(t, dest)
}

func TestSourcesHonoursCancel(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "merged.dict")
	items := make([][]byte, 100)
	for i := range items {
		items[i] = []byte(fmt.Sprintf("%03d", i))
	}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := Sources(ctx, dest, []Source{&sliceSource{items: items}}, Config{ProgressEvery: 10})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, dest)
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i, block := range [][]string{{"apple", "kiwi"}, {"banana", "kiwi", "zucchini"}} {
		p := filepath.Join(dir, fmt.Sprintf("block-%d.dict", i))
		w, err := dictfile.Create(p, dictfile.Options{})
		require.NoError(t, err)
		for _, s := range block {
			require.NoError(t, w.Add([]byte(s)))
		}
		_, err = w.Finish()
		require.NoError(t, err)
		paths = append(paths, p)
	}

	dest := filepath.Join(dir, "out.dict")
	stats, err := Files(t.Context(), dest, paths, Config{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Inputs)
	assert.Equal(t, []string{"apple", "banana", "kiwi", "zucchini"}, readAll(t, dest))
}
