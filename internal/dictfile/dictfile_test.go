package dictfile

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/termdict/internal/fs"
	"github.com/hupe1980/termdict/internal/hash"
	"github.com/hupe1980/termdict/internal/mmap"
	"github.com/hupe1980/termdict/split"
)

func writeEntries(t *testing.T, path string, flags Flags, entries ...string) Summary {
	t.Helper()
	w, err := Create(path, Options{Flags: flags})
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, w.Add([]byte(e)))
	}
	sum, err := w.Finish()
	require.NoError(t, err)
	return sum
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Count: 12345, Flags: (FlagShared | FlagSharedOverflow | FlagLocality).WithMode(split.Prolong)}
	var b [HeaderSize]byte
	h.Put(b[:])

	got, err := DecodeHeader(b[:])
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Equal(t, split.Prolong, got.Flags.Mode())
	assert.Equal(t, 4, got.OffsetWidth())
	assert.Equal(t, "shared|mode=prolong|overflow|locality", got.Flags.String())
	assert.Equal(t, "sorted", Flags(0).String())
}

func TestHeaderRejectsBadFlags(t *testing.T) {
	var b [HeaderSize]byte

	binary.LittleEndian.PutUint64(b[:], 1<<63)
	_, err := DecodeHeader(b[:])
	assert.ErrorIs(t, err, ErrFormat)

	Header{Flags: Flags(0).WithMode(split.Mode(3))}.Put(b[:])
	_, err = DecodeHeader(b[:])
	assert.ErrorIs(t, err, ErrFormat)

	Header{Flags: FlagEmbeddedIDs}.Put(b[:])
	_, err = DecodeHeader(b[:])
	assert.ErrorIs(t, err, ErrFormat)

	_, err = DecodeHeader(b[:7])
	assert.ErrorIs(t, err, ErrFormat)
}

func TestWriteAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terms.dict")
	sum := writeEntries(t, path, 0, "", "a", "bc", "def")

	assert.Equal(t, uint64(4), sum.Header.Count)
	assert.Equal(t, int64(HeaderSize+5*4+6), sum.Size)

	s, err := OpenFile(path, mmap.Random)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 6, s.DataSize())
	assert.Equal(t, sum.CRC, hash.CRC32C(s.Raw()))
	assert.Empty(t, s.Entry(1))
	assert.NotNil(t, s.Entry(1))
	assert.Equal(t, "a", string(s.Entry(2)))
	assert.Equal(t, "def", string(s.Entry(4)))
	assert.Nil(t, s.Entry(0))
	assert.Nil(t, s.Entry(5))

	// No scratch files survive.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWideOffsets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wide.dict")
	w, err := Create(path, Options{Flags: FlagWideOffsets})
	require.NoError(t, err)
	require.NoError(t, w.AddParts([]byte("---1."), []byte("local")))
	sum, err := w.Finish()
	require.NoError(t, err)
	assert.Equal(t, 8, sum.Header.OffsetWidth())

	s, err := OpenFile(path, mmap.Normal)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "---1.local", string(s.Entry(1)))
}

func TestEmbeddedTags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embedded.dict")
	flags := FlagShared | FlagLocality | FlagEmbeddedIDs
	w, err := Create(path, Options{Flags: flags})
	require.NoError(t, err)
	require.NoError(t, w.AddTagged([]byte("apple>"), MakeTag(7, split.SidePrefix)))
	require.NoError(t, w.AddTagged([]byte("@en"), MakeTag(split.MaxID, split.SideSuffix)))
	sum, err := w.Finish()
	require.NoError(t, err)
	assert.True(t, sum.Header.Flags.Has(FlagWideOffsets))

	s, err := OpenFile(path, mmap.Normal)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "apple>", string(s.Entry(1)))
	assert.Equal(t, uint32(7), s.Tag(1).ID())
	assert.Equal(t, split.SidePrefix, s.Tag(1).Side())
	assert.Equal(t, "@en", string(s.Entry(2)))
	assert.Equal(t, uint32(split.MaxID), s.Tag(2).ID())
	assert.Equal(t, split.SideSuffix, s.Tag(2).Side())
}

func TestAddTaggedRequiresFlag(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "x.dict"), Options{})
	require.NoError(t, err)
	defer w.Abort()
	assert.Error(t, w.AddTagged([]byte("x"), MakeTag(1, split.SidePrefix)))
}

func TestParseRejectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terms.dict")
	writeEntries(t, path, 0, "a", "b")
	good, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = Parse(good, nil)
	require.NoError(t, err)

	tests := map[string][]byte{
		"short":     good[:5],
		"truncated": good[:len(good)-1],
		"no table":  good[:HeaderSize+4],
	}
	badFirst := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(badFirst[HeaderSize:], 1)
	tests["first offset"] = badFirst

	huge := append([]byte(nil), good...)
	Header{Count: MaxCount}.Put(huge)
	tests["huge count"] = huge

	for name, buf := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(buf, nil)
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestAbortLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	w, err := Create(filepath.Join(dir, "x.dict"), Options{})
	require.NoError(t, err)
	require.NoError(t, w.Add([]byte("x")))
	require.NoError(t, w.Abort())
	assert.ErrorIs(t, w.Add([]byte("y")), ErrFinished)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFinishFailureLeavesNoDestination(t *testing.T) {
	dir := t.TempDir()
	ffs := fs.NewFaultyFS(nil)
	ffs.FailRename("x.dict", nil)

	w, err := Create(filepath.Join(dir, "x.dict"), Options{FS: ffs})
	require.NoError(t, err)
	require.NoError(t, w.Add([]byte("x")))
	_, err = w.Finish()
	assert.ErrorIs(t, err, fs.ErrInjected)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPatchFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.dict")
	writeEntries(t, path, 0, "a")

	h, err := PatchFlags(nil, path, FlagShared.WithMode(split.Penultimate)|FlagSharedOverflow)
	require.NoError(t, err)
	assert.True(t, h.Flags.Has(FlagShared|FlagSharedOverflow))

	s, err := OpenFile(path, mmap.Normal)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, split.Penultimate, s.Header().Flags.Mode())
	assert.Equal(t, "a", string(s.Entry(1)))
}
