package sorter

import (
	"bytes"
	"slices"

	"github.com/hupe1980/termdict/internal/fastcmp"
	"github.com/hupe1980/termdict/internal/hash"
	"github.com/hupe1980/termdict/internal/mmap"
)

// recentWindow is how many of the last appended strings are checked for
// immediate repeats.
const recentWindow = 8

// block is a fixed-capacity arena of concatenated strings.
type block struct {
	arena    *mmap.Region // nil when heap allocated
	data     []byte
	ends     []uint32
	reserved int64

	recent    [recentWindow]uint64
	recentIdx [recentWindow]int32
	recentPos int
}

func newBlock(size int, anonymous bool) *block {
	b := &block{}
	if anonymous {
		if m, err := mmap.Anonymous(size); err == nil {
			b.arena = m
			b.data = m.Bytes()[:0]
		}
	}
	if b.data == nil {
		b.data = make([]byte, 0, size)
	}
	b.resetRecent()
	return b
}

func (b *block) len() int { return len(b.ends) }

func (b *block) entry(i int) []byte {
	start := uint32(0)
	if i > 0 {
		start = b.ends[i-1]
	}
	return b.data[start:b.ends[i]]
}

// seenRecently reports whether prefix+suffix equals one of the last few
// appended strings.
func (b *block) seenRecently(fp uint64, prefix, suffix []byte) bool {
	for i, h := range b.recent {
		if h != fp || b.recentIdx[i] < 0 {
			continue
		}
		e := b.entry(int(b.recentIdx[i]))
		if len(e) == len(prefix)+len(suffix) && bytes.Equal(e[:len(prefix)], prefix) && bytes.Equal(e[len(prefix):], suffix) {
			return true
		}
	}
	return false
}

func (b *block) append(fp uint64, prefix, suffix []byte) {
	b.data = append(b.data, prefix...)
	b.data = append(b.data, suffix...)
	b.ends = append(b.ends, uint32(len(b.data)))

	b.recent[b.recentPos] = fp
	b.recentIdx[b.recentPos] = int32(len(b.ends) - 1)
	b.recentPos = (b.recentPos + 1) % recentWindow
}

func fingerprint(prefix, suffix []byte) uint64 {
	return hash.Fingerprint(prefix, suffix)
}

// sorted returns the entry order, ascending, with duplicates removed.
func (b *block) sorted(cmp fastcmp.Func) []int32 {
	order := make([]int32, b.len())
	for i := range order {
		order[i] = int32(i)
	}
	slices.SortFunc(order, func(x, y int32) int {
		return cmp(b.entry(int(x)), b.entry(int(y)))
	})
	return slices.CompactFunc(order, func(x, y int32) bool {
		return bytes.Equal(b.entry(int(x)), b.entry(int(y)))
	})
}

func (b *block) reset() {
	if b.arena != nil {
		b.data = b.arena.Bytes()[:0]
	} else {
		b.data = b.data[:0]
	}
	b.ends = b.ends[:0]
	b.resetRecent()
}

func (b *block) resetRecent() {
	for i := range b.recentIdx {
		b.recentIdx[i] = -1
	}
	b.recentPos = 0
}

func (b *block) free() {
	if b.arena != nil {
		_ = b.arena.Close()
		b.arena = nil
	}
	b.data, b.ends = nil, nil
}
