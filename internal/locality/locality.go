// Package locality rewrites a sorted dictionary into the implicit-tree
// layout: slot k holds the k-th node of a complete binary search tree in
// level order, with children at 2k and 2k+1.
package locality

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
	"unsafe"

	"github.com/dustin/go-humanize"

	"github.com/hupe1980/termdict/internal/dictfile"
	"github.com/hupe1980/termdict/internal/fs"
	"github.com/hupe1980/termdict/internal/mmap"
	"github.com/hupe1980/termdict/split"
)

const checkEvery = 1 << 16

// Config configures a conversion.
type Config struct {
	FS     fs.FileSystem
	Logger *slog.Logger
	// Wrap wraps the output stream (IO throttling).
	Wrap func(io.Writer) io.Writer
	// DisableEmbedding keeps shared keys in the byte area.
	DisableEmbedding bool
}

// Stats summarizes a conversion.
type Stats struct {
	Entries  int
	Embedded bool
	Header   dictfile.Header
	Duration time.Duration
}

// Convert rewrites the sorted dictionary at path in place.
func Convert(ctx context.Context, path string, cfg Config) (Stats, error) {
	start := time.Now()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	src, err := dictfile.OpenFile(path, mmap.Random)
	if err != nil {
		return Stats{}, err
	}
	srcOpen := true
	defer func() {
		if srcOpen {
			_ = src.Close()
		}
	}()

	h := src.Header()
	if h.Flags.Has(dictfile.FlagLocality) {
		return Stats{}, fmt.Errorf("locality: %s is already converted", path)
	}
	n := src.Len()

	flags := h.Flags&^dictfile.FlagWideOffsets | dictfile.FlagLocality
	embed := false
	if h.Flags.Has(dictfile.FlagShared) && !cfg.DisableEmbedding {
		// Dropping the keys shrinks the byte area by KeyLen per entry.
		keys := uint64(n) * split.KeyLen
		if size := uint64(src.DataSize()); size >= keys && size-keys < dictfile.MaxEmbeddedSize {
			embed = true
			flags |= dictfile.FlagEmbeddedIDs | dictfile.FlagWideOffsets
		}
	}

	perm, release, err := permutation(n)
	if err != nil {
		return Stats{}, err
	}
	defer release()

	w, err := dictfile.Create(path, dictfile.Options{FS: cfg.FS, Flags: flags, Wrap: cfg.Wrap})
	if err != nil {
		return Stats{}, err
	}
	for k := 1; k <= n; k++ {
		if k%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				_ = w.Abort()
				return Stats{}, err
			}
		}
		entry := src.Entry(int(perm[k]))
		if !embed {
			err = w.Add(entry)
		} else {
			var id uint32
			var side split.Side
			id, side, err = split.Decode(entry)
			if err == nil {
				err = w.AddTagged(entry[split.KeyLen:], dictfile.MakeTag(id, side))
			}
		}
		if err != nil {
			_ = w.Abort()
			return Stats{}, fmt.Errorf("locality: slot %d: %w", k, err)
		}
	}
	if err := ctx.Err(); err != nil {
		_ = w.Abort()
		return Stats{}, err
	}

	// Release the source mapping before the rename replaces it.
	srcOpen = false
	if err := src.Close(); err != nil {
		_ = w.Abort()
		return Stats{}, err
	}
	sum, err := w.Finish()
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Entries: n, Embedded: embed, Header: sum.Header, Duration: time.Since(start)}
	logger.InfoContext(ctx, "locality conversion completed",
		"path", path,
		"entries", humanize.Comma(int64(n)),
		"embedded", embed,
		"size", humanize.IBytes(uint64(sum.Size)),
		"duration", st.Duration,
	)
	return st, nil
}

// permutation returns perm with perm[k] = source id for slot k, 1 <= k <= n.
// Large tables live in an anonymous mapping.
func permutation(n int) ([]uint64, func(), error) {
	var perm []uint64
	release := func() {}
	if size := (n + 1) * 8; size >= 1<<20 {
		m, err := mmap.Anonymous(size)
		if err != nil {
			return nil, nil, fmt.Errorf("locality: map permutation: %w", err)
		}
		perm = unsafe.Slice((*uint64)(unsafe.Pointer(unsafe.SliceData(m.Bytes()))), n+1)
		release = func() { _ = m.Close() }
	} else {
		perm = make([]uint64, n+1)
	}
	var next uint64
	Assign(1, uint64(n), &next, perm)
	return perm, release, nil
}

// Assign fills perm for the subtree rooted at slot k of an n-node tree with
// source ids in in-order: left subtree, k itself, right subtree.
func Assign(k, n uint64, next *uint64, perm []uint64) {
	if k > n {
		return
	}
	Assign(2*k, n, next, perm)
	*next++
	perm[k] = *next
	Assign(2*k+1, n, next, perm)
}

// Leftmost returns the slot holding the smallest entry of an n-node tree,
// or 0 when n is 0.
func Leftmost(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	k := uint64(1)
	for 2*k <= n {
		k *= 2
	}
	return k
}
