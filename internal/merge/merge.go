// Package merge combines sorted dictionary files into one with a k-way
// loser-tree merge, dropping strings that repeat across inputs.
package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hupe1980/termdict/internal/dictfile"
	"github.com/hupe1980/termdict/internal/fastcmp"
	"github.com/hupe1980/termdict/internal/fs"
	"github.com/hupe1980/termdict/internal/mmap"
)

const defaultProgressEvery = 1 << 20

// Config configures a merge.
type Config struct {
	FS fs.FileSystem
	// Flags for the output header.
	Flags dictfile.Flags
	// Compare defaults to fastcmp.Safe.
	Compare fastcmp.Func
	Logger  *slog.Logger
	// ProgressEvery logs progress after this many input strings.
	ProgressEvery uint64
	// Wrap wraps the output stream (IO throttling).
	Wrap func(io.Writer) io.Writer
}

// Stats summarizes a merge.
type Stats struct {
	Inputs     int
	Read       uint64
	Written    uint64
	Duplicates uint64
	Summary    dictfile.Summary
	Duration   time.Duration
}

// StoreSource iterates a Store's entries in id order.
type StoreSource struct {
	Store *dictfile.Store
	next  int
}

// Next implements Source.
func (s *StoreSource) Next() ([]byte, bool) {
	if s.next >= s.Store.Len() {
		return nil, false
	}
	s.next++
	return s.Store.Entry(s.next), true
}

// Files merges the sorted dictionary files at paths into dest.
func Files(ctx context.Context, dest string, paths []string, cfg Config) (Stats, error) {
	sources := make([]Source, 0, len(paths))
	var stores []*dictfile.Store
	defer func() {
		for _, s := range stores {
			_ = s.Close()
		}
	}()
	for _, p := range paths {
		s, err := dictfile.OpenFile(p, mmap.Sequential)
		if err != nil {
			return Stats{}, fmt.Errorf("open merge input %s: %w", p, err)
		}
		stores = append(stores, s)
		sources = append(sources, &StoreSource{Store: s})
	}
	return Sources(ctx, dest, sources, cfg)
}

// Sources merges already-open sources into dest.
func Sources(ctx context.Context, dest string, sources []Source, cfg Config) (Stats, error) {
	start := time.Now()
	if cfg.Compare == nil {
		cfg.Compare = fastcmp.Safe
	}
	if cfg.ProgressEvery == 0 {
		cfg.ProgressEvery = defaultProgressEvery
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	w, err := dictfile.Create(dest, dictfile.Options{FS: cfg.FS, Flags: cfg.Flags, Wrap: cfg.Wrap})
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Inputs: len(sources)}
	t := newTree(sources, cfg.Compare)
	var last []byte
	for !t.empty() {
		v := t.min()
		if stats.Written > 0 && bytes.Equal(v, last) {
			stats.Duplicates++
		} else {
			if stats.Written > 0 && cfg.Compare(last, v) > 0 {
				_ = w.Abort()
				return Stats{}, errors.New("merge: input out of order")
			}
			if err := w.Add(v); err != nil {
				_ = w.Abort()
				return Stats{}, err
			}
			last = v
			stats.Written++
		}
		stats.Read++
		t.advance()

		if stats.Read%cfg.ProgressEvery == 0 {
			if err := ctx.Err(); err != nil {
				_ = w.Abort()
				return Stats{}, err
			}
			logger.InfoContext(ctx, "merge progress",
				"read", humanize.Comma(int64(stats.Read)),
				"written", humanize.Comma(int64(stats.Written)),
				"bytes", humanize.IBytes(w.Size()),
			)
		}
	}
	if err := ctx.Err(); err != nil {
		_ = w.Abort()
		return Stats{}, err
	}

	sum, err := w.Finish()
	if err != nil {
		return Stats{}, err
	}
	stats.Summary = sum
	stats.Duration = time.Since(start)
	logger.InfoContext(ctx, "merge completed",
		"inputs", stats.Inputs,
		"entries", humanize.Comma(int64(stats.Written)),
		"duplicates", humanize.Comma(int64(stats.Duplicates)),
		"size", humanize.IBytes(uint64(sum.Size)),
		"duration", stats.Duration,
	)
	return stats, nil
}
