package mmap

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync/atomic"
)

var (
	// ErrClosed is returned when using a closed Region.
	ErrClosed = errors.New("mmap: region is closed")
	// ErrSize is returned for sizes that cannot be mapped.
	ErrSize = errors.New("mmap: unmappable size")
)

// Advice is an access hint for the kernel.
type Advice uint8

const (
	Normal Advice = iota
	// Sequential suits merges and verification scans.
	Sequential
	// Random suits lookups.
	Random
	// WillNeed prefetches the whole region.
	WillNeed
)

func (a Advice) String() string {
	switch a {
	case Normal:
		return "normal"
	case Sequential:
		return "sequential"
	case Random:
		return "random"
	case WillNeed:
		return "willneed"
	default:
		return fmt.Sprintf("Advice(%d)", uint8(a))
	}
}

// Region is a mapped byte range. It is released exactly once.
type Region struct {
	b       []byte
	release func([]byte) error
	done    atomic.Bool
}

// Map maps the file at path read-only. Empty files yield an empty Region.
func Map(path string) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	switch n := fi.Size(); {
	case n == 0:
		return &Region{}, nil
	case n > math.MaxInt:
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrSize, path, n)
	default:
		b, release, err := osMap(f, int(n))
		if err != nil {
			return nil, fmt.Errorf("mmap %s: %w", path, err)
		}
		return &Region{b: b, release: release}, nil
	}
}

// Anonymous maps size bytes of zeroed, writable memory outside the Go heap.
func Anonymous(size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrSize, size)
	}
	b, release, err := osMapAnon(size)
	if err != nil {
		return nil, err
	}
	return &Region{b: b, release: release}, nil
}

// Bytes returns the mapped bytes, or nil once closed. The slice must not be
// used after Close.
func (r *Region) Bytes() []byte {
	if r.done.Load() {
		return nil
	}
	return r.b
}

// Len returns the mapped length.
func (r *Region) Len() int { return len(r.b) }

// Closed reports whether Close was called.
func (r *Region) Closed() bool { return r.done.Load() }

// Advise passes a to the kernel. Empty regions ignore it.
func (r *Region) Advise(a Advice) error {
	if r.done.Load() {
		return ErrClosed
	}
	if len(r.b) == 0 {
		return nil
	}
	return osAdvise(r.b, a)
}

// ReadAt copies from the region at off.
func (r *Region) ReadAt(p []byte, off int64) (int, error) {
	if r.done.Load() {
		return 0, ErrClosed
	}
	if off < 0 || off > int64(len(r.b)) {
		return 0, io.EOF
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close unmaps the region. Later calls are no-ops.
func (r *Region) Close() error {
	if r.done.Swap(true) || r.release == nil {
		return nil
	}
	return r.release(r.b)
}
