// Package fastcmp provides the byte comparators used by dictionary search.
//
// Safe is bytes.Compare. Words compares eight bytes at a time with unaligned
// loads and is only selected on little-endian amd64/arm64, where such loads
// are cheap. Both return the same sign for every input.
package fastcmp

import (
	"bytes"
	"encoding/binary"
	"math/bits"
	"runtime"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// Func compares a and b lexicographically, returning -1, 0 or +1.
type Func func(a, b []byte) int

// Safe is the bounds-checked default.
func Safe(a, b []byte) int { return bytes.Compare(a, b) }

// Supported reports whether Words may be used on this machine.
func Supported() bool {
	if cpu.IsBigEndian {
		return false
	}
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return true
	}
	return false
}

// Select returns Words when fast is requested and supported, Safe otherwise.
func Select(fast bool) Func {
	if fast && Supported() {
		return Words
	}
	return Safe
}

// Words compares eight bytes per step.
func Words(a, b []byte) int {
	n := min(len(a), len(b))
	i := 0
	if n >= 8 {
		pa := unsafe.Pointer(unsafe.SliceData(a))
		pb := unsafe.Pointer(unsafe.SliceData(b))
		for ; i+8 <= n; i += 8 {
			wa := *(*uint64)(unsafe.Add(pa, i))
			wb := *(*uint64)(unsafe.Add(pb, i))
			if wa != wb {
				// Byte-swap so the first differing byte is most significant.
				if bits.ReverseBytes64(wa) < bits.ReverseBytes64(wb) {
					return -1
				}
				return 1
			}
		}
	}
	if i < n {
		var ta, tb [8]byte
		copy(ta[:], a[i:n])
		copy(tb[:], b[i:n])
		wa, wb := binary.BigEndian.Uint64(ta[:]), binary.BigEndian.Uint64(tb[:])
		if wa != wb {
			if wa < wb {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}
