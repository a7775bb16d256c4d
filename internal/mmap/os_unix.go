//go:build unix

package mmap

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func osMap(f *os.File, size int) ([]byte, func([]byte) error, error) {
	b, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return b, unix.Munmap, nil
}

func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}
	return b, unix.Munmap, nil
}

func madvice(a Advice) int {
	switch a {
	case Sequential:
		return unix.MADV_SEQUENTIAL
	case Random:
		return unix.MADV_RANDOM
	case WillNeed:
		return unix.MADV_WILLNEED
	default:
		return unix.MADV_NORMAL
	}
}

func osAdvise(b []byte, a Advice) error {
	// EINVAL is expected for unaligned subslices.
	if err := unix.Madvise(b, madvice(a)); err != nil && !errors.Is(err, unix.EINVAL) {
		return err
	}
	return nil
}
