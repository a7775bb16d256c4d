// Package mmap maps dictionary files read-only and allocates anonymous
// build buffers.
//
// A file Region is shared by every lookup cursor of a dictionary; bytes
// returned by Region.Bytes must not be touched after Close. Anonymous
// regions back the sorter's fixed-capacity string blocks and the locality
// converter's output buffer so large build buffers stay off the Go heap.
//
// On Windows Advise is a no-op.
package mmap
