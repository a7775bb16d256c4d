// Package hash provides the checksums and fingerprints used by the build
// pipeline.
//
// Spilled block files are protected with CRC32-Castagnoli (CRC32C), which
// Go accelerates in hardware on SSE4.2 and ARMv8 CRC capable CPUs:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	sum := h.Sum32()
//
// Fingerprint wraps xxhash for the block sorter's recent-duplicate window.
// Equal fingerprints are only a hint; callers still compare bytes.
package hash
