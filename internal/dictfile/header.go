package dictfile

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/hupe1980/termdict/split"
)

// HeaderSize is the encoded header length.
const HeaderSize = 8

const (
	countBits = 56
	countMask = 1<<countBits - 1

	// MaxCount is the largest entry count a header can hold.
	MaxCount = countMask
)

// Flags is the header's flag byte.
type Flags uint8

const (
	// FlagWideOffsets selects 8-byte offsets.
	FlagWideOffsets Flags = 1 << iota
	// FlagShared marks a composite dictionary.
	FlagShared
	// FlagSharedOverflow marks that some entries were stored verbatim.
	FlagSharedOverflow
	flagModeLow
	flagModeHigh
	// FlagLocality marks the implicit-tree layout.
	FlagLocality
	// FlagEmbeddedIDs marks shared references carried in offset words.
	FlagEmbeddedIDs
	flagReserved
)

const (
	modeShift = 3
	modeMask  = flagModeLow | flagModeHigh
)

// Mode returns the split mode recorded in f.
func (f Flags) Mode() split.Mode {
	return split.Mode((f & modeMask) >> modeShift)
}

// WithMode returns f with its split mode replaced.
func (f Flags) WithMode(m split.Mode) Flags {
	return f&^modeMask | Flags(m)<<modeShift&modeMask
}

// Has reports whether all bits of g are set.
func (f Flags) Has(g Flags) bool { return f&g == g }

func (f Flags) String() string {
	var parts []string
	if f.Has(FlagWideOffsets) {
		parts = append(parts, "wide")
	}
	if f.Has(FlagShared) {
		parts = append(parts, "shared", "mode="+f.Mode().String())
	}
	if f.Has(FlagSharedOverflow) {
		parts = append(parts, "overflow")
	}
	if f.Has(FlagLocality) {
		parts = append(parts, "locality")
	}
	if f.Has(FlagEmbeddedIDs) {
		parts = append(parts, "embedded")
	}
	if len(parts) == 0 {
		return "sorted"
	}
	return strings.Join(parts, "|")
}

// Header is the decoded first word of a dictionary file.
type Header struct {
	Count uint64
	Flags Flags
}

// OffsetWidth returns the size in bytes of one offset entry.
func (h Header) OffsetWidth() int {
	if h.Flags.Has(FlagWideOffsets) {
		return 8
	}
	return 4
}

// Encode packs h into its 64-bit form.
func (h Header) Encode() uint64 {
	return h.Count&countMask | uint64(h.Flags)<<countBits
}

// Put writes h into the first HeaderSize bytes of b.
func (h Header) Put(b []byte) {
	binary.LittleEndian.PutUint64(b, h.Encode())
}

// DecodeHeader parses the first HeaderSize bytes of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes, header needs %d", ErrFormat, len(b), HeaderSize)
	}
	w := binary.LittleEndian.Uint64(b)
	h := Header{Count: w & countMask, Flags: Flags(w >> countBits)}
	if err := h.validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

func (h Header) validate() error {
	f := h.Flags
	if f.Has(flagReserved) {
		return fmt.Errorf("%w: reserved flag bit set", ErrFormat)
	}
	if !f.Mode().Valid() {
		return fmt.Errorf("%w: unknown split mode %d", ErrFormat, uint8(f.Mode()))
	}
	if f.Has(FlagEmbeddedIDs) && !f.Has(FlagShared|FlagLocality|FlagWideOffsets) {
		return fmt.Errorf("%w: embedded ids require a wide composite locality layout", ErrFormat)
	}
	return nil
}
