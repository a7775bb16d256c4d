package dictfile

import "github.com/hupe1980/termdict/split"

// Embedded offset words: low 39 bits address the byte area, bit 39 is the
// side, bits 40-63 the 24-bit shared id.
const (
	EmbeddedOffsetBits = 39

	// MaxEmbeddedSize is the exclusive byte-area limit for embedded ids.
	MaxEmbeddedSize = 1 << EmbeddedOffsetBits

	offsetMask = MaxEmbeddedSize - 1
)

// Tag is the shared reference carried by an embedded offset word.
type Tag uint32

// MakeTag packs a shared id and side.
func MakeTag(id uint32, side split.Side) Tag {
	t := Tag(id&split.MaxID) << 1
	if side == split.SideSuffix {
		t |= 1
	}
	return t
}

// ID returns the shared id.
func (t Tag) ID() uint32 { return uint32(t >> 1) }

// Side returns the side. Non-suffix tags report SidePrefix.
func (t Tag) Side() split.Side {
	if t&1 != 0 {
		return split.SideSuffix
	}
	return split.SidePrefix
}

func wordOf(off uint64, t Tag) uint64 { return off | uint64(t)<<EmbeddedOffsetBits }
