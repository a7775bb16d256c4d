package split

import "errors"

// KeyLen is the size of an encoded shared reference.
const KeyLen = 5

// MaxID is the largest shared id a key can carry.
const MaxID = 1<<24 - 1

// VerbatimID is the shared id of composite entries that hold the whole
// term as local bytes. It names no shared string and sorts before every
// real shared id, so the empty string always takes the first slot.
const VerbatimID = 0

// Side markers. The suffix marker sorts before the prefix marker.
const (
	markPrefix = '.'
	markSuffix = '!'
)

// alphabet is ASCII-ascending so encoded keys compare like their ids.
const alphabet = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

var decodeTable = func() (t [256]int8) {
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		t[alphabet[i]] = int8(i)
	}
	return t
}()

// ErrKey is returned when a key is malformed.
var ErrKey = errors.New("split: malformed shared key")

// Encode packs a 24-bit shared id and side into a key. SideNone encodes like
// SidePrefix. Encode panics if id exceeds MaxID.
func Encode(id uint32, side Side) [KeyLen]byte {
	if id > MaxID {
		panic("split: shared id out of range")
	}
	var k [KeyLen]byte
	for i := 3; i >= 0; i-- {
		k[i] = alphabet[id&63]
		id >>= 6
	}
	k[4] = marker(side)
	return k
}

// AppendKey appends the key for (id, side) followed by local to dst.
func AppendKey(dst []byte, id uint32, side Side, local []byte) []byte {
	k := Encode(id, side)
	dst = append(dst, k[:]...)
	return append(dst, local...)
}

// Decode parses the key at the start of b.
func Decode(b []byte) (id uint32, side Side, err error) {
	if len(b) < KeyLen {
		return 0, 0, ErrKey
	}
	for i := 0; i < 4; i++ {
		v := decodeTable[b[i]]
		if v < 0 {
			return 0, 0, ErrKey
		}
		id = id<<6 | uint32(v)
	}
	switch b[4] {
	case markPrefix:
		side = SidePrefix
	case markSuffix:
		side = SideSuffix
	default:
		return 0, 0, ErrKey
	}
	return id, side, nil
}

func marker(side Side) byte {
	if side == SideSuffix {
		return markSuffix
	}
	return markPrefix
}

// SideRank orders sides the way their markers sort.
func SideRank(side Side) int {
	if side == SideSuffix {
		return 0
	}
	return 1
}
