package dictfile

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hupe1980/termdict/internal/conv"
	"github.com/hupe1980/termdict/internal/mmap"
)

// Store is a read-only view over an encoded dictionary.
type Store struct {
	raw     []byte
	header  Header
	count   int
	width   int
	offsets []byte
	data    []byte
	closer  io.Closer
}

// Parse validates buf and returns a Store over it. closer, if non-nil, is
// released by Close. The checks are O(1): header, table bounds, first and
// last offsets.
func Parse(buf []byte, closer io.Closer) (*Store, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return nil, err
	}
	width := h.OffsetWidth()
	body := uint64(len(buf) - HeaderSize)

	if size, ok := conv.Product(h.Count+1, uint64(width)); !ok || size > body {
		return nil, fmt.Errorf("%w: offset table for %d entries exceeds %d bytes", ErrFormat, h.Count, body)
	}
	count, err := conv.ToInt(h.Count)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	tableEnd := HeaderSize + (count+1)*width
	s := &Store{
		raw:     buf,
		header:  h,
		count:   count,
		width:   width,
		offsets: buf[HeaderSize:tableEnd],
		data:    buf[tableEnd:],
		closer:  closer,
	}

	if first := s.offset(0); first != 0 {
		return nil, fmt.Errorf("%w: first offset is %d", ErrFormat, first)
	}
	if last := s.offset(count); last != uint64(len(s.data)) {
		return nil, fmt.Errorf("%w: last offset %d, byte area is %d bytes", ErrFormat, last, len(s.data))
	}
	return s, nil
}

// OpenFile maps the dictionary at path.
func OpenFile(path string, advice mmap.Advice) (*Store, error) {
	m, err := mmap.Map(path)
	if err != nil {
		return nil, err
	}
	if advice != mmap.Normal {
		_ = m.Advise(advice)
	}
	s, err := Parse(m.Bytes(), m)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	return s, nil
}

// Header returns the decoded header.
func (s *Store) Header() Header { return s.header }

// Len returns the number of entries.
func (s *Store) Len() int { return s.count }

// DataSize returns the size of the byte area.
func (s *Store) DataSize() int { return len(s.data) }

// Word returns the raw offset word i, 0 <= i <= Len().
func (s *Store) Word(i int) uint64 {
	if s.width == 8 {
		return binary.LittleEndian.Uint64(s.offsets[i*8:])
	}
	return uint64(binary.LittleEndian.Uint32(s.offsets[i*4:]))
}

func (s *Store) offset(i int) uint64 {
	w := s.Word(i)
	if s.header.Flags.Has(FlagEmbeddedIDs) {
		w &= offsetMask
	}
	return w
}

// Entry returns the bytes of entry id, 1 <= id <= Len(). It returns nil for
// ids out of range or offsets that do not fit the byte area.
func (s *Store) Entry(id int) []byte {
	if id < 1 || id > s.count {
		return nil
	}
	start, end := s.offset(id-1), s.offset(id)
	if start > end || end > uint64(len(s.data)) {
		return nil
	}
	return s.data[start:end:end]
}

// Tag returns the shared reference embedded in entry id's offset word.
// It is meaningful only with FlagEmbeddedIDs.
func (s *Store) Tag(id int) Tag {
	return Tag(s.Word(id) >> EmbeddedOffsetBits)
}

// Raw returns the entire encoded dictionary, header included.
func (s *Store) Raw() []byte { return s.raw }

// Close releases the backing memory. It is idempotent if the closer is.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
