package dictfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/hupe1980/termdict/internal/fs"
	"github.com/hupe1980/termdict/internal/hash"
)

const defaultBufferSize = 256 << 10

// ErrFinished is returned when a Writer is used after Finish or Abort.
var ErrFinished = errors.New("dictfile: writer already finished")

// Options configures a Writer.
type Options struct {
	// FS defaults to fs.Default.
	FS fs.FileSystem
	// Flags are written to the header. FlagWideOffsets is added when the
	// byte area outgrows 32-bit offsets and is implied by FlagEmbeddedIDs.
	Flags Flags
	// Wrap, if set, wraps the final file stream (for IO throttling).
	Wrap func(io.Writer) io.Writer
	// BufferSize of the staging buffers. Defaults to 256 KiB.
	BufferSize int
}

// Summary describes a finished dictionary file.
type Summary struct {
	Path   string
	Header Header
	Size   int64
	// CRC is the CRC32C of the whole file.
	CRC uint32
}

// Writer streams entries into a new dictionary file. Entries are staged in
// two scratch files next to the destination; Finish assembles header, offset
// table and byte area and renames the result into place.
type Writer struct {
	path string
	opts Options

	data, offs       fs.File
	dataBuf, offsBuf *bufio.Writer

	count uint64
	size  uint64
	word  [8]byte
	done  bool
}

// Create starts a dictionary at path.
func Create(path string, opts Options) (*Writer, error) {
	if opts.FS == nil {
		opts.FS = fs.Default
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.Flags.Has(FlagEmbeddedIDs) {
		opts.Flags |= FlagWideOffsets
	}

	w := &Writer{path: path, opts: opts}
	var err error
	if w.data, err = createScratch(opts.FS, path+".data"); err != nil {
		return nil, err
	}
	if w.offs, err = createScratch(opts.FS, path+".offs"); err != nil {
		w.removeScratch()
		return nil, err
	}
	w.dataBuf = bufio.NewWriterSize(w.data, opts.BufferSize)
	w.offsBuf = bufio.NewWriterSize(w.offs, opts.BufferSize/4)
	return w, nil
}

func createScratch(fsys fs.FileSystem, base string) (fs.File, error) {
	f, err := fsys.OpenFile(fs.TempName(base), os.O_CREATE|os.O_RDWR|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	return f, nil
}

// Count returns the number of entries added so far.
func (w *Writer) Count() uint64 { return w.count }

// Size returns the byte-area size so far.
func (w *Writer) Size() uint64 { return w.size }

// Add appends one entry.
func (w *Writer) Add(entry []byte) error {
	return w.add(entry, nil, 0)
}

// AddParts appends the concatenation of a and b as one entry.
func (w *Writer) AddParts(a, b []byte) error {
	return w.add(a, b, 0)
}

// AddTagged appends an entry whose offset word carries t.
// The Writer must have FlagEmbeddedIDs.
func (w *Writer) AddTagged(entry []byte, t Tag) error {
	if !w.opts.Flags.Has(FlagEmbeddedIDs) {
		return errors.New("dictfile: tagged entry without embedded ids")
	}
	return w.add(entry, nil, t)
}

func (w *Writer) add(a, b []byte, t Tag) error {
	if w.done {
		return ErrFinished
	}
	if _, err := w.dataBuf.Write(a); err != nil {
		return err
	}
	if _, err := w.dataBuf.Write(b); err != nil {
		return err
	}
	w.size += uint64(len(a) + len(b))
	w.count++

	binary.LittleEndian.PutUint64(w.word[:], wordOf(w.size, t))
	_, err := w.offsBuf.Write(w.word[:])
	return err
}

// Finish writes the dictionary and renames it into place.
func (w *Writer) Finish() (Summary, error) {
	if w.done {
		return Summary{}, ErrFinished
	}
	w.done = true
	defer w.removeScratch()

	flags := w.opts.Flags
	if w.size > math.MaxUint32 {
		flags |= FlagWideOffsets
	}
	if flags.Has(FlagEmbeddedIDs) && w.size >= MaxEmbeddedSize {
		return Summary{}, fmt.Errorf("dictfile: byte area of %d bytes too large for embedded ids", w.size)
	}
	if w.count > MaxCount {
		return Summary{}, fmt.Errorf("dictfile: %d entries exceed header capacity", w.count)
	}
	h := Header{Count: w.count, Flags: flags}

	if err := w.dataBuf.Flush(); err != nil {
		return Summary{}, err
	}
	if err := w.offsBuf.Flush(); err != nil {
		return Summary{}, err
	}

	af, err := fs.NewAtomicFile(w.opts.FS, w.path)
	if err != nil {
		return Summary{}, err
	}
	crc := hash.NewCRC32C()
	var sink io.Writer = af
	if w.opts.Wrap != nil {
		sink = w.opts.Wrap(sink)
	}
	out := bufio.NewWriterSize(io.MultiWriter(sink, crc), w.opts.BufferSize)

	n, err := w.assemble(out, h)
	if err == nil {
		err = out.Flush()
	}
	if err != nil {
		_ = af.Abort()
		return Summary{}, err
	}
	if err := af.Commit(); err != nil {
		return Summary{}, err
	}
	return Summary{Path: w.path, Header: h, Size: n, CRC: crc.Sum32()}, nil
}

func (w *Writer) assemble(out *bufio.Writer, h Header) (int64, error) {
	var buf [8]byte
	h.Put(buf[:])
	if _, err := out.Write(buf[:]); err != nil {
		return 0, err
	}
	width := h.OffsetWidth()
	written := int64(HeaderSize)

	put := func(word uint64) error {
		if width == 8 {
			binary.LittleEndian.PutUint64(buf[:], word)
		} else {
			binary.LittleEndian.PutUint32(buf[:], uint32(word))
		}
		_, err := out.Write(buf[:width])
		written += int64(width)
		return err
	}
	if err := put(0); err != nil {
		return 0, err
	}

	if _, err := w.offs.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	r := bufio.NewReaderSize(w.offs, w.opts.BufferSize/4)
	for i := uint64(0); i < h.Count; i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, fmt.Errorf("read offset %d: %w", i, err)
		}
		if err := put(binary.LittleEndian.Uint64(buf[:])); err != nil {
			return 0, err
		}
	}

	if _, err := w.data.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.Copy(out, w.data)
	if err != nil {
		return 0, err
	}
	if uint64(n) != w.size {
		return 0, fmt.Errorf("dictfile: byte area short copy: %d of %d bytes", n, w.size)
	}
	return written + n, nil
}

// Abort discards everything written.
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.removeScratch()
	return nil
}

func (w *Writer) removeScratch() {
	for _, f := range []fs.File{w.data, w.offs} {
		if f == nil {
			continue
		}
		_ = f.Close()
		_ = w.opts.FS.Remove(f.Name())
	}
	w.data, w.offs = nil, nil
}

// PatchFlags sets additional flag bits in the header of the file at path.
func PatchFlags(fsys fs.FileSystem, path string, set Flags) (Header, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	var buf [HeaderSize]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		return Header{}, fmt.Errorf("read header: %w", err)
	}
	h, err := DecodeHeader(buf[:])
	if err != nil {
		return Header{}, err
	}
	h.Flags |= set
	if err := h.validate(); err != nil {
		return Header{}, err
	}
	h.Put(buf[:])
	if _, err := f.WriteAt(buf[:], 0); err != nil {
		return Header{}, fmt.Errorf("write header: %w", err)
	}
	return h, f.Sync()
}
