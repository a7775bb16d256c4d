// Package staging records a one-shot term stream to disk so the two-pass
// builder can replay it.
//
// File layout: a 4-byte magic, one compression byte, then a (possibly
// compressed) stream of uvarint-length-prefixed terms.
package staging

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/termdict/internal/fs"
)

// Compression selects the staging stream codec.
type Compression uint8

const (
	// CompressionNone stores terms as is.
	CompressionNone Compression = iota
	// CompressionLZ4 uses LZ4 frames (fast).
	CompressionLZ4
	// CompressionZSTD uses Zstandard (smaller).
	CompressionZSTD
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

var magic = [4]byte{'T', 'D', 'S', 'G'}

// ErrFormat is returned for files that are not staging files.
var ErrFormat = errors.New("staging: malformed file")

const checkEvery = 1024

// Writer appends terms to a staging file.
type Writer struct {
	fsys  fs.FileSystem
	file  fs.File
	buf   *bufio.Writer
	enc   io.WriteCloser // nil for CompressionNone
	out   io.Writer
	count uint64
	size  uint64
	lenb  [binary.MaxVarintLen64]byte
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Create starts a staging file at path.
func Create(fsys fs.FileSystem, path string, c Compression) (*Writer, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	w := &Writer{fsys: fsys, file: f, buf: bufio.NewWriterSize(f, 256<<10)}

	if _, err := w.buf.Write(append(magic[:], byte(c))); err != nil {
		_ = f.Close()
		return nil, err
	}

	switch c {
	case CompressionNone:
		w.enc = nopCloser{w.buf}
	case CompressionLZ4:
		w.enc = lz4.NewWriter(w.buf)
	case CompressionZSTD:
		enc, err := zstd.NewWriter(w.buf, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		w.enc = enc
	default:
		_ = f.Close()
		return nil, fmt.Errorf("staging: unknown compression %d", c)
	}
	w.out = w.enc
	return w, nil
}

// Append records one term.
func (w *Writer) Append(term []byte) error {
	n := binary.PutUvarint(w.lenb[:], uint64(len(term)))
	if _, err := w.out.Write(w.lenb[:n]); err != nil {
		return err
	}
	if _, err := w.out.Write(term); err != nil {
		return err
	}
	w.count++
	w.size += uint64(len(term))
	return nil
}

// Count returns the number of terms recorded.
func (w *Writer) Count() uint64 { return w.count }

// Size returns the uncompressed payload size.
func (w *Writer) Size() uint64 { return w.size }

// Close flushes and closes the file.
func (w *Writer) Close() error {
	err := w.enc.Close()
	if ferr := w.buf.Flush(); err == nil {
		err = ferr
	}
	if serr := w.file.Sync(); err == nil {
		err = serr
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Replay streams every term of the staging file at path to visit. The slice
// passed to visit is reused across calls.
func Replay(ctx context.Context, fsys fs.FileSystem, path string, visit func(term []byte) error) error {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fs.Open(fsys, path)
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 256<<10)
	var head [5]byte
	if _, err := io.ReadFull(br, head[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if [4]byte(head[:4]) != magic {
		return fmt.Errorf("%w: bad magic", ErrFormat)
	}

	var r *bufio.Reader
	switch Compression(head[4]) {
	case CompressionNone:
		r = br
	case CompressionLZ4:
		r = bufio.NewReader(lz4.NewReader(br))
	case CompressionZSTD:
		dec, err := zstd.NewReader(br)
		if err != nil {
			return err
		}
		defer dec.Close()
		r = bufio.NewReader(dec)
	default:
		return fmt.Errorf("%w: unknown compression %d", ErrFormat, head[4])
	}

	var term []byte
	for i := 0; ; i++ {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		n, err := binary.ReadUvarint(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: term %d: %v", ErrFormat, i, err)
		}
		if uint64(cap(term)) < n {
			term = make([]byte, n)
		}
		term = term[:n]
		if _, err := io.ReadFull(r, term); err != nil {
			return fmt.Errorf("%w: term %d: %v", ErrFormat, i, err)
		}
		if err := visit(term); err != nil {
			return err
		}
	}
}
