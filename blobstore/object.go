package blobstore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"sync/atomic"
)

// ContentType is attached to dictionary objects in remote stores.
const ContentType = "application/vnd.termdict"

// ErrAborted is delivered to an in-flight upload whose writer was aborted.
var ErrAborted = errors.New("blobstore: upload aborted")

// Keyspace maps blob names onto object keys below a root prefix.
type Keyspace string

// Key returns the object key for name.
func (k Keyspace) Key(name string) string { return path.Join(string(k), name) }

// Name returns the blob name of an object key, or "" for keys outside k.
func (k Keyspace) Name(key string) string {
	root := strings.TrimSuffix(string(k), "/")
	if root == "" {
		return key
	}
	rest, ok := strings.CutPrefix(key, root+"/")
	if !ok {
		return ""
	}
	return rest
}

// RangeFunc opens length bytes of an object starting at off.
type RangeFunc func(ctx context.Context, off, length int64) (io.ReadCloser, error)

// ReadAtRange serves an io.ReaderAt style read of an object of the given
// size through one ranged request.
func ReadAtRange(ctx context.Context, fetch RangeFunc, size int64, p []byte, off int64) (int, error) {
	if off >= size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	want := min(int64(len(p)), size-off)
	body, err := fetch(ctx, off, want)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := io.ReadFull(body, p[:want])
	if err == nil && want < int64(len(p)) {
		err = io.EOF
	}
	return n, err
}

// StreamUpload returns a WritableBlob whose bytes are piped into upload,
// which runs on its own goroutine. Close waits for upload to finish; Abort
// fails the pipe with ErrAborted so upload discards the object.
func StreamUpload(ctx context.Context, upload func(ctx context.Context, r io.Reader) error) WritableBlob {
	pr, pw := io.Pipe()
	w := &streamWriter{pw: pw, done: make(chan error, 1)}
	go func() {
		err := upload(ctx, pr)
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w
}

type streamWriter struct {
	pw       *io.PipeWriter
	done     chan error
	finished atomic.Bool
}

func (w *streamWriter) Write(p []byte) (int, error) {
	if w.finished.Load() {
		return 0, io.ErrClosedPipe
	}
	return w.pw.Write(p)
}

func (w *streamWriter) Close() error {
	if !w.finished.CompareAndSwap(false, true) {
		return io.ErrClosedPipe
	}
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.done
}

func (w *streamWriter) Abort() error {
	if !w.finished.CompareAndSwap(false, true) {
		return nil
	}
	_ = w.pw.CloseWithError(ErrAborted)
	<-w.done
	return nil
}
