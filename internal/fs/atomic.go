package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
)

var tempSeq atomic.Uint64

// ErrCommitted is returned when an AtomicFile is written after Commit or Abort.
var ErrCommitted = errors.New("fs: atomic file already finished")

// AtomicFile writes to a temporary sibling of path and renames it into place on Commit.
type AtomicFile struct {
	fsys     FileSystem
	path     string
	tempPath string
	file     File
}

// NewAtomicFile creates the temporary file backing an atomic write of path.
func NewAtomicFile(fsys FileSystem, path string) (*AtomicFile, error) {
	if fsys == nil {
		fsys = Default
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	tempPath := TempName(path)
	f, err := fsys.OpenFile(tempPath, os.O_CREATE|os.O_RDWR|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	return &AtomicFile{fsys: fsys, path: path, tempPath: tempPath, file: f}, nil
}

// TempName returns a unique temporary name next to path.
func TempName(path string) string {
	return fmt.Sprintf("%s.tmp.%d.%d", path, os.Getpid(), tempSeq.Add(1))
}

// Path returns the destination path.
func (af *AtomicFile) Path() string { return af.path }

// File returns the underlying temporary file.
func (af *AtomicFile) File() File { return af.file }

// Write writes p to the temporary file.
func (af *AtomicFile) Write(p []byte) (int, error) {
	if af.file == nil {
		return 0, ErrCommitted
	}
	return af.file.Write(p)
}

// Commit syncs the temporary file and renames it over the destination.
func (af *AtomicFile) Commit() error {
	if af.file == nil {
		return ErrCommitted
	}
	f := af.file
	af.file = nil

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = af.fsys.Remove(af.tempPath)
		return fmt.Errorf("sync file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = af.fsys.Remove(af.tempPath)
		return fmt.Errorf("close file: %w", err)
	}
	if err := af.fsys.Rename(af.tempPath, af.path); err != nil {
		_ = af.fsys.Remove(af.tempPath)
		return fmt.Errorf("rename file: %w", err)
	}
	if _, ok := af.fsys.(LocalFS); ok {
		if err := SyncDir(filepath.Dir(af.path)); err != nil {
			return fmt.Errorf("sync directory: %w", err)
		}
	}
	return nil
}

// Abort removes the temporary file. It is a no-op after Commit.
func (af *AtomicFile) Abort() error {
	if af.file == nil {
		return nil
	}
	_ = af.file.Close()
	af.file = nil
	return af.fsys.Remove(af.tempPath)
}

// SyncDir syncs a directory so a completed rename survives a crash.
func SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Sync()
}
