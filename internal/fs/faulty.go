package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is returned by faults that set no Err of their own.
var ErrInjected = errors.New("fs: injected fault")

// Fault describes how files matching a rule misbehave.
type Fault struct {
	FailOnOpen  bool
	FailOnSync  bool
	FailOnClose bool
	// FailAfter fails a write that would take the file past this many
	// bytes. Zero disables it.
	FailAfter int64
	Err       error
}

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

type rule struct {
	pattern string
	fault   Fault
}

type renameRule struct {
	pattern string
	err     error
}

// FaultyFS wraps a FileSystem and injects failures into files whose names
// contain a rule's pattern. When several rules match, the last added wins.
type FaultyFS struct {
	base FileSystem

	mu      sync.Mutex
	rules   []rule
	renames []renameRule
	budget  int64 // total write budget, negative for unlimited
	written int64
}

// NewFaultyFS wraps base, or Default when base is nil.
func NewFaultyFS(base FileSystem) *FaultyFS {
	if base == nil {
		base = Default
	}
	return &FaultyFS{base: base, budget: -1}
}

// AddRule registers fault for file names containing pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	f.rules = append(f.rules, rule{pattern, fault})
	f.mu.Unlock()
}

// FailRename fails renames onto targets containing pattern. A nil err means
// ErrInjected.
func (f *FaultyFS) FailRename(pattern string, err error) {
	if err == nil {
		err = ErrInjected
	}
	f.mu.Lock()
	f.renames = append(f.renames, renameRule{pattern, err})
	f.mu.Unlock()
}

// SetLimit fails any write that would take the bytes written across all
// files past limit.
func (f *FaultyFS) SetLimit(limit int64) {
	f.mu.Lock()
	f.budget = limit
	f.mu.Unlock()
}

// Written returns the bytes written through f.
func (f *FaultyFS) Written() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written
}

func (f *FaultyFS) match(name string) Fault {
	f.mu.Lock()
	defer f.mu.Unlock()
	var fault Fault
	for _, r := range f.rules {
		if strings.Contains(name, r.pattern) {
			fault = r.fault
		}
	}
	return fault
}

// charge reserves n bytes of the global budget.
func (f *FaultyFS) charge(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.budget >= 0 && f.written+int64(n) > f.budget {
		return ErrInjected
	}
	f.written += int64(n)
	return nil
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	fault := f.match(name)
	if fault.FailOnOpen {
		return nil, &os.PathError{Op: "open", Path: name, Err: fault.err()}
	}
	file, err := f.base.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, fs: f, fault: fault}, nil
}

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	f.mu.Lock()
	for _, r := range f.renames {
		if strings.Contains(newpath, r.pattern) {
			f.mu.Unlock()
			return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: r.err}
		}
	}
	f.mu.Unlock()
	return f.base.Rename(oldpath, newpath)
}

func (f *FaultyFS) Remove(name string) error { return f.base.Remove(name) }

func (f *FaultyFS) MkdirAll(dir string, perm os.FileMode) error { return f.base.MkdirAll(dir, perm) }

type faultyFile struct {
	File
	fs      *FaultyFS
	fault   Fault
	written int64
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if ff.fault.FailAfter > 0 && ff.written+int64(len(p)) > ff.fault.FailAfter {
		return 0, ff.fault.err()
	}
	if err := ff.fs.charge(len(p)); err != nil {
		return 0, err
	}
	n, err := ff.File.Write(p)
	ff.written += int64(n)
	return n, err
}

func (ff *faultyFile) Sync() error {
	if ff.fault.FailOnSync {
		return ff.fault.err()
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Close() error {
	err := ff.File.Close()
	if ff.fault.FailOnClose {
		return ff.fault.err()
	}
	return err
}
