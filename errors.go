package termdict

import (
	"errors"
	"fmt"

	"github.com/hupe1980/termdict/internal/dictfile"
	"github.com/hupe1980/termdict/internal/sorter"
)

var (
	// ErrCorrupt is returned for truncated or malformed dictionary files.
	ErrCorrupt = errors.New("termdict: corrupt dictionary")

	// ErrDanglingShared is returned by Get when a composite entry names a
	// shared id the shared dictionary does not hold.
	ErrDanglingShared = errors.New("termdict: dangling shared reference")

	// ErrSharedRequired is returned when a composite dictionary is opened
	// without its shared dictionary.
	ErrSharedRequired = errors.New("termdict: composite dictionary needs a shared dictionary")

	// ErrClosed is returned when using a closed dictionary.
	ErrClosed = errors.New("termdict: dictionary is closed")

	// ErrInUse is returned when closing a shared dictionary that open
	// composite dictionaries still reference.
	ErrInUse = errors.New("termdict: shared dictionary still in use")

	// ErrSourceChanged is returned when the second pass of a build sees a
	// term whose shared part the first pass did not.
	ErrSourceChanged = errors.New("termdict: source changed between passes")
)

// CorruptError describes a dictionary that failed validation.
//
// errors.Is(err, ErrCorrupt) reports true; the underlying cause is available
// via errors.Unwrap.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("termdict: corrupt dictionary: %v", e.Err)
	}
	return fmt.Sprintf("termdict: corrupt dictionary %s: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Is reports whether target is ErrCorrupt.
func (e *CorruptError) Is(target error) bool { return target == ErrCorrupt }

// BlockValidationError lists the spilled block files that failed the
// pre-merge check. Nothing is published when it is returned.
type BlockValidationError = sorter.ValidationError

// translateError maps internal format errors onto the public error kinds.
func translateError(path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, dictfile.ErrFormat) {
		return &CorruptError{Path: path, Err: err}
	}
	return err
}
