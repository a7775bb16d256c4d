package sorter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/termdict/internal/dictfile"
	"github.com/hupe1980/termdict/internal/hash"
	"github.com/hupe1980/termdict/internal/mmap"
)

// ValidationError lists every block file that failed pre-merge validation.
type ValidationError struct {
	Files []string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("sorter: %d block file(s) failed validation: %s", len(e.Files), strings.Join(e.Files, ", "))
}

func (e *ValidationError) Unwrap() error { return e.Err }

// validate checks every block file in parallel. All files are checked even
// when some fail, so the error lists them all.
func (s *Sorter) validate(ctx context.Context, files []blockFile) error {
	var (
		mu     sync.Mutex
		merr   *multierror.Error
		failed []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Resources.Workers())

	for _, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := s.checkFile(f); err != nil {
				mu.Lock()
				merr = multierror.Append(merr, fmt.Errorf("%s: %w", f.path, err))
				failed = append(failed, f.path)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if merr != nil {
		return &ValidationError{Files: failed, Err: merr.ErrorOrNil()}
	}
	return nil
}

func (s *Sorter) checkFile(f blockFile) error {
	st, err := dictfile.OpenFile(f.path, mmap.Sequential)
	if err != nil {
		return err
	}
	defer st.Close()

	if got := hash.CRC32C(st.Raw()); got != f.crc {
		return fmt.Errorf("checksum mismatch: got %08x, want %08x", got, f.crc)
	}
	if uint64(st.Len()) != f.count {
		return fmt.Errorf("entry count %d, want %d", st.Len(), f.count)
	}
	for i := 2; i <= st.Len(); i++ {
		if s.cfg.Compare(st.Entry(i-1), st.Entry(i)) >= 0 {
			return fmt.Errorf("entries %d and %d out of order or duplicated", i-1, i)
		}
	}
	return nil
}
