package termdict

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/hupe1980/termdict/internal/dictfile"
	"github.com/hupe1980/termdict/internal/fs"
	"github.com/hupe1980/termdict/internal/locality"
	"github.com/hupe1980/termdict/internal/resource"
	"github.com/hupe1980/termdict/internal/sorter"
	"github.com/hupe1980/termdict/internal/staging"
	"github.com/hupe1980/termdict/split"
)

// Source streams the build input to visit. The slice passed to visit may be
// reused after visit returns. Without WithStaging a Source is called twice
// and must produce the same terms both times.
type Source func(ctx context.Context, visit func(term []byte) error) error

// SliceSource returns a Source over terms.
func SliceSource(terms ...string) Source {
	return func(ctx context.Context, visit func([]byte) error) error {
		for i, t := range terms {
			if i%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if err := visit([]byte(t)); err != nil {
				return err
			}
		}
		return nil
	}
}

// maxLine bounds a single line in LinesSource.
const maxLine = 64 << 20

// LinesSource returns a Source reading one term per line from the reader
// returned by open, which is called once per pass. Lines may end in LF or
// CRLF: one trailing CR is removed, so a term cannot itself end in CR.
func LinesSource(open func() (io.ReadCloser, error)) Source {
	return func(ctx context.Context, visit func([]byte) error) error {
		r, err := open()
		if err != nil {
			return err
		}
		defer r.Close()

		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64<<10), maxLine)
		for i := 0; sc.Scan(); i++ {
			if i%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if err := visit(sc.Bytes()); err != nil {
				return err
			}
		}
		return sc.Err()
	}
}

// BuildResult describes a finished build.
type BuildResult struct {
	// Path of the main dictionary.
	Path string
	// SharedPath is empty when sharing is disabled.
	SharedPath string
	// Terms is the number of input terms visited, duplicates included.
	Terms uint64
	// Count and SharedCount are the entry counts of the written files.
	Count       uint64
	SharedCount uint64
	Flags       Flags
	// Overflowed counts terms stored verbatim because their shared id
	// exceeded the limit.
	Overflowed uint64
	Blocks     int
	Duration   time.Duration
}

var buildSeq atomic.Uint64

// Builder builds dictionary files. A Builder may be reused; builds do not
// share state.
type Builder struct {
	o buildOptions
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...BuildOption) *Builder {
	o := defaultBuildOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Builder{o: o}
}

// Build writes the dictionary for src to dest. Composite builds also write
// the shared dictionary next to dest, named SharedName.
func Build(ctx context.Context, dest string, src Source, opts ...BuildOption) (BuildResult, error) {
	return NewBuilder(opts...).Build(ctx, dest, src)
}

// build holds the state of one Build call.
type build struct {
	o      buildOptions
	name   string
	dir    string
	rc     *resource.Controller
	logger *Logger
}

// Build writes the dictionary for src to dest.
func (b *Builder) Build(ctx context.Context, dest string, src Source) (res BuildResult, err error) {
	start := time.Now()
	o := b.o
	bd := &build{
		o:      o,
		name:   fmt.Sprintf("termdict-%d-%d", os.Getpid(), buildSeq.Add(1)),
		dir:    o.tempDir,
		logger: o.logger,
		rc: resource.NewController(resource.Config{
			MemoryLimitBytes:   o.memoryLimit,
			Workers:            int64(o.workers),
			IOLimitBytesPerSec: o.ioLimit,
		}),
	}
	if bd.dir == "" {
		bd.dir = filepath.Dir(dest)
	}
	res.Path = dest

	defer func() {
		res.Duration = time.Since(start)
		o.metrics.RecordBuild(res.Terms, res.Duration, err)
		o.logger.LogBuild(ctx, res, err)
	}()

	for _, dir := range []string{filepath.Dir(dest), bd.dir} {
		if err := o.fs.MkdirAll(dir, 0o755); err != nil {
			return res, err
		}
	}
	if !o.sharing {
		err = bd.standalone(ctx, dest, src, &res)
		return res, err
	}
	err = bd.composite(ctx, dest, src, &res)
	return res, err
}

func (bd *build) newSorter(ctx context.Context, phase string) (*sorter.Sorter, error) {
	return sorter.New(ctx, sorter.Config{
		Name:          bd.name + "-" + phase,
		Dir:           bd.dir,
		FS:            bd.o.fs,
		BlockSize:     bd.o.blockSize,
		Resources:     bd.rc,
		Logger:        bd.logger.Logger,
		ProgressEvery: bd.o.progressEvery,
		OnSpill: func(st sorter.SpillStats) {
			bd.o.metrics.RecordSpill(st.Entries, st.Bytes, st.Duration)
		},
	})
}

func (bd *build) writeDict(ctx context.Context, s *sorter.Sorter, dest string, flags Flags) (sorter.Result, error) {
	r, err := s.WriteDict(ctx, dest, flags)
	if err != nil {
		return r, err
	}
	if r.Merge != nil {
		bd.o.metrics.RecordMerge(r.Merge.Inputs, r.Merge.Written, r.Merge.Duration)
	}
	return r, nil
}

func (bd *build) convert(ctx context.Context, path string) (dictfile.Header, error) {
	st, err := locality.Convert(ctx, path, locality.Config{
		FS:     bd.o.fs,
		Logger: bd.logger.Logger,
		Wrap: func(w io.Writer) io.Writer {
			return resource.NewWriter(ctx, w, bd.rc)
		},
	})
	if err != nil {
		return dictfile.Header{}, err
	}
	bd.o.metrics.RecordConversion(st.Entries, st.Duration)
	return st.Header, nil
}

func (bd *build) standalone(ctx context.Context, dest string, src Source, res *BuildResult) error {
	start := time.Now()
	s, err := bd.newSorter(ctx, "terms")
	if err != nil {
		return err
	}
	defer s.Close()

	// The empty string is always present.
	if err := s.Add(nil); err != nil {
		return err
	}
	err = src(ctx, func(term []byte) error {
		res.Terms++
		return s.Add(term)
	})
	if err != nil {
		return err
	}

	r, err := bd.writeDict(ctx, s, dest, 0)
	if err != nil {
		return err
	}
	res.Count, res.Flags, res.Blocks = r.Header.Count, r.Header.Flags, r.Blocks
	bd.logger.LogBuildPhase(ctx, "sort", r.Header.Count, time.Since(start))

	if bd.o.locality {
		h, err := bd.convert(ctx, dest)
		if err != nil {
			return err
		}
		res.Flags = h.Flags
	}
	return nil
}

func (bd *build) composite(ctx context.Context, dest string, src Source, res *BuildResult) (err error) {
	splitter := split.Splitter{Mode: bd.o.mode, Config: bd.o.splitConfig}
	sharedPath := filepath.Join(filepath.Dir(dest), SharedName)
	res.SharedPath = sharedPath

	// Both files are written under temporary names and replace an existing
	// set only after the second pass succeeds.
	sharedStage, termsStage := fs.TempName(sharedPath), fs.TempName(dest)
	defer func() {
		if err != nil {
			_ = fs.RemoveQuiet(bd.o.fs, sharedStage)
			_ = fs.RemoveQuiet(bd.o.fs, termsStage)
		}
	}()

	replay := src
	if bd.o.staging {
		stagePath := filepath.Join(bd.dir, bd.name+"-staging")
		sw, err := staging.Create(bd.o.fs, stagePath, bd.o.compression)
		if err != nil {
			return err
		}
		defer func() { _ = bd.o.fs.Remove(stagePath) }()

		inner := src
		src = func(ctx context.Context, visit func([]byte) error) error {
			err := inner(ctx, func(term []byte) error {
				if err := sw.Append(term); err != nil {
					return err
				}
				return visit(term)
			})
			if cerr := sw.Close(); err == nil {
				err = cerr
			}
			return err
		}
		replay = func(ctx context.Context, visit func([]byte) error) error {
			return staging.Replay(ctx, bd.o.fs, stagePath, visit)
		}
	}

	if err := bd.sharedPass(ctx, sharedStage, src, splitter, res); err != nil {
		return err
	}

	shared, err := Open(sharedStage)
	if err != nil {
		return fmt.Errorf("open shared dictionary: %w", err)
	}
	err = bd.compositePass(ctx, termsStage, replay, splitter, shared, res)
	if cerr := shared.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return bd.commitSet(sharedStage, sharedPath, termsStage, dest)
}

// commitSet moves a staged set into place. The old composite is removed
// first, so an interrupted commit leaves a missing file rather than a new
// shared dictionary next to an old composite.
func (bd *build) commitSet(sharedStage, sharedPath, termsStage, dest string) error {
	fsys := bd.o.fs
	if err := fs.RemoveQuiet(fsys, dest); err != nil {
		return fmt.Errorf("remove previous dictionary: %w", err)
	}
	if err := fsys.Rename(sharedStage, sharedPath); err != nil {
		return fmt.Errorf("commit shared dictionary: %w", err)
	}
	if err := fsys.Rename(termsStage, dest); err != nil {
		return fmt.Errorf("commit dictionary: %w", err)
	}
	if _, ok := fsys.(fs.LocalFS); ok {
		if err := fs.SyncDir(filepath.Dir(dest)); err != nil {
			return fmt.Errorf("sync directory: %w", err)
		}
	}
	return nil
}

// sharedPass collects the empty string and every shared part.
func (bd *build) sharedPass(ctx context.Context, sharedPath string, src Source, splitter split.Splitter, res *BuildResult) error {
	start := time.Now()
	s, err := bd.newSorter(ctx, "shared")
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Add(nil); err != nil {
		return err
	}
	err = src(ctx, func(term []byte) error {
		res.Terms++
		if p := splitter.Split(term); p.Side != split.SideNone {
			return s.Add(p.Shared)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r, err := bd.writeDict(ctx, s, sharedPath, 0)
	if err != nil {
		return err
	}
	res.SharedCount = r.Header.Count
	res.Blocks += r.Blocks
	bd.logger.LogBuildPhase(ctx, "shared", r.Header.Count, time.Since(start))

	if bd.o.sharedLocality {
		if _, err := bd.convert(ctx, sharedPath); err != nil {
			return err
		}
	}
	return nil
}

// compositePass encodes every term against the shared dictionary.
func (bd *build) compositePass(ctx context.Context, dest string, src Source, splitter split.Splitter, shared *Dict, res *BuildResult) error {
	start := time.Now()
	s, err := bd.newSorter(ctx, "terms")
	if err != nil {
		return err
	}
	defer s.Close()

	// Whole terms, the empty string among them, sort ahead of every shared id.
	verbatim := split.Encode(split.VerbatimID, split.SidePrefix)
	if err := s.Copy(verbatim[:], nil); err != nil {
		return err
	}

	lookup := shared.NewLookup()
	limit := ID(bd.o.sharedIDLimit)
	overflow := false
	err = src(ctx, func(term []byte) error {
		p := splitter.Split(term)
		if p.Side == split.SideNone {
			return s.Copy(verbatim[:], term)
		}
		sid := lookup.Find(p.Shared)
		if sid == NotFound {
			return fmt.Errorf("%w: shared part %q", ErrSourceChanged, p.Shared)
		}
		if sid > limit {
			overflow = true
			res.Overflowed++
			return s.Copy(verbatim[:], term)
		}
		key := split.Encode(uint32(sid), p.Side)
		return s.Copy(key[:], p.Local)
	})
	if err != nil {
		return err
	}

	flags := FlagShared.WithMode(bd.o.mode)
	if overflow {
		flags |= FlagSharedOverflow
	}
	r, err := bd.writeDict(ctx, s, dest, flags)
	if err != nil {
		return err
	}
	res.Count, res.Flags = r.Header.Count, r.Header.Flags
	res.Blocks += r.Blocks
	bd.logger.LogBuildPhase(ctx, "composite", r.Header.Count, time.Since(start))

	if bd.o.locality {
		h, err := bd.convert(ctx, dest)
		if err != nil {
			return err
		}
		res.Flags = h.Flags
	}
	return nil
}
