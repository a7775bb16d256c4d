// Package sorter implements the bounded-memory external sort of the build
// pipeline.
//
// Strings are appended to fixed-capacity blocks. A full block is handed to
// a worker that sorts it, drops duplicates and spills it to a temporary
// dictionary file; the producer continues with a recycled block and only
// waits when every block is in flight. WriteDict validates the spilled
// files and merges them into the destination.
package sorter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/termdict/internal/dictfile"
	"github.com/hupe1980/termdict/internal/fastcmp"
	"github.com/hupe1980/termdict/internal/fs"
	"github.com/hupe1980/termdict/internal/merge"
	"github.com/hupe1980/termdict/internal/resource"
)

const (
	// DefaultBlockSize is the default block capacity in bytes.
	DefaultBlockSize = 64 << 20

	// blocks at least this large are backed by anonymous mappings.
	anonThreshold = 1 << 20
)

// ErrFinished is returned by Copy after WriteDict or Close.
var ErrFinished = errors.New("sorter: already finished")

// Config configures a Sorter.
type Config struct {
	// Name prefixes temporary files and log records.
	Name string
	// Dir holds the temporary block files. Defaults to os.TempDir().
	Dir string
	// FS defaults to fs.Default.
	FS fs.FileSystem
	// BlockSize is the block capacity in bytes.
	BlockSize int
	// Resources bounds workers, memory and IO. Nil means one worker, unlimited.
	Resources *resource.Controller
	// Compare defaults to fastcmp.Safe.
	Compare fastcmp.Func
	Logger  *slog.Logger
	// OnSpill is called after every block spill.
	OnSpill func(SpillStats)
	// ProgressEvery is passed to the merger.
	ProgressEvery uint64
}

// SpillStats describes one spilled block.
type SpillStats struct {
	Block      int
	Entries    int
	Duplicates int
	Bytes      int64
	Duration   time.Duration
}

// Result describes the written dictionary.
type Result struct {
	Path    string
	Header  dictfile.Header
	Blocks  int
	Added   uint64
	Skipped uint64
	Merge   *merge.Stats
}

type blockFile struct {
	path  string
	count uint64
	crc   uint32
}

// Sorter accumulates strings and writes them as one sorted, duplicate-free
// dictionary. Copy is single-writer.
type Sorter struct {
	cfg    Config
	logger *slog.Logger

	g    *errgroup.Group
	gctx context.Context

	free      chan *block
	allocated int
	maxBlocks int
	cur       *block

	mu    sync.Mutex
	files map[int]blockFile
	seq   int

	added    uint64
	skipped  uint64
	finished bool
}

// New creates a Sorter whose workers run under ctx.
func New(ctx context.Context, cfg Config) (*Sorter, error) {
	if cfg.FS == nil {
		cfg.FS = fs.Default
	}
	if cfg.Dir == "" {
		cfg.Dir = os.TempDir()
	}
	if cfg.Name == "" {
		cfg.Name = "sorter"
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if uint64(cfg.BlockSize) > math.MaxUint32 {
		return nil, fmt.Errorf("sorter: block size %d exceeds 4 GiB", cfg.BlockSize)
	}
	if cfg.Compare == nil {
		cfg.Compare = fastcmp.Safe
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := cfg.FS.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("sorter: create temp dir: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	maxBlocks := cfg.Resources.Workers() + 1
	return &Sorter{
		cfg:       cfg,
		logger:    logger.With("sorter", cfg.Name),
		g:         g,
		gctx:      gctx,
		free:      make(chan *block, maxBlocks),
		maxBlocks: maxBlocks,
		files:     make(map[int]blockFile),
	}, nil
}

// Copy appends the concatenation prefix+suffix. Blocks only while waiting
// for a free block.
func (s *Sorter) Copy(prefix, suffix []byte) error {
	if s.finished {
		return ErrFinished
	}
	n := len(prefix) + len(suffix)
	if uint64(n) > math.MaxUint32 {
		return fmt.Errorf("sorter: string of %d bytes too large", n)
	}
	if s.cur == nil {
		b, err := s.acquire()
		if err != nil {
			return err
		}
		s.cur = b
	}
	if s.cur.len() > 0 && len(s.cur.data)+n > s.cfg.BlockSize {
		s.flush()
		b, err := s.acquire()
		if err != nil {
			return err
		}
		s.cur = b
	}

	s.added++
	fp := fingerprint(prefix, suffix)
	if s.cur.seenRecently(fp, prefix, suffix) {
		s.skipped++
		return nil
	}
	s.cur.append(fp, prefix, suffix)
	return nil
}

// Add appends term.
func (s *Sorter) Add(term []byte) error { return s.Copy(term, nil) }

func (s *Sorter) acquire() (*block, error) {
	if s.gctx.Err() != nil {
		return nil, context.Cause(s.gctx)
	}
	select {
	case b := <-s.free:
		return b, nil
	default:
	}

	if s.allocated < s.maxBlocks {
		size := int64(s.cfg.BlockSize)
		granted := s.cfg.Resources.Reserve(size)
		// The first block is always granted so a tight budget cannot stall the build.
		if granted || s.allocated == 0 {
			b := newBlock(s.cfg.BlockSize, s.cfg.BlockSize >= anonThreshold)
			if granted {
				b.reserved = size
			}
			s.allocated++
			return b, nil
		}
	}

	select {
	case b := <-s.free:
		return b, nil
	case <-s.gctx.Done():
		return nil, context.Cause(s.gctx)
	}
}

func (s *Sorter) recycle(b *block) {
	b.reset()
	s.free <- b
}

// flush hands the current block to a worker.
func (s *Sorter) flush() {
	b := s.cur
	s.cur = nil
	seq := s.seq
	s.seq++

	s.g.Go(func() error {
		defer s.recycle(b)
		if err := s.cfg.Resources.AcquireWorker(s.gctx); err != nil {
			return err
		}
		defer s.cfg.Resources.ReleaseWorker()
		return s.spill(s.gctx, seq, b)
	})
}

func (s *Sorter) blockPath(seq int) string {
	return filepath.Join(s.cfg.Dir, fmt.Sprintf("%s-block-%06d.dict", s.cfg.Name, seq))
}

func (s *Sorter) wrap(ctx context.Context) func(io.Writer) io.Writer {
	return func(w io.Writer) io.Writer { return resource.NewWriter(ctx, w, s.cfg.Resources) }
}

func (s *Sorter) spill(ctx context.Context, seq int, b *block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	order := b.sorted(s.cfg.Compare)

	path := s.blockPath(seq)
	w, err := dictfile.Create(path, dictfile.Options{FS: s.cfg.FS, Wrap: s.wrap(ctx)})
	if err != nil {
		return fmt.Errorf("spill block %d: %w", seq, err)
	}
	for _, i := range order {
		if err := w.Add(b.entry(int(i))); err != nil {
			_ = w.Abort()
			return fmt.Errorf("spill block %d: %w", seq, err)
		}
	}
	sum, err := w.Finish()
	if err != nil {
		return fmt.Errorf("spill block %d: %w", seq, err)
	}

	s.mu.Lock()
	s.files[seq] = blockFile{path: path, count: sum.Header.Count, crc: sum.CRC}
	s.mu.Unlock()

	st := SpillStats{
		Block:      seq,
		Entries:    len(order),
		Duplicates: b.len() - len(order),
		Bytes:      sum.Size,
		Duration:   time.Since(start),
	}
	s.logger.DebugContext(ctx, "block spilled",
		"block", seq,
		"entries", humanize.Comma(int64(st.Entries)),
		"duplicates", st.Duplicates,
		"size", humanize.IBytes(uint64(st.Bytes)),
		"duration", st.Duration,
	)
	if s.cfg.OnSpill != nil {
		s.cfg.OnSpill(st)
	}
	return nil
}

// WriteDict flushes the last block, waits for every spill and writes the
// merged dictionary to dest with flags. Temporary block files are removed.
func (s *Sorter) WriteDict(ctx context.Context, dest string, flags dictfile.Flags) (Result, error) {
	if s.finished {
		return Result{}, ErrFinished
	}
	if s.cur != nil && s.cur.len() > 0 {
		s.flush()
	} else if s.cur != nil {
		s.recycle(s.cur)
		s.cur = nil
	}
	s.finished = true
	defer s.cleanup()

	if err := s.g.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	files := s.orderedFiles()
	res := Result{Path: dest, Blocks: len(files), Added: s.added, Skipped: s.skipped}
	flags &^= dictfile.FlagWideOffsets

	switch len(files) {
	case 0:
		w, err := dictfile.Create(dest, dictfile.Options{FS: s.cfg.FS, Flags: flags, Wrap: s.wrap(ctx)})
		if err != nil {
			return Result{}, err
		}
		sum, err := w.Finish()
		if err != nil {
			return Result{}, err
		}
		res.Header = sum.Header
	case 1:
		h, err := s.move(files[0].path, dest, flags)
		if err != nil {
			return Result{}, err
		}
		res.Header = h
	default:
		if err := s.validate(ctx, files); err != nil {
			return Result{}, err
		}
		paths := make([]string, len(files))
		for i, f := range files {
			paths[i] = f.path
		}
		stats, err := merge.Files(ctx, dest, paths, merge.Config{
			FS:            s.cfg.FS,
			Flags:         flags,
			Compare:       s.cfg.Compare,
			Logger:        s.logger,
			ProgressEvery: s.cfg.ProgressEvery,
			Wrap:          s.wrap(ctx),
		})
		if err != nil {
			return Result{}, err
		}
		res.Header = stats.Summary.Header
		res.Merge = &stats
	}
	return res, nil
}

// move publishes a single block file as dest, patching its flags first.
func (s *Sorter) move(src, dest string, flags dictfile.Flags) (dictfile.Header, error) {
	h, err := dictfile.PatchFlags(s.cfg.FS, src, flags)
	if err != nil {
		return dictfile.Header{}, err
	}
	if err := s.cfg.FS.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return dictfile.Header{}, err
	}
	if err := s.cfg.FS.Rename(src, dest); err == nil {
		return h, nil
	}

	// Rename fails across devices; fall back to an atomic copy.
	in, err := fs.Open(s.cfg.FS, src)
	if err != nil {
		return dictfile.Header{}, err
	}
	defer in.Close()
	af, err := fs.NewAtomicFile(s.cfg.FS, dest)
	if err != nil {
		return dictfile.Header{}, err
	}
	if _, err := io.Copy(af, in); err != nil {
		_ = af.Abort()
		return dictfile.Header{}, err
	}
	return h, af.Commit()
}

func (s *Sorter) orderedFiles() []blockFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]blockFile, 0, len(s.files))
	for seq := 0; seq < s.seq; seq++ {
		if f, ok := s.files[seq]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Close stops accepting strings and removes temporary files. It is safe to
// call after WriteDict.
func (s *Sorter) Close() error {
	if !s.finished {
		s.finished = true
		if s.cur != nil {
			s.recycle(s.cur)
			s.cur = nil
		}
		_ = s.g.Wait()
		s.cleanup()
	}
	return nil
}

func (s *Sorter) cleanup() {
	s.mu.Lock()
	for seq, f := range s.files {
		if err := fs.RemoveQuiet(s.cfg.FS, f.path); err != nil {
			s.logger.Warn("remove block file", "path", f.path, "error", err)
		}
		delete(s.files, seq)
	}
	s.mu.Unlock()

	for {
		select {
		case b := <-s.free:
			s.cfg.Resources.Release(b.reserved)
			b.free()
		default:
			return
		}
	}
}
