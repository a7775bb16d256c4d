package termdict

import (
	"os"
	"strconv"

	"github.com/hupe1980/termdict/internal/fs"
	"github.com/hupe1980/termdict/internal/mmap"
	"github.com/hupe1980/termdict/internal/staging"
	"github.com/hupe1980/termdict/split"
)

// FastPathEnv enables the word-at-a-time comparator when set to a true
// value ("1", "true"). WithFastPath takes precedence.
const FastPathEnv = "TERMDICT_FASTPATH"

// Advice is an access-pattern hint for mapped dictionaries.
type Advice int

const (
	AdviceDefault Advice = iota
	AdviceRandom
	AdviceSequential
	AdviceWillNeed
)

func (a Advice) pattern() mmap.Advice {
	switch a {
	case AdviceRandom:
		return mmap.Random
	case AdviceSequential:
		return mmap.Sequential
	case AdviceWillNeed:
		return mmap.WillNeed
	default:
		return mmap.Normal
	}
}

// Compression selects the staging file codec.
type Compression = staging.Compression

const (
	CompressionNone = staging.CompressionNone
	CompressionLZ4  = staging.CompressionLZ4
	CompressionZSTD = staging.CompressionZSTD
)

// FileSystem abstracts the file operations of a build.
type FileSystem = fs.FileSystem

// File is an open file of a FileSystem.
type File = fs.File

type openOptions struct {
	shared      *Dict
	fastPath    bool
	logger      *Logger
	advice      Advice
	splitConfig split.Config
}

// OpenOption configures Open, OpenSet and the blob store loaders.
type OpenOption func(*openOptions)

func defaultOpenOptions() openOptions {
	o := openOptions{
		logger:      NoopLogger(),
		advice:      AdviceRandom,
		splitConfig: split.DefaultConfig(),
	}
	if v, err := strconv.ParseBool(os.Getenv(FastPathEnv)); err == nil {
		o.fastPath = v
	}
	return o
}

// WithShared supplies the shared dictionary a composite dictionary resolves
// against. The composite holds a reference; shared cannot be closed while
// the composite is open.
func WithShared(shared *Dict) OpenOption {
	return func(o *openOptions) {
		o.shared = shared
	}
}

// WithFastPath selects the word-at-a-time comparator on supported CPUs.
// It overrides TERMDICT_FASTPATH.
func WithFastPath(enabled bool) OpenOption {
	return func(o *openOptions) {
		o.fastPath = enabled
	}
}

// WithLogger configures the logger. Pass nil to disable logging.
func WithLogger(l *Logger) OpenOption {
	return func(o *openOptions) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithAdvice sets the madvise hint for mapped files. Default: AdviceRandom.
func WithAdvice(a Advice) OpenOption {
	return func(o *openOptions) {
		o.advice = a
	}
}

// WithSplitConfig sets the split heuristics used by composite Find. They
// must match the heuristics the dictionary was built with.
func WithSplitConfig(c split.Config) OpenOption {
	return func(o *openOptions) {
		o.splitConfig = c
	}
}

type buildOptions struct {
	mode           split.Mode
	splitConfig    split.Config
	blockSize      int
	workers        int
	tempDir        string
	locality       bool
	sharedLocality bool
	sharing        bool
	sharedIDLimit  uint32
	staging        bool
	compression    Compression
	ioLimit        int64
	memoryLimit    int64
	fs             FileSystem
	metrics        MetricsCollector
	logger         *Logger
	progressEvery  uint64
}

// BuildOption configures a Builder.
type BuildOption func(*buildOptions)

func defaultBuildOptions() buildOptions {
	return buildOptions{
		mode:          split.Last,
		splitConfig:   split.DefaultConfig(),
		workers:       1,
		sharing:       true,
		sharedIDLimit: split.MaxID,
		fs:            fs.Default,
		metrics:       NoopMetricsCollector{},
		logger:        NoopLogger(),
	}
}

// WithSplitMode selects the IRI split policy. Default: split.Last.
func WithSplitMode(m split.Mode) BuildOption {
	return func(o *buildOptions) {
		o.mode = m
	}
}

// WithBuildSplitConfig sets the PENULTIMATE and PROLONG thresholds.
func WithBuildSplitConfig(c split.Config) BuildOption {
	return func(o *buildOptions) {
		o.splitConfig = c
	}
}

// WithBlockSize sets the sorter block capacity in bytes.
// Default: 64MB
func WithBlockSize(n int) BuildOption {
	return func(o *buildOptions) {
		o.blockSize = n
	}
}

// WithWorkers sets how many blocks are sorted and spilled concurrently.
// Default: 1
func WithWorkers(n int) BuildOption {
	return func(o *buildOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithTempDir sets the directory for block and staging files.
// Default: the destination's directory.
func WithTempDir(dir string) BuildOption {
	return func(o *buildOptions) {
		o.tempDir = dir
	}
}

// WithLocality converts the output to the implicit-tree layout.
func WithLocality() BuildOption {
	return func(o *buildOptions) {
		o.locality = true
	}
}

// WithSharedLocality converts the shared dictionary to the implicit-tree
// layout before the second pass.
func WithSharedLocality() BuildOption {
	return func(o *buildOptions) {
		o.sharedLocality = true
	}
}

// WithoutSharing builds a single standalone dictionary.
func WithoutSharing() BuildOption {
	return func(o *buildOptions) {
		o.sharing = false
	}
}

// WithSharedIDLimit caps the shared ids stored in composite keys. Terms
// whose shared id exceeds the cap are stored verbatim and the overflow flag
// is set. Values above split.MaxID are clamped.
func WithSharedIDLimit(limit uint32) BuildOption {
	return func(o *buildOptions) {
		o.sharedIDLimit = min(limit, split.MaxID)
	}
}

// WithStaging records the input during the first pass and replays it for
// the second, so the Source is read once.
func WithStaging(c Compression) BuildOption {
	return func(o *buildOptions) {
		o.staging = true
		o.compression = c
	}
}

// WithIOLimit throttles block, merge and conversion writes.
func WithIOLimit(bytesPerSec int64) BuildOption {
	return func(o *buildOptions) {
		o.ioLimit = bytesPerSec
	}
}

// WithMemoryLimit bounds the total block memory.
func WithMemoryLimit(bytes int64) BuildOption {
	return func(o *buildOptions) {
		o.memoryLimit = bytes
	}
}

// WithFileSystem replaces the file system used for build output.
func WithFileSystem(fsys FileSystem) BuildOption {
	return func(o *buildOptions) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithMetrics configures a metrics collector.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &termdict.BasicMetricsCollector{}
//	b := termdict.NewBuilder(termdict.WithMetrics(metrics))
//	// ... build ...
//	stats := metrics.GetStats()
func WithMetrics(m MetricsCollector) BuildOption {
	return func(o *buildOptions) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithBuildLogger configures the build logger.
func WithBuildLogger(l *Logger) BuildOption {
	return func(o *buildOptions) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithProgressEvery logs merge progress every n strings.
func WithProgressEvery(n uint64) BuildOption {
	return func(o *buildOptions) {
		o.progressEvery = n
	}
}
