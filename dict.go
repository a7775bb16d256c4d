package termdict

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/hupe1980/termdict/internal/dictfile"
	"github.com/hupe1980/termdict/internal/fastcmp"
	"github.com/hupe1980/termdict/internal/locality"
	"github.com/hupe1980/termdict/split"
)

// ID identifies a string within one dictionary.
type ID uint64

const (
	// NotFound is returned by Find for absent strings.
	NotFound ID = 0
	// MinID is the smallest valid id.
	MinID ID = 1
)

// SharedName is the file name of a composite dictionary's shared
// dictionary, located next to it.
const SharedName = "shared"

// Flags is the header flag byte of a dictionary file.
type Flags = dictfile.Flags

const (
	FlagWideOffsets    = dictfile.FlagWideOffsets
	FlagShared         = dictfile.FlagShared
	FlagSharedOverflow = dictfile.FlagSharedOverflow
	FlagLocality       = dictfile.FlagLocality
	FlagEmbeddedIDs    = dictfile.FlagEmbeddedIDs
)

// Kind is the concrete layout of a dictionary, derived from its flags.
type Kind uint8

const (
	// KindSorted stores strings in sorted order.
	KindSorted Kind = iota
	// KindLocality stores strings as an implicit binary search tree.
	KindLocality
	// KindCompositeSorted stores sorted (shared id, local) keys.
	KindCompositeSorted
	// KindCompositeLocality stores (shared id, local) keys as an implicit tree.
	KindCompositeLocality
)

func (k Kind) String() string {
	switch k {
	case KindSorted:
		return "sorted"
	case KindLocality:
		return "locality"
	case KindCompositeSorted:
		return "composite-sorted"
	case KindCompositeLocality:
		return "composite-locality"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Composite reports whether k resolves through a shared dictionary.
func (k Kind) Composite() bool { return k == KindCompositeSorted || k == KindCompositeLocality }

// Locality reports whether k uses the implicit-tree layout.
func (k Kind) Locality() bool { return k == KindLocality || k == KindCompositeLocality }

func kindOf(f Flags) Kind {
	switch {
	case f.Has(FlagShared | FlagLocality):
		return KindCompositeLocality
	case f.Has(FlagShared):
		return KindCompositeSorted
	case f.Has(FlagLocality):
		return KindLocality
	default:
		return KindSorted
	}
}

// Dict is an open, immutable dictionary. It is safe for concurrent use;
// lookups go through per-goroutine Lookup cursors.
type Dict struct {
	path     string
	store    *dictfile.Store
	kind     Kind
	flags    Flags
	n        int
	cmp      fastcmp.Func
	splitter split.Splitter
	embedded bool
	emptyID  ID
	logger   *Logger

	shared     *Dict
	ownsShared bool

	mu     sync.Mutex
	refs   int
	closed bool
}

// Open maps the dictionary at path. Composite dictionaries need
// WithShared; OpenSet resolves the shared dictionary automatically.
func Open(path string, opts ...OpenOption) (*Dict, error) {
	o := defaultOpenOptions()
	for _, opt := range opts {
		opt(&o)
	}
	st, err := dictfile.OpenFile(path, o.advice.pattern())
	if err != nil {
		err = translateError(path, err)
		o.logger.LogOpen(context.Background(), path, 0, 0, err)
		return nil, err
	}
	return newDict(path, st, o)
}

// OpenSet opens the dictionary at path together with its sibling shared
// dictionary when it is composite. Closing the returned Dict closes both.
func OpenSet(path string, opts ...OpenOption) (*Dict, error) {
	o := defaultOpenOptions()
	for _, opt := range opts {
		opt(&o)
	}
	st, err := dictfile.OpenFile(path, o.advice.pattern())
	if err != nil {
		return nil, translateError(path, err)
	}
	if !st.Header().Flags.Has(FlagShared) {
		return newDict(path, st, o)
	}

	sharedPath := filepath.Join(filepath.Dir(path), SharedName)
	sst, err := dictfile.OpenFile(sharedPath, o.advice.pattern())
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("open shared dictionary: %w", translateError(sharedPath, err))
	}
	return assemble(path, st, sharedPath, sst, o)
}

// assemble opens a composite over a freshly loaded shared store it owns.
func assemble(path string, st *dictfile.Store, sharedPath string, sst *dictfile.Store, o openOptions) (*Dict, error) {
	so := o
	so.shared = nil
	shared, err := newDict(sharedPath, sst, so)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	o.shared = shared
	d, err := newDict(path, st, o)
	if err != nil {
		_ = shared.Close()
		return nil, err
	}
	d.ownsShared = true
	return d, nil
}

// newDict takes ownership of st; it closes st on failure.
func newDict(path string, st *dictfile.Store, o openOptions) (d *Dict, err error) {
	defer func() {
		if err != nil {
			_ = st.Close()
		}
		o.logger.LogOpen(context.Background(), path, kindOf(st.Header().Flags), st.Len(), err)
	}()

	h := st.Header()
	d = &Dict{
		path:     path,
		store:    st,
		kind:     kindOf(h.Flags),
		flags:    h.Flags,
		n:        st.Len(),
		cmp:      fastcmp.Select(o.fastPath),
		splitter: split.Splitter{Mode: h.Flags.Mode(), Config: o.splitConfig},
		embedded: h.Flags.Has(FlagEmbeddedIDs),
		logger:   o.logger,
	}

	if d.kind.Composite() {
		if o.shared == nil {
			return nil, fmt.Errorf("%w: %s", ErrSharedRequired, path)
		}
		if err := o.shared.acquire(); err != nil {
			return nil, err
		}
		if o.shared.kind.Composite() {
			o.shared.release()
			return nil, fmt.Errorf("termdict: shared dictionary %s is itself composite", o.shared.path)
		}
		d.shared = o.shared
	}

	d.emptyID = d.findEmpty()
	return d, nil
}

func (d *Dict) findEmpty() ID {
	if d.kind.Composite() {
		return d.NewLookup().Find(nil)
	}
	var id ID
	switch {
	case d.n == 0:
		return NotFound
	case d.kind == KindLocality:
		id = ID(locality.Leftmost(uint64(d.n)))
	default:
		id = MinID
	}
	if len(d.store.Entry(int(id))) != 0 {
		return NotFound
	}
	return id
}

func (d *Dict) acquire() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.refs++
	return nil
}

func (d *Dict) release() {
	d.mu.Lock()
	d.refs--
	d.mu.Unlock()
}

// Close releases the mapping. It fails with ErrInUse while composite
// dictionaries reference d, and is a no-op once closed.
func (d *Dict) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	if d.refs > 0 {
		refs := d.refs
		d.mu.Unlock()
		return fmt.Errorf("%w: %d composite dictionaries", ErrInUse, refs)
	}
	d.closed = true
	d.mu.Unlock()

	err := d.store.Close()
	if d.shared != nil {
		d.shared.release()
		if d.ownsShared {
			if serr := d.shared.Close(); err == nil {
				err = serr
			}
		}
	}
	return err
}

// Path returns the file or blob name d was opened from.
func (d *Dict) Path() string { return d.path }

// Len returns the number of strings.
func (d *Dict) Len() int { return d.n }

// Kind returns the layout.
func (d *Dict) Kind() Kind { return d.kind }

// Flags returns the header flags.
func (d *Dict) Flags() Flags { return d.flags }

// Shared returns the shared dictionary of a composite, or nil.
func (d *Dict) Shared() *Dict { return d.shared }

// EmptyID returns the id of the empty string, or NotFound.
func (d *Dict) EmptyID() ID { return d.emptyID }

// Find returns the id of term, or NotFound. Use a Lookup in loops.
func (d *Dict) Find(term []byte) ID {
	return d.NewLookup().Find(term)
}

// Get returns a copy of the string with id.
func (d *Dict) Get(id ID) ([]byte, bool, error) {
	v, ok, err := d.NewLookup().Get(id)
	if !ok || err != nil {
		return nil, ok, err
	}
	return v.Bytes(), true, nil
}
