package termdict

import (
	"bytes"
	"cmp"
	"fmt"

	"github.com/hupe1980/termdict/internal/dictfile"
	"github.com/hupe1980/termdict/split"
)

// View is a non-copying two-part string: Head followed by Tail. For
// composite entries Head is the shared part; standalone entries have an
// empty Head. A View is invalidated by the next call on its Lookup and by
// closing the Dict.
type View struct {
	Head []byte
	Tail []byte
}

// Len returns the total length.
func (v View) Len() int { return len(v.Head) + len(v.Tail) }

// AppendTo appends the string to dst.
func (v View) AppendTo(dst []byte) []byte {
	return append(append(dst, v.Head...), v.Tail...)
}

// Bytes returns a copy of the string.
func (v View) Bytes() []byte {
	return v.AppendTo(make([]byte, 0, v.Len()))
}

func (v View) String() string {
	return string(v.Bytes())
}

// Equal reports whether the view spells b.
func (v View) Equal(b []byte) bool {
	return len(b) == v.Len() &&
		bytes.Equal(b[:len(v.Head)], v.Head) &&
		bytes.Equal(b[len(v.Head):], v.Tail)
}

// Lookup is a single-goroutine cursor over a Dict with private scratch
// space. Create one per goroutine with Dict.NewLookup.
type Lookup struct {
	d   *Dict
	key []byte
}

// NewLookup returns a cursor bound to d.
func (d *Dict) NewLookup() *Lookup {
	return &Lookup{d: d}
}

// Find returns the id of term, or NotFound.
func (l *Lookup) Find(term []byte) ID {
	d := l.d
	if !d.kind.Composite() {
		return d.find(term)
	}

	overflow := d.flags.Has(FlagSharedOverflow)
	p := d.splitter.Split(term)
	if p.Side != split.SideNone {
		sid := d.shared.find(p.Shared)
		if sid != NotFound && sid <= split.MaxID {
			if id := l.search(uint32(sid), p.Side, p.Local); id != NotFound || !overflow {
				return id
			}
		} else if !overflow {
			return NotFound
		}
	}
	return l.search(split.VerbatimID, split.SidePrefix, term)
}

// Get returns the string with id. ok is false when id is out of range.
func (l *Lookup) Get(id ID) (View, bool, error) {
	d := l.d
	if id < MinID || uint64(id) > uint64(d.n) {
		return View{}, false, nil
	}
	entry := d.store.Entry(int(id))
	if entry == nil {
		return View{}, false, &CorruptError{Path: d.path, Err: fmt.Errorf("entry %d exceeds the byte area", id)}
	}
	if !d.kind.Composite() {
		return View{Tail: entry}, true, nil
	}

	var sid uint32
	if d.embedded {
		sid = d.store.Tag(int(id)).ID()
	} else {
		var err error
		if sid, _, err = split.Decode(entry); err != nil {
			return View{}, false, &CorruptError{Path: d.path, Err: fmt.Errorf("entry %d: %w", id, err)}
		}
		entry = entry[split.KeyLen:]
	}
	if sid == split.VerbatimID {
		return View{Tail: entry}, true, nil
	}

	shared := d.shared.store.Entry(int(sid))
	if shared == nil {
		return View{}, false, fmt.Errorf("%w: entry %d names shared id %d, shared dictionary holds %d",
			ErrDanglingShared, id, sid, d.shared.n)
	}
	return View{Head: shared, Tail: entry}, true, nil
}

// Each calls fn for every id in ascending id order until fn returns an error.
func (l *Lookup) Each(fn func(id ID, v View) error) error {
	for id := MinID; uint64(id) <= uint64(l.d.n); id++ {
		v, _, err := l.Get(id)
		if err != nil {
			return err
		}
		if err := fn(id, v); err != nil {
			return err
		}
	}
	return nil
}

func (l *Lookup) search(sid uint32, side split.Side, local []byte) ID {
	d := l.d
	if d.embedded {
		return d.descendTagged(dictfile.MakeTag(sid, side), local)
	}
	l.key = split.AppendKey(l.key[:0], sid, side, local)
	return d.find(l.key)
}

// find searches raw entries.
func (d *Dict) find(q []byte) ID {
	if d.kind.Locality() {
		return d.descend(q)
	}
	return d.bisect(q)
}

func (d *Dict) bisect(q []byte) ID {
	lo, hi := 1, d.n
	for lo <= hi {
		mid := int(uint(lo+hi) >> 1)
		c := d.cmp(q, d.store.Entry(mid))
		switch {
		case c == 0:
			return ID(mid)
		case c < 0:
			hi = mid - 1
		default:
			lo = mid + 1
		}
	}
	return NotFound
}

func (d *Dict) descend(q []byte) ID {
	for k := 1; k <= d.n; {
		c := d.cmp(q, d.store.Entry(k))
		if c == 0 {
			return ID(k)
		}
		k *= 2
		if c > 0 {
			k++
		}
	}
	return NotFound
}

func (d *Dict) descendTagged(t dictfile.Tag, local []byte) ID {
	for k := 1; k <= d.n; {
		c := d.compareTagged(t, local, k)
		if c == 0 {
			return ID(k)
		}
		k *= 2
		if c > 0 {
			k++
		}
	}
	return NotFound
}

// compareTagged orders by shared id, then side, then local bytes, which is
// the order of the encoded keys.
func (d *Dict) compareTagged(t dictfile.Tag, local []byte, k int) int {
	et := d.store.Tag(k)
	if c := cmp.Compare(t.ID(), et.ID()); c != 0 {
		return c
	}
	if c := cmp.Compare(split.SideRank(t.Side()), split.SideRank(et.Side())); c != 0 {
		return c
	}
	return d.cmp(local, d.store.Entry(k))
}

// compareEntries compares the stored keys of slots a and b.
func (d *Dict) compareEntries(a, b int) int {
	if d.embedded {
		return d.compareTagged(d.store.Tag(a), d.store.Entry(a), b)
	}
	return d.cmp(d.store.Entry(a), d.store.Entry(b))
}
