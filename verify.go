package termdict

import (
	"context"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hashicorp/go-multierror"
)

// maxViolations stops Verify after this many problems.
const maxViolations = 64

var errTooManyViolations = errors.New("too many violations, verification stopped")

// VerifyStats summarizes a successful or failed verification.
type VerifyStats struct {
	Entries    int
	Violations int
}

// Verify checks every id of d: each resolves (density), its string finds
// the same id again (round trip and uniqueness), and the stored keys are
// strictly increasing in search order. Violations are aggregated into a
// *multierror.Error.
func Verify(ctx context.Context, d *Dict) (VerifyStats, error) {
	var result *multierror.Error
	st := VerifyStats{Entries: d.Len()}
	report := func(err error) bool {
		st.Violations++
		result = multierror.Append(result, err)
		if st.Violations >= maxViolations {
			result = multierror.Append(result, errTooManyViolations)
			return false
		}
		return true
	}

	seen := roaring64.New()
	lk := d.NewLookup()
	get := d.NewLookup()
	var buf []byte
	for id := MinID; uint64(id) <= uint64(d.n); id++ {
		if id%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return st, err
			}
		}
		v, ok, err := get.Get(id)
		if err != nil || !ok {
			if err == nil {
				err = fmt.Errorf("id %d: no value", id)
			}
			if !report(err) {
				return st, result.ErrorOrNil()
			}
			continue
		}
		buf = v.AppendTo(buf[:0])
		found := lk.Find(buf)
		switch {
		case found == NotFound:
			err = fmt.Errorf("id %d: string %q not found", id, buf)
		case found != id && seen.Contains(uint64(found)):
			err = fmt.Errorf("id %d: string %q duplicates id %d", id, buf, found)
		case found != id:
			err = fmt.Errorf("id %d: string %q resolves to id %d", id, buf, found)
		}
		seen.Add(uint64(id))
		if err != nil && !report(err) {
			return st, result.ErrorOrNil()
		}
	}

	if n := uint64(d.n); seen.GetCardinality() != n || (n > 0 && seen.Maximum() != n) {
		report(fmt.Errorf("id space not dense: %d of %d ids resolve", seen.GetCardinality(), n))
	}

	if err := d.checkOrder(ctx, report); err != nil {
		return st, err
	}
	return st, result.ErrorOrNil()
}

// checkOrder walks the slots in key order, which is id order for sorted
// layouts and in-order traversal for locality layouts.
func (d *Dict) checkOrder(ctx context.Context, report func(error) bool) error {
	prev, i := 0, 0
	visit := func(k int) bool {
		i++
		if i%4096 == 0 && ctx.Err() != nil {
			return false
		}
		if prev != 0 && d.compareEntries(prev, k) >= 0 {
			if !report(fmt.Errorf("slot %d does not sort after slot %d", k, prev)) {
				return false
			}
		}
		prev = k
		return true
	}
	if d.kind.Locality() {
		inorder(d.n, visit)
	} else {
		for k := 1; k <= d.n; k++ {
			if !visit(k) {
				break
			}
		}
	}
	return ctx.Err()
}

// inorder visits the slots of an n-node implicit tree in key order.
func inorder(n int, visit func(k int) bool) {
	var stack []int
	k := 1
	for k <= n || len(stack) > 0 {
		for ; k <= n; k *= 2 {
			stack = append(stack, k)
		}
		k = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(k) {
			return
		}
		k = 2*k + 1
	}
}
