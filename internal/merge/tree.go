package merge

import "github.com/hupe1980/termdict/internal/fastcmp"

// Source yields byte strings in ascending order.
type Source interface {
	// Next returns the next string, or false when exhausted. The slice must
	// stay valid until the merge finishes.
	Next() ([]byte, bool)
}

// tree is a loser tree. Nodes N and N+1 have parent N/2; the M leaves sit
// at M..2M-1, the M-1 internal nodes at 1..M-1 and node 0 holds the winner.
type tree struct {
	nodes   []node
	sources []Source
	cmp     fastcmp.Func
}

type node struct {
	index int // loser for internal nodes, winner for node 0
	value []byte
	done  bool
}

func newTree(sources []Source, cmp fastcmp.Func) *tree {
	t := &tree{
		nodes:   make([]node, len(sources)*2),
		sources: sources,
		cmp:     cmp,
	}
	if len(sources) == 0 {
		return t
	}
	m := len(sources)
	for i := range sources {
		t.nodes[m+i].index = m + i
		t.pull(m + i)
	}
	winner := t.play(1)
	t.nodes[0] = t.nodes[winner]
	t.nodes[0].index = winner
	return t
}

// less orders exhausted leaves after everything else.
func (t *tree) less(a, b *node) bool {
	if a.done {
		return false
	}
	if b.done {
		return true
	}
	return t.cmp(a.value, b.value) < 0
}

func (t *tree) pull(leaf int) {
	n := &t.nodes[leaf]
	if v, ok := t.sources[leaf-len(t.sources)].Next(); ok {
		n.value, n.done = v, false
		return
	}
	n.value, n.done = nil, true
}

// play returns the winner below pos, recording losers on the way up.
func (t *tree) play(pos int) int {
	if pos >= len(t.nodes)/2 {
		return pos
	}
	left := t.play(pos * 2)
	right := t.play(pos*2 + 1)
	winner, loser := right, left
	if t.less(&t.nodes[left], &t.nodes[right]) {
		winner, loser = left, right
	}
	t.nodes[pos] = t.nodes[loser]
	t.nodes[pos].index = loser
	return winner
}

// empty reports whether every source is exhausted.
func (t *tree) empty() bool {
	return len(t.sources) == 0 || t.nodes[0].done
}

// min returns the current smallest value.
func (t *tree) min() []byte { return t.nodes[0].value }

// advance replaces the winner with its source's next value and replays
// the games on its path to the root.
func (t *tree) advance() {
	pos := t.nodes[0].index
	t.pull(pos)
	win := t.nodes[pos]
	for n := pos >> 1; n != 0; n >>= 1 {
		if t.less(&t.nodes[n], &win) {
			loser := t.nodes[n]
			t.nodes[n] = win
			t.nodes[n].index = pos
			pos = loser.index
			win = loser
		}
	}
	t.nodes[0] = win
	t.nodes[0].index = pos
}
