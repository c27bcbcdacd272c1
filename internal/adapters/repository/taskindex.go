package repository

import (
	"math/rand/v2"
	"time"
)

// taskIndex orders tasks newest first with a size-augmented treap so that
// paging by offset costs O(log n + limit).
//
// Ordering: createdAt DESC, then id ASC. "less" means listed earlier, so an
// in-order walk yields the listing front to back.
type taskIndex struct {
	root *node
}

type indexKey struct {
	at int64
	id string
}

func keyOf(id string, createdAt time.Time) indexKey {
	return indexKey{at: createdAt.UnixNano(), id: id}
}

type node struct {
	key   indexKey
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func less(a, b indexKey) bool {
	if a.at != b.at {
		return a.at > b.at
	}
	return a.id < b.id
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, k indexKey, prio uint64) *node {
	if n == nil {
		return &node{key: k, prio: prio, size: 1}
	}
	if less(k, n.key) {
		n.left = insert(n.left, k, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, k, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, k indexKey) *node {
	if n == nil {
		return nil
	}
	switch {
	case k == n.key:
		// Rotate the higher priority child up until the node is a leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, k)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, k)
		}
	case less(k, n.key):
		n.left = deleteNode(n.left, k)
	default:
		n.right = deleteNode(n.right, k)
	}
	fix(n)
	return n
}

// collect appends up to limit ids starting at the offset-th position.
func collect(n *node, offset, limit int, out []string) []string {
	if n == nil || len(out) >= limit {
		return out
	}
	leftSize := nsize(n.left)
	if offset < leftSize {
		out = collect(n.left, offset, limit, out)
	}
	if len(out) >= limit {
		return out
	}
	if offset <= leftSize {
		out = append(out, n.key.id)
	}
	rest := offset - leftSize - 1
	if rest < 0 {
		rest = 0
	}
	return collect(n.right, rest, limit, out)
}

func (t *taskIndex) insert(k indexKey) {
	t.root = insert(t.root, k, rand.Uint64())
}

func (t *taskIndex) remove(k indexKey) {
	t.root = deleteNode(t.root, k)
}

func (t *taskIndex) len() int {
	return nsize(t.root)
}

// page returns the ids at positions [offset, offset+limit).
func (t *taskIndex) page(offset, limit int) []string {
	if limit <= 0 || offset >= t.len() {
		return nil
	}
	return collect(t.root, offset, limit, make([]string, 0, min(limit, t.len()-offset)))
}

// walk visits ids front to back until fn returns false.
func (t *taskIndex) walk(fn func(id string) bool) {
	var visit func(n *node) bool
	visit = func(n *node) bool {
		if n == nil {
			return true
		}
		if !visit(n.left) {
			return false
		}
		if !fn(n.key.id) {
			return false
		}
		return visit(n.right)
	}
	visit(t.root)
}

// last returns the oldest key.
func (t *taskIndex) last() (indexKey, bool) {
	n := t.root
	if n == nil {
		return indexKey{}, false
	}
	for n.right != nil {
		n = n.right
	}
	return n.key, true
}
