package rbtree

import (
	clobErrors "github.com/merl-labs/clob/pkg/errors"
	"github.com/merl-labs/clob/pkg/types"
)

// Accessor resolves a BlockIndex to its backing slot bytes. Market and
// global accounts implement this directly over their dynamic region (it is
// the same Slot method internal/alloc.Allocator exposes).
type Accessor interface {
	Slot(idx types.BlockIndex) []byte
}

// Comparator orders two payloads (the bytes following the tree header).
// It must be a strict weak order consistent with the tree's tie-break
// rules (§4.2: bids tie-break by descending sequence, asks by ascending).
type Comparator func(a, b []byte) int

// RootRef is the tree's root slot, persisted by the caller (typically a
// handful of bytes inside a market or global account header). It exists
// because the root cannot be addressed as a native Go pointer: it is a
// field inside a byte slice that must round-trip through serialization.
type RootRef interface {
	Get() types.BlockIndex
	Set(types.BlockIndex)
}

// Tree is a red-black tree view over an Accessor's slots. It holds no
// state of its own beyond the root reference, which lives in the owning
// account's header (Header.BidsRoot etc.) and is read/written through
// RootRef so every mutating operation persists immediately.
type Tree struct {
	acc  Accessor
	cmp  Comparator
	root RootRef
}

// New constructs a Tree view over root, the caller's persisted root slot.
func New(acc Accessor, cmp Comparator, root RootRef) *Tree {
	return &Tree{acc: acc, cmp: cmp, root: root}
}

// Root returns the current root index (NilBlock if empty).
func (t *Tree) Root() types.BlockIndex { return t.root.Get() }

// Empty reports whether the tree has no nodes.
func (t *Tree) Empty() bool { return !t.root.Get().Valid() }

func (t *Tree) slot(idx types.BlockIndex) []byte { return t.acc.Slot(idx) }

func (t *Tree) colorOf(idx types.BlockIndex) Color {
	if !idx.Valid() {
		return Black
	}
	return color(t.slot(idx))
}

func (t *Tree) setColorOf(idx types.BlockIndex, c Color) {
	if idx.Valid() {
		setColor(t.slot(idx), c)
	}
}

func (t *Tree) leftOf(idx types.BlockIndex) types.BlockIndex {
	if !idx.Valid() {
		return types.NilBlock
	}
	return left(t.slot(idx))
}

func (t *Tree) rightOf(idx types.BlockIndex) types.BlockIndex {
	if !idx.Valid() {
		return types.NilBlock
	}
	return right(t.slot(idx))
}

func (t *Tree) parentOf(idx types.BlockIndex) types.BlockIndex {
	if !idx.Valid() {
		return types.NilBlock
	}
	return parent(t.slot(idx))
}

func (t *Tree) setLeftOf(idx, v types.BlockIndex) {
	if idx.Valid() {
		setLeft(t.slot(idx), v)
	}
}
func (t *Tree) setRightOf(idx, v types.BlockIndex) {
	if idx.Valid() {
		setRight(t.slot(idx), v)
	}
}
func (t *Tree) setParentOf(idx, v types.BlockIndex) {
	if idx.Valid() {
		setParent(t.slot(idx), v)
	}
}

func (t *Tree) compare(a, b types.BlockIndex) int {
	return t.cmp(Payload(t.slot(a)), Payload(t.slot(b)))
}

// leftRotate and rightRotate are the standard CLRS rotations, operating on
// BlockIndex in place of pointers.
func (t *Tree) leftRotate(x types.BlockIndex) {
	y := t.rightOf(x)
	t.setRightOf(x, t.leftOf(y))
	if t.leftOf(y).Valid() {
		t.setParentOf(t.leftOf(y), x)
	}
	t.setParentOf(y, t.parentOf(x))
	xp := t.parentOf(x)
	if !xp.Valid() {
		t.root.Set(y)
	} else if x == t.leftOf(xp) {
		t.setLeftOf(xp, y)
	} else {
		t.setRightOf(xp, y)
	}
	t.setLeftOf(y, x)
	t.setParentOf(x, y)
}

func (t *Tree) rightRotate(x types.BlockIndex) {
	y := t.leftOf(x)
	t.setLeftOf(x, t.rightOf(y))
	if t.rightOf(y).Valid() {
		t.setParentOf(t.rightOf(y), x)
	}
	t.setParentOf(y, t.parentOf(x))
	xp := t.parentOf(x)
	if !xp.Valid() {
		t.root.Set(y)
	} else if x == t.rightOf(xp) {
		t.setRightOf(xp, y)
	} else {
		t.setLeftOf(xp, y)
	}
	t.setRightOf(y, x)
	t.setParentOf(x, y)
}

// Insert links the already-allocated, already-payload-populated slot idx
// into the tree in BST order, then rebalances. Callers must have called
// ResetHeader(slot) (or equivalent) on idx first so it starts as an
// unlinked red leaf.
func (t *Tree) Insert(idx types.BlockIndex) {
	var y types.BlockIndex = types.NilBlock
	x := t.root.Get()
	for x.Valid() {
		y = x
		if t.compare(idx, x) < 0 {
			x = t.leftOf(x)
		} else {
			x = t.rightOf(x)
		}
	}
	t.setParentOf(idx, y)
	if !y.Valid() {
		t.root.Set(idx)
	} else if t.compare(idx, y) < 0 {
		t.setLeftOf(y, idx)
	} else {
		t.setRightOf(y, idx)
	}
	t.setLeftOf(idx, types.NilBlock)
	t.setRightOf(idx, types.NilBlock)
	t.setColorOf(idx, Red)
	t.insertFixup(idx)
}

func (t *Tree) insertFixup(z types.BlockIndex) {
	for t.colorOf(t.parentOf(z)) == Red {
		zp := t.parentOf(z)
		zpp := t.parentOf(zp)
		if zp == t.leftOf(zpp) {
			y := t.rightOf(zpp)
			if t.colorOf(y) == Red {
				t.setColorOf(zp, Black)
				t.setColorOf(y, Black)
				t.setColorOf(zpp, Red)
				z = zpp
			} else {
				if z == t.rightOf(zp) {
					z = zp
					t.leftRotate(z)
					zp = t.parentOf(z)
					zpp = t.parentOf(zp)
				}
				t.setColorOf(zp, Black)
				t.setColorOf(zpp, Red)
				t.rightRotate(zpp)
			}
		} else {
			y := t.leftOf(zpp)
			if t.colorOf(y) == Red {
				t.setColorOf(zp, Black)
				t.setColorOf(y, Black)
				t.setColorOf(zpp, Red)
				z = zpp
			} else {
				if z == t.leftOf(zp) {
					z = zp
					t.rightRotate(z)
					zp = t.parentOf(z)
					zpp = t.parentOf(zp)
				}
				t.setColorOf(zp, Black)
				t.setColorOf(zpp, Red)
				t.leftRotate(zpp)
			}
		}
	}
	t.setColorOf(t.root.Get(), Black)
}

// transplant replaces the subtree rooted at u with the subtree rooted at
// v, per CLRS. It does not touch v's children.
func (t *Tree) transplant(u, v types.BlockIndex) {
	up := t.parentOf(u)
	if !up.Valid() {
		t.root.Set(v)
	} else if u == t.leftOf(up) {
		t.setLeftOf(up, v)
	} else {
		t.setRightOf(up, v)
	}
	t.setParentOf(v, up)
}

func (t *Tree) minimum(x types.BlockIndex) types.BlockIndex {
	for t.leftOf(x).Valid() {
		x = t.leftOf(x)
	}
	return x
}

func (t *Tree) maximum(x types.BlockIndex) types.BlockIndex {
	for t.rightOf(x).Valid() {
		x = t.rightOf(x)
	}
	return x
}

// Min returns the smallest node in the tree, or NilBlock if empty.
func (t *Tree) Min() types.BlockIndex {
	if t.Empty() {
		return types.NilBlock
	}
	return t.minimum(t.root.Get())
}

// Max returns the largest node in the tree, or NilBlock if empty.
func (t *Tree) Max() types.BlockIndex {
	if t.Empty() {
		return types.NilBlock
	}
	return t.maximum(t.root.Get())
}

// Successor returns the in-order successor of idx, or NilBlock if idx is
// the maximum.
func (t *Tree) Successor(idx types.BlockIndex) types.BlockIndex {
	if t.rightOf(idx).Valid() {
		return t.minimum(t.rightOf(idx))
	}
	x, y := idx, t.parentOf(idx)
	for y.Valid() && x == t.rightOf(y) {
		x = y
		y = t.parentOf(y)
	}
	return y
}

// Predecessor returns the in-order predecessor of idx, or NilBlock if idx
// is the minimum.
func (t *Tree) Predecessor(idx types.BlockIndex) types.BlockIndex {
	if t.leftOf(idx).Valid() {
		return t.maximum(t.leftOf(idx))
	}
	x, y := idx, t.parentOf(idx)
	for y.Valid() && x == t.leftOf(y) {
		x = y
		y = t.parentOf(y)
	}
	return y
}

// Lookup finds the node whose payload compares equal to key, or NilBlock.
func (t *Tree) Lookup(key []byte) types.BlockIndex {
	x := t.root.Get()
	for x.Valid() {
		c := t.cmp(key, Payload(t.slot(x)))
		switch {
		case c == 0:
			return x
		case c < 0:
			x = t.leftOf(x)
		default:
			x = t.rightOf(x)
		}
	}
	return types.NilBlock
}

// Remove unlinks idx from the tree using identity-preserving CLRS
// deletion: when idx has two children, its in-order successor's own slot
// index is relinked into idx's structural position and idx is left
// unlinked for the caller to free, rather than swapping payloads between
// slots. This is load-bearing
// (see DESIGN.md): other trees and payloads hold cross-references by
// BlockIndex (a RestingOrder's seat index, a GlobalTrader's deposit
// index), and swapping payloads between slots would silently invalidate
// any such reference pointed at the node that moved.
func (t *Tree) Remove(z types.BlockIndex) {
	y := z
	yOriginalColor := t.colorOf(y)
	var x, xParent types.BlockIndex

	switch {
	case !t.leftOf(z).Valid():
		x = t.rightOf(z)
		xParent = t.parentOf(z)
		t.transplant(z, t.rightOf(z))
	case !t.rightOf(z).Valid():
		x = t.leftOf(z)
		xParent = t.parentOf(z)
		t.transplant(z, t.leftOf(z))
	default:
		y = t.minimum(t.rightOf(z))
		yOriginalColor = t.colorOf(y)
		x = t.rightOf(y)
		if t.parentOf(y) == z {
			xParent = y
		} else {
			xParent = t.parentOf(y)
			t.transplant(y, t.rightOf(y))
			t.setRightOf(y, t.rightOf(z))
			t.setParentOf(t.rightOf(y), y)
		}
		t.transplant(z, y)
		t.setLeftOf(y, t.leftOf(z))
		t.setParentOf(t.leftOf(y), y)
		t.setColorOf(y, t.colorOf(z))
	}

	if yOriginalColor == Black {
		t.deleteFixup(x, xParent)
	}
}

// deleteFixup rebalances after Remove. x may be NilBlock (the sentinel
// "doubly black nil"), in which case xParent tracks where it structurally
// sits since a NilBlock carries no parent pointer of its own.
func (t *Tree) deleteFixup(x, xParent types.BlockIndex) {
	for x != t.root.Get() && t.colorOf(x) == Black {
		if x == t.leftOf(xParent) {
			w := t.rightOf(xParent)
			if t.colorOf(w) == Red {
				t.setColorOf(w, Black)
				t.setColorOf(xParent, Red)
				t.leftRotate(xParent)
				w = t.rightOf(xParent)
			}
			if t.colorOf(t.leftOf(w)) == Black && t.colorOf(t.rightOf(w)) == Black {
				t.setColorOf(w, Red)
				x = xParent
				xParent = t.parentOf(x)
			} else {
				if t.colorOf(t.rightOf(w)) == Black {
					t.setColorOf(t.leftOf(w), Black)
					t.setColorOf(w, Red)
					t.rightRotate(w)
					w = t.rightOf(xParent)
				}
				t.setColorOf(w, t.colorOf(xParent))
				t.setColorOf(xParent, Black)
				t.setColorOf(t.rightOf(w), Black)
				t.leftRotate(xParent)
				x = t.root.Get()
				xParent = types.NilBlock
			}
		} else {
			w := t.leftOf(xParent)
			if t.colorOf(w) == Red {
				t.setColorOf(w, Black)
				t.setColorOf(xParent, Red)
				t.rightRotate(xParent)
				w = t.leftOf(xParent)
			}
			if t.colorOf(t.rightOf(w)) == Black && t.colorOf(t.leftOf(w)) == Black {
				t.setColorOf(w, Red)
				x = xParent
				xParent = t.parentOf(x)
			} else {
				if t.colorOf(t.leftOf(w)) == Black {
					t.setColorOf(t.rightOf(w), Black)
					t.setColorOf(w, Red)
					t.leftRotate(w)
					w = t.leftOf(xParent)
				}
				t.setColorOf(w, t.colorOf(xParent))
				t.setColorOf(xParent, Black)
				t.setColorOf(t.leftOf(w), Black)
				t.rightRotate(xParent)
				x = t.root.Get()
				xParent = types.NilBlock
			}
		}
	}
	t.setColorOf(x, Black)
}

// InOrder walks the tree in ascending order, calling fn on each index
// until fn returns false or the walk is exhausted.
func (t *Tree) InOrder(fn func(idx types.BlockIndex) bool) {
	for idx := t.Min(); idx.Valid(); idx = t.Successor(idx) {
		if !fn(idx) {
			return
		}
	}
}

// ReverseOrder walks the tree in descending order.
func (t *Tree) ReverseOrder(fn func(idx types.BlockIndex) bool) {
	for idx := t.Max(); idx.Valid(); idx = t.Predecessor(idx) {
		if !fn(idx) {
			return
		}
	}
}

// Validate checks the BST ordering, red-red, and equal-black-height
// invariants over the whole tree, reporting the first violation found as
// a Structural error (§7, §8).
func (t *Tree) Validate() error {
	if t.Empty() {
		return nil
	}
	if t.colorOf(t.root.Get()) != Black {
		return clobErrors.New(clobErrors.ErrCorruptTree, "root is not black")
	}
	_, err := t.validateNode(t.root.Get())
	return err
}

func (t *Tree) validateNode(idx types.BlockIndex) (blackHeight int, err error) {
	if !idx.Valid() {
		return 1, nil
	}
	l, r := t.leftOf(idx), t.rightOf(idx)

	if l.Valid() {
		if t.compare(l, idx) > 0 {
			return 0, clobErrors.New(clobErrors.ErrCorruptTree, "left child out of order")
		}
		if t.parentOf(l) != idx {
			return 0, clobErrors.New(clobErrors.ErrCorruptTree, "left child parent mismatch")
		}
	}
	if r.Valid() {
		if t.compare(r, idx) < 0 {
			return 0, clobErrors.New(clobErrors.ErrCorruptTree, "right child out of order")
		}
		if t.parentOf(r) != idx {
			return 0, clobErrors.New(clobErrors.ErrCorruptTree, "right child parent mismatch")
		}
	}
	if t.colorOf(idx) == Red {
		if t.colorOf(l) == Red || t.colorOf(r) == Red {
			return 0, clobErrors.New(clobErrors.ErrCorruptTree, "red node has red child")
		}
	}

	lh, err := t.validateNode(l)
	if err != nil {
		return 0, err
	}
	rh, err := t.validateNode(r)
	if err != nil {
		return 0, err
	}
	if lh != rh {
		return 0, clobErrors.New(clobErrors.ErrCorruptTree, "unequal black height across subtrees")
	}
	if t.colorOf(idx) == Black {
		lh++
	}
	return lh, nil
}
