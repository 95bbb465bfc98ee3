// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Free index: top-down splay tree, keyed by size, with duplicate side-lists
// (spec.md §4.8). Tree structure (left/right plus a list_start pointer) is
// maintained only on each size's tree representative ("head"); further free
// blocks of the same size hang off the head's duplicate list and never
// touch the tree at all. The header's color bit (block.go) distinguishes
// the two: set on a head, clear on a duplicate.
//
// A node has exactly three link words, and their meaning depends on its role
// (spec.md §9, "Union of link meanings"): {left, right, list_start} when the
// node is a tree representative, {prev, next, parent} when it is a
// duplicate-list member. A representative never stores its own parent
// directly — only the *first* duplicate in its side-list caches it, which is
// exactly enough information to promote that duplicate into the tree without
// a re-splay (spec.md §4.8's "parent-in-head" note). Removing the side-list's
// head duplicate by address still costs one splay, to find its
// representative. All other duplicates carry a reserved-null parent.
//
// The splay itself follows Sleator & Tarjan's top-down algorithm directly;
// every reattachment that changes a representative's true parent goes
// through attachLeft/attachRight, which keep that cached parent in sync
// whenever one exists.

package halloc

func (s *Segment) treeLeft(a Addr) Addr       { return Addr(s.readWord(int(a) + wordSize)) }
func (s *Segment) setTreeLeft(a Addr, v Addr) { s.writeWord(int(a)+wordSize, uint64(v)) }
func (s *Segment) treeRight(a Addr) Addr      { return Addr(s.readWord(int(a) + 2*wordSize)) }
func (s *Segment) setTreeRight(a Addr, v Addr) {
	s.writeWord(int(a)+2*wordSize, uint64(v))
}

// listStart holds, on a representative, the address of its duplicate
// side-list's first entry, or sentinelAddr if the size is unique.
func (s *Segment) listStart(a Addr) Addr { return Addr(s.readWord(int(a) + 3*wordSize)) }
func (s *Segment) setListStart(a Addr, v Addr) {
	s.writeWord(int(a)+3*wordSize, uint64(v))
}

func (s *Segment) dupPrev(a Addr) Addr       { return Addr(s.readWord(int(a) + wordSize)) }
func (s *Segment) setDupPrev(a Addr, v Addr) { s.writeWord(int(a)+wordSize, uint64(v)) }
func (s *Segment) dupNext(a Addr) Addr       { return Addr(s.readWord(int(a) + 2*wordSize)) }
func (s *Segment) setDupNext(a Addr, v Addr) { s.writeWord(int(a)+2*wordSize, uint64(v)) }

// dupParent is only meaningful on a side-list's first entry: the cached
// back-reference to its representative's true parent. Every later entry in
// the same chain keeps the reserved null (sentinelAddr) here.
func (s *Segment) dupParent(a Addr) Addr { return Addr(s.readWord(int(a) + 3*wordSize)) }
func (s *Segment) setDupParent(a Addr, v Addr) {
	s.writeWord(int(a)+3*wordSize, uint64(v))
}

// isHead reports whether a carries real tree structure (as opposed to
// being a pure duplicate-list entry).
func (s *Segment) isHead(a Addr) bool { return headerColor(s.header(a)) }

// setColor flips the header's color bit; footers mirror headers verbatim
// for free blocks, so it rewrites both, matching setLeftAllocated's pattern
// in block.go.
func (s *Segment) setColor(a Addr, color bool) {
	h := s.header(a)
	if color {
		h |= colorBit
	} else {
		h &^= colorBit
	}
	s.setHeader(a, h)
	if !headerAlloc(h) {
		s.setFooter(a, headerSize(h), h)
	}
}

// setRepresentativeParent records parent as rep's true parent, but only has
// anywhere to put it if rep currently has a duplicate: the cache lives in
// that duplicate's parent slot, not on rep itself. A unique-size
// representative's parent is never stored anywhere, which is fine — it can
// only ever be discovered again through a splay, and a unique representative
// has no duplicate to promote in O(1) either way.
func (s *Segment) setRepresentativeParent(rep, parent Addr) {
	if rep == sentinelAddr {
		return
	}
	if first := s.listStart(rep); first != sentinelAddr {
		s.setDupParent(first, parent)
	}
}

// attachLeft/attachRight set a parent's child link and, when the child is a
// representative with a duplicate, update that duplicate's cached parent in
// the same step, so the cache can never drift from the tree's real shape.
func (s *Segment) attachLeft(parent, child Addr) {
	s.setTreeLeft(parent, child)
	s.setRepresentativeParent(child, parent)
}

func (s *Segment) attachRight(parent, child Addr) {
	s.setTreeRight(parent, child)
	s.setRepresentativeParent(child, parent)
}

type splayIndex struct {
	root  Addr
	count int64
}

func newSplayIndex() *splayIndex { return &splayIndex{root: sentinelAddr} }

func (x *splayIndex) Name() string { return "splay tree" }

// MinBlockSize: header + two shared link words + list_start/parent + footer.
func (x *splayIndex) MinBlockSize() int { return 5 * wordSize }

func (x *splayIndex) Reset(seg *Segment, addr Addr) {
	x.root = addr
	x.count = 1
	seg.setTreeLeft(addr, sentinelAddr)
	seg.setTreeRight(addr, sentinelAddr)
	seg.setListStart(addr, sentinelAddr)
	seg.setColor(addr, true)
}

// splay performs one top-down splay of the tree rooted at root around key,
// bringing the node with that size (or, failing that, its in-order
// predecessor or successor) to the root. Ported directly from Sleator &
// Tarjan's "top down splaying", with every reattachment routed through
// attachLeft/attachRight so a rotated representative's cached parent (if it
// has one) always reflects its current true parent.
func (x *splayIndex) splay(seg *Segment, key uint64, root Addr) Addr {
	if root == sentinelAddr {
		return sentinelAddr
	}

	leftTreeRoot, rightTreeRoot := sentinelAddr, sentinelAddr
	l, r := sentinelAddr, sentinelAddr
	t := root

splayLoop:
	for {
		tSize := seg.sizeOf(t)
		switch {
		case key < tSize:
			left := seg.treeLeft(t)
			if left == sentinelAddr {
				break splayLoop
			}
			if key < seg.sizeOf(left) {
				seg.attachLeft(t, seg.treeRight(left))
				seg.attachRight(left, t)
				t = left
				left = seg.treeLeft(t)
				if left == sentinelAddr {
					break splayLoop
				}
			}
			if r == sentinelAddr {
				rightTreeRoot = t
			} else {
				seg.attachLeft(r, t)
			}
			r = t
			t = left

		case key > tSize:
			right := seg.treeRight(t)
			if right == sentinelAddr {
				break splayLoop
			}
			if key > seg.sizeOf(right) {
				seg.attachRight(t, seg.treeLeft(right))
				seg.attachLeft(right, t)
				t = right
				right = seg.treeRight(t)
				if right == sentinelAddr {
					break splayLoop
				}
			}
			if l == sentinelAddr {
				leftTreeRoot = t
			} else {
				seg.attachRight(l, t)
			}
			l = t
			t = right

		default:
			break splayLoop
		}
	}

	if l != sentinelAddr {
		seg.attachRight(l, seg.treeLeft(t))
	} else {
		leftTreeRoot = seg.treeLeft(t)
	}
	if r != sentinelAddr {
		seg.attachLeft(r, seg.treeRight(t))
	} else {
		rightTreeRoot = seg.treeRight(t)
	}

	seg.attachLeft(t, leftTreeRoot)
	seg.attachRight(t, rightTreeRoot)
	seg.setRepresentativeParent(t, sentinelAddr)
	return t
}

// Insert splays to addr's size and either starts a new duplicate chain (an
// exact match already sits in the tree) or splits the tree to seat addr as
// the new representative.
func (x *splayIndex) Insert(seg *Segment, addr Addr) {
	if x.root == sentinelAddr {
		seg.setTreeLeft(addr, sentinelAddr)
		seg.setTreeRight(addr, sentinelAddr)
		seg.setListStart(addr, sentinelAddr)
		seg.setColor(addr, true)
		x.root = addr
		x.count++
		return
	}

	size := seg.sizeOf(addr)
	t := x.splay(seg, size, x.root)
	tSize := seg.sizeOf(t)

	if tSize == size {
		// addr becomes the new side-list head, right after the
		// representative; the parent back-reference moves from the old
		// first duplicate (if any) to addr (spec.md §4.8 step 2).
		oldFirst := seg.listStart(t)
		parent := sentinelAddr
		if oldFirst != sentinelAddr {
			parent = seg.dupParent(oldFirst)
			seg.setDupParent(oldFirst, sentinelAddr)
			seg.setDupPrev(oldFirst, addr)
		}

		seg.setColor(addr, false)
		seg.setDupPrev(addr, sentinelAddr)
		seg.setDupNext(addr, oldFirst)
		seg.setDupParent(addr, parent)
		seg.setListStart(t, addr)

		x.root = t
		x.count++
		return
	}

	seg.setColor(addr, true)
	seg.setListStart(addr, sentinelAddr)

	if size < tSize {
		seg.attachLeft(addr, seg.treeLeft(t))
		seg.attachRight(addr, t)
		seg.setTreeLeft(t, sentinelAddr)
	} else {
		seg.attachRight(addr, seg.treeRight(t))
		seg.attachLeft(addr, t)
		seg.setTreeRight(t, sentinelAddr)
	}
	x.root = addr
	x.count++
}

// promoteDuplicate replaces oldHead's place in the tree with newHead — the
// first entry of oldHead's duplicate chain, which already caches oldHead's
// true parent — in O(1): reattach oldHead's children under newHead, reseat
// the rest of the chain, and retarget the parent's child slot.
func (x *splayIndex) promoteDuplicate(seg *Segment, oldHead, newHead Addr) {
	left, right := seg.treeLeft(oldHead), seg.treeRight(oldHead)
	parent := seg.dupParent(newHead)
	rest := seg.dupNext(newHead)

	seg.setColor(newHead, true)
	seg.attachLeft(newHead, left)
	seg.attachRight(newHead, right)
	seg.setListStart(newHead, rest)
	if rest != sentinelAddr {
		seg.setDupPrev(rest, sentinelAddr)
		seg.setDupParent(rest, parent)
	}

	switch {
	case parent == sentinelAddr:
		x.root = newHead
	case seg.treeLeft(parent) == oldHead:
		seg.setTreeLeft(parent, newHead)
	default:
		seg.setTreeRight(parent, newHead)
	}
}

// removeRoot deletes t, which must already be splayed to the root and have
// no duplicates, from the tree: splay t's left subtree to its maximum (so
// it has no right child) and hang t's right subtree off that.
func (x *splayIndex) removeRoot(seg *Segment, t Addr) {
	left, right := seg.treeLeft(t), seg.treeRight(t)

	if left == sentinelAddr {
		x.root = right
		seg.setRepresentativeParent(right, sentinelAddr)
		return
	}

	newRoot := x.splay(seg, ^uint64(0), left)
	seg.attachRight(newRoot, right)
	x.root = newRoot
}

// Remove takes a specific free block out of the index, whatever its role.
// Per spec.md §4.8/§4.2's cost split: a duplicate interior (or last) in a
// side-list unlinks in O(1) via its prev/next links; a representative with
// a duplicate promotes the next one in O(1); both a bare representative and
// a side-list's own head duplicate cost one splay, since only the head
// duplicate's parent is cached at all.
func (x *splayIndex) Remove(seg *Segment, addr Addr) {
	if seg.isHead(addr) {
		if dup := seg.listStart(addr); dup != sentinelAddr {
			x.promoteDuplicate(seg, addr, dup)
			x.count--
			return
		}

		t := x.splay(seg, seg.sizeOf(addr), x.root)
		x.root = t
		x.removeRoot(seg, t)
		x.count--
		return
	}

	if prev := seg.dupPrev(addr); prev != sentinelAddr {
		next := seg.dupNext(addr)
		seg.setDupNext(prev, next)
		if next != sentinelAddr {
			seg.setDupPrev(next, prev)
		}
		x.count--
		return
	}

	// addr is the side-list's own head duplicate: find its representative
	// by size, then hand the chain's parent back-reference to the next
	// duplicate in line (spec.md §4.8 step, "side-list head duplicate").
	rep := x.splay(seg, seg.sizeOf(addr), x.root)
	x.root = rep

	next := seg.dupNext(addr)
	parent := seg.dupParent(addr)
	seg.setListStart(rep, next)
	if next != sentinelAddr {
		seg.setDupPrev(next, sentinelAddr)
		seg.setDupParent(next, parent)
	}
	x.count--
}

// FindAndRemove locates the smallest free block at least need bytes (true
// best-fit) and removes it, preferring to pop a waiting duplicate over
// disturbing the tree at all.
func (x *splayIndex) FindAndRemove(seg *Segment, need uint64) Addr {
	if x.root == sentinelAddr {
		return NullAddr
	}

	t := x.splay(seg, need, x.root)
	x.root = t

	if seg.sizeOf(t) < need {
		right := seg.treeRight(t)
		if right == sentinelAddr {
			return NullAddr
		}
		succ := right
		for seg.treeLeft(succ) != sentinelAddr {
			succ = seg.treeLeft(succ)
		}
		t = x.splay(seg, seg.sizeOf(succ), t)
		x.root = t
	}

	if dup := seg.listStart(t); dup != sentinelAddr {
		rest := seg.dupNext(dup)
		seg.setListStart(t, rest)
		if rest != sentinelAddr {
			seg.setDupPrev(rest, sentinelAddr)
			seg.setDupParent(rest, seg.dupParent(dup))
		}
		x.count--
		return dup
	}

	x.removeRoot(seg, t)
	x.count--
	return t
}

func (x *splayIndex) Count() int64 { return x.count }

func (x *splayIndex) Walk(seg *Segment, visit func(Addr)) {
	var recur func(Addr)
	recur = func(n Addr) {
		if n == sentinelAddr {
			return
		}
		recur(seg.treeLeft(n))
		visit(n)
		for d := seg.listStart(n); d != sentinelAddr; d = seg.dupNext(d) {
			visit(d)
		}
		recur(seg.treeRight(n))
	}
	recur(x.root)
}
