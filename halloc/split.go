// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The splitter (spec.md §4.5): carve req bytes out of a chosen free block,
// re-indexing the remainder when there's enough slack to host another
// block.

package halloc

// split marks free as allocated, sized to req, unless free has enough slack
// beyond req to also host a block of the index's minimum size, in which
// case the remainder becomes a new free block inserted back into the
// index. Returns free's own address (split never relocates the chosen
// block).
func (a *Allocator) split(free Addr, req uint64) Addr {
	s := a.seg
	f := s.sizeOf(free)
	leftAlloc := headerLeftAl(s.header(free))
	min := uint64(s.index.MinBlockSize())

	if f >= req+min {
		remainder := f - req
		rest := free + Addr(req)

		s.setHeader(free, packHeader(req, true, leftAlloc, false))
		s.initHeaderAndFooter(rest, remainder, false, true)
		s.syncRightNeighborLeftBit(rest, false)
		a.indexInsert(rest)
		return free
	}

	s.setHeader(free, packHeader(f, true, leftAlloc, false))
	s.syncRightNeighborLeftBit(free, true)
	return free
}

// syncRightNeighborLeftBit keeps a's right neighbor's left-allocated bit
// consistent with a's own allocation state, the sole cross-block invariant
// spec.md §4.1 calls out.
func (s *Segment) syncRightNeighborLeftBit(a Addr, allocated bool) {
	right := s.right(a)
	s.setLeftAllocated(right, allocated)
}
