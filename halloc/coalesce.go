// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The coalescer (spec.md §4.4): merge a soon-to-be-free block with any free
// neighbors, removing them from the index as they're absorbed.

package halloc

// coalesce returns the leftmost block of the maximal free run containing b,
// with any absorbed neighbors removed from the free index and the run's
// size written into the returned block's header. It intentionally leaves
// the footer unwritten and the index un-updated for the returned run: the
// caller either splits it (Allocate/Reallocate path) or finishes freeing it
// (Free path).
func (a *Allocator) coalesce(b Addr) Addr {
	s := a.seg
	size := s.sizeOf(b)
	run := b
	total := size

	if right := s.right(run); !s.atSentinel(right) && !s.isAllocated(right) {
		total += s.sizeOf(right)
		a.indexRemove(right)
	}

	if run != s.firstBlock() && s.isLeftFree(run) {
		left := s.left(run)
		total += s.sizeOf(left)
		a.indexRemove(left)
		run = left
	}

	leftAlloc := headerLeftAl(s.header(run))
	s.setHeader(run, packHeader(total, false, leftAlloc, false))
	return run
}
