// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The validator (spec.md §4.9/§8): an independent heap walk cross-checked
// against an independent index walk, the way the teacher's lldb.Filer
// implementations can be asked to verify their own free lists
// (lldb/falloc.go's Verify-style helpers) before anything is trusted.

package halloc

// AllocStats summarizes one ValidateHeap pass. It is informational: callers
// that only care about correctness should look at the returned error slice,
// which is empty if and only if the heap is structurally sound.
type AllocStats struct {
	SegmentBytes    int64
	TotalBlocks     int64
	FreeBlocks      int64
	AllocatedBlocks int64
	FreeBytes       int64
	AllocatedBytes  int64
}

// ValidateHeap walks the segment block-by-block and the free index
// independently, cross-checks the two, and reports every corruption found
// rather than stopping at the first. A nil/empty error slice means the
// heap is consistent.
func (a *Allocator) ValidateHeap() (*AllocStats, []error) {
	s := a.seg
	var errs []error
	report := func(kind CorruptKind, off Addr, detail string) {
		errs = append(errs, &CorruptionError{Kind: kind, Off: off, Detail: detail})
	}

	stats := &AllocStats{SegmentBytes: s.Size()}

	// Sentinel convention (spec.md §9's resolved Open Question).
	sh := s.header(s.end)
	if !headerAlloc(sh) || headerSize(sh) != 0 {
		report(ErrSentinelConvention, s.end, "")
	}

	// Heap walk: left to right, one boundary-tag block at a time.
	freeSeen := make(map[Addr]bool)
	prevFree := false
	var sum int64
	cur := s.firstBlock()
	for !s.atSentinel(cur) {
		size := s.sizeOf(cur)
		if size == 0 || size%quantum != 0 || int64(cur)+int64(size) > int64(s.end) {
			report(ErrBadJump, cur, "")
			break
		}

		if headerColor(s.header(cur)) {
			if _, splay := s.index.(*splayIndex); !splay {
				report(ErrBadHeader, cur, "color bit set under a list-based index")
			}
		}

		alloc := s.isAllocated(cur)
		leftFree := s.isLeftFree(cur)
		if leftFree != prevFree && cur != s.firstBlock() {
			report(ErrBadHeader, cur, "left-allocated bit disagrees with predecessor")
		}
		if !alloc {
			if prevFree {
				report(ErrAdjacentFree, cur, "")
			}
			if s.footer(cur, size) != s.header(cur) {
				report(ErrBadHeader, cur, "footer does not mirror header")
			}
			freeSeen[cur] = true
			stats.FreeBlocks++
			stats.FreeBytes += int64(size)
		} else {
			stats.AllocatedBlocks++
			stats.AllocatedBytes += int64(size)
		}

		stats.TotalBlocks++
		sum += int64(size)
		prevFree = !alloc
		cur = s.right(cur)
	}
	sum += int64(sentinelWidth)
	if sum != int64(s.end)+int64(sentinelWidth) {
		report(ErrSizeAccounting, 0, "")
	}

	// Index walk, cross-checked against the heap walk above.
	var indexed []Addr
	s.index.Walk(s, func(addr Addr) { indexed = append(indexed, addr) })

	if int64(len(indexed)) != s.index.Count() {
		report(ErrFreeCountMismatch, 0, "index Walk and Count disagree")
	}
	if s.index.Count() != a.freeCount {
		report(ErrFreeCountMismatch, 0, "allocator free count disagrees with index")
	}
	if int64(len(indexed)) != stats.FreeBlocks {
		report(ErrFreeCountMismatch, 0, "index and heap walk disagree on free block count")
	}
	for _, addr := range indexed {
		if !freeSeen[addr] {
			report(ErrListSentinel, addr, "indexed block is not a free block on the heap walk")
		}
		delete(freeSeen, addr)
	}
	for addr := range freeSeen {
		report(ErrListSentinel, addr, "free block on the heap walk is not indexed")
	}

	validateIndexShape(s, report)

	return stats, errs
}

type reportFunc func(kind CorruptKind, off Addr, detail string)

// validateIndexShape runs the checks specific to whichever FreeIndex
// implementation backs s, dispatching on its concrete type.
func validateIndexShape(s *Segment, report reportFunc) {
	switch idx := s.index.(type) {
	case *linkedListIndex:
		validateListOrder(s, idx, report)
	case *segregatedIndex:
		validateSegregatedClasses(s, idx, report)
	case *splayIndex:
		validateSplayShape(s, idx, report)
	}
}

func validateListOrder(s *Segment, idx *linkedListIndex, report reportFunc) {
	prev := sentinelAddr
	for cur := idx.head; cur != sentinelAddr; cur = s.listNext(cur) {
		if s.listPrev(cur) != prev {
			report(ErrListSentinel, cur, "prev link does not point back to predecessor")
		}
		if prev != sentinelAddr && idx.less(s, cur, prev) {
			report(ErrListOrder, cur, "out of order relative to predecessor")
		}
		prev = cur
	}
}

func validateSegregatedClasses(s *Segment, idx *segregatedIndex, report reportFunc) {
	for class := 0; class < segregatedClasses; class++ {
		prev := sentinelAddr
		for cur := idx.heads[class]; cur != sentinelAddr; cur = s.listNext(cur) {
			if s.listPrev(cur) != prev {
				report(ErrListSentinel, cur, "prev link does not point back to predecessor")
			}
			if classOf(s.sizeOf(cur)) != class {
				report(ErrListOrder, cur, "block filed under the wrong size class")
			}
			prev = cur
		}
	}
}

func validateSplayShape(s *Segment, idx *splayIndex, report reportFunc) {
	var walk func(n Addr, lo, hi *uint64, parent Addr)
	walk = func(n Addr, lo, hi *uint64, parent Addr) {
		if n == sentinelAddr {
			return
		}
		if !s.isHead(n) {
			report(ErrBSTOrder, n, "non-head block reachable from tree links")
		}
		size := s.sizeOf(n)
		if lo != nil && size <= *lo {
			report(ErrBSTOrder, n, "violates BST order on the low side")
		}
		if hi != nil && size >= *hi {
			report(ErrBSTOrder, n, "violates BST order on the high side")
		}

		first := s.listStart(n)
		if first != sentinelAddr && s.dupParent(first) != parent {
			report(ErrDupParent, first, "duplicate-list head's cached parent does not match the representative's actual parent")
		}
		for d := first; d != sentinelAddr; d = s.dupNext(d) {
			if s.isHead(d) {
				report(ErrDupParent, d, "duplicate chain entry carries tree structure")
			}
			if s.sizeOf(d) != size {
				report(ErrDupParent, d, "duplicate chain entry has a different size than its head")
			}
			if d != first && s.dupParent(d) != sentinelAddr {
				report(ErrDupParent, d, "non-head duplicate carries a non-null parent back-reference")
			}
		}

		walk(s.treeLeft(n), lo, &size, n)
		walk(s.treeRight(n), &size, hi, n)
	}
	walk(idx.root, nil, nil, sentinelAddr)
}
