// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Free index: segregated fits (spec.md §4.7). 15 size classes, each a LIFO
// doubly linked list sharing the node layout defined in list_index.go.
// Placement within the matching class is approximate best-fit (the class
// itself bounds how far off "best" the chosen block can be); placement in
// any higher class is exact, since every block filed under a strictly
// higher class is already at least as large as anything the request's own
// class could have offered.

package halloc

const segregatedClasses = 15

// classBounds holds the lower bound of each size class below the
// catch-all. Classes 0-3 are exact small-object sizes (32/40/48/56, the
// smallest four multiples of the 8-byte quantum that still fit a free
// node); classes 4-13 are power-of-two lower bounds from 64 up to 32768.
// Class 14 is a defensive ceiling bucket classOf can never actually return:
// its descending scan stops at index 13 for any size >= 32768, with no
// upper bound on that last real class, regardless of how large the request
// is.
var classBounds = [14]uint64{
	32, 40, 48, 56,
	64, 128, 256, 512, 1024, 2048, 4096, 8192, 16384, 32768,
}

// classOf returns the size class a free (or requested) size belongs to.
func classOf(size uint64) int {
	for i := len(classBounds) - 1; i >= 0; i-- {
		if size >= classBounds[i] {
			return i
		}
	}
	return 0
}

type segregatedIndex struct {
	heads [segregatedClasses]Addr
	count int64
}

func newSegregatedIndex() *segregatedIndex {
	x := &segregatedIndex{}
	for i := range x.heads {
		x.heads[i] = sentinelAddr
	}
	return x
}

func (x *segregatedIndex) Name() string { return "segregated fits" }

// MinBlockSize matches the shared list node: header + next + prev + footer.
func (x *segregatedIndex) MinBlockSize() int { return 4 * wordSize }

func (x *segregatedIndex) Reset(seg *Segment, addr Addr) {
	for i := range x.heads {
		x.heads[i] = sentinelAddr
	}
	x.count = 1
	class := classOf(seg.sizeOf(addr))
	x.heads[class] = addr
	seg.setListNext(addr, sentinelAddr)
	seg.setListPrev(addr, sentinelAddr)
}

// Insert pushes addr onto the head of its size class's list.
func (x *segregatedIndex) Insert(seg *Segment, addr Addr) {
	class := classOf(seg.sizeOf(addr))
	head := x.heads[class]

	seg.setListNext(addr, head)
	seg.setListPrev(addr, sentinelAddr)
	if head != sentinelAddr {
		seg.setListPrev(head, addr)
	}
	x.heads[class] = addr
	x.count++
}

func (x *segregatedIndex) Remove(seg *Segment, addr Addr) {
	prev, next := seg.listPrev(addr), seg.listNext(addr)
	if prev != sentinelAddr {
		seg.setListNext(prev, next)
	} else {
		class := classOf(seg.sizeOf(addr))
		x.heads[class] = next
	}
	if next != sentinelAddr {
		seg.setListPrev(next, prev)
	}
	x.count--
}

func (x *segregatedIndex) FindAndRemove(seg *Segment, need uint64) Addr {
	start := classOf(need)

	for class := start; class < segregatedClasses; class++ {
		head := x.heads[class]
		if head == sentinelAddr {
			continue
		}

		if class == start {
			for cur := head; cur != sentinelAddr; cur = seg.listNext(cur) {
				if seg.sizeOf(cur) >= need {
					x.Remove(seg, cur)
					return cur
				}
			}
			continue
		}

		// Any block in a strictly higher class already satisfies need.
		x.Remove(seg, head)
		return head
	}
	return NullAddr
}

func (x *segregatedIndex) Count() int64 { return x.count }

func (x *segregatedIndex) Walk(seg *Segment, visit func(Addr)) {
	for class := 0; class < segregatedClasses; class++ {
		for cur := x.heads[class]; cur != sentinelAddr; cur = seg.listNext(cur) {
			visit(cur)
		}
	}
}
