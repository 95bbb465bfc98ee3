// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Free index: address-ordered and size-ordered doubly linked lists
// (spec.md §4.6). Both variants share a single node layout and a single
// find algorithm; they differ only in the key insertion sorts by.

package halloc

// listNode layout, written immediately after a free block's header:
//
//	header (0) | next (8) | prev (16) | ... | footer (size-8)
//
// next/prev hold sentinelAddr at the ends of the list, mirroring the
// teacher's fixed head/tail sentinels (lldb §"Free blocks") without needing
// a real in-segment dummy node.
func (s *Segment) listNext(a Addr) Addr     { return Addr(s.readWord(int(a) + wordSize)) }
func (s *Segment) setListNext(a Addr, v Addr) { s.writeWord(int(a)+wordSize, uint64(v)) }
func (s *Segment) listPrev(a Addr) Addr     { return Addr(s.readWord(int(a) + 2*wordSize)) }
func (s *Segment) setListPrev(a Addr, v Addr) { s.writeWord(int(a)+2*wordSize, uint64(v)) }

type orderMode int

const (
	orderByAddress orderMode = iota
	orderBySize
)

// linkedListIndex is the FreeIndex behind both doubly-linked-list variants
// of spec.md §4.6.
type linkedListIndex struct {
	mode  orderMode
	head  Addr
	count int64
}

func newLinkedListIndex(mode orderMode) *linkedListIndex {
	return &linkedListIndex{mode: mode, head: sentinelAddr}
}

func (x *linkedListIndex) Name() string {
	if x.mode == orderByAddress {
		return "address-ordered list"
	}
	return "size-ordered list"
}

// MinBlockSize: header + next + prev + footer.
func (x *linkedListIndex) MinBlockSize() int { return 4 * wordSize }

func (x *linkedListIndex) Reset(seg *Segment, addr Addr) {
	x.head = addr
	x.count = 1
	seg.setListNext(addr, sentinelAddr)
	seg.setListPrev(addr, sentinelAddr)
}

// less reports whether addr sorts strictly before cur under this index's
// placement policy: by address for the first variant, by size for the
// second. First-fit over an address-sorted list and best-fit over a
// size-sorted list are the same walk (spec.md §4.6).
func (x *linkedListIndex) less(seg *Segment, addr, cur Addr) bool {
	if x.mode == orderByAddress {
		return addr < cur
	}
	return seg.sizeOf(addr) < seg.sizeOf(cur)
}

func (x *linkedListIndex) Insert(seg *Segment, addr Addr) {
	prev, cur := sentinelAddr, x.head
	for cur != sentinelAddr && !x.less(seg, addr, cur) {
		prev, cur = cur, seg.listNext(cur)
	}

	seg.setListNext(addr, cur)
	seg.setListPrev(addr, prev)
	if cur != sentinelAddr {
		seg.setListPrev(cur, addr)
	}
	if prev != sentinelAddr {
		seg.setListNext(prev, addr)
	} else {
		x.head = addr
	}
	x.count++
}

func (x *linkedListIndex) Remove(seg *Segment, addr Addr) {
	prev, next := seg.listPrev(addr), seg.listNext(addr)
	if prev != sentinelAddr {
		seg.setListNext(prev, next)
	} else {
		x.head = next
	}
	if next != sentinelAddr {
		seg.setListPrev(next, prev)
	}
	x.count--
}

func (x *linkedListIndex) FindAndRemove(seg *Segment, need uint64) Addr {
	for cur := x.head; cur != sentinelAddr; cur = seg.listNext(cur) {
		if seg.sizeOf(cur) >= need {
			x.Remove(seg, cur)
			return cur
		}
	}
	return NullAddr
}

func (x *linkedListIndex) Count() int64 { return x.count }

func (x *linkedListIndex) Walk(seg *Segment, visit func(Addr)) {
	for cur := x.head; cur != sentinelAddr; cur = seg.listNext(cur) {
		visit(cur)
	}
}
