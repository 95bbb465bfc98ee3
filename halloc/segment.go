// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Segment initialization (spec.md §4.2).

package halloc

// Segment is the single contiguous byte region an Allocator manages. Its
// bounds are fixed when the segment is created and never grow (spec.md §1 Non-goals); the
// only thing that changes over its lifetime is which bytes are free vs
// allocated.
type Segment struct {
	buf   []byte
	end   Addr // offset of the sentinel block
	index FreeIndex
}

// sentinelWidth is the single word the terminating sentinel block occupies.
const sentinelWidth = wordSize

func newSegment(buf []byte, index FreeIndex) (*Segment, error) {
	aligned := len(buf) &^ (quantum - 1)
	if aligned < index.MinBlockSize()+sentinelWidth {
		return nil, &ErrINVAL{"halloc: segment too small", len(buf)}
	}

	s := &Segment{buf: buf[:aligned], index: index}
	s.end = Addr(aligned) - sentinelWidth

	// Sentinel: size 0, allocated, left-free (the sole free block precedes
	// it). spec.md §9's Open Question is resolved here: allocated=1,
	// size=0.
	s.setHeader(s.end, packHeader(0, true, false, false))

	// One free block spans the whole managed region; it is the segment's
	// leftmost block, so its left-allocated bit is set per spec.md §3.
	s.initHeaderAndFooter(0, uint64(s.end), false, true)
	index.Reset(s, 0)
	return s, nil
}

// Size returns the total number of bytes the segment manages, sentinel
// excluded.
func (s *Segment) Size() int64 { return int64(s.end) }

// firstBlock is the leftmost block's address; always 0.
func (s *Segment) firstBlock() Addr { return 0 }

// atSentinel reports whether a is the segment's terminating sentinel.
func (s *Segment) atSentinel(a Addr) bool { return a == s.end }
