// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Allocator entry points (spec.md §4.3/§6): Allocate, Reallocate, Free, and
// the small accounting surface (FreeTotal, Capacity) the script executor and
// validator rely on.

package halloc

import "github.com/cznic/mathutil"

// DefaultMaxRequest bounds a single request's payload size. It is well
// below the range that would make a packed header size field ambiguous,
// per spec.md's "Alignment & limits".
const DefaultMaxRequest = 1 << 30

// Allocator serves allocate/reallocate/free against one Segment, using
// whichever FreeIndex it was built with. It is not re-entrant and not safe
// for concurrent use (spec.md §5): a single Allocator assumes exclusive
// ownership of its Segment for the duration of every call.
type Allocator struct {
	seg        *Segment
	freeCount  int64
	maxRequest int
}

// newAllocator is shared by the four exported constructors below; each
// supplies the FreeIndex that gives it its placement policy.
func newAllocator(buf []byte, index FreeIndex) (*Allocator, error) {
	seg, err := newSegment(buf, index)
	if err != nil {
		return nil, err
	}

	return &Allocator{seg: seg, freeCount: 1, maxRequest: DefaultMaxRequest}, nil
}

// NewAddressOrderedAllocator returns an Allocator whose free index is an
// address-ordered doubly linked list with first-fit placement
// (spec.md §4.6).
func NewAddressOrderedAllocator(buf []byte) (*Allocator, error) {
	return newAllocator(buf, newLinkedListIndex(orderByAddress))
}

// NewSizeOrderedAllocator returns an Allocator whose free index is the
// size-ordered variant of the doubly linked list: insertion by ascending
// size turns first-fit-over-a-sorted-list into best-fit (spec.md §4.6,
// second variant).
func NewSizeOrderedAllocator(buf []byte) (*Allocator, error) {
	return newAllocator(buf, newLinkedListIndex(orderBySize))
}

// NewSegregatedFitsAllocator returns an Allocator whose free index is the
// 15-bucket segregated-fits table (spec.md §4.7).
func NewSegregatedFitsAllocator(buf []byte) (*Allocator, error) {
	return newAllocator(buf, newSegregatedIndex())
}

// NewSplayAllocator returns an Allocator whose free index is the top-down
// splay tree with duplicate side-lists (spec.md §4.8).
func NewSplayAllocator(buf []byte) (*Allocator, error) {
	return newAllocator(buf, newSplayIndex())
}

// SetMaxRequest overrides DefaultMaxRequest. It must be called before any
// Allocate/Reallocate call to take effect predictably.
func (a *Allocator) SetMaxRequest(n int) { a.maxRequest = n }

// indexFindAndRemove centralizes the Count()-vs-freeCount bookkeeping so
// that every FreeIndex implementation only has to manage its own structure,
// not the scalar total (spec.md §4.8's "Total free count is maintained as a
// scalar" generalized to every variant, not just the splay tree).
func (a *Allocator) indexFindAndRemove(need uint64) Addr {
	addr := a.seg.index.FindAndRemove(a.seg, need)
	if addr != NullAddr {
		a.freeCount--
	}
	return addr
}

func (a *Allocator) indexInsert(addr Addr) {
	a.seg.index.Insert(a.seg, addr)
	a.freeCount++
}

func (a *Allocator) indexRemove(addr Addr) {
	a.seg.index.Remove(a.seg, addr)
	a.freeCount--
}

// Allocate rounds n up to the alignment quantum and header overhead, asks
// the free index for a suitable block, and hands it to the splitter.
// Returns NullAddr on an invalid request or exhaustion, never an error
// (spec.md §7).
func (a *Allocator) Allocate(n int) Addr {
	if n <= 0 || n > a.maxRequest {
		return NullAddr
	}

	req := mathutil.MaxUint64(uint64(roundUp(n+wordSize, quantum)), uint64(a.seg.index.MinBlockSize()))

	free := a.indexFindAndRemove(req)
	if free == NullAddr {
		return NullAddr
	}

	block := a.split(free, req)
	return block + wordSize
}

// Free recovers the block header from p, coalesces with any free
// neighbors, and reinserts the resulting run into the free index. A nil
// (NullAddr) p is a no-op, per spec.md §6.
func (a *Allocator) Free(p Addr) {
	if p == NullAddr {
		return
	}

	b := p - wordSize
	run := a.coalesce(b)
	size := a.seg.sizeOf(run)
	a.seg.setFooter(run, size, a.seg.header(run))
	a.seg.syncRightNeighborLeftBit(run, false)
	a.indexInsert(run)
}

// Reallocate implements spec.md §4.3's reallocation policy: coalesce in
// place first; split if the coalesced run is big enough; otherwise
// allocate-copy-free.
func (a *Allocator) Reallocate(p Addr, n int) Addr {
	if p == NullAddr {
		return a.Allocate(n)
	}
	if n == 0 {
		a.Free(p)
		return NullAddr
	}
	if n > a.maxRequest {
		return NullAddr
	}

	req := mathutil.MaxUint64(uint64(roundUp(n+wordSize, quantum)), uint64(a.seg.index.MinBlockSize()))

	b := p - wordSize
	oldSize := a.seg.sizeOf(b)
	oldPayload := oldSize - wordSize

	c := oldSize
	if right := a.seg.right(b); !a.seg.atSentinel(right) && !a.seg.isAllocated(right) {
		c += a.seg.sizeOf(right)
	}
	if b != a.seg.firstBlock() && a.seg.isLeftFree(b) {
		c += a.seg.sizeOf(a.seg.left(b))
	}

	if c >= req {
		run := a.coalesce(b)
		if run != b {
			copy(a.seg.buf[int(run)+wordSize:], a.seg.buf[int(b)+wordSize:int(b)+int(oldSize)])
		}
		block := a.split(run, req)
		return block + wordSize
	}

	// Not enough room even after coalescing: allocate fresh, copy the
	// bounded old payload, then free the old block. If the fresh
	// allocation fails, the old block is left allocated and untouched.
	newP := a.Allocate(n)
	if newP == NullAddr {
		return NullAddr
	}

	copyLen := oldPayload
	if uint64(n) < copyLen {
		copyLen = uint64(n)
	}
	copy(a.seg.buf[int(newP):], a.seg.buf[int(b)+wordSize:int(b)+wordSize+int(copyLen)])
	a.Free(p)
	return newP
}

// FreeTotal returns the number of free blocks currently indexed.
func (a *Allocator) FreeTotal() int64 { return a.freeCount }

// Capacity returns the total number of free bytes available for future
// payloads, summed over every indexed free block with that block's own
// header word excluded, per spec.md §8's testable property 7 ("capacity()
// == sum of free block sizes, excluding header overhead as specified by the
// variant"). A free block's footer is not subtracted: it is the block's
// only other piece of index bookkeeping, but unlike the header it is not
// what property 7 calls out, and it is the same single word every variant
// already pays regardless of free-index choice.
func (a *Allocator) Capacity() int64 {
	var total int64
	a.seg.index.Walk(a.seg, func(addr Addr) {
		total += int64(a.seg.sizeOf(addr)) - wordSize
	})
	return total
}
