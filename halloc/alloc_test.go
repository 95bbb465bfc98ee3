// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package halloc

import (
	"flag"
	"fmt"
	"math/rand"
	"testing"
)

var (
	rndTestN       = flag.Int("N", 256, "random workload op count")
	rndTestSegSize = flag.Int("segsize", 1<<16, "random workload segment size")
	rndTestMax     = flag.Int("maxreq", 512, "random workload max single request size")
)

// pAllocator wraps an Allocator and validates the whole heap after every
// mutating call, the way the teacher's pAllocator wraps lldb.Allocator
// with a Verify call after every Alloc/Free/Realloc.
type pAllocator struct {
	*Allocator
	t *testing.T
}

func newPAllocator(t *testing.T, a *Allocator) *pAllocator {
	return &pAllocator{Allocator: a, t: t}
}

func (p *pAllocator) check(op string) {
	p.t.Helper()
	if _, errs := p.ValidateHeap(); len(errs) != 0 {
		for _, e := range errs {
			p.t.Errorf("after %s: %v", op, e)
		}
		p.t.FailNow()
	}
}

func (p *pAllocator) Allocate(n int) Addr {
	addr := p.Allocator.Allocate(n)
	p.check(fmt.Sprintf("Allocate(%d)", n))
	return addr
}

func (p *pAllocator) Free(a Addr) {
	p.Allocator.Free(a)
	p.check(fmt.Sprintf("Free(%#x)", a))
}

func (p *pAllocator) Reallocate(a Addr, n int) Addr {
	r := p.Allocator.Reallocate(a, n)
	p.check(fmt.Sprintf("Reallocate(%#x, %d)", a, n))
	return r
}

func allConstructors() map[string]func([]byte) (*Allocator, error) {
	return map[string]func([]byte) (*Allocator, error){
		"address-ordered-list": NewAddressOrderedAllocator,
		"size-ordered-list":    NewSizeOrderedAllocator,
		"segregated-fits":      NewSegregatedFitsAllocator,
		"splay-tree":           NewSplayAllocator,
	}
}

func TestSegmentTooSmall(t *testing.T) {
	for name, ctor := range allConstructors() {
		if _, err := ctor(make([]byte, 4)); err == nil {
			t.Errorf("%s: expected error on a too-small segment, got nil", name)
		}
	}
}

func TestAllocateZeroAndNegative(t *testing.T) {
	for name, ctor := range allConstructors() {
		a, err := ctor(make([]byte, 4096))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got := a.Allocate(0); got != NullAddr {
			t.Errorf("%s: Allocate(0) = %#x, want NullAddr", name, got)
		}
		if got := a.Allocate(-1); got != NullAddr {
			t.Errorf("%s: Allocate(-1) = %#x, want NullAddr", name, got)
		}
	}
}

func TestFreeNullIsNoOp(t *testing.T) {
	for name, ctor := range allConstructors() {
		a, err := ctor(make([]byte, 4096))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		a.Free(NullAddr) // must not panic
		if _, errs := a.ValidateHeap(); len(errs) != 0 {
			t.Errorf("%s: heap invalid after Free(NullAddr): %v", name, errs)
		}
	}
}

func TestAllocateFreeRoundTrip(t *testing.T) {
	for name, ctor := range allConstructors() {
		raw, err := ctor(make([]byte, 4096))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		a := newPAllocator(t, raw)

		p := a.Allocate(64)
		if p == NullAddr {
			t.Fatalf("%s: Allocate failed on a fresh segment", name)
		}
		a.Free(p)

		if got := a.FreeTotal(); got != 1 {
			t.Errorf("%s: FreeTotal() = %d, want 1 after freeing the only block", name, got)
		}
	}
}

func TestCoalesceReunitesWholeSegment(t *testing.T) {
	for name, ctor := range allConstructors() {
		raw, err := ctor(make([]byte, 4096))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		a := newPAllocator(t, raw)

		capacityBefore := a.Capacity()

		ptrs := make([]Addr, 8)
		for i := range ptrs {
			ptrs[i] = a.Allocate(32)
			if ptrs[i] == NullAddr {
				t.Fatalf("%s: Allocate #%d failed", name, i)
			}
		}
		for i := len(ptrs) - 1; i >= 0; i-- {
			a.Free(ptrs[i])
		}

		if got := a.FreeTotal(); got != 1 {
			t.Errorf("%s: FreeTotal() = %d, want 1 after freeing everything back to front", name, got)
		}
		if got := a.Capacity(); got != capacityBefore {
			t.Errorf("%s: Capacity() = %d, want %d (no bytes should be lost to fragmentation)", name, got, capacityBefore)
		}
	}
}

func TestReallocateGrowAndShrink(t *testing.T) {
	for name, ctor := range allConstructors() {
		raw, err := ctor(make([]byte, 1<<14))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		a := newPAllocator(t, raw)

		p := a.Allocate(32)
		if p == NullAddr {
			t.Fatalf("%s: Allocate failed", name)
		}
		raw.seg.buf[int(p)] = 0xAB

		p2 := a.Reallocate(p, 256)
		if p2 == NullAddr {
			t.Fatalf("%s: Reallocate (grow) failed", name)
		}
		if raw.seg.buf[int(p2)] != 0xAB {
			t.Errorf("%s: Reallocate (grow) did not preserve payload", name)
		}

		p3 := a.Reallocate(p2, 8)
		if p3 == NullAddr {
			t.Fatalf("%s: Reallocate (shrink) failed", name)
		}
		if raw.seg.buf[int(p3)] != 0xAB {
			t.Errorf("%s: Reallocate (shrink) did not preserve payload", name)
		}

		a.Reallocate(p3, 0)
		if got := a.FreeTotal(); got != 1 {
			t.Errorf("%s: FreeTotal() = %d, want 1 after Reallocate(_, 0) frees the last block", name, got)
		}
	}
}

func TestDuplicateSizesShareAClass(t *testing.T) {
	// Exercises the splay tree's duplicate side-list path: several
	// same-size allocations followed by frees in an order that forces
	// both the "pop a duplicate" and "promote a duplicate into the tree"
	// branches of splayIndex.
	raw, err := NewSplayAllocator(make([]byte, 1<<14))
	if err != nil {
		t.Fatal(err)
	}
	a := newPAllocator(t, raw)

	var ptrs []Addr
	for i := 0; i < 6; i++ {
		p := a.Allocate(96)
		if p == NullAddr {
			t.Fatalf("Allocate #%d failed", i)
		}
		ptrs = append(ptrs, p)
	}
	// Even-indexed blocks are not adjacent to each other, so freeing them
	// first files them as one representative plus a duplicate chain; the
	// odd-indexed frees then coalesce those duplicates (and the
	// representative) back out of the index.
	for i := 0; i < len(ptrs); i += 2 {
		a.Free(ptrs[i])
	}
	for i := 1; i < len(ptrs); i += 2 {
		a.Free(ptrs[i])
	}
	if got := a.FreeTotal(); got != 1 {
		t.Errorf("FreeTotal() = %d, want 1 once every duplicate has merged back together", got)
	}
}

// TestRandomWorkload drives every index variant through a pseudo-random
// sequence of allocate/free/reallocate calls, validating the whole heap
// after each step. Run with -N/-segsize/-maxreq to scale it up.
func TestRandomWorkload(t *testing.T) {
	for name, ctor := range allConstructors() {
		name, ctor := name, ctor
		t.Run(name, func(t *testing.T) {
			raw, err := ctor(make([]byte, *rndTestSegSize))
			if err != nil {
				t.Fatalf("%s: %v", name, err)
			}
			a := newPAllocator(t, raw)
			rnd := rand.New(rand.NewSource(1))

			var live []Addr
			for i := 0; i < *rndTestN; i++ {
				switch {
				case len(live) == 0 || rnd.Intn(3) != 0:
					n := 1 + rnd.Intn(*rndTestMax)
					if p := a.Allocate(n); p != NullAddr {
						live = append(live, p)
					}
				case rnd.Intn(2) == 0:
					idx := rnd.Intn(len(live))
					a.Free(live[idx])
					live[idx] = live[len(live)-1]
					live = live[:len(live)-1]
				default:
					idx := rnd.Intn(len(live))
					n := 1 + rnd.Intn(*rndTestMax)
					if p := a.Reallocate(live[idx], n); p != NullAddr {
						live[idx] = p
					}
				}
			}

			for _, p := range live {
				a.Free(p)
			}
			if got := a.FreeTotal(); got != 1 {
				t.Errorf("%s: FreeTotal() = %d, want 1 after freeing everything", name, got)
			}
			if want, got := a.seg.Size()-wordSize, a.Capacity(); got != want {
				t.Errorf("%s: Capacity() = %d, want %d once the segment is entirely free", name, got, want)
			}
		})
	}
}
