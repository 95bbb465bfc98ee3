// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// FreeIndex is the pluggable free-block placement strategy, generalizing
// the teacher's FLT interface (lldb/flt.go) from "a table of size-bucketed
// lists over a Filer" to any of the three index structures spec.md asks
// for. Allocator talks to a Segment's bytes only through this interface
// plus the Segment's own block primitives.

package halloc

// FreeIndex indexes every currently-free block of a Segment and answers
// placement queries. Exactly one FreeIndex backs a given Segment for its
// whole lifetime (spec.md §3, "Free-index entities").
type FreeIndex interface {
	// Name identifies the placement policy, used by diagnostics.
	Name() string

	// MinBlockSize is the smallest block this index's in-band link record
	// can live inside (header + links + footer).
	MinBlockSize() int

	// Reset discards any state and records that addr is the sole free
	// block of the (just-initialized) segment.
	Reset(seg *Segment, addr Addr)

	// FindAndRemove locates a free block of need-or-more bytes under this index's placement policy, removes it from the
	// index, and returns it. Returns NullAddr if no block qualifies.
	FindAndRemove(seg *Segment, need uint64) Addr

	// Insert files a free block (header already written, footer not yet
	// required to be) into the index.
	Insert(seg *Segment, addr Addr)

	// Remove excises a specific, already-indexed free block, as required
	// during coalescing when a neighbor must be pulled out of the index
	// before merging (spec.md §4.4).
	Remove(seg *Segment, addr Addr)

	// Count returns the number of free blocks currently indexed.
	Count() int64

	// Walk invokes visit once per indexed free block, for Validate and the
	// diagnostic printer. Order is index-specific and not significant.
	Walk(seg *Segment, visit func(Addr))
}
