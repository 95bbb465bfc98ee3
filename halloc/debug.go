// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Diagnostic printers. Colorized the way heapallocctl's "dump" subcommand
// wants its terminal output, using the same fatih/color package the rest
// of the ambient stack reaches for (see SPEC_FULL.md's ambient stack
// section).

package halloc

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	allocColor = color.New(color.FgYellow)
	freeColor  = color.New(color.FgCyan)
	badColor   = color.New(color.FgRed, color.Bold)
)

// DumpHeap prints every block of the segment, left to right, color-coded by
// allocation state. It returns no error: a block whose size is zero or not
// a multiple of the quantum is printed in red as corrupt, and the walk stops
// there.
func DumpHeap(a *Allocator, w io.Writer) {
	s := a.seg
	fmt.Fprintf(w, "segment: %d bytes, %s index\n", s.Size(), s.index.Name())

	cur := s.firstBlock()
	for !s.atSentinel(cur) {
		size := s.sizeOf(cur)
		if size == 0 || size%quantum != 0 {
			badColor.Fprintf(w, "  [%#08x] corrupt header, stopping walk\n", cur)
			return
		}

		if s.isAllocated(cur) {
			allocColor.Fprintf(w, "  [%#08x] allocated  %6d bytes\n", cur, size)
		} else {
			freeColor.Fprintf(w, "  [%#08x] free       %6d bytes\n", cur, size)
		}
		cur = s.right(cur)
	}
	fmt.Fprintf(w, "  [%#08x] sentinel\n", s.end)
}

// PrintFreeIndex prints every block the active free index currently holds,
// in the index's own walk order (address, size, or in-order-by-size for
// the splay tree), annotated with the policy name.
func PrintFreeIndex(a *Allocator, w io.Writer) {
	s := a.seg
	fmt.Fprintf(w, "%s: %d free blocks\n", s.index.Name(), s.index.Count())
	s.index.Walk(s, func(addr Addr) {
		freeColor.Fprintf(w, "  [%#08x] %6d bytes\n", addr, s.sizeOf(addr))
	})
}
