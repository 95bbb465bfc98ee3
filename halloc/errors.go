// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package halloc

import "fmt"

// ErrINVAL reports an invalid argument to a constructor or API call, in the
// same shape as the teacher's lldb.ErrINVAL: a short description plus the
// offending argument.
type ErrINVAL struct {
	Msg string
	Arg interface{}
}

func (e *ErrINVAL) Error() string { return fmt.Sprintf("%s: %v", e.Msg, e.Arg) }

// CorruptKind enumerates the structural problems Validate can detect,
// mirroring spec.md §7's error taxonomy.
type CorruptKind int

const (
	_ CorruptKind = iota
	ErrBadHeader
	ErrBadJump
	ErrAdjacentFree
	ErrSizeAccounting
	ErrFreeCountMismatch
	ErrListOrder
	ErrListSentinel
	ErrBSTOrder
	ErrDupParent
	ErrSentinelConvention
)

func (k CorruptKind) String() string {
	switch k {
	case ErrBadHeader:
		return "malformed header"
	case ErrBadJump:
		return "forward walk landed on a zero-sized non-sentinel block"
	case ErrAdjacentFree:
		return "two adjacent free blocks"
	case ErrSizeAccounting:
		return "block sizes do not sum to segment size"
	case ErrFreeCountMismatch:
		return "free_total() disagrees with the linear walk"
	case ErrListOrder:
		return "free list is not ordered as required by its placement policy"
	case ErrListSentinel:
		return "free list sentinel is not intact"
	case ErrBSTOrder:
		return "splay tree violates size-keyed BST order"
	case ErrDupParent:
		return "duplicate side-list parent back-reference is wrong"
	case ErrSentinelConvention:
		return "segment sentinel does not satisfy allocated&&size==0"
	default:
		return "unknown corruption"
	}
}

// CorruptionError is returned inside ValidateHeap's error slice; it is
// never returned by Allocate/Reallocate/Free, which fail silently per
// spec.md §7.
type CorruptionError struct {
	Kind   CorruptKind
	Off    Addr
	Detail string
}

func (e *CorruptionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s at offset %#x", e.Kind, e.Off)
	}
	return fmt.Sprintf("%s at offset %#x: %s", e.Kind, e.Off, e.Detail)
}
