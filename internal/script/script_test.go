// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package script

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cznic/memalloc/halloc"
)

func TestParse(t *testing.T) {
	ops, err := Parse(strings.NewReader(`
# comment
a x 32
r x 64
f x
`))
	require.NoError(t, err)
	require.Len(t, ops, 3)
	require.Equal(t, Allocate, ops[0].Kind)
	require.Equal(t, "x", ops[0].ID)
	require.Equal(t, 32, ops[0].Size)
	require.Equal(t, Reallocate, ops[1].Kind)
	require.Equal(t, Free, ops[2].Kind)
}

func TestParseRejectsMalformedLines(t *testing.T) {
	cases := []string{"a x", "r x", "f", "a x notanumber", "bogus"}
	for _, c := range cases {
		_, err := Parse(strings.NewReader(c))
		require.Errorf(t, err, "expected %q to be rejected", c)
	}
}

func TestExecutorRun(t *testing.T) {
	alloc, err := halloc.NewAddressOrderedAllocator(make([]byte, 4096))
	require.NoError(t, err)

	ops, err := Parse(strings.NewReader(`
a a 64
a b 128
r a 256
f b
f a
`))
	require.NoError(t, err)

	e := NewExecutor(alloc, nil)
	e.Validate = true
	require.NoError(t, e.Run(ops))
	require.Equal(t, 0, e.Live())
	require.EqualValues(t, 1, alloc.FreeTotal())
}

func TestExecutorUnknownTagFails(t *testing.T) {
	alloc, err := halloc.NewAddressOrderedAllocator(make([]byte, 4096))
	require.NoError(t, err)

	ops, err := Parse(strings.NewReader("f ghost"))
	require.NoError(t, err)

	e := NewExecutor(alloc, nil)
	require.Error(t, e.Run(ops))
}

func TestExecutorExhaustionFails(t *testing.T) {
	alloc, err := halloc.NewAddressOrderedAllocator(make([]byte, 128))
	require.NoError(t, err)

	ops, err := Parse(strings.NewReader("a huge 1000000"))
	require.NoError(t, err)

	e := NewExecutor(alloc, nil)
	require.Error(t, e.Run(ops))
}
