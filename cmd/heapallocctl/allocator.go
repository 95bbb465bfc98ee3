// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cznic/memalloc/halloc"
)

var indexCtors = map[string]func([]byte) (*halloc.Allocator, error){
	"address-list": halloc.NewAddressOrderedAllocator,
	"size-list":    halloc.NewSizeOrderedAllocator,
	"segregated":   halloc.NewSegregatedFitsAllocator,
	"splay":        halloc.NewSplayAllocator,
}

// addAllocatorFlags wires the flags shared by every subcommand that needs
// to stand up an Allocator: segment size, free-index variant, and an
// optional request cap. Each is also readable from config/env via viper,
// flags taking precedence.
func addAllocatorFlags(cmd *cobra.Command) {
	cmd.Flags().Int("segsize", 1<<16, "segment size in bytes")
	cmd.Flags().String("index", "splay", "free index: address-list, size-list, segregated, splay")
	cmd.Flags().Int("maxreq", halloc.DefaultMaxRequest, "maximum single allocate/reallocate request")

	// viper keeps one binding per key, so bind when this subcommand runs
	// rather than when it is built; otherwise the last subcommand built
	// would own the binding for every other one.
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		for _, name := range []string{"segsize", "index", "maxreq"} {
			if err := viper.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
				return err
			}
		}
		return nil
	}
}

func buildAllocator() (*halloc.Allocator, error) {
	name := viper.GetString("index")
	ctor, ok := indexCtors[name]
	if !ok {
		return nil, errors.Errorf("unknown index %q (want one of address-list, size-list, segregated, splay)", name)
	}

	segSize := viper.GetInt("segsize")
	a, err := ctor(make([]byte, segSize))
	if err != nil {
		return nil, errors.Wrapf(err, "initializing a %d-byte segment", segSize)
	}

	if maxReq := viper.GetInt("maxreq"); maxReq > 0 {
		a.SetMaxRequest(maxReq)
	}
	return a, nil
}
