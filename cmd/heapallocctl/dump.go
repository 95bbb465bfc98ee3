// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cznic/memalloc/halloc"
	"github.com/cznic/memalloc/internal/script"
)

func dumpCmd() *cobra.Command {
	var freeIndexOnly bool

	cmd := &cobra.Command{
		Use:   "dump <script>",
		Short: "Replay a script, then print the heap (or just the free index)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "opening script")
			}
			defer f.Close()

			ops, err := script.Parse(f)
			if err != nil {
				return errors.Wrap(err, "parsing script")
			}

			alloc, err := buildAllocator()
			if err != nil {
				return err
			}

			exec := script.NewExecutor(alloc, nil)
			if err := exec.Run(ops); err != nil {
				log.WithError(err).Warn("script did not finish cleanly; dumping whatever state remains")
			}

			if freeIndexOnly {
				halloc.PrintFreeIndex(alloc, os.Stdout)
				return nil
			}
			halloc.DumpHeap(alloc, os.Stdout)
			return nil
		},
	}

	addAllocatorFlags(cmd)
	cmd.Flags().BoolVar(&freeIndexOnly, "free-index", false, "print only the free index, not the whole heap")
	return cmd
}
