// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cznic/memalloc/internal/script"
)

func runCmd() *cobra.Command {
	var validateEachStep bool

	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Replay a request script against a fresh allocator",
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

			exec := script.NewExecutor(alloc, logrus.NewEntry(log))
			exec.Validate = validateEachStep
			if err := exec.Run(ops); err != nil {
				return errors.Wrap(err, "replaying script")
			}

			log.WithFields(logrus.Fields{
				"requests":   len(ops),
				"live":       exec.Live(),
				"free_total": alloc.FreeTotal(),
				"capacity":   alloc.Capacity(),
			}).Info("script replayed")

			if _, errs := alloc.ValidateHeap(); len(errs) != 0 {
				for _, e := range errs {
					log.Error(e)
				}
				return errors.New("heap failed validation after replay")
			}
			return nil
		},
	}

	addAllocatorFlags(cmd)
	cmd.Flags().BoolVar(&validateEachStep, "validate-each", false, "run ValidateHeap after every request, not just at the end")
	return cmd
}
