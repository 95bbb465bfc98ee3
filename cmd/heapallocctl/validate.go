// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cznic/memalloc/internal/script"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <script>",
		Short: "Replay a script, then report ValidateHeap's findings",
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
				log.WithError(err).Warn("script did not finish cleanly; validating whatever state remains")
			}

			stats, errs := alloc.ValidateHeap()
			log.WithFields(map[string]interface{}{
				"segment_bytes":    stats.SegmentBytes,
				"total_blocks":     stats.TotalBlocks,
				"free_blocks":      stats.FreeBlocks,
				"allocated_blocks": stats.AllocatedBlocks,
				"free_bytes":       stats.FreeBytes,
				"allocated_bytes":  stats.AllocatedBytes,
			}).Info("validate_heap stats")

			if len(errs) == 0 {
				log.Info("heap is structurally sound")
				return nil
			}
			for _, e := range errs {
				log.Error(e)
			}
			return errors.Errorf("%d corruption(s) found", len(errs))
		},
	}

	addAllocatorFlags(cmd)
	return cmd
}
