// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package script parses and replays the request-script grammar of
// spec.md §6 against a halloc.Allocator: lines of the form "a <id> <size>",
// "r <id> <size>" and "f <id>", tagging each live allocation by its id the
// way falloc_test.go's randomized workload tags handles for later lookup.
package script

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cznic/memalloc/halloc"
)

// Op is one parsed request-script line.
type Op struct {
	Kind Kind
	ID   string
	Size int
	Line int
}

// Kind identifies which of the three script verbs an Op carries out.
type Kind int

const (
	Allocate Kind = iota
	Reallocate
	Free
)

// Parse reads a script, one request per line. Blank lines and lines
// beginning with '#' are ignored, matching the tolerance real stored test
// scripts need for comments and spacing.
func Parse(r io.Reader) ([]Op, error) {
	var ops []Op
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		op, err := parseLine(fields)
		if err != nil {
			return nil, errors.Wrapf(err, "script line %d: %q", lineNo, line)
		}
		op.Line = lineNo
		ops = append(ops, op)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "reading script")
	}
	return ops, nil
}

func parseLine(fields []string) (Op, error) {
	if len(fields) == 0 {
		return Op{}, errors.New("empty request")
	}

	switch fields[0] {
	case "a":
		if len(fields) != 3 {
			return Op{}, errors.Errorf("want \"a <id> <size>\", got %d fields", len(fields))
		}
		n, err := strconv.Atoi(fields[2])
		if err != nil {
			return Op{}, errors.Wrap(err, "size")
		}
		return Op{Kind: Allocate, ID: fields[1], Size: n}, nil

	case "r":
		if len(fields) != 3 {
			return Op{}, errors.Errorf("want \"r <id> <size>\", got %d fields", len(fields))
		}
		n, err := strconv.Atoi(fields[2])
		if err != nil {
			return Op{}, errors.Wrap(err, "size")
		}
		return Op{Kind: Reallocate, ID: fields[1], Size: n}, nil

	case "f":
		if len(fields) != 2 {
			return Op{}, errors.Errorf("want \"f <id>\", got %d fields", len(fields))
		}
		return Op{Kind: Free, ID: fields[1]}, nil

	default:
		return Op{}, errors.Errorf("unknown request verb %q", fields[0])
	}
}

// Executor replays parsed Ops against an Allocator, keeping the id -> Addr
// tag table spec.md §6 describes. It never panics: a bad request (unknown
// tag, exhaustion) is returned by Run and aborts the remaining script,
// matching spec.md §6's "malformed lines ... produce a diagnostic and
// abort".
type Executor struct {
	Alloc    *halloc.Allocator
	Validate bool // run ValidateHeap after every request, as pAllocator does in tests

	tags map[string]halloc.Addr
	log  *logrus.Entry
}

// NewExecutor builds an Executor over alloc. log may be nil, in which case
// a package-level default logger is used.
func NewExecutor(alloc *halloc.Allocator, log *logrus.Entry) *Executor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Executor{Alloc: alloc, tags: make(map[string]halloc.Addr), log: log}
}

// Run replays every op in order, stopping at the first failure.
func (e *Executor) Run(ops []Op) error {
	for _, op := range ops {
		if err := e.apply(op); err != nil {
			return errors.Wrapf(err, "line %d", op.Line)
		}
	}
	return nil
}

func (e *Executor) apply(op Op) error {
	entry := e.log.WithFields(logrus.Fields{"line": op.Line, "id": op.ID})

	switch op.Kind {
	case Allocate:
		p := e.Alloc.Allocate(op.Size)
		if p == halloc.NullAddr {
			return fmt.Errorf("allocate(%d) for id %q failed (exhaustion or invalid size)", op.Size, op.ID)
		}
		e.tags[op.ID] = p
		entry.WithField("bytes", op.Size).Debug("allocate")

	case Reallocate:
		p, ok := e.tags[op.ID]
		if !ok {
			return fmt.Errorf("reallocate: unknown tag %q", op.ID)
		}
		np := e.Alloc.Reallocate(p, op.Size)
		if np == halloc.NullAddr && op.Size != 0 {
			return fmt.Errorf("reallocate(%d) for id %q failed", op.Size, op.ID)
		}
		if op.Size == 0 {
			delete(e.tags, op.ID)
		} else {
			e.tags[op.ID] = np
		}
		entry.WithField("bytes", op.Size).Debug("reallocate")

	case Free:
		p, ok := e.tags[op.ID]
		if !ok {
			return fmt.Errorf("free: unknown tag %q", op.ID)
		}
		e.Alloc.Free(p)
		delete(e.tags, op.ID)
		entry.Debug("free")

	default:
		return fmt.Errorf("unknown op kind %d", op.Kind)
	}

	if e.Validate {
		if _, errs := e.Alloc.ValidateHeap(); len(errs) != 0 {
			return fmt.Errorf("heap invalid after line %d: %v", op.Line, errs)
		}
	}
	return nil
}

// Live returns the number of tags currently mapped to a live allocation.
func (e *Executor) Live() int { return len(e.tags) }
