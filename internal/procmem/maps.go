/*
 * Copyright 2018 Netflix, Inc.
 * Licensed under the Apache License, Version 2.0 (the "License")
 */

// Package procmem reads the per-process memory views exposed under /proc:
// the maps listing (virtual regions) and the pagemap (virtual to physical
// translation).
//
// see Documentation/vm/pagemap.txt:
// also https://fivelinesofcode.blogspot.com/2014/03/how-to-translate-virtual-to-physical.html
package procmem

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/platform9/wss/internal/errs"
)

const (
	// PageSize is the only page size supported.
	PageSize uint64 = 4096

	// KernelBoundary is PAGE_OFFSET on x86_64. Idle page tracking is user
	// memory only, so regions starting above it are ignored.
	KernelBoundary uint64 = 0xffff880000000000

	DefaultProcRoot = "/proc"
)

// Region is one virtual address range of the maps listing.
type Region struct {
	Start uint64
	End   uint64
}

func (r Region) Size() uint64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// Pages returns the number of pages spanned by r.
func (r Region) Pages(pageSize uint64) uint64 {
	return r.Size() / pageSize
}

func (r Region) String() string {
	return fmt.Sprintf("%x-%x", r.Start, r.End)
}

// ParseRegion parses the leading "start-end" range of a maps line.
func ParseRegion(line string) (Region, error) {
	var r Region
	if _, err := fmt.Sscanf(line, "%x-%x", &r.Start, &r.End); err != nil {
		return Region{}, fmt.Errorf("parsing maps line %q: %w", line, err)
	}
	if r.End < r.Start {
		return Region{}, fmt.Errorf("parsing maps line %q: end before start", line)
	}
	return r, nil
}

// Enumerator walks the resident regions of one process.
type Enumerator struct {
	Root     string
	Pid      int
	Boundary uint64
	// MinBytes drops regions smaller than this. Zero keeps everything.
	MinBytes uint64
	Log      *logrus.Entry
}

func NewEnumerator(root string, pid int, log *logrus.Entry) *Enumerator {
	if root == "" {
		root = DefaultProcRoot
	}
	return &Enumerator{
		Root:     root,
		Pid:      pid,
		Boundary: KernelBoundary,
		Log:      log,
	}
}

func (e *Enumerator) path() string {
	return filepath.Join(e.Root, strconv.Itoa(e.Pid), "maps")
}

// Walk calls fn for each user region in listing order. The listing is read
// lazily and re-opened on every call. Malformed lines are skipped; an
// error from fn stops the walk and is returned as is.
func (e *Enumerator) Walk(fn func(Region) error) error {
	mapsfile, err := os.Open(e.path())
	if err != nil {
		return fmt.Errorf("can't read maps file for pid %d: %w: %v", e.Pid, errs.Classify(err), err)
	}
	defer mapsfile.Close()

	scanner := bufio.NewScanner(mapsfile)
	for scanner.Scan() {
		line := scanner.Text()
		r, err := ParseRegion(line)
		if err != nil {
			e.logger().WithError(err).Debug("skipping malformed maps line")
			continue
		}
		e.logger().Debugf("MAP %s", r)
		if r.Start > e.Boundary {
			continue
		}
		if e.MinBytes > 0 && r.Size() < e.MinBytes {
			continue
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading maps file for pid %d: %w: %v", e.Pid, errs.Classify(err), err)
	}
	return nil
}

// Collect returns all regions Walk would visit.
func (e *Enumerator) Collect() ([]Region, error) {
	var regions []Region
	err := e.Walk(func(r Region) error {
		regions = append(regions, r)
		return nil
	})
	return regions, err
}

func (e *Enumerator) logger() *logrus.Entry {
	if e.Log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return e.Log
}
