/*
 * Copyright 2018 Netflix, Inc.
 * Licensed under the Apache License, Version 2.0 (the "License")
 */

// Package idlemap reads and sets the kernel idle page bitmap.
//
// See https://www.kernel.org/doc/Documentation/vm/idle_page_tracking.txt.
// The bitmap holds one bit per PFN, packed into 64-bit words: bit pfn%64
// of the word at byte offset (pfn/64)*8. A set bit means the page has not
// been referenced since it was marked idle.
package idlemap

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/platform9/wss/internal/errs"
)

const (
	DefaultPath = "/sys/kernel/mm/page_idle/bitmap"

	// from mm/page_idle.c
	ChunkSize = 8

	// DefaultBufSize is the write and read chunk of the snapshot strategy.
	DefaultBufSize = 4096

	// DefaultMaxSnapshot is big enough to span 740 GB of physical memory.
	DefaultMaxSnapshot = 20 * 1024 * 1024

	// MaxAutoSnapshot bounds a snapshot sized from host memory. It spans
	// 8 TiB of physical address space.
	MaxAutoSnapshot = 256 * 1024 * 1024
)

// PageWalk calls visit with the PFN of every mapped page of the target.
type PageWalk func(visit func(pfn uint64) error) error

// Accessor is one strategy for setting and querying idle bits.
type Accessor interface {
	Name() string
	// SetIdle marks pages idle. Strategies that idle the whole bitmap do
	// not call walk.
	SetIdle(walk PageWalk) error
	// Snapshot prepares the accessor for IsIdle queries.
	Snapshot() error
	IsIdle(pfn uint64) (bool, error)
	// Release drops any state held since Snapshot.
	Release()
	Close() error
}

// Strategy names an Accessor implementation.
type Strategy string

const (
	StrategyAuto     Strategy = "auto"
	StrategyFine     Strategy = "fine"
	StrategySnapshot Strategy = "snapshot"
)

func (s Strategy) IsValid() bool {
	switch s {
	case StrategyAuto, StrategyFine, StrategySnapshot:
		return true
	}
	return false
}

func wordOffset(pfn uint64) int64 {
	return int64((pfn / 64) * ChunkSize)
}

func idleBit(word, pfn uint64) bool {
	return word&(1<<(pfn%64)) != 0
}

func putAllIdle(buf []byte) {
	for i := range buf {
		buf[i] = 0xff
	}
}

func le64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }

// Options configures Open.
type Options struct {
	// MaxSnapshot caps the bytes of the snapshot arena.
	MaxSnapshot int
	// InitialSnapshot is the arena allocated up front. The arena grows
	// toward MaxSnapshot while the bitmap has more to read. 0 starts at
	// MaxSnapshot.
	InitialSnapshot int
	// BufSize is the chunk used for bulk writes and reads.
	BufSize int
}

// Open opens the bitmap at path for the given strategy. The bitmap is
// opened write-only for setting and read-only for reading; failing either
// is fatal, as it means missing privilege or a kernel built without
// CONFIG_IDLE_PAGE_TRACKING.
func Open(s Strategy, path string, opts Options) (Accessor, error) {
	if path == "" {
		path = DefaultPath
	}
	w, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, openError(path, err)
	}
	r, err := os.Open(path)
	if err != nil {
		w.Close()
		return nil, openError(path, err)
	}
	closers := []io.Closer{w, r}

	switch s {
	case StrategyFine:
		a := NewFineGrained(r, w)
		a.closers = closers
		return a, nil
	case StrategySnapshot:
		a := NewSnapshot(r, w, opts.MaxSnapshot, opts.BufSize)
		a.SetInitial(opts.InitialSnapshot)
		a.closers = closers
		return a, nil
	}
	w.Close()
	r.Close()
	return nil, fmt.Errorf("unknown idle map strategy %q", s)
}

// openError reports every open failure as ErrPermissionDenied.
func openError(path string, err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("can't open idlemap file %s (kernel without CONFIG_IDLE_PAGE_TRACKING?): %w: %v", path, errs.ErrPermissionDenied, err)
	}
	return fmt.Errorf("can't open idlemap file %s: %w: %v", path, errs.ErrPermissionDenied, err)
}

func closeAll(closers []io.Closer) error {
	var first error
	for _, c := range closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
