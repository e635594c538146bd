/*
 * Copyright 2018 Netflix, Inc.
 * Licensed under the Apache License, Version 2.0 (the "License")
 */

package idlemap

import (
	"fmt"
	"io"

	"github.com/platform9/wss/internal/errs"
)

// FineGrained sets and reads one bitmap word per page with positioned
// I/O. Every page costs a syscall in each phase, which is fine for small
// processes and keeps the idle state exact.
type FineGrained struct {
	r       io.ReaderAt
	w       io.WriterAt
	closers []io.Closer
}

func NewFineGrained(r io.ReaderAt, w io.WriterAt) *FineGrained {
	return &FineGrained{r: r, w: w}
}

func (a *FineGrained) Name() string { return string(StrategyFine) }

func (a *FineGrained) SetIdle(walk PageWalk) error {
	var buf [ChunkSize]byte
	putAllIdle(buf[:])
	return walk(func(pfn uint64) error {
		n, err := a.w.WriteAt(buf[:], wordOffset(pfn))
		if n != len(buf) {
			return fmt.Errorf("can't write idlemap for pfn %x: %w: %v", pfn, errs.ErrIO, err)
		}
		return nil
	})
}

func (a *FineGrained) Snapshot() error { return nil }

func (a *FineGrained) IsIdle(pfn uint64) (bool, error) {
	var buf [ChunkSize]byte
	n, err := a.r.ReadAt(buf[:], wordOffset(pfn))
	if n != len(buf) {
		return false, fmt.Errorf("can't read idlemap for pfn %x: %w: %v", pfn, errs.ErrIO, err)
	}
	return idleBit(le64(buf[:]), pfn), nil
}

func (a *FineGrained) Release() {}

func (a *FineGrained) Close() error { return closeAll(a.closers) }
