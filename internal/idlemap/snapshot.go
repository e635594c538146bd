/*
 * Copyright 2018 Netflix, Inc.
 * Licensed under the Apache License, Version 2.0 (the "License")
 */

package idlemap

import (
	"errors"
	"fmt"
	"io"

	"github.com/platform9/wss/internal/errs"
)

/*
 * Doing this one by one via syscall read/write on a large process can take
 * too long, eg, 7 minutes for a 130 Gbyte process. Instead, snapshot the
 * idle bitmap into our memory with the fewest syscalls allowed and process
 * it with loads. Much faster, at the cost of some memory.
 *
 * Caveat: the set phase idles every physical page of the host, not only the
 * target's. Other processes' pages are marked too, and a concurrent user of
 * idle page tracking sees its results disturbed.
 */

// Snapshot idles the whole bitmap with large writes and answers IsIdle
// from an in-memory copy taken once per run.
type Snapshot struct {
	r        io.ReaderAt
	w        io.WriterAt
	capacity int
	initial  int
	bufSize  int
	closers  []io.Closer

	arena     []byte
	loaded    int
	truncated bool

	// written is the byte count of the last SetIdle.
	written int
}

func NewSnapshot(r io.ReaderAt, w io.WriterAt, capacity, bufSize int) *Snapshot {
	if capacity <= 0 {
		capacity = DefaultMaxSnapshot
	}
	// whole words only
	capacity -= capacity % ChunkSize
	if bufSize <= 0 {
		bufSize = DefaultBufSize
	}
	bufSize -= bufSize % ChunkSize
	if bufSize == 0 {
		bufSize = ChunkSize
	}
	return &Snapshot{r: r, w: w, capacity: capacity, initial: capacity, bufSize: bufSize}
}

// SetInitial sets the arena size allocated by the first Snapshot. Values
// outside (0, Capacity] mean Capacity.
func (a *Snapshot) SetInitial(n int) {
	n -= n % ChunkSize
	if n <= 0 || n > a.capacity {
		n = a.capacity
	}
	a.initial = n
}

func (a *Snapshot) Name() string { return string(StrategySnapshot) }

// Capacity is the largest bitmap size the arena grows to, in bytes.
func (a *Snapshot) Capacity() int { return a.capacity }

// Written returns the bytes of all-ones written by the last SetIdle.
func (a *Snapshot) Written() int { return a.written }

// Loaded returns the bytes captured by the last Snapshot.
func (a *Snapshot) Loaded() int { return a.loaded }

// SetIdle writes all-ones until the kernel stops accepting them or the
// capacity is reached. The kernel silently ignores bits of non-user pages.
func (a *Snapshot) SetIdle(PageWalk) error {
	buf := make([]byte, a.bufSize)
	putAllIdle(buf)

	a.written = 0
	for a.written < a.capacity {
		chunk := buf
		if rest := a.capacity - a.written; rest < len(chunk) {
			chunk = chunk[:rest]
		}
		n, err := a.w.WriteAt(chunk, int64(a.written))
		a.written += n
		if err != nil || n < len(chunk) {
			break
		}
	}
	if a.written == 0 {
		return fmt.Errorf("can't write idlemap: %w: nothing written", errs.ErrIO)
	}
	return nil
}

// Snapshot copies the bitmap into the arena, which is allocated here and
// kept until Release. The arena doubles, up to Capacity, while the bitmap
// still has data.
func (a *Snapshot) Snapshot() error {
	if a.arena == nil {
		a.arena = make([]byte, a.initial)
	}
	a.loaded = 0
	for a.loaded < a.capacity {
		if a.loaded == len(a.arena) {
			a.grow()
		}
		end := min(a.loaded+a.bufSize, len(a.arena))
		n, err := a.r.ReadAt(a.arena[a.loaded:end], int64(a.loaded))
		a.loaded += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("error reading idlemap at %d: %w: %v", a.loaded, errs.ErrIO, err)
		}
		if n == 0 {
			break
		}
	}
	// whole words only
	a.loaded -= a.loaded % ChunkSize
	a.truncated = a.loaded == a.capacity && a.more()
	return nil
}

func (a *Snapshot) grow() {
	n := min(2*len(a.arena), a.capacity)
	if n < ChunkSize {
		n = min(ChunkSize, a.capacity)
	}
	arena := make([]byte, n)
	copy(arena, a.arena[:a.loaded])
	a.arena = arena
}

// more reports whether the bitmap has data past the arena.
func (a *Snapshot) more() bool {
	var word [ChunkSize]byte
	n, _ := a.r.ReadAt(word[:], int64(a.capacity))
	return n > 0
}

// Truncated reports whether the last snapshot stopped at Capacity with
// bitmap left unread, in which case PFNs past it are out of bounds rather
// than absent. It survives Release.
func (a *Snapshot) Truncated() bool {
	return a.truncated
}

func (a *Snapshot) IsIdle(pfn uint64) (bool, error) {
	off := uint64(wordOffset(pfn))
	if off+ChunkSize > uint64(a.loaded) {
		return false, fmt.Errorf("bad PFN %x: word at %d, snapshot holds %d bytes: %w", pfn, off, a.loaded, errs.ErrBounds)
	}
	return idleBit(le64(a.arena[off:off+ChunkSize]), pfn), nil
}

func (a *Snapshot) Release() {
	a.arena = nil
	a.loaded = 0
}

func (a *Snapshot) Close() error {
	a.Release()
	return closeAll(a.closers)
}
