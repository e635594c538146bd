/*
 * Copyright 2018 Netflix, Inc.
 * Licensed under the Apache License, Version 2.0 (the "License")
 */

package procmem

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/platform9/wss/internal/errs"
)

const (
	// EntrySize is the size of one pagemap entry in bytes.
	EntrySize uint64 = 8

	// PFNMask keeps bits 0-54 of an entry.
	PFNMask = uint64(1)<<55 - 1

	swappedBit = uint64(1) << 62
	presentBit = uint64(1) << 63
)

// Entry is one 64-bit pagemap word.
type Entry uint64

// PFN returns the page frame number, or 0 when the page has no frame.
// Swapped entries carry a swap offset in the PFN bits and report 0.
func (e Entry) PFN() uint64 {
	if e.Swapped() {
		return 0
	}
	return uint64(e) & PFNMask
}

func (e Entry) Present() bool { return uint64(e)&presentBit != 0 }
func (e Entry) Swapped() bool { return uint64(e)&swappedBit != 0 }

// Translator converts the pages of a region into pagemap entries.
type Translator interface {
	// Walk calls fn for every page of r with its virtual address and
	// entry. Translation failures wrap errs.ErrIO; errors from fn are
	// returned unchanged.
	Walk(r Region, fn func(vaddr uint64, e Entry) error) error
}

func entryOffset(vaddr, pageSize uint64) int64 {
	return int64(EntrySize * (vaddr / pageSize))
}

// PerPage translates with one positioned read per page. Simple, but
// syscall bound on large processes.
type PerPage struct {
	r        io.ReaderAt
	pageSize uint64
}

func NewPerPage(r io.ReaderAt, pageSize uint64) *PerPage {
	return &PerPage{r: r, pageSize: pageSize}
}

func (t *PerPage) Walk(r Region, fn func(uint64, Entry) error) error {
	var buf [EntrySize]byte
	for p := r.Start; p+t.pageSize <= r.End; p += t.pageSize {
		n, err := t.r.ReadAt(buf[:], entryOffset(p, t.pageSize))
		if n != len(buf) {
			return fmt.Errorf("can't read pagemap at %x: %w: read %d bytes: %v", p, errs.ErrIO, n, err)
		}
		if err := fn(p, Entry(binary.LittleEndian.Uint64(buf[:]))); err != nil {
			return err
		}
	}
	return nil
}

// BulkWindow is the most pagemap entries Bulk reads at once. Reserved
// regions can span terabytes, so a region is read in windows of this size.
const BulkWindow = 128 * 1024

// Bulk reads the pagemap of a region with as few syscalls as possible and
// decodes the entries from memory.
type Bulk struct {
	r        io.ReaderAt
	pageSize uint64
	window   uint64
	buf      []byte
}

func NewBulk(r io.ReaderAt, pageSize uint64) *Bulk {
	return &Bulk{r: r, pageSize: pageSize, window: BulkWindow}
}

func (t *Bulk) Walk(r Region, fn func(uint64, Entry) error) error {
	pages := r.Pages(t.pageSize)
	for first := uint64(0); first < pages; first += t.window {
		count := pages - first
		if count > t.window {
			count = t.window
		}
		if err := t.walkWindow(r, r.Start+first*t.pageSize, count, fn); err != nil {
			return err
		}
	}
	return nil
}

func (t *Bulk) walkWindow(r Region, start, count uint64, fn func(uint64, Entry) error) error {
	size := int(count * EntrySize)
	if cap(t.buf) < size {
		t.buf = make([]byte, size)
	}
	buf := t.buf[:size]

	// optimized: read this in one syscall
	n, err := t.r.ReadAt(buf, entryOffset(start, t.pageSize))
	if n != size {
		return fmt.Errorf("read page map failed for %s at %x: %w: read %d of %d bytes: %v", r, start, errs.ErrIO, n, size, err)
	}
	for i := 0; i < size; i += int(EntrySize) {
		vaddr := start + uint64(i)/EntrySize*t.pageSize
		if err := fn(vaddr, Entry(binary.LittleEndian.Uint64(buf[i:]))); err != nil {
			return err
		}
	}
	return nil
}

// OpenPagemap opens /proc/<pid>/pagemap under root for reading.
func OpenPagemap(root string, pid int) (*os.File, error) {
	if root == "" {
		root = DefaultProcRoot
	}
	f, err := os.Open(filepath.Join(root, strconv.Itoa(pid), "pagemap"))
	if err != nil {
		return nil, fmt.Errorf("can't read pagemap file for pid %d: %w: %v", pid, errs.Classify(err), err)
	}
	return f, nil
}
