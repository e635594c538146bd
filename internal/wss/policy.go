/*
 * Copyright 2018 Netflix, Inc.
 * Licensed under the Apache License, Version 2.0 (the "License")
 */

package wss

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/common"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/platform9/wss/internal/errs"
	"github.com/platform9/wss/internal/idlemap"
	"github.com/platform9/wss/internal/procmem"
)

// DefaultSnapshotThreshold is the RSS at which auto selects the snapshot
// strategy.
const DefaultSnapshotThreshold uint64 = 64 * 1024 * 1024

// ChooseStrategy resolves auto into a concrete strategy from the target's
// resident set size. Explicit strategies are returned unchanged.
func ChooseStrategy(s idlemap.Strategy, rss, threshold uint64) idlemap.Strategy {
	if s != idlemap.StrategyAuto {
		return s
	}
	if rss >= threshold {
		return idlemap.StrategySnapshot
	}
	return idlemap.StrategyFine
}

// procContext points gopsutil at the procfs mount under root.
func procContext(root string) context.Context {
	if root == "" {
		root = procmem.DefaultProcRoot
	}
	return context.WithValue(context.Background(), common.EnvKey, common.EnvMap{common.HostProcEnvKey: root})
}

// ProcessRSS returns the resident set size of pid, read from the procfs
// mounted at root. A missing process reports errs.ErrProcessNotFound.
func ProcessRSS(root string, pid int) (uint64, error) {
	ctx := procContext(root)
	exists, err := process.PidExistsWithContext(ctx, int32(pid))
	if err != nil {
		return 0, fmt.Errorf("looking up pid %d: %w: %v", pid, errs.ErrIO, err)
	}
	if !exists {
		return 0, fmt.Errorf("pid %d: %w", pid, errs.ErrProcessNotFound)
	}
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return 0, fmt.Errorf("pid %d: %w: %v", pid, errs.ErrProcessNotFound, err)
	}
	info, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading memory info of pid %d: %w: %v", pid, errs.Classify(err), err)
	}
	return info.RSS, nil
}

// HostPages returns the number of physical pages of the host, from the
// meminfo of the procfs mounted at root.
func HostPages(root string) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(procContext(root))
	if err != nil {
		return 0, err
	}
	return vm.Total / procmem.PageSize, nil
}

// SnapshotCapacity is the initial snapshot arena for hostPages pages. PFNs
// of a host span more than its RAM because of holes, so a seventh is added
// on top, then padded to the next whole word. It is a starting size only:
// the arena grows when the bitmap is longer.
func SnapshotCapacity(hostPages uint64) int {
	bytes := hostPages / 8
	bytes += bytes / 7
	bytes += idlemap.ChunkSize - bytes%idlemap.ChunkSize
	return int(bytes)
}

// Covered reports whether written bytes of all-ones reach every page of
// a host with hostPages pages.
func Covered(written int, hostPages uint64) bool {
	return uint64(written)*8 >= hostPages
}
