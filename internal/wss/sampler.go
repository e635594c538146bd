/*
 * Copyright 2018 Netflix, Inc.
 * Licensed under the Apache License, Version 2.0 (the "License")
 */

// Package wss estimates the working set size of a process: mark its pages
// idle, sleep, then count the pages referenced in between.
package wss

//go:generate go run go.uber.org/mock/mockgen -package wss -destination mock_test.go github.com/platform9/wss/internal/idlemap Accessor

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platform9/wss/internal/errs"
	"github.com/platform9/wss/internal/idlemap"
	"github.com/platform9/wss/internal/procmem"
)

// MinDuration is the shortest sleep that gives a meaningful signal given
// the syscall overhead of the set and read phases.
const MinDuration = 10 * time.Millisecond

// DurationFromSeconds converts a CLI duration and rejects intervals below
// MinDuration.
func DurationFromSeconds(sec float64) (time.Duration, error) {
	if math.IsNaN(sec) || math.IsInf(sec, 0) || sec < MinDuration.Seconds() {
		return 0, fmt.Errorf("interval %v s too short: %w", sec, errs.ErrInvalidDuration)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

// State is a phase of one sampling run.
type State int

const (
	StateIdle State = iota
	StateSetting
	StateSleeping
	StateReading
	StateReported
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSetting:
		return "setting"
	case StateSleeping:
		return "sleeping"
	case StateReading:
		return "reading"
	case StateReported:
		return "reported"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// RegionSource enumerates the regions of the target. Walk may be called
// more than once per run.
type RegionSource interface {
	Walk(fn func(procmem.Region) error) error
}

// Counters are the page counts of one run. Regions that fail midway
// contribute nothing.
type Counters struct {
	Walked   uint64 // pages with a PFN
	Active   uint64 // walked pages found referenced
	Unmapped uint64
	Swapped  uint64

	Regions        uint64
	SkippedRegions uint64 // failed during the read phase
	SetSkipped     uint64 // failed during the set phase
}

// Result is the outcome of one run.
type Result struct {
	Counters
	Window   Window
	Strategy string
	PageSize uint64
}

func (r *Result) Timings() Timings { return r.Window.Timings() }

func (r *Result) ReferencedBytes() uint64 { return r.Active * r.PageSize }

func (r *Result) WalkedBytes() uint64 { return r.Walked * r.PageSize }

func (r *Result) ReferencedMB() float64 {
	return float64(r.ReferencedBytes()) / (1024 * 1024)
}

// Sampler runs the set, sleep, read protocol against one target using one
// idle bitmap strategy. It is not safe for concurrent use, and neither is
// the kernel facility: two samplers running at once corrupt each other.
type Sampler struct {
	Regions  RegionSource
	Pagemap  procmem.Translator
	Bitmap   idlemap.Accessor
	Clock    Clock
	PageSize uint64
	Log      *logrus.Entry

	// OnState is called on every state transition.
	OnState func(State)

	state State
}

func (s *Sampler) State() State { return s.state }

func (s *Sampler) enter(st State) {
	s.state = st
	s.logger().Debugf("entering %s", st)
	if s.OnState != nil {
		s.OnState(st)
	}
}

func (s *Sampler) clock() Clock {
	if s.Clock == nil {
		return RealClock
	}
	return s.Clock
}

func (s *Sampler) pageSize() uint64 {
	if s.PageSize == 0 {
		return procmem.PageSize
	}
	return s.PageSize
}

func (s *Sampler) logger() *logrus.Entry {
	if s.Log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return s.Log
}

// Run samples for d. Startup failures (bad duration, unreadable maps) are
// returned before any idle bit is touched. Per-region I/O failures skip
// the region; ErrBounds and bitmap-wide failures abort the run.
func (s *Sampler) Run(d time.Duration) (*Result, error) {
	s.state = StateIdle
	if d < MinDuration {
		return nil, fmt.Errorf("interval %s too short, minimum %s: %w", d, MinDuration, errs.ErrInvalidDuration)
	}

	var regions int
	if err := s.Regions.Walk(func(procmem.Region) error {
		regions++
		return nil
	}); err != nil {
		return nil, err
	}
	s.logger().Debugf("%d user regions before set phase", regions)

	defer s.Bitmap.Release()

	clock := s.clock()
	res := &Result{Strategy: s.Bitmap.Name(), PageSize: s.pageSize()}

	// set idle flags
	s.enter(StateSetting)
	res.Window.Set = clock.Now()
	var set Counters
	err := s.Bitmap.SetIdle(func(visit func(uint64) error) error {
		return s.walkPages("set", &set, func(pfn uint64, _ *tally) error {
			return visit(pfn)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("setting idle map: %w", err)
	}
	res.SetSkipped = set.SkippedRegions

	// sleep
	s.enter(StateSleeping)
	res.Window.SleepStart = clock.Now()
	clock.Sleep(d)
	res.Window.SleepEnd = clock.Now()

	// read idle flags
	s.enter(StateReading)
	if err := s.Bitmap.Snapshot(); err != nil {
		return nil, fmt.Errorf("loading idle map: %w", err)
	}
	err = s.walkPages("read", &res.Counters, func(pfn uint64, t *tally) error {
		idle, err := s.Bitmap.IsIdle(pfn)
		if err != nil {
			return err
		}
		t.walked++
		if !idle {
			t.active++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading idle map: %w", err)
	}
	res.Window.Read = clock.Now()

	s.enter(StateReported)
	return res, nil
}

// tally holds the counts of one region until it completes.
type tally struct {
	walked, active, unmapped, swapped uint64
}

// walkPages visits the PFN of every mapped page of every region. A
// region whose translation or visit fails is logged and skipped, except
// for ErrBounds which ends the walk.
func (s *Sampler) walkPages(phase string, c *Counters, visit func(pfn uint64, t *tally) error) error {
	trace := s.logger().Logger.IsLevelEnabled(logrus.TraceLevel)
	return s.Regions.Walk(func(r procmem.Region) error {
		c.Regions++
		var t tally
		err := s.Pagemap.Walk(r, func(vaddr uint64, e procmem.Entry) error {
			pfn := e.PFN()
			if pfn == 0 {
				if e.Swapped() {
					t.swapped++
				} else {
					t.unmapped++
				}
				return nil
			}
			if trace {
				s.logger().Tracef("%s: p %x pfn %x", phase, vaddr, pfn)
			}
			return visit(pfn, &t)
		})
		if errors.Is(err, errs.ErrBounds) {
			return err
		}
		if err != nil {
			c.SkippedRegions++
			s.logger().WithFields(logrus.Fields{
				"phase":  phase,
				"region": r.String(),
			}).WithError(err).Warn("skipping region")
			return nil
		}
		c.Walked += t.walked
		c.Active += t.active
		c.Unmapped += t.unmapped
		c.Swapped += t.swapped
		return nil
	})
}
