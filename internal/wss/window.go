/*
 * Copyright 2018 Netflix, Inc.
 * Licensed under the Apache License, Version 2.0 (the "License")
 */

package wss

import "time"

// Window holds the four timestamps bracketing one sampling run.
type Window struct {
	Set        time.Time // T1, set phase begins
	SleepStart time.Time // T2
	SleepEnd   time.Time // T3, read phase begins
	Read       time.Time // T4, read phase done
}

// Timings are the phase lengths of a Window in microseconds.
type Timings struct {
	SetUs       int64
	SleepUs     int64
	ReadUs      int64
	TotalUs     int64
	EstimatedUs int64
}

func micros(d time.Duration) int64 {
	return d.Microseconds()
}

// Timings computes the phase lengths and the estimated duration.
//
// The estimate removes half of the set and read phases, assuming their
// overhead straddles the sleep window evenly. This is a heuristic, not a
// proven error bound.
func (w Window) Timings() Timings {
	t := Timings{
		SetUs:   micros(w.SleepStart.Sub(w.Set)),
		SleepUs: micros(w.SleepEnd.Sub(w.SleepStart)),
		ReadUs:  micros(w.Read.Sub(w.SleepEnd)),
		TotalUs: micros(w.Read.Sub(w.Set)),
	}
	t.EstimatedUs = t.TotalUs - t.SetUs/2 - t.ReadUs/2
	return t
}

// Clock is the time source of a Sampler.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// RealClock uses the wall clock.
var RealClock Clock = realClock{}
