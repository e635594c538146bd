/*
 * Copyright 2018 Netflix, Inc.
 * Licensed under the Apache License, Version 2.0 (the "License")
 */

// Package report formats sampling results.
//
// COLUMNS:
//   - Est(s):  Estimated WSS measurement duration: this accounts for delays
//     with setting and reading pagemap data, which inflates the intended
//     sleep duration.
//   - Ref(MB): Referenced (Mbytes) during the specified duration.
//     This is the working set size metric.
package report

import (
	"fmt"
	"io"

	"github.com/platform9/wss/internal/wss"
)

func seconds(us int64) float64 { return float64(us) / 1000000 }

// Table writes the header and the single data row.
func Table(w io.Writer, res *wss.Result) error {
	if _, err := fmt.Fprintf(w, "%-7s %10s\n", "Est(s)", "Ref(MB)"); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%-7.3f %10.2f\n", seconds(res.Timings().EstimatedUs), res.ReferencedMB())
	return err
}

// Verbose writes phase timings and raw page counts.
func Verbose(w io.Writer, res *wss.Result) error {
	t := res.Timings()
	kb := func(pages uint64) uint64 { return pages * res.PageSize / 1024 }
	_, err := fmt.Fprintf(w,
		"strategy  : %s\n"+
			"set time  : %.3f s\n"+
			"sleep time: %.3f s\n"+
			"read time : %.3f s\n"+
			"dur time  : %.3f s\n"+
			"referenced: %d pages, %d Kbytes\n"+
			"walked    : %d pages, %d Kbytes\n"+
			"unmapped  : %d pages, swapped: %d pages\n"+
			"regions   : %d, skipped: %d (set phase: %d)\n",
		res.Strategy,
		seconds(t.SetUs), seconds(t.SleepUs), seconds(t.ReadUs), seconds(t.TotalUs),
		res.Active, kb(res.Active),
		res.Walked, kb(res.Walked),
		res.Unmapped, res.Swapped,
		res.Regions, res.SkippedRegions, res.SetSkipped,
	)
	return err
}
