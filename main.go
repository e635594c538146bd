/*
*
* This work is based on
* http://www.brendangregg.com/wss.pl
* Re-written in golang for better integration with rest of Platform9 stack
* Requirements: Linux 4.3+, CONFIG_IDLE_PAGE_TRACKING, root
* USAGE: wss [flags] PID duration

  - COLUMNS:
  - - Est(s):  Estimated WSS measurement duration: this accounts for delays
  - with setting and reading pagemap data, which inflates the
  - intended sleep duration.
  - - Ref(MB): Referenced (Mbytes) during the specified duration.
  - This is the working set size metric.
    *
  - Two strategies are available. "fine" sets and reads one idle bitmap word
  - per page, which is exact but issues a syscall per page in each phase.
  - "snapshot" idles the whole host with large writes and reads a copy of
  - the bitmap into memory, which is much faster for large processes at the
  - cost of memory and of idling every other process's pages too. "auto"
  - picks one from the target's RSS.
    *
  - WARNING: This tool sets and reads system and process page flags, which can
  - take over one second of CPU time, during which application may experience
  - slightly higher latency (eg, 5%). Consider these overheads. Also, this is
  - activating some new kernel code added in Linux 4.3 that you may have never
  - executed before. As is the case for any such code, there is the risk of
  - undiscovered kernel panics (I have no specific reason to worry, just being
  - paranoid). Test in a lab environment for your kernel versions, and consider
  - this experimental: use at your own risk.
    *
  - Copyright 2018 Netflix, Inc.
  - Licensed under the Apache License, Version 2.0 (the "License")
    *
  - 13-Jan-2018	Brendan Gregg	Created this.
  - 10-Mar-2024  Platform9 Systems Inc created a golang version of the same
*/
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/alecthomas/kingpin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/platform9/wss/internal/config"
	"github.com/platform9/wss/internal/errs"
	"github.com/platform9/wss/internal/idlemap"
	wsslog "github.com/platform9/wss/internal/log"
	"github.com/platform9/wss/internal/procmem"
	"github.com/platform9/wss/internal/report"
	"github.com/platform9/wss/internal/wss"
)

var (
	app = kingpin.New("wss", "Estimate the working set size of a process using idle page tracking.")

	pidArg      = app.Arg("pid", "Target process ID.").Required().Int()
	durationArg = app.Arg("duration", "Sampling duration in seconds (at least 0.01).").Required().Float64()

	configFlag    = app.Flag("config", "YAML config file.").Short('c').PlaceHolder("FILE").String()
	strategyFlag  = app.Flag("strategy", "Idle bitmap strategy: auto, fine or snapshot.").Enum("auto", "fine", "snapshot")
	thresholdFlag = app.Flag("threshold", "RSS in bytes at which auto selects the snapshot strategy.").PlaceHolder("BYTES").String()
	snapMaxFlag   = app.Flag("snapshot-max", "Snapshot buffer limit in bytes, 0 sizes it from host memory and grows it as needed.").PlaceHolder("BYTES").String()
	minRegionFlag = app.Flag("min-region", "Ignore regions smaller than this many bytes.").PlaceHolder("BYTES").String()
	procRootFlag  = app.Flag("proc-root", "procfs mount point.").PlaceHolder("DIR").String()
	idlePathFlag  = app.Flag("idle-path", "Idle page bitmap path.").PlaceHolder("FILE").String()
	textfileFlag  = app.Flag("textfile", "Also write the result as a node_exporter textfile.").PlaceHolder("FILE").String()
	verboseFlag   = app.Flag("verbose", "Print phase timings and page counts.").Short('v').Bool()
	debugFlag     = app.Flag("debug", "Debug logging.").Bool()
)

func parseUint(name, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s %q: %w", name, s, err)
	}
	return v, nil
}

// loadConfig reads the config file, if any, and applies the flags on top.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *configFlag != "" {
		c, err := config.NewConfigWithFile(*configFlag)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	if *strategyFlag != "" {
		cfg.Strategy = idlemap.Strategy(*strategyFlag)
	}
	if *thresholdFlag != "" {
		v, err := parseUint("threshold", *thresholdFlag)
		if err != nil {
			return nil, err
		}
		cfg.Snapshot.Threshold = v
	}
	if *snapMaxFlag != "" {
		v, err := parseUint("snapshot-max", *snapMaxFlag)
		if err != nil {
			return nil, err
		}
		cfg.Snapshot.MaxBytes = int(v)
	}
	if *minRegionFlag != "" {
		v, err := parseUint("min-region", *minRegionFlag)
		if err != nil {
			return nil, err
		}
		cfg.MinRegionBytes = v
	}
	if *procRootFlag != "" {
		cfg.ProcRoot = *procRootFlag
	}
	if *idlePathFlag != "" {
		cfg.IdleBitmapPath = *idlePathFlag
	}
	if *textfileFlag != "" {
		cfg.Textfile = *textfileFlag
	}
	cfg.Verbose = cfg.Verbose || *verboseFlag
	cfg.Debug = cfg.Debug || *debugFlag
	return cfg, cfg.Verify()
}

func main() {
	if _, err := app.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: error: %s, try --help\n", app.Name, err)
		os.Exit(errs.ExitOther)
	}
	os.Exit(run(os.Stdout))
}

// run samples the parsed target and writes the report to stdout. It
// returns the process exit code.
func run(stdout io.Writer) int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "wss: %s\n", err)
		return errs.ExitOther
	}
	logger, closer, err := wsslog.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wss: %s\n", err)
		return errs.ExitOther
	}
	defer closer.Close()

	pid := *pidArg
	log := logger.WithField("pid", pid)
	fatal := func(msg string, err error) int {
		log.WithError(err).Error(msg)
		return errs.ExitCode(err)
	}

	// assume 4 KiB pages throughout
	if ps := unix.Getpagesize(); uint64(ps) != procmem.PageSize {
		log.Warnf("page size is %d, results assume %d byte pages", ps, procmem.PageSize)
	}

	duration, err := wss.DurationFromSeconds(*durationArg)
	if err != nil {
		return fatal("Interval too short. Exiting.", err)
	}

	rss, err := wss.ProcessRSS(cfg.ProcRoot, pid)
	if err != nil {
		return fatal("Can't inspect target process", err)
	}
	strategy := wss.ChooseStrategy(cfg.Strategy, rss, cfg.Snapshot.Threshold)
	log = log.WithField("strategy", strategy)
	log.Debugf("target rss %d bytes, threshold %d", rss, cfg.Snapshot.Threshold)

	var hostPages uint64
	opts := idlemap.Options{
		MaxSnapshot: cfg.Snapshot.MaxBytes,
		BufSize:     cfg.Snapshot.BufSize,
	}
	if strategy == idlemap.StrategySnapshot {
		if hostPages, err = wss.HostPages(cfg.ProcRoot); err != nil {
			log.WithError(err).Warn("can't read host memory size")
		}
		// 0 sizes the arena from host memory and lets it grow
		if opts.MaxSnapshot == 0 {
			opts.MaxSnapshot = idlemap.MaxAutoSnapshot
			opts.InitialSnapshot = idlemap.DefaultMaxSnapshot
			if hostPages > 0 {
				opts.InitialSnapshot = wss.SnapshotCapacity(hostPages)
			}
		}
		log.Debugf("snapshot arena %d bytes, up to %d", opts.InitialSnapshot, opts.MaxSnapshot)
	}

	bitmap, err := idlemap.Open(strategy, cfg.IdleBitmapPath, opts)
	if err != nil {
		return fatal("Can't open idle page bitmap", err)
	}
	defer bitmap.Close()

	pagemap, err := procmem.OpenPagemap(cfg.ProcRoot, pid)
	if err != nil {
		return fatal("Can't open pagemap", err)
	}
	defer pagemap.Close()

	var translator procmem.Translator = procmem.NewPerPage(pagemap, procmem.PageSize)
	if strategy == idlemap.StrategySnapshot {
		translator = procmem.NewBulk(pagemap, procmem.PageSize)
	}

	regions := procmem.NewEnumerator(cfg.ProcRoot, pid, log)
	regions.Boundary = cfg.KernelBoundary
	regions.MinBytes = cfg.MinRegionBytes

	sampler := &wss.Sampler{
		Regions:  regions,
		Pagemap:  translator,
		Bitmap:   bitmap,
		Clock:    wss.RealClock,
		PageSize: procmem.PageSize,
		Log:      log,
	}

	fmt.Fprintf(stdout, "Watching PID %d page references during %.2f seconds...\n", pid, *durationArg)
	res, err := sampler.Run(duration)
	if err != nil {
		return fatal("Error sampling working set", err)
	}
	if snap, ok := bitmap.(*idlemap.Snapshot); ok {
		checkSnapshot(log, snap, hostPages)
	}

	if cfg.Verbose {
		if err := report.Verbose(stdout, res); err != nil {
			return fatal("Error writing report", err)
		}
	}
	if err := report.Table(stdout, res); err != nil {
		return fatal("Error writing report", err)
	}
	if cfg.Textfile != "" {
		if err := report.WriteTextfile(cfg.Textfile, pid, res); err != nil {
			log.WithError(err).Errorf("can't write textfile %s", cfg.Textfile)
		}
	}
	return errs.ExitOK
}

// checkSnapshot warns when the set phase did not reach every page of the
// host or the snapshot filled its whole buffer.
func checkSnapshot(log *logrus.Entry, snap *idlemap.Snapshot, hostPages uint64) {
	if hostPages > 0 && !wss.Covered(snap.Written(), hostPages) {
		log.Warnf("idle flags set for only %d of %d host pages (%d bytes written)",
			uint64(snap.Written())*8, hostPages, snap.Written())
	}
	if snap.Truncated() {
		log.Warnf("idle map is longer than the %d byte snapshot limit, raise --snapshot-max", snap.Capacity())
	}
}
