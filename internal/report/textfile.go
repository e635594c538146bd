/*
 * Copyright 2018 Netflix, Inc.
 * Licensed under the Apache License, Version 2.0 (the "License")
 */

package report

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/platform9/wss/internal/wss"
)

// Metrics holds the gauges of one result, registered on a private
// registry so nothing global outlives the run.
type Metrics struct {
	registry *prometheus.Registry

	ReferencedBytes   prometheus.Gauge
	ActivePages       prometheus.Gauge
	WalkedPages       prometheus.Gauge
	SkippedRegions    prometheus.Gauge
	EstimatedDuration prometheus.Gauge
	PhaseDuration     *prometheus.GaugeVec
}

// NewMetrics builds the gauges for results of pid.
func NewMetrics(pid int, strategy string) *Metrics {
	labels := prometheus.Labels{"pid": strconv.Itoa(pid), "strategy": strategy}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "wss",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	m := &Metrics{
		registry:          prometheus.NewRegistry(),
		ReferencedBytes:   gauge("referenced_bytes", "Bytes referenced during the sampling window (working set size)"),
		ActivePages:       gauge("active_pages", "Pages found referenced during the sampling window"),
		WalkedPages:       gauge("walked_pages", "Pages with a physical frame visited in the read phase"),
		SkippedRegions:    gauge("skipped_regions", "Regions skipped because of I/O errors in the read phase"),
		EstimatedDuration: gauge("estimated_duration_seconds", "Sampling window corrected for set and read overhead"),
		PhaseDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "wss",
			Name:        "phase_duration_seconds",
			Help:        "Duration of each sampling phase",
			ConstLabels: labels,
		}, []string{"phase"}),
	}
	m.registry.MustRegister(
		m.ReferencedBytes,
		m.ActivePages,
		m.WalkedPages,
		m.SkippedRegions,
		m.EstimatedDuration,
		m.PhaseDuration,
	)
	return m
}

// Observe sets every gauge from res.
func (m *Metrics) Observe(res *wss.Result) {
	t := res.Timings()
	m.ReferencedBytes.Set(float64(res.ReferencedBytes()))
	m.ActivePages.Set(float64(res.Active))
	m.WalkedPages.Set(float64(res.Walked))
	m.SkippedRegions.Set(float64(res.SkippedRegions))
	m.EstimatedDuration.Set(seconds(t.EstimatedUs))
	m.PhaseDuration.WithLabelValues("set").Set(seconds(t.SetUs))
	m.PhaseDuration.WithLabelValues("sleep").Set(seconds(t.SleepUs))
	m.PhaseDuration.WithLabelValues("read").Set(seconds(t.ReadUs))
}

func (m *Metrics) Gatherer() prometheus.Gatherer { return m.registry }

// WriteTextfile writes res in the node_exporter textfile format. The
// file is replaced atomically.
func WriteTextfile(path string, pid int, res *wss.Result) error {
	m := NewMetrics(pid, res.Strategy)
	m.Observe(res)
	return prometheus.WriteToTextfile(path, m.registry)
}
