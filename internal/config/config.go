/*
 * Copyright 2018 Netflix, Inc.
 * Licensed under the Apache License, Version 2.0 (the "License")
 */

// Package config holds the settings of a sampling run.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/platform9/wss/internal/idlemap"
	"github.com/platform9/wss/internal/procmem"
	"github.com/platform9/wss/internal/wss"
)

// Log info.
type Log struct {
	Level string `yaml:"level"`
	// File additionally receives log output when set.
	File string `yaml:"file"`
}

var defaultLog = Log{
	Level: "info",
}

// Snapshot configures the snapshot strategy.
type Snapshot struct {
	// Threshold is the target RSS at which auto picks the snapshot
	// strategy.
	Threshold uint64 `yaml:"threshold_bytes"`
	// MaxBytes caps the in-memory copy of the bitmap. 0 sizes it from the
	// host's physical memory.
	MaxBytes int `yaml:"max_bytes"`
	// BufSize is the chunk of each bulk write and read.
	BufSize int `yaml:"buf_size"`
}

var defaultSnapshot = Snapshot{
	Threshold: wss.DefaultSnapshotThreshold,
	MaxBytes:  idlemap.DefaultMaxSnapshot,
	BufSize:   idlemap.DefaultBufSize,
}

type Config struct {
	File string `yaml:"-"`

	ProcRoot       string           `yaml:"proc_root"`
	IdleBitmapPath string           `yaml:"idle_bitmap_path"`
	Strategy       idlemap.Strategy `yaml:"strategy"`
	Snapshot       Snapshot         `yaml:"snapshot"`
	// KernelBoundary is the first address treated as kernel memory.
	KernelBoundary uint64 `yaml:"kernel_boundary"`
	MinRegionBytes uint64 `yaml:"min_region_bytes"`
	// Textfile is a node_exporter textfile collector path for the result.
	Textfile string `yaml:"textfile"`
	Verbose  bool   `yaml:"verbose"`
	Debug    bool   `yaml:"debug"`
	Log      Log    `yaml:"log"`
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		ProcRoot:       procmem.DefaultProcRoot,
		IdleBitmapPath: idlemap.DefaultPath,
		Strategy:       idlemap.StrategyAuto,
		Snapshot:       defaultSnapshot,
		KernelBoundary: procmem.KernelBoundary,
		Log:            defaultLog,
	}
}

// NewConfigWithBytes parses YAML on top of the defaults.
func NewConfigWithBytes(b []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(b, config); err != nil {
		return nil, err
	}
	return config, nil
}

func NewConfigWithFile(file string) (*Config, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("can't open file: %s: %w", file, err)
	}
	config, err := NewConfigWithBytes(b)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}
	config.File = file
	return config, nil
}

func (c *Config) Verify() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if !c.Strategy.IsValid() {
		return fmt.Errorf("unknown strategy %q, want auto, fine or snapshot", c.Strategy)
	}
	if c.ProcRoot == "" {
		return errors.New("proc_root is empty")
	}
	if c.IdleBitmapPath == "" {
		return errors.New("idle_bitmap_path is empty")
	}
	if c.Snapshot.MaxBytes < 0 {
		return fmt.Errorf("snapshot max_bytes %d is negative", c.Snapshot.MaxBytes)
	}
	if c.Snapshot.MaxBytes%idlemap.ChunkSize != 0 {
		return fmt.Errorf("snapshot max_bytes %d is not a multiple of %d", c.Snapshot.MaxBytes, idlemap.ChunkSize)
	}
	if c.Snapshot.BufSize < idlemap.ChunkSize || c.Snapshot.BufSize%idlemap.ChunkSize != 0 {
		return fmt.Errorf("snapshot buf_size %d must be a positive multiple of %d", c.Snapshot.BufSize, idlemap.ChunkSize)
	}
	if c.KernelBoundary == 0 {
		return errors.New("kernel_boundary is zero")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
