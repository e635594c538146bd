/*
 * Copyright 2018 Netflix, Inc.
 * Licensed under the Apache License, Version 2.0 (the "License")
 */

// Package log configures the logrus logger used by every component.
package log

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/platform9/wss/internal/config"
)

// New configures a logger from cfg. Output goes to stderr so stdout only
// carries the report. Debug turns on debug level and caller reporting.
func New(cfg *config.Config) (*logrus.Logger, io.Closer, error) {
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Debug && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}

	writers := []io.Writer{os.Stderr}
	var closer io.Closer = nopCloser{}
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s for output: %w", cfg.Log.File, err)
		}
		writers = append(writers, f)
		closer = f
	}

	logger := logrus.New()
	logger.SetOutput(io.MultiWriter(writers...))
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(level)
	if cfg.Debug {
		logger.SetReportCaller(true)
	}
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
