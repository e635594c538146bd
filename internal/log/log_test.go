/*
 * Copyright 2018 Netflix, Inc.
 * Licensed under the Apache License, Version 2.0 (the "License")
 */

package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platform9/wss/internal/config"
)

func TestNew(t *testing.T) {
	cfg := config.DefaultConfig()
	logger, closer, err := New(cfg)
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.False(t, logger.ReportCaller)
}

func TestNew_Debug(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Debug = true
	logger, closer, err := New(cfg)
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.True(t, logger.ReportCaller)

	cfg.Log.Level = "trace"
	logger, _, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, logrus.TraceLevel, logger.GetLevel())
}

func TestNew_File(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Log.File = filepath.Join(t.TempDir(), "wss.log")
	logger, closer, err := New(cfg)
	require.NoError(t, err)

	logger.WithField("pid", 42).Warn("skipping region")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(cfg.Log.File)
	require.NoError(t, err)
	assert.Contains(t, string(b), "level=warning")
	assert.Contains(t, string(b), "pid=42")
}

func TestNew_BadLevel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Log.Level = "loud"
	_, _, err := New(cfg)
	assert.Error(t, err)
}
