/*
 * Copyright 2018 Netflix, Inc.
 * Licensed under the Apache License, Version 2.0 (the "License")
 */

// Package errs holds the error kinds shared by the sampling engine and the
// exit codes the command maps them to.
package errs

import (
	"errors"
	"io/fs"

	"golang.org/x/sys/unix"
)

var (
	ErrProcessNotFound  = errors.New("process not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidDuration  = errors.New("invalid duration")
	ErrIO               = errors.New("i/o error")
	ErrBounds           = errors.New("pfn out of snapshot bounds")
)

// Exit codes, one per fatal error kind. ExitOther covers command line and
// config errors and anything unclassified.
const (
	ExitOK               = 0
	ExitInvalidDuration  = 1
	ExitProcessNotFound  = 2
	ExitPermissionDenied = 3
	ExitBounds           = 4
	ExitIO               = 5
	ExitOther            = 6
)

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInvalidDuration):
		return ExitInvalidDuration
	case errors.Is(err, ErrProcessNotFound):
		return ExitProcessNotFound
	case errors.Is(err, ErrPermissionDenied):
		return ExitPermissionDenied
	case errors.Is(err, ErrBounds):
		return ExitBounds
	case errors.Is(err, ErrIO):
		return ExitIO
	}
	return ExitOther
}

// Classify maps an open error on a /proc file to ErrProcessNotFound or
// ErrPermissionDenied. Anything else is reported as ErrIO.
func Classify(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, unix.ESRCH):
		return ErrProcessNotFound
	case errors.Is(err, fs.ErrPermission), errors.Is(err, unix.EPERM):
		return ErrPermissionDenied
	}
	return ErrIO
}
