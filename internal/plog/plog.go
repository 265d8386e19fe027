// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package plog implements a thin layer over logr to help enforce this repo's logging convention.
// Logs are always structured as a constant message with key and value pairs of related metadata.
//
// The logging levels in order of increasing verbosity are: error, warning, info, debug.
//
// error and warning logs are always emitted, and thus should be used sparingly. Ideally, logs
// at these levels should be actionable.
//
// info should be reserved for "nice to know" information, such as the outcome of a renewal
// attempt. debug should be used for information targeted at developers debugging a flaky login
// flow. Care must be taken at every level to not leak session material into the log stream.
package plog

import "github.com/go-logr/logr"

const errorKey = "error"

// Use Error to log an unexpected system error.
func Error(msg string, err error, keysAndValues ...any) {
	getGlobal().Error(err, msg, keysAndValues...)
}

func Warning(msg string, keysAndValues ...any) {
	// logr has no concept of a warning, so use info at verbosity zero with a marker key
	// to make these easier to find.
	keysAndValues = append([]any{"warning", "true"}, keysAndValues...)
	getGlobal().V(LevelWarning).Info(msg, keysAndValues...)
}

// Use WarningErr to issue a Warning message with an error object as part of the message.
func WarningErr(msg string, err error, keysAndValues ...any) {
	Warning(msg, append([]any{errorKey, err}, keysAndValues...)...)
}

func Info(msg string, keysAndValues ...any) {
	getGlobal().V(LevelInfo).Info(msg, keysAndValues...)
}

// Use InfoErr to log an expected error, e.g. a silent renewal giving up because a real login
// form appeared.
func InfoErr(msg string, err error, keysAndValues ...any) {
	Info(msg, append([]any{errorKey, err}, keysAndValues...)...)
}

func Debug(msg string, keysAndValues ...any) {
	getGlobal().V(LevelDebug).Info(msg, keysAndValues...)
}

// Use DebugErr to issue a Debug message with an error object as part of the message.
func DebugErr(msg string, err error, keysAndValues ...any) {
	Debug(msg, append([]any{errorKey, err}, keysAndValues...)...)
}

// Logr returns the global logger for callers which need to pass a logr.Logger to a collaborator.
func Logr() logr.Logger {
	return getGlobal()
}
