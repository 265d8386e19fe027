// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package plog

import "fmt"

// LogLevel is a valid log level for the global logger.
type LogLevel string

const (
	// LevelWarning (i.e. `warning`) is the default log level. Always emitted.
	LevelWarning = 0

	// LevelInfo (i.e. `info`) is the nice-to-know log level.
	LevelInfo = 2

	// LevelDebug (i.e. `debug`) is the developer log level. May be noisy during login flows.
	LevelDebug = 4

	// LogLevelWarning and friends are the spellings accepted by Setup and the CLI flag.
	LogLevelWarning LogLevel = "warning"
	LogLevelInfo    LogLevel = "info"
	LogLevelDebug   LogLevel = "debug"
)

func verbosityForLevel(level LogLevel) (int, error) {
	switch level {
	case LogLevelWarning, "":
		return LevelWarning, nil
	case LogLevelInfo:
		return LevelInfo, nil
	case LogLevelDebug:
		return LevelDebug, nil
	default:
		return 0, fmt.Errorf("invalid log level, valid choices are the empty string, %s, %s and %s",
			LogLevelWarning, LogLevelInfo, LogLevelDebug)
	}
}
