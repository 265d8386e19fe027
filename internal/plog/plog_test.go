// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package plog

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllLevelsEmitStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	restore := TestOnlySetGlobalLoggerWriter(&buf)
	t.Cleanup(restore)

	Error("something broke", errors.New("boom"), "site", "main")
	Warning("watch out", "site", "main")
	WarningErr("watch out with cause", errors.New("cause"))
	Info("nice to know")
	InfoErr("expected failure", errors.New("expected"))
	Debug("developer detail", "attempt", 3)

	out := buf.String()
	require.Contains(t, out, "something broke")
	require.Contains(t, out, "boom")
	require.Contains(t, out, `"warning": "true"`)
	require.Contains(t, out, "nice to know")
	require.Contains(t, out, "developer detail")
}

func TestWarningIsTaggedForSearchability(t *testing.T) {
	var buf bytes.Buffer
	restore := TestOnlySetGlobalLoggerWriter(&buf)
	t.Cleanup(restore)

	Warning("only a warning")
	Info("only an info")

	require.Contains(t, buf.String(), `"warning": "true"`)
	// The marker must not leak onto non-warning lines.
	require.Equal(t, 1, bytes.Count(buf.Bytes(), []byte(`"warning": "true"`)))
}

func TestSetupRejectsInvalidLevel(t *testing.T) {
	_, err := Setup(LogLevel("loud"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid log level")
}

func TestSetupAcceptsEachLevel(t *testing.T) {
	for _, level := range []LogLevel{"", LogLevelWarning, LogLevelInfo, LogLevelDebug} {
		flush, err := Setup(level)
		require.NoError(t, err, "level %q", level)
		flush()
	}
	// Leave the suite with the quiet default.
	_, err := Setup(LogLevelWarning)
	require.NoError(t, err)
}
