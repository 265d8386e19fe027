// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package failureflag implements the cross-process "authentication is currently broken"
// signal. One worker's unrecoverable failure is written here so that sibling workers fail
// fast with one clear reason instead of each re-discovering the same root cause.
package failureflag

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// flagFileName is the flag file inside the state directory.
	flagFileName = "auth-failure.json"

	// TTL is how long a written flag stays meaningful. A flag older than this is treated
	// as absent regardless of its contents, so the system self-heals without manual
	// cleanup if a stale flag is left behind.
	TTL = 1 * time.Hour
)

// Failure is what a worker learns when it consults the flag.
type Failure struct {
	Reason    string
	Timestamp time.Time
}

// flagFile is the on-disk JSON shape. Timestamp is epoch milliseconds.
type flagFile struct {
	Failed    bool   `json:"failed"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

// Coordinator reads and writes the shared flag file. Safe for use from many processes:
// writes are whole-file renames and reads tolerate missing or corrupt files.
type Coordinator struct {
	path string

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// New returns a Coordinator storing its flag inside dir.
func New(dir string) *Coordinator {
	return &Coordinator{
		path: filepath.Join(dir, flagFileName),
		now:  time.Now,
	}
}

// Check returns the current failure, or nil when the flag is absent, unreadable, not failed,
// or older than TTL. Consulted at the start of any authenticated test.
func (c *Coordinator) Check() *Failure {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil
	}
	var flag flagFile
	if err := json.Unmarshal(data, &flag); err != nil {
		return nil
	}
	if !flag.Failed {
		return nil
	}
	written := time.UnixMilli(flag.Timestamp)
	if c.now().Sub(written) > TTL {
		return nil
	}
	return &Failure{Reason: flag.Reason, Timestamp: written}
}

// MarkFailed records an unrecoverable authentication failure for every worker to see.
func (c *Coordinator) MarkFailed(reason string) error {
	flag := flagFile{
		Failed:    true,
		Reason:    reason,
		Timestamp: c.now().UnixMilli(),
	}
	data, err := json.Marshal(flag)
	if err != nil {
		return fmt.Errorf("could not marshal failure flag: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("could not create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), flagFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("could not write failure flag: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close failure flag: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		return fmt.Errorf("could not replace failure flag: %w", err)
	}
	return nil
}

// Clear removes the flag. Called the moment any worker successfully completes an
// authenticated navigation: a later success invalidates an earlier failure.
func (c *Coordinator) Clear() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not clear failure flag: %w", err)
	}
	return nil
}
