// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package authstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dykim0518/makestar-e2e-tests/internal/sites"
)

// credentialFileName is the single credential record file inside the state directory.
const credentialFileName = "credentials.json"

// Repository is the read/write contract for durable credential and session material.
// The filesystem store below is the only production implementation; tests substitute fakes.
type Repository interface {
	Load() *CredentialRecord
	Save(record *CredentialRecord) error
	LoadSnapshot(site sites.Site) *SessionSnapshot
	SaveSnapshot(site sites.Site, snapshot *SessionSnapshot) error
}

// Option configures a Store in New().
type Option func(*Store)

// WithErrorReporter is an Option that specifies a callback which will be invoked for each
// recoverable error encountered while reading store files. By default, these errors are
// silently ignored, because a corrupt or missing file is treated as "absent".
func WithErrorReporter(reporter func(error)) Option {
	return func(s *Store) {
		s.errReporter = reporter
	}
}

// New returns a Repository backed by JSON files in the given directory.
func New(dir string, options ...Option) *Store {
	s := &Store{
		dir:         dir,
		errReporter: func(_ error) {},
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

type Store struct {
	dir         string
	errReporter func(error)
}

var _ Repository = (*Store)(nil)

// Load reads the credential record. It returns nil when the file is missing or cannot be
// parsed: callers must proceed as if no credential exists, never treat this as fatal.
func (s *Store) Load() *CredentialRecord {
	var record CredentialRecord
	if !s.readJSONFile(filepath.Join(s.dir, credentialFileName), &record) {
		return nil
	}
	record.Quality = classifyQuality(record.AccessToken)
	return &record
}

// Save overwrites the credential record in place. Concurrent savers race, last writer wins;
// the rename below keeps each individual write whole.
func (s *Store) Save(record *CredentialRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil credential record")
	}
	return s.writeJSONFile(filepath.Join(s.dir, credentialFileName), record)
}

// LoadSnapshot reads the session snapshot for one site, nil when absent or corrupt.
func (s *Store) LoadSnapshot(site sites.Site) *SessionSnapshot {
	var snapshot SessionSnapshot
	if !s.readJSONFile(filepath.Join(s.dir, site.SnapshotFileName()), &snapshot) {
		return nil
	}
	return &snapshot
}

// SaveSnapshot overwrites the session snapshot for one site.
func (s *Store) SaveSnapshot(site sites.Site, snapshot *SessionSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("cannot save nil session snapshot")
	}
	return s.writeJSONFile(filepath.Join(s.dir, site.SnapshotFileName()), snapshot)
}

func (s *Store) readJSONFile(path string, into any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.errReporter(fmt.Errorf("could not read %s: %w", filepath.Base(path), err))
		}
		return false
	}
	if err := json.Unmarshal(data, into); err != nil {
		// A corrupt or partially written file means "absent", not "fatal".
		s.errReporter(fmt.Errorf("invalid %s, treating as absent: %w", filepath.Base(path), err))
		return false
	}
	return true
}

// writeJSONFile writes the whole file through a temp file plus rename so that a concurrent
// reader or a racing writer can never observe an interleaved or partial write.
func (s *Store) writeJSONFile(path string, from any) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("could not create state directory: %w", err)
	}
	data, err := json.MarshalIndent(from, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("could not chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("could not write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("could not replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
