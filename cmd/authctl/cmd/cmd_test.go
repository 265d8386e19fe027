// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dykim0518/makestar-e2e-tests/internal/tokenexpiry"
)

// fakeGate records which gate methods a command invoked.
type fakeGate struct {
	classification tokenexpiry.Classification

	ensureErr      error
	forceErr       error
	interactiveErr error

	ensureCalls      int
	forceCalls       int
	interactiveCalls int
}

func (f *fakeGate) Ensure(_ context.Context) error {
	f.ensureCalls++
	return f.ensureErr
}

func (f *fakeGate) ForceRenew(_ context.Context) error {
	f.forceCalls++
	return f.forceErr
}

func (f *fakeGate) ForceInteractive(_ context.Context) error {
	f.interactiveCalls++
	return f.interactiveErr
}

func (f *fakeGate) Classification() tokenexpiry.Classification {
	return f.classification
}

func runAuthctl(t *testing.T, gate *fakeGate, args ...string) (string, string, error) {
	t.Helper()
	params := newRootParams()
	params.buildGate = func(siteName string) (sessionGate, error) {
		require.Equal(t, "main", siteName)
		return gate, nil
	}
	rootCmd := params.cmd()
	rootCmd.AddCommand(
		(&setupParams{rootParams: params}).cmd(),
		(&forceParams{rootParams: params}).cmd(),
		(&autoParams{rootParams: params}).cmd(),
	)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestDefaultCommandRenewsOnlyIfInvalid(t *testing.T) {
	gate := &fakeGate{}
	stdout, _, err := runAuthctl(t, gate)
	require.NoError(t, err)
	require.Equal(t, 1, gate.ensureCalls)
	require.Zero(t, gate.forceCalls)
	require.Zero(t, gate.interactiveCalls)
	require.Contains(t, stdout, "session is valid")
}

func TestDefaultCommandSurfacesRemediation(t *testing.T) {
	gate := &fakeGate{ensureErr: errors.New(`renewal failed: run "authctl setup" to repair`)}
	_, _, err := runAuthctl(t, gate)
	require.Error(t, err)
	require.Contains(t, err.Error(), "authctl setup")
}

func TestSetupForcesInteractive(t *testing.T) {
	gate := &fakeGate{}
	stdout, _, err := runAuthctl(t, gate, "setup")
	require.NoError(t, err)
	require.Equal(t, 1, gate.interactiveCalls)
	require.Zero(t, gate.ensureCalls)
	require.Contains(t, stdout, "interactive login completed")
}

func TestForceRunsFullCycle(t *testing.T) {
	gate := &fakeGate{}
	stdout, _, err := runAuthctl(t, gate, "force")
	require.NoError(t, err)
	require.Equal(t, 1, gate.forceCalls)
	require.Contains(t, stdout, "session renewed")
}

func TestAutoValidSessionShortCircuits(t *testing.T) {
	gate := &fakeGate{classification: tokenexpiry.Valid}
	stdout, _, err := runAuthctl(t, gate, "auto")
	require.NoError(t, err)
	require.Zero(t, gate.ensureCalls, "a valid session must not trigger any renewal work")
	require.Contains(t, stdout, "session is valid")
}

func TestAutoInvalidSessionAttemptsRenewal(t *testing.T) {
	gate := &fakeGate{classification: tokenexpiry.Expired}
	stdout, stderr, err := runAuthctl(t, gate, "auto")
	require.NoError(t, err)
	require.Equal(t, 1, gate.ensureCalls)
	require.Contains(t, stderr, "attempting renewal")
	require.Contains(t, stdout, "session renewed")
}

func TestAutoRenewalFailurePropagates(t *testing.T) {
	gate := &fakeGate{
		classification: tokenexpiry.Missing,
		ensureErr:      errors.New(`nobody completed the interactive login: run "authctl setup" to repair`),
	}
	_, _, err := runAuthctl(t, gate, "auto")
	require.Error(t, err)
	require.Contains(t, err.Error(), "authctl setup")
}

func TestUnknownSiteIsRejected(t *testing.T) {
	params := newRootParams()
	rootCmd := params.cmd()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"--site", "nope"})
	err := rootCmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown site "nope"`)
}
