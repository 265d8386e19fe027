// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package renewal

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dykim0518/makestar-e2e-tests/internal/authstore"
	"github.com/dykim0518/makestar-e2e-tests/internal/browserdriver"
	"github.com/dykim0518/makestar-e2e-tests/internal/sites"
	"github.com/dykim0518/makestar-e2e-tests/internal/testutil/fakedriver"
)

func newInteractiveForTest(t *testing.T, d *fakedriver.FakeDriver) (*InteractiveRenewer, authstore.Repository) {
	t.Helper()
	store := authstore.New(t.TempDir())
	r := NewInteractiveRenewer(sites.Main, store, t.TempDir())
	r.openBrowser = func(_ context.Context) (browserdriver.Driver, error) { return d, nil }
	r.MaxWait = 50 * time.Millisecond
	r.pollInterval = time.Millisecond
	r.cookiePollInterval = time.Millisecond
	r.cookiePollAttempts = 3
	return r, store
}

func TestInteractiveRenewalHumanCompletesLogin(t *testing.T) {
	var polls atomic.Int64
	d := &fakedriver.FakeDriver{
		Storage: map[string]string{"accessToken": "human-token"},
	}
	d.AddCookie(authstore.Cookie{Name: "msk_session", Value: "fresh", Domain: ".makestar.co"})
	// The human takes a few polls to finish, then the browser lands back on the origin.
	d.LocationFunc = func() (string, error) {
		if polls.Add(1) < 3 {
			return "https://accounts.google.com/signin/v2/identifier", nil
		}
		return sites.Main.ProtectedEntry, nil
	}
	r, store := newInteractiveForTest(t, d)

	ok, err := r.Attempt(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{sites.Main.ProtectedEntry}, d.NavigateCalls)
	require.True(t, d.Closed)

	record := store.Load()
	require.NotNil(t, record)
	require.Equal(t, "human-token", record.AccessToken)
	require.NotNil(t, store.LoadSnapshot(sites.Main))
}

func TestInteractiveRenewalHumanNeverFinishes(t *testing.T) {
	d := &fakedriver.FakeDriver{}
	d.LocationFunc = func() (string, error) {
		return "https://accounts.google.com/signin/v2/identifier", nil
	}
	r, store := newInteractiveForTest(t, d)

	ok, err := r.Attempt(context.Background())
	require.False(t, ok)
	require.ErrorIs(t, err, ErrInteractiveRenewalTimeout)
	require.True(t, d.Closed)
	require.Nil(t, store.Load())
}

func TestInteractiveRenewalLockHeldElsewhere(t *testing.T) {
	d := &fakedriver.FakeDriver{}
	r, _ := newInteractiveForTest(t, d)
	r.acquireLock = func(_ context.Context) (func(), bool, error) {
		return nil, false, nil
	}

	ok, err := r.Attempt(context.Background())
	require.False(t, ok)
	require.ErrorIs(t, err, ErrInteractiveRenewalTimeout)
	require.Empty(t, d.NavigateCalls, "no browser work while another worker holds the lock")
}

func TestInteractiveRenewalAnotherWorkerAlreadyRenewed(t *testing.T) {
	d := &fakedriver.FakeDriver{}
	r, _ := newInteractiveForTest(t, d)
	r.alreadyRenewed = func() bool { return true }

	ok, err := r.Attempt(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, d.NavigateCalls, "nothing to do when the lock wait outlasted the renewal")
}

func TestInteractiveRenewalSessionCookieNeverAppears(t *testing.T) {
	d := &fakedriver.FakeDriver{
		CurrentURL: sites.Main.ProtectedEntry,
		Storage:    map[string]string{"accessToken": "token-without-session-cookie"},
	}
	r, store := newInteractiveForTest(t, d)

	ok, err := r.Attempt(context.Background())
	require.NoError(t, err)
	require.True(t, ok, "a completed login is harvested even when the session cookie is missing")

	record := store.Load()
	require.NotNil(t, record)
	require.Equal(t, "token-without-session-cookie", record.AccessToken)
}
