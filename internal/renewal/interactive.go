// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package renewal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/dykim0518/makestar-e2e-tests/internal/authstore"
	"github.com/dykim0518/makestar-e2e-tests/internal/browserdriver"
	"github.com/dykim0518/makestar-e2e-tests/internal/plog"
	"github.com/dykim0518/makestar-e2e-tests/internal/pollwait"
	"github.com/dykim0518/makestar-e2e-tests/internal/sites"
)

const (
	// DefaultMaxWait is how long a human gets to complete the login in the visible window.
	DefaultMaxWait = 3 * time.Minute

	// humanPollInterval is how often we check whether the human has finished.
	humanPollInterval = 2 * time.Second

	// cookiePollInterval and cookiePollAttempts bound the wait for session-identifying
	// cookies after the redirect lands: a redirect alone does not guarantee the identity
	// provider has finished setting cookies.
	cookiePollInterval = 500 * time.Millisecond
	cookiePollAttempts = 20

	// lockRetryInterval is how often we poll for the cross-process interactive lock.
	lockRetryInterval = 1 * time.Second

	// interactiveLockFileName is the lock file which makes interactive renewal a
	// cross-process singleflight: at most one worker may prompt the operator at a time.
	interactiveLockFileName = "interactive-login.lock"
)

// InteractiveRenewer drives a visible browser session and waits, bounded, for a human to
// complete the login before harvesting session material.
type InteractiveRenewer struct {
	site      sites.Site
	store     authstore.Repository
	harvester *Harvester

	// MaxWait is the human-completion budget. Defaults to DefaultMaxWait.
	MaxWait time.Duration

	// External calls for things (to be mocked in tests).
	openBrowser func(ctx context.Context) (browserdriver.Driver, error)
	acquireLock func(ctx context.Context) (release func(), acquired bool, err error)

	// alreadyRenewed is consulted after the lock is won: when another worker finished the
	// login while we were waiting for the lock, there is nothing left to do.
	alreadyRenewed func() bool

	pollInterval       time.Duration
	cookiePollInterval time.Duration
	cookiePollAttempts int
}

var _ Renewer = (*InteractiveRenewer)(nil)

// NewInteractiveRenewer wires an InteractiveRenewer against the real visible browser and a
// flock-based cross-process lock inside stateDir.
func NewInteractiveRenewer(site sites.Site, store authstore.Repository, stateDir string) *InteractiveRenewer {
	lock := flock.New(filepath.Join(stateDir, interactiveLockFileName))
	r := &InteractiveRenewer{
		site:      site,
		store:     store,
		harvester: NewHarvester(),
		MaxWait:   DefaultMaxWait,
		openBrowser: func(ctx context.Context) (browserdriver.Driver, error) {
			return browserdriver.Open(ctx, browserdriver.Options{Headless: false})
		},
		alreadyRenewed:     func() bool { return false },
		pollInterval:       humanPollInterval,
		cookiePollInterval: cookiePollInterval,
		cookiePollAttempts: cookiePollAttempts,
	}
	r.acquireLock = func(ctx context.Context) (func(), bool, error) {
		lockCtx, cancel := context.WithTimeout(ctx, r.MaxWait)
		defer cancel()
		acquired, err := lock.TryLockContext(lockCtx, lockRetryInterval)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, false, err
		}
		if !acquired {
			return nil, false, nil
		}
		return func() { _ = lock.Unlock() }, true, nil
	}
	return r
}

// Attempt opens the visible browser and waits for the human. A timeout returns false with
// ErrInteractiveRenewalTimeout and no other escalation: the caller decides how to surface
// the remediation instruction to the operator.
func (r *InteractiveRenewer) Attempt(ctx context.Context) (bool, error) {
	release, acquired, err := r.acquireLock(ctx)
	if err != nil {
		return false, fmt.Errorf("could not acquire interactive login lock: %w", err)
	}
	if !acquired {
		plog.Info("another worker is already completing an interactive login", "site", r.site.Name)
		return false, ErrInteractiveRenewalTimeout
	}
	defer release()

	if r.alreadyRenewed() {
		plog.Info("credential was renewed while waiting for the interactive lock", "site", r.site.Name)
		return true, nil
	}

	d, err := r.openBrowser(ctx)
	if err != nil {
		return false, fmt.Errorf("could not open visible browser: %w", err)
	}
	defer func() { _ = d.Close() }()

	if err := d.Navigate(ctx, r.site.ProtectedEntry); err != nil {
		return false, err
	}
	plog.Info("waiting for a human to complete the login in the browser window",
		"site", r.site.Name, "budget", r.MaxWait.String())

	attempts := int(r.MaxWait / r.pollInterval)
	if attempts < 1 {
		attempts = 1
	}
	err = pollwait.Poll(ctx, r.pollInterval, attempts, func(ctx context.Context) (bool, error) {
		current, err := d.Location(ctx)
		if err != nil {
			return false, err
		}
		return r.site.IsOnOrigin(current) && !r.site.IsLoginURL(current), nil
	})
	if err != nil {
		var exhausted *pollwait.ErrAttemptsExhausted
		if errors.As(err, &exhausted) {
			return false, ErrInteractiveRenewalTimeout
		}
		return false, err
	}

	// The redirect landed, but the provider may still be mid-way through setting cookies.
	// Wait for the session-identifying cookie before harvesting.
	err = pollwait.Poll(ctx, r.cookiePollInterval, r.cookiePollAttempts, func(ctx context.Context) (bool, error) {
		cookies, err := d.Cookies(ctx)
		if err != nil {
			return false, err
		}
		for _, c := range cookies {
			if c.Name == r.site.SessionCookieName {
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		var exhausted *pollwait.ErrAttemptsExhausted
		if !errors.As(err, &exhausted) {
			return false, err
		}
		// The session cookie never showed up, but the human did land on the protected
		// origin. Harvest whatever exists rather than discarding a completed login.
		plog.Warning("session cookie did not appear after login, harvesting anyway",
			"site", r.site.Name, "cookie", r.site.SessionCookieName)
	}

	if err := persistHarvest(ctx, d, r.site, r.store, r.harvester); err != nil {
		return false, err
	}
	plog.Info("interactive login completed and session material persisted", "site", r.site.Name)
	return true, nil
}
