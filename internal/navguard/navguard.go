// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package navguard wraps mid-test page navigation with login-redirect detection and bounded
// recovery. Unlike the renewers, it assumes the session should already be valid and only
// defends against transient propagation delay of session state into the browser: recovery is
// a cheap re-injection of the stored snapshot, never a full renewal.
package navguard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dykim0518/makestar-e2e-tests/internal/authstore"
	"github.com/dykim0518/makestar-e2e-tests/internal/browserdriver"
	"github.com/dykim0518/makestar-e2e-tests/internal/failureflag"
	"github.com/dykim0518/makestar-e2e-tests/internal/plog"
	"github.com/dykim0518/makestar-e2e-tests/internal/pollwait"
	"github.com/dykim0518/makestar-e2e-tests/internal/sites"
)

// DefaultRetries is the redirect-recovery budget. The budget is consumed strictly by
// redirect detections, not by navigation attempts.
const DefaultRetries = 2

const (
	// settlePollInterval and settlePollAttempts give a client-side redirect a moment to
	// land after navigation commits, so we classify the final URL rather than a hop.
	settlePollInterval = 200 * time.Millisecond
	settlePollAttempts = 5
)

// AuthRedirectError is returned when navigation kept bouncing to a login screen after all
// retries. Terminal for the current test; sibling tests fail fast via the shared flag.
type AuthRedirectError struct {
	// FinalURL is the login URL the browser ended on.
	FinalURL string

	// Retries is the redirect budget that was consumed.
	Retries int
}

func (e *AuthRedirectError) Error() string {
	return fmt.Sprintf("still redirected to login at %q after %d session re-injections", e.FinalURL, e.Retries)
}

// Guard wraps navigations for one site within one browser context.
type Guard struct {
	site   sites.Site
	store  authstore.Repository
	flags  *failureflag.Coordinator
	driver browserdriver.Driver
}

// New returns a Guard. The driver is the browser the test is already running in.
func New(site sites.Site, store authstore.Repository, flags *failureflag.Coordinator, driver browserdriver.Driver) *Guard {
	return &Guard{site: site, store: store, flags: flags, driver: driver}
}

// Navigate goes to url and confirms the browser landed on the protected origin rather than
// a login screen. On a login redirect it re-injects the stored session snapshot and retries,
// consuming one retry per detected redirect, then fails with *AuthRedirectError.
func (g *Guard) Navigate(ctx context.Context, url string, retriesRemaining int) error {
	initialRetries := retriesRemaining
	for {
		if err := g.driver.Navigate(ctx, url); err != nil {
			return err
		}
		location, err := g.settledLocation(ctx)
		if err != nil {
			return err
		}

		if !g.site.IsLoginURL(location) {
			// On target. A success here invalidates any earlier failure flag.
			if err := g.flags.Clear(); err != nil {
				plog.WarningErr("could not clear the failure flag after a successful navigation", err)
			}
			return nil
		}

		// Each detected redirect consumes one unit of budget; attempts themselves are
		// free. Recovery only proceeds while budget remains after consumption.
		retriesRemaining--
		if retriesRemaining <= 0 {
			redirectErr := &AuthRedirectError{FinalURL: location, Retries: initialRetries}
			if err := g.flags.MarkFailed(redirectErr.Error()); err != nil {
				plog.Error("could not record the failure flag", err)
			}
			return redirectErr
		}

		plog.Info("login redirect detected mid-test, re-injecting session",
			"site", g.site.Name, "location", location, "retriesRemaining", retriesRemaining)
		if err := g.reinjectSession(ctx); err != nil {
			return err
		}
	}
}

// settledLocation reads the current URL, giving a client-side redirect a bounded moment to
// land somewhere classifiable (either the protected origin or a login screen).
func (g *Guard) settledLocation(ctx context.Context) (string, error) {
	var location string
	err := pollwait.Poll(ctx, settlePollInterval, settlePollAttempts, func(ctx context.Context) (bool, error) {
		current, err := g.driver.Location(ctx)
		if err != nil {
			return false, err
		}
		location = current
		return g.site.IsLoginURL(current) || g.site.IsOnOrigin(current), nil
	})
	var exhausted *pollwait.ErrAttemptsExhausted
	if err != nil && !errors.As(err, &exhausted) {
		return "", err
	}
	// Exhaustion leaves the last observed URL, which the caller classifies as-is.
	return location, nil
}

// reinjectSession places the stored snapshot's domain-scoped cookies back into the browser.
// No renewal happens here: the session is assumed valid, just not yet propagated.
func (g *Guard) reinjectSession(ctx context.Context) error {
	snapshot := g.store.LoadSnapshot(g.site)
	if snapshot == nil {
		return nil // nothing to re-inject; the retry will re-probe as-is
	}
	scoped := snapshot.CookiesForDomains(g.site.AllowedCookieDomains)
	if len(scoped) == 0 {
		return nil
	}
	return g.driver.SetCookies(ctx, scoped)
}
