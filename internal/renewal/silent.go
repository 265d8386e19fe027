// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package renewal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dykim0518/makestar-e2e-tests/internal/authstore"
	"github.com/dykim0518/makestar-e2e-tests/internal/browserdriver"
	"github.com/dykim0518/makestar-e2e-tests/internal/plog"
	"github.com/dykim0518/makestar-e2e-tests/internal/pollwait"
	"github.com/dykim0518/makestar-e2e-tests/internal/sites"
)

const (
	// redirectPollInterval and redirectPollAttempts bound the wait for the federated
	// redirect chain to land back on the protected origin after the one-click
	// continuation. ~7.5 seconds total.
	redirectPollInterval = 500 * time.Millisecond
	redirectPollAttempts = 15
)

// Renewer is one strategy for refreshing the authenticated session. The silent and
// interactive implementations are selected by explicit composition in the Gate.
type Renewer interface {
	// Attempt returns true when renewed material was harvested and persisted. A false
	// return with ErrSilentRenewalTimeout or ErrInteractiveRenewalTimeout is an expected
	// outcome; any other error is a mechanical failure.
	Attempt(ctx context.Context) (bool, error)
}

// SilentRenewer drives a headless browser through the identity redirect chain without human
// input. It succeeds when the stored session snapshot is still accepted by the provider, or
// when the provider offers a one-click federated continuation backed by a live provider-side
// session. It fails fast when a genuine login form is required.
type SilentRenewer struct {
	site      sites.Site
	store     authstore.Repository
	harvester *Harvester

	// External calls for things (to be mocked in tests).
	openBrowser  func(ctx context.Context) (browserdriver.Driver, error)
	pollInterval time.Duration
	pollAttempts int
}

var _ Renewer = (*SilentRenewer)(nil)

// NewSilentRenewer wires a SilentRenewer against the real headless browser.
func NewSilentRenewer(site sites.Site, store authstore.Repository) *SilentRenewer {
	return &SilentRenewer{
		site:      site,
		store:     store,
		harvester: NewHarvester(),
		openBrowser: func(ctx context.Context) (browserdriver.Driver, error) {
			return browserdriver.Open(ctx, browserdriver.Options{Headless: true})
		},
		pollInterval: redirectPollInterval,
		pollAttempts: redirectPollAttempts,
	}
}

// Attempt implements the silent renewal protocol from a fresh headless browser.
func (r *SilentRenewer) Attempt(ctx context.Context) (bool, error) {
	d, err := r.openBrowser(ctx)
	if err != nil {
		return false, fmt.Errorf("could not open headless browser: %w", err)
	}
	defer func() { _ = d.Close() }()

	// Resume the previous session as far as possible before probing.
	if snapshot := r.store.LoadSnapshot(r.site); snapshot != nil {
		scoped := snapshot.CookiesForDomains(r.site.AllowedCookieDomains)
		if len(scoped) > 0 {
			if err := d.SetCookies(ctx, scoped); err != nil {
				return false, err
			}
		}
		if err := d.SetLocalStorage(ctx, r.site.Origin, snapshot.LocalStorage); err != nil {
			return false, err
		}
	}

	if err := d.Navigate(ctx, r.site.ProtectedEntry); err != nil {
		return false, err
	}
	location, err := d.Location(ctx)
	if err != nil {
		return false, err
	}

	// Outcome 1: the provider granted access immediately, the session was sufficient.
	if r.site.IsOnOrigin(location) && !r.site.IsLoginURL(location) {
		plog.Info("existing session accepted without redirect", "site", r.site.Name)
		return true, r.persistHarvest(ctx, d)
	}

	// Outcome 2: a one-click federated continuation that needs no human input, because the
	// identity provider itself still holds a live session.
	continueVisible, err := d.Visible(ctx, r.site.ContinueButtonSelector)
	if err != nil {
		return false, err
	}
	if continueVisible {
		plog.Debug("clicking federated continuation", "site", r.site.Name, "selector", r.site.ContinueButtonSelector)
		if err := d.Click(ctx, r.site.ContinueButtonSelector); err != nil {
			return false, err
		}
		err := pollwait.Poll(ctx, r.pollInterval, r.pollAttempts, func(ctx context.Context) (bool, error) {
			current, err := d.Location(ctx)
			if err != nil {
				return false, err
			}
			return r.site.IsOnOrigin(current) && !r.site.IsLoginURL(current), nil
		})
		if err == nil {
			plog.Info("federated continuation completed", "site", r.site.Name)
			return true, r.persistHarvest(ctx, d)
		}
		var exhausted *pollwait.ErrAttemptsExhausted
		if errors.As(err, &exhausted) {
			// The redirect chain never came back. Not recoverable without a human.
			return false, ErrSilentRenewalTimeout
		}
		return false, err
	}

	// Outcome 3: a genuine login form. Fail fast, do not wait out a timeout for a
	// condition that cannot resolve without a human.
	plog.Info("login form requires a human, silent renewal giving up", "site", r.site.Name, "location", location)
	return false, ErrSilentRenewalTimeout
}

func (r *SilentRenewer) persistHarvest(ctx context.Context, d browserdriver.Driver) error {
	return persistHarvest(ctx, d, r.site, r.store, r.harvester)
}

// persistHarvest captures and writes back whatever material the browser now holds. A nil
// record (no structured token anywhere) still persists the snapshot: cookie-only recovery.
func persistHarvest(ctx context.Context, d browserdriver.Driver, site sites.Site, store authstore.Repository, harvester *Harvester) error {
	record, snapshot, err := harvester.Harvest(ctx, d, site)
	if err != nil {
		return err
	}
	if record != nil {
		if err := store.Save(record); err != nil {
			return err
		}
	}
	return store.SaveSnapshot(site, snapshot)
}
