// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package renewal decides whether the stored session is usable and refreshes it when it is
// not, silently when possible and interactively as the fallback.
package renewal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dykim0518/makestar-e2e-tests/internal/authstore"
	"github.com/dykim0518/makestar-e2e-tests/internal/failureflag"
	"github.com/dykim0518/makestar-e2e-tests/internal/plog"
	"github.com/dykim0518/makestar-e2e-tests/internal/sites"
	"github.com/dykim0518/makestar-e2e-tests/internal/tokenexpiry"
)

// verifiedCacheTTL is how long one worker trusts its own last successful verification
// without re-reading the credential file. Keeps per-test setup cheap within a worker.
const verifiedCacheTTL = 5 * time.Minute

// Gate is the renewal entry point consulted by test setup hooks. It composes the silent and
// interactive strategies explicitly and coordinates with the cross-process failure flag.
type Gate struct {
	site        sites.Site
	store       authstore.Repository
	flags       *failureflag.Coordinator
	evaluator   *tokenexpiry.Evaluator
	silent      Renewer
	interactive Renewer

	// now is the clock, replaceable in tests.
	now func() time.Time

	mu         sync.Mutex
	verifiedAt time.Time
}

// NewGate wires a Gate with the production renewers. stateDir hosts the interactive lock.
func NewGate(site sites.Site, store authstore.Repository, flags *failureflag.Coordinator, stateDir string) *Gate {
	g := &Gate{
		site:      site,
		store:     store,
		flags:     flags,
		evaluator: tokenexpiry.NewEvaluator(),
		silent:    NewSilentRenewer(site, store),
		now:       time.Now,
	}
	interactive := NewInteractiveRenewer(site, store, stateDir)
	interactive.alreadyRenewed = func() bool { return g.classify() == tokenexpiry.Valid }
	g.interactive = interactive
	return g
}

func (g *Gate) classify() tokenexpiry.Classification {
	return g.evaluator.Classify(g.store.Load(), g.store.LoadSnapshot(g.site), g.site.SessionCookieName)
}

// Ensure makes the session usable or returns an error naming the remediation command. When
// the credential is already valid it performs zero browser-driving operations.
func (g *Gate) Ensure(ctx context.Context) error {
	g.mu.Lock()
	if !g.verifiedAt.IsZero() && g.now().Sub(g.verifiedAt) < verifiedCacheTTL {
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	// Fail fast when a sibling worker already found authentication broken.
	if failure := g.flags.Check(); failure != nil {
		return fmt.Errorf("authentication is marked broken since %s (%s): run %q to repair",
			failure.Timestamp.Format(time.RFC3339), failure.Reason, RemediationCommand)
	}

	classification := g.classify()
	plog.Debug("credential classified", "site", g.site.Name, "classification", classification.String())
	switch classification {
	case tokenexpiry.Valid, tokenexpiry.ExpiringSoon:
		// ExpiringSoon never gates: the credential is used for as long as legally
		// possible; only proactive background renewal cares about the larger buffer.
		g.markVerified()
		return nil
	case tokenexpiry.Expired, tokenexpiry.Missing:
	}

	return g.renew(ctx, false)
}

// ForceRenew runs the silent-then-interactive cycle regardless of current validity.
func (g *Gate) ForceRenew(ctx context.Context) error {
	return g.renew(ctx, false)
}

// ForceInteractive skips the silent attempt and goes straight to the visible browser.
func (g *Gate) ForceInteractive(ctx context.Context) error {
	return g.renew(ctx, true)
}

// Classification exposes the gating decision for the CLI's auto check.
func (g *Gate) Classification() tokenexpiry.Classification {
	return g.classify()
}

func (g *Gate) renew(ctx context.Context, interactiveOnly bool) error {
	if !interactiveOnly {
		ok, err := g.silent.Attempt(ctx)
		if ok {
			return g.renewed()
		}
		switch {
		case err == nil:
		case errors.Is(err, ErrSilentRenewalTimeout):
			// Expected: the provider wanted a real login. Not an error.
			plog.InfoErr("silent renewal needs a human, falling back to interactive", err, "site", g.site.Name)
		default:
			plog.WarningErr("silent renewal failed, falling back to interactive", err, "site", g.site.Name)
		}
	}

	ok, err := g.interactive.Attempt(ctx)
	if ok {
		return g.renewed()
	}
	if err != nil && !errors.Is(err, ErrInteractiveRenewalTimeout) {
		// A mechanical failure is just as broken for the sibling workers as a timeout,
		// so it raises the shared flag too.
		reason := fmt.Sprintf("credential renewal for %s failed: %s", g.site.Name, err.Error())
		if markErr := g.flags.MarkFailed(reason); markErr != nil {
			plog.Error("could not record the failure flag", markErr)
		}
		return fmt.Errorf("interactive renewal failed: %w; run %q to repair", err, RemediationCommand)
	}

	reason := fmt.Sprintf("credential renewal for %s failed: silent renewal needed a human and nobody completed the interactive login", g.site.Name)
	if markErr := g.flags.MarkFailed(reason); markErr != nil {
		plog.Error("could not record the failure flag", markErr)
	}
	return fmt.Errorf("%s: run %q to repair", reason, RemediationCommand)
}

func (g *Gate) renewed() error {
	// A later success invalidates an earlier failure for every worker.
	if err := g.flags.Clear(); err != nil {
		plog.WarningErr("could not clear the failure flag after a successful renewal", err)
	}
	g.markVerified()
	return nil
}

func (g *Gate) markVerified() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifiedAt = g.now()
}
