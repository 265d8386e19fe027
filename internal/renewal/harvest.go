// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package renewal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dykim0518/makestar-e2e-tests/internal/authstore"
	"github.com/dykim0518/makestar-e2e-tests/internal/browserdriver"
	"github.com/dykim0518/makestar-e2e-tests/internal/plog"
	"github.com/dykim0518/makestar-e2e-tests/internal/sites"
	"github.com/dykim0518/makestar-e2e-tests/internal/tokenexpiry"
)

// accessTokenQueryParams and refreshTokenQueryParams are the URL query parameter spellings
// under which the provider has been observed to return tokens after a federated login.
var (
	accessTokenQueryParams  = []string{"access_token", "accessToken", "token"}
	refreshTokenQueryParams = []string{"refresh_token", "refreshToken"}

	// accessTokenCookieNames pairs with refreshTokenCookieNames: the provider sometimes
	// surfaces the token pair as cookies named after the tokens themselves.
	accessTokenCookieNames  = []string{"accessToken", "access_token"}
	refreshTokenCookieNames = []string{"refreshToken", "refresh_token"}
)

// Harvester captures refreshed session material from a browser that has just completed (or
// resumed) an authenticated session. There is exactly one implementation of "where do tokens
// show up": the URL query, then client-side storage, then cookies, because the provider is
// not consistent about the delivery channel.
type Harvester struct {
	// Now is the clock, replaceable in tests.
	Now func() time.Time
}

// NewHarvester returns a Harvester using the real clock.
func NewHarvester() *Harvester {
	return &Harvester{Now: time.Now}
}

// Harvest reads tokens and session state out of the browser. The returned snapshot is always
// non-nil on success; the record is nil when no structured token could be found anywhere
// (cookie-only recovery, still worth persisting).
func (h *Harvester) Harvest(ctx context.Context, d browserdriver.Driver, site sites.Site) (*authstore.CredentialRecord, *authstore.SessionSnapshot, error) {
	now := h.Now()

	cookies, err := d.Cookies(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("could not harvest cookies: %w", err)
	}
	storage, err := d.LocalStorage(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("could not harvest localStorage: %w", err)
	}

	snapshot := &authstore.SessionSnapshot{
		// Only cookies scoped to the site's domains are worth keeping; anything else
		// must never be replayed into a browser anyway.
		Cookies:      (&authstore.SessionSnapshot{Cookies: cookies}).CookiesForDomains(site.AllowedCookieDomains),
		LocalStorage: storage,
		SavedAt:      now,
	}

	accessToken, refreshToken := h.findTokens(ctx, d, site, storage, cookies)
	if accessToken == "" {
		plog.Info("no structured token found in any channel, keeping cookie-only session", "site", site.Name)
		return nil, snapshot, nil
	}

	record := &authstore.CredentialRecord{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SavedAt:      now,
	}

	expiresAt, err := tokenexpiry.ExpiryFromToken(accessToken)
	switch {
	case err == nil:
		record.ExpiresAt = expiresAt
	case errors.Is(err, tokenexpiry.ErrMalformedToken):
		// A lower-confidence save is still a save: substitute a conservative horizon.
		record.ExpiresAt = now.Add(tokenexpiry.DefaultExpiryHorizon)
		plog.Warning("could not decode token expiry, substituting default horizon",
			"site", site.Name, "horizon", tokenexpiry.DefaultExpiryHorizon.String())
	default:
		return nil, nil, err
	}

	if identity, err := tokenexpiry.IdentityFromToken(accessToken); err == nil {
		record.Email = identity.Email
		record.UserName = identity.DisplayName
		record.IsAdmin = identity.IsAdmin
		record.UserID = identity.UserID
	} else {
		record.Email = "unknown"
		record.UserName = "unknown"
	}

	return record, snapshot, nil
}

// findTokens checks the three delivery channels in priority order.
func (h *Harvester) findTokens(ctx context.Context, d browserdriver.Driver, site sites.Site, storage map[string]string, cookies []authstore.Cookie) (string, string) {
	// 1. URL query parameters.
	if location, err := d.Location(ctx); err == nil {
		if u, err := url.Parse(location); err == nil {
			query := u.Query()
			if access := firstNonEmpty(query.Get, accessTokenQueryParams); access != "" {
				plog.Debug("harvested token from URL query", "site", site.Name)
				return access, firstNonEmpty(query.Get, refreshTokenQueryParams)
			}
		}
	}

	// 2. Client-side storage, under the site's known keys.
	lookupStorage := func(key string) string { return storage[key] }
	if access := firstNonEmpty(lookupStorage, site.TokenStorageKeys); access != "" {
		plog.Debug("harvested token from localStorage", "site", site.Name)
		return access, firstNonEmpty(lookupStorage, refreshTokenQueryParams)
	}

	// 3. Cookies named after the token pair.
	lookupCookie := func(name string) string {
		for _, c := range cookies {
			if c.Name == name {
				return c.Value
			}
		}
		return ""
	}
	if access := firstNonEmpty(lookupCookie, accessTokenCookieNames); access != "" {
		plog.Debug("harvested token from cookies", "site", site.Name)
		return access, firstNonEmpty(lookupCookie, refreshTokenCookieNames)
	}

	return "", ""
}

func firstNonEmpty(lookup func(string) string, keys []string) string {
	for _, key := range keys {
		if value := lookup(key); value != "" {
			return value
		}
	}
	return ""
}
