// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package sites holds the fixed descriptions of the three target web properties and of the
// federated identity provider in front of them. These are constants rather than external
// configuration on purpose: the suite only ever runs against these sites, and keeping the
// selectors next to the URLs they belong to mirrors how the login-page configs are organized.
package sites

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Site describes one web property the suite authenticates against.
type Site struct {
	// Name is the short identifier used in log output and snapshot file names.
	Name string

	// Origin is the protected origin, scheme included, no trailing slash.
	Origin string

	// ProtectedEntry is the URL of a page which requires an authenticated session.
	// Navigating here is how renewal probes whether the current session is accepted.
	ProtectedEntry string

	// LoginPathPrefixes are URL path prefixes on Origin which mean "you are looking at a
	// login screen". Landing on any of these after navigation is a login redirect.
	LoginPathPrefixes []string

	// AllowedCookieDomains are the only cookie domains that may ever be injected into a
	// browser context pointed at this site. Matching is exact or parent-domain suffix.
	AllowedCookieDomains []string

	// SessionCookieName is the cookie which identifies a live authenticated session.
	// Its appearance is how we know the identity provider has finished setting cookies.
	SessionCookieName string

	// ContinueButtonSelector locates the one-click federated continuation button
	// ("continue with Google") on this site's login screen, when it is offered.
	ContinueButtonSelector string

	// LoginFormSelector locates the username field of a genuine login form. Seeing this
	// without a continuation button means a human is required.
	LoginFormSelector string

	// TokenStorageKeys are the client-side storage keys, in priority order, under which
	// the site is known to surface refreshed tokens.
	TokenStorageKeys []string
}

// IdentityProviderDomain is the domain of the federated identity provider. URLs on this
// domain are part of the redirect chain, never a final destination.
const IdentityProviderDomain = "accounts.google.com"

// Main is the primary storefront, and the property whose credential record is shared by the
// other two (single sign-on within the same provider session).
var Main = Site{
	Name:              "main",
	Origin:            "https://www.makestar.co",
	ProtectedEntry:    "https://www.makestar.co/mypage",
	LoginPathPrefixes: []string{"/login", "/auth/login", "/account/signin"},
	AllowedCookieDomains: []string{
		"www.makestar.co",
		".makestar.co",
	},
	SessionCookieName:      "msk_session",
	ContinueButtonSelector: "button#continue-with-google",
	LoginFormSelector:      "input#email",
	TokenStorageKeys:       []string{"accessToken", "msk.auth.token"},
}

// Studio is the creator studio property.
var Studio = Site{
	Name:              "studio",
	Origin:            "https://studio.makestar.co",
	ProtectedEntry:    "https://studio.makestar.co/dashboard",
	LoginPathPrefixes: []string{"/login", "/auth"},
	AllowedCookieDomains: []string{
		"studio.makestar.co",
		".makestar.co",
	},
	SessionCookieName:      "msk_session",
	ContinueButtonSelector: "button#continue-with-google",
	LoginFormSelector:      "input#email",
	TokenStorageKeys:       []string{"accessToken"},
}

// Admin is the back-office property.
var Admin = Site{
	Name:              "admin",
	Origin:            "https://admin.makestar.co",
	ProtectedEntry:    "https://admin.makestar.co/orders",
	LoginPathPrefixes: []string{"/login"},
	AllowedCookieDomains: []string{
		"admin.makestar.co",
		".makestar.co",
	},
	SessionCookieName:      "msk_session",
	ContinueButtonSelector: "button#continue-with-google",
	LoginFormSelector:      "input#email",
	TokenStorageKeys:       []string{"accessToken"},
}

// All lists every property, Main first.
var All = []Site{Main, Studio, Admin}

// SnapshotFileName is the per-site session snapshot file name inside the state directory.
func (s Site) SnapshotFileName() string {
	return "session-" + s.Name + ".json"
}

// IsLoginURL reports whether rawURL is a login screen: either any URL on the identity
// provider's domain, or a URL on this site's origin under one of the login path prefixes.
func (s Site) IsLoginURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Hostname(), IdentityProviderDomain) {
		return true
	}
	if !strings.HasPrefix(rawURL, s.Origin) {
		return false
	}
	for _, prefix := range s.LoginPathPrefixes {
		if strings.HasPrefix(u.Path, prefix) {
			return true
		}
	}
	return false
}

// IsOnOrigin reports whether rawURL is on this site's protected origin.
func (s Site) IsOnOrigin(rawURL string) bool {
	return strings.HasPrefix(rawURL, s.Origin)
}

const (
	stateDirEnvVar  = "MAKESTAR_E2E_STATE_DIR"
	stateDirDefault = ".makestar-e2e"
)

// StateDir resolves the directory holding the credential file, the per-site session
// snapshots and the failure flag. The MAKESTAR_E2E_STATE_DIR environment variable
// overrides the default location under the user's home directory.
func StateDir() (string, error) {
	if dir := os.Getenv(stateDirEnvVar); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, stateDirDefault), nil
}
