// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package authstore provides the durable credential and session-snapshot types and their
// file-backed store.
package authstore

import (
	"strings"
	"time"
)

// CredentialQuality records, once at load time, whether a credential record looks like real
// provider-issued material or like a synthetic fixture value. Consumers branch on this tag
// instead of re-inspecting token contents.
type CredentialQuality string

const (
	QualityReal      CredentialQuality = "real"
	QualitySynthetic CredentialQuality = "synthetic"
	QualityUnknown   CredentialQuality = "unknown"
)

// syntheticTokenPrefix marks fixture tokens written by test seed data.
const syntheticTokenPrefix = "test-"

// CredentialRecord is the structured token material for the authenticated principal.
// The JSON field names are the on-disk contract and must not change.
type CredentialRecord struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	Email        string    `json:"email"`
	UserName     string    `json:"userName"`
	IsAdmin      bool      `json:"isAdmin"`
	ExpiresAt    time.Time `json:"expiresAt"`
	UserID       string    `json:"userId"`
	SavedAt      time.Time `json:"savedAt"`

	// Quality is assigned by the store at load time and never persisted.
	Quality CredentialQuality `json:"-"`
}

// classifyQuality tags a freshly loaded record. The check is purely syntactic: a fixture
// marker or empty token is synthetic, a JWT-shaped token is real, anything else is unknown.
func classifyQuality(accessToken string) CredentialQuality {
	switch {
	case accessToken == "" || strings.HasPrefix(accessToken, syntheticTokenPrefix):
		return QualitySynthetic
	case strings.Count(accessToken, ".") == 2:
		return QualityReal
	default:
		return QualityUnknown
	}
}

// Cookie is one browser cookie captured from or injected into a browser context.
type Cookie struct {
	Name     string     `json:"name"`
	Value    string     `json:"value"`
	Domain   string     `json:"domain"`
	Path     string     `json:"path"`
	Expires  *time.Time `json:"expires,omitempty"`
	HTTPOnly bool       `json:"httpOnly"`
	Secure   bool       `json:"secure"`
	SameSite string     `json:"sameSite"`
}

// SessionSnapshot is the browser-level material needed to resume a session without replaying
// login: the cookie jar plus mirrored client-side storage.
type SessionSnapshot struct {
	Cookies      []Cookie          `json:"cookies"`
	LocalStorage map[string]string `json:"localStorage"`
	SavedAt      time.Time         `json:"savedAt"`
}

// CookiesForDomains returns the subset of the snapshot's cookies whose domain matches one of
// the allowed domains, by exact match or parent-domain suffix. This is the only path by which
// snapshot cookies may reach a browser context: an unscoped cookie must never be injected
// into an unrelated origin.
func (s *SessionSnapshot) CookiesForDomains(allowed []string) []Cookie {
	if s == nil {
		return nil
	}
	result := make([]Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		if domainAllowed(c.Domain, allowed) {
			result = append(result, c)
		}
	}
	return result
}

// LookupCookie returns the first cookie with the given name, or nil.
func (s *SessionSnapshot) LookupCookie(name string) *Cookie {
	if s == nil {
		return nil
	}
	for i := range s.Cookies {
		if s.Cookies[i].Name == name {
			return &s.Cookies[i]
		}
	}
	return nil
}

func domainAllowed(domain string, allowed []string) bool {
	// Cookie domains are host names; compare case-insensitively and ignore the RFC 6265
	// leading dot on either side.
	d := strings.ToLower(strings.TrimPrefix(domain, "."))
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimPrefix(a, "."))
		if d == a || strings.HasSuffix(d, "."+a) {
			return true
		}
	}
	return false
}
