// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package tokenexpiry is the single place that decodes JWT claims and classifies stored
// credentials as usable or not. Every call site in the repo goes through this package; there
// is deliberately exactly one implementation of "read the expiry claim".
package tokenexpiry

import (
	"errors"
	"fmt"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/dykim0518/makestar-e2e-tests/internal/authstore"
)

// ErrMalformedToken means the expiry claim could not be decoded. Callers substitute a
// conservative default horizon instead of failing the whole renewal.
var ErrMalformedToken = errors.New("malformed token")

const (
	// DefaultBuffer is the safety margin for gating: a credential that expires within this
	// window is already Expired. Deliberately small, so a credential is used for as long as
	// legally possible before forcing an expensive renewal.
	DefaultBuffer = 1 * time.Minute

	// DefaultProactiveBuffer is the second, larger window behind ExpiringSoon. It is only
	// consumed by proactive background renewal, never by gating.
	DefaultProactiveBuffer = 5 * time.Minute

	// DefaultExpiryHorizon is the conservative lifetime assumed for a harvested token whose
	// expiry claim could not be decoded. A session with a best-effort expiry is more useful
	// than one discarded entirely.
	DefaultExpiryHorizon = 3 * time.Hour
)

// Classification is the result of evaluating a stored credential.
type Classification int

const (
	Missing Classification = iota
	Expired
	ExpiringSoon
	Valid
)

func (c Classification) String() string {
	switch c {
	case Missing:
		return "missing"
	case Expired:
		return "expired"
	case ExpiringSoon:
		return "expiring-soon"
	case Valid:
		return "valid"
	default:
		return fmt.Sprintf("unknown-classification(%d)", int(c))
	}
}

// allowedAlgorithms is every signature algorithm the provider has been observed to use.
// The signature is never verified here (we only want claims of tokens the provider issued
// to us), but go-jose requires the allowlist to parse at all.
var allowedAlgorithms = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.PS256, jose.HS256, jose.EdDSA,
}

// Evaluator classifies credential records against the wall clock.
type Evaluator struct {
	// Buffer is the gating safety margin, see DefaultBuffer.
	Buffer time.Duration

	// ProactiveBuffer is the ExpiringSoon margin, see DefaultProactiveBuffer.
	ProactiveBuffer time.Duration

	// Now is the clock, replaceable in tests.
	Now func() time.Time
}

// NewEvaluator returns an Evaluator with the default buffers and the real clock.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		Buffer:          DefaultBuffer,
		ProactiveBuffer: DefaultProactiveBuffer,
		Now:             time.Now,
	}
}

// Classify decides whether the stored credential is usable. The expiry source is, in order:
// the record's stored expiresAt, the access token's embedded expiry claim, and finally the
// expiry claim inside the site's session cookie from the snapshot. If every source fails to
// decode, the result is Missing; validity is never assumed on decode failure.
func (e *Evaluator) Classify(record *authstore.CredentialRecord, snapshot *authstore.SessionSnapshot, sessionCookieName string) Classification {
	if record == nil {
		return Missing
	}

	expiresAt := record.ExpiresAt
	if expiresAt.IsZero() {
		var err error
		expiresAt, err = ExpiryFromToken(record.AccessToken)
		if err != nil {
			cookie := snapshot.LookupCookie(sessionCookieName)
			if cookie == nil {
				return Missing
			}
			expiresAt, err = ExpiryFromToken(cookie.Value)
			if err != nil {
				return Missing
			}
		}
	}

	now := e.Now()
	// The boundary is inclusive: a token whose buffered expiry equals now is already Expired.
	if !expiresAt.Add(-e.Buffer).After(now) {
		return Expired
	}
	if !expiresAt.Add(-e.ProactiveBuffer).After(now) {
		return ExpiringSoon
	}
	return Valid
}

// ExpiryFromToken decodes the exp claim of a JWT without verifying its signature.
func ExpiryFromToken(raw string) (time.Time, error) {
	claims, err := unsafeClaims(raw)
	if err != nil {
		return time.Time{}, err
	}
	if claims.Expiry == nil {
		return time.Time{}, fmt.Errorf("%w: no expiry claim", ErrMalformedToken)
	}
	return claims.Expiry.Time(), nil
}

// Identity is the best-effort subject identity carried inside a token.
type Identity struct {
	Email       string
	DisplayName string
	IsAdmin     bool
	UserID      string
}

// identityClaims are the private claims the provider is known to emit. All optional.
type identityClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"isAdmin"`
}

// IdentityFromToken decodes best-effort identity claims. Absent claims fall back to
// "unknown"; the error is only non-nil when the token itself cannot be parsed.
func IdentityFromToken(raw string) (Identity, error) {
	identity := Identity{Email: "unknown", DisplayName: "unknown"}

	token, err := jwt.ParseSigned(raw, allowedAlgorithms)
	if err != nil {
		return identity, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	var std jwt.Claims
	var private identityClaims
	if err := token.UnsafeClaimsWithoutVerification(&std, &private); err != nil {
		return identity, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	if private.Email != "" {
		identity.Email = private.Email
	}
	if private.Name != "" {
		identity.DisplayName = private.Name
	}
	identity.IsAdmin = private.IsAdmin
	identity.UserID = std.Subject
	return identity, nil
}

func unsafeClaims(raw string) (*jwt.Claims, error) {
	token, err := jwt.ParseSigned(raw, allowedAlgorithms)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	var claims jwt.Claims
	if err := token.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return &claims, nil
}
