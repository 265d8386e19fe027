// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package renewal

import (
	"context"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"

	"github.com/dykim0518/makestar-e2e-tests/internal/authstore"
	"github.com/dykim0518/makestar-e2e-tests/internal/sites"
	"github.com/dykim0518/makestar-e2e-tests/internal/testutil/fakedriver"
)

func signTestToken(t *testing.T, claims jwt.Claims, private any) string {
	t.Helper()
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte("0123456789abcdef0123456789abcdef")},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)
	builder := jwt.Signed(signer).Claims(claims)
	if private != nil {
		builder = builder.Claims(private)
	}
	raw, err := builder.Serialize()
	require.NoError(t, err)
	return raw
}

func harvesterAt(now time.Time) *Harvester {
	h := NewHarvester()
	h.Now = func() time.Time { return now }
	return h
}

func TestHarvestChannelPriority(t *testing.T) {
	now := time.Now().UTC()

	t.Run("URL query beats storage and cookies", func(t *testing.T) {
		d := &fakedriver.FakeDriver{
			CurrentURL: "https://www.makestar.co/mypage?access_token=from-url&refresh_token=from-url-refresh",
			Storage:    map[string]string{"accessToken": "from-storage"},
		}
		d.AddCookie(authstore.Cookie{Name: "accessToken", Value: "from-cookie", Domain: ".makestar.co"})

		record, snapshot, err := harvesterAt(now).Harvest(context.Background(), d, sites.Main)
		require.NoError(t, err)
		require.NotNil(t, record)
		require.Equal(t, "from-url", record.AccessToken)
		require.Equal(t, "from-url-refresh", record.RefreshToken)
		require.NotNil(t, snapshot)
	})

	t.Run("storage beats cookies", func(t *testing.T) {
		d := &fakedriver.FakeDriver{
			CurrentURL: "https://www.makestar.co/mypage",
			Storage:    map[string]string{"accessToken": "from-storage"},
		}
		d.AddCookie(authstore.Cookie{Name: "accessToken", Value: "from-cookie", Domain: ".makestar.co"})

		record, _, err := harvesterAt(now).Harvest(context.Background(), d, sites.Main)
		require.NoError(t, err)
		require.NotNil(t, record)
		require.Equal(t, "from-storage", record.AccessToken)
	})

	t.Run("cookies are the last channel", func(t *testing.T) {
		d := &fakedriver.FakeDriver{CurrentURL: "https://www.makestar.co/mypage"}
		d.AddCookie(authstore.Cookie{Name: "accessToken", Value: "from-cookie", Domain: ".makestar.co"})
		d.AddCookie(authstore.Cookie{Name: "refreshToken", Value: "from-cookie-refresh", Domain: ".makestar.co"})

		record, _, err := harvesterAt(now).Harvest(context.Background(), d, sites.Main)
		require.NoError(t, err)
		require.NotNil(t, record)
		require.Equal(t, "from-cookie", record.AccessToken)
		require.Equal(t, "from-cookie-refresh", record.RefreshToken)
	})
}

func TestHarvestCookieOnlyRecovery(t *testing.T) {
	d := &fakedriver.FakeDriver{CurrentURL: "https://www.makestar.co/mypage"}
	d.AddCookie(authstore.Cookie{Name: "msk_session", Value: "opaque-session", Domain: ".makestar.co"})

	record, snapshot, err := NewHarvester().Harvest(context.Background(), d, sites.Main)
	require.NoError(t, err)
	require.Nil(t, record, "no structured token anywhere means no record")
	require.NotNil(t, snapshot, "the session snapshot is still worth keeping")
	require.NotNil(t, snapshot.LookupCookie("msk_session"))
}

func TestHarvestSnapshotOnlyKeepsScopedCookies(t *testing.T) {
	d := &fakedriver.FakeDriver{CurrentURL: "https://www.makestar.co/mypage"}
	d.AddCookie(authstore.Cookie{Name: "msk_session", Value: "x", Domain: ".makestar.co"})
	d.AddCookie(authstore.Cookie{Name: "tracker", Value: "y", Domain: "ads.example.com"})

	_, snapshot, err := NewHarvester().Harvest(context.Background(), d, sites.Main)
	require.NoError(t, err)
	require.NotNil(t, snapshot.LookupCookie("msk_session"))
	require.Nil(t, snapshot.LookupCookie("tracker"))
}

func TestHarvestDecodesExpiryAndIdentity(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	exp := now.Add(2 * time.Hour)
	raw := signTestToken(t,
		jwt.Claims{Subject: "user-7", Expiry: jwt.NewNumericDate(exp)},
		map[string]any{"email": "qa@makestar.co", "name": "QA Bot", "isAdmin": true},
	)
	d := &fakedriver.FakeDriver{
		CurrentURL: "https://www.makestar.co/mypage",
		Storage:    map[string]string{"accessToken": raw},
	}

	record, _, err := harvesterAt(now).Harvest(context.Background(), d, sites.Main)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.True(t, record.ExpiresAt.Equal(exp))
	require.Equal(t, "qa@makestar.co", record.Email)
	require.Equal(t, "QA Bot", record.UserName)
	require.Equal(t, "user-7", record.UserID)
	require.True(t, record.IsAdmin)
	require.True(t, record.SavedAt.Equal(now))
}

func TestHarvestMalformedTokenGetsDefaultHorizon(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	d := &fakedriver.FakeDriver{
		CurrentURL: "https://www.makestar.co/mypage",
		Storage:    map[string]string{"accessToken": "opaque-not-a-jwt"},
	}

	record, _, err := harvesterAt(now).Harvest(context.Background(), d, sites.Main)
	require.NoError(t, err, "a malformed expiry claim must not fail the whole renewal")
	require.NotNil(t, record)
	// Lower-confidence save: a conservative 3 hour horizon is substituted.
	require.True(t, record.ExpiresAt.Equal(now.Add(3*time.Hour)))
	require.Equal(t, "unknown", record.Email)
	require.Equal(t, "unknown", record.UserName)
}
