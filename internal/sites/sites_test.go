// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package sites

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsLoginURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{
			name: "identity provider URL is a login screen",
			url:  "https://accounts.google.com/o/oauth2/v2/auth?client_id=abc",
			want: true,
		},
		{
			name: "login path on the protected origin is a login screen",
			url:  "https://www.makestar.co/login?redirect=%2Fmypage",
			want: true,
		},
		{
			name: "nested login path matches by prefix",
			url:  "https://www.makestar.co/auth/login/retry",
			want: true,
		},
		{
			name: "protected entry is not a login screen",
			url:  "https://www.makestar.co/mypage",
			want: false,
		},
		{
			name: "login path on an unrelated origin is not ours",
			url:  "https://evil.example.com/login",
			want: false,
		},
		{
			name: "unparseable URL is not a login screen",
			url:  "://not-a-url",
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Main.IsLoginURL(tt.url))
		})
	}
}

func TestStateDir(t *testing.T) {
	t.Run("environment variable wins", func(t *testing.T) {
		t.Setenv("MAKESTAR_E2E_STATE_DIR", "/tmp/override")
		dir, err := StateDir()
		require.NoError(t, err)
		require.Equal(t, "/tmp/override", dir)
	})

	t.Run("defaults under the home directory", func(t *testing.T) {
		t.Setenv("MAKESTAR_E2E_STATE_DIR", "")
		dir, err := StateDir()
		require.NoError(t, err)
		require.Contains(t, dir, ".makestar-e2e")
	})
}

func TestSnapshotFileNamesAreDistinctPerSite(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range All {
		name := s.SnapshotFileName()
		require.False(t, seen[name], "duplicate snapshot file name %q", name)
		seen[name] = true
	}
}
