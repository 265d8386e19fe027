// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package browserdriver abstracts the browser automation library behind a small interface so
// that the renewal flows and the navigation guard are unit-testable with a fake driver.
package browserdriver

import (
	"context"

	"github.com/dykim0518/makestar-e2e-tests/internal/authstore"
)

// Driver is the set of browser operations the credential subsystem needs. The production
// implementation is Chrome below; tests inject fakes.
type Driver interface {
	// Navigate loads the given URL and returns once the navigation has committed.
	Navigate(ctx context.Context, url string) error

	// Location returns the browser's current URL.
	Location(ctx context.Context) (string, error)

	// Visible reports whether the first element matching the CSS selector exists and is
	// currently visible. It does not wait.
	Visible(ctx context.Context, selector string) (bool, error)

	// Click clicks the first visible, enabled element matching the CSS selector.
	Click(ctx context.Context, selector string) error

	// Cookies returns every cookie in the browser context.
	Cookies(ctx context.Context) ([]authstore.Cookie, error)

	// SetCookies places the given cookies into the browser context. Each cookie must carry
	// a nonempty domain; scoping decisions belong to the caller.
	SetCookies(ctx context.Context, cookies []authstore.Cookie) error

	// LocalStorage returns the current page's localStorage contents. The browser must
	// already be on a page of the origin whose storage is wanted.
	LocalStorage(ctx context.Context) (map[string]string, error)

	// SetLocalStorage writes the given entries into localStorage of the origin, navigating
	// there first when the browser is elsewhere.
	SetLocalStorage(ctx context.Context, origin string, entries map[string]string) error

	// Close shuts the browser down.
	Close() error
}
