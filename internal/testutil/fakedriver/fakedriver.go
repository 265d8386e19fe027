// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package fakedriver provides a scriptable in-memory browserdriver.Driver for unit tests,
// so renewal flows and the navigation guard are testable without a real browser.
package fakedriver

import (
	"context"
	"sync"

	"github.com/dykim0518/makestar-e2e-tests/internal/authstore"
	"github.com/dykim0518/makestar-e2e-tests/internal/browserdriver"
)

// FakeDriver implements browserdriver.Driver. Zero value is usable; script behavior by
// setting the exported fields.
type FakeDriver struct {
	mu sync.Mutex

	// CurrentURL is what Location returns unless LocationFunc is set.
	CurrentURL string

	// NavigateFunc, when set, maps a requested URL to the URL the browser lands on,
	// simulating server-side redirects. When nil, navigation lands exactly on the URL.
	NavigateFunc func(url string) (string, error)

	// LocationFunc, when set, overrides Location entirely. Useful for scripting a URL that
	// changes over time, like a human completing a login.
	LocationFunc func() (string, error)

	// VisibleSelectors lists the selectors Visible reports as visible.
	VisibleSelectors map[string]bool

	// ClickFunc, when set, handles Click. A click that triggers a redirect chain can
	// mutate CurrentURL via SetURL.
	ClickFunc func(selector string) error

	// CookieJar and Storage are the browser-held session state.
	CookieJar []authstore.Cookie
	Storage   map[string]string

	// Call records.
	NavigateCalls   []string
	ClickCalls      []string
	SetCookieCalls  [][]authstore.Cookie
	SetStorageCalls []map[string]string
	Closed          bool
}

var _ browserdriver.Driver = (*FakeDriver)(nil)

// SetURL changes the URL subsequent Location calls observe.
func (f *FakeDriver) SetURL(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CurrentURL = url
}

func (f *FakeDriver) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	f.NavigateCalls = append(f.NavigateCalls, url)
	navigate := f.NavigateFunc
	f.mu.Unlock()

	landed := url
	if navigate != nil {
		var err error
		landed, err = navigate(url)
		if err != nil {
			return err
		}
	}
	f.SetURL(landed)
	return nil
}

func (f *FakeDriver) Location(_ context.Context) (string, error) {
	f.mu.Lock()
	locationFunc := f.LocationFunc
	current := f.CurrentURL
	f.mu.Unlock()

	if locationFunc != nil {
		return locationFunc()
	}
	return current, nil
}

func (f *FakeDriver) Visible(_ context.Context, selector string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.VisibleSelectors[selector], nil
}

func (f *FakeDriver) Click(_ context.Context, selector string) error {
	f.mu.Lock()
	f.ClickCalls = append(f.ClickCalls, selector)
	click := f.ClickFunc
	f.mu.Unlock()

	if click != nil {
		return click(selector)
	}
	return nil
}

func (f *FakeDriver) Cookies(_ context.Context) ([]authstore.Cookie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]authstore.Cookie(nil), f.CookieJar...), nil
}

func (f *FakeDriver) SetCookies(_ context.Context, cookies []authstore.Cookie) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetCookieCalls = append(f.SetCookieCalls, cookies)
	f.CookieJar = append(f.CookieJar, cookies...)
	return nil
}

func (f *FakeDriver) LocalStorage(_ context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make(map[string]string, len(f.Storage))
	for k, v := range f.Storage {
		result[k] = v
	}
	return result, nil
}

func (f *FakeDriver) SetLocalStorage(_ context.Context, _ string, entries map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetStorageCalls = append(f.SetStorageCalls, entries)
	if f.Storage == nil {
		f.Storage = make(map[string]string, len(entries))
	}
	for k, v := range entries {
		f.Storage[k] = v
	}
	return nil
}

func (f *FakeDriver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// AddCookie seeds the jar directly, bypassing call recording.
func (f *FakeDriver) AddCookie(cookie authstore.Cookie) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CookieJar = append(f.CookieJar, cookie)
}
