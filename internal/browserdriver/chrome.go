// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package browserdriver

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	chromedpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/dykim0518/makestar-e2e-tests/internal/authstore"
	"github.com/dykim0518/makestar-e2e-tests/internal/plog"
)

// operationTimeout bounds every single browser operation. Navigation to a hung page or a
// stuck CDP call fails here rather than blocking the worker forever.
const operationTimeout = 30 * time.Second

// Options configures Open.
type Options struct {
	// Headless controls whether the browser renders a visible window. Silent renewal runs
	// headless; interactive renewal needs a window a human can use.
	Headless bool

	// Proxy optionally routes browser traffic through an HTTP proxy.
	Proxy string
}

// Chrome drives a Chrome subprocess over the DevTools protocol.
type Chrome struct {
	chromeCtx context.Context
	cancels   []context.CancelFunc

	// consoleEvents and exceptionEvents capture browser-side output for failure diagnosis.
	mu              sync.RWMutex
	consoleEvents   []string
	exceptionEvents []string
}

var _ Driver = (*Chrome)(nil)

// Open starts a Chrome subprocess and returns a Chrome ready to be driven. Each call creates
// a fresh browser which shares no cookies with any other.
func Open(ctx context.Context, opts Options) (*Chrome, error) {
	options := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.IgnoreCertErrors,
		chromedp.Flag("headless", opts.Headless),
	)
	if !opts.Headless {
		options = append(options,
			chromedp.Flag("hide-scrollbars", false),
			chromedp.Flag("mute-audio", false),
		)
	}
	if runtime.GOOS != "darwin" && runtime.GOOS != "windows" {
		// When running on linux, assume that we are inside a CI container. Chrome refuses
		// to launch there without this flag.
		options = append(options, chromedp.NoSandbox)
	}
	if opts.Proxy != "" {
		plog.Debug("configuring Chrome to use proxy", "proxy", opts.Proxy)
		options = append(options, chromedp.ProxyServer(opts.Proxy))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, options...)
	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx)

	c := &Chrome{
		chromeCtx: chromeCtx,
		cancels:   []context.CancelFunc{chromeCancel, allocCancel},
	}

	// Subscribe to console events and exceptions so a failed renewal can be diagnosed.
	chromedp.ListenTarget(chromeCtx, func(ev any) {
		switch ev := ev.(type) {
		case *chromedpruntime.EventConsoleAPICalled:
			args := make([]string, len(ev.Args))
			for i, arg := range ev.Args {
				args[i] = string(arg.Value)
			}
			c.mu.Lock()
			defer c.mu.Unlock()
			c.consoleEvents = append(c.consoleEvents, ev.Type.String()+": "+strings.Join(args, ", "))
		case *chromedpruntime.EventExceptionThrown:
			c.mu.Lock()
			defer c.mu.Unlock()
			c.exceptionEvents = append(c.exceptionEvents, ev.ExceptionDetails.Error())
		}
	})

	// Start the subprocess. Do not use a timeout context here or else the browser would
	// close when that timeout fires.
	if err := chromedp.Run(chromeCtx); err != nil {
		c.cancel()
		return nil, fmt.Errorf("could not start browser: %w", err)
	}
	return c, nil
}

func (c *Chrome) cancel() {
	for _, cancel := range c.cancels {
		cancel()
	}
}

// Close shuts down the browser subprocess.
func (c *Chrome) Close() error {
	c.cancel()
	return nil
}

// ConsoleEvents returns the console and exception output observed so far.
func (c *Chrome) ConsoleEvents() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	events := make([]string, 0, len(c.consoleEvents)+len(c.exceptionEvents))
	events = append(events, c.consoleEvents...)
	events = append(events, c.exceptionEvents...)
	return events
}

func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(c.chromeCtx, operationTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(opCtx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("could not navigate to %q: %w", url, err)
	}
	return nil
}

func (c *Chrome) Location(ctx context.Context) (string, error) {
	var url string
	if err := c.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("could not read browser location: %w", err)
	}
	return url, nil
}

func (c *Chrome) Visible(ctx context.Context, selector string) (bool, error) {
	// A plain evaluation instead of chromedp.WaitVisible: this is a point-in-time check
	// used inside bounded polls, so it must never block on its own.
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) { return false; }
		const style = window.getComputedStyle(el);
		return style.display !== 'none' && style.visibility !== 'hidden' && el.getClientRects().length > 0;
	})()`, strconv.Quote(selector))

	var visible bool
	if err := c.run(ctx, chromedp.Evaluate(script, &visible)); err != nil {
		return false, fmt.Errorf("could not check visibility of %q: %w", selector, err)
	}
	return visible, nil
}

func (c *Chrome) Click(ctx context.Context, selector string) error {
	err := c.run(ctx, chromedp.Click(selector, chromedp.NodeVisible, chromedp.NodeEnabled, chromedp.ByQuery))
	if err != nil {
		return fmt.Errorf("could not click %q: %w", selector, err)
	}
	return nil
}

func (c *Chrome) Cookies(ctx context.Context) ([]authstore.Cookie, error) {
	var result []authstore.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		result = make([]authstore.Cookie, 0, len(cookies))
		for _, ck := range cookies {
			cookie := authstore.Cookie{
				Name:     ck.Name,
				Value:    ck.Value,
				Domain:   ck.Domain,
				Path:     ck.Path,
				HTTPOnly: ck.HTTPOnly,
				Secure:   ck.Secure,
				SameSite: string(ck.SameSite),
			}
			if ck.Expires > 0 {
				t := time.Unix(int64(ck.Expires), 0).UTC()
				cookie.Expires = &t
			}
			result = append(result, cookie)
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("could not read cookies: %w", err)
	}
	return result, nil
}

func (c *Chrome) SetCookies(ctx context.Context, cookies []authstore.Cookie) error {
	for _, ck := range cookies {
		if ck.Domain == "" {
			return fmt.Errorf("refusing to set cookie %q without a domain", ck.Name)
		}
	}
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, ck := range cookies {
			params := network.SetCookie(ck.Name, ck.Value).
				WithDomain(ck.Domain).
				WithPath(ck.Path).
				WithHTTPOnly(ck.HTTPOnly).
				WithSecure(ck.Secure)
			if ss := sameSiteFromString(ck.SameSite); ss != "" {
				params = params.WithSameSite(ss)
			}
			if ck.Expires != nil {
				expires := cdp.TimeSinceEpoch(*ck.Expires)
				params = params.WithExpires(&expires)
			}
			if err := params.Do(ctx); err != nil {
				return fmt.Errorf("cookie %q: %w", ck.Name, err)
			}
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("could not set cookies: %w", err)
	}
	return nil
}

func (c *Chrome) LocalStorage(ctx context.Context) (map[string]string, error) {
	var entries map[string]string
	script := `Object.fromEntries(Object.entries(window.localStorage))`
	if err := c.run(ctx, chromedp.Evaluate(script, &entries)); err != nil {
		return nil, fmt.Errorf("could not read localStorage: %w", err)
	}
	return entries, nil
}

func (c *Chrome) SetLocalStorage(ctx context.Context, origin string, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}

	// localStorage is per origin, so make sure the browser is on a page of that origin.
	current, err := c.Location(ctx)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(current, origin) {
		if err := c.Navigate(ctx, origin); err != nil {
			return err
		}
	}

	encoded, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("could not encode localStorage entries: %w", err)
	}
	script := fmt.Sprintf(`(() => {
		const entries = %s;
		for (const [key, value] of Object.entries(entries)) {
			window.localStorage.setItem(key, value);
		}
		return true;
	})()`, string(encoded))

	var ok bool
	if err := c.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("could not write localStorage: %w", err)
	}
	return nil
}

func sameSiteFromString(value string) network.CookieSameSite {
	switch strings.ToLower(value) {
	case "strict":
		return network.CookieSameSiteStrict
	case "lax":
		return network.CookieSameSiteLax
	case "none":
		return network.CookieSameSiteNone
	default:
		return ""
	}
}
