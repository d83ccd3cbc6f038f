// Package browser wraps playwright-go behind the Controller capability
// contract spec.md §6.1 requires of the interaction engine: navigation,
// locator-scoped actions with explicit timeouts, keyboard/mouse, cookies,
// screenshots, downloads, and request routing, plus identity hardening
// applied once at context-creation time.
package browser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

const (
	defaultNavTimeout     = 30 * time.Second
	headlessEnv           = "AGENT_HEADLESS"
	blockHeavyResourceEnv = "AGENT_BLOCK_HEAVY_RESOURCES"

	// identityUserAgent is a plausible modern desktop Chrome UA string,
	// applied per spec.md §6.1's identity-hardening requirement.
	identityUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	identityLocale = "en-US"
	identityTZ     = "America/New_York"
)

// identityInitScript is injected into every new page to mask common
// headless-browser fingerprints (navigator.webdriver, missing plugins,
// missing chrome object) the way a real Chrome profile would present them.
const identityInitScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => false });
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
window.chrome = window.chrome || { runtime: {} };
if (window.navigator.permissions) {
  const originalQuery = window.navigator.permissions.query;
  window.navigator.permissions.query = (parameters) => (
    parameters.name === 'notifications'
      ? Promise.resolve({ state: Notification.permission })
      : originalQuery(parameters)
  );
}
`

// heavyResourceTypes are the request resource types blockHeavyResources
// aborts (SPEC_FULL.md §9 request interception): images, fonts, and media
// cost bandwidth and render time a headless text-driven agent never uses.
var heavyResourceTypes = map[string]bool{
	"image": true,
	"font":  true,
	"media": true,
}

// blockHeavyResources is routed against every request in NewController
// unless AGENT_BLOCK_HEAVY_RESOURCES=0; it aborts the heavy resource
// types and continues everything else.
func blockHeavyResources(route playwright.Route) {
	if heavyResourceTypes[route.Request().ResourceType()] {
		_ = route.Abort()
		return
	}
	_ = route.Continue()
}

// Launcher owns the playwright process and the browser instance; its
// lifecycle is caller-owned (spec.md §5 Cleanup) — the engine never calls
// Close itself.
type Launcher struct {
	pw       *playwright.Playwright
	browser  playwright.Browser
	headless bool
	closed   bool
}

// NewLauncher starts playwright and launches headless (or headed, via
// AGENT_HEADLESS) Chromium.
func NewLauncher(ctx context.Context) (*Launcher, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	headless := parseBoolEnv(headlessEnv, true)
	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-blink-features=AutomationControlled",
		},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	return &Launcher{pw: pw, browser: b, headless: headless}, nil
}

// NewController creates a hardened browser context and a single page,
// applying the identity hardening spec.md §6.1 mandates at creation time.
func (l *Launcher) NewController(ctx context.Context, storagePath string) (Controller, error) {
	opts := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(true),
		UserAgent:         playwright.String(identityUserAgent),
		Viewport:          &playwright.Size{Width: 1920, Height: 1080},
		Locale:            playwright.String(identityLocale),
		TimezoneId:        playwright.String(identityTZ),
	}
	if strings.TrimSpace(storagePath) != "" {
		opts.StorageStatePath = playwright.String(storagePath)
	}
	bctx, err := l.browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}
	if err := bctx.AddInitScript(playwright.Script{Script: playwright.String(identityInitScript)}); err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("add init script: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	page.SetDefaultTimeout(float64(defaultNavTimeout.Milliseconds()))

	policy := &dialogPolicy{}
	page.OnDialog(policy.onDialog)

	ctrl := &controller{context: bctx, page: page, dialog: policy}

	if parseBoolEnv(blockHeavyResourceEnv, true) {
		if err := ctrl.Route(ctx, "**/*", blockHeavyResources); err != nil {
			_ = bctx.Close()
			return nil, fmt.Errorf("route heavy resources: %w", err)
		}
	}

	return ctrl, nil
}

// Close shuts down the browser and the playwright process. Idempotent:
// safe to call more than once, and safe to call on a nil receiver check
// performed by the caller.
func (l *Launcher) Close() error {
	if l == nil || l.closed {
		return nil
	}
	l.closed = true
	if l.browser != nil {
		_ = l.browser.Close()
	}
	if l.pw != nil {
		return l.pw.Stop()
	}
	return nil
}

func parseBoolEnv(name string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(name))
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
