package browser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// WaitState mirrors the Locator wait states spec.md §6.1 names.
type WaitState string

const (
	StateVisible   WaitState = "visible"
	StateHidden    WaitState = "hidden"
	StateAttached  WaitState = "attached"
	StateDetached  WaitState = "detached"
)

// Cookie is the wire shape for get_cookies/set_cookies (spec.md §4.3).
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  float64
	HTTPOnly bool
	Secure   bool
}

// RouteHandler intercepts a matched network request; Continue/Abort/Fulfill
// decide its fate. Used by the resource-blocking helper (SPEC_FULL.md §9).
type RouteHandler func(route playwright.Route)

// Controller exposes the browser capability spec.md §6.1 requires: all
// operations are async (ctx-scoped) with explicit timeouts. It is the sole
// seam between ActionExecutor/PageObserver and playwright-go.
type Controller interface {
	Close(ctx context.Context) error
	Page() playwright.Page

	Goto(ctx context.Context, url string, timeout time.Duration) error
	CurrentURL() string
	Content(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, js string, arg any) (any, error)

	WaitForSelector(ctx context.Context, selector string, state WaitState, timeout time.Duration) error
	Click(ctx context.Context, selector string, timeout time.Duration, force bool) error
	CountByText(ctx context.Context, text string, exact bool) (int, error)
	ClickByText(ctx context.Context, text string, exact bool, timeout time.Duration) error
	Fill(ctx context.Context, selector, value string, timeout time.Duration) error
	InputValue(ctx context.Context, selector string, timeout time.Duration) (string, error)
	SelectOption(ctx context.Context, selector, valueOrLabel string, timeout time.Duration) error
	TextContent(ctx context.Context, selector string, timeout time.Duration) (string, error)
	IsEnabled(ctx context.Context, selector string) (bool, error)
	ScrollIntoView(ctx context.Context, selector string) error

	WaitForLoadState(ctx context.Context, state string, timeout time.Duration) error
	PressKey(ctx context.Context, key string) error

	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	ScreenshotHighlighted(ctx context.Context, selector string) ([]byte, error)
	ElementScreenshot(ctx context.Context, selector string, timeout time.Duration) ([]byte, error)

	Download(ctx context.Context, triggerSelector, destPath string, timeout time.Duration) (string, int64, error)

	Cookies(ctx context.Context) ([]Cookie, error)
	AddCookies(ctx context.Context, cookies []Cookie) error

	Route(ctx context.Context, pattern string, handler RouteHandler) error

	// ArmDialog registers a one-shot response for the next native
	// alert/confirm/prompt dialog: accept (optionally filling promptText)
	// or dismiss. A dialog that fires while nothing is armed is
	// auto-accepted so it never blocks the run. click/press arm this
	// around the action that might trigger one (SPEC_FULL.md §9).
	ArmDialog(ctx context.Context, accept bool, promptText string) error
	DisarmDialog(ctx context.Context) error

	SaveState(ctx context.Context, path string) error
}

// dialogPolicy is the armable one-shot native-dialog handler a
// controller's page.OnDialog listener is bound to once at construction
// time; arm/disarm just flip state the listener reads on the next event.
type dialogPolicy struct {
	mu         sync.Mutex
	armed      bool
	accept     bool
	promptText string
}

func (d *dialogPolicy) onDialog(dlg playwright.Dialog) {
	accept, promptText := d.consume()
	if accept {
		_ = dlg.Accept(promptText)
		return
	}
	_ = dlg.Dismiss()
}

// consume reads and resets the armed state, returning whether the dialog
// should be accepted (and with what prompt text). Split out from onDialog
// so the decision logic is testable without a real playwright.Dialog.
func (d *dialogPolicy) consume() (accept bool, promptText string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	armed, wantAccept, text := d.armed, d.accept, d.promptText
	d.armed = false
	if !armed {
		return true, ""
	}
	return wantAccept, text
}

func (d *dialogPolicy) arm(accept bool, promptText string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.armed, d.accept, d.promptText = true, accept, promptText
}

func (d *dialogPolicy) disarm() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.armed = false
}

type controller struct {
	context playwright.BrowserContext
	page    playwright.Page
	dialog  *dialogPolicy
}

func (c *controller) Page() playwright.Page { return c.page }

func (c *controller) Close(ctx context.Context) error {
	_ = ctx
	if c.page != nil {
		_ = c.page.Close()
	}
	if c.context != nil {
		return c.context.Close()
	}
	return nil
}

// Goto implements the navigation strategy cascade spec.md §5 mandates:
// domcontentloaded -> load -> networkidle. Each strategy is a fresh
// page.Goto call with the full timeout; the first success ends the cascade.
func (c *controller) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = defaultNavTimeout
	}
	strategies := []playwright.WaitUntilState{
		playwright.WaitUntilStateDomcontentloaded,
		playwright.WaitUntilStateLoad,
		playwright.WaitUntilStateNetworkidle,
	}
	var lastErr error
	for _, strat := range strategies {
		_, err := c.page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: strat,
			Timeout:   playwright.Float(float64(timeout.Milliseconds())),
		})
		if err == nil {
			return nil
		}
		lastErr = err
		// Later strategies navigate again rather than waiting on the page
		// the first attempt reached.
		if strat == playwright.WaitUntilStateDomcontentloaded {
			// If the initial navigation itself failed (DNS, refused,
			// connect timeout) there is nothing further to wait for.
			if !strings.Contains(err.Error(), "Timeout") {
				return wrap(err)
			}
		}
	}
	return wrap(lastErr)
}

func (c *controller) CurrentURL() string { return c.page.URL() }

func (c *controller) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	html, err := c.page.Content()
	return html, wrap(err)
}

func (c *controller) Evaluate(ctx context.Context, js string, arg any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	val, err := c.page.Evaluate(js, arg)
	return val, wrap(err)
}

func toPWState(s WaitState) *playwright.WaitForSelectorState {
	switch s {
	case StateHidden:
		return playwright.WaitForSelectorStateHidden
	case StateAttached:
		return playwright.WaitForSelectorStateAttached
	case StateDetached:
		return playwright.WaitForSelectorStateDetached
	default:
		return playwright.WaitForSelectorStateVisible
	}
}

func (c *controller) WaitForSelector(ctx context.Context, selector string, state WaitState, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc := c.page.Locator(selector).First()
	opts := playwright.LocatorWaitForOptions{State: toPWState(state)}
	if timeout > 0 {
		opts.Timeout = playwright.Float(float64(timeout.Milliseconds()))
	}
	return wrap(loc.WaitFor(opts))
}

func (c *controller) Click(ctx context.Context, selector string, timeout time.Duration, force bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc := c.page.Locator(selector).First()
	waitOpts := playwright.LocatorWaitForOptions{State: playwright.WaitForSelectorStateVisible}
	if timeout > 0 {
		waitOpts.Timeout = playwright.Float(float64(timeout.Milliseconds()))
	}
	if err := loc.WaitFor(waitOpts); err != nil {
		if !force {
			return wrap(err)
		}
	}
	_ = loc.ScrollIntoViewIfNeeded()
	clickOpts := playwright.LocatorClickOptions{}
	if timeout > 0 {
		clickOpts.Timeout = playwright.Float(float64(timeout.Milliseconds()))
	}
	if force {
		clickOpts.Force = playwright.Bool(true)
	}
	return wrap(loc.Click(clickOpts))
}

func (c *controller) CountByText(ctx context.Context, text string, exact bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	loc := c.page.GetByText(text, playwright.PageGetByTextOptions{Exact: playwright.Bool(exact)})
	n, err := loc.Count()
	return n, wrap(err)
}

func (c *controller) ClickByText(ctx context.Context, text string, exact bool, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc := c.page.GetByText(text, playwright.PageGetByTextOptions{Exact: playwright.Bool(exact)}).First()
	opts := playwright.LocatorWaitForOptions{State: playwright.WaitForSelectorStateVisible}
	if timeout > 0 {
		opts.Timeout = playwright.Float(float64(timeout.Milliseconds()))
	}
	if err := loc.WaitFor(opts); err != nil {
		return wrap(err)
	}
	return wrap(loc.Click())
}

func (c *controller) Fill(ctx context.Context, selector, value string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc := c.page.Locator(selector).First()
	opts := playwright.LocatorWaitForOptions{State: playwright.WaitForSelectorStateVisible}
	if timeout > 0 {
		opts.Timeout = playwright.Float(float64(timeout.Milliseconds()))
	}
	if err := loc.WaitFor(opts); err != nil {
		return wrap(err)
	}
	return wrap(loc.Fill(value))
}

func (c *controller) InputValue(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	loc := c.page.Locator(selector).First()
	opts := playwright.LocatorInputValueOptions{}
	if timeout > 0 {
		opts.Timeout = playwright.Float(float64(timeout.Milliseconds()))
	}
	v, err := loc.InputValue(opts)
	return v, wrap(err)
}

func (c *controller) SelectOption(ctx context.Context, selector, valueOrLabel string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc := c.page.Locator(selector).First()
	waitOpts := playwright.LocatorWaitForOptions{State: playwright.WaitForSelectorStateVisible}
	if timeout > 0 {
		waitOpts.Timeout = playwright.Float(float64(timeout.Milliseconds()))
	}
	if err := loc.WaitFor(waitOpts); err != nil {
		return wrap(err)
	}
	selOpts := playwright.LocatorSelectOptionOptions{}
	if timeout > 0 {
		selOpts.Timeout = playwright.Float(float64(timeout.Milliseconds()))
	}
	// Try by value first, then fall back to label - the engine doesn't
	// know which the caller meant, so resolve it here.
	if _, err := loc.SelectOption(playwright.SelectOptionValues{Values: &[]string{valueOrLabel}}, selOpts); err == nil {
		return nil
	}
	_, err := loc.SelectOption(playwright.SelectOptionValues{Labels: &[]string{valueOrLabel}}, selOpts)
	return wrap(err)
}

func (c *controller) TextContent(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	loc := c.page.Locator(selector).First()
	opts := playwright.LocatorTextContentOptions{}
	if timeout > 0 {
		opts.Timeout = playwright.Float(float64(timeout.Milliseconds()))
	}
	v, err := loc.TextContent(opts)
	return v, wrap(err)
}

func (c *controller) IsEnabled(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	loc := c.page.Locator(selector).First()
	ok, err := loc.IsEnabled()
	return ok, wrap(err)
}

func (c *controller) ScrollIntoView(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc := c.page.Locator(selector).First()
	return wrap(loc.ScrollIntoViewIfNeeded())
}

func (c *controller) WaitForLoadState(ctx context.Context, state string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var s playwright.LoadState
	switch state {
	case "load":
		s = playwright.LoadStateLoad
	case "networkidle":
		s = playwright.LoadStateNetworkidle
	default:
		s = playwright.LoadStateDomcontentloaded
	}
	opts := playwright.PageWaitForLoadStateOptions{State: s}
	if timeout > 0 {
		opts.Timeout = playwright.Float(float64(timeout.Milliseconds()))
	}
	return wrap(c.page.WaitForLoadState(opts))
}

func (c *controller) PressKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(c.page.Keyboard().Press(key))
}

func (c *controller) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := c.page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(fullPage)})
	return b, wrap(err)
}

// ScreenshotHighlighted outlines selector in red, captures a full-page
// screenshot, then restores the element's original inline style
// (spec.md §4.3 screenshot operation).
func (c *controller) ScreenshotHighlighted(ctx context.Context, selector string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	script := `(sel) => {
		const el = document.querySelector(sel);
		if (!el) return null;
		const prev = el.getAttribute('style') || '';
		el.setAttribute('data-prev-style', prev);
		el.style.outline = '3px solid red';
		el.style.outlineOffset = '2px';
		return true;
	}`
	_, _ = c.page.Evaluate(script, selector)
	defer func() {
		restore := `(sel) => {
			const el = document.querySelector(sel);
			if (!el) return;
			const prev = el.getAttribute('data-prev-style');
			if (prev !== null) { el.setAttribute('style', prev); el.removeAttribute('data-prev-style'); }
		}`
		_, _ = c.page.Evaluate(restore, selector)
	}()
	b, err := c.page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
	return b, wrap(err)
}

// ElementScreenshot captures just selector's bounding box, used by the
// extract_text operation's OCR pass.
func (c *controller) ElementScreenshot(ctx context.Context, selector string, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loc := c.page.Locator(selector).First()
	opts := playwright.LocatorScreenshotOptions{}
	if timeout > 0 {
		opts.Timeout = playwright.Float(float64(timeout.Milliseconds()))
	}
	b, err := loc.Screenshot(opts)
	return b, wrap(err)
}

// Download clicks triggerSelector, awaits the resulting download, and
// saves it to destPath (or a generated path when destPath is empty).
func (c *controller) Download(ctx context.Context, triggerSelector, destPath string, timeout time.Duration) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	download, err := c.page.ExpectDownload(func() error {
		return c.Click(ctx, triggerSelector, timeout, false)
	}, playwright.PageExpectDownloadOptions{Timeout: playwright.Float(float64(timeout.Milliseconds()))})
	if err != nil {
		return "", 0, wrap(err)
	}
	path := destPath
	if strings.TrimSpace(path) == "" {
		path = fmt.Sprintf("%s/%s", os.TempDir(), download.SuggestedFilename())
	}
	if err := download.SaveAs(path); err != nil {
		return "", 0, wrap(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("stat downloaded file: %w", err)
	}
	return path, info.Size(), nil
}

func (c *controller) Cookies(ctx context.Context) ([]Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := c.context.Cookies()
	if err != nil {
		return nil, wrap(err)
	}
	out := make([]Cookie, 0, len(raw))
	for _, rc := range raw {
		out = append(out, Cookie{
			Name: rc.Name, Value: rc.Value, Domain: rc.Domain, Path: rc.Path,
			Expires: rc.Expires, HTTPOnly: rc.HttpOnly, Secure: rc.Secure,
		})
	}
	return out, nil
}

func (c *controller) AddCookies(ctx context.Context, cookies []Cookie) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, ck := range cookies {
		entry := playwright.OptionalCookie{
			Name:  ck.Name,
			Value: ck.Value,
		}
		if ck.Domain != "" {
			entry.Domain = playwright.String(ck.Domain)
		}
		path := ck.Path
		if path == "" {
			path = "/"
		}
		entry.Path = playwright.String(path)
		if ck.Expires > 0 {
			entry.Expires = playwright.Float(ck.Expires)
		}
		if ck.HTTPOnly {
			entry.HttpOnly = playwright.Bool(true)
		}
		if ck.Secure {
			entry.Secure = playwright.Bool(true)
		}
		entries = append(entries, entry)
	}
	return wrap(c.context.AddCookies(entries))
}

func (c *controller) Route(ctx context.Context, pattern string, handler RouteHandler) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(c.page.Route(pattern, func(route playwright.Route) {
		handler(route)
	}))
}

func (c *controller) ArmDialog(ctx context.Context, accept bool, promptText string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.dialog.arm(accept, promptText)
	return nil
}

func (c *controller) DisarmDialog(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.dialog.disarm()
	return nil
}

func (c *controller) SaveState(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.context.StorageState(path)
	return wrap(err)
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("playwright: %w", err)
}
