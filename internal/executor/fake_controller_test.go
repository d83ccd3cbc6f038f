package executor

import (
	"context"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kkonovalov/webagent-core/internal/browser"
)

// fakeController is a minimal, fully in-memory browser.Controller test
// double. Each field is an optional hook; a nil hook returns a zero value
// (or, for error-returning methods, no error) so tests only need to wire
// the handful of methods the scenario under test exercises.
type fakeController struct {
	currentURL string
	content    string

	// contentSeq, when set, is returned one element per call to Content,
	// advancing contentCalls each time (sticking on the last element once
	// exhausted) - used to simulate a page that changes across a step.
	contentSeq   []string
	contentCalls int
	// urlSeq mirrors contentSeq for CurrentURL.
	urlSeq   []string
	urlCalls int

	armDialogCalls    int
	disarmDialogCalls int

	countByTextFn      func(text string, exact bool) (int, error)
	clickByTextFn      func(text string, exact bool) error
	clickFn            func(selector string, force bool) error
	waitLoadStateFn    func(state string) error
	fillFn             func(selector, value string) error
	inputValueFn       func(selector string) (string, error)
	waitForSelectorFn  func(selector string, state browser.WaitState) error
	selectOptionFn     func(selector, valueOrLabel string) error
	textContentFn      func(selector string) (string, error)
	pressKeyFn         func(key string) error
	evaluateFn         func(js string, arg any) (any, error)
	screenshotFn       func(fullPage bool) ([]byte, error)
	screenshotHLFn     func(selector string) ([]byte, error)
	elementShotFn      func(selector string) ([]byte, error)
	downloadFn         func(trigger, dest string) (string, int64, error)
}

func (f *fakeController) Close(ctx context.Context) error         { return nil }
func (f *fakeController) Page() playwright.Page                   { return nil }
func (f *fakeController) Goto(ctx context.Context, url string, timeout time.Duration) error {
	f.currentURL = url
	return nil
}
func (f *fakeController) CurrentURL() string {
	if f.urlSeq != nil {
		idx := f.urlCalls
		if idx >= len(f.urlSeq) {
			idx = len(f.urlSeq) - 1
		}
		f.urlCalls++
		return f.urlSeq[idx]
	}
	return f.currentURL
}
func (f *fakeController) Content(ctx context.Context) (string, error) {
	if f.contentSeq != nil {
		idx := f.contentCalls
		if idx >= len(f.contentSeq) {
			idx = len(f.contentSeq) - 1
		}
		f.contentCalls++
		return f.contentSeq[idx], nil
	}
	return f.content, nil
}
func (f *fakeController) Evaluate(ctx context.Context, js string, arg any) (any, error) {
	if f.evaluateFn != nil {
		return f.evaluateFn(js, arg)
	}
	return nil, nil
}
func (f *fakeController) WaitForSelector(ctx context.Context, selector string, state browser.WaitState, timeout time.Duration) error {
	if f.waitForSelectorFn != nil {
		return f.waitForSelectorFn(selector, state)
	}
	return nil
}
func (f *fakeController) Click(ctx context.Context, selector string, timeout time.Duration, force bool) error {
	if f.clickFn != nil {
		return f.clickFn(selector, force)
	}
	return nil
}
func (f *fakeController) CountByText(ctx context.Context, text string, exact bool) (int, error) {
	if f.countByTextFn != nil {
		return f.countByTextFn(text, exact)
	}
	return 0, nil
}
func (f *fakeController) ClickByText(ctx context.Context, text string, exact bool, timeout time.Duration) error {
	if f.clickByTextFn != nil {
		return f.clickByTextFn(text, exact)
	}
	return nil
}
func (f *fakeController) Fill(ctx context.Context, selector, value string, timeout time.Duration) error {
	if f.fillFn != nil {
		return f.fillFn(selector, value)
	}
	return nil
}
func (f *fakeController) InputValue(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	if f.inputValueFn != nil {
		return f.inputValueFn(selector)
	}
	return "", nil
}
func (f *fakeController) SelectOption(ctx context.Context, selector, valueOrLabel string, timeout time.Duration) error {
	if f.selectOptionFn != nil {
		return f.selectOptionFn(selector, valueOrLabel)
	}
	return nil
}
func (f *fakeController) TextContent(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	if f.textContentFn != nil {
		return f.textContentFn(selector)
	}
	return "", nil
}
func (f *fakeController) IsEnabled(ctx context.Context, selector string) (bool, error) { return true, nil }
func (f *fakeController) ScrollIntoView(ctx context.Context, selector string) error    { return nil }
func (f *fakeController) WaitForLoadState(ctx context.Context, state string, timeout time.Duration) error {
	if f.waitLoadStateFn != nil {
		return f.waitLoadStateFn(state)
	}
	return nil
}
func (f *fakeController) PressKey(ctx context.Context, key string) error {
	if f.pressKeyFn != nil {
		return f.pressKeyFn(key)
	}
	return nil
}
func (f *fakeController) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if f.screenshotFn != nil {
		return f.screenshotFn(fullPage)
	}
	return nil, nil
}
func (f *fakeController) ScreenshotHighlighted(ctx context.Context, selector string) ([]byte, error) {
	if f.screenshotHLFn != nil {
		return f.screenshotHLFn(selector)
	}
	return nil, nil
}
func (f *fakeController) ElementScreenshot(ctx context.Context, selector string, timeout time.Duration) ([]byte, error) {
	if f.elementShotFn != nil {
		return f.elementShotFn(selector)
	}
	return nil, nil
}
func (f *fakeController) Download(ctx context.Context, triggerSelector, destPath string, timeout time.Duration) (string, int64, error) {
	if f.downloadFn != nil {
		return f.downloadFn(triggerSelector, destPath)
	}
	return "", 0, nil
}
func (f *fakeController) Cookies(ctx context.Context) ([]browser.Cookie, error) { return nil, nil }
func (f *fakeController) AddCookies(ctx context.Context, cookies []browser.Cookie) error {
	return nil
}
func (f *fakeController) Route(ctx context.Context, pattern string, handler browser.RouteHandler) error {
	return nil
}
func (f *fakeController) ArmDialog(ctx context.Context, accept bool, promptText string) error {
	f.armDialogCalls++
	return nil
}
func (f *fakeController) DisarmDialog(ctx context.Context) error {
	f.disarmDialogCalls++
	return nil
}
func (f *fakeController) SaveState(ctx context.Context, path string) error { return nil }

var _ browser.Controller = (*fakeController)(nil)
