package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kkonovalov/webagent-core/internal/browser"
	"github.com/kkonovalov/webagent-core/internal/mfa"
	"github.com/kkonovalov/webagent-core/internal/model"
)

const (
	defaultWaitTimeout  = 10 * time.Second
	verifyWaitTimeout   = 10 * time.Second
	defaultFillTimeout  = 10 * time.Second
	defaultSelectWait   = 10 * time.Second
	downloadWaitTimeout = 30 * time.Second
)

// perform executes step exactly once using the given selector (the caller
// owns retry/backoff). It returns a human-readable message on success.
func (e *Executor) perform(ctx context.Context, step model.Step, selector string) (string, error) {
	switch step.Operation {
	case model.OpClick:
		return e.click(ctx, step, selector)
	case model.OpFill:
		return e.fill(ctx, selector, step.Value)
	case model.OpSelect:
		return e.selectOption(ctx, selector, step.Value)
	case model.OpWait:
		return e.wait(ctx, selector, step.Value)
	case model.OpVerify:
		return e.verify(ctx, selector, step.Value)
	case model.OpPress:
		return e.press(ctx, step.Value)
	case model.OpScrapeToMemory:
		return e.scrapeToMemory(ctx)
	case model.OpHandleMFA:
		return e.handleMFA(ctx, selector, step.Value)
	case model.OpGetCookies:
		return e.getCookies(ctx, step.Value)
	case model.OpSetCookies:
		return e.setCookies(ctx, step.Value)
	case model.OpGetContent:
		return e.getContent(ctx)
	case model.OpGetFields:
		return e.getFields(ctx)
	case model.OpEvaluate:
		return e.evaluate(ctx, step.Value)
	case model.OpScreenshot:
		return e.screenshotOp(ctx, selector)
	case model.OpDownload:
		return e.download(ctx, selector, step.Value)
	case model.OpExtractText:
		return e.extractText(ctx, selector)
	case model.OpRespond:
		return "AGENT_RESPONSE: " + step.Value, nil
	case model.OpDone:
		return "done", nil
	default:
		return "", fmt.Errorf("%w: %s", model.ErrInvalidOperation, step.Operation)
	}
}

func (e *Executor) fill(ctx context.Context, selector, value string) (string, error) {
	if selector == "" {
		return "", fmt.Errorf("%w: fill requires a selector", model.ErrBadArgument)
	}
	if err := e.ctrl.WaitForSelector(ctx, selector, browser.StateVisible, defaultFillTimeout); err != nil {
		return "", fmt.Errorf("%w: fill wait %s: %v", model.ErrExecutorTimeout, selector, err)
	}
	if err := e.ctrl.Fill(ctx, selector, value, defaultFillTimeout); err != nil {
		return "", fmt.Errorf("%w: fill %s: %v", model.ErrBrowserError, selector, err)
	}
	actual, err := e.ctrl.InputValue(ctx, selector, defaultFillTimeout)
	if err == nil && actual != value {
		e.logger.Warn().Str("selector", selector).Str("expected", value).Str("actual", actual).
			Msg("fill verification mismatch")
	}
	return fmt.Sprintf("filled %s with %q", selector, value), nil
}

func (e *Executor) selectOption(ctx context.Context, selector, value string) (string, error) {
	if selector == "" {
		return "", fmt.Errorf("%w: select requires a selector", model.ErrBadArgument)
	}
	if err := e.ctrl.WaitForSelector(ctx, selector, browser.StateVisible, defaultSelectWait); err != nil {
		return "", fmt.Errorf("%w: select wait %s: %v", model.ErrExecutorTimeout, selector, err)
	}
	if err := e.ctrl.SelectOption(ctx, selector, value, defaultSelectWait); err != nil {
		return "", fmt.Errorf("%w: select %s=%q: %v", model.ErrBrowserError, selector, value, err)
	}
	return fmt.Sprintf("selected %q on %s", value, selector), nil
}

// wait implements spec.md §4.3 wait: a positive-integer value sleeps that
// many milliseconds; otherwise selector may carry a "|state" suffix
// (visible|hidden|attached|detached), defaulting to visible.
func (e *Executor) wait(ctx context.Context, selector, value string) (string, error) {
	if ms, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && ms > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(ms) * time.Millisecond):
		}
		return fmt.Sprintf("waited %dms", ms), nil
	}

	target, state := selector, browser.StateVisible
	if idx := strings.LastIndex(selector, "|"); idx >= 0 {
		target = selector[:idx]
		switch strings.TrimSpace(selector[idx+1:]) {
		case "hidden":
			state = browser.StateHidden
		case "attached":
			state = browser.StateAttached
		case "detached":
			state = browser.StateDetached
		default:
			state = browser.StateVisible
		}
	}
	if target == "" {
		return "", fmt.Errorf("%w: wait requires a selector or millisecond value", model.ErrBadArgument)
	}
	if err := e.ctrl.WaitForSelector(ctx, target, state, defaultWaitTimeout); err != nil {
		return "", fmt.Errorf("%w: wait for %s (%s): %v", model.ErrExecutorTimeout, target, state, err)
	}
	return fmt.Sprintf("waited for %s to be %s", target, state), nil
}

// verify implements spec.md §4.3 verify: attached within 10s, then visible
// within 10s (visibility is always checked; there is no option to skip it),
// and — when value is set — value must be a substring of the element's text.
func (e *Executor) verify(ctx context.Context, selector, value string) (string, error) {
	if selector == "" {
		return "", fmt.Errorf("%w: verify requires a selector", model.ErrBadArgument)
	}
	if err := e.ctrl.WaitForSelector(ctx, selector, browser.StateAttached, verifyWaitTimeout); err != nil {
		return "", fmt.Errorf("%w: verify %s not attached: %v", model.ErrExecutorNotFound, selector, err)
	}
	if err := e.ctrl.WaitForSelector(ctx, selector, browser.StateVisible, verifyWaitTimeout); err != nil {
		return "", fmt.Errorf("%w: verify %s not visible: %v", model.ErrExecutorNotFound, selector, err)
	}
	if strings.TrimSpace(value) == "" {
		return fmt.Sprintf("verified %s is present", selector), nil
	}
	text, err := e.ctrl.TextContent(ctx, selector, verifyWaitTimeout)
	if err != nil {
		return "", fmt.Errorf("%w: verify read text %s: %v", model.ErrBrowserError, selector, err)
	}
	if !strings.Contains(text, value) {
		return "", fmt.Errorf("%w: %q not found in %s (text %q)", model.ErrAssertionMismatch, value, selector, text)
	}
	return fmt.Sprintf("verified %s contains %q", selector, value), nil
}

// press implements spec.md §4.3 press: Enter gets an explicit URL/digest
// comparison so the engine can tell whether the page actually responded;
// other keys just press and settle briefly.
func (e *Executor) press(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%w: press requires a key name", model.ErrBadArgument)
	}

	_ = e.ctrl.ArmDialog(ctx, true, "")
	defer func() { _ = e.ctrl.DisarmDialog(ctx) }()
	if !strings.EqualFold(key, "Enter") {
		if err := e.ctrl.PressKey(ctx, key); err != nil {
			return "", fmt.Errorf("%w: press %s: %v", model.ErrBrowserError, key, err)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
		return fmt.Sprintf("pressed %s", key), nil
	}

	beforeURL := e.ctrl.CurrentURL()
	beforeHTML, _ := e.ctrl.Content(ctx)

	if err := e.ctrl.PressKey(ctx, "Enter"); err != nil {
		return "", fmt.Errorf("%w: press Enter: %v", model.ErrBrowserError, err)
	}
	if e.ctrl.WaitForLoadState(ctx, "networkidle", 5*time.Second) != nil {
		_ = e.ctrl.WaitForLoadState(ctx, "domcontentloaded", 3*time.Second)
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(2 * time.Second):
	}

	afterURL := e.ctrl.CurrentURL()
	afterHTML, _ := e.ctrl.Content(ctx)
	urlChanged := afterURL != beforeURL
	contentChanged := beforeHTML != "" && afterHTML != "" && beforeHTML != afterHTML

	if urlChanged || contentChanged {
		return fmt.Sprintf("pressed Enter, page updated (url_changed=%v, content_changed=%v)", urlChanged, contentChanged), nil
	}
	return "pressed Enter, page did not change", nil
}

func (e *Executor) scrapeToMemory(ctx context.Context) (string, error) {
	if e.memory == nil {
		return "", fmt.Errorf("%w: scrape_to_memory", model.ErrMissingCapability)
	}
	url := e.ctrl.CurrentURL()
	content, err := e.ctrl.Content(ctx)
	if err != nil || len(content) == 0 {
		return "", fmt.Errorf("%w: scrape_to_memory: empty page content", model.ErrBrowserError)
	}
	if err := e.memory.IngestCurrentPage(ctx, url, e.conversationID); err != nil {
		return "", fmt.Errorf("%w: scrape_to_memory: %v", model.ErrBrowserError, err)
	}
	return fmt.Sprintf("ingested %s into memory", url), nil
}

// handleMFA implements spec.md §4.3 handle_mfa: screenshot the page,
// decode a TOTP QR code, generate the current code, fill it, and submit.
func (e *Executor) handleMFA(ctx context.Context, otpSelector, submitValue string) (string, error) {
	if e.qr == nil || e.totp == nil {
		return "", fmt.Errorf("%w: handle_mfa requires QR and TOTP capabilities", model.ErrMissingCapability)
	}
	if otpSelector == "" {
		return "", fmt.Errorf("%w: handle_mfa requires an otp selector", model.ErrBadArgument)
	}
	shot, err := e.ctrl.Screenshot(ctx, true)
	if err != nil {
		return "", fmt.Errorf("%w: handle_mfa screenshot: %v", model.ErrBrowserError, err)
	}
	payloads, err := e.qr.DecodeQR(shot)
	if err != nil || len(payloads) == 0 {
		return "", fmt.Errorf("%w: no TOTP QR code found on the page", model.ErrExecutorNotFound)
	}
	secret, err := mfa.ExtractTOTPSecret(payloads)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrExecutorNotFound, err)
	}
	code, err := e.totp.Generate(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrBrowserError, err)
	}
	if _, err := e.fill(ctx, otpSelector, code); err != nil {
		return "", err
	}
	submitSelector := strings.TrimSpace(submitValue)
	if submitSelector == "" {
		submitSelector = `button[type="submit"]`
	}
	if _, err := e.click(ctx, model.Step{Operation: model.OpClick}, submitSelector); err != nil {
		return "", fmt.Errorf("%w: submitting MFA code: %v", model.ErrBrowserError, err)
	}
	return "MFA handled successfully", nil
}

func (e *Executor) getContent(ctx context.Context) (string, error) {
	snap, err := e.observer.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: get_content: %v", model.ErrBrowserError, err)
	}
	return snap.ContentText, nil
}

func (e *Executor) getFields(ctx context.Context) (string, error) {
	snap, err := e.observer.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: get_fields: %v", model.ErrBrowserError, err)
	}
	buf, err := json.Marshal(snap.Fields)
	if err != nil {
		return "", fmt.Errorf("get_fields: encode: %w", err)
	}
	return string(buf), nil
}

func (e *Executor) evaluate(ctx context.Context, script string) (string, error) {
	if strings.TrimSpace(script) == "" {
		return "", fmt.Errorf("%w: evaluate requires a script", model.ErrBadArgument)
	}
	result, err := e.ctrl.Evaluate(ctx, script, nil)
	if err != nil {
		return "", fmt.Errorf("%w: evaluate: %v", model.ErrBrowserError, err)
	}
	switch v := result.(type) {
	case nil:
		return "null", nil
	case string:
		return v, nil
	case float64, bool:
		return fmt.Sprintf("%v", v), nil
	default:
		buf, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v), nil
		}
		return string(buf), nil
	}
}

func (e *Executor) screenshotOp(ctx context.Context, selector string) (string, error) {
	var (
		b   []byte
		err error
	)
	if strings.TrimSpace(selector) != "" {
		b, err = e.ctrl.ScreenshotHighlighted(ctx, selector)
	} else {
		b, err = e.ctrl.Screenshot(ctx, true)
	}
	if err != nil {
		return "", fmt.Errorf("%w: screenshot: %v", model.ErrBrowserError, err)
	}
	path := e.saveBytes(b, "screenshot")
	if path == "" {
		return "", fmt.Errorf("%w: screenshot: could not save capture", model.ErrBrowserError)
	}
	return path, nil
}

func (e *Executor) download(ctx context.Context, triggerSelector, destPath string) (string, error) {
	if triggerSelector == "" {
		return "", fmt.Errorf("%w: download requires a trigger selector", model.ErrBadArgument)
	}
	path, size, err := e.ctrl.Download(ctx, triggerSelector, destPath, downloadWaitTimeout)
	if err != nil {
		return "", fmt.Errorf("%w: download: %v", model.ErrBrowserError, err)
	}
	if size <= 0 {
		return "", fmt.Errorf("%w: download: saved file is empty", model.ErrBrowserError)
	}
	return fmt.Sprintf("downloaded %s (%d bytes)", path, size), nil
}

func (e *Executor) extractText(ctx context.Context, selector string) (string, error) {
	if e.ocr == nil {
		return "", fmt.Errorf("%w: extract_text requires an OCR capability", model.ErrMissingCapability)
	}
	if selector == "" {
		return "", fmt.Errorf("%w: extract_text requires a selector", model.ErrBadArgument)
	}
	shot, err := e.ctrl.ElementScreenshot(ctx, selector, defaultWaitTimeout)
	if err != nil {
		return "", fmt.Errorf("%w: extract_text screenshot %s: %v", model.ErrBrowserError, selector, err)
	}
	text, err := e.ocr.OCR(shot)
	if err != nil {
		return "", fmt.Errorf("%w: extract_text ocr: %v", model.ErrBrowserError, err)
	}
	return text, nil
}

func (e *Executor) saveBytes(b []byte, tag string) string {
	return e.captureScreenshotBytes(b, tag)
}
