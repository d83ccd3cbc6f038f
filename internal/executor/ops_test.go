package executor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kkonovalov/webagent-core/internal/activitylog"
	"github.com/kkonovalov/webagent-core/internal/model"
	"github.com/kkonovalov/webagent-core/internal/observer"
)

func newTestExecutorWithObserver(ctrl *fakeController) *Executor {
	obs := observer.New(ctrl, zerolog.Nop())
	return New(ctrl, obs, activitylog.New(zerolog.Nop()), zerolog.Nop())
}

func TestFillRequiresSelector(t *testing.T) {
	e := newTestExecutor(&fakeController{})
	_, err := e.fill(context.Background(), "", "hello")
	require.ErrorIs(t, err, model.ErrBadArgument)
}

func TestFillSucceeds(t *testing.T) {
	ctrl := &fakeController{
		inputValueFn: func(selector string) (string, error) { return "hello", nil },
	}
	e := newTestExecutor(ctrl)
	msg, err := e.fill(context.Background(), "#name", "hello")
	require.NoError(t, err)
	require.Contains(t, msg, "#name")
	require.Contains(t, msg, "hello")
}

func TestFillPropagatesBrowserError(t *testing.T) {
	ctrl := &fakeController{fillFn: func(selector, value string) error { return errFake }}
	e := newTestExecutor(ctrl)
	_, err := e.fill(context.Background(), "#name", "hello")
	require.ErrorIs(t, err, model.ErrBrowserError)
}

func TestSelectOptionRequiresSelector(t *testing.T) {
	e := newTestExecutor(&fakeController{})
	_, err := e.selectOption(context.Background(), "", "value")
	require.ErrorIs(t, err, model.ErrBadArgument)
}

func TestSelectOptionSucceeds(t *testing.T) {
	e := newTestExecutor(&fakeController{})
	msg, err := e.selectOption(context.Background(), "#country", "US")
	require.NoError(t, err)
	require.Contains(t, msg, "US")
	require.Contains(t, msg, "#country")
}

func TestWaitWithMillisecondValue(t *testing.T) {
	e := newTestExecutor(&fakeController{})
	msg, err := e.wait(context.Background(), "", "1")
	require.NoError(t, err)
	require.Contains(t, msg, "waited 1ms")
}

func TestWaitWithSelectorStateSuffix(t *testing.T) {
	e := newTestExecutor(&fakeController{})
	msg, err := e.wait(context.Background(), "#spinner|hidden", "")
	require.NoError(t, err)
	require.Contains(t, msg, "#spinner")
	require.Contains(t, msg, "hidden")
}

func TestWaitRequiresSelectorOrValue(t *testing.T) {
	e := newTestExecutor(&fakeController{})
	_, err := e.wait(context.Background(), "", "")
	require.ErrorIs(t, err, model.ErrBadArgument)
}

func TestVerifyRequiresSelector(t *testing.T) {
	e := newTestExecutor(&fakeController{})
	_, err := e.verify(context.Background(), "", "")
	require.ErrorIs(t, err, model.ErrBadArgument)
}

func TestVerifyPresenceOnly(t *testing.T) {
	e := newTestExecutor(&fakeController{})
	msg, err := e.verify(context.Background(), "#title", "")
	require.NoError(t, err)
	require.Contains(t, msg, "is present")
}

func TestVerifyTextMatch(t *testing.T) {
	ctrl := &fakeController{textContentFn: func(selector string) (string, error) { return "Welcome back, Alice", nil }}
	e := newTestExecutor(ctrl)
	msg, err := e.verify(context.Background(), "#banner", "Alice")
	require.NoError(t, err)
	require.Contains(t, msg, "contains")
}

func TestVerifyTextMismatch(t *testing.T) {
	ctrl := &fakeController{textContentFn: func(selector string) (string, error) { return "nothing relevant", nil }}
	e := newTestExecutor(ctrl)
	_, err := e.verify(context.Background(), "#banner", "Alice")
	require.ErrorIs(t, err, model.ErrAssertionMismatch)
}

func TestPressNonEnterKeyJustPresses(t *testing.T) {
	var pressed string
	ctrl := &fakeController{pressKeyFn: func(key string) error { pressed = key; return nil }}
	e := newTestExecutor(ctrl)
	msg, err := e.press(context.Background(), "Tab")
	require.NoError(t, err)
	require.Equal(t, "Tab", pressed)
	require.Contains(t, msg, "pressed Tab")
}

func TestPressEnterRequiresKey(t *testing.T) {
	e := newTestExecutor(&fakeController{})
	_, err := e.press(context.Background(), "")
	require.ErrorIs(t, err, model.ErrBadArgument)
}

func TestPressEnterDetectsURLChange(t *testing.T) {
	ctrl := &fakeController{
		urlSeq:     []string{"https://example.com/search", "https://example.com/results"},
		contentSeq: []string{"<html>before</html>", "<html>before</html>"},
	}
	e := newTestExecutor(ctrl)
	msg, err := e.press(context.Background(), "Enter")
	require.NoError(t, err)
	require.Contains(t, msg, "url_changed=true")
}

func TestPressEnterNoChange(t *testing.T) {
	ctrl := &fakeController{
		urlSeq:     []string{"https://example.com/search", "https://example.com/search"},
		contentSeq: []string{"<html>same</html>", "<html>same</html>"},
	}
	e := newTestExecutor(ctrl)
	msg, err := e.press(context.Background(), "Enter")
	require.NoError(t, err)
	require.Equal(t, "pressed Enter, page did not change", msg)
}

func TestPressArmsAndDisarmsDialogHandling(t *testing.T) {
	ctrl := &fakeController{pressKeyFn: func(key string) error { return nil }}
	e := newTestExecutor(ctrl)

	_, err := e.press(context.Background(), "Tab")
	require.NoError(t, err)
	require.Equal(t, 1, ctrl.armDialogCalls)
	require.Equal(t, 1, ctrl.disarmDialogCalls)
}

func TestScrapeToMemoryRequiresCapability(t *testing.T) {
	e := newTestExecutor(&fakeController{})
	_, err := e.scrapeToMemory(context.Background())
	require.ErrorIs(t, err, model.ErrMissingCapability)
}

type fakeIngester struct {
	called bool
	err    error
}

func (f *fakeIngester) IngestCurrentPage(ctx context.Context, url, conversationID string) error {
	f.called = true
	return f.err
}

func TestScrapeToMemorySucceeds(t *testing.T) {
	ctrl := &fakeController{content: "<html>page</html>", currentURL: "https://example.com"}
	ing := &fakeIngester{}
	e := New(ctrl, nil, activitylog.New(zerolog.Nop()), zerolog.Nop(), WithMemoryIngester(ing))
	msg, err := e.scrapeToMemory(context.Background())
	require.NoError(t, err)
	require.True(t, ing.called)
	require.Contains(t, msg, "https://example.com")
}

func TestHandleMFARequiresCapabilities(t *testing.T) {
	e := newTestExecutor(&fakeController{})
	_, err := e.handleMFA(context.Background(), "#otp", "")
	require.ErrorIs(t, err, model.ErrMissingCapability)
}

type fakeQR struct {
	payloads []string
	err      error
}

func (f *fakeQR) DecodeQR(png []byte) ([]string, error) { return f.payloads, f.err }

type fakeTOTP struct{ code string }

func (f *fakeTOTP) Generate(secret string) (string, error) { return f.code, nil }

func TestHandleMFARequiresSelector(t *testing.T) {
	ctrl := &fakeController{}
	e := New(ctrl, nil, activitylog.New(zerolog.Nop()), zerolog.Nop(),
		WithMFA(&fakeQR{}, &fakeTOTP{}))
	_, err := e.handleMFA(context.Background(), "", "")
	require.ErrorIs(t, err, model.ErrBadArgument)
}

func TestHandleMFANoQRFoundOnPage(t *testing.T) {
	ctrl := &fakeController{}
	e := New(ctrl, nil, activitylog.New(zerolog.Nop()), zerolog.Nop(),
		WithMFA(&fakeQR{}, &fakeTOTP{}))
	_, err := e.handleMFA(context.Background(), "#otp", "")
	require.ErrorIs(t, err, model.ErrExecutorNotFound)
}

func TestHandleMFASucceeds(t *testing.T) {
	ctrl := &fakeController{
		countByTextFn: func(text string, exact bool) (int, error) { return 0, nil },
	}
	qr := &fakeQR{payloads: []string{"otpauth://totp/Example:alice@example.com?secret=JBSWY3DPEHPK3PXP&issuer=Example"}}
	e := New(ctrl, nil, activitylog.New(zerolog.Nop()), zerolog.Nop(), WithMFA(qr, &fakeTOTP{code: "123456"}))

	msg, err := e.handleMFA(context.Background(), "#otp", `button[type="submit"]`)
	require.NoError(t, err)
	require.Equal(t, "MFA handled successfully", msg)
}

func TestEvaluateRequiresScript(t *testing.T) {
	e := newTestExecutor(&fakeController{})
	_, err := e.evaluate(context.Background(), "  ")
	require.ErrorIs(t, err, model.ErrBadArgument)
}

func TestEvaluateReturnsStringResult(t *testing.T) {
	ctrl := &fakeController{evaluateFn: func(js string, arg any) (any, error) { return "result text", nil }}
	e := newTestExecutor(ctrl)
	out, err := e.evaluate(context.Background(), "document.title")
	require.NoError(t, err)
	require.Equal(t, "result text", out)
}

func TestEvaluateReturnsJSONForComplexResult(t *testing.T) {
	ctrl := &fakeController{evaluateFn: func(js string, arg any) (any, error) {
		return map[string]any{"a": 1.0}, nil
	}}
	e := newTestExecutor(ctrl)
	out, err := e.evaluate(context.Background(), "({a: 1})")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Equal(t, 1.0, decoded["a"])
}

func TestScreenshotOpHighlightsSelectorWhenGiven(t *testing.T) {
	var highlighted string
	ctrl := &fakeController{
		screenshotHLFn: func(selector string) ([]byte, error) { highlighted = selector; return []byte("png"), nil },
	}
	e := newTestExecutor(ctrl)
	e.screenshotDir = t.TempDir()
	path, err := e.screenshotOp(context.Background(), "#chart")
	require.NoError(t, err)
	require.Equal(t, "#chart", highlighted)
	require.NotEmpty(t, path)
}

func TestDownloadRequiresTriggerSelector(t *testing.T) {
	e := newTestExecutor(&fakeController{})
	_, err := e.download(context.Background(), "", "")
	require.ErrorIs(t, err, model.ErrBadArgument)
}

func TestDownloadRejectsEmptyFile(t *testing.T) {
	ctrl := &fakeController{downloadFn: func(trigger, dest string) (string, int64, error) {
		return "/tmp/x", 0, nil
	}}
	e := newTestExecutor(ctrl)
	_, err := e.download(context.Background(), "#dl", "")
	require.ErrorIs(t, err, model.ErrBrowserError)
}

func TestDownloadSucceeds(t *testing.T) {
	ctrl := &fakeController{downloadFn: func(trigger, dest string) (string, int64, error) {
		return "/tmp/report.csv", 1024, nil
	}}
	e := newTestExecutor(ctrl)
	msg, err := e.download(context.Background(), "#dl", "")
	require.NoError(t, err)
	require.Contains(t, msg, "report.csv")
	require.Contains(t, msg, "1024")
}

func TestExtractTextRequiresOCRCapability(t *testing.T) {
	e := newTestExecutor(&fakeController{})
	_, err := e.extractText(context.Background(), "#label")
	require.ErrorIs(t, err, model.ErrMissingCapability)
}

type fakeOCR struct{ text string }

func (f *fakeOCR) OCR(png []byte) (string, error) { return f.text, nil }

func TestExtractTextSucceeds(t *testing.T) {
	ctrl := &fakeController{elementShotFn: func(selector string) ([]byte, error) { return []byte("png"), nil }}
	e := New(ctrl, nil, activitylog.New(zerolog.Nop()), zerolog.Nop(), WithOCR(&fakeOCR{text: "42.00 USD"}))
	out, err := e.extractText(context.Background(), "#price")
	require.NoError(t, err)
	require.Equal(t, "42.00 USD", out)
}

func TestGetContentReturnsSnapshotText(t *testing.T) {
	ctrl := &fakeController{
		evaluateFn: func(js string, arg any) (any, error) {
			return map[string]any{"bodyText": "hello world"}, nil
		},
	}
	e := newTestExecutorWithObserver(ctrl)
	out, err := e.getContent(context.Background())
	require.NoError(t, err)
	require.Equal(t, "hello world", out)
}

func TestGetFieldsReturnsJSONInventory(t *testing.T) {
	ctrl := &fakeController{
		evaluateFn: func(js string, arg any) (any, error) {
			return map[string]any{
				"inputs": []map[string]any{{"selector": "#email", "label": "Email"}},
			}, nil
		},
	}
	e := newTestExecutorWithObserver(ctrl)
	out, err := e.getFields(context.Background())
	require.NoError(t, err)
	var fields model.FieldInventory
	require.NoError(t, json.Unmarshal([]byte(out), &fields))
	require.Len(t, fields.Inputs, 1)
	require.Equal(t, "#email", fields.Inputs[0].Selector)
}

func TestPerformDispatchesRespondAndDone(t *testing.T) {
	e := newTestExecutor(&fakeController{})

	msg, err := e.perform(context.Background(), model.Step{Operation: model.OpRespond, Value: "here you go"}, "")
	require.NoError(t, err)
	require.Equal(t, "AGENT_RESPONSE: here you go", msg)

	msg, err = e.perform(context.Background(), model.Step{Operation: model.OpDone}, "")
	require.NoError(t, err)
	require.Equal(t, "done", msg)
}

func TestPerformRejectsUnknownOperation(t *testing.T) {
	e := newTestExecutor(&fakeController{})
	_, err := e.perform(context.Background(), model.Step{Operation: model.Operation("teleport")}, "")
	require.ErrorIs(t, err, model.ErrInvalidOperation)
}
