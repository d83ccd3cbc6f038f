// Package executor implements the ActionExecutor component of spec.md
// §4.3: it maps one validated Step onto a browser action with retries,
// before/after screenshots, and activity-log entries. Grounded on the
// teacher's internal/tools/toolbox.go dispatch shape (Invoke switch over
// Tool names -> Result) and on AGiXT's per-operation Python methods for
// the atomic contracts of each operation.
package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kkonovalov/webagent-core/internal/activitylog"
	"github.com/kkonovalov/webagent-core/internal/browser"
	"github.com/kkonovalov/webagent-core/internal/mfa"
	"github.com/kkonovalov/webagent-core/internal/model"
	"github.com/kkonovalov/webagent-core/internal/observer"
)

const retryBackoff = 500 * time.Millisecond

// MemoryIngester is the optional memory-ingest capability spec.md §6.4
// names; nil means scrape_to_memory always fails with ErrMissingCapability.
type MemoryIngester interface {
	IngestCurrentPage(ctx context.Context, url, conversationID string) error
}

// skipSummaryOps are the operations for which ActionExecutor does not
// generate a page-state summary after execution (spec.md §4.3 Contract).
var skipSummaryOps = map[model.Operation]bool{
	model.OpWait: true, model.OpGetContent: true, model.OpGetFields: true,
	model.OpScreenshot: true, model.OpVerify: true, model.OpEvaluate: true,
	model.OpDone: true, model.OpPress: true, model.OpScrapeToMemory: true,
}

// Executor is the ActionExecutor: it owns no state across calls beyond its
// collaborators, all of which are injected.
type Executor struct {
	ctrl     browser.Controller
	observer *observer.Observer

	memory MemoryIngester
	qr     mfa.QRDecoder
	ocr    mfa.OCREngine
	totp   mfa.TOTPGenerator

	sink           activitylog.Sink
	screenshotDir  string
	conversationID string

	logger zerolog.Logger
}

// Option configures optional Executor collaborators.
type Option func(*Executor)

// WithMemoryIngester wires the scrape_to_memory capability.
func WithMemoryIngester(m MemoryIngester) Option { return func(e *Executor) { e.memory = m } }

// WithMFA wires the QR/TOTP capabilities used by handle_mfa.
func WithMFA(qr mfa.QRDecoder, gen mfa.TOTPGenerator) Option {
	return func(e *Executor) { e.qr = qr; e.totp = gen }
}

// WithOCR wires the OCR capability used by extract_text.
func WithOCR(ocr mfa.OCREngine) Option { return func(e *Executor) { e.ocr = ocr } }

// WithScreenshotDir overrides where before/after screenshots are saved.
func WithScreenshotDir(dir string) Option { return func(e *Executor) { e.screenshotDir = dir } }

// WithConversationID sets the id passed through to MemoryIngester.
func WithConversationID(id string) Option { return func(e *Executor) { e.conversationID = id } }

// New builds an Executor bound to ctrl/obs/sink.
func New(ctrl browser.Controller, obs *observer.Observer, sink activitylog.Sink, logger zerolog.Logger, opts ...Option) *Executor {
	e := &Executor{
		ctrl:          ctrl,
		observer:      obs,
		sink:          sink,
		screenshotDir: os.TempDir(),
		logger:        logger.With().Str("component", "executor").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs step against the browser with its retry policy, recording
// before/after screenshots and activity-log entries (spec.md §4.3).
func (e *Executor) Execute(ctx context.Context, activityID string, step model.Step, before model.PageSnapshot) (model.Outcome, error) {
	beforeURL := before.URL
	beforeDigest := before.ContentDigest
	beforeShot := e.captureScreenshot(ctx, "before")

	e.sink.Emit(activityID, "agent", activitylog.SeverityInfo,
		fmt.Sprintf("intent: %s %s", step.Operation, step.Description), nonEmpty(beforeShot))

	attempts := step.Retry.Attempts()
	var lastErr error
	var message string
	for attempt := 1; attempt <= attempts; attempt++ {
		selector := step.Selector
		if attempt > 1 && step.Retry.AlternateSelector != "" {
			selector = step.Retry.AlternateSelector
		}
		msg, err := e.perform(ctx, step, selector)
		if err == nil {
			message = msg
			lastErr = nil
			break
		}
		lastErr = err
		message = msg
		if attempt < attempts {
			e.logger.Debug().Err(err).Int("attempt", attempt).Str("operation", string(step.Operation)).Msg("retrying after failure")
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = attempts
			case <-time.After(retryBackoff):
			}
		}
	}

	afterURL := e.ctrl.CurrentURL()
	afterDigest := beforeDigest
	if html, err := e.ctrl.Content(ctx); err == nil {
		afterDigest = observer.Digest(html)
	}
	afterShot := e.captureScreenshot(ctx, "after")

	pageChanged := afterURL != beforeURL || afterDigest != beforeDigest

	outcome := model.Outcome{
		Status:           model.StatusSuccess,
		Message:          message,
		BeforeURL:        beforeURL,
		AfterURL:         afterURL,
		BeforeScreenshot: beforeShot,
		AfterScreenshot:  afterShot,
		PageChanged:      pageChanged,
	}
	if lastErr != nil {
		outcome.Status = model.StatusFailure
		outcome.Message = lastErr.Error()
	}

	severity := activitylog.SeverityInfo
	if outcome.Status == model.StatusFailure {
		severity = activitylog.SeverityWarning
	}
	summary := outcome.Message
	if !skipSummaryOps[step.Operation] && outcome.Status == model.StatusSuccess {
		summary = fmt.Sprintf("%s (url: %s, changed: %v)", outcome.Message, afterURL, pageChanged)
	}
	e.sink.Emit(activityID, "agent", severity, "outcome: "+summary, nonEmpty(afterShot))

	return outcome, nil
}

func (e *Executor) captureScreenshot(ctx context.Context, tag string) string {
	b, err := e.ctrl.Screenshot(ctx, true)
	if err != nil {
		e.logger.Debug().Err(err).Msg("screenshot capture failed")
		return ""
	}
	return e.captureScreenshotBytes(b, tag)
}

func (e *Executor) captureScreenshotBytes(b []byte, tag string) string {
	path := filepath.Join(e.screenshotDir, fmt.Sprintf("%s-%s.png", tag, uuid.NewString()))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		e.logger.Debug().Err(err).Msg("screenshot write failed")
		return ""
	}
	return path
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
