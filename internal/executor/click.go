package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kkonovalov/webagent-core/internal/model"
)

const clickTimeout = 30 * time.Second

// authSynonyms are well-known auth-flow button labels. When the exact,
// partial and flexible text matches all fail, each synonym that appears in
// the lowercased value is tried, in order (spec.md §4.3 click).
var authSynonyms = []string{
	"log in", "login", "sign in", "signin", "sign up", "signup",
	"continue", "submit", "next", "get started",
}

// click implements spec.md §4.3's click operation: text-based resolution
// ladder when value is set, selector click with a force fallback otherwise.
func (e *Executor) click(ctx context.Context, step model.Step, selector string) (string, error) {
	_ = e.ctrl.ArmDialog(ctx, true, "")
	defer func() { _ = e.ctrl.DisarmDialog(ctx) }()

	value := strings.TrimSpace(step.Value)
	if value != "" {
		if msg, err := e.clickByTextLadder(ctx, value); err == nil {
			return msg, nil
		}
	}
	if selector == "" {
		return "", fmt.Errorf("%w: click requires a selector or a resolvable text value", model.ErrBadArgument)
	}
	if err := e.ctrl.Click(ctx, selector, clickTimeout, false); err != nil {
		if err := e.ctrl.Click(ctx, selector, clickTimeout, true); err != nil {
			return "", fmt.Errorf("%w: click %s: %v", model.ErrExecutorNotFound, selector, err)
		}
	}
	e.waitSettleAfterClick(ctx)
	return fmt.Sprintf("clicked selector %s", selector), nil
}

func (e *Executor) clickByTextLadder(ctx context.Context, value string) (string, error) {
	if n, err := e.ctrl.CountByText(ctx, value, true); err == nil && n == 1 {
		if err := e.ctrl.ClickByText(ctx, value, true, clickTimeout); err == nil {
			e.waitSettleAfterClick(ctx)
			return fmt.Sprintf("clicked exact text %q", value), nil
		}
	}
	if n, err := e.ctrl.CountByText(ctx, value, false); err == nil && n == 1 {
		if err := e.ctrl.ClickByText(ctx, value, false, clickTimeout); err == nil {
			e.waitSettleAfterClick(ctx)
			return fmt.Sprintf("clicked partial text %q", value), nil
		}
	}
	if msg, ok := e.clickByFlexibleVariation(ctx, value); ok {
		return msg, nil
	}
	lowered := strings.ToLower(value)
	for _, syn := range authSynonyms {
		if !strings.Contains(lowered, syn) {
			continue
		}
		if n, err := e.ctrl.CountByText(ctx, syn, false); err == nil && n >= 1 {
			if err := e.ctrl.ClickByText(ctx, syn, false, clickTimeout); err == nil {
				e.waitSettleAfterClick(ctx)
				return fmt.Sprintf("clicked auth synonym %q for %q", syn, value), nil
			}
		}
	}
	return "", fmt.Errorf("%w: no unique text match for %q", model.ErrExecutorNotFound, value)
}

// textVariations builds the lowercase, no-space, hyphenated, and
// underscored spellings of value that a case-sensitive exact/partial match
// would miss (e.g. "Sign Up" vs. "sign-up" or "signup").
func textVariations(value string) []string {
	lower := strings.ToLower(value)
	noSpace := strings.ReplaceAll(lower, " ", "")
	hyphenated := strings.ReplaceAll(lower, " ", "-")
	underscored := strings.ReplaceAll(lower, " ", "_")
	variations := []string{lower}
	for _, v := range []string{noSpace, hyphenated, underscored} {
		if v != lower {
			variations = append(variations, v)
		}
	}
	return variations
}

// clickByFlexibleVariation is the exact/partial ladder's fallback rung: it
// tries case-insensitive spelling variations of value (no-space, hyphenated,
// underscored) before giving up on text resolution entirely. Unlike the
// exact/partial rungs it does not require a unique match - it takes the
// first visible match, since by this point any match at all is a useful
// signal.
func (e *Executor) clickByFlexibleVariation(ctx context.Context, value string) (string, bool) {
	for _, variation := range textVariations(value) {
		n, err := e.ctrl.CountByText(ctx, variation, false)
		if err != nil || n == 0 {
			continue
		}
		if err := e.ctrl.ClickByText(ctx, variation, false, clickTimeout); err != nil {
			continue
		}
		e.waitSettleAfterClick(ctx)
		return fmt.Sprintf("clicked flexible text match %q (searched for %q)", variation, value), true
	}
	return "", false
}

// waitSettleAfterClick mirrors spec.md §4.3: wait up to 5s networkidle,
// else 10s load, else 2s domcontentloaded. Each stage is best-effort.
func (e *Executor) waitSettleAfterClick(ctx context.Context) {
	if e.ctrl.WaitForLoadState(ctx, "networkidle", 5*time.Second) == nil {
		return
	}
	if e.ctrl.WaitForLoadState(ctx, "load", 10*time.Second) == nil {
		return
	}
	_ = e.ctrl.WaitForLoadState(ctx, "domcontentloaded", 2*time.Second)
}
