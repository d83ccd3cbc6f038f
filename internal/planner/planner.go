// Package planner implements the Planner component of spec.md §4.4: one
// LLM call per iteration, a hard timeout enforced locally, XML extraction
// and validation, and retry-with-corrective-prompt up to three attempts.
// Grounded on the teacher's internal/agent/planner.go (prompt assembly,
// JSON-extraction retry shape — generalized here to XML per spec.md §6.6)
// and AGiXT's extract_interaction_block for the extraction tolerance
// rules.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kkonovalov/webagent-core/internal/llm"
	"github.com/kkonovalov/webagent-core/internal/model"
	"github.com/kkonovalov/webagent-core/internal/observer"
)

const (
	planningTimeout = 90 * time.Second
	maxAttempts     = 3
	timeoutBackoff  = 3 * time.Second
)

// HistoryLine is one recent-history entry for the prompt; the engine
// fills its fields and buildPrompt renders it as one line.
type HistoryLine struct {
	Iteration int
	Operation model.Operation
	Selector  string
	Value     string
	Outcome   model.AttemptOutcome
	Detail    string
}

// Context is everything the engine hands the planner for one iteration
// (spec.md §4.1 step 4).
type Context struct {
	Task          string
	Iteration     int
	MaxIterations int
	CurrentURL    string
	URLChanged    bool

	StableSelectors []string
	ClickableTexts  []string
	FieldSummary    string // truncated ~1500 chars, built by the engine

	RecentHistory []HistoryLine
	Reminder      string // computed by the engine; see Reminders()
}

// Planner is the spec.md §4.4 component.
type Planner struct {
	llm    llm.Client
	logger zerolog.Logger
}

// New builds a Planner bound to an llm.Client.
func New(client llm.Client, logger zerolog.Logger) *Planner {
	return &Planner{llm: client, logger: logger.With().Str("component", "planner").Logger()}
}

// NextStep runs the full Execution sequence of spec.md §4.4: build
// prompt, call the LLM under a hard timeout, extract + parse + validate,
// retrying with a corrective prompt up to maxAttempts total.
func (p *Planner) NextStep(ctx context.Context, pc Context) (model.Step, error) {
	var correctivePrefix string
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		prompt := buildPrompt(pc, correctivePrefix)

		raw, err := p.callWithTimeout(ctx, prompt)
		if err != nil {
			if err == errPlanningTimeout {
				lastErr = fmt.Errorf("%w: planner call exceeded %s", model.ErrPlannerTimeout, planningTimeout)
				p.logger.Warn().Int("attempt", attempt).Msg("planner call timed out; worker abandoned")
				if attempt < maxAttempts {
					select {
					case <-ctx.Done():
						return model.Step{}, ctx.Err()
					case <-time.After(timeoutBackoff):
					}
					continue
				}
				return model.Step{}, lastErr
			}
			return model.Step{}, fmt.Errorf("%w: llm call failed: %v", model.ErrPlannerMalformed, err)
		}

		step, parseErr := extractAndParse(raw)
		if parseErr != nil {
			lastErr = fmt.Errorf("%w: %v", model.ErrPlannerMalformed, parseErr)
			correctivePrefix = correctivePromptPrefix(parseErr.Error())
			p.logger.Debug().Int("attempt", attempt).Err(parseErr).Msg("planner response malformed; retrying")
			continue
		}

		if !step.Operation.Valid() {
			lastErr = fmt.Errorf("%w: %q", model.ErrInvalidOperation, step.Operation)
			correctivePrefix = correctivePromptPrefix(lastErr.Error())
			continue
		}

		// A click with no selector is allowed only when it carries a
		// text value (spec.md §4.1 step 5's text-based click exception).
		textClickException := step.Operation == model.OpClick && step.Selector == "" && step.Value != ""
		if step.Operation.RequiresSelector() && step.Selector == "" && !textClickException {
			lastErr = fmt.Errorf("%w: %s requires a selector", model.ErrPlannerMalformed, step.Operation)
			correctivePrefix = correctivePromptPrefix(lastErr.Error())
			continue
		}
		if step.Selector != "" && !observer.IsValidSelector(step.Selector) && !textClickException {
			lastErr = fmt.Errorf("%w: selector %q fails the stability rule", model.ErrPlannerMalformed, step.Selector)
			correctivePrefix = correctivePromptPrefix(lastErr.Error())
			continue
		}

		return step, nil
	}

	return model.Step{}, lastErr
}

var errPlanningTimeout = fmt.Errorf("planner: call timed out")

// callWithTimeout runs the LLM call on a worker goroutine and abandons it
// on timeout since the remote call cannot be cancelled (spec.md §5).
func (p *Planner) callWithTimeout(ctx context.Context, prompt string) (string, error) {
	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := p.llm.Prompt(ctx, prompt)
		ch <- result{text, err}
	}()

	select {
	case r := <-ch:
		return r.text, r.err
	case <-time.After(planningTimeout):
		return "", errPlanningTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
