// Package engine implements the InteractionEngine component of spec.md
// §4.1: the observe -> plan -> execute -> validate loop, its stall /
// repeat-failure / progress heuristics, and the task-complexity heuristic
// that sizes the iteration budget. Grounded on the teacher's
// internal/agent/orchestrator.go Run loop shape (per-step history, error
// tracking, context cancellation checks) generalized to the Step/Outcome
// vocabulary the rest of this module defines.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kkonovalov/webagent-core/internal/activitylog"
	"github.com/kkonovalov/webagent-core/internal/browser"
	"github.com/kkonovalov/webagent-core/internal/model"
	"github.com/kkonovalov/webagent-core/internal/observer"
	"github.com/kkonovalov/webagent-core/internal/planner"
)

const (
	defaultNavTimeout   = 30 * time.Second
	progressCheckStart  = 25
	progressBreakAfter  = 35
	progressWindow      = 10
	progressMinSuccess  = 0.30
	repeatFailureWindow = 3
	repeatFailureCount  = 2
)

// Executor is the subset of executor.Executor the engine depends on.
type Executor interface {
	Execute(ctx context.Context, activityID string, step model.Step, before model.PageSnapshot) (model.Outcome, error)
}

// Engine is the InteractionEngine: it owns the run loop and its
// termination heuristics, delegating observation, planning, and execution
// to its collaborators.
type Engine struct {
	ctrl     browser.Controller
	observer *observer.Observer
	planner  *planner.Planner
	executor Executor
	sink     activitylog.Sink
	logger   zerolog.Logger
}

// New builds an Engine bound to its collaborators.
func New(ctrl browser.Controller, obs *observer.Observer, p *planner.Planner, exec Executor, sink activitylog.Sink, logger zerolog.Logger) *Engine {
	return &Engine{
		ctrl:     ctrl,
		observer: obs,
		planner:  p,
		executor: exec,
		sink:     sink,
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

// Run drives the full interaction loop for one task against one starting
// URL (spec.md §4.1). It navigates to start_url with the multi-strategy
// wait Controller.Goto implements, then alternates observe/plan/execute
// until one of the termination conditions fires.
func (e *Engine) Run(ctx context.Context, task, startURL string) (model.FinalReport, error) {
	activityID := fmt.Sprintf("run-%d", time.Now().UnixNano())
	maxIterations := EstimateMaxIterations(task)
	state := model.NewInteractionState(task, startURL, activityID, maxIterations)

	e.sink.Emit(activityID, "system", activitylog.SeverityInfo, fmt.Sprintf("starting task %q at %s", task, startURL), nil)

	if err := e.ctrl.Goto(ctx, startURL, defaultNavTimeout); err != nil {
		e.sink.Emit(activityID, "system", activitylog.SeverityError, fmt.Sprintf("initial navigation failed: %v", err), nil)
		return BuildReport(state, model.TerminationFatal), fmt.Errorf("%w: %v", model.ErrNavigationFailed, err)
	}

	termination := model.TerminationIterationCap

	for iter := 1; iter <= state.MaxIterations; iter++ {
		// 1. Budget check.
		if state.ElapsedSeconds() >= float64(state.MaxRuntimeSeconds) {
			e.logger.Warn().Float64("elapsed_seconds", state.ElapsedSeconds()).Msg("runtime budget exceeded")
			termination = model.TerminationBudgetExceeded
			break
		}

		// 2. Browser liveness.
		if e.ctrl.Page() == nil || e.ctrl.Page().IsClosed() {
			e.logger.Error().Msg("browser page is closed")
			termination = model.TerminationBrowserLost
			break
		}

		// 3. Observe.
		before, err := e.observer.Snapshot(ctx)
		if err != nil {
			e.logger.Error().Err(err).Msg("observation failed; treating as fatal")
			termination = model.TerminationFatal
			break
		}

		// 4. Plan.
		pc := e.buildPlanningContext(state, before, iter)
		step, err := e.planner.NextStep(ctx, pc)
		if err != nil {
			e.sink.Emit(activityID, "system", activitylog.SeverityError, fmt.Sprintf("planner failed: %v", err), nil)
			termination = model.TerminationFatal
			break
		}

		// 5. Validate already happened inside Planner.NextStep.

		// 6. Early terminators.
		if step.Operation == model.OpDone {
			state.RecordAttempt(model.AttemptRecord{Iteration: iter, Signature: step.Signature(), Outcome: model.AttemptSuccess, Detail: "done"})
			termination = model.TerminationDone
			break
		}
		if step.Operation == model.OpRespond {
			state.AgentResponseMessage = step.Value
			state.RecordAttempt(model.AttemptRecord{Iteration: iter, Signature: step.Signature(), Outcome: model.AttemptSuccess, Detail: "respond: " + step.Value})
			termination = model.TerminationRespond
			break
		}

		// 7. Stall check.
		sig := step.Signature()
		stalled := e.checkStall(state, sig, before)
		if stalled {
			e.sink.Emit(activityID, "system", activitylog.SeverityStall, fmt.Sprintf("no progress for %d consecutive iterations", state.StalledPlanCount), nil)
			termination = model.TerminationStalled
			break
		}

		// 8. Repeat-failure check.
		if repeatFailureDetected(state.RecentHistory(repeatFailureWindow)) {
			e.sink.Emit(activityID, "system", activitylog.SeverityWarning, "repeated failure on the same step", nil)
			termination = model.TerminationRepeatFailure
			break
		}

		// 9. Progress check.
		if iter > progressCheckStart {
			recent := state.RecentHistory(progressWindow)
			if noProgress(recent) {
				e.logger.Warn().Int("iteration", iter).Msg("low success rate and no page change in recent history")
				if iter > progressBreakAfter {
					termination = model.TerminationStalled
					break
				}
			}
		}

		// 10. Execute.
		outcome, err := e.executor.Execute(ctx, activityID, step, before)
		if err != nil {
			e.logger.Error().Err(err).Msg("executor returned an unrecoverable error")
			termination = model.TerminationFatal
			break
		}

		// 11. Record.
		attemptOutcome := model.AttemptSuccess
		if outcome.Status == model.StatusFailure {
			attemptOutcome = model.AttemptFailure
		}
		state.RecordAttempt(model.AttemptRecord{
			Iteration:   iter,
			Signature:   sig,
			Outcome:     attemptOutcome,
			Detail:      outcome.Message,
			AfterURL:    outcome.AfterURL,
			PageChanged: outcome.PageChanged,
		})

		html, err := e.ctrl.Content(ctx)
		if err == nil {
			state.LastContentDigest = observer.Digest(html)
		}
		state.LastStepSignature = &sig

		// 12. Continue.
	}

	e.sink.Emit(activityID, "system", activitylog.SeverityInfo, fmt.Sprintf("run terminated: %s", termination), nil)
	return BuildReport(state, termination), nil
}

// checkStall implements spec.md §4.1 step 7: a step is "no progress" when
// its signature repeats the last one, the page's content and URL are
// unchanged, and the previous attempt neither changed the page nor
// succeeded. It updates state.StalledPlanCount and returns whether the
// per-operation threshold was exceeded.
func (e *Engine) checkStall(state *model.InteractionState, sig model.StepSignature, before model.PageSnapshot) bool {
	sameSignature := state.LastStepSignature != nil && *state.LastStepSignature == sig
	sameContent := state.LastContentDigest != "" && state.LastContentDigest == before.ContentDigest
	sameURL := true
	previousSucceeded := false
	previousChangedPage := false
	if len(state.History) > 0 {
		last := state.History[len(state.History)-1]
		previousSucceeded = last.Outcome == model.AttemptSuccess
		previousChangedPage = last.PageChanged
		sameURL = last.AfterURL == before.URL
	}

	if sameSignature && sameContent && sameURL && !previousChangedPage && !previousSucceeded {
		state.StalledPlanCount++
	} else {
		state.StalledPlanCount = 0
	}

	return state.StalledPlanCount > model.StallThresholdFor(sig.Operation)
}

// repeatFailureDetected implements spec.md §4.1 step 8: within the
// trailing window, at least two failures sharing an (operation, selector,
// value) or (operation, selector, *) signature.
func repeatFailureDetected(recent []model.AttemptRecord) bool {
	counts := make(map[model.StepSignature]int)
	looseCounts := make(map[[2]string]int)
	for _, r := range recent {
		if r.Outcome != model.AttemptFailure && r.Outcome != model.AttemptException {
			continue
		}
		counts[r.Signature]++
		loose := [2]string{string(r.Signature.Operation), r.Signature.Selector}
		looseCounts[loose]++
	}
	for _, n := range counts {
		if n >= repeatFailureCount {
			return true
		}
	}
	for _, n := range looseCounts {
		if n >= repeatFailureCount {
			return true
		}
	}
	return false
}

// noProgress implements spec.md §4.1 step 9: success rate below 30% over
// the window and no entry with PageChanged set. PageChanged is true for a
// URL change or a content-digest change, so a content-only change also
// counts as movement.
func noProgress(recent []model.AttemptRecord) bool {
	if len(recent) == 0 {
		return false
	}
	successes := 0
	urlChanged := false
	for _, r := range recent {
		if r.Outcome == model.AttemptSuccess {
			successes++
		}
		if r.PageChanged {
			urlChanged = true
		}
	}
	rate := float64(successes) / float64(len(recent))
	return rate < progressMinSuccess && !urlChanged
}
