package engine

import (
	"fmt"
	"strings"

	"github.com/kkonovalov/webagent-core/internal/model"
	"github.com/kkonovalov/webagent-core/internal/planner"
)

const fieldSummaryLimit = 1500

// buildPlanningContext assembles the planner.Context for one iteration
// (spec.md §4.1 step 4): task, iteration counters, current URL, the
// url_changed flag, available selectors/texts, a truncated field
// inventory, the last 5 history lines, and the contextual reminder.
func (e *Engine) buildPlanningContext(state *model.InteractionState, snap model.PageSnapshot, iter int) planner.Context {
	urlChanged := state.LastStepSignature == nil || snap.URL != lastKnownURL(state)

	var lastChanged bool
	if len(state.History) > 0 {
		lastChanged = state.History[len(state.History)-1].PageChanged
	}

	return planner.Context{
		Task:            state.Task,
		Iteration:       iter,
		MaxIterations:   state.MaxIterations,
		CurrentURL:      snap.URL,
		URLChanged:      urlChanged,
		StableSelectors: snap.StableSelectors,
		ClickableTexts:  snap.ClickableTexts,
		FieldSummary:    summarizeFields(snap),
		RecentHistory:   toHistoryLines(state.RecentHistory(model.HistoryContextSize)),
		Reminder:        planner.Reminders(state.RecentHistory(model.HistoryContextSize), lastChanged, snap.URL),
	}
}

// lastKnownURL recovers the URL the previous iteration left the page on;
// the engine otherwise only tracks the content digest across iterations,
// not the URL itself.
func lastKnownURL(state *model.InteractionState) string {
	if len(state.History) == 0 {
		return ""
	}
	return state.History[len(state.History)-1].AfterURL
}

func toHistoryLines(records []model.AttemptRecord) []planner.HistoryLine {
	out := make([]planner.HistoryLine, 0, len(records))
	for _, r := range records {
		out = append(out, planner.HistoryLine{
			Iteration: r.Iteration,
			Operation: r.Signature.Operation,
			Selector:  r.Signature.Selector,
			Value:     r.Signature.Value,
			Outcome:   r.Outcome,
			Detail:    r.Detail,
		})
	}
	return out
}

func summarizeFields(snap model.PageSnapshot) string {
	var b strings.Builder
	writeGroup(&b, "inputs", snap.Fields.Inputs)
	writeGroup(&b, "selects", snap.Fields.Selects)
	writeGroup(&b, "textareas", snap.Fields.Textareas)
	writeGroup(&b, "buttons", snap.Fields.Buttons)
	writeGroup(&b, "links", snap.Fields.Links)
	out := b.String()
	if len(out) > fieldSummaryLimit {
		out = out[:fieldSummaryLimit] + "... [truncated]"
	}
	return out
}

func writeGroup(b *strings.Builder, name string, fields []model.FieldDescriptor) {
	if len(fields) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", name)
	for _, f := range fields {
		fmt.Fprintf(b, "- %s label=%q placeholder=%q type=%q\n", f.Selector, f.Label, f.Placeholder, f.Type)
	}
}
