package engine

import "github.com/kkonovalov/webagent-core/internal/model"

// BuildReport assembles the FinalReport spec.md §4.1 describes: a
// concatenation of per-iteration summaries, prefixed with
// agent_response_message when present.
func BuildReport(state *model.InteractionState, termination model.TerminationReason) model.FinalReport {
	summaries := make([]model.IterationSummary, 0, len(state.History))
	for _, rec := range state.History {
		summaries = append(summaries, model.IterationSummary{
			Iteration: rec.Iteration,
			Operation: rec.Signature.Operation,
			Selector:  rec.Signature.Selector,
			Outcome:   rec.Outcome,
			Detail:    rec.Detail,
		})
	}
	return model.FinalReport{
		Task:             state.Task,
		Termination:      termination,
		IterationCount:   state.IterationCount,
		AgentResponse:    state.AgentResponseMessage,
		IterationReports: summaries,
	}
}
