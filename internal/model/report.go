package model

import "fmt"

// IterationSummary is one line of the FinalReport's per-iteration summary
// list (spec.md §4.1 "Final report").
type IterationSummary struct {
	Iteration int
	Operation Operation
	Selector  string
	Outcome   AttemptOutcome
	Detail    string
}

// FinalReport is InteractionEngine.Run's return value: a concatenation of
// per-iteration summaries prefixed with agent_response_message when set.
type FinalReport struct {
	Task             string
	Termination      TerminationReason
	IterationCount   int
	AgentResponse    string
	IterationReports []IterationSummary
}

// String renders the report the way the engine hands it back to a caller:
// the response message first (if any), then one line per iteration.
func (r FinalReport) String() string {
	out := ""
	if r.AgentResponse != "" {
		out += "AGENT_RESPONSE: " + r.AgentResponse + "\n"
	}
	out += fmt.Sprintf("terminated: %s after %d iteration(s)\n", r.Termination, r.IterationCount)
	for _, s := range r.IterationReports {
		out += fmt.Sprintf("[%d] %s %s -> %s: %s\n", s.Iteration, s.Operation, s.Selector, s.Outcome, s.Detail)
	}
	return out
}
