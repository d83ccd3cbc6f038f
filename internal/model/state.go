package model

import "time"

// TerminationReason names why a run stopped. A run terminates on exactly
// one of these (spec.md §3 invariants).
type TerminationReason string

const (
	TerminationDone           TerminationReason = "done"
	TerminationRespond        TerminationReason = "respond"
	TerminationStalled        TerminationReason = "stalled"
	TerminationRepeatFailure  TerminationReason = "repeat_failure"
	TerminationBudgetExceeded TerminationReason = "budget_exceeded"
	TerminationIterationCap   TerminationReason = "iteration_cap"
	TerminationFatal          TerminationReason = "fatal"
	TerminationBrowserLost    TerminationReason = "browser_lost"
)

const (
	// DefaultMaxIterations is the floor enforced regardless of the
	// complexity heuristic's output (spec.md §4.1, §9 open question: the
	// source computes max(estimated, 50), so the "complex=35" branch is
	// effectively dead — preserved as-is here).
	DefaultMaxIterations = 50
	// DefaultMaxRuntimeSeconds is the default wall-clock budget.
	DefaultMaxRuntimeSeconds = 300
	// DefaultStallThreshold is the consecutive-no-change threshold.
	DefaultStallThreshold = 5
	// ExtendedStallTolerance is added to DefaultStallThreshold for
	// operations that are commonly non-state-changing (spec.md §4.1 step 7).
	ExtendedStallTolerance = 3
	// HistoryContextSize is how many recent AttemptRecords are kept for
	// the planner's prompt context.
	HistoryContextSize = 5
	// HistoryRetainSize is how many AttemptRecords the bounded deque keeps
	// in memory (spec.md §3); only the last HistoryContextSize of them
	// reach the prompt.
	HistoryRetainSize = 10
)

// extendedToleranceOps get threshold+3 instead of threshold (spec.md §4.1
// step 7). Note `press` is deliberately absent — spec.md §9 flags this as
// a known source quirk (commonly non-state-changing when filling hasn't
// happened, yet excluded) and instructs implementations to preserve it.
var extendedToleranceOps = map[Operation]bool{
	OpWait: true, OpGetContent: true, OpGetFields: true, OpScrapeToMemory: true,
	OpGetCookies: true, OpScreenshot: true, OpDownload: true,
}

// StallThresholdFor returns the effective stall threshold for op.
func StallThresholdFor(op Operation) int {
	if extendedToleranceOps[op] {
		return DefaultStallThreshold + ExtendedStallTolerance
	}
	return DefaultStallThreshold
}

// InteractionState is the per-run mutable state owned by InteractionEngine.
type InteractionState struct {
	Task       string
	StartURL   string
	ActivityID string

	MaxIterations     int
	MaxRuntimeSeconds int

	History             []AttemptRecord
	DroppedHistoryCount int
	LastStepSignature   *StepSignature
	StalledPlanCount    int
	LastContentDigest   string

	AgentResponseMessage string

	StartMonotonic time.Time
	IterationCount int
}

// NewInteractionState builds a fresh state for one run.
func NewInteractionState(task, startURL, activityID string, maxIterations int) *InteractionState {
	if maxIterations < DefaultMaxIterations {
		maxIterations = DefaultMaxIterations
	}
	return &InteractionState{
		Task:              task,
		StartURL:          startURL,
		ActivityID:        activityID,
		MaxIterations:     maxIterations,
		MaxRuntimeSeconds: DefaultMaxRuntimeSeconds,
		History:           make([]AttemptRecord, 0, HistoryRetainSize),
		StartMonotonic:    time.Now(),
	}
}

// RecordAttempt appends one AttemptRecord, trimming the retained window to
// HistoryRetainSize while keeping IterationCount consistent with the total
// number of iterations run (spec.md §3 invariant: iteration_count equals
// len(history) plus any dropped-for-size entries).
func (s *InteractionState) RecordAttempt(rec AttemptRecord) {
	s.IterationCount++
	s.History = append(s.History, rec)
	if len(s.History) > HistoryRetainSize {
		drop := len(s.History) - HistoryRetainSize
		s.History = s.History[drop:]
		s.DroppedHistoryCount += drop
	}
}

// RecentHistory returns at most the last n AttemptRecords.
func (s *InteractionState) RecentHistory(n int) []AttemptRecord {
	if len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// ElapsedSeconds returns the wall-clock elapsed time since the run started.
func (s *InteractionState) ElapsedSeconds() float64 {
	return time.Since(s.StartMonotonic).Seconds()
}
