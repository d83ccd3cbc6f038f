// Package model holds the data types shared by every component of the
// interaction engine: the planned Step, its execution Outcome, the
// PageSnapshot handed to the planner, and the bookkeeping types the engine
// uses to detect stalls, repeats, and termination.
package model

// Operation is the closed set of actions a Step may request. The planner
// validator is the only place new operation strings can enter the system;
// the executor dispatches on this enum exhaustively and never branches on
// raw strings.
type Operation string

const (
	OpClick          Operation = "click"
	OpFill           Operation = "fill"
	OpSelect         Operation = "select"
	OpWait           Operation = "wait"
	OpVerify         Operation = "verify"
	OpPress          Operation = "press"
	OpScrapeToMemory Operation = "scrape_to_memory"
	OpHandleMFA      Operation = "handle_mfa"
	OpGetCookies     Operation = "get_cookies"
	OpSetCookies     Operation = "set_cookies"
	OpGetContent     Operation = "get_content"
	OpGetFields      Operation = "get_fields"
	OpEvaluate       Operation = "evaluate"
	OpScreenshot     Operation = "screenshot"
	OpDownload       Operation = "download"
	OpExtractText    Operation = "extract_text"
	OpRespond        Operation = "respond"
	OpDone           Operation = "done"
)

// validOperations backs Operation.Valid; kept as a map for O(1) lookup.
var validOperations = map[Operation]bool{
	OpClick: true, OpFill: true, OpSelect: true, OpWait: true, OpVerify: true,
	OpPress: true, OpScrapeToMemory: true, OpHandleMFA: true, OpGetCookies: true,
	OpSetCookies: true, OpGetContent: true, OpGetFields: true, OpEvaluate: true,
	OpScreenshot: true, OpDownload: true, OpExtractText: true, OpRespond: true,
	OpDone: true,
}

// Valid reports whether op is one of the known operations.
func (op Operation) Valid() bool {
	return validOperations[op]
}

// selectorlessOps don't need (and may ignore) a selector.
var selectorlessOps = map[Operation]bool{
	OpWait: true, OpScrapeToMemory: true, OpGetCookies: true, OpSetCookies: true,
	OpGetContent: true, OpGetFields: true, OpEvaluate: true, OpScreenshot: true,
	OpRespond: true, OpDone: true, OpPress: true,
}

// RequiresSelector reports whether op requires a stable selector to be
// planner-valid. click is special-cased by the caller (spec.md §4.1 step 5):
// a click with no selector but a non-empty value is allowed (text-based
// click path).
func (op Operation) RequiresSelector() bool {
	return !selectorlessOps[op]
}

// RetryPolicy customizes ActionExecutor's retry behavior for a Step.
type RetryPolicy struct {
	MaxAttempts       int    // >=1; default 1 when zero.
	AlternateSelector string // used from attempt 2 onward, if set.
}

// Attempts returns the effective attempt count, defaulting and clamping to 1.
func (r RetryPolicy) Attempts() int {
	if r.MaxAttempts < 1 {
		return 1
	}
	return r.MaxAttempts
}

// Step is a single planned action, produced by the Planner and validated by
// the engine before execution.
type Step struct {
	Operation   Operation
	Selector    string
	Value       string
	Description string
	Retry       RetryPolicy
}

// Signature returns the (operation, selector, value) tuple used for stall
// and repeat-failure detection.
func (s Step) Signature() StepSignature {
	return StepSignature{Operation: s.Operation, Selector: s.Selector, Value: s.Value}
}

// StepSignature is the comparable tuple used to detect repeated plans.
type StepSignature struct {
	Operation Operation
	Selector  string
	Value     string
}
