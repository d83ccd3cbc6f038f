package model

import "errors"

// Sentinel errors for the taxonomy in spec.md §7. Components wrap these
// with fmt.Errorf("%w: ...", ErrX) so callers can still errors.Is against
// the sentinel after context is added.
var (
	ErrNavigationFailed  = errors.New("navigation_failed")
	ErrBrowserClosed     = errors.New("browser_closed")
	ErrExecutorTimeout   = errors.New("executor_timeout")
	ErrExecutorNotFound  = errors.New("executor_not_found")
	ErrNotEnabled        = errors.New("executor_not_enabled")
	ErrAssertionMismatch = errors.New("executor_assertion_mismatch")
	ErrMissingCapability = errors.New("executor_missing_capability")
	ErrBadArgument       = errors.New("executor_bad_argument")
	ErrBrowserError      = errors.New("executor_browser_error")

	ErrPlannerMalformed = errors.New("planner_malformed")
	ErrPlannerTimeout   = errors.New("planner_timeout")
	ErrInvalidOperation = errors.New("planner_invalid_operation")
)
