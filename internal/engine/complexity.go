package engine

import "strings"

// complexityKeywords backs the task-complexity heuristic spec.md §4.1
// describes, ported from AGiXT's estimate_task_complexity: a fixed
// case-insensitive keyword set counted by substring occurrence.
var complexityKeywords = []string{
	"register", "registration", "sign up", "signup", "create account",
	"login", "log in", "authentication", "verify", "verification",
	"multi-step", "workflow", "form", "multiple pages", "navigation",
	"chat", "message", "conversation", "upload", "download",
	"search and", "find and", "extract and", "scrape and",
}

// EstimateMaxIterations scores task against complexityKeywords plus a
// word-count bump, then maps the score onto an iteration budget. The
// source always applies max(computed, 50), so the score>=2 (35) branch
// can never win against the floor - preserved here as-is (spec.md §9).
func EstimateMaxIterations(task string) int {
	lower := strings.ToLower(task)
	score := 0
	for _, kw := range complexityKeywords {
		score += strings.Count(lower, kw)
	}

	words := len(strings.Fields(task))
	switch {
	case words > 20:
		score += 2
	case words > 10:
		score += 1
	}

	var estimated int
	switch {
	case score >= 4:
		estimated = 50
	case score >= 2:
		estimated = 35
	default:
		estimated = 25
	}

	if estimated < 50 {
		estimated = 50
	}
	return estimated
}
