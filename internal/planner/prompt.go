package planner

import (
	"fmt"
	"strings"

	"github.com/kkonovalov/webagent-core/internal/model"
)

const schemaReminder = `Respond with exactly one planned step, and nothing else, wrapped as:
<answer>
<?xml version="1.0" encoding="UTF-8"?>
<interaction>
  <step>
    <operation>one of: click, fill, select, wait, verify, press, scrape_to_memory, handle_mfa, get_cookies, set_cookies, get_content, get_fields, evaluate, screenshot, download, extract_text, respond, done</operation>
    <selector>a stable CSS selector (#id or an attribute bracket on id/name/data-testid/aria-label/placeholder/type/href/role) or empty</selector>
    <value>text to type, a key name, a duration in ms, a script, cookie data, or a response message</value>
    <description>one line rationale</description>
    <retry>
      <max_attempts>1</max_attempts>
      <alternate_selector></alternate_selector>
    </retry>
  </step>
</interaction>
</answer>`

// buildPrompt assembles the planning prompt spec.md §4.4 step 1
// describes. correctivePrefix is empty on the first attempt and holds
// the previous parse error plus a schema restatement on retries.
func buildPrompt(pc Context, correctivePrefix string) string {
	var b strings.Builder
	if correctivePrefix != "" {
		b.WriteString(correctivePrefix)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Task: %s\n", pc.Task)
	fmt.Fprintf(&b, "Iteration: %d of at most %d\n", pc.Iteration, pc.MaxIterations)
	fmt.Fprintf(&b, "Current URL: %s (changed since last iteration: %v)\n\n", pc.CurrentURL, pc.URLChanged)

	b.WriteString("Stable selectors available on this page:\n")
	if len(pc.StableSelectors) == 0 {
		b.WriteString("(none)\n")
	}
	for _, sel := range pc.StableSelectors {
		fmt.Fprintf(&b, "- %s\n", sel)
	}

	b.WriteString("\nClickable texts available on this page:\n")
	if len(pc.ClickableTexts) == 0 {
		b.WriteString("(none)\n")
	}
	for _, txt := range pc.ClickableTexts {
		fmt.Fprintf(&b, "- %q\n", txt)
	}

	if pc.FieldSummary != "" {
		b.WriteString("\nField inventory (truncated):\n")
		b.WriteString(pc.FieldSummary)
		b.WriteString("\n")
	}

	b.WriteString("\nRecent history:\n")
	if len(pc.RecentHistory) == 0 {
		b.WriteString("(none yet)\n")
	}
	for _, h := range pc.RecentHistory {
		fmt.Fprintf(&b, "- [iter %d] %s selector=%q value=%q -> %s: %s\n",
			h.Iteration, h.Operation, h.Selector, h.Value, h.Outcome, h.Detail)
	}

	if pc.Reminder != "" {
		fmt.Fprintf(&b, "\n%s\n", pc.Reminder)
	}

	b.WriteString("\n")
	b.WriteString(schemaReminder)
	return b.String()
}

func correctivePromptPrefix(previousError string) string {
	return fmt.Sprintf("Your previous response could not be used: %s\nRestate your answer following the exact XML schema below.", previousError)
}

// Reminders computes the contextual reminder spec.md §4.4 describes, from
// the run's recent history and whether the most recent step changed the
// page. The engine calls this once per iteration and threads the result
// into Context.Reminder.
func Reminders(recent []model.AttemptRecord, lastPageChanged bool, currentURL string) string {
	if len(recent) == 0 {
		return ""
	}
	last := recent[len(recent)-1]

	switch {
	case last.Outcome == model.AttemptSuccess && last.Signature.Operation == model.OpFill:
		if !recentIncludesSuccessfulEnter(recent, 2) {
			return "REMINDER: you just filled a field. You must press Enter (or click the submit control) before taking any other action."
		}

	case last.Outcome == model.AttemptSuccess && last.Signature.Operation == model.OpScrapeToMemory:
		if looksLikeSearchResults(currentURL) {
			return "REMINDER: this looks like a search-results page. Click into a specific result before responding."
		}
		return "REMINDER: you already scraped this page. Do not scrape_to_memory again - respond, click a link, or mark done."

	case last.Outcome == model.AttemptSuccess && last.Signature.Operation == model.OpPress && strings.EqualFold(last.Signature.Value, "Enter"):
		if lastPageChanged {
			return "The page changed after pressing Enter. Do not press Enter again - continue with the next logical step."
		}
		if n := consecutiveEnterPresses(recent); n >= 2 {
			return fmt.Sprintf("REMINDER: you have pressed Enter %d times in a row with no page change. Try a different action.", n)
		}
	}
	return ""
}

func recentIncludesSuccessfulEnter(recent []model.AttemptRecord, lastN int) bool {
	start := len(recent) - lastN
	if start < 0 {
		start = 0
	}
	for _, r := range recent[start:] {
		if r.Outcome == model.AttemptSuccess && r.Signature.Operation == model.OpPress && strings.EqualFold(r.Signature.Value, "Enter") {
			return true
		}
	}
	return false
}

func consecutiveEnterPresses(recent []model.AttemptRecord) int {
	count := 0
	for i := len(recent) - 1; i >= 0; i-- {
		r := recent[i]
		if r.Outcome == model.AttemptSuccess && r.Signature.Operation == model.OpPress && strings.EqualFold(r.Signature.Value, "Enter") {
			count++
			continue
		}
		break
	}
	return count
}

func looksLikeSearchResults(url string) bool {
	lower := strings.ToLower(url)
	for _, hint := range []string{"search", "?q=", "&q=", "results"} {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
