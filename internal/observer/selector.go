package observer

import "strings"

// stableAttributes are the attributes considered durable across a page's
// lifecycle, ported from AGiXT's is_valid_selector.
var stableAttributes = []string{
	"id", "name", "data-testid", "aria-label", "placeholder", "type", "href", "role",
}

// positionPseudoClasses reject a selector even when it also carries a
// stable attribute, because the position component is what actually breaks
// on re-render.
var positionPseudoClasses = []string{":nth-child", ":first-child", ":last-child"}

// IsValidSelector reports whether selector is likely to survive a
// re-render: no class selectors, no CSS combinators, no position-based
// pseudo-classes, and either a leading "#id" or one of stableAttributes
// referenced in an attribute bracket (spec.md §4.2).
func IsValidSelector(selector string) bool {
	sel := strings.TrimSpace(selector)
	if sel == "" {
		return false
	}
	if strings.HasPrefix(sel, ".") {
		return false
	}
	for _, combinator := range []string{" > ", " + ", " ~ ", ":nth-child"} {
		if strings.Contains(sel, combinator) {
			return false
		}
	}

	hasStable := strings.HasPrefix(sel, "#")
	if !hasStable {
		for _, attr := range stableAttributes {
			if strings.Contains(sel, attr+"=") {
				hasStable = true
				break
			}
		}
	}
	if !hasStable {
		return false
	}
	for _, p := range positionPseudoClasses {
		if strings.Contains(sel, p) {
			return false
		}
	}
	return true
}

// FilterValidSelectors returns the subset of selectors that pass
// IsValidSelector, preserving order and de-duplicating.
func FilterValidSelectors(selectors []string) []string {
	seen := make(map[string]bool, len(selectors))
	out := make([]string, 0, len(selectors))
	for _, sel := range selectors {
		if !IsValidSelector(sel) {
			continue
		}
		if seen[sel] {
			continue
		}
		seen[sel] = true
		out = append(out, sel)
	}
	return out
}
