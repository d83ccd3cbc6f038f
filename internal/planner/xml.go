package planner

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"github.com/kkonovalov/webagent-core/internal/model"
)

// interactionBlockPattern and stepBlockPattern mirror AGiXT's
// extract_interaction_block: a DOTALL, case-insensitive search for the
// <interaction> block, tolerant of markdown fences or trailing prose
// around it, falling back to a bare <step> block.
var (
	interactionBlockPattern = regexp.MustCompile(`(?is)<interaction.*?>.*?</interaction>`)
	stepBlockPattern        = regexp.MustCompile(`(?is)<step.*?>.*?</step>`)
)

type xmlInteraction struct {
	XMLName xml.Name `xml:"interaction"`
	Step    xmlStep  `xml:"step"`
}

type xmlStep struct {
	Operation   string    `xml:"operation"`
	Selector    string    `xml:"selector"`
	Value       string    `xml:"value"`
	Description string    `xml:"description"`
	Retry       *xmlRetry `xml:"retry"`
}

type xmlRetry struct {
	MaxAttempts       int    `xml:"max_attempts"`
	AlternateSelector string `xml:"alternate_selector"`
}

// extractAndParse runs spec.md §4.4 steps 3-5: extract the interaction
// block, parse it, and sanitize the selector.
func extractAndParse(raw string) (model.Step, error) {
	block, err := extractInteractionBlock(raw)
	if err != nil {
		return model.Step{}, err
	}

	var doc xmlInteraction
	if err := xml.Unmarshal([]byte(block), &doc); err != nil {
		return model.Step{}, fmt.Errorf("parse xml: %w", err)
	}
	if doc.Step.Operation == "" {
		return model.Step{}, fmt.Errorf("no <step> element found")
	}

	step := model.Step{
		Operation:   model.Operation(strings.ToLower(strings.TrimSpace(doc.Step.Operation))),
		Selector:    sanitizeSelector(doc.Step.Selector),
		Value:       strings.TrimSpace(doc.Step.Value),
		Description: strings.TrimSpace(doc.Step.Description),
	}
	if doc.Step.Retry != nil {
		step.Retry = model.RetryPolicy{
			MaxAttempts:       doc.Step.Retry.MaxAttempts,
			AlternateSelector: sanitizeSelector(doc.Step.Retry.AlternateSelector),
		}
	}
	return step, nil
}

// extractInteractionBlock finds the first <interaction>...</interaction>
// block in response, tolerating a bare <step>...</step> by wrapping it
// (AGiXT's extract_interaction_block).
func extractInteractionBlock(response string) (string, error) {
	if m := interactionBlockPattern.FindString(response); m != "" {
		return ensureXMLDeclaration(strings.TrimSpace(m)), nil
	}
	if m := stepBlockPattern.FindString(response); m != "" {
		return ensureXMLDeclaration(fmt.Sprintf("<interaction>%s</interaction>", strings.TrimSpace(m))), nil
	}
	return "", fmt.Errorf("no <interaction> or <step> block found in response")
}

func ensureXMLDeclaration(block string) string {
	if strings.HasPrefix(block, "<?xml") {
		return block
	}
	return `<?xml version="1.0" encoding="UTF-8"?>` + "\n" + block
}

// sanitizeSelector trims whitespace and strips the extraneous brace
// noise planner output sometimes carries (spec.md §4.4 step 5): a
// trailing "}" not part of "]}", or a leading "{" not part of "{[".
func sanitizeSelector(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "}") && !strings.HasSuffix(s, "]}") {
		s = strings.TrimSuffix(s, "}")
	}
	if strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "{[") {
		s = strings.TrimPrefix(s, "{")
	}
	return strings.TrimSpace(s)
}
