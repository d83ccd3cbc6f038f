// Package observer implements the PageObserver component of spec.md §4.2:
// it extracts an immutable PageSnapshot (stable selectors, clickable texts,
// field inventory, content digest) from the current page for the planner.
// Grounded on the teacher's internal/snapshot package (CDP/JS extraction
// shape) and AGiXT's is_valid_selector/content-digest conventions.
package observer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kkonovalov/webagent-core/internal/browser"
	"github.com/kkonovalov/webagent-core/internal/model"
)

const (
	defaultObserveTimeout = 30 * time.Second
	maxContentTextRunes   = 8000
	maxClickableTexts     = 60
	maxFieldsPerKind      = 40
)

// Observer extracts PageSnapshots from a browser.Controller.
type Observer struct {
	ctrl   browser.Controller
	logger zerolog.Logger
}

// New builds an Observer bound to ctrl.
func New(ctrl browser.Controller, logger zerolog.Logger) *Observer {
	return &Observer{ctrl: ctrl, logger: logger.With().Str("component", "observer").Logger()}
}

// rawExtraction is the shape the page-side JS returns; re-marshaled from
// playwright's interface{} result into this typed struct.
type rawExtraction struct {
	BodyText       string          `json:"bodyText"`
	ClickableTexts []string        `json:"clickableTexts"`
	Inputs         []rawField      `json:"inputs"`
	Selects        []rawField      `json:"selects"`
	Textareas      []rawField      `json:"textareas"`
	Buttons        []rawField `json:"buttons"`
	Links          []rawField `json:"links"`
	Tables         [][]string `json:"tables"`
}

type rawField struct {
	Selector    string `json:"selector"`
	Label       string `json:"label"`
	Placeholder string `json:"placeholder"`
	Type        string `json:"type"`
}

// Snapshot extracts the current PageSnapshot under a 30s deadline derived
// from ctx. The Controller checks that context before each call but does
// not interrupt a call already in progress, so a page call that hangs is
// not cut short by the deadline.
func (o *Observer) Snapshot(ctx context.Context) (model.PageSnapshot, error) {
	obsCtx, cancel := context.WithTimeout(ctx, defaultObserveTimeout)
	defer cancel()

	url := o.ctrl.CurrentURL()

	html, err := o.ctrl.Content(obsCtx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("unable to capture raw page HTML for digest")
	}
	digest := contentDigest(html)

	result, err := o.ctrl.Evaluate(obsCtx, extractionScript, nil)
	if err != nil {
		return model.PageSnapshot{}, fmt.Errorf("observer: extraction script failed: %w", err)
	}

	raw, err := decodeExtraction(result)
	if err != nil {
		o.logger.Warn().Err(err).Msg("could not parse extraction result; returning partial snapshot")
		return model.PageSnapshot{
			URL:           url,
			ContentDigest: digest,
		}, nil
	}

	fields := model.FieldInventory{
		Inputs:    toDescriptors(raw.Inputs, maxFieldsPerKind),
		Selects:   toDescriptors(raw.Selects, maxFieldsPerKind),
		Textareas: toDescriptors(raw.Textareas, maxFieldsPerKind),
		Buttons:   toDescriptors(raw.Buttons, maxFieldsPerKind),
		Links:     toDescriptors(raw.Links, maxFieldsPerKind),
		Tables:    raw.Tables,
	}

	allSelectors := make([]string, 0, 5*maxFieldsPerKind)
	for _, group := range [][]rawField{raw.Inputs, raw.Selects, raw.Textareas, raw.Buttons, raw.Links} {
		for _, f := range group {
			allSelectors = append(allSelectors, f.Selector)
		}
	}

	return model.PageSnapshot{
		URL:             url,
		ContentText:     truncateRunes(raw.BodyText, maxContentTextRunes),
		ContentDigest:   digest,
		StableSelectors: FilterValidSelectors(allSelectors),
		ClickableTexts:  truncateStrings(raw.ClickableTexts, maxClickableTexts),
		Fields:          fields,
	}, nil
}

func contentDigest(html string) string {
	return Digest(html)
}

// Digest returns the hex MD5 digest of raw content (spec.md §4.2: "any
// 128-bit hash such as MD5 is sufficient - non-cryptographic purpose").
// Exported so ActionExecutor can compute before/after digests without
// re-running the full extraction script.
func Digest(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

func decodeExtraction(result any) (rawExtraction, error) {
	var out rawExtraction
	buf, err := json.Marshal(result)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(buf, &out); err != nil {
		return out, err
	}
	return out, nil
}

func toDescriptors(fields []rawField, limit int) []model.FieldDescriptor {
	if len(fields) > limit {
		fields = fields[:limit]
	}
	out := make([]model.FieldDescriptor, 0, len(fields))
	for _, f := range fields {
		out = append(out, model.FieldDescriptor{
			Selector:    f.Selector,
			Label:       f.Label,
			Placeholder: f.Placeholder,
			Type:        f.Type,
		})
	}
	return out
}

func truncateRunes(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max])
}

func truncateStrings(items []string, max int) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, max)
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" || len(it) <= 2 || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
		if len(out) >= max {
			break
		}
	}
	return out
}
