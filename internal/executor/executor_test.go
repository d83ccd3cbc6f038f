package executor

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kkonovalov/webagent-core/internal/activitylog"
	"github.com/kkonovalov/webagent-core/internal/model"
	"github.com/kkonovalov/webagent-core/internal/observer"
)

func TestExecuteSucceedsOnFirstAttempt(t *testing.T) {
	ctrl := &fakeController{currentURL: "https://example.com/after", content: "<html>after</html>"}
	sink := activitylog.New(zerolog.Nop())
	e := New(ctrl, nil, sink, zerolog.Nop())

	step := model.Step{Operation: model.OpClick, Selector: "#go"}
	before := model.PageSnapshot{URL: "https://example.com/before", ContentDigest: "digest-before"}

	outcome, err := e.Execute(context.Background(), "run-1", step, before)
	require.NoError(t, err)
	require.Equal(t, model.StatusSuccess, outcome.Status)
	require.True(t, outcome.PageChanged, "url and digest both differ from before")

	entries := activitylog.HistoryOf(sink, "run-1")
	require.Len(t, entries, 2)
	require.Contains(t, entries[0].Message, "intent:")
	require.Contains(t, entries[1].Message, "outcome:")
}

func TestExecuteRetriesThenSucceedsWithAlternateSelector(t *testing.T) {
	var seenSelectors []string
	ctrl := &fakeController{
		clickFn: func(selector string, force bool) error {
			seenSelectors = append(seenSelectors, selector)
			if selector == "#primary" {
				return errFake
			}
			return nil
		},
	}
	e := New(ctrl, nil, activitylog.New(zerolog.Nop()), zerolog.Nop())

	step := model.Step{
		Operation: model.OpClick,
		Selector:  "#primary",
		Retry:     model.RetryPolicy{MaxAttempts: 2, AlternateSelector: "#fallback"},
	}
	outcome, err := e.Execute(context.Background(), "run-2", step, model.PageSnapshot{})
	require.NoError(t, err)
	require.Equal(t, model.StatusSuccess, outcome.Status)
	// first attempt tries #primary with plain then forced click (both fail),
	// second attempt uses the alternate selector and succeeds.
	require.Contains(t, seenSelectors, "#fallback")
}

func TestExecuteReportsFailureAfterExhaustingRetries(t *testing.T) {
	ctrl := &fakeController{clickFn: func(selector string, force bool) error { return errFake }}
	e := New(ctrl, nil, activitylog.New(zerolog.Nop()), zerolog.Nop())

	step := model.Step{Operation: model.OpClick, Selector: "#go", Retry: model.RetryPolicy{MaxAttempts: 2}}
	outcome, err := e.Execute(context.Background(), "run-3", step, model.PageSnapshot{})
	require.NoError(t, err, "Execute itself never errors; failure is carried in the Outcome")
	require.Equal(t, model.StatusFailure, outcome.Status)
	require.NotEmpty(t, outcome.Message)
}

func TestExecuteNoPageChangeWhenURLAndDigestSame(t *testing.T) {
	ctrl := &fakeController{currentURL: "https://example.com/same", content: "<html>same</html>"}
	e := New(ctrl, nil, activitylog.New(zerolog.Nop()), zerolog.Nop())

	before := model.PageSnapshot{URL: "https://example.com/same", ContentDigest: observer.Digest("<html>same</html>")}
	step := model.Step{Operation: model.OpWait, Value: "1"}

	outcome, err := e.Execute(context.Background(), "run-4", step, before)
	require.NoError(t, err)
	require.False(t, outcome.PageChanged)
}
