package activitylog

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kkonovalov/webagent-core/internal/convstore"
)

func TestMemorySinkRetainsHistoryInOrder(t *testing.T) {
	sink := New(zerolog.Nop())

	sink.Emit("run-1", "agent", SeverityInfo, "intent: click #go", []string{"before.png"})
	sink.Emit("run-1", "agent", SeverityWarning, "outcome: not found", nil)
	sink.Emit("run-2", "agent", SeverityInfo, "unrelated run", nil)

	history := HistoryOf(sink, "run-1")
	require.Len(t, history, 2)
	require.Equal(t, "intent: click #go", history[0].Message)
	require.Equal(t, SeverityWarning, history[1].Severity)

	require.Len(t, HistoryOf(sink, "run-2"), 1)
	require.Empty(t, HistoryOf(sink, "nonexistent"))
}

func TestWithConversationStoreTeesEntries(t *testing.T) {
	base := New(zerolog.Nop())
	store := convstore.NewMemoryStore()
	sink := WithConversationStore(base, store)

	sink.Emit("run-1", "agent", SeverityInfo, "intent: fill #email", nil)

	history, err := store.History(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "intent: fill #email", history[0].Content)

	// HistoryOf sees only the concrete memorySink, so the decorator reports nothing.
	require.Len(t, HistoryOf(sink, "run-1"), 0, "HistoryOf only type-asserts the concrete memorySink, not the decorator")
}
