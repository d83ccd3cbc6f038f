package convstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAppendAndHistory(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, Message{ConversationID: "run-1", Role: "agent", Content: "step one"}))
	require.NoError(t, store.Append(ctx, Message{ConversationID: "run-1", Role: "agent", Content: "step two"}))
	require.NoError(t, store.Append(ctx, Message{ConversationID: "run-2", Role: "agent", Content: "other run"}))

	history, err := store.History(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "step one", history[0].Content)
	require.Equal(t, "step two", history[1].Content)

	other, err := store.History(ctx, "run-2")
	require.NoError(t, err)
	require.Len(t, other, 1)

	empty, err := store.History(ctx, "nonexistent")
	require.NoError(t, err)
	require.Empty(t, empty)
}
