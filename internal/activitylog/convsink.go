package activitylog

import (
	"context"

	"github.com/kkonovalov/webagent-core/internal/convstore"
)

// storeBackedSink tees every Emit into a convstore.Store (keyed by
// activity_id as the conversation id) in addition to the wrapped Sink's
// normal behavior. The store write is best-effort and synchronous: a
// failing write's error is discarded (not logged) rather than surfaced to
// the caller.
type storeBackedSink struct {
	Sink
	store convstore.Store
}

// WithConversationStore wraps sink so every entry is also persisted to
// store, keyed by activity_id.
func WithConversationStore(sink Sink, store convstore.Store) Sink {
	return &storeBackedSink{Sink: sink, store: store}
}

func (s *storeBackedSink) Emit(activityID, role string, severity Severity, message string, attachments []string) {
	s.Sink.Emit(activityID, role, severity, message, attachments)
	_ = s.store.Append(context.Background(), convstore.Message{
		ConversationID: activityID,
		Role:           role,
		Content:        message,
	})
}
