// Package activitylog implements the append-only ActivityLog sink spec.md
// §4.5/§6.5 describes: Emit is fire-and-forget and must never block the
// engine loop. Grounded on the teacher's zerolog component-logger
// convention (internal/agent/orchestrator.go logs structured events at
// each step); here the same events are additionally retained in memory so
// a caller can reconstruct the visual trail the FinalReport references.
package activitylog

import (
	"sync"

	"github.com/rs/zerolog"
)

// Severity tags one entry the way spec.md §4.5 requires (Intent, Outcome,
// Warning, Stall, Timeout).
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityStall   Severity = "stall"
	SeverityTimeout Severity = "timeout"
	SeverityError   Severity = "error"
)

// Entry is one sub-activity record.
type Entry struct {
	ActivityID  string
	Role        string
	Severity    Severity
	Message     string
	Attachments []string
}

// Sink is the external ActivityLog capability spec.md §6.5 requires.
type Sink interface {
	Emit(activityID, role string, severity Severity, message string, attachments []string)
}

// memorySink is the default Sink: it logs every entry through zerolog and
// retains every entry per activity (the history is not capped). Emit
// never returns an error and never blocks on I/O beyond an in-process
// mutex, satisfying the "fire-and-forget" contract.
type memorySink struct {
	logger zerolog.Logger

	mu      sync.Mutex
	entries map[string][]Entry
}

// New builds the default in-memory, zerolog-backed Sink.
func New(logger zerolog.Logger) Sink {
	return &memorySink{
		logger:  logger.With().Str("component", "activitylog").Logger(),
		entries: make(map[string][]Entry),
	}
}

func (s *memorySink) Emit(activityID, role string, severity Severity, message string, attachments []string) {
	entry := Entry{ActivityID: activityID, Role: role, Severity: severity, Message: message, Attachments: attachments}

	s.mu.Lock()
	s.entries[activityID] = append(s.entries[activityID], entry)
	s.mu.Unlock()

	evt := s.logger.Info()
	switch severity {
	case SeverityWarning:
		evt = s.logger.Warn()
	case SeverityStall, SeverityTimeout, SeverityError:
		evt = s.logger.Error()
	}
	evt.Str("activity_id", activityID).Str("role", role).Str("severity", string(severity)).
		Strs("attachments", attachments).Msg(message)
}

// History returns the retained entries for activityID, in emission order.
func (s *memorySink) History(activityID string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries[activityID]))
	copy(out, s.entries[activityID])
	return out
}

// HistoryOf type-asserts sink back to the concrete memorySink to expose
// History without widening the Sink interface callers depend on.
func HistoryOf(sink Sink, activityID string) []Entry {
	if ms, ok := sink.(*memorySink); ok {
		return ms.History(activityID)
	}
	return nil
}
