package track

import (
	"time"

	"github.com/google/uuid"
)

// MaxEventLogEntries bounds the persisted event log; oldest entries are
// dropped first.
const MaxEventLogEntries = 250

// EventLogEntry is one line of the persisted, newest-first activity log.
type EventLogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

func newEventLogEntry(message string) EventLogEntry {
	return EventLogEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Message:   message,
	}
}
