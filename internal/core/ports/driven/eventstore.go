package driven

import (
	"context"

	"github.com/custodia-labs/hublink/internal/core/domain"
)

// EventStore persists the session event log.
type EventStore interface {
	// Record appends an event.
	Record(ctx context.Context, event domain.SessionEvent) error

	// List returns the most recent events, newest first.
	// A limit of zero or less returns every event.
	List(ctx context.Context, limit int) ([]domain.SessionEvent, error)

	// ListSession returns the events of one session, oldest first.
	ListSession(ctx context.Context, sessionID string) ([]domain.SessionEvent, error)
}
