package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/custodia-labs/hublink/internal/core/domain"
	"github.com/custodia-labs/hublink/internal/core/ports/driven"
)

// Ensure EventStore implements the interface.
var _ driven.EventStore = (*EventStore)(nil)

// EventStore is an in-memory implementation of driven.EventStore.
// Events are kept in insertion order.
type EventStore struct {
	mu     sync.RWMutex
	events []domain.SessionEvent
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{}
}

// Record appends an event.
func (s *EventStore) Record(_ context.Context, event domain.SessionEvent) error {
	if event.ID == "" || event.SessionID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns the most recent events, newest first.
func (s *EventStore) List(_ context.Context, limit int) ([]domain.SessionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := slices.Clone(s.events)
	slices.Reverse(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListSession returns the events of one session, oldest first.
func (s *EventStore) ListSession(_ context.Context, sessionID string) ([]domain.SessionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.SessionEvent
	for _, e := range s.events {
		if e.SessionID == sessionID {
			result = append(result, e)
		}
	}
	return result, nil
}
