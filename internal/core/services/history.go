package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/hublink/internal/core/domain"
	"github.com/custodia-labs/hublink/internal/core/ports/driven"
	"github.com/custodia-labs/hublink/internal/core/ports/driving"
	"github.com/custodia-labs/hublink/internal/logger"
)

// Ensure the history types implement their interfaces.
var (
	_ driven.SessionObserver = (*HistoryRecorder)(nil)
	_ driving.EventHistory   = (*HistoryService)(nil)
)

// recordTimeout bounds a single event write so a slow store cannot stall the
// supervisor, which calls observers synchronously.
const recordTimeout = 2 * time.Second

// HistoryRecorder persists supervisor events to an EventStore.
// Write failures are logged and dropped.
type HistoryRecorder struct {
	store     driven.EventStore
	sessionID string
}

// NewHistoryRecorder creates a recorder for one session.
func NewHistoryRecorder(store driven.EventStore, sessionID string) *HistoryRecorder {
	return &HistoryRecorder{store: store, sessionID: sessionID}
}

// OnNotice records a notice event.
func (r *HistoryRecorder) OnNotice(n domain.Notice) {
	msg := n.Text
	if n.Err != nil {
		msg = n.Err.Error()
	}
	r.record(domain.SessionEvent{
		Type:      domain.EventNotice,
		Notice:    n.Kind,
		Message:   msg,
		CreatedAt: n.At,
	})
}

// OnPhaseChange records a phase change event.
func (r *HistoryRecorder) OnPhaseChange(c domain.PhaseChange) {
	r.record(domain.SessionEvent{
		Type:      domain.EventPhaseChange,
		FromPhase: c.From,
		ToPhase:   c.To,
		Terminal:  c.Terminal,
		CreatedAt: c.At,
	})
}

func (r *HistoryRecorder) record(event domain.SessionEvent) {
	event.ID = uuid.New().String()
	event.SessionID = r.sessionID
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := r.store.Record(ctx, event); err != nil {
		logger.Warn("recording session event: %v", err)
	}
}

// HistoryService reads the persisted event log.
type HistoryService struct {
	store driven.EventStore
}

// NewHistoryService creates a new history service.
func NewHistoryService(store driven.EventStore) *HistoryService {
	return &HistoryService{store: store}
}

// Recent returns the latest events, newest first.
func (s *HistoryService) Recent(ctx context.Context, limit int) ([]domain.SessionEvent, error) {
	return s.store.List(ctx, limit)
}

// Session returns every event of one session, oldest first.
func (s *HistoryService) Session(ctx context.Context, sessionID string) ([]domain.SessionEvent, error) {
	if sessionID == "" {
		return nil, domain.ErrInvalidInput
	}
	events, err := s.store.ListSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, domain.ErrNotFound
	}
	return events, nil
}
