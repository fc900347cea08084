package driving

import (
	"context"

	"github.com/custodia-labs/hublink/internal/core/domain"
)

// EventHistory exposes the persisted session event log.
type EventHistory interface {
	// Recent returns the latest events, newest first.
	Recent(ctx context.Context, limit int) ([]domain.SessionEvent, error)

	// Session returns every event of one session, oldest first.
	Session(ctx context.Context, sessionID string) ([]domain.SessionEvent, error)
}
