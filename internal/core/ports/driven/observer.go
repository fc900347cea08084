package driven

import "github.com/custodia-labs/hublink/internal/core/domain"

// SessionObserver receives supervisor events for presentation and history.
// Implementations must not call back into the supervisor synchronously.
type SessionObserver interface {
	// OnNotice is called for every user-visible notification.
	OnNotice(notice domain.Notice)

	// OnPhaseChange is called after every state machine transition.
	OnPhaseChange(change domain.PhaseChange)
}
