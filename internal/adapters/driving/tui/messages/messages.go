// Package messages defines Bubbletea message types for the TUI.
// Supervisor callbacks and finished commands arrive as these messages.
package messages

import (
	"encoding/json"

	"github.com/custodia-labs/hublink/internal/core/domain"
)

// PhaseChanged is sent for every session state machine transition.
type PhaseChanged struct {
	Change domain.PhaseChange
}

// NoticeReceived carries a user-visible notification from the supervisor.
type NoticeReceived struct {
	Notice domain.Notice
}

// SessionStarted is sent when StartSession returns.
type SessionStarted struct {
	Err error
}

// SessionStopped is sent when Stop returns.
type SessionStopped struct {
	Err error
}

// EmitCompleted carries the result of an Emit invocation.
type EmitCompleted struct {
	Result json.RawMessage
	Err    error
}
