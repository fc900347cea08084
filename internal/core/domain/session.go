package domain

import "time"

// Phase is the lifecycle state of a session supervisor.
type Phase string

// Session phases.
const (
	// PhaseIdle is the state after construction or an explicit stop.
	PhaseIdle Phase = "idle"
	// PhaseAuthenticating means a user-initiated interactive authentication is running.
	PhaseAuthenticating Phase = "authenticating"
	// PhaseConnecting means a fresh credential is being used to open the stream.
	PhaseConnecting Phase = "connecting"
	// PhaseConnected means the stream is open.
	PhaseConnected Phase = "connected"
	// PhaseReconnecting means the stream was lost and the reconnect loop owns the session.
	PhaseReconnecting Phase = "reconnecting"
	// PhaseReAuthenticating means both tokens are unusable and the loop is
	// waiting on an interactive authentication.
	PhaseReAuthenticating Phase = "reauthenticating"
	// PhaseTerminated is terminal until the next StartSession.
	PhaseTerminated Phase = "terminated"
)

// String returns the string representation.
func (p Phase) String() string {
	return string(p)
}

// CanStart returns true if a user may start a new session from this phase.
func (p Phase) CanStart() bool {
	return p == PhaseIdle || p == PhaseTerminated
}

// IsActive returns true while the supervisor is working towards, or holding,
// a live connection.
func (p Phase) IsActive() bool {
	switch p {
	case PhaseAuthenticating, PhaseConnecting, PhaseConnected, PhaseReconnecting, PhaseReAuthenticating:
		return true
	default:
		return false
	}
}

// TerminalReason explains why a session ended up in PhaseTerminated.
type TerminalReason string

// Terminal reasons.
const (
	// TerminalNone is used for every non-terminated phase.
	TerminalNone TerminalReason = ""
	// TerminalForbidden means the user lacks the role required by the stream.
	TerminalForbidden TerminalReason = "forbidden"
	// TerminalExhaustedReauth means re-authentication inside the reconnect loop failed.
	TerminalExhaustedReauth TerminalReason = "reauthentication_failed"
	// TerminalShutdown means the supervisor was torn down.
	TerminalShutdown TerminalReason = "shutdown"
)

// RequiresUserAction returns true if the user has to do something
// (sign in again, request a role) before a session can succeed.
func (r TerminalReason) RequiresUserAction() bool {
	return r == TerminalForbidden || r == TerminalExhaustedReauth
}

// PhaseChange describes one transition of the supervisor state machine.
type PhaseChange struct {
	From     Phase
	To       Phase
	Terminal TerminalReason
	At       time.Time
}

// CloseCause describes why a stream connection closed.
type CloseCause struct {
	// Requested is true when the supervisor itself asked for the close.
	Requested bool
	// Err is the transport error for unexpected closes.
	Err error
}

// IsClean returns true for a close the supervisor asked for.
func (c CloseCause) IsClean() bool {
	return c.Requested
}

// SessionStatus is a point-in-time copy of the supervisor state.
// It never carries token values.
type SessionStatus struct {
	SessionID          string
	Phase              Phase
	Terminal           TerminalReason
	HasCredential      bool
	AccessTokenExpiry  time.Time
	RefreshTokenExpiry time.Time
	AuthInFlight       bool
	Connected          bool
	ReconnectAttempts  int
}
