package driving

import (
	"context"
	"encoding/json"

	"github.com/custodia-labs/hublink/internal/core/domain"
)

// SessionService manages the single long-lived authenticated stream.
type SessionService interface {
	// StartSession runs the interactive authentication and opens the stream.
	// Returns domain.ErrAuthInProgress immediately if an authentication is
	// already running, and domain.ErrSessionBusy if the session is active.
	StartSession(ctx context.Context) error

	// HandleDisconnect reacts to the stream closing. It never blocks;
	// reconnection runs in the background.
	HandleDisconnect(cause domain.CloseCause)

	// Stop closes the stream and cancels any reconnect loop. The session
	// returns to idle and may be started again.
	Stop() error

	// Shutdown tears the supervisor down. It cannot be started again.
	Shutdown() error

	// Status returns a copy of the current session state.
	Status() domain.SessionStatus

	// GetToken returns the current access token if it is usable, so
	// resource calls can share the session credential.
	GetToken(ctx context.Context) (string, error)

	// Invoke calls a hub method over the current connection and returns
	// its result. Fails with domain.ErrConnectionClosed when not connected.
	Invoke(ctx context.Context, target string, args ...any) (json.RawMessage, error)
}
