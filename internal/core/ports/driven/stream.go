package driven

import (
	"context"
	"encoding/json"

	"github.com/custodia-labs/hublink/internal/core/domain"
)

// StreamConnector opens the persistent streaming connection.
type StreamConnector interface {
	// Open connects with the given access token.
	// Returns an error wrapping domain.ErrForbidden when the user lacks the
	// required role, domain.ErrUnauthorized when the token is rejected, and
	// domain.ErrTransientConnection for anything retryable.
	Open(ctx context.Context, accessToken string) (StreamHandle, error)
}

// StreamHandle is one live streaming connection.
type StreamHandle interface {
	// Close stops the connection and releases its resources.
	// It is idempotent and reports a requested CloseCause to the callback.
	Close() error

	// OnClosed registers the callback invoked exactly once when the
	// connection ends. If the connection has already ended the callback
	// is invoked immediately.
	OnClosed(callback func(domain.CloseCause))
}

// StreamInvoker is implemented by handles that can call hub methods and
// wait for their completion.
type StreamInvoker interface {
	Invoke(ctx context.Context, target string, args ...any) (json.RawMessage, error)
}
