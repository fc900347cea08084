package driven

import "context"

// TokenProvider provides the current access token for authenticated calls
// made outside the streaming connection.
type TokenProvider interface {
	// GetToken returns the current access token.
	// Returns an error wrapping domain.ErrUnauthorized when no usable token exists.
	GetToken(ctx context.Context) (string, error)
}
