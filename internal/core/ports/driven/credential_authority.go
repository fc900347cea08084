package driven

import (
	"context"

	"github.com/custodia-labs/hublink/internal/core/domain"
)

// CredentialAuthority issues credentials. It runs the interactive
// authorization-code flow and the refresh-token exchange.
//
// Both calls honour the context deadline; the supervisor sets it from the
// configured auth and refresh timeouts.
type CredentialAuthority interface {
	// AuthenticateInteractively runs the browser-mediated flow and returns
	// a fresh credential. Failures wrap domain.ErrDenied, domain.ErrServerError
	// or domain.ErrTimedOut where they can be classified.
	AuthenticateInteractively(ctx context.Context, scopes []string) (domain.CredentialState, error)

	// RefreshToken exchanges a refresh token for a new credential.
	// A rejected refresh token wraps domain.ErrInvalidGrant.
	RefreshToken(ctx context.Context, refreshToken string) (domain.CredentialState, error)
}
