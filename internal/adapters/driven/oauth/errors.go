package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/hublink/internal/core/domain"
)

// errorForCode maps an OAuth 2.0 error code (RFC 6749 §4.1.2.1 and §5.2) to
// a domain error. It returns nil for codes with no specific meaning.
func errorForCode(code string) error {
	switch code {
	case "invalid_grant":
		return domain.ErrInvalidGrant
	case "access_denied":
		return domain.ErrDenied
	case "server_error", "temporarily_unavailable",
		"invalid_request", "invalid_client", "invalid_scope",
		"unauthorized_client", "unsupported_grant_type", "unsupported_response_type":
		return domain.ErrServerError
	default:
		return nil
	}
}

// classifyTokenError wraps a token endpoint failure with the matching domain
// error so the supervisor can tell an invalid grant from a transient failure.
func classifyTokenError(err error) error {
	if err == nil {
		return nil
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if kind := errorForCode(re.ErrorCode); kind != nil {
			return fmt.Errorf("%w: %w", kind, err)
		}
		if re.Response != nil && re.Response.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %w", domain.ErrServerError, err)
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrTimedOut, err)
	}
	return err
}
