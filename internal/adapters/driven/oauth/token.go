// Package oauth implements the credential authority: the browser-based
// authorization code flow with PKCE and the refresh token exchange.
package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/hublink/internal/core/domain"
)

// refreshExpiresInKey is the non-standard token response field some
// authorities use to report the refresh token lifetime in seconds.
const refreshExpiresInKey = "refresh_expires_in"

// credentialFromToken converts a token response into a CredentialState.
// previousRefresh is kept when the authority does not rotate refresh tokens.
func credentialFromToken(tok *oauth2.Token, previousRefresh string, now time.Time) domain.CredentialState {
	cred := domain.CredentialState{
		AccessToken:       tok.AccessToken,
		AccessTokenExpiry: tok.Expiry,
		RefreshToken:      tok.RefreshToken,
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = previousRefresh
	}
	if secs, ok := numericExtra(tok.Extra(refreshExpiresInKey)); ok && secs > 0 {
		cred.RefreshTokenExpiry = now.Add(time.Duration(secs * float64(time.Second)))
	}
	return cred
}

// numericExtra reads a token response field that may have been decoded from
// JSON (float64, json.Number) or from a form body (string).
func numericExtra(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// generateState creates a random state parameter for CSRF protection.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
