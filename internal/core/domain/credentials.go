package domain

import "time"

// CredentialState is the token pair produced by an interactive authentication
// or a refresh exchange. It is always replaced as a whole, never patched field
// by field, so readers never observe a mixed access/refresh pair.
type CredentialState struct {
	// AccessToken is the bearer credential for the streaming connection and
	// resource calls.
	AccessToken string `json:"-"`
	// AccessTokenExpiry is the instant after which AccessToken must be
	// treated as invalid. Zero means the authority did not report one.
	AccessTokenExpiry time.Time `json:"access_token_expiry,omitempty"`

	// RefreshToken is exchanged for a new CredentialState without user
	// interaction.
	RefreshToken string `json:"-"`
	// RefreshTokenExpiry is the refresh token's expiry if known.
	// Zero means unknown: the token is assumed valid until the authority
	// rejects it.
	RefreshTokenExpiry time.Time `json:"refresh_token_expiry,omitempty"`
}

// IsEmpty returns true before the first successful interactive authentication.
func (c CredentialState) IsEmpty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// HasRefreshToken returns true if a refresh token is available.
func (c CredentialState) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// RefreshExpiryKnown returns true if the authority reported when the refresh
// token expires.
func (c CredentialState) RefreshExpiryKnown() bool {
	return !c.RefreshTokenExpiry.IsZero()
}

// WithoutAccessToken returns a copy whose access token has been dropped,
// keeping the refresh half. Used when the server rejects the access token
// before its recorded expiry.
func (c CredentialState) WithoutAccessToken() CredentialState {
	return CredentialState{
		RefreshToken:       c.RefreshToken,
		RefreshTokenExpiry: c.RefreshTokenExpiry,
	}
}

// WithoutRefreshToken returns a copy whose refresh token has been dropped.
// Used when the authority reports the refresh token invalid.
func (c CredentialState) WithoutRefreshToken() CredentialState {
	return CredentialState{
		AccessToken:       c.AccessToken,
		AccessTokenExpiry: c.AccessTokenExpiry,
	}
}
