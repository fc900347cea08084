package services

import (
	"time"

	"github.com/custodia-labs/hublink/internal/core/domain"
)

// IsUsable returns true iff expiry is strictly after now+margin.
// A token expiring exactly at now+margin is not usable.
func IsUsable(expiry, now time.Time, margin time.Duration) bool {
	return expiry.After(now.Add(margin))
}

// ExpiryPolicy decides whether the halves of a credential may still be used.
// The renewal margin applies to the access token only, so the supervisor
// stops using it slightly before the server would reject it.
type ExpiryPolicy struct {
	RenewalMargin time.Duration
}

// NewExpiryPolicy creates a policy with the given access-token margin.
func NewExpiryPolicy(margin time.Duration) ExpiryPolicy {
	return ExpiryPolicy{RenewalMargin: margin}
}

// AccessUsable returns true if the access token can open a connection now.
// An unknown (zero) expiry is trusted until the server rejects the token.
func (p ExpiryPolicy) AccessUsable(c domain.CredentialState, now time.Time) bool {
	if c.AccessToken == "" {
		return false
	}
	if c.AccessTokenExpiry.IsZero() {
		return true
	}
	return IsUsable(c.AccessTokenExpiry, now, p.RenewalMargin)
}

// RefreshUsable returns true if the refresh token is worth exchanging.
// It is checked without margin; an unknown expiry is assumed valid until the
// authority reports invalid_grant.
func (p ExpiryPolicy) RefreshUsable(c domain.CredentialState, now time.Time) bool {
	if !c.HasRefreshToken() {
		return false
	}
	if !c.RefreshExpiryKnown() {
		return true
	}
	return IsUsable(c.RefreshTokenExpiry, now, 0)
}
