// Package token manages OAuth tokens for Anthropic MAX plan
// authentication: persisting them, tracking expiry, and refreshing
// them against the OAuth token endpoint on demand.
package token

import "time"

// refreshBuffer is how long before actual expiry a token is treated as
// expired, so a refresh has time to complete before the old token
// would be rejected by the upstream API.
const refreshBuffer = 5 * time.Minute

// OAuthTokens is the persisted OAuth token set for one authenticated
// session.
type OAuthTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        string    `json:"scope,omitempty"`
}

// Expired reports whether t should be treated as expired: true once
// now is within refreshBuffer of ExpiresAt.
func (t OAuthTokens) Expired(now time.Time) bool {
	return !now.Add(refreshBuffer).Before(t.ExpiresAt)
}

// OAuthConfig configures the refresh-grant request against the OAuth
// provider.
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// TokenInfo is a read-only snapshot of stored token state, safe to
// surface via `muninn oauth status` without handing out the raw
// tokens.
type TokenInfo struct {
	HasTokens bool
	ExpiresAt time.Time
	Scope     string
}
