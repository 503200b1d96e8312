package token

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoTokens is returned by GetValidAccessToken when no tokens have
// ever been saved.
var ErrNoTokens = errors.New("no oauth tokens available, run 'muninn oauth authenticate'")

// RefreshError wraps a failure from the OAuth refresh-grant request.
type RefreshError struct {
	Message string
	Cause   error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("oauth token refresh failed: %s: %v", e.Message, e.Cause)
}

func (e *RefreshError) Unwrap() error { return e.Cause }

func NewRefreshError(message string, cause error) *RefreshError {
	return &RefreshError{Message: message, Cause: cause}
}

// Manager abstracts OAuth token storage and refresh so passthrough
// auth doesn't need to know whether tokens live on disk or in memory.
type Manager interface {
	HasTokens() bool
	GetValidAccessToken(ctx context.Context) (string, error)
	SaveTokens(tokens OAuthTokens) error
	DeleteTokens() error
	GetTokenInfo() (TokenInfo, bool)
}
