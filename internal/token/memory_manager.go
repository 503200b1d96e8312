package token

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// InMemoryTokenManager is a Manager that never touches the filesystem,
// for use in tests that exercise passthrough auth without real OAuth
// credentials.
type InMemoryTokenManager struct {
	refreshFunc func(ctx context.Context, refreshToken string) (OAuthTokens, error)

	mu     sync.RWMutex
	tokens *OAuthTokens

	refreshGroup singleflight.Group
}

func NewInMemoryTokenManager() *InMemoryTokenManager {
	return &InMemoryTokenManager{}
}

// WithRefreshFunc installs a stand-in refresh implementation so tests
// can simulate a successful or failing token refresh without a real
// OAuth endpoint.
func (m *InMemoryTokenManager) WithRefreshFunc(fn func(ctx context.Context, refreshToken string) (OAuthTokens, error)) *InMemoryTokenManager {
	m.refreshFunc = fn
	return m
}

func (m *InMemoryTokenManager) HasTokens() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens != nil
}

func (m *InMemoryTokenManager) GetTokenInfo() (TokenInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tokens == nil {
		return TokenInfo{}, false
	}
	return TokenInfo{HasTokens: true, ExpiresAt: m.tokens.ExpiresAt, Scope: m.tokens.Scope}, true
}

func (m *InMemoryTokenManager) GetValidAccessToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	tokens := m.tokens
	m.mu.RUnlock()

	if tokens == nil {
		return "", ErrNoTokens
	}
	if !tokens.Expired(time.Now()) {
		return tokens.AccessToken, nil
	}
	if m.refreshFunc == nil {
		return "", NewRefreshError("no refresh function configured", nil)
	}

	refreshed, err, _ := m.refreshGroup.Do(refreshGroupKey, func() (interface{}, error) {
		newTokens, err := m.refreshFunc(ctx, tokens.RefreshToken)
		if err != nil {
			return OAuthTokens{}, err
		}
		if err := m.SaveTokens(newTokens); err != nil {
			return OAuthTokens{}, err
		}
		return newTokens, nil
	})
	if err != nil {
		return "", err
	}
	return refreshed.(OAuthTokens).AccessToken, nil
}

func (m *InMemoryTokenManager) SaveTokens(tokens OAuthTokens) error {
	m.mu.Lock()
	m.tokens = &tokens
	m.mu.Unlock()
	return nil
}

func (m *InMemoryTokenManager) DeleteTokens() error {
	m.mu.Lock()
	m.tokens = nil
	m.mu.Unlock()
	return nil
}
