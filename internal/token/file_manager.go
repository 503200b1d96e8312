package token

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/colliery-io/muninn/internal/httpclient"
)

// refreshGroupKey is the single key every refresh call shares, so
// singleflight collapses concurrent refreshes into one in-flight
// request regardless of how many goroutines ask for a token at once.
const refreshGroupKey = "refresh"

// FileTokenManager persists OAuth tokens to a JSON file, refreshing
// them against the configured OAuth endpoint when they're close to
// expiry.
type FileTokenManager struct {
	path       string
	oauth      OAuthConfig
	httpClient *httpclient.Client

	mu     sync.RWMutex
	tokens *OAuthTokens

	refreshGroup singleflight.Group
}

// NewFileTokenManager creates a manager persisting to path. Existing
// tokens at path, if any, are loaded immediately.
func NewFileTokenManager(path string, oauth OAuthConfig) (*FileTokenManager, error) {
	m := &FileTokenManager{
		path:       path,
		oauth:      oauth,
		httpClient: newRefreshHTTPClient(),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *FileTokenManager) load() error {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var tokens OAuthTokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return err
	}
	m.mu.Lock()
	m.tokens = &tokens
	m.mu.Unlock()
	return nil
}

func (m *FileTokenManager) HasTokens() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens != nil
}

func (m *FileTokenManager) GetTokenInfo() (TokenInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tokens == nil {
		return TokenInfo{}, false
	}
	return TokenInfo{HasTokens: true, ExpiresAt: m.tokens.ExpiresAt, Scope: m.tokens.Scope}, true
}

// GetValidAccessToken returns a non-expired access token, transparently
// refreshing it first if it's within the expiry buffer. Concurrent
// callers share a single in-flight refresh.
func (m *FileTokenManager) GetValidAccessToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	tokens := m.tokens
	m.mu.RUnlock()

	if tokens == nil {
		return "", ErrNoTokens
	}
	if !tokens.Expired(time.Now()) {
		return tokens.AccessToken, nil
	}

	refreshed, err, _ := m.refreshGroup.Do(refreshGroupKey, func() (interface{}, error) {
		return m.doRefresh(ctx, tokens.RefreshToken)
	})
	if err != nil {
		return "", err
	}
	return refreshed.(OAuthTokens).AccessToken, nil
}

func (m *FileTokenManager) doRefresh(ctx context.Context, refreshToken string) (OAuthTokens, error) {
	newTokens, err := refreshAccessToken(ctx, m.httpClient, m.oauth, refreshToken)
	if err != nil {
		return OAuthTokens{}, err
	}
	if err := m.SaveTokens(newTokens); err != nil {
		return OAuthTokens{}, err
	}
	return newTokens, nil
}

// SaveTokens persists tokens atomically: write to a temp file in the
// same directory, then rename over the target, so a crash mid-write
// never leaves a corrupt token file.
func (m *FileTokenManager) SaveTokens(tokens OAuthTokens) error {
	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".oauth-tokens-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		return err
	}

	m.mu.Lock()
	m.tokens = &tokens
	m.mu.Unlock()
	return nil
}

func (m *FileTokenManager) DeleteTokens() error {
	m.mu.Lock()
	m.tokens = nil
	m.mu.Unlock()

	err := os.Remove(m.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
