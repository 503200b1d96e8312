package token

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOAuthTokens_Expired(t *testing.T) {
	now := time.Now()
	fresh := OAuthTokens{ExpiresAt: now.Add(time.Hour)}
	require.False(t, fresh.Expired(now))

	nearExpiry := OAuthTokens{ExpiresAt: now.Add(2 * time.Minute)}
	require.True(t, nearExpiry.Expired(now))

	expired := OAuthTokens{ExpiresAt: now.Add(-time.Minute)}
	require.True(t, expired.Expired(now))
}

func TestInMemoryTokenManager_NoTokens(t *testing.T) {
	m := NewInMemoryTokenManager()
	require.False(t, m.HasTokens())

	_, err := m.GetValidAccessToken(context.Background())
	require.ErrorIs(t, err, ErrNoTokens)
}

func TestInMemoryTokenManager_ValidToken(t *testing.T) {
	m := NewInMemoryTokenManager()
	require.NoError(t, m.SaveTokens(OAuthTokens{
		AccessToken: "tok_live",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	token, err := m.GetValidAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok_live", token)
}

func TestInMemoryTokenManager_RefreshesExpired(t *testing.T) {
	m := NewInMemoryTokenManager()
	refreshCalls := 0
	m.WithRefreshFunc(func(ctx context.Context, refreshToken string) (OAuthTokens, error) {
		refreshCalls++
		require.Equal(t, "refresh_old", refreshToken)
		return OAuthTokens{AccessToken: "tok_new", ExpiresAt: time.Now().Add(time.Hour)}, nil
	})
	require.NoError(t, m.SaveTokens(OAuthTokens{
		AccessToken:  "tok_old",
		RefreshToken: "refresh_old",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))

	token, err := m.GetValidAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok_new", token)
	require.Equal(t, 1, refreshCalls)
}

func TestInMemoryTokenManager_RefreshFailure(t *testing.T) {
	m := NewInMemoryTokenManager()
	wantErr := errors.New("token endpoint unreachable")
	m.WithRefreshFunc(func(ctx context.Context, refreshToken string) (OAuthTokens, error) {
		return OAuthTokens{}, wantErr
	})
	require.NoError(t, m.SaveTokens(OAuthTokens{
		RefreshToken: "refresh_old",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))

	_, err := m.GetValidAccessToken(context.Background())
	require.ErrorIs(t, err, wantErr)
}

func TestInMemoryTokenManager_DeleteTokens(t *testing.T) {
	m := NewInMemoryTokenManager()
	require.NoError(t, m.SaveTokens(OAuthTokens{AccessToken: "tok"}))
	require.True(t, m.HasTokens())

	require.NoError(t, m.DeleteTokens())
	require.False(t, m.HasTokens())
}

func TestInMemoryTokenManager_GetTokenInfo(t *testing.T) {
	m := NewInMemoryTokenManager()
	_, ok := m.GetTokenInfo()
	require.False(t, ok)

	expiry := time.Now().Add(time.Hour)
	require.NoError(t, m.SaveTokens(OAuthTokens{AccessToken: "tok", ExpiresAt: expiry, Scope: "user:inference"}))

	info, ok := m.GetTokenInfo()
	require.True(t, ok)
	require.Equal(t, "user:inference", info.Scope)
	require.WithinDuration(t, expiry, info.ExpiresAt, time.Second)
}

func TestFileTokenManager_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oauth.json")

	m1, err := NewFileTokenManager(path, OAuthConfig{TokenURL: "https://example.com/oauth/token"})
	require.NoError(t, err)
	require.False(t, m1.HasTokens())

	require.NoError(t, m1.SaveTokens(OAuthTokens{AccessToken: "tok_live", ExpiresAt: time.Now().Add(time.Hour)}))

	m2, err := NewFileTokenManager(path, OAuthConfig{TokenURL: "https://example.com/oauth/token"})
	require.NoError(t, err)
	require.True(t, m2.HasTokens())

	token, err := m2.GetValidAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok_live", token)
}

func TestFileTokenManager_DeleteTokens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oauth.json")

	m, err := NewFileTokenManager(path, OAuthConfig{})
	require.NoError(t, err)
	require.NoError(t, m.SaveTokens(OAuthTokens{AccessToken: "tok"}))
	require.True(t, m.HasTokens())

	require.NoError(t, m.DeleteTokens())
	require.False(t, m.HasTokens())

	// Deleting again when the file no longer exists is not an error.
	require.NoError(t, m.DeleteTokens())
}

func TestFileTokenManager_NoTokensYet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oauth.json")

	m, err := NewFileTokenManager(path, OAuthConfig{})
	require.NoError(t, err)

	_, err = m.GetValidAccessToken(context.Background())
	require.ErrorIs(t, err, ErrNoTokens)
}
