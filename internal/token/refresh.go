package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/colliery-io/muninn/internal/httpclient"
)

type refreshRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

// refreshAccessToken performs the OAuth refresh-grant request against
// config.TokenURL and returns the new token set.
func refreshAccessToken(ctx context.Context, client *httpclient.Client, config OAuthConfig, refreshToken string) (OAuthTokens, error) {
	body, err := json.Marshal(refreshRequest{
		GrantType:    "refresh_token",
		RefreshToken: refreshToken,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
	})
	if err != nil {
		return OAuthTokens{}, NewRefreshError("encoding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.TokenURL, bytes.NewReader(body))
	if err != nil {
		return OAuthTokens{}, NewRefreshError("building request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return OAuthTokens{}, NewRefreshError("sending request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return OAuthTokens{}, NewRefreshError("reading response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return OAuthTokens{}, NewRefreshError(
			fmt.Sprintf("token endpoint returned %d: %s", resp.StatusCode, string(respBody)), nil)
	}

	var parsed refreshResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return OAuthTokens{}, NewRefreshError("parsing response", err)
	}

	return OAuthTokens{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second),
		Scope:        parsed.Scope,
	}, nil
}

func newRefreshHTTPClient() *httpclient.Client {
	return httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		httpclient.WithMaxRetries(2),
	)
}
