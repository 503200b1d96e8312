package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/colliery-io/muninn/internal/token"
)

// OAuthCmd groups the OAuth subcommands that drive the refresh-grant
// contract against the configured token endpoint. The browser-based
// authorization-code exchange that produces the first refresh token is
// out of scope here: authenticate expects the user to paste a refresh
// token obtained out of band (e.g. from the agent's own login flow).
type OAuthCmd struct {
	Authenticate OAuthAuthenticateCmd `cmd:"" help:"Store a refresh token and exchange it for an access token."`
	Status       OAuthStatusCmd       `cmd:"" help:"Show whether valid OAuth tokens are stored."`
	Logout       OAuthLogoutCmd       `cmd:"" help:"Delete stored OAuth tokens."`
}

type OAuthAuthenticateCmd struct {
	RefreshToken string `name:"refresh-token" help:"Refresh token to store. Prompted for if omitted."`
}

func (c *OAuthAuthenticateCmd) Run(cli *CLI) error {
	configPath := resolvedConfigPath(cli.Config)
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	refreshToken := c.RefreshToken
	if refreshToken == "" {
		fmt.Print("Paste refresh token: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading refresh token: %w", err)
		}
		refreshToken = strings.TrimSpace(line)
	}
	if refreshToken == "" {
		return newConfigError("no refresh token provided")
	}

	projectRoot := cfg.ResolvedProjectRoot(configPath)
	mgr, err := token.NewFileTokenManager(oauthTokenPath(projectRoot), cfg.OAuth.ToToken())
	if err != nil {
		return newConfigError("loading token manager: %v", err)
	}

	// Seed a near-expired access token so GetValidAccessToken's normal
	// expiry check immediately triggers the refresh-grant exchange.
	if err := mgr.SaveTokens(token.OAuthTokens{RefreshToken: refreshToken, ExpiresAt: time.Now()}); err != nil {
		return fmt.Errorf("saving refresh token: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := mgr.GetValidAccessToken(ctx); err != nil {
		return fmt.Errorf("exchanging refresh token: %w", err)
	}

	fmt.Println("Authenticated. Access token stored and will auto-refresh.")
	return nil
}

type OAuthStatusCmd struct{}

func (c *OAuthStatusCmd) Run(cli *CLI) error {
	configPath := resolvedConfigPath(cli.Config)
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	projectRoot := cfg.ResolvedProjectRoot(configPath)
	mgr, err := token.NewFileTokenManager(oauthTokenPath(projectRoot), cfg.OAuth.ToToken())
	if err != nil {
		return newConfigError("loading token manager: %v", err)
	}

	info, ok := mgr.GetTokenInfo()
	if !ok {
		fmt.Println("Not authenticated.")
		return nil
	}

	fmt.Println("Authenticated.")
	fmt.Printf("  expires: %s\n", info.ExpiresAt.Format(time.RFC3339))
	if info.Scope != "" {
		fmt.Printf("  scope:   %s\n", info.Scope)
	}
	return nil
}

type OAuthLogoutCmd struct{}

func (c *OAuthLogoutCmd) Run(cli *CLI) error {
	configPath := resolvedConfigPath(cli.Config)
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	projectRoot := cfg.ResolvedProjectRoot(configPath)
	mgr, err := token.NewFileTokenManager(oauthTokenPath(projectRoot), cfg.OAuth.ToToken())
	if err != nil {
		return newConfigError("loading token manager: %v", err)
	}
	if err := mgr.DeleteTokens(); err != nil {
		return fmt.Errorf("deleting tokens: %w", err)
	}

	fmt.Println("Logged out.")
	return nil
}
