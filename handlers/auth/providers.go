package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"customizer/core"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// provider is one external identity source.
type provider interface {
	name() string
	authURL(state string) string
	// user exchanges the callback code and returns who signed in.
	user(ctx context.Context, code string) (*core.User, error)
}

// providerFromEnv prefers OIDC over GitHub. It returns nil when neither is
// configured.
func providerFromEnv() (provider, error) {
	if issuer := os.Getenv("OIDC_ISSUER_URL"); issuer != "" && os.Getenv("OIDC_CLIENT_ID") != "" {
		p, err := newOIDCProvider(context.Background(), issuer, &oauth2.Config{
			ClientID:     os.Getenv("OIDC_CLIENT_ID"),
			ClientSecret: os.Getenv("OIDC_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("OIDC_REDIRECT_URL"),
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	if os.Getenv("GITHUB_CLIENT_ID") != "" && os.Getenv("GITHUB_CLIENT_SECRET") != "" {
		return &githubProvider{
			config: &oauth2.Config{
				ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
				ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
				RedirectURL:  os.Getenv("GITHUB_REDIRECT_URL"),
				Scopes:       []string{"read:user", "user:email"},
				Endpoint:     github.Endpoint,
			},
			userURL: "https://api.github.com/user",
		}, nil
	}
	return nil, nil
}

type githubProvider struct {
	config  *oauth2.Config
	userURL string
}

func (p *githubProvider) name() string { return "github" }

func (p *githubProvider) authURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *githubProvider) user(ctx context.Context, code string) (*core.User, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user from github: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github user lookup returned status %d", resp.StatusCode)
	}

	var gh struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		AvatarURL string `json:"avatar_url"`
		Name      string `json:"name"`
		Email     string `json:"email"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&gh); err != nil {
		return nil, fmt.Errorf("failed to decode github user: %w", err)
	}
	if gh.ID == 0 {
		return nil, fmt.Errorf("github user has no id")
	}
	return &core.User{
		Subject:   fmt.Sprintf("github_%d", gh.ID),
		Login:     gh.Login,
		Email:     gh.Email,
		AvatarURL: gh.AvatarURL,
		Name:      gh.Name,
	}, nil
}

type oidcProvider struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// oidcClaims are the ID token claims mapped onto a user.
type oidcClaims struct {
	Sub               string `json:"sub"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Picture           string `json:"picture"`
}

func newOIDCProvider(ctx context.Context, issuer string, config *oauth2.Config) (*oidcProvider, error) {
	discovered, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC issuer %s: %w", issuer, err)
	}
	config.Endpoint = discovered.Endpoint()
	config.Scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	return &oidcProvider{
		config:   config,
		verifier: discovered.Verifier(&oidc.Config{ClientID: config.ClientID}),
	}, nil
}

func (p *oidcProvider) name() string { return "oidc" }

func (p *oidcProvider) authURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (p *oidcProvider) user(ctx context.Context, code string) (*core.User, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}
	raw, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("no id_token in token response")
	}
	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var c oidcClaims
	if err := idToken.Claims(&c); err != nil {
		return nil, fmt.Errorf("failed to read ID token claims: %w", err)
	}
	login := c.PreferredUsername
	if login == "" {
		login = c.Email
	}
	return &core.User{
		Subject:   c.Sub,
		Login:     login,
		Email:     c.Email,
		AvatarURL: c.Picture,
		Name:      c.Name,
	}, nil
}
