// Package msauth acquires tokens from the Microsoft identity platform via
// the OAuth 2.0 authorization-code and refresh-token grants.
package msauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/wrale/oauth2-mail-relay/internal/tokens"
)

// DefaultScopes requests delegated mail access. offline_access governs
// whether the provider issues a refresh token at all.
var DefaultScopes = []string{"openid", "profile", "offline_access", "User.Read", "Mail.Send"}

// Config holds the client registration details for the identity provider.
type Config struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	RedirectURL  string
	Scopes       []string

	// Endpoint overrides the Azure AD endpoint; used by tests to point at
	// a local token server.
	Endpoint oauth2.Endpoint
}

// Acquirer wraps the provider's token endpoint for the two grants this
// service uses.
type Acquirer struct {
	conf *oauth2.Config
}

// New creates an acquirer for the configured client registration.
func New(cfg Config) *Acquirer {
	tenant := cfg.TenantID
	if tenant == "" {
		tenant = "common"
	}

	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = microsoft.AzureADEndpoint(tenant)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	return &Acquirer{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
	}
}

// AuthCodeURL returns the provider consent URL carrying the given state.
func (a *Acquirer) AuthCodeURL(state string) string {
	return a.conf.AuthCodeURL(state)
}

// ExchangeCode trades a one-time authorization code for a token record.
// Provider rejections (invalid or expired code, redirect URI mismatch)
// surface as *AuthError.
func (a *Acquirer) ExchangeCode(ctx context.Context, code string) (*tokens.Record, error) {
	tok, err := a.conf.Exchange(ctx, code)
	if err != nil {
		return nil, authError("exchanging authorization code", err)
	}
	return record(tok), nil
}

// Refresh trades a refresh token for a new token record. When the provider
// does not rotate refresh tokens the prior token is carried into the
// returned record, so callers never lose the chain on a non-rotating
// refresh.
func (a *Acquirer) Refresh(ctx context.Context, refreshToken string) (*tokens.Record, error) {
	src := a.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, authError("refreshing token", err)
	}

	rec := record(tok)
	if rec.RefreshToken == "" {
		rec.RefreshToken = refreshToken
	}
	return rec, nil
}

func record(tok *oauth2.Token) *tokens.Record {
	return &tokens.Record{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresOn:    tok.Expiry,
		Account:      tokens.Account{Username: usernameFromIDToken(tok)},
	}
}

// usernameFromIDToken pulls a display identifier out of the id_token when
// the provider sent one. The payload is decoded without signature
// verification: the value is informational only and never drives an
// authorization decision.
func usernameFromIDToken(tok *oauth2.Token) string {
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return ""
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return ""
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return ""
	}

	var claims struct {
		PreferredUsername string `json:"preferred_username"`
		Email             string `json:"email"`
		Name              string `json:"name"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return ""
	}

	switch {
	case claims.PreferredUsername != "":
		return claims.PreferredUsername
	case claims.Email != "":
		return claims.Email
	default:
		return claims.Name
	}
}
