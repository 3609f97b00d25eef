package msauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

// tokenServer fakes the provider token endpoint. The handler receives the
// parsed form of each request.
func tokenServer(t *testing.T, handler func(form url.Values) (status int, body map[string]interface{})) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}

		status, body := handler(r.Form)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Fatalf("encoding response: %v", err)
		}
	}))
}

func testAcquirer(srv *httptest.Server) *Acquirer {
	return New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/oauth/redirect",
		Endpoint: oauth2.Endpoint{
			AuthURL:  srv.URL + "/authorize",
			TokenURL: srv.URL + "/token",
		},
	})
}

// fakeIDToken builds an unsigned JWT-shaped id_token with the given claims.
func fakeIDToken(t *testing.T, claims map[string]string) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatal(err)
	}
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"none"}`)) + "." + enc.EncodeToString(payload) + ".sig"
}

func TestExchangeCode(t *testing.T) {
	srv := tokenServer(t, func(form url.Values) (int, map[string]interface{}) {
		if got := form.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q, want authorization_code", got)
		}
		if got := form.Get("code"); got != "the-code" {
			t.Errorf("code = %q, want the-code", got)
		}
		return http.StatusOK, map[string]interface{}{
			"access_token":  "A",
			"refresh_token": "R",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"id_token":      fakeIDToken(t, map[string]string{"preferred_username": "user@example.com"}),
		}
	})
	defer srv.Close()

	rec, err := testAcquirer(srv).ExchangeCode(context.Background(), "the-code")
	if err != nil {
		t.Fatalf("ExchangeCode failed: %v", err)
	}
	if rec.AccessToken != "A" {
		t.Errorf("access token = %q, want A", rec.AccessToken)
	}
	if rec.RefreshToken != "R" {
		t.Errorf("refresh token = %q, want R", rec.RefreshToken)
	}
	if rec.Account.Username != "user@example.com" {
		t.Errorf("account = %q, want user@example.com", rec.Account.Username)
	}
	if until := time.Until(rec.ExpiresOn); until < 50*time.Minute || until > 70*time.Minute {
		t.Errorf("expiry %v not roughly an hour out", rec.ExpiresOn)
	}
}

func TestExchangeCodeRejected(t *testing.T) {
	srv := tokenServer(t, func(form url.Values) (int, map[string]interface{}) {
		return http.StatusBadRequest, map[string]interface{}{
			"error":             "invalid_grant",
			"error_description": "authorization code expired",
		}
	})
	defer srv.Close()

	_, err := testAcquirer(srv).ExchangeCode(context.Background(), "stale-code")
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthError, got %T", err)
	}
	if authErr.Code != "invalid_grant" {
		t.Errorf("code = %q, want invalid_grant", authErr.Code)
	}
	if authErr.Description != "authorization code expired" {
		t.Errorf("description = %q", authErr.Description)
	}
}

func TestRefreshPreservesRefreshToken(t *testing.T) {
	srv := tokenServer(t, func(form url.Values) (int, map[string]interface{}) {
		if got := form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", got)
		}
		if got := form.Get("refresh_token"); got != "R" {
			t.Errorf("refresh_token = %q, want R", got)
		}
		// No refresh_token in the response: the provider did not rotate
		return http.StatusOK, map[string]interface{}{
			"access_token": "B",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
	})
	defer srv.Close()

	rec, err := testAcquirer(srv).Refresh(context.Background(), "R")
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if rec.AccessToken != "B" {
		t.Errorf("access token = %q, want B", rec.AccessToken)
	}
	if rec.RefreshToken != "R" {
		t.Errorf("non-rotating refresh must keep R, got %q", rec.RefreshToken)
	}
}

func TestRefreshRotation(t *testing.T) {
	srv := tokenServer(t, func(form url.Values) (int, map[string]interface{}) {
		return http.StatusOK, map[string]interface{}{
			"access_token":  "B",
			"refresh_token": "R2",
			"token_type":    "Bearer",
			"expires_in":    3600,
		}
	})
	defer srv.Close()

	rec, err := testAcquirer(srv).Refresh(context.Background(), "R")
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if rec.RefreshToken != "R2" {
		t.Errorf("rotated refresh token must win, got %q", rec.RefreshToken)
	}
}

func TestRefreshRejected(t *testing.T) {
	srv := tokenServer(t, func(form url.Values) (int, map[string]interface{}) {
		return http.StatusBadRequest, map[string]interface{}{
			"error": "invalid_grant",
		}
	})
	defer srv.Close()

	_, err := testAcquirer(srv).Refresh(context.Background(), "revoked")
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestAuthCodeURLCarriesState(t *testing.T) {
	a := New(Config{
		ClientID:    "client-id",
		RedirectURL: "http://localhost:8080/oauth/redirect",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://login.example.com/authorize",
			TokenURL: "https://login.example.com/token",
		},
	})

	u, err := url.Parse(a.AuthCodeURL("the-state"))
	if err != nil {
		t.Fatalf("parsing auth URL: %v", err)
	}
	q := u.Query()
	if got := q.Get("state"); got != "the-state" {
		t.Errorf("state = %q, want the-state", got)
	}
	if got := q.Get("client_id"); got != "client-id" {
		t.Errorf("client_id = %q", got)
	}
	if got := q.Get("redirect_uri"); got != "http://localhost:8080/oauth/redirect" {
		t.Errorf("redirect_uri = %q", got)
	}
}

func TestUsernameFromIDToken(t *testing.T) {
	tests := []struct {
		name   string
		claims map[string]string
		want   string
	}{
		{"preferred username wins", map[string]string{"preferred_username": "u@x.com", "email": "e@x.com"}, "u@x.com"},
		{"email fallback", map[string]string{"email": "e@x.com", "name": "E"}, "e@x.com"},
		{"name fallback", map[string]string{"name": "E"}, "E"},
		{"no claims", map[string]string{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := (&oauth2.Token{AccessToken: "A"}).WithExtra(map[string]interface{}{
				"id_token": fakeIDToken(t, tt.claims),
			})
			if got := usernameFromIDToken(tok); got != tt.want {
				t.Errorf("username = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUsernameFromIDTokenMalformed(t *testing.T) {
	tok := (&oauth2.Token{AccessToken: "A"}).WithExtra(map[string]interface{}{
		"id_token": "not-a-jwt",
	})
	if got := usernameFromIDToken(tok); got != "" {
		t.Errorf("expected empty username for malformed id_token, got %q", got)
	}

	if got := usernameFromIDToken(&oauth2.Token{AccessToken: "A"}); got != "" {
		t.Errorf("expected empty username without id_token, got %q", got)
	}
}
