// Package main implements the OAuth2 mail relay server
package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wrale/oauth2-mail-relay/internal/graph"
	"github.com/wrale/oauth2-mail-relay/internal/msauth"
	"github.com/wrale/oauth2-mail-relay/internal/state"
	"github.com/wrale/oauth2-mail-relay/internal/tokens"
)

// authFailedMessage is the caller-visible remedy for a dead token chain.
const authFailedMessage = "Authentication failed. Please re-authorize at /authorize."

// Health check handler
func (s *server) handleHealth() http.HandlerFunc {
	type healthResponse struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:  "ok",
			Version: Version,
		}

		// Check component health
		if err := s.checkHealth(r.Context()); err != nil {
			resp.Status = "degraded"
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		writeJSON(w, resp)
	}
}

// Authorize handler: issues a state token and redirects the browser to the
// provider consent screen.
func (s *server) handleAuthorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := s.state.Issue(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "unable to start authorization")
			return
		}

		http.Redirect(w, r, s.auth.AuthCodeURL(st), http.StatusFound)
	}
}

// OAuth redirect handler: completes the authorization-code flow. The state
// parameter is validated and consumed before the code is exchanged.
func (s *server) handleOAuthRedirect() http.HandlerFunc {
	type redirectResponse struct {
		Message   string    `json:"message"`
		ExpiresOn time.Time `json:"expiresOn"`
		Account   string    `json:"account"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			writeError(w, http.StatusBadRequest, "missing authorization code")
			return
		}

		if err := s.state.Validate(r.Context(), r.URL.Query().Get("state")); err != nil {
			if errors.Is(err, state.ErrInvalidState) {
				writeError(w, http.StatusBadRequest, "invalid state parameter")
				return
			}
			writeError(w, http.StatusInternalServerError, "unable to verify state parameter")
			return
		}

		rec, err := s.manager.CompleteAuthorization(r.Context(), code)
		if err != nil {
			var authErr *msauth.AuthError
			if errors.As(err, &authErr) {
				writeError(w, http.StatusInternalServerError, authErr.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, redirectResponse{
			Message:   "Authorization complete. You can close this window.",
			ExpiresOn: rec.ExpiresOn,
			Account:   rec.Account.Username,
		})
	}
}

// Send email handler: validates the payload, obtains a valid access token,
// and delivers the message through the Graph API.
func (s *server) handleSendEmail() http.HandlerFunc {
	type sendResponse struct {
		Success   bool   `json:"success"`
		MessageID string `json:"messageId"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var msg graph.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		// Reject malformed input before any token or network access
		if err := msg.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		accessToken, err := s.manager.AccessToken(r.Context())
		if err != nil {
			if errors.Is(err, tokens.ErrReauthRequired) {
				writeError(w, http.StatusUnauthorized, authFailedMessage)
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		messageID, err := s.sender.Send(r.Context(), accessToken, &msg)
		if err != nil {
			var apiErr *graph.APIError
			switch {
			case errors.Is(err, tokens.ErrReauthRequired):
				writeError(w, http.StatusUnauthorized, authFailedMessage)
			case errors.As(err, &apiErr):
				writeError(w, http.StatusBadGateway, apiErr.Error())
			default:
				writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}

		writeJSON(w, sendResponse{Success: true, MessageID: messageID})
	}
}

// Token status handler: reports the stored record without refreshing it.
func (s *server) handleTokenStatus() http.HandlerFunc {
	type statusResponse struct {
		HasToken  bool       `json:"hasToken"`
		IsExpired bool       `json:"isExpired"`
		ExpiresOn *time.Time `json:"expiresOn,omitempty"`
		Account   string     `json:"account,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		st, err := s.manager.Status(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "unable to read token state")
			return
		}

		resp := statusResponse{
			HasToken:  st.HasToken,
			IsExpired: st.Expired,
		}
		if st.HasToken {
			expiresOn := st.ExpiresOn
			resp.ExpiresOn = &expiresOn
			resp.Account = st.Account.Username
		}

		writeJSON(w, resp)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "error encoding response", http.StatusInternalServerError)
		return
	}
}

// writeError emits the structured failure body shared by all endpoints
func writeError(w http.ResponseWriter, status int, message string) {
	type errorResponse struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Success: false, Error: message}); err != nil {
		http.Error(w, "error encoding response", http.StatusInternalServerError)
	}
}
