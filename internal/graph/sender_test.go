package graph

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wrale/oauth2-mail-relay/internal/tokens"
)

func testMessage() *Message {
	return &Message{
		To:      []string{"to@example.com"},
		Subject: "hello",
		Body:    "world",
	}
}

func TestSendSuccess(t *testing.T) {
	var gotReq *http.Request
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewSender(WithBaseURL(srv.URL))
	id, err := sender.Send(context.Background(), "the-token", testMessage())
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a message id")
	}

	if gotReq.URL.Path != "/v1.0/me/sendMail" {
		t.Errorf("path = %q, want /v1.0/me/sendMail", gotReq.URL.Path)
	}
	if got := gotReq.Header.Get("Authorization"); got != "Bearer the-token" {
		t.Errorf("authorization = %q", got)
	}
	if got := gotReq.Header.Get("client-request-id"); got != id {
		t.Errorf("client-request-id = %q, want returned id %q", got, id)
	}

	var payload struct {
		Message struct {
			Subject string `json:"subject"`
			Body    struct {
				ContentType string `json:"contentType"`
				Content     string `json:"content"`
			} `json:"body"`
			ToRecipients []struct {
				EmailAddress struct {
					Address string `json:"address"`
				} `json:"emailAddress"`
			} `json:"toRecipients"`
		} `json:"message"`
		SaveToSentItems bool `json:"saveToSentItems"`
	}
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if payload.Message.Subject != "hello" {
		t.Errorf("subject = %q", payload.Message.Subject)
	}
	if payload.Message.Body.ContentType != "Text" {
		t.Errorf("contentType = %q, want Text default", payload.Message.Body.ContentType)
	}
	if payload.Message.Body.Content != "world" {
		t.Errorf("content = %q", payload.Message.Body.Content)
	}
	if len(payload.Message.ToRecipients) != 1 || payload.Message.ToRecipients[0].EmailAddress.Address != "to@example.com" {
		t.Errorf("toRecipients = %+v", payload.Message.ToRecipients)
	}
	if !payload.SaveToSentItems {
		t.Error("saveToSentItems must be true")
	}
}

func TestSendOmitsEmptyCcBcc(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewSender(WithBaseURL(srv.URL))
	if _, err := sender.Send(context.Background(), "t", testMessage()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	var payload struct {
		Message map[string]interface{} `json:"message"`
	}
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatal(err)
	}
	if _, present := payload.Message["ccRecipients"]; present {
		t.Error("empty cc list must be omitted from the payload")
	}
	if _, present := payload.Message["bccRecipients"]; present {
		t.Error("empty bcc list must be omitted from the payload")
	}
}

func TestSendUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	sender := NewSender(WithBaseURL(srv.URL))
	_, err := sender.Send(context.Background(), "stale-token", testMessage())
	if !errors.Is(err, tokens.ErrReauthRequired) {
		t.Fatalf("401 must map to ErrReauthRequired, got %v", err)
	}
}

func TestSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"ErrorInvalidRecipients","message":"The recipient is invalid."}}`))
	}))
	defer srv.Close()

	sender := NewSender(WithBaseURL(srv.URL))
	_, err := sender.Send(context.Background(), "t", testMessage())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Errorf("status = %d", apiErr.Status)
	}
	if apiErr.Code != "ErrorInvalidRecipients" {
		t.Errorf("code = %q", apiErr.Code)
	}
	if apiErr.Message != "The recipient is invalid." {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestSendValidatesBeforeNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewSender(WithBaseURL(srv.URL))
	_, err := sender.Send(context.Background(), "t", &Message{})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if called {
		t.Error("validation failure must not reach the network")
	}
}
