package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wrale/oauth2-mail-relay/internal/tokens"
)

const (
	// DefaultBaseURL is the public Graph API root.
	DefaultBaseURL = "https://graph.microsoft.com"

	sendMailPath   = "/v1.0/me/sendMail"
	defaultTimeout = 30 * time.Second
)

// APIError is a non-authentication failure reported by the Graph API.
// Surfaced verbatim to the caller; never retried.
type APIError struct {
	Status  int    // HTTP status code
	Code    string // Graph error code, when given
	Message string // Graph error message, when given
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph api error %d: %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("graph api error %d", e.Status)
}

// Sender delivers messages through the Graph sendMail endpoint.
type Sender struct {
	client  *http.Client
	baseURL string
	newID   func() string
}

// Option configures a Sender.
type Option func(*Sender)

// WithBaseURL overrides the Graph API root; used by tests.
func WithBaseURL(u string) Option {
	return func(s *Sender) {
		if u != "" {
			s.baseURL = u
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) {
		s.client = c
	}
}

// NewSender creates a Graph mail sender with the provided options.
func NewSender(opts ...Option) *Sender {
	s := &Sender{
		client:  &http.Client{Timeout: defaultTimeout},
		baseURL: DefaultBaseURL,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send delivers msg using accessToken. It returns the message id: a
// client-generated uuid sent as the client-request-id header, since the
// sendMail endpoint responds 202 with an empty body and the correlation id
// is the only durable handle on the send.
//
// A 401 maps to tokens.ErrReauthRequired so callers know the stored token
// chain is dead; any other failure status becomes an *APIError.
func (s *Sender) Send(ctx context.Context, accessToken string, msg *Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	contentType := msg.ContentType
	if contentType == "" {
		contentType = "Text"
	}

	payload := sendMailRequest{
		Message: outboundMessage{
			Subject:       msg.Subject,
			Body:          itemBody{ContentType: contentType, Content: msg.Body},
			ToRecipients:  recipients(msg.To),
			CcRecipients:  recipients(msg.Cc),
			BccRecipients: recipients(msg.Bcc),
		},
		SaveToSentItems: true,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling mail payload: %w", err)
	}

	id := s.newID()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+sendMailPath, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("client-request-id", id)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending mail request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK:
		return id, nil

	case resp.StatusCode == http.StatusUnauthorized:
		return "", tokens.ErrReauthRequired

	default:
		return "", apiError(resp)
	}
}

// apiError decodes the Graph error envelope, falling back to the bare
// status when the body is not the expected shape.
func apiError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiErr
	}

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}

	return apiErr
}
