// Package graph sends mail through the Microsoft Graph API on behalf of the
// delegated account.
package graph

import (
	"fmt"
	"strings"
)

// Message is an outbound mail message as accepted from callers. Cc and Bcc
// are explicit optional lists; when empty they are left out of the wire
// payload entirely.
type Message struct {
	To          []string `json:"to"`
	Cc          []string `json:"cc,omitempty"`
	Bcc         []string `json:"bcc,omitempty"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	ContentType string   `json:"contentType,omitempty"` // "Text" (default) or "HTML"
}

// ValidationError reports a malformed message field. Raised before any
// token or network access.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Validate checks the message for required fields and well-formed
// addresses.
func (m *Message) Validate() error {
	if len(m.To) == 0 {
		return &ValidationError{Field: "to", Message: "at least one recipient is required"}
	}

	lists := []struct {
		field string
		addrs []string
	}{
		{"to", m.To},
		{"cc", m.Cc},
		{"bcc", m.Bcc},
	}
	for _, list := range lists {
		for _, addr := range list.addrs {
			if !strings.Contains(addr, "@") {
				return &ValidationError{Field: list.field, Message: fmt.Sprintf("%q is not a valid address", addr)}
			}
		}
	}

	if strings.TrimSpace(m.Subject) == "" {
		return &ValidationError{Field: "subject", Message: "subject is required"}
	}
	if m.Body == "" {
		return &ValidationError{Field: "body", Message: "body is required"}
	}

	switch m.ContentType {
	case "", "Text", "HTML":
	default:
		return &ValidationError{Field: "contentType", Message: `must be "Text" or "HTML"`}
	}

	return nil
}

// Wire types for the Graph sendMail payload.

type sendMailRequest struct {
	Message         outboundMessage `json:"message"`
	SaveToSentItems bool            `json:"saveToSentItems"`
}

type outboundMessage struct {
	Subject       string      `json:"subject"`
	Body          itemBody    `json:"body"`
	ToRecipients  []recipient `json:"toRecipients"`
	CcRecipients  []recipient `json:"ccRecipients,omitempty"`
	BccRecipients []recipient `json:"bccRecipients,omitempty"`
}

type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type emailAddress struct {
	Address string `json:"address"`
}

// recipients maps addresses to Graph recipient entries, returning nil for
// an empty list so omitempty drops the field.
func recipients(addrs []string) []recipient {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]recipient, len(addrs))
	for i, addr := range addrs {
		out[i] = recipient{EmailAddress: emailAddress{Address: addr}}
	}
	return out
}
