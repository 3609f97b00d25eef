package msauth

import (
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// ErrAuthFailed marks a provider rejection of a code or refresh-token
// exchange. Matched with errors.Is; detail lives on the wrapping *AuthError.
var ErrAuthFailed = errors.New("authorization failed")

// AuthError carries the provider-supplied reason for a rejected exchange.
type AuthError struct {
	Op          string // which exchange failed
	Code        string // provider error code, e.g. invalid_grant
	Description string // provider error description, when given
}

func (e *AuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Description)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *AuthError) Unwrap() error { return ErrAuthFailed }

// authError classifies an oauth2 exchange failure. Provider rejections
// become *AuthError; transport faults stay ordinary wrapped errors.
func authError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		code := re.ErrorCode
		if code == "" {
			code = re.Response.Status
		}
		return &AuthError{Op: op, Code: code, Description: re.ErrorDescription}
	}
	return fmt.Errorf("%s: %w", op, err)
}
