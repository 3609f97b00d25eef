// Package tokens manages the lifecycle of the single delegated-account token
// record: durable storage, expiry policy, and lazy refresh on demand.
package tokens

import "time"

// Record is the sole persisted entity: the token state for the delegated
// account. It is always written whole; a refresh replaces the record, never
// patches it.
type Record struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresOn    time.Time `json:"expiresOn"`
	SavedAt      time.Time `json:"savedAt"`
	Account      Account   `json:"account"`
}

// Account identifies the delegated account. Informational only; never used
// for authorization decisions.
type Account struct {
	Username string `json:"username"`
}

// HasRefreshToken reports whether the record carries a refresh token.
func (r *Record) HasRefreshToken() bool {
	return r != nil && r.RefreshToken != ""
}
