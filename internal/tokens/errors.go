package tokens

import "errors"

// ErrReauthRequired indicates no usable token chain exists; the only remedy
// is to repeat the authorization-code flow. Never retried automatically.
var ErrReauthRequired = errors.New("reauthorization required")
