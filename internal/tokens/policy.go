package tokens

import "time"

// DefaultBuffer is the safety margin subtracted from an expiry instant. It
// must cover the full duration of the network call that will use the token.
const DefaultBuffer = 5 * time.Minute

// Policy decides whether a stored expiry instant is still usable.
type Policy struct {
	buffer time.Duration
	now    func() time.Time
}

// NewPolicy creates an expiry policy with the given safety buffer.
// Non-positive buffers fall back to DefaultBuffer.
func NewPolicy(buffer time.Duration) *Policy {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Policy{buffer: buffer, now: time.Now}
}

// Expired reports whether expiresOn is past or within the safety buffer.
// A zero instant is treated as expired: an unknown expiry must fail toward
// refresh, never toward false validity.
func (p *Policy) Expired(expiresOn time.Time) bool {
	if expiresOn.IsZero() {
		return true
	}
	return !p.now().Before(expiresOn.Add(-p.buffer))
}
