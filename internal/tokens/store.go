package tokens

import "context"

// Store persists the single token record. Implementations must make Save
// atomic from a reader's point of view: Load never observes a partially
// written record.
type Store interface {
	// Load reads the persisted record. It returns nil, nil when no record
	// exists or the stored data is unreadable as a record; corruption
	// degrades to "absent" rather than surfacing as an error.
	Load(ctx context.Context) (*Record, error)

	// Save durably writes the full record, replacing any prior content.
	// Write failures surface to the caller; they are never swallowed.
	Save(ctx context.Context, rec *Record) error

	// CheckHealth verifies the storage backend is usable.
	CheckHealth(ctx context.Context) error
}
