package record

import (
	"context"
	"errors"
)

// ErrNotFound is returned by [Store.Load] when no record is persisted.
var ErrNotFound = errors.New("session record not found")

// ErrUnavailable wraps backend transport failures of a store implementation.
var ErrUnavailable = errors.New("record backend unavailable")

// ErrWatchActive is returned when Watch is called twice on one handle.
var ErrWatchActive = errors.New("watch already active on this handle")

// Change describes an externally-originated mutation of the record:
// another tab saved a new payload, or removed the record entirely.
type Change struct {
	// Payload is the new record content. Nil when Removed.
	Payload []byte
	// Removed is true when the record was cleared.
	Removed bool
}

// Store is one tab's handle on the shared persisted session record.
//
// Writes flow store-ward only from the owning tab; reads for cross-tab sync
// are lock-free and eventually consistent. Implementations must guarantee
// that Save and Clear never produce a Change on the same handle's Watch
// channel.
type Store interface {
	// Load returns the current payload, or [ErrNotFound] when absent.
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the record wholesale.
	Save(ctx context.Context, payload []byte) error

	// Clear removes the record. Clearing an absent record is not an error.
	Clear(ctx context.Context) error

	// Watch delivers externally-originated changes until ctx ends, at which
	// point the returned channel is closed. At most one watch per handle.
	Watch(ctx context.Context) (<-chan Change, error)

	// Close releases the handle. A closed handle must not be reused.
	Close() error
}
