package attendance

import "context"

// Cache is the durable local store of attendance records for the
// authenticated user. It survives process restarts and is invalidated
// only by an explicit remote refresh overwriting it, or by a user
// switch wiping it.
type Cache interface {
	// Get returns the record with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// GetForDay returns the record for the given calendar-day key, or
	// ErrNotFound.
	GetForDay(ctx context.Context, day string) (*Record, error)

	// ListHistory returns the records whose day anchor falls inside the
	// range, newest first.
	ListHistory(ctx context.Context, r HistoryRange) ([]*Record, error)

	// Put upserts a record keyed by id. At most one record exists per
	// day; writing a record for an already-occupied day replaces it.
	Put(ctx context.Context, rec *Record) error

	// Replace atomically deletes the record with oldID and inserts rec,
	// in one transaction. Used when a placeholder id is superseded by
	// the durable remote id.
	Replace(ctx context.Context, oldID string, rec *Record) error

	// ReplaceHistory atomically replaces every cached record in the
	// range with recs.
	ReplaceHistory(ctx context.Context, r HistoryRange, recs []*Record) error

	// Owner returns the user the cache currently belongs to, or "" for
	// a fresh cache.
	Owner(ctx context.Context) (string, error)

	// SetOwner records the owning user.
	SetOwner(ctx context.Context, user string) error

	// Clear removes every record and the owner marker.
	Clear(ctx context.Context) error

	// Watch returns a channel yielding every record written to the
	// cache, so live observers see writes without a remote round trip.
	// The channel is closed when ctx is done.
	Watch(ctx context.Context) <-chan *Record

	// Close releases the underlying store.
	Close() error
}
