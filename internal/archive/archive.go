// Package archive stores rendered attendance-history exports in a
// configured backend. Exports are write-once blobs keyed by
// account/timestamp; the backend never interprets them.
package archive

import (
	"context"
	"io"
)

// Archiver is a storage backend for history exports.
type Archiver interface {
	// Put stores an export under key. size is the number of bytes that
	// will be read from r.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get retrieves an export by key and writes it to w.
	Get(ctx context.Context, key string, w io.Writer) error

	// ValidateSetup verifies that the backend is accessible and
	// properly configured.
	ValidateSetup(ctx context.Context) error
}
