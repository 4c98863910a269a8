package xb

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned (wrapped) by Get for a key the store does not
// hold.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo is one entry of an Archive Store listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ArchiveStore is the object storage holding uploaded backup archives.
// Keys are relative to whatever prefix the implementation is configured
// with. Implementations must make Put atomic: an object becomes visible to
// List only once it is completely written.
type ArchiveStore interface {
	// List returns every object whose key starts with prefix, following
	// pagination to the end.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Get streams the object stored under key into w.
	Get(ctx context.Context, key string, w io.Writer) error

	// Put stores size bytes read from r under key.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Delete removes the object stored under key. Deleting a missing key is
	// not an error.
	Delete(ctx context.Context, key string) error

	// ValidateSetup verifies that the store is reachable and configured.
	ValidateSetup(ctx context.Context) error
}
