package types

import (
	"context"
	"time"
)

// RemoteClient defines the storage-provider operations the filesystem
// adapter depends on. Paths are normalized remote paths: leading slash,
// no trailing slash, and "" for the account root. Implementations report
// an absent path via a structured PATH_NOT_FOUND error and a failed
// revision precondition via REVISION_CONFLICT.
type RemoteClient interface {
	// GetMetadata returns the entry at path.
	GetMetadata(ctx context.Context, path string) (*Metadata, error)

	// ListFolder returns the immediate children of a folder, non-recursive,
	// in the order the provider reports them.
	ListFolder(ctx context.Context, path string) ([]Metadata, error)

	// Download returns the full content and current revision of a file.
	Download(ctx context.Context, path string) ([]byte, string, error)

	// Upload replaces the full content of a file. A non-empty rev is an
	// optimistic-concurrency precondition: the write succeeds only if the
	// remote entry still carries that revision. An empty rev adds the file
	// unconditionally. Returns the new revision.
	Upload(ctx context.Context, path string, data []byte, rev string) (string, error)

	// Move relocates an entry, folders recursively.
	Move(ctx context.Context, src, dst string) error

	// Copy duplicates an entry server-side.
	Copy(ctx context.Context, src, dst string) error

	// Delete removes an entry, folders recursively.
	Delete(ctx context.Context, path string) error

	// CreateFolder creates a folder at path.
	CreateFolder(ctx context.Context, path string) error
}

// MetricsCollector defines the metrics surface the adapter records into.
type MetricsCollector interface {
	RecordOperation(operation string, duration time.Duration, success bool)
	RecordCacheHit()
	RecordCacheMiss()
	RecordRemoteCall(operation string, err error)
	SetOpenHandles(count int)
}
