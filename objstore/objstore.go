// Package objstore implements the artifact object store (spec.md §4.5's
// FileSystem abstraction): one interface over the object-store backends a
// deployment might use, with find/get/put/rm/copy/exists plus the
// presigned-URL and multipart-initiation operations the upload package
// builds chunked transfers on top of.
package objstore

import (
	"context"
	"io"
	"time"
)

// FileInfo describes one stored object, analogous to the information the
// catalog needs to render a listing without fetching object bytes.
type FileInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
	IsDir        bool
}

// FileSystem is the storage backend contract every concrete backend (S3,
// local disk) implements. Paths are backend-relative; the caller
// (keystore/catalog layer) owns the storage-key prefix scheme.
type FileSystem interface {
	// Find lists object paths under prefix, matching spec.md's recursive
	// listing semantics.
	Find(ctx context.Context, prefix string) ([]string, error)

	// FindInfo lists FileInfo records under prefix, for listings that need
	// size/mtime without a second round trip per object.
	FindInfo(ctx context.Context, prefix string) ([]FileInfo, error)

	// Get opens a reader over the object at path.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Put writes r to path, returning the number of bytes written.
	Put(ctx context.Context, path string, r io.Reader) (int64, error)

	// Rm deletes the object at path. Deleting a path that does not exist
	// is not an error.
	Rm(ctx context.Context, path string) error

	// Copy duplicates the object at src to dst within the same backend.
	Copy(ctx context.Context, src, dst string) error

	// Exists reports whether an object exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// GeneratePresignedURL returns a time-limited URL a client can use to
	// fetch or upload the object at path directly, bypassing the registry
	// for the transfer itself.
	GeneratePresignedURL(ctx context.Context, path string, ttl time.Duration, method string) (string, error)

	// CreateMultipartUpload begins a backend-native multipart upload and
	// returns an opaque upload id the upload package's session tracks.
	CreateMultipartUpload(ctx context.Context, path string) (uploadID string, err error)
}
