// Package blobstore provides storage abstraction for hierarchy archives.
//
// BlobStore is the interface for reading and writing immutable archive
// blobs. Implementations must be safe for concurrent use.
//
// Built-in implementations:
//
//   - MemoryStore: in-memory, for tests and ephemeral hierarchies
//   - LocalStore: local filesystem with mmap reads
//   - s3.Store: Amazon S3 with range reads and managed uploads
//   - minio.Store: MinIO and other S3-compatible object stores
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for accessing immutable archive blobs.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create creates a new writable blob. The blob becomes visible
	// under its name once Close returns.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a blob atomically, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs matching the prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	// ReadAt reads len(p) bytes starting at offset off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	io.Closer

	// Size returns the size of the blob in bytes.
	Size() int64
}

// Mappable is an optional interface for Blobs that support memory mapping.
type Mappable interface {
	// Bytes returns the underlying byte slice.
	// The slice is valid until the Blob is closed.
	// This is a zero-copy operation if supported.
	Bytes() ([]byte, error)
}

// WritableBlob is a write-once handle to a new blob.
type WritableBlob interface {
	io.Writer
	io.Closer

	// Sync flushes buffered data to stable storage where the
	// implementation supports it.
	Sync() error
}

// ReadAll reads the full content of a blob. It uses the zero-copy path
// when the blob is Mappable.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}

	out := make([]byte, b.Size())
	if len(out) == 0 {
		return out, nil
	}

	n, err := b.ReadAt(ctx, out, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if int64(n) != int64(len(out)) {
		return nil, io.ErrUnexpectedEOF
	}
	return out, nil
}
