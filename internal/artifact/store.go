// Package artifact implements hash-verified, content-addressable evidence
// storage. Every byte stream is written in fixed-size chunks while a
// SHA-256 digest is folded over the same chunks, so the recorded hash is
// always the hash of the bytes that actually landed in storage.
package artifact

import (
	"context"
	"errors"
	"io"
)

// Sentinel errors for the artifact package.
var (
	// ErrInvalidPath is returned when a logical path escapes the storage
	// root. This is the sole defense against directory traversal via
	// attacker-controlled filenames.
	ErrInvalidPath = errors.New("artifact: invalid storage path")

	// ErrObjectNotFound is returned when reading a path with no bytes.
	ErrObjectNotFound = errors.New("artifact: object not found")

	// ErrTooLarge is returned when an upload exceeds the configured ceiling.
	ErrTooLarge = errors.New("artifact: file exceeds size limit")
)

// saveChunkSize is the streaming unit for Save implementations.
const saveChunkSize = 8 * 1024

// Store is the capability set every artifact backend provides. Selection
// between backends is a construction-time choice; callers never branch on
// the backend kind.
type Store interface {
	// Save streams r to durable storage under logicalPath, computing the
	// SHA-256 digest as it writes. Returns the realized path, the byte
	// count actually written, and the hex digest. Declared sizes or hashes
	// from the caller are never trusted.
	Save(ctx context.Context, r io.Reader, logicalPath string) (path string, size int64, sha256Hex string, err error)

	// Read returns the full contents at logicalPath, or ErrObjectNotFound.
	Read(ctx context.Context, logicalPath string) ([]byte, error)

	// Delete removes the bytes at logicalPath. Returns false when nothing
	// was stored there.
	Delete(ctx context.Context, logicalPath string) (bool, error)

	// Exists reports whether bytes are stored at logicalPath.
	Exists(ctx context.Context, logicalPath string) (bool, error)
}
