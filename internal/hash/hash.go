// Package hash computes content digests for de-duplication and integrity
// checks. The digest is hex-encoded SHA-256; identical content always yields
// the identical digest, so it doubles as the dedup key within a drive.
package hash

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Sum hashes an in-memory buffer.
func Sum(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}

// SumReader hashes a stream. Read errors propagate; a partial read never
// produces a digest.
func SumReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ObjectStore is the subset of the blob store needed to hash files at rest.
type ObjectStore interface {
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)
}

// SumObject streams an object from the blob store through the hasher. The
// read is abortable via ctx through the store's own cancellation.
func SumObject(ctx context.Context, store ObjectStore, key string) (string, error) {
	rc, err := store.GetReader(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to open object %s: %w", key, err)
	}
	defer rc.Close()

	return SumReader(rc)
}
