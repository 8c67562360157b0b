// Package storage provides scratch space for intermediate media and
// publication of export artifacts. It defines the Storage interface (port)
// and implementations for local disk and S3.
package storage

import (
	"context"
)

// Storage defines the interface for scratch files and artifact publication.
type Storage interface {
	// TempDir creates a fresh scratch directory and returns its path.
	// The prefix is used as a hint for the directory name.
	TempDir(ctx context.Context, prefix string) (path string, err error)

	// CleanupTemp removes the specified scratch files or directories.
	// It continues cleanup even if some paths fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Publish uploads the file at path under key and returns its URL.
	// Returns ErrS3NotConfigured if no remote store is configured.
	Publish(ctx context.Context, key, path string) (url string, err error)
}
