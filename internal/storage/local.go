package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrS3NotConfigured is returned when S3 operations are attempted
// without proper configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// LocalStorage implements the Storage interface using local disk.
// It keeps scratch directories under a configurable root and does not
// publish artifacts unless wrapped with S3Storage.
type LocalStorage struct {
	tempDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// The tempDir parameter specifies where scratch directories are created.
// If tempDir is empty, a cutline directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(tempDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "cutline")
	}

	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	return &LocalStorage{tempDir: tempDir}, nil
}

// Root returns the scratch root directory.
func (s *LocalStorage) Root() string {
	return s.tempDir
}

// TempDir creates a unique scratch directory under the root.
func (s *LocalStorage) TempDir(ctx context.Context, prefix string) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	dir, err := os.MkdirTemp(s.tempDir, prefix+"_*")
	if err != nil {
		return "", fmt.Errorf("create scratch directory: %w", err)
	}
	return dir, nil
}

// CleanupTemp removes the specified files or directories.
// It continues cleanup even if some paths fail to delete,
// returning the first error encountered.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.RemoveAll(p); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove temp path %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// Publish is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) Publish(_ context.Context, _, _ string) (string, error) {
	return "", ErrS3NotConfigured
}

// Verify interface implementation at compile time.
var _ Storage = (*LocalStorage)(nil)
