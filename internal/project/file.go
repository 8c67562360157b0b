package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/maauso/cutline-api/internal/project/id"
)

// FileExtension is appended to project IDs to name project files.
const FileExtension = ".cutline.json"

// Compile-time check that FileRepository implements Repository.
var _ Repository = (*FileRepository)(nil)

// FileRepository stores each project as an indented JSON document in a
// directory, one file per project. Writes go through a temp file and a
// rename, so readers never see a partial document.
type FileRepository struct {
	mu  sync.RWMutex
	dir string
}

// NewFileRepository creates the directory if needed.
func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create project directory: %w", err)
	}
	return &FileRepository{dir: dir}, nil
}

func (r *FileRepository) path(projectID string) (string, error) {
	if !id.Valid(projectID) {
		return "", ErrNotFound
	}
	return filepath.Join(r.dir, projectID+FileExtension), nil
}

// Save writes p to disk.
func (r *FileRepository) Save(ctx context.Context, p *Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := r.path(p.ID)
	if err != nil {
		return fmt.Errorf("save project %q: invalid id", p.ID)
	}

	data, err := json.MarshalIndent(p.Clone(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tmp, err := os.CreateTemp(r.dir, ".project-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write project: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close project file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace project file: %w", err)
	}
	return nil
}

// FindByID reads a project from disk.
func (r *FileRepository) FindByID(ctx context.Context, projectID string) (*Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := r.path(projectID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return readProject(path)
}

// List reads every project file in the directory.
func (r *FileRepository) List(ctx context.Context) ([]*Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read project directory: %w", err)
	}

	result := make([]*Project, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), FileExtension) {
			continue
		}
		p, err := readProject(filepath.Join(r.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

// Delete removes a project file.
func (r *FileRepository) Delete(ctx context.Context, projectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := r.path(projectID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

func readProject(path string) (*Project, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is built from a validated project id
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read project: %w", err)
	}

	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode project %s: %w", filepath.Base(path), err)
	}
	return &p, nil
}
