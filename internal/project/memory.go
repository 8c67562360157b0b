package project

import (
	"context"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access.
type MemoryRepository struct {
	mu       sync.RWMutex
	projects map[string]*Project
}

// NewMemoryRepository creates a new in-memory project repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		projects: make(map[string]*Project),
	}
}

// Save stores a clone of p to avoid external mutations.
func (r *MemoryRepository) Save(_ context.Context, p *Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[p.ID] = p.Clone()
	return nil
}

// FindByID returns a clone to prevent external mutations.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

// List returns clones of all projects.
func (r *MemoryRepository) List(_ context.Context) ([]*Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Project, 0, len(r.projects))
	for _, p := range r.projects {
		result = append(result, p.Clone())
	}
	return result, nil
}

// Delete removes a project.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[id]; !ok {
		return ErrNotFound
	}
	delete(r.projects, id)
	return nil
}
