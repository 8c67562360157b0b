package project

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a project cannot be found by ID.
var ErrNotFound = errors.New("project: not found")

// Repository defines the interface for project persistence.
// It acts as a port in the hexagonal architecture pattern.
type Repository interface {
	// Save persists a project snapshot.
	// If the project already exists, it is replaced.
	Save(ctx context.Context, p *Project) error

	// FindByID retrieves a project by its unique identifier.
	// Returns ErrNotFound if the project does not exist.
	FindByID(ctx context.Context, id string) (*Project, error)

	// List returns all projects.
	List(ctx context.Context) ([]*Project, error)

	// Delete removes a project from storage.
	// Returns ErrNotFound if the project does not exist.
	Delete(ctx context.Context, id string) error
}
