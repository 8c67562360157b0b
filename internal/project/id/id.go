// Package id provides unique identifier generation for projects.
package id

import (
	"github.com/google/uuid"
)

// Prefix starts every project ID.
const Prefix = "prj-"

// Generate creates a new unique project ID.
// Format: prj-<uuid v7>, so IDs sort by creation time.
// Example: prj-01928c6e-7b3a-7c1e-9f0a-3d2b5e6f7a8b
func Generate() string {
	u, err := uuid.NewV7()
	if err != nil {
		// Fallback to a random v4 if the clock sequence cannot be read
		return Prefix + uuid.NewString()
	}
	return Prefix + u.String()
}

// Valid reports whether s looks like an ID produced by Generate.
func Valid(s string) bool {
	if len(s) <= len(Prefix) || s[:len(Prefix)] != Prefix {
		return false
	}
	_, err := uuid.Parse(s[len(Prefix):])
	return err == nil
}
