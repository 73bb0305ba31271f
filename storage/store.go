// Package storage persists and loads declarative check definitions: a CRUD
// store interface with in-memory and PostgreSQL implementations, and
// YAML/JSON file loading.
package storage

import (
	"errors"
	"time"

	"github.com/dqfoundry/dqengine/engine"
)

// ErrMissingFile reports that a checks file does not exist at the given path.
var ErrMissingFile = errors.New("checks file missing")

// Check is one stored check definition.
type Check struct {
	ID        string
	Spec      engine.CheckSpec
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CheckStore manages check definition persistence and retrieval.
type CheckStore interface {
	// Add a new check definition. An empty ID is assigned one.
	Add(check *Check) error

	// Get a check definition by ID.
	Get(id string) (*Check, error)

	// List all check definitions in creation order.
	List() ([]*Check, error)

	// Update an existing check definition.
	Update(check *Check) error

	// Delete a check definition.
	Delete(id string) error
}

// Specs extracts the metadata specs from stored checks, in order. The result
// feeds engine.BuildRules directly.
func Specs(stored []*Check) []engine.CheckSpec {
	specs := make([]engine.CheckSpec, len(stored))
	for i, c := range stored {
		specs[i] = c.Spec
	}
	return specs
}
