package storage

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryCheckStore implements CheckStore with a map. Thread-safe; useful
// for tests and for embedding the engine without a database.
type InMemoryCheckStore struct {
	checks map[string]*Check
	order  []string
	mu     sync.RWMutex
}

// NewInMemoryCheckStore creates an empty in-memory check store.
func NewInMemoryCheckStore() *InMemoryCheckStore {
	return &InMemoryCheckStore{
		checks: make(map[string]*Check),
	}
}

// Add stores a new check definition, assigning an ID when empty.
func (s *InMemoryCheckStore) Add(check *Check) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if check.ID == "" {
		check.ID = uuid.NewString()
	}
	if _, exists := s.checks[check.ID]; exists {
		return fmt.Errorf("check with ID %s already exists", check.ID)
	}

	now := time.Now()
	check.CreatedAt = now
	check.UpdatedAt = now
	s.checks[check.ID] = check
	s.order = append(s.order, check.ID)
	return nil
}

// Get retrieves a check definition by ID.
func (s *InMemoryCheckStore) Get(id string) (*Check, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	check, exists := s.checks[id]
	if !exists {
		return nil, fmt.Errorf("check with ID %s not found", id)
	}
	return check, nil
}

// List returns all check definitions in insertion order.
func (s *InMemoryCheckStore) List() ([]*Check, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Check, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.checks[id])
	}
	return out, nil
}

// Update replaces an existing check definition, preserving CreatedAt.
func (s *InMemoryCheckStore) Update(check *Check) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.checks[check.ID]
	if !exists {
		return fmt.Errorf("check with ID %s not found", check.ID)
	}

	check.CreatedAt = existing.CreatedAt
	check.UpdatedAt = time.Now()
	s.checks[check.ID] = check
	return nil
}

// Delete removes a check definition.
func (s *InMemoryCheckStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.checks[id]; !exists {
		return fmt.Errorf("check with ID %s not found", id)
	}

	delete(s.checks, id)
	s.order = slices.DeleteFunc(s.order, func(existing string) bool {
		return existing == id
	})
	return nil
}
