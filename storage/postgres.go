package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/dqfoundry/dqengine/engine"
)

// PostgresCheckStore implements CheckStore backed by PostgreSQL. Check
// arguments are stored as jsonb. See migrations/ for the schema.
type PostgresCheckStore struct {
	db *sql.DB
}

// NewPostgresCheckStore creates a PostgreSQL-backed check store.
func NewPostgresCheckStore(db *sql.DB) *PostgresCheckStore {
	return &PostgresCheckStore{db: db}
}

// Add inserts a new check definition, assigning an ID when empty.
func (s *PostgresCheckStore) Add(check *Check) error {
	if check.Spec.Check == nil {
		return fmt.Errorf("check %s has no check block", check.ID)
	}
	if check.ID == "" {
		check.ID = uuid.NewString()
	}

	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM quality_checks WHERE id = $1)
	`, check.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check existence: %w", err)
	}
	if exists {
		return fmt.Errorf("check with ID %s already exists", check.ID)
	}

	arguments, err := json.Marshal(check.Spec.Check.Arguments)
	if err != nil {
		return fmt.Errorf("failed to encode arguments: %w", err)
	}

	now := time.Now()
	check.CreatedAt = now
	check.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO quality_checks (id, name, criticality, function, arguments, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, check.ID, check.Spec.Name, check.Spec.Criticality, check.Spec.Check.Function,
		arguments, check.CreatedAt, check.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert check: %w", err)
	}

	return nil
}

// Get retrieves a check definition by ID.
func (s *PostgresCheckStore) Get(id string) (*Check, error) {
	row := s.db.QueryRow(`
		SELECT id, name, criticality, function, arguments, created_at, updated_at
		FROM quality_checks
		WHERE id = $1
	`, id)

	check, err := scanCheck(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("check %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get check: %w", err)
	}
	return check, nil
}

// List returns all check definitions in creation order.
func (s *PostgresCheckStore) List() ([]*Check, error) {
	rows, err := s.db.Query(`
		SELECT id, name, criticality, function, arguments, created_at, updated_at
		FROM quality_checks
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checks: %w", err)
	}
	defer rows.Close()

	var checks []*Check
	for rows.Next() {
		check, err := scanCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan check: %w", err)
		}
		checks = append(checks, check)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checks: %w", err)
	}

	return checks, nil
}

// Update modifies an existing check definition.
func (s *PostgresCheckStore) Update(check *Check) error {
	if check.Spec.Check == nil {
		return fmt.Errorf("check %s has no check block", check.ID)
	}

	existing, err := s.Get(check.ID)
	if err != nil {
		return err
	}
	check.CreatedAt = existing.CreatedAt
	check.UpdatedAt = time.Now()

	arguments, err := json.Marshal(check.Spec.Check.Arguments)
	if err != nil {
		return fmt.Errorf("failed to encode arguments: %w", err)
	}

	_, err = s.db.Exec(`
		UPDATE quality_checks
		SET name = $2, criticality = $3, function = $4, arguments = $5, updated_at = $6
		WHERE id = $1
	`, check.ID, check.Spec.Name, check.Spec.Criticality, check.Spec.Check.Function,
		arguments, check.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update check: %w", err)
	}

	return nil
}

// Delete removes a check definition.
func (s *PostgresCheckStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM quality_checks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete check: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("check %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheck(row rowScanner) (*Check, error) {
	var check Check
	var name, criticality, function string
	var arguments []byte
	if err := row.Scan(&check.ID, &name, &criticality, &function, &arguments,
		&check.CreatedAt, &check.UpdatedAt); err != nil {
		return nil, err
	}

	var args map[string]any
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return nil, fmt.Errorf("failed to decode arguments: %w", err)
		}
	}

	check.Spec = engine.CheckSpec{
		Name:        name,
		Criticality: criticality,
		Check: &engine.CheckBlock{
			Function:  function,
			Arguments: args,
		},
	}
	return &check, nil
}
