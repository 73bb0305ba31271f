package main

import (
	"time"

	"github.com/dqfoundry/dqengine/engine"
	"github.com/dqfoundry/dqengine/storage"
)

// API request and response models.

// ValidateRequest carries check metadata to validate.
type ValidateRequest struct {
	Checks []engine.CheckSpec `json:"checks"`
}

// ValidateResponse reports every validation problem found.
type ValidateResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ApplyRequest carries records to check. Checks come inline or, when
// omitted, from the stored definitions. Columns fixes the column order;
// when empty it is inferred from the first record. Split requests the
// valid/invalid partition instead of one annotated record set.
type ApplyRequest struct {
	Records []map[string]any   `json:"records"`
	Columns []string           `json:"columns,omitempty"`
	Checks  []engine.CheckSpec `json:"checks,omitempty"`
	Split   bool               `json:"split,omitempty"`
}

// ApplyResponse returns the records with the diagnostic columns attached.
type ApplyResponse struct {
	Records        []map[string]any `json:"records"`
	EvaluationTime string           `json:"evaluationTime"`
}

// ApplySplitResponse returns the valid and invalid partitions.
type ApplySplitResponse struct {
	Valid          []map[string]any `json:"valid"`
	Invalid        []map[string]any `json:"invalid"`
	EvaluationTime string           `json:"evaluationTime"`
}

// CheckResponse represents a stored check definition.
type CheckResponse struct {
	ID          string             `json:"id"`
	Name        string             `json:"name,omitempty"`
	Criticality string             `json:"criticality,omitempty"`
	Check       *engine.CheckBlock `json:"check"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// ChecksListResponse lists stored check definitions.
type ChecksListResponse struct {
	Checks []CheckResponse `json:"checks"`
}

func toCheckResponse(check *storage.Check) CheckResponse {
	return CheckResponse{
		ID:          check.ID,
		Name:        check.Spec.Name,
		Criticality: check.Spec.Criticality,
		Check:       check.Spec.Check,
		CreatedAt:   check.CreatedAt,
		UpdatedAt:   check.UpdatedAt,
	}
}
