package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Common types used across domain models

// TestCategory classifies what a test case is probing for.
type TestCategory string

const (
	CategoryPositive TestCategory = "Positive"
	CategoryNegative TestCategory = "Negative"
	CategoryBoundary TestCategory = "Boundary"
	CategoryEdgeCase TestCategory = "Edge Case"
)

func (c TestCategory) IsValid() bool {
	switch c {
	case CategoryPositive, CategoryNegative, CategoryBoundary, CategoryEdgeCase:
		return true
	}
	return false
}

// Priority for test cases
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ExecStatus is the terminal status of one executed test case.
type ExecStatus string

const (
	ExecStatusPass  ExecStatus = "Pass"
	ExecStatusFail  ExecStatus = "Fail"
	ExecStatusError ExecStatus = "Error"
)

func (s ExecStatus) IsValid() bool {
	switch s {
	case ExecStatusPass, ExecStatusFail, ExecStatusError:
		return true
	}
	return false
}

// RunStatus represents the current state of a pipeline run
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusAnalyzing  RunStatus = "analyzing"
	RunStatusExploring  RunStatus = "exploring"
	RunStatusGenerating RunStatus = "generating"
	RunStatusExecuting  RunStatus = "executing"
	RunStatusReporting  RunStatus = "reporting"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelled  RunStatus = "cancelled"
)

func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusPending, RunStatusAnalyzing, RunStatusExploring,
		RunStatusGenerating, RunStatusExecuting, RunStatusReporting,
		RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// Timestamps provides common time fields
type Timestamps struct {
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// SetTimestamps sets CreatedAt and UpdatedAt to current time
func (t *Timestamps) SetTimestamps() {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
}

// JSONB is a wrapper for JSON data stored in PostgreSQL JSONB columns
type JSONB map[string]any

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}
