package store

import (
	"fmt"
	"time"
)

// RunConfig holds the configuration a run was started with. Kept as a
// plain copy here so records stay readable even if the live config types
// change.
type RunConfig struct {
	Problem   string         `json:"problem"`
	Optimizer string         `json:"optimizer"`
	Title     string         `json:"title,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
	SolverFD  bool           `json:"solverFd,omitempty"`
	FDStep    float64        `json:"fdStep,omitempty"`
}

// RunRecord is the persisted result of one optimization run. The solver's
// internal state is deliberately not saved; runs are one-shot and the
// iteration state lives inside the external library.
type RunRecord struct {
	// RunID is the unique identifier for this run.
	RunID string `json:"runId"`

	// Config holds the configuration the run was started with.
	Config RunConfig `json:"config"`

	// Status is the backend's termination status, or "failed"/"cancelled"
	// for runs that never produced a solution.
	Status string `json:"status"`

	// Objective is the objective value at the reported optimum.
	Objective float64 `json:"objective"`

	// Variables holds the optimal design point keyed by parameter name.
	Variables map[string][]float64 `json:"variables,omitempty"`

	// Evaluations counts model evaluations driven by the solver.
	Evaluations int `json:"evaluations"`

	// StartTime/EndTime bracket the run.
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`

	// Error carries the failure message for runs that errored out.
	Error string `json:"error,omitempty"`
}

// RecordInfo is run metadata without the variable payload, for listings.
type RecordInfo struct {
	RunID       string    `json:"runId"`
	Problem     string    `json:"problem"`
	Optimizer   string    `json:"optimizer"`
	Status      string    `json:"status"`
	Objective   float64   `json:"objective"`
	Evaluations int       `json:"evaluations"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
}

// ToInfo converts a full record to its listing metadata.
func (r *RunRecord) ToInfo() RecordInfo {
	return RecordInfo{
		RunID:       r.RunID,
		Problem:     r.Config.Problem,
		Optimizer:   r.Config.Optimizer,
		Status:      r.Status,
		Objective:   r.Objective,
		Evaluations: r.Evaluations,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
	}
}

// Validate checks the record has the fields every consumer relies on.
func (r *RunRecord) Validate() error {
	if r.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if r.Config.Problem == "" {
		return &ValidationError{Field: "Config.Problem", Reason: "cannot be empty"}
	}
	if r.Config.Optimizer == "" {
		return &ValidationError{Field: "Config.Optimizer", Reason: "cannot be empty"}
	}
	if r.Status == "" {
		return &ValidationError{Field: "Status", Reason: "cannot be empty"}
	}
	if r.StartTime.IsZero() {
		return &ValidationError{Field: "StartTime", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError represents a run-record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Reason)
}
