package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunState represents the lifecycle state of a submitted run.
type RunState string

const (
	StatePending   RunState = "pending"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
	StateCancelled RunState = "cancelled"
)

// RunRequest is the configuration a client submits for one optimization.
type RunRequest struct {
	Problem   string         `json:"problem"`
	Optimizer string         `json:"optimizer"`
	Title     string         `json:"title,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
	SolverFD  bool           `json:"solverFd,omitempty"`
	FDStep    float64        `json:"fdStep,omitempty"`
	// Trace enables per-evaluation trace recording when the server has a
	// store configured.
	Trace bool `json:"trace,omitempty"`
}

// Run is one optimization run owned by the server.
type Run struct {
	ID          string               `json:"id"`
	State       RunState             `json:"state"`
	Request     RunRequest           `json:"request"`
	Status      string               `json:"status,omitempty"` // backend termination status
	Objective   float64              `json:"objective"`
	Variables   map[string][]float64 `json:"variables,omitempty"`
	Evaluations int                  `json:"evaluations"`
	StartTime   time.Time            `json:"startTime"`
	EndTime     *time.Time           `json:"endTime,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// clone returns a deep copy so callers can read a run while the worker
// keeps mutating the managed one through Update.
func (r *Run) clone() *Run {
	c := *r
	if r.EndTime != nil {
		t := *r.EndTime
		c.EndTime = &t
	}
	if r.Variables != nil {
		c.Variables = make(map[string][]float64, len(r.Variables))
		for name, vals := range r.Variables {
			c.Variables[name] = append([]float64(nil), vals...)
		}
	}
	return &c
}

// Manager owns the run table and the progress broadcaster.
type Manager struct {
	mu          sync.RWMutex
	runs        map[string]*Run
	broadcaster *EventBroadcaster
}

// NewManager creates an empty run manager.
func NewManager() *Manager {
	return &Manager{
		runs:        make(map[string]*Run),
		broadcaster: NewEventBroadcaster(),
	}
}

// Create registers a new pending run for the given request.
func (m *Manager) Create(req RunRequest) *Run {
	m.mu.Lock()
	defer m.mu.Unlock()

	run := &Run{
		ID:        uuid.New().String(),
		State:     StatePending,
		Request:   req,
		StartTime: time.Now(),
	}
	m.runs[run.ID] = run
	return run.clone()
}

// Get retrieves a snapshot of a run by ID.
func (m *Manager) Get(id string) (*Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, exists := m.runs[id]
	if !exists {
		return nil, false
	}
	return run.clone(), true
}

// List returns snapshots of all runs.
func (m *Manager) List() []*Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := make([]*Run, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, run.clone())
	}
	return runs
}

// Update atomically mutates a run through the provided function.
func (m *Manager) Update(id string, fn func(*Run)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, exists := m.runs[id]
	if !exists {
		return fmt.Errorf("run not found: %s", id)
	}
	fn(run)
	return nil
}
