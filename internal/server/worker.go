package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mdokit/optdriver/internal/bench"
	"github.com/mdokit/optdriver/internal/driver"
	"github.com/mdokit/optdriver/internal/solver"
	"github.com/mdokit/optdriver/internal/store"
)

// runOptimization executes one run in the background. The driver and the
// backend are synchronous; this goroutine blocks for the whole run while
// the observer keeps the manager's view of progress fresh.
func runOptimization(ctx context.Context, m *Manager, recorder *store.FSStore, runID string) error {
	run, exists := m.Get(runID)
	if !exists {
		return fmt.Errorf("run not found: %s", runID)
	}

	if err := m.Update(runID, func(r *Run) { r.State = StateRunning }); err != nil {
		return err
	}

	slog.Info("Starting run", "run_id", runID, "problem", run.Request.Problem, "optimizer", run.Request.Optimizer)

	model, err := bench.New(run.Request.Problem)
	if err != nil {
		markRunFailed(m, runID, err)
		return err
	}

	drv := driver.New(model, driver.Config{
		Optimizer:    run.Request.Optimizer,
		Title:        run.Request.Title,
		Options:      run.Request.Options,
		SolverFD:     run.Request.SolverFD,
		FDStep:       run.Request.FDStep,
		PrintResults: false,
	})

	var trace *store.TraceWriter
	if recorder != nil && run.Request.Trace {
		trace, err = store.NewTraceWriter(recorder.BaseDir(), runID)
		if err != nil {
			slog.Warn("Failed to open trace writer", "run_id", runID, "error", err)
			trace = nil
		} else {
			defer trace.Close()
		}
	}

	objName := objectiveName(model)
	drv.SetObserver(func(eval int, point map[string][]float64, ev solver.Evaluation) {
		objective := 0.0
		if vals, ok := ev.Functions[objName]; ok && len(vals) > 0 {
			objective = vals[0]
		}
		m.Update(runID, func(r *Run) {
			r.Evaluations = eval
			r.Objective = objective
		})
		if trace != nil {
			trace.Write(store.TraceEntry{
				Eval:      eval,
				Objective: objective,
				Fail:      ev.Fail,
				Timestamp: time.Now(),
			})
		}
	})

	// Check for cancellation before handing control to the backend; once
	// the solver starts it owns the loop until it returns.
	select {
	case <-ctx.Done():
		markRunCancelled(m, runID)
		return ctx.Err()
	default:
	}

	progressDone := make(chan struct{})
	go monitorProgress(ctx, m, runID, run.StartTime, progressDone)

	sol, err := drv.Run(ctx)
	close(progressDone)
	if err != nil {
		markRunFailed(m, runID, err)
		saveRecord(recorder, m, runID)
		return err
	}

	endTime := time.Now()
	err = m.Update(runID, func(r *Run) {
		r.State = StateCompleted
		r.Status = sol.Status
		r.Objective = sol.Objective
		r.Variables = sol.Variables
		r.Evaluations = drv.Evaluations()
		r.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	elapsed := endTime.Sub(run.StartTime)
	eps := 0.0
	if elapsed.Seconds() > 0 {
		eps = float64(drv.Evaluations()) / elapsed.Seconds()
	}

	slog.Info("Run completed",
		"run_id", runID,
		"elapsed", elapsed,
		"objective", sol.Objective,
		"status", sol.Status,
		"evals_per_second", eps,
	)

	m.broadcaster.Broadcast(ProgressEvent{
		RunID:       runID,
		State:       StateCompleted,
		Evaluations: drv.Evaluations(),
		Objective:   sol.Objective,
		EPS:         eps,
		Timestamp:   time.Now(),
	})

	if trace != nil {
		if err := trace.Flush(); err != nil {
			slog.Warn("Failed to flush trace", "run_id", runID, "error", err)
		}
	}
	saveRecord(recorder, m, runID)
	return nil
}

// monitorProgress periodically broadcasts progress while the solver runs.
func monitorProgress(ctx context.Context, m *Manager, runID string, startTime time.Time, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			run, exists := m.Get(runID)
			if !exists {
				return
			}
			elapsed := time.Since(startTime).Seconds()
			eps := 0.0
			if elapsed > 0 {
				eps = float64(run.Evaluations) / elapsed
			}
			m.broadcaster.Broadcast(ProgressEvent{
				RunID:       runID,
				State:       run.State,
				Evaluations: run.Evaluations,
				Objective:   run.Objective,
				EPS:         eps,
				Timestamp:   time.Now(),
			})
		}
	}
}

func markRunFailed(m *Manager, runID string, err error) {
	endTime := time.Now()
	m.Update(runID, func(r *Run) {
		r.State = StateFailed
		r.Error = err.Error()
		r.EndTime = &endTime
	})
	slog.Error("Run failed", "run_id", runID, "error", err)
}

func markRunCancelled(m *Manager, runID string) {
	endTime := time.Now()
	m.Update(runID, func(r *Run) {
		r.State = StateCancelled
		r.EndTime = &endTime
	})
	slog.Info("Run cancelled", "run_id", runID)
}

// saveRecord persists the run's final state when a store is configured.
func saveRecord(recorder *store.FSStore, m *Manager, runID string) {
	if recorder == nil {
		return
	}
	run, exists := m.Get(runID)
	if !exists {
		return
	}

	endTime := time.Now()
	if run.EndTime != nil {
		endTime = *run.EndTime
	}
	status := run.Status
	if status == "" {
		status = string(run.State)
	}

	record := &store.RunRecord{
		RunID: runID,
		Config: store.RunConfig{
			Problem:   run.Request.Problem,
			Optimizer: run.Request.Optimizer,
			Title:     run.Request.Title,
			Options:   run.Request.Options,
			SolverFD:  run.Request.SolverFD,
			FDStep:    run.Request.FDStep,
		},
		Status:      status,
		Objective:   run.Objective,
		Variables:   run.Variables,
		Evaluations: run.Evaluations,
		StartTime:   run.StartTime,
		EndTime:     endTime,
		Error:       run.Error,
	}
	if err := recorder.SaveRecord(runID, record); err != nil {
		slog.Error("Failed to save run record", "run_id", runID, "error", err)
	}
}

// objectiveName returns the first registered objective's output name.
func objectiveName(model *bench.Model) string {
	objs := model.Objectives()
	if len(objs) == 0 {
		return ""
	}
	return objs[0].Name()
}
