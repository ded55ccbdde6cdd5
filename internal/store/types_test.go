package store

import (
	"errors"
	"testing"
	"time"
)

func validRecord() *RunRecord {
	return &RunRecord{
		RunID: "run-1",
		Config: RunConfig{
			Problem:   "sphere",
			Optimizer: "BFGS",
		},
		Status:    "Converged",
		StartTime: time.Now(),
		EndTime:   time.Now(),
	}
}

func TestRecordValidate(t *testing.T) {
	if err := validRecord().Validate(); err != nil {
		t.Errorf("Valid record failed validation: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*RunRecord)
	}{
		{"empty run id", func(r *RunRecord) { r.RunID = "" }},
		{"empty problem", func(r *RunRecord) { r.Config.Problem = "" }},
		{"empty optimizer", func(r *RunRecord) { r.Config.Optimizer = "" }},
		{"empty status", func(r *RunRecord) { r.Status = "" }},
		{"zero start time", func(r *RunRecord) { r.StartTime = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(r)
			err := r.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Expected ValidationError, got %T", err)
			}
		})
	}
}

func TestRecordToInfo(t *testing.T) {
	r := validRecord()
	r.Objective = -36
	r.Evaluations = 12

	info := r.ToInfo()
	if info.RunID != r.RunID || info.Problem != "sphere" || info.Optimizer != "BFGS" {
		t.Errorf("ToInfo lost identity fields: %+v", info)
	}
	if info.Objective != -36 || info.Evaluations != 12 {
		t.Errorf("ToInfo lost result fields: %+v", info)
	}
	if !info.StartTime.Equal(r.StartTime) {
		t.Error("ToInfo lost start time")
	}
}
