package model

import (
	"encoding/json"
	"time"
)

// RunStatus represents the current state of a dataset build.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusSampling   RunStatus = "sampling"
	RunStatusJoining    RunStatus = "joining"
	RunStatusAssembling RunStatus = "assembling"
	RunStatusWriting    RunStatus = "writing"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// Terminal reports whether the run can no longer change state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusComplete || s == RunStatusFailed
}

// Run is a single dataset build.
type Run struct {
	ID        string          `json:"id"`
	Config    json.RawMessage `json:"config"`
	Status    RunStatus       `json:"status"`
	Result    *RunResult      `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RunResult holds the counts of a finished build.
type RunResult struct {
	Positives        int            `json:"positives"`
	Negatives        int            `json:"negatives"`
	Candidates       int            `json:"candidates"`
	Batches          int            `json:"batches"`
	DroppedPositives int            `json:"dropped_positives"`
	DroppedNegatives int            `json:"dropped_negatives"`
	MissingByFeature map[string]int `json:"missing_by_feature,omitempty"`
	Rows             int            `json:"rows"`
	OutputPath       string         `json:"output_path"`
	ShapefilePath    string         `json:"shapefile_path,omitempty"`
	DurationMillis   int64          `json:"duration_ms"`
}
