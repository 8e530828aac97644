package core

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a Run.
type RunStatus string

const (
	// RunStatusRunning means the round loop is progressing.
	RunStatusRunning RunStatus = "RUNNING"
	// RunStatusPaused means the run is suspended awaiting external input.
	RunStatusPaused RunStatus = "PAUSED"
	// RunStatusDone is terminal: all required artifacts were accepted.
	RunStatusDone RunStatus = "DONE"
	// RunStatusFailed is terminal: an unrecoverable condition was reached.
	RunStatusFailed RunStatus = "FAILED"
)

// Terminal reports whether the status permits no further transitions.
func (s RunStatus) Terminal() bool {
	return s == RunStatusDone || s == RunStatusFailed
}

// Run is one execution of a Meeting. The engine goroutine that owns the run
// is its only writer; everyone else sees snapshots.
type Run struct {
	ID        string    `json:"id"`
	MeetingID string    `json:"meeting_id"`
	Status    RunStatus `json:"status"`
	Round     int       `json:"round"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	// Error carries the last error event payload for FAILED runs.
	Error string `json:"error,omitempty"`
}

// NewRun creates a RUNNING run for the given meeting.
func NewRun(meetingID string) Run {
	return Run{
		ID:        "run-" + uuid.NewString(),
		MeetingID: meetingID,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

// RunStore persists the single mutable status row per run.
type RunStore interface {
	Create(run Run) error
	Update(run Run) error
	Get(runID string) (Run, error)
}
