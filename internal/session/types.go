package session

import (
	"encoding/json"
	"errors"
	"time"
)

// #region errors
var (
	// ErrNotFound is returned when a session id has no record.
	ErrNotFound = errors.New("session not found")

	// ErrPrecedingPhaseIncomplete is returned by StartPhase when a required
	// ancestor phase is not completed.
	ErrPrecedingPhaseIncomplete = errors.New("preceding phase incomplete")

	// ErrPhaseState is returned on an illegal phase status transition.
	ErrPhaseState = errors.New("illegal phase transition")
)

// #endregion errors

// #region phase-status
// PhaseStatus is the lifecycle state of one pipeline phase.
type PhaseStatus string

const (
	PhasePending    PhaseStatus = "pending"
	PhaseInProgress PhaseStatus = "in_progress"
	PhaseCompleted  PhaseStatus = "completed"
	PhaseFailed     PhaseStatus = "failed"
)

// #endregion phase-status

// #region session-record
// Session is the root aggregate: one pipeline run over one track.
type Session struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Phases    []PhaseRecord
}

// Phase returns the record for a phase index, or nil if never started.
func (s *Session) Phase(idx int) *PhaseRecord {
	for i := range s.Phases {
		if s.Phases[i].Index == idx {
			return &s.Phases[i]
		}
	}
	return nil
}

// PhaseRecord tracks one pipeline stage of a session.
type PhaseRecord struct {
	Index     int
	Status    PhaseStatus
	Payload   json.RawMessage
	StartedAt time.Time
	EndedAt   time.Time
}

// #endregion session-record

// #region task-record
// TaskRecord is the persisted terminal state of one generation task.
type TaskRecord struct {
	TaskID      string
	SlotID      string
	Status      string
	Attempts    int
	Quality     float64
	ArtifactRef string
	LastError   string
	UpdatedAt   time.Time
}

// #endregion task-record
