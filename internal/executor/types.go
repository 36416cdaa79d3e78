package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lmarceau/cutroom/internal/session"
	"github.com/lmarceau/cutroom/internal/timeline"
)

// #region errors
var (
	// ErrNoTasks is returned by Run when the slot list is empty.
	ErrNoTasks = errors.New("no tasks to execute")
)

// CollabError is a failure reported by a collaborator service. Retryable
// marks transient failures (rate limits, timeouts) that earn a backoff
// retry; non-retryable failures exhaust the task immediately.
type CollabError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *CollabError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollabError) Unwrap() error {
	return e.Err
}

// Retryable classifies an error from a collaborator call. CollabError
// carries its own flag; anything else is assumed transient.
func Retryable(err error) bool {
	var ce *CollabError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return true
}

// #endregion errors

// #region task
// TaskStatus is the lifecycle state of one generation task.
type TaskStatus string

const (
	StatusQueued    TaskStatus = "queued"
	StatusRunning   TaskStatus = "running"
	StatusSucceeded TaskStatus = "succeeded"
	StatusExhausted TaskStatus = "exhausted"
)

// GenerationRequest is one attempt at producing a slot's artifact.
// Variance starts at the slot's optimizer-assigned tier and steps down on
// every quality rejection.
type GenerationRequest struct {
	TaskID   string
	Slot     timeline.Slot
	Variance timeline.VarianceTier
	Attempt  int
}

// Artifact is the opaque output of one successful generation call.
type Artifact struct {
	Ref string
}

// TaskResult is the terminal outcome of one task.
type TaskResult struct {
	TaskID      string     `json:"task_id"`
	SlotID      string     `json:"slot_id"`
	Status      TaskStatus `json:"status"`
	Attempts    int        `json:"attempts"`
	Quality     float64    `json:"quality"`
	ArtifactRef string     `json:"artifact_ref,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// ExecutionReport summarizes one phase-3 run. Completed is true only when
// every task succeeded. MeanQuality averages over succeeded tasks.
type ExecutionReport struct {
	Total       int           `json:"total"`
	Succeeded   int           `json:"succeeded"`
	Exhausted   int           `json:"exhausted"`
	MeanQuality float64       `json:"mean_quality"`
	Elapsed     time.Duration `json:"elapsed"`
	Tasks       []TaskResult  `json:"tasks"`
}

// Completed reports whether the run finished with zero exhausted tasks.
func (r *ExecutionReport) Completed() bool {
	return r.Exhausted == 0
}

// #endregion task

// #region collaborators
// ArtifactGenerationService produces one artifact per request. Failures
// should be wrapped in CollabError so the executor can classify them.
type ArtifactGenerationService interface {
	Generate(ctx context.Context, req GenerationRequest) (Artifact, error)
}

// QualityEvaluationService scores a generated artifact on [0, 1].
type QualityEvaluationService interface {
	Score(ctx context.Context, art Artifact, req GenerationRequest) (float64, error)
}

// TaskSink receives task state as it changes. *session.Store satisfies it.
type TaskSink interface {
	SaveTask(sessionID string, rec session.TaskRecord) error
}

// #endregion collaborators
