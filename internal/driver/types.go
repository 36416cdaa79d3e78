package driver

import (
	"errors"

	"github.com/lmarceau/cutroom/internal/curve"
	"github.com/lmarceau/cutroom/internal/executor"
	"github.com/lmarceau/cutroom/internal/optimizer"
	"github.com/lmarceau/cutroom/internal/timeline"
)

// #region phases
// Phase indices of the pipeline, in execution order.
const (
	PhaseConcept    = 0 // directors compete on mood segments
	PhaseStoryboard = 1 // directors compete on the shot list
	PhaseTiming     = 2 // curve build + duration optimization
	PhaseProduction = 3 // concurrent artifact generation

	NumPhases = 4
)

// PhaseName returns the human-readable name for a phase index.
func PhaseName(idx int) string {
	switch idx {
	case PhaseConcept:
		return "concept"
	case PhaseStoryboard:
		return "storyboard"
	case PhaseTiming:
		return "timing"
	case PhaseProduction:
		return "production"
	default:
		return "unknown"
	}
}

// #endregion phases

// #region errors
var (
	// ErrInvalidPhaseRange is returned by Run for a bad start/end pair.
	ErrInvalidPhaseRange = errors.New("invalid phase range")

	// ErrTasksExhausted marks a production phase that finished with at
	// least one exhausted task. The phase is recorded as failed and can
	// be restarted.
	ErrTasksExhausted = errors.New("generation tasks exhausted")
)

// #endregion errors

// #region payloads
// ConceptPayload is the persisted output of phase 0.
type ConceptPayload struct {
	WinnerID string             `json:"winner_id"`
	Segments []timeline.Segment `json:"segments"`
}

// StoryboardPayload is the persisted output of phase 1.
type StoryboardPayload struct {
	WinnerID string          `json:"winner_id"`
	Slots    []timeline.Slot `json:"slots"`
}

// TimingPayload is the persisted output of phase 2: the optimized slot
// list plus the full emotion curve artifact it was computed from.
type TimingPayload struct {
	Slots   []timeline.Slot        `json:"slots"`
	Samples []timeline.CurveSample `json:"curve_samples"`
	Stats   curve.Stats            `json:"curve_stats"`
}

// ProductionPayload is the persisted output of phase 3.
type ProductionPayload struct {
	Report executor.ExecutionReport `json:"report"`
}

// #endregion payloads

// #region config
// Config bundles the tunables of the non-competitive phases.
type Config struct {
	Curve       curve.BuilderConfig
	Constraints optimizer.Constraints
	Execution   executor.Config
}

// DefaultConfig returns the standard pipeline tunables.
func DefaultConfig() Config {
	return Config{
		Curve:       curve.DefaultBuilderConfig(),
		Constraints: optimizer.DefaultConstraints(),
		Execution:   executor.DefaultConfig(),
	}
}

// #endregion config
