package competition

import (
	"context"
	"errors"

	"github.com/lmarceau/cutroom/internal/timeline"
)

// #region errors
var (
	// ErrNoSurvivingGenerators is fatal to a round: every generator failed.
	ErrNoSurvivingGenerators = errors.New("no surviving generators")

	// ErrNoSurvivingEvaluators is fatal to a round: every evaluator was
	// dropped, leaving an empty weight sum.
	ErrNoSurvivingEvaluators = errors.New("no surviving evaluators")
)

// #endregion errors

// #region identity
// Identity describes one director: a stable id, a static evaluator weight,
// and a free-form trait vector. All personality-specific behavior lives in
// the Director implementation, never in the engine.
type Identity struct {
	ID     string             `json:"id" yaml:"id"`
	Weight float64            `json:"weight" yaml:"weight"`
	Traits map[string]float64 `json:"traits,omitempty" yaml:"traits,omitempty"`
}

// #endregion identity

// #region director
// Director is one competitor: it proposes for a round and scores the other
// proposals, including its own; self-evaluation is not specially weighted.
type Director interface {
	Identity() Identity
	Propose(ctx context.Context, rc RoundContext) (Proposal, error)
	Evaluate(ctx context.Context, p Proposal, rc RoundContext) (Evaluation, error)
}

// #endregion director

// #region round-context
// RoundKind selects what a round's proposals must contain.
type RoundKind string

const (
	// RoundConcept proposals carry mood segments (the treatment).
	RoundConcept RoundKind = "concept"
	// RoundStoryboard proposals carry slots (the shot list).
	RoundStoryboard RoundKind = "storyboard"
)

// RoundContext is the shared input every director in a round receives.
type RoundContext struct {
	SessionID string             `json:"session_id"`
	PhaseIdx  int                `json:"phase_idx"`
	Kind      RoundKind          `json:"kind"`
	Track     string             `json:"track"`
	Duration  float64            `json:"duration"`
	Beats     []float64          `json:"beats,omitempty"`
	Segments  []timeline.Segment `json:"segments,omitempty"` // winning segments, storyboard rounds only
}

// #endregion round-context

// #region proposal
// Proposal is one director's candidate output for a round. Depending on the
// round kind exactly one of Segments or Slots is populated; the engine treats
// the content as opaque beyond that.
type Proposal struct {
	GeneratorID string             `json:"generator_id"`
	Title       string             `json:"title"`
	Notes       string             `json:"notes,omitempty"`
	Confidence  float64            `json:"confidence"`
	Segments    []timeline.Segment `json:"segments,omitempty"`
	Slots       []timeline.Slot    `json:"slots,omitempty"`
}

// #endregion proposal

// #region evaluation
// Evaluation is one evaluator's score for one proposal. Scores are 0–100.
type Evaluation struct {
	EvaluatorID string  `json:"evaluator_id"`
	ProposalID  string  `json:"proposal_id"`
	Score       float64 `json:"score"`
	Rationale   string  `json:"rationale,omitempty"`
}

// #endregion evaluation

// #region round-result
// RoundResult is the full persisted record of one competition round.
type RoundResult struct {
	Kind              RoundKind          `json:"kind"`
	Proposals         []Proposal         `json:"proposals"`
	Evaluations       []Evaluation       `json:"evaluations"`
	Scores            map[string]float64 `json:"scores"`
	WinnerID          string             `json:"winner_id"`
	DroppedGenerators []string           `json:"dropped_generators,omitempty"`
	DroppedEvaluators []string           `json:"dropped_evaluators,omitempty"`
}

// Winner returns the winning proposal.
func (r *RoundResult) Winner() (Proposal, bool) {
	for _, p := range r.Proposals {
		if p.GeneratorID == r.WinnerID {
			return p, true
		}
	}
	return Proposal{}, false
}

// #endregion round-result
