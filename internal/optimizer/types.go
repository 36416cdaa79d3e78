package optimizer

import "errors"

// #region errors
var (
	// ErrEmptySlotList is fatal: there is nothing to optimize.
	ErrEmptySlotList = errors.New("empty slot list")

	// ErrCurveSegmentMismatch is fatal: a slot references a segment the
	// curve was not built from. The whole batch is rejected.
	ErrCurveSegmentMismatch = errors.New("slot segment not found in curve")

	// ErrInfeasibleConstraints is fatal: a segment cannot hold its slots
	// within the duration bounds, so no redistribution can satisfy both the
	// per-slot limits and the segment total.
	ErrInfeasibleConstraints = errors.New("constraints infeasible for segment")
)

// #endregion errors

// #region constraints
// Constraints bound the optimizer's output durations and beat snapping.
type Constraints struct {
	MinDuration   float64 // hard floor per slot, seconds
	MaxDuration   float64 // hard cap per slot, seconds
	SnapTolerance float64 // max distance a boundary may move to reach a beat
}

// DefaultConstraints returns the standard shot-duration bounds.
func DefaultConstraints() Constraints {
	return Constraints{
		MinDuration:   1.0,
		MaxDuration:   8.0,
		SnapTolerance: 0.35,
	}
}

// #endregion constraints
