package timeline

import "fmt"

// Epsilon is the coverage tolerance (seconds) used by all duration-sum
// invariant checks across the pipeline.
const Epsilon = 0.01

// #region segment
// Segment is a labeled time interval [Start, End) within the track,
// carrying a mood label from the intensity vocabulary.
type Segment struct {
	ID    string  `json:"id" yaml:"id"`
	Label string  `json:"label" yaml:"label"`
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// ValidateSegments checks that segments are ordered, contiguous,
// non-overlapping, and cover [0, total] within Epsilon.
func ValidateSegments(segs []Segment, total float64) error {
	if len(segs) == 0 {
		return fmt.Errorf("no segments")
	}
	cursor := 0.0
	for i, seg := range segs {
		if seg.End <= seg.Start {
			return fmt.Errorf("segment %s: end %.3f <= start %.3f", seg.ID, seg.End, seg.Start)
		}
		if abs(seg.Start-cursor) > Epsilon {
			return fmt.Errorf("segment %s (index %d): gap or overlap at %.3f, expected start %.3f", seg.ID, i, seg.Start, cursor)
		}
		cursor = seg.End
	}
	if abs(cursor-total) > Epsilon {
		return fmt.Errorf("segments cover %.3fs, track is %.3fs", cursor, total)
	}
	return nil
}

// #endregion segment

// #region shot-type
// ShotType classifies a slot and biases its optimized duration.
type ShotType string

const (
	ShotWide         ShotType = "wide"
	ShotEstablishing ShotType = "establishing"
	ShotMedium       ShotType = "medium"
	ShotCloseup      ShotType = "closeup"
	ShotDetail       ShotType = "detail"
	ShotPerformance  ShotType = "performance"
)

// #endregion shot-type

// #region variance-tier
// VarianceTier is the creative-adjustment hint assigned per slot: how much
// lighting/camera/color variance the generation backend should apply.
type VarianceTier string

const (
	TierLow    VarianceTier = "low"
	TierMedium VarianceTier = "medium"
	TierHigh   VarianceTier = "high"
)

// Lower steps a tier down one level. TierLow stays TierLow.
func (t VarianceTier) Lower() VarianceTier {
	switch t {
	case TierHigh:
		return TierMedium
	case TierMedium:
		return TierLow
	default:
		return TierLow
	}
}

// #endregion variance-tier

// #region slot
// Slot is a discrete sub-interval of a segment: one shot. Anchors are the
// beat timestamps inside the parent segment the slot boundaries may snap to.
type Slot struct {
	ID        string       `json:"id" yaml:"id"`
	SegmentID string       `json:"segment_id" yaml:"segment_id"`
	Start     float64      `json:"start" yaml:"start"`
	End       float64      `json:"end" yaml:"end"`
	ShotType  ShotType     `json:"shot_type" yaml:"shot_type"`
	Anchors   []float64    `json:"anchors,omitempty" yaml:"anchors,omitempty"`
	Variance  VarianceTier `json:"variance,omitempty" yaml:"variance,omitempty"`

	// BaseDuration is the pre-optimization duration the optimizer scales
	// from. Zero means the slot has never been optimized; the current
	// Start/End span is the base.
	BaseDuration float64 `json:"base_duration,omitempty" yaml:"base_duration,omitempty"`
}

// Duration returns the slot length in seconds.
func (s Slot) Duration() float64 {
	return s.End - s.Start
}

// ValidateSlots checks that the slots of one segment are ordered, contiguous,
// and sum to the segment duration within Epsilon.
func ValidateSlots(slots []Slot, seg Segment) error {
	if len(slots) == 0 {
		return fmt.Errorf("segment %s: no slots", seg.ID)
	}
	cursor := seg.Start
	for i, sl := range slots {
		if sl.SegmentID != seg.ID {
			return fmt.Errorf("slot %s: parent %s, expected %s", sl.ID, sl.SegmentID, seg.ID)
		}
		if sl.End <= sl.Start {
			return fmt.Errorf("slot %s: end %.3f <= start %.3f", sl.ID, sl.End, sl.Start)
		}
		if abs(sl.Start-cursor) > Epsilon {
			return fmt.Errorf("slot %s (index %d): gap or overlap at %.3f, expected start %.3f", sl.ID, i, sl.Start, cursor)
		}
		cursor = sl.End
	}
	if abs(cursor-seg.End) > Epsilon {
		return fmt.Errorf("segment %s: slots end at %.3f, segment ends at %.3f", seg.ID, cursor, seg.End)
	}
	return nil
}

// #endregion slot

// #region curve-sample
// CurveSample is one (time, value) point of the sampled emotion curve.
type CurveSample struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// #endregion curve-sample

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
