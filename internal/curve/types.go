package curve

import (
	"errors"

	"github.com/lmarceau/cutroom/internal/timeline"
)

// ErrUnknownIntensityLabel is returned when a segment label is not in the
// mood vocabulary. There is no silent default.
var ErrUnknownIntensityLabel = errors.New("unknown intensity label")

// #region config
// BuilderConfig controls curve sampling.
type BuilderConfig struct {
	Interval         float64 // Δt between samples, seconds
	TransitionWindow float64 // smoothstep ramp length at segment boundaries, seconds
}

// DefaultBuilderConfig returns the standard sampling parameters.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		Interval:         0.5,
		TransitionWindow: 2.0,
	}
}

// #endregion config

// #region curve
// Curve is the sampled emotion target signal for one track, immutable once
// built. Samples are ordered by time; Segments are the source intervals.
type Curve struct {
	Samples  []timeline.CurveSample
	Segments []timeline.Segment
	Interval float64
	Stats    Stats
}

// HasSegment reports whether the curve was built from the given segment.
func (c *Curve) HasSegment(id string) bool {
	for _, seg := range c.Segments {
		if seg.ID == id {
			return true
		}
	}
	return false
}

// Stats summarizes the sampled signal.
type Stats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Stdev float64 `json:"stdev"`
}

// #endregion curve
