// Package curve converts labeled mood segments into a sampled continuous
// emotion target signal. Output is deterministic for identical input.
package curve

import (
	"fmt"
	"math"

	"github.com/lmarceau/cutroom/internal/timeline"
)

// #region intensity-table
// intensityTable is the fixed mood vocabulary. Values are the target
// emotional intensity in [0, 1].
var intensityTable = map[string]float64{
	"calm":        0.2,
	"melancholic": 0.3,
	"groove":      0.45,
	"build":       0.6,
	"uplifting":   0.75,
	"climactic":   0.9,
	"intense":     1.0,
}

// IntensityOf maps a mood label to its intensity value.
func IntensityOf(label string) (float64, error) {
	v, ok := intensityTable[label]
	if !ok {
		return 0, fmt.Errorf("label %q: %w", label, ErrUnknownIntensityLabel)
	}
	return v, nil
}

// #endregion intensity-table

// #region build
// Build samples the emotion curve for the given segments over [0, total].
// Output length is ceil(total/Δt)+1. Transitions are smoothstep ramps owned
// by the hotter segment: a segment ramps up over the transition window at
// its head when hotter than its predecessor, and ramps down at its tail when
// hotter than its successor.
func Build(segs []timeline.Segment, total float64, cfg BuilderConfig) (*Curve, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("non-positive sampling interval %.3f", cfg.Interval)
	}
	if err := timeline.ValidateSegments(segs, total); err != nil {
		return nil, fmt.Errorf("build curve: %w", err)
	}

	intensities := make([]float64, len(segs))
	for i, seg := range segs {
		v, err := IntensityOf(seg.Label)
		if err != nil {
			return nil, fmt.Errorf("segment %s: %w", seg.ID, err)
		}
		intensities[i] = v
	}

	n := int(math.Ceil(total/cfg.Interval)) + 1
	samples := make([]timeline.CurveSample, n)
	for i := 0; i < n; i++ {
		t := float64(i) * cfg.Interval
		if t > total {
			t = total
		}
		samples[i] = timeline.CurveSample{
			Time:  t,
			Value: valueAt(t, segs, intensities, cfg.TransitionWindow),
		}
	}

	return &Curve{
		Samples:  samples,
		Segments: segs,
		Interval: cfg.Interval,
		Stats:    computeStats(samples),
	}, nil
}

// #endregion build

// #region value-at
// valueAt evaluates the curve at time t. Containment ties resolve to the
// earlier segment; t at or past the final end uses the last segment.
func valueAt(t float64, segs []timeline.Segment, intensities []float64, window float64) float64 {
	idx := len(segs) - 1
	for i, seg := range segs {
		if t >= seg.Start && t < seg.End {
			idx = i
			break
		}
	}

	seg := segs[idx]
	cur := intensities[idx]

	// Ramps cannot overlap inside short segments.
	w := window
	if half := seg.Duration() / 2; w > half {
		w = half
	}
	if w <= 0 {
		return cur
	}

	if idx > 0 && cur > intensities[idx-1] && t < seg.Start+w {
		u := (t - seg.Start) / w
		return mix(intensities[idx-1], cur, smoothstep(u))
	}
	if idx < len(segs)-1 && cur > intensities[idx+1] && t > seg.End-w {
		u := (t - (seg.End - w)) / w
		return mix(cur, intensities[idx+1], smoothstep(u))
	}
	return cur
}

func smoothstep(u float64) float64 {
	if u <= 0 {
		return 0
	}
	if u >= 1 {
		return 1
	}
	return u * u * (3 - 2*u)
}

func mix(a, b, u float64) float64 {
	return a + (b-a)*u
}

// #endregion value-at

// #region stats
func computeStats(samples []timeline.CurveSample) Stats {
	if len(samples) == 0 {
		return Stats{}
	}
	s := Stats{Min: samples[0].Value, Max: samples[0].Value}
	var sum float64
	for _, sm := range samples {
		if sm.Value < s.Min {
			s.Min = sm.Value
		}
		if sm.Value > s.Max {
			s.Max = sm.Value
		}
		sum += sm.Value
	}
	s.Mean = sum / float64(len(samples))

	var sq float64
	for _, sm := range samples {
		d := sm.Value - s.Mean
		sq += d * d
	}
	s.Stdev = math.Sqrt(sq / float64(len(samples)))
	return s
}

// #endregion stats
