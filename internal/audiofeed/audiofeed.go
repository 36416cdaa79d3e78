// Package audiofeed loads the precomputed audio analysis that drives the
// pipeline: total duration, beat timestamps, and labeled mood segments.
// The analysis is produced offline by the feature-extraction toolchain and
// consumed here read-only.
package audiofeed

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/lmarceau/cutroom/internal/timeline"
)

// #region analysis
// Analysis is the parsed audio analysis file.
type Analysis struct {
	Title    string             `yaml:"title"`
	Duration float64            `yaml:"duration"`
	BPM      float64            `yaml:"bpm"`
	Beats    []float64          `yaml:"beats"`
	Segments []timeline.Segment `yaml:"segments"`
}

// #endregion analysis

// #region load
// Load reads and validates an analysis YAML file.
func Load(path string) (*Analysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read analysis %s: %w", path, err)
	}
	var a Analysis
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse analysis %s: %w", path, err)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("analysis %s: %w", path, err)
	}
	return &a, nil
}

// Validate checks duration, beat ordering, and segment coverage.
func (a *Analysis) Validate() error {
	if a.Duration <= 0 {
		return fmt.Errorf("non-positive duration %.3f", a.Duration)
	}
	for i, b := range a.Beats {
		if b < 0 || b > a.Duration {
			return fmt.Errorf("beat %d at %.3f outside track [0, %.3f]", i, b, a.Duration)
		}
		if i > 0 && b <= a.Beats[i-1] {
			return fmt.Errorf("beat %d at %.3f not after previous %.3f", i, b, a.Beats[i-1])
		}
	}
	if err := timeline.ValidateSegments(a.Segments, a.Duration); err != nil {
		return fmt.Errorf("segments: %w", err)
	}
	return nil
}

// #endregion load

// #region beats-in
// BeatsIn returns the beat timestamps within [start, end).
func (a *Analysis) BeatsIn(start, end float64) []float64 {
	lo := sort.SearchFloat64s(a.Beats, start)
	var out []float64
	for i := lo; i < len(a.Beats) && a.Beats[i] < end; i++ {
		out = append(out, a.Beats[i])
	}
	return out
}

// #endregion beats-in
