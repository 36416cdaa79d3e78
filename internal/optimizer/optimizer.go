// Package optimizer recomputes shot durations against the emotion curve:
// hot passages get longer shots, flat passages get tighter cuts, boundaries
// snap forward onto nearby beats, and every segment keeps its total length.
package optimizer

import (
	"fmt"
	"log"
	"math"

	"github.com/lmarceau/cutroom/internal/curve"
	"github.com/lmarceau/cutroom/internal/logging"
	"github.com/lmarceau/cutroom/internal/timeline"
)

// #region optimizer
// Optimizer assigns slot durations from the emotion curve under hard
// constraints. Deterministic for identical input.
type Optimizer struct {
	concerns *logging.ConcernLog
	cons     Constraints
}

// New creates an optimizer. concerns may be nil.
func New(concerns *logging.ConcernLog, cons Constraints) *Optimizer {
	return &Optimizer{concerns: concerns, cons: cons}
}

// #endregion optimizer

// #region optimize
// Optimize returns a new slot list with recomputed durations and variance
// tiers. The input is not modified. Per-segment duration sums are preserved
// within timeline.Epsilon; any violation found after snapping is repaired by
// proportional rescale (logged as a concern). Fatal errors reject the whole
// batch with no partial application.
func (o *Optimizer) Optimize(sessionID string, phaseIdx int, slots []timeline.Slot, cv *curve.Curve) ([]timeline.Slot, error) {
	if len(slots) == 0 {
		return nil, ErrEmptySlotList
	}

	segments := make(map[string]timeline.Segment, len(cv.Segments))
	for _, seg := range cv.Segments {
		segments[seg.ID] = seg
	}
	for _, sl := range slots {
		if _, ok := segments[sl.SegmentID]; !ok {
			return nil, fmt.Errorf("slot %s references segment %s: %w", sl.ID, sl.SegmentID, ErrCurveSegmentMismatch)
		}
	}

	out := make([]timeline.Slot, 0, len(slots))
	for _, group := range groupBySegment(slots) {
		seg := segments[group[0].SegmentID]
		optimized, err := o.optimizeSegment(sessionID, phaseIdx, group, seg, cv)
		if err != nil {
			return nil, err
		}
		out = append(out, optimized...)
	}
	return out, nil
}

// #endregion optimize

// #region optimize-segment
func (o *Optimizer) optimizeSegment(sessionID string, phaseIdx int, slots []timeline.Slot, seg timeline.Segment, cv *curve.Curve) ([]timeline.Slot, error) {
	n := len(slots)
	if seg.Duration() < float64(n)*o.cons.MinDuration-timeline.Epsilon ||
		seg.Duration() > float64(n)*o.cons.MaxDuration+timeline.Epsilon {
		return nil, fmt.Errorf("segment %s: %.3fs cannot hold %d slots of [%.3f, %.3f]s: %w",
			seg.ID, seg.Duration(), n, o.cons.MinDuration, o.cons.MaxDuration, ErrInfeasibleConstraints)
	}

	scores := make([]float64, n)
	durations := make([]float64, n)

	for i, sl := range slots {
		scores[i] = emotionScore(cv, sl.Start, sl.End)

		base := sl.BaseDuration
		if base <= 0 {
			base = sl.Duration()
		}
		ideal := base * shotAdjust(multiplier(scores[i]), sl.ShotType)
		durations[i] = clamp(ideal, o.cons.MinDuration, o.cons.MaxDuration)
	}

	// Redistribute: the segment total is fixed, the ideal durations fight
	// over it proportionally.
	durations = fitDurations(durations, seg.Duration(), o.cons.MinDuration, o.cons.MaxDuration)

	// Lay out boundaries with forward-only beat snapping. The final slot is
	// pinned to the segment end and absorbs any snap displacement.
	out := make([]timeline.Slot, n)
	cursor := seg.Start
	for i, sl := range slots {
		boundary := seg.End
		if i < n-1 {
			boundary = o.snap(cursor+durations[i], cursor, sl, slots[i+1])
		}

		out[i] = sl
		out[i].Start = cursor
		out[i].End = boundary
		if out[i].BaseDuration <= 0 {
			out[i].BaseDuration = sl.Duration()
		}
		out[i].Variance = varianceTier(scores[i])
		cursor = boundary
	}

	// Snap displacement lands in the final slot; if that pushed any slot
	// out of bounds, rescale the whole segment as a last resort. Clamp
	// before fitting: the sum may already match the target while a single
	// slot sits outside its limits.
	if violatesBounds(out, o.cons) {
		o.concern(sessionID, phaseIdx, fmt.Sprintf(
			"segment %s: slot bounds violated after snapping, rescaling %d slots", seg.ID, n))

		durs := spanDurations(out)
		for i := range durs {
			durs[i] = clamp(durs[i], o.cons.MinDuration, o.cons.MaxDuration)
		}
		fitted := fitDurations(durs, seg.Duration(), o.cons.MinDuration, o.cons.MaxDuration)
		cursor = seg.Start
		for i := range out {
			out[i].Start = cursor
			cursor += fitted[i]
			out[i].End = cursor
		}
		out[n-1].End = seg.End

		if violatesBounds(out, o.cons) {
			return nil, fmt.Errorf("segment %s: slot bounds unrecoverable after rescale: %w",
				seg.ID, ErrInfeasibleConstraints)
		}
	}

	return out, nil
}

// violatesBounds reports whether any slot duration escaped [min, max].
func violatesBounds(slots []timeline.Slot, cons Constraints) bool {
	for _, sl := range slots {
		d := sl.Duration()
		if d < cons.MinDuration-timeline.Epsilon || d > cons.MaxDuration+timeline.Epsilon {
			return true
		}
	}
	return false
}

// #endregion optimize-segment

// #region emotion-score
// emotionScore is the mean curve value over [start, end); an empty sample
// window falls back to the sample nearest the window midpoint.
func emotionScore(cv *curve.Curve, start, end float64) float64 {
	var sum float64
	var count int
	for _, s := range cv.Samples {
		if s.Time >= start && s.Time < end {
			sum += s.Value
			count++
		}
	}
	if count > 0 {
		return sum / float64(count)
	}

	mid := (start + end) / 2
	nearest := cv.Samples[0]
	for _, s := range cv.Samples[1:] {
		if math.Abs(s.Time-mid) < math.Abs(nearest.Time-mid) {
			nearest = s
		}
	}
	return nearest.Value
}

// #endregion emotion-score

// #region duration-rules
// multiplier maps an emotion score to a duration multiplier: extend for
// impact above 0.8, shorten for pacing below 0.4, linear ramp between.
func multiplier(score float64) float64 {
	switch {
	case score >= 0.8:
		return 1.30
	case score >= 0.4:
		return 0.90 + 0.20*(score-0.4)/0.4
	default:
		return 0.85
	}
}

// shotAdjust applies the classification-tag modifier. Wide and establishing
// shots get a 1.15x floor; tight shots cut slightly shorter.
func shotAdjust(mult float64, shot timeline.ShotType) float64 {
	switch shot {
	case timeline.ShotWide, timeline.ShotEstablishing:
		if mult < 1.15 {
			return 1.15
		}
		return mult
	case timeline.ShotCloseup:
		return mult * 0.95
	case timeline.ShotDetail:
		return mult * 0.90
	default:
		return mult
	}
}

// varianceTier maps an emotion score to the creative-adjustment hint.
func varianceTier(score float64) timeline.VarianceTier {
	switch {
	case score >= 0.8:
		return timeline.TierHigh
	case score >= 0.4:
		return timeline.TierMedium
	default:
		return timeline.TierLow
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// #endregion duration-rules

// #region snap
// snap moves a slot boundary onto the nearest anchor within tolerance.
// The snap is discarded when it would move the boundary backward past the
// cursor, leave the slot below MinDuration, or stretch it past MaxDuration.
func (o *Optimizer) snap(boundary, cursor float64, sl, next timeline.Slot) float64 {
	best := boundary
	bestDist := o.cons.SnapTolerance
	for _, anchor := range append(append([]float64(nil), sl.Anchors...), next.Anchors...) {
		d := math.Abs(anchor - boundary)
		if d > bestDist {
			continue
		}
		if anchor <= cursor {
			continue // never move backward past the cursor
		}
		if anchor-cursor < o.cons.MinDuration {
			continue
		}
		if anchor-cursor > o.cons.MaxDuration {
			continue
		}
		best = anchor
		bestDist = d
	}
	return best
}

// #endregion snap

// #region normalize
// fitDurations scales durations toward a target sum, re-clamping each pass.
// Converges whenever target is feasible within [n*min, n*max].
func fitDurations(durs []float64, target, min, max float64) []float64 {
	out := append([]float64(nil), durs...)
	for iter := 0; iter < 8; iter++ {
		var sum float64
		for _, d := range out {
			sum += d
		}
		if math.Abs(sum-target) <= timeline.Epsilon {
			break
		}
		scale := target / sum
		for i := range out {
			out[i] = clamp(out[i]*scale, min, max)
		}
	}
	return out
}

func spanDurations(slots []timeline.Slot) []float64 {
	durs := make([]float64, len(slots))
	for i, sl := range slots {
		durs[i] = sl.Duration()
	}
	return durs
}

// groupBySegment splits an ordered slot list into per-segment runs.
func groupBySegment(slots []timeline.Slot) [][]timeline.Slot {
	var groups [][]timeline.Slot
	for _, sl := range slots {
		if len(groups) == 0 || groups[len(groups)-1][0].SegmentID != sl.SegmentID {
			groups = append(groups, []timeline.Slot{sl})
			continue
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], sl)
	}
	return groups
}

func (o *Optimizer) concern(sessionID string, phaseIdx int, msg string) {
	log.Printf("[OPT] concern: %s", msg)
	if o.concerns == nil {
		return
	}
	err := o.concerns.Record(logging.Concern{
		SessionID: sessionID,
		PhaseIdx:  phaseIdx,
		Component: "optimizer",
		Severity:  logging.SeverityWarning,
		Message:   msg,
	})
	if err != nil {
		log.Printf("[OPT] failed to record concern: %v", err)
	}
}

// #endregion normalize
