package optimizer

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/lmarceau/cutroom/internal/curve"
	"github.com/lmarceau/cutroom/internal/timeline"
)

func buildCurve(t *testing.T, segs []timeline.Segment, total float64) *curve.Curve {
	t.Helper()
	cv, err := curve.Build(segs, total, curve.BuilderConfig{Interval: 0.5, TransitionWindow: 2.0})
	if err != nil {
		t.Fatalf("Build curve: %v", err)
	}
	return cv
}

func calmIntense(t *testing.T) *curve.Curve {
	return buildCurve(t, []timeline.Segment{
		{ID: "seg-1", Label: "calm", Start: 0, End: 10},
		{ID: "seg-2", Label: "intense", Start: 10, End: 20},
	}, 20)
}

func testSlots() []timeline.Slot {
	return []timeline.Slot{
		{ID: "s1", SegmentID: "seg-1", Start: 0, End: 4, ShotType: timeline.ShotMedium},
		{ID: "s2", SegmentID: "seg-1", Start: 4, End: 10, ShotType: timeline.ShotWide},
		{ID: "s3", SegmentID: "seg-2", Start: 10, End: 13, ShotType: timeline.ShotCloseup},
		{ID: "s4", SegmentID: "seg-2", Start: 13, End: 20, ShotType: timeline.ShotPerformance},
	}
}

func segmentSum(slots []timeline.Slot, segID string) float64 {
	var sum float64
	for _, sl := range slots {
		if sl.SegmentID == segID {
			sum += sl.Duration()
		}
	}
	return sum
}

func TestOptimizePreservesSegmentSums(t *testing.T) {
	o := New(nil, DefaultConstraints())
	out, err := o.Optimize("s", 2, testSlots(), calmIntense(t))
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(out))
	}
	if d := math.Abs(segmentSum(out, "seg-1") - 10); d > timeline.Epsilon {
		t.Fatalf("seg-1 sum drifted by %f", d)
	}
	if d := math.Abs(segmentSum(out, "seg-2") - 10); d > timeline.Epsilon {
		t.Fatalf("seg-2 sum drifted by %f", d)
	}
	// Slots remain contiguous per segment.
	if math.Abs(out[0].End-out[1].Start) > 1e-9 || math.Abs(out[2].End-out[3].Start) > 1e-9 {
		t.Fatalf("slots not contiguous: %+v", out)
	}
	if out[3].End != 20 {
		t.Fatalf("expected segment end pinned at 20, got %f", out[3].End)
	}
}

func TestOptimizeRespectsBounds(t *testing.T) {
	cons := DefaultConstraints()
	o := New(nil, cons)
	out, err := o.Optimize("s", 2, testSlots(), calmIntense(t))
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	for _, sl := range out {
		d := sl.Duration()
		if d < cons.MinDuration-timeline.Epsilon || d > cons.MaxDuration+timeline.Epsilon {
			t.Fatalf("slot %s duration %f outside [%f, %f]", sl.ID, d, cons.MinDuration, cons.MaxDuration)
		}
	}
}

func TestOptimizeVarianceTiers(t *testing.T) {
	o := New(nil, DefaultConstraints())
	out, err := o.Optimize("s", 2, testSlots(), calmIntense(t))
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	byID := make(map[string]timeline.Slot)
	for _, sl := range out {
		byID[sl.ID] = sl
	}
	if byID["s1"].Variance != timeline.TierLow {
		t.Fatalf("expected s1 low variance, got %s", byID["s1"].Variance)
	}
	if byID["s4"].Variance != timeline.TierHigh {
		t.Fatalf("expected s4 high variance, got %s", byID["s4"].Variance)
	}
}

func TestOptimizeEmptySlotList(t *testing.T) {
	o := New(nil, DefaultConstraints())
	_, err := o.Optimize("s", 2, nil, calmIntense(t))
	if !errors.Is(err, ErrEmptySlotList) {
		t.Fatalf("expected ErrEmptySlotList, got %v", err)
	}
}

func TestOptimizeSegmentMismatch(t *testing.T) {
	o := New(nil, DefaultConstraints())
	slots := []timeline.Slot{{ID: "x", SegmentID: "seg-9", Start: 0, End: 4}}
	_, err := o.Optimize("s", 2, slots, calmIntense(t))
	if !errors.Is(err, ErrCurveSegmentMismatch) {
		t.Fatalf("expected ErrCurveSegmentMismatch, got %v", err)
	}
}

func TestOptimizeRejectsInfeasibleSegment(t *testing.T) {
	// Ten slots at MinDuration 1.0 need at least 10s; the segment has 5.
	cv := buildCurve(t, []timeline.Segment{
		{ID: "seg-1", Label: "calm", Start: 0, End: 5},
	}, 5)
	slots := make([]timeline.Slot, 10)
	for i := range slots {
		slots[i] = timeline.Slot{
			ID:        fmt.Sprintf("s%d", i+1),
			SegmentID: "seg-1",
			Start:     float64(i) * 0.5,
			End:       float64(i+1) * 0.5,
			ShotType:  timeline.ShotMedium,
		}
	}
	o := New(nil, DefaultConstraints())
	_, err := o.Optimize("s", 2, slots, cv)
	if !errors.Is(err, ErrInfeasibleConstraints) {
		t.Fatalf("expected ErrInfeasibleConstraints, got %v", err)
	}
}

func TestRescaleRepairsSnapDisplacement(t *testing.T) {
	// Tight bounds and a generous tolerance: the boundary snaps from 3.0 to
	// the beat at 3.6, squeezing the pinned final slot to 2.4s, below the
	// 2.5s floor. The rescale must push it back inside the bounds while
	// keeping the segment total.
	cv := buildCurve(t, []timeline.Segment{
		{ID: "seg-1", Label: "calm", Start: 0, End: 6},
	}, 6)
	slots := []timeline.Slot{
		{ID: "s1", SegmentID: "seg-1", Start: 0, End: 3, ShotType: timeline.ShotMedium, Anchors: []float64{3.6}},
		{ID: "s2", SegmentID: "seg-1", Start: 3, End: 6, ShotType: timeline.ShotMedium},
	}
	cons := Constraints{MinDuration: 2.5, MaxDuration: 4.0, SnapTolerance: 0.7}
	o := New(nil, cons)
	out, err := o.Optimize("s", 2, slots, cv)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	for _, sl := range out {
		d := sl.Duration()
		if d < cons.MinDuration-timeline.Epsilon || d > cons.MaxDuration+timeline.Epsilon {
			t.Fatalf("slot %s duration %f outside [%f, %f] after rescale", sl.ID, d, cons.MinDuration, cons.MaxDuration)
		}
	}
	if d := math.Abs(segmentSum(out, "seg-1") - 6); d > timeline.Epsilon {
		t.Fatalf("sum drifted by %f after rescale", d)
	}
	if out[1].End != 6 {
		t.Fatalf("expected segment end pinned at 6, got %f", out[1].End)
	}
}

func TestOptimizeDeterministic(t *testing.T) {
	o := New(nil, DefaultConstraints())
	cv := calmIntense(t)
	a, err := o.Optimize("s", 2, testSlots(), cv)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	b, err := o.Optimize("s", 2, testSlots(), cv)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	for i := range a {
		if a[i].Start != b[i].Start || a[i].End != b[i].End || a[i].Variance != b[i].Variance {
			t.Fatalf("slot %d differs across runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestOptimizeIdempotentOnFlatCurve(t *testing.T) {
	// Constant intensity per segment: emotion scores cannot shift between
	// runs, so the optimizer output is a fixed point.
	cv := buildCurve(t, []timeline.Segment{
		{ID: "seg-1", Label: "calm", Start: 0, End: 12},
	}, 12)
	slots := []timeline.Slot{
		{ID: "s1", SegmentID: "seg-1", Start: 0, End: 5, ShotType: timeline.ShotMedium},
		{ID: "s2", SegmentID: "seg-1", Start: 5, End: 12, ShotType: timeline.ShotMedium},
	}
	o := New(nil, DefaultConstraints())

	once, err := o.Optimize("s", 2, slots, cv)
	if err != nil {
		t.Fatalf("first Optimize: %v", err)
	}
	twice, err := o.Optimize("s", 2, once, cv)
	if err != nil {
		t.Fatalf("second Optimize: %v", err)
	}
	for i := range once {
		if math.Abs(once[i].Duration()-twice[i].Duration()) > timeline.Epsilon {
			t.Fatalf("slot %s moved on re-run: %f vs %f", once[i].ID, once[i].Duration(), twice[i].Duration())
		}
	}
}

func TestOptimizeSnapsToAnchor(t *testing.T) {
	cv := buildCurve(t, []timeline.Segment{
		{ID: "seg-1", Label: "calm", Start: 0, End: 10},
	}, 10)
	slots := []timeline.Slot{
		{ID: "s1", SegmentID: "seg-1", Start: 0, End: 4, ShotType: timeline.ShotCloseup, Anchors: []float64{3.5}},
		{ID: "s2", SegmentID: "seg-1", Start: 4, End: 10, ShotType: timeline.ShotWide},
	}
	o := New(nil, DefaultConstraints())
	out, err := o.Optimize("s", 2, slots, cv)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	// The closeup shrinks and the wide grows, so the un-snapped boundary
	// lands near 3.19; the beat at 3.5 is inside the 0.35s tolerance window.
	if out[0].End != 3.5 {
		t.Fatalf("expected boundary snapped to 3.5, got %f", out[0].End)
	}
	if d := math.Abs(segmentSum(out, "seg-1") - 10); d > timeline.Epsilon {
		t.Fatalf("sum drifted by %f after snap", d)
	}
}

func TestSnapGuards(t *testing.T) {
	o := New(nil, Constraints{MinDuration: 1.0, MaxDuration: 8.0, SnapTolerance: 0.35})
	next := timeline.Slot{}

	// Anchor behind the cursor is never taken.
	sl := timeline.Slot{Anchors: []float64{1.9}}
	if got := o.snap(2.2, 2.0, sl, next); got != 2.2 {
		t.Fatalf("expected backward snap discarded, got %f", got)
	}
	// Anchor that would leave the slot below MinDuration is discarded.
	sl = timeline.Slot{Anchors: []float64{0.9}}
	if got := o.snap(1.2, 0, sl, next); got != 1.2 {
		t.Fatalf("expected sub-minimum snap discarded, got %f", got)
	}
	// Anchor that would stretch the slot past MaxDuration is discarded.
	sl = timeline.Slot{Anchors: []float64{8.2}}
	if got := o.snap(7.95, 0, sl, next); got != 7.95 {
		t.Fatalf("expected over-maximum snap discarded, got %f", got)
	}
	// Valid anchor within tolerance snaps; nearest wins.
	sl = timeline.Slot{Anchors: []float64{4.3, 4.05}}
	if got := o.snap(4.0, 0, sl, next); got != 4.05 {
		t.Fatalf("expected nearest anchor 4.05, got %f", got)
	}
	// Out-of-tolerance anchor is ignored.
	sl = timeline.Slot{Anchors: []float64{5.0}}
	if got := o.snap(4.0, 0, sl, next); got != 4.0 {
		t.Fatalf("expected no snap, got %f", got)
	}
}

func TestMultiplierRules(t *testing.T) {
	tests := []struct {
		score float64
		want  float64
	}{
		{0.9, 1.30},
		{0.8, 1.30},
		{0.4, 0.90},
		{0.6, 1.00},
		{0.3, 0.85},
	}
	for _, tt := range tests {
		if got := multiplier(tt.score); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("multiplier(%f) = %f, want %f", tt.score, got, tt.want)
		}
	}
	// A 3.0s slot at emotion 0.9 stretches to 3.9s, under the 8s cap.
	ideal := 3.0 * multiplier(0.9)
	if math.Abs(ideal-3.9) > 1e-9 {
		t.Fatalf("expected ideal 3.9, got %f", ideal)
	}
	if ideal > DefaultConstraints().MaxDuration {
		t.Fatal("expected no clamp at 3.9s")
	}
}

func TestShotAdjust(t *testing.T) {
	if got := shotAdjust(0.85, timeline.ShotWide); got != 1.15 {
		t.Fatalf("expected wide floor 1.15, got %f", got)
	}
	if got := shotAdjust(1.30, timeline.ShotEstablishing); got != 1.30 {
		t.Fatalf("expected floor not to lower 1.30, got %f", got)
	}
	if got := shotAdjust(1.0, timeline.ShotCloseup); math.Abs(got-0.95) > 1e-9 {
		t.Fatalf("expected closeup 0.95, got %f", got)
	}
	if got := shotAdjust(1.0, timeline.ShotPerformance); got != 1.0 {
		t.Fatalf("expected performance unchanged, got %f", got)
	}
}

func TestFitDurations(t *testing.T) {
	out := fitDurations([]float64{3.4, 6.9}, 10, 1, 8)
	var sum float64
	for _, d := range out {
		sum += d
	}
	if math.Abs(sum-10) > timeline.Epsilon {
		t.Fatalf("expected sum 10, got %f", sum)
	}
	// Proportions preserved when nothing clamps.
	if math.Abs(out[0]/out[1]-3.4/6.9) > 1e-6 {
		t.Fatalf("expected proportional fit, got %v", out)
	}
}

func TestEmotionScoreNearestFallback(t *testing.T) {
	cv := calmIntense(t)
	// Zero-width window at t=15: no samples in [15, 15), nearest is 1.0.
	if got := emotionScore(cv, 15, 15); got != 1.0 {
		t.Fatalf("expected nearest-sample fallback 1.0, got %f", got)
	}
}
