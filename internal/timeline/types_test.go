package timeline

import (
	"strings"
	"testing"
)

func TestValidateSegments(t *testing.T) {
	segs := []Segment{
		{ID: "a", Label: "calm", Start: 0, End: 10},
		{ID: "b", Label: "intense", Start: 10, End: 20},
	}
	if err := ValidateSegments(segs, 20); err != nil {
		t.Fatalf("ValidateSegments: %v", err)
	}

	tests := []struct {
		name  string
		segs  []Segment
		total float64
		want  string
	}{
		{"empty", nil, 20, "no segments"},
		{"gap", []Segment{{ID: "a", Start: 0, End: 5}, {ID: "b", Start: 6, End: 20}}, 20, "gap or overlap"},
		{"overlap", []Segment{{ID: "a", Start: 0, End: 12}, {ID: "b", Start: 10, End: 20}}, 20, "gap or overlap"},
		{"inverted", []Segment{{ID: "a", Start: 5, End: 5}}, 5, "end"},
		{"short coverage", []Segment{{ID: "a", Start: 0, End: 18}}, 20, "cover"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSegments(tt.segs, tt.total)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateSlots(t *testing.T) {
	seg := Segment{ID: "a", Label: "calm", Start: 0, End: 10}
	slots := []Slot{
		{ID: "s1", SegmentID: "a", Start: 0, End: 4},
		{ID: "s2", SegmentID: "a", Start: 4, End: 10},
	}
	if err := ValidateSlots(slots, seg); err != nil {
		t.Fatalf("ValidateSlots: %v", err)
	}

	if err := ValidateSlots(nil, seg); err == nil {
		t.Fatal("expected error for empty slot list")
	}
	wrongParent := []Slot{{ID: "s1", SegmentID: "b", Start: 0, End: 10}}
	if err := ValidateSlots(wrongParent, seg); err == nil {
		t.Fatal("expected error for wrong parent")
	}
	short := []Slot{{ID: "s1", SegmentID: "a", Start: 0, End: 9}}
	if err := ValidateSlots(short, seg); err == nil {
		t.Fatal("expected error for short coverage")
	}
}

func TestVarianceTierLower(t *testing.T) {
	if TierHigh.Lower() != TierMedium || TierMedium.Lower() != TierLow || TierLow.Lower() != TierLow {
		t.Fatal("unexpected tier lowering")
	}
}

func TestDurations(t *testing.T) {
	if d := (Segment{Start: 2, End: 7.5}).Duration(); d != 5.5 {
		t.Fatalf("segment duration %f", d)
	}
	if d := (Slot{Start: 1, End: 3.25}).Duration(); d != 2.25 {
		t.Fatalf("slot duration %f", d)
	}
}
