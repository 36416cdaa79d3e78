package audiofeed

import (
	"os"
	"path/filepath"
	"testing"
)

const validAnalysis = `
title: test track
duration: 30.0
bpm: 120
beats: [0.5, 1.0, 1.5, 2.0, 10.0, 20.5]
segments:
  - id: seg-1
    label: calm
    start: 0
    end: 10
  - id: seg-2
    label: intense
    start: 10
    end: 20
  - id: seg-3
    label: calm
    start: 20
    end: 30
`

func writeAnalysis(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analysis.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write analysis: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	a, err := Load(writeAnalysis(t, validAnalysis))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a.Duration != 30.0 {
		t.Fatalf("expected duration 30, got %f", a.Duration)
	}
	if len(a.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(a.Segments))
	}
	if a.Segments[1].Label != "intense" {
		t.Fatalf("expected intense, got %s", a.Segments[1].Label)
	}
	if len(a.Beats) != 6 {
		t.Fatalf("expected 6 beats, got %d", len(a.Beats))
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadBadYAML(t *testing.T) {
	_, err := Load(writeAnalysis(t, "duration: [not a number"))
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateRejectsGaps(t *testing.T) {
	bad := `
duration: 30.0
beats: []
segments:
  - {id: seg-1, label: calm, start: 0, end: 10}
  - {id: seg-2, label: intense, start: 12, end: 30}
`
	_, err := Load(writeAnalysis(t, bad))
	if err == nil {
		t.Fatal("expected error for segment gap")
	}
}

func TestValidateRejectsUnorderedBeats(t *testing.T) {
	bad := `
duration: 30.0
beats: [1.0, 0.5]
segments:
  - {id: seg-1, label: calm, start: 0, end: 30}
`
	_, err := Load(writeAnalysis(t, bad))
	if err == nil {
		t.Fatal("expected error for unordered beats")
	}
}

func TestValidateRejectsBeatPastEnd(t *testing.T) {
	bad := `
duration: 30.0
beats: [31.0]
segments:
  - {id: seg-1, label: calm, start: 0, end: 30}
`
	_, err := Load(writeAnalysis(t, bad))
	if err == nil {
		t.Fatal("expected error for beat past track end")
	}
}

func TestBeatsIn(t *testing.T) {
	a, err := Load(writeAnalysis(t, validAnalysis))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got := a.BeatsIn(0.5, 2.0)
	if len(got) != 3 {
		t.Fatalf("expected 3 beats in [0.5, 2.0), got %v", got)
	}
	if got[0] != 0.5 || got[2] != 1.5 {
		t.Fatalf("wrong beats: %v", got)
	}

	if got := a.BeatsIn(25, 30); len(got) != 0 {
		t.Fatalf("expected no beats in [25, 30), got %v", got)
	}
}
