package fixture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lmarceau/cutroom/internal/competition"
	"github.com/lmarceau/cutroom/internal/executor"
	"github.com/lmarceau/cutroom/internal/timeline"
)

const sampleScenario = `
description: two-director smoke scenario
directors:
  - id: lynch
    weight: 1.2
    traits: {surrealism: 0.9}
    proposals:
      concept:
        title: neon fog
        confidence: 0.8
        segments:
          - {id: seg-1, label: calm, start: 0, end: 10}
          - {id: seg-2, label: intense, start: 10, end: 20}
    scores:
      concept: {lynch: 70, kurosawa: 60}
  - id: kurosawa
    weight: 1.0
    proposals:
      concept:
        title: rain cut
        confidence: 0.9
        segments:
          - {id: seg-1, label: groove, start: 0, end: 20}
    scores:
      concept: {lynch: 85, kurosawa: 65}
generation:
  default_quality: 0.9
  slots:
    - slot_id: slot-1
      failures: [transient]
      qualities: [0.95]
    - slot_id: slot-2
      failures: [permanent]
expected:
  concept_winner: lynch
  completed: false
`

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

func TestLoadScenario(t *testing.T) {
	sc, err := Load(writeScenario(t, sampleScenario))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(sc.Directors) != 2 {
		t.Fatalf("expected 2 directors, got %d", len(sc.Directors))
	}
	roster := sc.Roster()
	if roster[0].Identity().ID != "lynch" || roster[0].Identity().Weight != 1.2 {
		t.Fatalf("unexpected roster head %+v", roster[0].Identity())
	}
	if sc.Expected.ConceptWinner != "lynch" {
		t.Fatalf("unexpected expectations %+v", sc.Expected)
	}
	if sc.Expected.Completed == nil || *sc.Expected.Completed {
		t.Fatalf("expected completed=false pin, got %+v", sc.Expected.Completed)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no directors", "directors: []"},
		{"missing id", "directors:\n  - weight: 1.0"},
		{"duplicate id", "directors:\n  - {id: a, weight: 1.0}\n  - {id: a, weight: 1.0}"},
		{"zero weight", "directors:\n  - {id: a, weight: 0}"},
		{"bad failure kind", "directors:\n  - {id: a, weight: 1.0}\ngeneration:\n  slots:\n    - {slot_id: s, failures: [sometimes]}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeScenario(t, tt.content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDirectorPlayback(t *testing.T) {
	sc, err := Load(writeScenario(t, sampleScenario))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d := NewDirector(sc.Directors[0])
	rc := competition.RoundContext{Kind: competition.RoundConcept, Duration: 20}

	p, err := d.Propose(context.Background(), rc)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if p.GeneratorID != "lynch" || p.Title != "neon fog" || len(p.Segments) != 2 {
		t.Fatalf("unexpected proposal %+v", p)
	}

	ev, err := d.Evaluate(context.Background(), competition.Proposal{GeneratorID: "kurosawa"}, rc)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev.Score != 60 {
		t.Fatalf("expected scripted score 60, got %f", ev.Score)
	}

	// Unscripted pair falls back to neutral.
	ev, err = d.Evaluate(context.Background(), competition.Proposal{GeneratorID: "nobody"}, rc)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev.Score != 50 {
		t.Fatalf("expected neutral 50, got %f", ev.Score)
	}

	// No storyboard script: the proposal call fails.
	rc.Kind = competition.RoundStoryboard
	if _, err := d.Propose(context.Background(), rc); err == nil {
		t.Fatal("expected error for unscripted round kind")
	}
}

func TestServicesPlayback(t *testing.T) {
	sc, err := Load(writeScenario(t, sampleScenario))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	svc := NewServices(sc.Generation)
	req := executor.GenerationRequest{Slot: timeline.Slot{ID: "slot-1"}}

	// Attempt 1 is a scripted transient failure.
	_, err = svc.Generate(context.Background(), req)
	var ce *executor.CollabError
	if !errors.As(err, &ce) || !ce.Retryable {
		t.Fatalf("expected retryable CollabError, got %v", err)
	}

	// Attempt 2 succeeds with a deterministic ref and scripted quality.
	art, err := svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if art.Ref != "fixture://slot-1/2" {
		t.Fatalf("unexpected ref %q", art.Ref)
	}
	q, err := svc.Score(context.Background(), art, req)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if q != 0.95 {
		t.Fatalf("expected scripted quality 0.95, got %f", q)
	}

	// Permanent failure script.
	req = executor.GenerationRequest{Slot: timeline.Slot{ID: "slot-2"}}
	_, err = svc.Generate(context.Background(), req)
	if !errors.As(err, &ce) || ce.Retryable {
		t.Fatalf("expected permanent CollabError, got %v", err)
	}

	// Unscripted slot: always succeeds at default quality.
	req = executor.GenerationRequest{Slot: timeline.Slot{ID: "slot-9"}}
	if _, err := svc.Generate(context.Background(), req); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	q, err = svc.Score(context.Background(), executor.Artifact{Ref: "x"}, req)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if q != 0.9 {
		t.Fatalf("expected default quality 0.9, got %f", q)
	}
}
