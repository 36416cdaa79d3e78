// Package fixture provides scripted, deterministic collaborators loaded
// from a YAML scenario file. A fixture run exercises the full pipeline
// offline: directors return canned proposals and scores, generation
// returns canned artifacts and qualities.
package fixture

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lmarceau/cutroom/internal/competition"
	"github.com/lmarceau/cutroom/internal/timeline"
)

// #region scenario-types

// Scenario is the top-level YAML structure for a fixture run.
type Scenario struct {
	Description string             `yaml:"description"`
	Directors   []DirectorScript   `yaml:"directors"`
	Generation  GenerationScenario `yaml:"generation"`
	Expected    Expectations       `yaml:"expected,omitempty"`
}

// Expectations pins the outcomes a replay of the scenario must reproduce.
// Empty fields are not checked.
type Expectations struct {
	ConceptWinner    string `yaml:"concept_winner,omitempty"`
	StoryboardWinner string `yaml:"storyboard_winner,omitempty"`
	Completed        *bool  `yaml:"completed,omitempty"`
}

// DirectorScript scripts one director: its identity, one proposal per
// round kind, and the scores it hands out as an evaluator.
type DirectorScript struct {
	ID     string             `yaml:"id"`
	Weight float64            `yaml:"weight"`
	Traits map[string]float64 `yaml:"traits"`

	Proposals map[string]ProposalScript `yaml:"proposals"` // keyed by round kind
	Scores    map[string]ScoreTable     `yaml:"scores"`    // keyed by round kind
}

// ScoreTable maps generator id to the score this director assigns.
type ScoreTable map[string]float64

// ProposalScript is the canned proposal for one round kind.
type ProposalScript struct {
	Title      string             `yaml:"title"`
	Notes      string             `yaml:"notes"`
	Confidence float64            `yaml:"confidence"`
	Segments   []timeline.Segment `yaml:"segments,omitempty"`
	Slots      []timeline.Slot    `yaml:"slots,omitempty"`
}

// GenerationScenario scripts the phase-3 collaborators per slot.
type GenerationScenario struct {
	DefaultQuality float64      `yaml:"default_quality"`
	Slots          []SlotScript `yaml:"slots"`
}

// SlotScript scripts successive attempts for one slot. Failures and
// Qualities are indexed by attempt; attempts past the end of Failures
// succeed, attempts past the end of Qualities use DefaultQuality.
type SlotScript struct {
	SlotID    string    `yaml:"slot_id"`
	Failures  []string  `yaml:"failures,omitempty"` // "", "transient", "permanent"
	Qualities []float64 `yaml:"qualities,omitempty"`
}

// #endregion scenario-types

// #region loader

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &sc, nil
}

// Validate checks director identities and failure vocabulary.
func (sc *Scenario) Validate() error {
	if len(sc.Directors) == 0 {
		return fmt.Errorf("no directors scripted")
	}
	seen := make(map[string]bool)
	for _, d := range sc.Directors {
		if d.ID == "" {
			return fmt.Errorf("director with empty id")
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate director id %q", d.ID)
		}
		seen[d.ID] = true
		if d.Weight <= 0 {
			return fmt.Errorf("director %s: weight must be positive", d.ID)
		}
	}
	for _, sl := range sc.Generation.Slots {
		if sl.SlotID == "" {
			return fmt.Errorf("generation script with empty slot_id")
		}
		for _, f := range sl.Failures {
			switch f {
			case "", "transient", "permanent":
			default:
				return fmt.Errorf("slot %s: unknown failure kind %q", sl.SlotID, f)
			}
		}
	}
	return nil
}

// Roster returns the scripted directors as competition participants.
func (sc *Scenario) Roster() []competition.Director {
	out := make([]competition.Director, len(sc.Directors))
	for i := range sc.Directors {
		out[i] = &Director{script: sc.Directors[i]}
	}
	return out
}

// #endregion loader
