package fixture

import (
	"context"
	"fmt"

	"github.com/lmarceau/cutroom/internal/competition"
)

// #region director
// Director plays back one DirectorScript. Proposals and scores are fixed,
// so a fixture round is bit-identical across runs.
type Director struct {
	script DirectorScript
}

// NewDirector wraps a script for direct use in tests.
func NewDirector(script DirectorScript) *Director {
	return &Director{script: script}
}

func (d *Director) Identity() competition.Identity {
	return competition.Identity{
		ID:     d.script.ID,
		Weight: d.script.Weight,
		Traits: d.script.Traits,
	}
}

// Propose returns the canned proposal for the round kind. A director with
// no script for the kind fails the round like a live collaborator would.
func (d *Director) Propose(ctx context.Context, rc competition.RoundContext) (competition.Proposal, error) {
	ps, ok := d.script.Proposals[string(rc.Kind)]
	if !ok {
		return competition.Proposal{}, fmt.Errorf("director %s: no scripted proposal for %s round", d.script.ID, rc.Kind)
	}
	return competition.Proposal{
		GeneratorID: d.script.ID,
		Title:       ps.Title,
		Notes:       ps.Notes,
		Confidence:  ps.Confidence,
		Segments:    ps.Segments,
		Slots:       ps.Slots,
	}, nil
}

// Evaluate returns the scripted score for the proposal's generator.
// Unscripted pairs get a neutral 50.
func (d *Director) Evaluate(ctx context.Context, p competition.Proposal, rc competition.RoundContext) (competition.Evaluation, error) {
	score := 50.0
	if table, ok := d.script.Scores[string(rc.Kind)]; ok {
		if s, ok := table[p.GeneratorID]; ok {
			score = s
		}
	}
	return competition.Evaluation{
		EvaluatorID: d.script.ID,
		ProposalID:  p.GeneratorID,
		Score:       score,
		Rationale:   "scripted",
	}, nil
}

// #endregion director
