package live

import (
	"context"
	"fmt"

	"github.com/lmarceau/cutroom/internal/competition"
)

// #region director
// Director fronts one roster identity with remote propose/evaluate calls.
// The service selects the director persona by the id in the request.
type Director struct {
	id     competition.Identity
	client *Client
}

// NewDirector binds a roster identity to the collaborator client.
func NewDirector(id competition.Identity, client *Client) *Director {
	return &Director{id: id, client: client}
}

// Directors binds a full roster to one shared client.
func Directors(ids []competition.Identity, client *Client) []competition.Director {
	out := make([]competition.Director, len(ids))
	for i, id := range ids {
		out[i] = NewDirector(id, client)
	}
	return out
}

func (d *Director) Identity() competition.Identity {
	return d.id
}

type proposeRequest struct {
	Director competition.Identity     `json:"director"`
	Round    competition.RoundContext `json:"round"`
}

// Propose asks the service for this director's candidate.
func (d *Director) Propose(ctx context.Context, rc competition.RoundContext) (competition.Proposal, error) {
	var p competition.Proposal
	if err := d.client.post(ctx, "/v1/propose", proposeRequest{Director: d.id, Round: rc}, &p); err != nil {
		return competition.Proposal{}, fmt.Errorf("director %s propose: %w", d.id.ID, err)
	}
	p.GeneratorID = d.id.ID
	return p, nil
}

type evaluateRequest struct {
	Director competition.Identity     `json:"director"`
	Proposal competition.Proposal     `json:"proposal"`
	Round    competition.RoundContext `json:"round"`
}

// Evaluate asks the service to score a proposal in this director's voice.
func (d *Director) Evaluate(ctx context.Context, p competition.Proposal, rc competition.RoundContext) (competition.Evaluation, error) {
	var ev competition.Evaluation
	if err := d.client.post(ctx, "/v1/evaluate", evaluateRequest{Director: d.id, Proposal: p, Round: rc}, &ev); err != nil {
		return competition.Evaluation{}, fmt.Errorf("director %s evaluate: %w", d.id.ID, err)
	}
	ev.EvaluatorID = d.id.ID
	ev.ProposalID = p.GeneratorID
	return ev, nil
}

// #endregion director
