// Package competition runs one proposal round: parallel generation across
// directors, full cross-evaluation, weighted aggregation, and deterministic
// winner selection.
package competition

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lmarceau/cutroom/internal/logging"
	"github.com/lmarceau/cutroom/internal/session"
)

// #region config
// Config holds the per-call timeouts for director collaborators.
type Config struct {
	ProposeTimeout  time.Duration
	EvaluateTimeout time.Duration
}

// DefaultConfig returns the standard collaborator timeouts.
func DefaultConfig() Config {
	return Config{
		ProposeTimeout:  60 * time.Second,
		EvaluateTimeout: 30 * time.Second,
	}
}

// #endregion config

// #region engine
// Engine coordinates competition rounds and persists their records.
type Engine struct {
	store    *session.Store
	concerns *logging.ConcernLog
	cfg      Config
}

// NewEngine creates a competition engine backed by the session store.
func NewEngine(store *session.Store, concerns *logging.ConcernLog, cfg Config) *Engine {
	return &Engine{store: store, concerns: concerns, cfg: cfg}
}

// #endregion engine

// #region run-round
// RunRound invokes every director once, cross-evaluates every surviving
// proposal with every surviving evaluator, aggregates weighted scores, and
// picks the winner. The full round record is persisted under the session's
// globals before returning. A single director failure drops that director;
// the round fails only when nobody survives.
func (e *Engine) RunRound(ctx context.Context, rc RoundContext, directors []Director) (*RoundResult, error) {
	if len(directors) == 0 {
		return nil, ErrNoSurvivingGenerators
	}

	proposals, droppedGens := e.generate(ctx, rc, directors)
	if len(proposals) == 0 {
		return nil, fmt.Errorf("round %s phase %d: %w", rc.Kind, rc.PhaseIdx, ErrNoSurvivingGenerators)
	}

	survivors := make([]Director, 0, len(directors))
	for _, d := range directors {
		if !contains(droppedGens, d.Identity().ID) {
			survivors = append(survivors, d)
		}
	}

	evaluations, droppedEvals := e.evaluate(ctx, rc, survivors, proposals)
	scores, err := aggregate(survivors, proposals, evaluations, droppedEvals)
	if err != nil {
		return nil, fmt.Errorf("round %s phase %d: %w", rc.Kind, rc.PhaseIdx, err)
	}

	winner := pickWinner(scores)
	log.Printf("[COMP] phase=%d kind=%s proposals=%d evaluations=%d winner=%s score=%.2f",
		rc.PhaseIdx, rc.Kind, len(proposals), len(evaluations), winner, scores[winner])

	result := &RoundResult{
		Kind:              rc.Kind,
		Proposals:         proposals,
		Evaluations:       evaluations,
		Scores:            scores,
		WinnerID:          winner,
		DroppedGenerators: droppedGens,
		DroppedEvaluators: droppedEvals,
	}

	key := fmt.Sprintf("round:%d", rc.PhaseIdx)
	if err := e.store.SetGlobal(rc.SessionID, key, result); err != nil {
		return nil, fmt.Errorf("persist round record: %w", err)
	}
	return result, nil
}

// #endregion run-round

// #region generate
// generate fans proposal calls out across all directors. Failures are
// absorbed: the director is dropped and a concern recorded.
func (e *Engine) generate(ctx context.Context, rc RoundContext, directors []Director) ([]Proposal, []string) {
	slots := make([]*Proposal, len(directors))
	failures := make([]error, len(directors))

	var g errgroup.Group
	for i, d := range directors {
		i, d := i, d
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, e.cfg.ProposeTimeout)
			defer cancel()

			p, err := d.Propose(cctx, rc)
			if err != nil {
				failures[i] = err
				return nil
			}
			p.GeneratorID = d.Identity().ID
			slots[i] = &p
			return nil
		})
	}
	g.Wait()

	var proposals []Proposal
	var dropped []string
	for i, d := range directors {
		if slots[i] != nil {
			proposals = append(proposals, *slots[i])
			continue
		}
		id := d.Identity().ID
		dropped = append(dropped, id)
		e.concern(rc, logging.SeverityWarning,
			fmt.Sprintf("generator %s dropped: %v", id, failures[i]))
	}

	sort.Slice(proposals, func(a, b int) bool {
		return proposals[a].GeneratorID < proposals[b].GeneratorID
	})
	return proposals, dropped
}

// #endregion generate

// #region evaluate
// evaluate runs the full cross-evaluation matrix. Evaluators run in
// parallel; each scores every proposal sequentially. An evaluator that times
// out or returns a malformed score is dropped from the round's weight sum
// and all of its evaluations are discarded.
func (e *Engine) evaluate(ctx context.Context, rc RoundContext, evaluators []Director, proposals []Proposal) ([]Evaluation, []string) {
	perEval := make([][]Evaluation, len(evaluators))
	failures := make([]error, len(evaluators))

	var g errgroup.Group
	for i, ev := range evaluators {
		i, ev := i, ev
		g.Go(func() error {
			var evals []Evaluation
			for _, p := range proposals {
				cctx, cancel := context.WithTimeout(ctx, e.cfg.EvaluateTimeout)
				res, err := ev.Evaluate(cctx, p, rc)
				cancel()
				if err != nil {
					failures[i] = err
					return nil
				}
				if res.Score < 0 || res.Score > 100 {
					failures[i] = fmt.Errorf("malformed score %.2f for proposal %s", res.Score, p.GeneratorID)
					return nil
				}
				res.EvaluatorID = ev.Identity().ID
				res.ProposalID = p.GeneratorID
				evals = append(evals, res)
			}
			perEval[i] = evals
			return nil
		})
	}
	g.Wait()

	var evaluations []Evaluation
	var dropped []string
	for i, ev := range evaluators {
		if perEval[i] != nil {
			evaluations = append(evaluations, perEval[i]...)
			continue
		}
		id := ev.Identity().ID
		dropped = append(dropped, id)
		cause := "failed"
		if IsTimeout(failures[i]) {
			cause = "timed out"
		}
		e.concern(rc, logging.SeverityWarning,
			fmt.Sprintf("evaluator %s %s, dropped from weight sum: %v", id, cause, failures[i]))
	}

	sort.Slice(evaluations, func(a, b int) bool {
		if evaluations[a].EvaluatorID != evaluations[b].EvaluatorID {
			return evaluations[a].EvaluatorID < evaluations[b].EvaluatorID
		}
		return evaluations[a].ProposalID < evaluations[b].ProposalID
	})
	return evaluations, dropped
}

// #endregion evaluate

// #region aggregate
// aggregate computes the evaluator-weight-adjusted mean score per proposal.
func aggregate(evaluators []Director, proposals []Proposal, evaluations []Evaluation, droppedEvals []string) (map[string]float64, error) {
	weights := make(map[string]float64)
	var weightSum float64
	for _, ev := range evaluators {
		id := ev.Identity().ID
		if contains(droppedEvals, id) {
			continue
		}
		weights[id] = ev.Identity().Weight
		weightSum += ev.Identity().Weight
	}
	if weightSum <= 0 {
		return nil, ErrNoSurvivingEvaluators
	}

	scores := make(map[string]float64, len(proposals))
	for _, p := range proposals {
		scores[p.GeneratorID] = 0
	}
	for _, ev := range evaluations {
		w, ok := weights[ev.EvaluatorID]
		if !ok {
			continue
		}
		scores[ev.ProposalID] += w * ev.Score
	}
	for id := range scores {
		scores[id] /= weightSum
	}
	return scores, nil
}

// pickWinner returns the highest-scoring generator id; ties break to the
// lexically lowest id.
func pickWinner(scores map[string]float64) string {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	winner := ids[0]
	for _, id := range ids[1:] {
		if scores[id] > scores[winner] {
			winner = id
		}
	}
	return winner
}

// #endregion aggregate

// #region helpers
func (e *Engine) concern(rc RoundContext, sev logging.Severity, msg string) {
	log.Printf("[COMP] concern: %s", msg)
	if e.concerns == nil {
		return
	}
	err := e.concerns.Record(logging.Concern{
		SessionID: rc.SessionID,
		PhaseIdx:  rc.PhaseIdx,
		Component: "competition",
		Severity:  sev,
		Message:   msg,
	})
	if err != nil {
		log.Printf("[COMP] failed to record concern: %v", err)
	}
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

// IsTimeout reports whether a collaborator error was a deadline expiry.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// #endregion helpers
