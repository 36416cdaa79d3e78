// Package driver sequences the four pipeline phases over one session:
// concept and storyboard competitions, timing, and production. Each phase
// persists its payload before the next one starts, so a run can resume
// from the last completed boundary.
package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/lmarceau/cutroom/internal/audiofeed"
	"github.com/lmarceau/cutroom/internal/competition"
	"github.com/lmarceau/cutroom/internal/curve"
	"github.com/lmarceau/cutroom/internal/executor"
	"github.com/lmarceau/cutroom/internal/logging"
	"github.com/lmarceau/cutroom/internal/optimizer"
	"github.com/lmarceau/cutroom/internal/session"
	"github.com/lmarceau/cutroom/internal/timeline"
)

// #region driver
// Driver owns one pipeline configuration: the stores, the director roster,
// and the phase-3 collaborators.
type Driver struct {
	store     *session.Store
	concerns  *logging.ConcernLog
	directors []competition.Director
	engine    *competition.Engine
	opt       *optimizer.Optimizer
	exec      *executor.Executor
	cfg       Config
}

// New wires a driver. concerns may be nil; clock and backoff may be nil to
// use the real implementations.
func New(store *session.Store, concerns *logging.ConcernLog, directors []competition.Director,
	gen executor.ArtifactGenerationService, eval executor.QualityEvaluationService,
	clock executor.Clock, backoff executor.BackoffPolicy, cfg Config) *Driver {
	return &Driver{
		store:     store,
		concerns:  concerns,
		directors: directors,
		engine:    competition.NewEngine(store, concerns, competition.DefaultConfig()),
		opt:       optimizer.New(concerns, cfg.Constraints),
		exec:      executor.New(gen, eval, store, concerns, clock, backoff, cfg.Execution),
		cfg:       cfg,
	}
}

// #endregion driver

// #region run
// Run executes phases start..end inclusive against the analysis. An empty
// sessionID creates a fresh session; otherwise the existing session is
// resumed and the store enforces that every phase before start completed.
// Returns the session id alongside the first phase error.
func (d *Driver) Run(ctx context.Context, sessionID string, an *audiofeed.Analysis, start, end int) (string, error) {
	if start < PhaseConcept || end >= NumPhases || start > end {
		return sessionID, fmt.Errorf("%w: %d..%d", ErrInvalidPhaseRange, start, end)
	}
	if sessionID == "" {
		id, err := d.store.CreateSession()
		if err != nil {
			return "", fmt.Errorf("create session: %w", err)
		}
		sessionID = id
		log.Printf("[PIPE] created session %s for track %q", sessionID, an.Title)
	}

	for p := start; p <= end; p++ {
		if err := ctx.Err(); err != nil {
			return sessionID, err
		}
		if err := d.runPhase(ctx, sessionID, an, p); err != nil {
			return sessionID, err
		}
	}
	return sessionID, nil
}

// NextPhase returns the first phase of the session that has not completed,
// or NumPhases when the whole pipeline is done.
func (d *Driver) NextPhase(sessionID string) (int, error) {
	sess, err := d.store.LoadSession(sessionID)
	if err != nil {
		return 0, err
	}
	for p := 0; p < NumPhases; p++ {
		ph := sess.Phase(p)
		if ph == nil || ph.Status != session.PhaseCompleted {
			return p, nil
		}
	}
	return NumPhases, nil
}

func (d *Driver) runPhase(ctx context.Context, sessionID string, an *audiofeed.Analysis, p int) error {
	if err := d.store.StartPhase(sessionID, p); err != nil {
		return fmt.Errorf("start phase %d (%s): %w", p, PhaseName(p), err)
	}
	log.Printf("[PIPE] session %s: phase %d (%s) started", sessionID, p, PhaseName(p))

	var err error
	switch p {
	case PhaseConcept:
		err = d.concept(ctx, sessionID, an)
	case PhaseStoryboard:
		err = d.storyboard(ctx, sessionID, an)
	case PhaseTiming:
		err = d.timing(ctx, sessionID, an)
	case PhaseProduction:
		err = d.production(ctx, sessionID)
	}
	if err != nil {
		if ferr := d.store.FailPhase(sessionID, p, err.Error()); ferr != nil {
			log.Printf("[PIPE] session %s: failed to record phase %d failure: %v", sessionID, p, ferr)
		}
		return fmt.Errorf("phase %d (%s): %w", p, PhaseName(p), err)
	}
	log.Printf("[PIPE] session %s: phase %d (%s) completed", sessionID, p, PhaseName(p))
	return nil
}

// #endregion run

// #region phase-concept
func (d *Driver) concept(ctx context.Context, sessionID string, an *audiofeed.Analysis) error {
	rc := competition.RoundContext{
		SessionID: sessionID,
		PhaseIdx:  PhaseConcept,
		Kind:      competition.RoundConcept,
		Track:     an.Title,
		Duration:  an.Duration,
		Beats:     an.Beats,
	}
	res, err := d.engine.RunRound(ctx, rc, d.directors)
	if err != nil {
		return err
	}
	win, ok := res.Winner()
	if !ok {
		return fmt.Errorf("round produced no winning proposal")
	}
	if err := timeline.ValidateSegments(win.Segments, an.Duration); err != nil {
		return fmt.Errorf("winner %s segments: %w", win.GeneratorID, err)
	}
	for _, seg := range win.Segments {
		if _, err := curve.IntensityOf(seg.Label); err != nil {
			return fmt.Errorf("winner %s segment %s: %w", win.GeneratorID, seg.ID, err)
		}
	}
	return d.store.CompletePhase(sessionID, PhaseConcept, ConceptPayload{
		WinnerID: win.GeneratorID,
		Segments: win.Segments,
	})
}

// #endregion phase-concept

// #region phase-storyboard
func (d *Driver) storyboard(ctx context.Context, sessionID string, an *audiofeed.Analysis) error {
	var concept ConceptPayload
	if err := d.phasePayload(sessionID, PhaseConcept, &concept); err != nil {
		return err
	}

	rc := competition.RoundContext{
		SessionID: sessionID,
		PhaseIdx:  PhaseStoryboard,
		Kind:      competition.RoundStoryboard,
		Track:     an.Title,
		Duration:  an.Duration,
		Beats:     an.Beats,
		Segments:  concept.Segments,
	}
	res, err := d.engine.RunRound(ctx, rc, d.directors)
	if err != nil {
		return err
	}
	win, ok := res.Winner()
	if !ok {
		return fmt.Errorf("round produced no winning proposal")
	}

	slots, err := anchorSlots(win.Slots, concept.Segments, an)
	if err != nil {
		return fmt.Errorf("winner %s slots: %w", win.GeneratorID, err)
	}
	return d.store.CompletePhase(sessionID, PhaseStoryboard, StoryboardPayload{
		WinnerID: win.GeneratorID,
		Slots:    slots,
	})
}

// anchorSlots validates the winning shot list against the segment plan and
// stamps each slot with the beats of its parent segment.
func anchorSlots(slots []timeline.Slot, segs []timeline.Segment, an *audiofeed.Analysis) ([]timeline.Slot, error) {
	bySegment := make(map[string][]timeline.Slot)
	for _, sl := range slots {
		bySegment[sl.SegmentID] = append(bySegment[sl.SegmentID], sl)
	}

	out := make([]timeline.Slot, 0, len(slots))
	for _, seg := range segs {
		group := bySegment[seg.ID]
		if err := timeline.ValidateSlots(group, seg); err != nil {
			return nil, err
		}
		beats := an.BeatsIn(seg.Start, seg.End)
		for _, sl := range group {
			sl.Anchors = beats
			out = append(out, sl)
		}
		delete(bySegment, seg.ID)
	}
	for segID := range bySegment {
		return nil, fmt.Errorf("slots reference unknown segment %s", segID)
	}
	return out, nil
}

// #endregion phase-storyboard

// #region phase-timing
func (d *Driver) timing(ctx context.Context, sessionID string, an *audiofeed.Analysis) error {
	var concept ConceptPayload
	if err := d.phasePayload(sessionID, PhaseConcept, &concept); err != nil {
		return err
	}
	var board StoryboardPayload
	if err := d.phasePayload(sessionID, PhaseStoryboard, &board); err != nil {
		return err
	}

	cv, err := curve.Build(concept.Segments, an.Duration, d.cfg.Curve)
	if err != nil {
		return err
	}
	slots, err := d.opt.Optimize(sessionID, PhaseTiming, board.Slots, cv)
	if err != nil {
		return err
	}
	return d.store.CompletePhase(sessionID, PhaseTiming, TimingPayload{
		Slots:   slots,
		Samples: cv.Samples,
		Stats:   cv.Stats,
	})
}

// #endregion phase-timing

// #region phase-production
func (d *Driver) production(ctx context.Context, sessionID string) error {
	var timing TimingPayload
	if err := d.phasePayload(sessionID, PhaseTiming, &timing); err != nil {
		return err
	}

	rep, err := d.exec.Run(ctx, sessionID, PhaseProduction, timing.Slots)
	if err != nil {
		return err
	}
	if !rep.Completed() {
		return fmt.Errorf("%w: %d of %d", ErrTasksExhausted, rep.Exhausted, rep.Total)
	}
	return d.store.CompletePhase(sessionID, PhaseProduction, ProductionPayload{Report: *rep})
}

// #endregion phase-production

// #region payload-load
// phasePayload unmarshals the persisted output of a completed phase.
func (d *Driver) phasePayload(sessionID string, idx int, out interface{}) error {
	sess, err := d.store.LoadSession(sessionID)
	if err != nil {
		return err
	}
	ph := sess.Phase(idx)
	if ph == nil || ph.Status != session.PhaseCompleted {
		return fmt.Errorf("phase %d (%s): %w", idx, PhaseName(idx), session.ErrPrecedingPhaseIncomplete)
	}
	if err := json.Unmarshal(ph.Payload, out); err != nil {
		return fmt.Errorf("decode phase %d payload: %w", idx, err)
	}
	return nil
}

// #endregion payload-load
