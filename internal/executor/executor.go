// Package executor runs phase 3: one generation task per slot, fanned out
// over a bounded worker pool, with quality gating and classified retries.
package executor

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lmarceau/cutroom/internal/logging"
	"github.com/lmarceau/cutroom/internal/session"
	"github.com/lmarceau/cutroom/internal/timeline"
)

// #region config
// Config bounds the worker pool and the retry budget.
type Config struct {
	MaxParallel      int           // worker pool size
	MaxRetries       int           // retries after the first attempt
	QualityThreshold float64       // minimum acceptable quality score, [0, 1]
	CallTimeout      time.Duration // per collaborator call; expiry is a transient failure
}

// DefaultConfig returns the standard execution limits.
func DefaultConfig() Config {
	return Config{
		MaxParallel:      4,
		MaxRetries:       2,
		QualityThreshold: 0.7,
		CallTimeout:      2 * time.Minute,
	}
}

// #endregion config

// #region executor
// Executor drives generation tasks to a terminal state. A task retries on
// transient collaborator failures (with backoff) and on sub-threshold
// quality (immediately, at a lowered variance tier); it never exceeds
// MaxRetries+1 attempts.
type Executor struct {
	gen      ArtifactGenerationService
	eval     QualityEvaluationService
	sink     TaskSink
	concerns *logging.ConcernLog
	clock    Clock
	backoff  BackoffPolicy
	cfg      Config
}

// New creates an executor. sink and concerns may be nil; clock and backoff
// fall back to RealClock and DefaultBackoff.
func New(gen ArtifactGenerationService, eval QualityEvaluationService, sink TaskSink, concerns *logging.ConcernLog, clock Clock, backoff BackoffPolicy, cfg Config) *Executor {
	if clock == nil {
		clock = RealClock()
	}
	if backoff == nil {
		backoff = DefaultBackoff()
	}
	if cfg.MaxParallel < 1 {
		cfg.MaxParallel = 1
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultConfig().CallTimeout
	}
	return &Executor{
		gen:      gen,
		eval:     eval,
		sink:     sink,
		concerns: concerns,
		clock:    clock,
		backoff:  backoff,
		cfg:      cfg,
	}
}

type task struct {
	id          string
	slot        timeline.Slot
	variance    timeline.VarianceTier
	attempts    int
	quality     float64
	artifactRef string
	lastErr     string
}

// #endregion executor

// #region run
// Run executes one generation task per slot and blocks until every task is
// terminal or ctx is canceled. The report is returned even when some tasks
// exhausted; Run errs only on cancellation or an empty slot list.
func (e *Executor) Run(ctx context.Context, sessionID string, phaseIdx int, slots []timeline.Slot) (*ExecutionReport, error) {
	if len(slots) == 0 {
		return nil, ErrNoTasks
	}
	start := e.clock.Now()

	// A worker requeues only the task it holds, so occupancy never exceeds
	// the task count and sends cannot block.
	queue := make(chan *task, len(slots))
	pending := int64(len(slots))
	for _, sl := range slots {
		v := sl.Variance
		if v == "" {
			v = timeline.TierMedium
		}
		t := &task{id: uuid.NewString(), slot: sl, variance: v}
		e.persist(sessionID, t, StatusQueued)
		queue <- t
	}

	var mu sync.Mutex
	var results []TaskResult

	finish := func(t *task, status TaskStatus) {
		e.persist(sessionID, t, status)
		mu.Lock()
		results = append(results, TaskResult{
			TaskID:      t.id,
			SlotID:      t.slot.ID,
			Status:      status,
			Attempts:    t.attempts,
			Quality:     t.quality,
			ArtifactRef: t.artifactRef,
			LastError:   t.lastErr,
		})
		mu.Unlock()
		if atomic.AddInt64(&pending, -1) == 0 {
			close(queue)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < e.cfg.MaxParallel; w++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case t, ok := <-queue:
					if !ok {
						return nil
					}
					if err := e.attempt(ctx, sessionID, phaseIdx, t, queue, finish); err != nil {
						return err
					}
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].SlotID < results[j].SlotID })
	rep := &ExecutionReport{
		Total:   len(results),
		Elapsed: e.clock.Now().Sub(start),
		Tasks:   results,
	}
	for _, r := range results {
		switch r.Status {
		case StatusSucceeded:
			rep.Succeeded++
			rep.MeanQuality += r.Quality
		case StatusExhausted:
			rep.Exhausted++
		}
	}
	if rep.Succeeded > 0 {
		rep.MeanQuality /= float64(rep.Succeeded)
	}
	log.Printf("[EXEC] session %s: %d tasks, %d succeeded, %d exhausted in %s",
		sessionID, rep.Total, rep.Succeeded, rep.Exhausted, rep.Elapsed)
	return rep, nil
}

// #endregion run

// #region attempt
// attempt drives one generation attempt of t and either finishes the task
// or requeues it. Returns an error only on cancellation.
func (e *Executor) attempt(ctx context.Context, sessionID string, phaseIdx int, t *task, queue chan<- *task, finish func(*task, TaskStatus)) error {
	t.attempts++
	e.persist(sessionID, t, StatusRunning)

	cctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	req := GenerationRequest{TaskID: t.id, Slot: t.slot, Variance: t.variance, Attempt: t.attempts}
	art, err := e.gen.Generate(cctx, req)
	if err == nil {
		var q float64
		q, err = e.eval.Score(cctx, art, req)
		if err == nil {
			t.artifactRef = art.Ref
			t.quality = q
			t.lastErr = ""
			if q >= e.cfg.QualityThreshold {
				finish(t, StatusSucceeded)
				return nil
			}
			if t.attempts > e.cfg.MaxRetries {
				t.lastErr = fmt.Sprintf("quality %.2f below threshold %.2f after %d attempts", q, e.cfg.QualityThreshold, t.attempts)
				e.concern(sessionID, phaseIdx, fmt.Sprintf("slot %s: %s", t.slot.ID, t.lastErr))
				finish(t, StatusExhausted)
				return nil
			}
			// Sub-threshold quality retries immediately at a calmer tier;
			// only transient failures earn a backoff delay.
			t.variance = t.variance.Lower()
			e.persist(sessionID, t, StatusQueued)
			queue <- t
			return nil
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	t.lastErr = err.Error()
	if !Retryable(err) || t.attempts > e.cfg.MaxRetries {
		e.concern(sessionID, phaseIdx, fmt.Sprintf("slot %s exhausted after %d attempts: %v", t.slot.ID, t.attempts, err))
		finish(t, StatusExhausted)
		return nil
	}

	e.persist(sessionID, t, StatusQueued)
	if err := e.clock.Sleep(ctx, e.backoff.Delay(t.attempts)); err != nil {
		return err
	}
	queue <- t
	return nil
}

// #endregion attempt

// #region persist
func (e *Executor) persist(sessionID string, t *task, status TaskStatus) {
	if e.sink == nil {
		return
	}
	err := e.sink.SaveTask(sessionID, session.TaskRecord{
		TaskID:      t.id,
		SlotID:      t.slot.ID,
		Status:      string(status),
		Attempts:    t.attempts,
		Quality:     t.quality,
		ArtifactRef: t.artifactRef,
		LastError:   t.lastErr,
		UpdatedAt:   e.clock.Now(),
	})
	if err != nil {
		log.Printf("[EXEC] failed to persist task %s: %v", t.id, err)
	}
}

func (e *Executor) concern(sessionID string, phaseIdx int, msg string) {
	log.Printf("[EXEC] concern: %s", msg)
	if e.concerns == nil {
		return
	}
	err := e.concerns.Record(logging.Concern{
		SessionID: sessionID,
		PhaseIdx:  phaseIdx,
		Component: "executor",
		Severity:  logging.SeverityError,
		Message:   msg,
	})
	if err != nil {
		log.Printf("[EXEC] failed to record concern: %v", err)
	}
}

// #endregion persist
