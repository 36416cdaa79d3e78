package fixture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lmarceau/cutroom/internal/executor"
)

// #region services
// Services plays back a GenerationScenario as both phase-3 collaborators.
// Per-slot attempt counters make failure and quality scripts line up with
// the executor's retry sequence.
type Services struct {
	mu       sync.Mutex
	scenario GenerationScenario
	bySlot   map[string]SlotScript
	attempts map[string]int
	scored   map[string]int
}

// NewServices builds the scripted generation and evaluation services.
func NewServices(gs GenerationScenario) *Services {
	bySlot := make(map[string]SlotScript, len(gs.Slots))
	for _, sl := range gs.Slots {
		bySlot[sl.SlotID] = sl
	}
	if gs.DefaultQuality <= 0 {
		gs.DefaultQuality = 0.9
	}
	return &Services{
		scenario: gs,
		bySlot:   bySlot,
		attempts: make(map[string]int),
		scored:   make(map[string]int),
	}
}

// Generate consumes the slot's next scripted failure, or succeeds with a
// deterministic artifact ref.
func (s *Services) Generate(ctx context.Context, req executor.GenerationRequest) (executor.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return executor.Artifact{}, err
	}
	s.mu.Lock()
	n := s.attempts[req.Slot.ID]
	s.attempts[req.Slot.ID]++
	script := s.bySlot[req.Slot.ID]
	s.mu.Unlock()

	if n < len(script.Failures) {
		switch script.Failures[n] {
		case "transient":
			return executor.Artifact{}, &executor.CollabError{
				Op: "generate", Retryable: true, Err: errors.New("scripted transient failure"),
			}
		case "permanent":
			return executor.Artifact{}, &executor.CollabError{
				Op: "generate", Retryable: false, Err: errors.New("scripted permanent failure"),
			}
		}
	}
	return executor.Artifact{
		Ref: fmt.Sprintf("fixture://%s/%d", req.Slot.ID, n+1),
	}, nil
}

// Score consumes the slot's next scripted quality, falling back to the
// scenario default.
func (s *Services) Score(ctx context.Context, art executor.Artifact, req executor.GenerationRequest) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.scored[req.Slot.ID]
	s.scored[req.Slot.ID]++
	if script, ok := s.bySlot[req.Slot.ID]; ok && n < len(script.Qualities) {
		return script.Qualities[n], nil
	}
	return s.scenario.DefaultQuality, nil
}

// #endregion services
