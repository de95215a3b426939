package strategy

import (
	"github.com/BaSui01/turnflow/config"
	"github.com/BaSui01/turnflow/types"
)

// Sequential grants turns strictly in arrival order on slot 0, with no
// preemption. The active holder keeps the turn until it ends.
type Sequential struct {
	turnCfg config.TurnConfig
}

// NewSequential creates the FIFO strategy.
func NewSequential(turnCfg config.TurnConfig) *Sequential {
	return &Sequential{turnCfg: turnCfg}
}

// Name implements Strategy.
func (s *Sequential) Name() string { return "sequential" }

// Decide implements Strategy.
func (s *Sequential) Decide(in Input) (Outcome, error) {
	if len(in.View.Pending) == 0 {
		return Outcome{Decision: types.NoChange()}, nil
	}

	// The slot is considered occupied while suspended as well: a suspended
	// holder resumes into its own slot.
	if _, occupied := in.View.Active[0]; occupied {
		return Outcome{Decision: queueOrNoChange(in)}, nil
	}

	head := earliest(in.View.Pending)
	return Outcome{
		Decision: types.Grant(head.Handle, head.ParticipantID, 0, turnDuration(s.turnCfg, head)),
	}, nil
}
