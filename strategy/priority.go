package strategy

import (
	"github.com/BaSui01/turnflow/config"
	"github.com/BaSui01/turnflow/types"
)

// Priority is the priority-preemptive strategy. An active holder is
// preempted only when a challenger outranks it by more than the configured
// threshold and only after the grace period has elapsed since the
// challenger arrived, which prevents flapping between near-equal holders.
// Ties are broken by earliest arrival.
type Priority struct {
	turnCfg config.TurnConfig
	cfg     config.PriorityConfig
}

// NewPriority creates the priority-preemptive strategy.
func NewPriority(turnCfg config.TurnConfig, cfg config.PriorityConfig) *Priority {
	return &Priority{turnCfg: turnCfg, cfg: cfg}
}

// Name implements Strategy.
func (p *Priority) Name() string { return "priority" }

// Decide implements Strategy.
func (p *Priority) Decide(in Input) (Outcome, error) {
	if len(in.View.Pending) == 0 {
		return Outcome{Decision: types.NoChange()}, nil
	}

	// The queue is already ordered: highest priority first, stable by
	// arrival. The head is the strongest challenger.
	challenger := in.View.Pending[0]

	holder, occupied := in.View.Active[0]
	if !occupied {
		return Outcome{
			Decision: types.Grant(challenger.Handle, challenger.ParticipantID, 0,
				turnDuration(p.turnCfg, challenger)),
		}, nil
	}

	if holder.State == types.TurnSuspended {
		// A suspended holder still owns the slot; it cannot be preempted
		// because it is not acting.
		return Outcome{Decision: queueOrNoChange(in)}, nil
	}

	gap := challenger.Priority - holder.Priority
	if gap <= p.cfg.PreemptionThreshold || !holder.Revocable {
		return Outcome{Decision: queueOrNoChange(in)}, nil
	}

	// The holder keeps its minimum guaranteed duration.
	minHeld := holder.StartedAt.Add(holder.MinDuration)
	graceEnd := challenger.ArrivedAt.Add(p.cfg.GracePeriod)
	ready := graceEnd
	if minHeld.After(ready) {
		ready = minHeld
	}

	if in.Now.Before(ready) {
		out := Outcome{Decision: queueOrNoChange(in)}
		wake := ready
		out.Wake = &wake
		return out, nil
	}

	return Outcome{
		Decision: types.Preempt(holder.ParticipantID, types.GrantSpec{
			Handle:        challenger.Handle,
			ParticipantID: challenger.ParticipantID,
			Slot:          0,
			Duration:      turnDuration(p.turnCfg, challenger),
		}),
	}, nil
}
