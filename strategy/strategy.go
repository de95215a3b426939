// Package strategy implements the pluggable allocation engines that decide,
// given a ledger snapshot and the pending requests, who acts next. Variants:
// sequential, priority-preemptive, auction, voting, consensus, and
// game-theoretic. Every strategy is a pure function of its input; round
// state (bids, ballots, acks) is versioned and passed in and out explicitly
// so the ledger keeps a single writer.
package strategy

import (
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/turnflow/config"
	"github.com/BaSui01/turnflow/ledger"
	"github.com/BaSui01/turnflow/types"
)

// Input is everything a strategy may base its decision on.
type Input struct {
	// Now is the logical decision time.
	Now time.Time
	// View is a read-only ledger snapshot.
	View ledger.View
	// Participants are the currently present (non-offline) participants.
	Participants []*types.Participant
	// Round is the strategy-internal round state from the previous
	// invocation, nil when no round is in progress.
	Round *RoundState
	// Trigger is the handle of the request whose submission caused this
	// evaluation, empty for timer- or end-turn-driven evaluations.
	Trigger types.RequestHandle
}

// Outcome is the full result of a strategy invocation.
type Outcome struct {
	// Decision is folded into the ledger by the coordinator.
	Decision types.AllocationDecision
	// Round is the updated round state, nil when the round closed.
	Round *RoundState
	// Absorbed lists ballot requests consumed into the round. They are
	// resolved by the coordinator without becoming turns.
	Absorbed []types.RequestHandle
	// Wake, when set, asks the coordinator to re-evaluate at that time
	// (grace expiry, window close, round timeout).
	Wake *time.Time
}

// Strategy decides the next grant from a ledger snapshot.
type Strategy interface {
	Name() string
	Decide(in Input) (Outcome, error)
}

// New constructs the strategy selected by the configuration.
func New(cfg *config.Config, logger *zap.Logger) (Strategy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Strategy {
	case config.StrategySequential:
		return NewSequential(cfg.Turn), nil
	case config.StrategyPriority:
		return NewPriority(cfg.Turn, cfg.Priority), nil
	case config.StrategyAuction:
		return NewAuction(cfg.Turn, cfg.Auction, logger), nil
	case config.StrategyVoting:
		return NewVoting(cfg.Turn, cfg.Voting, logger), nil
	case config.StrategyConsensus:
		return NewConsensus(cfg.Turn, cfg.Consensus, logger), nil
	case config.StrategyGameTheoretic:
		return NewGameTheoretic(cfg.Turn, cfg.GameTheory, logger), nil
	default:
		return nil, types.NewErrorf(types.ErrInvalidRequest, "unknown strategy: %s", cfg.Strategy)
	}
}

// turnDuration resolves the granted duration from a request's estimate,
// clamped to the configured bounds.
func turnDuration(turnCfg config.TurnConfig, req *types.TurnRequest) time.Duration {
	d := req.EstimatedDuration
	if d <= 0 {
		d = turnCfg.DefaultDuration
	}
	if d > turnCfg.MaxDuration {
		d = turnCfg.MaxDuration
	}
	return d
}

// earliest returns the pending request with the earliest arrival, ignoring
// priority. Ties broken by handle for determinism.
func earliest(pending []*types.TurnRequest) *types.TurnRequest {
	var best *types.TurnRequest
	for _, p := range pending {
		if best == nil ||
			p.ArrivedAt.Before(best.ArrivedAt) ||
			(p.ArrivedAt.Equal(best.ArrivedAt) && p.Handle < best.Handle) {
			best = p
		}
	}
	return best
}

// freeSlots lists unoccupied slots in ascending order.
func freeSlots(v ledger.View) []int {
	var out []int
	for s := 0; s < v.Slots; s++ {
		if _, ok := v.Active[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

// queueOrNoChange reports a queue position for the triggering request, or
// no change for timer-driven evaluations.
func queueOrNoChange(in Input) types.AllocationDecision {
	if in.Trigger == "" {
		return types.NoChange()
	}
	for i, p := range in.View.Pending {
		if p.Handle == in.Trigger {
			return types.Queue(in.Trigger, i+1)
		}
	}
	return types.NoChange()
}
