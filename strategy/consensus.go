package strategy

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/turnflow/config"
	"github.com/BaSui01/turnflow/types"
)

// Consensus finalizes a grant only once enough participants agree. Under
// quorum mode a candidate needs acknowledgments from N - faultTolerance
// present participants. Under leader mode the designated leader's
// acknowledgment (or the leader's own candidacy) finalizes the grant, with
// a term counter advancing per round. The candidate stays queued until the
// agreement threshold is met; a round that times out is retried up to the
// configured limit and then escalated as a coordination failure.
type Consensus struct {
	turnCfg config.TurnConfig
	cfg     config.ConsensusConfig
	logger  *zap.Logger
}

// NewConsensus creates the consensus strategy.
func NewConsensus(turnCfg config.TurnConfig, cfg config.ConsensusConfig, logger *zap.Logger) *Consensus {
	return &Consensus{
		turnCfg: turnCfg,
		cfg:     cfg,
		logger:  logger.With(zap.String("strategy", "consensus")),
	}
}

// Name implements Strategy.
func (c *Consensus) Name() string { return "consensus" }

// Decide implements Strategy.
func (c *Consensus) Decide(in Input) (Outcome, error) {
	var candidate *types.TurnRequest
	var votes []*types.TurnRequest
	for _, p := range in.View.Pending {
		if p.Ballot != nil {
			votes = append(votes, p)
		}
	}
	// The earliest non-ballot request is the proposal under consideration.
	var proposals []*types.TurnRequest
	for _, p := range in.View.Pending {
		if p.Ballot == nil {
			proposals = append(proposals, p)
		}
	}
	if len(proposals) > 0 {
		candidate = earliest(proposals)
	}
	if candidate == nil {
		return Outcome{Round: in.Round, Decision: types.NoChange()}, nil
	}

	round := in.Round
	if !round.Valid() {
		attempts := 0
		var term uint64
		if round != nil {
			attempts = round.Attempts
			term = round.Term
		}
		round = newRound(RoundConsensus, attempts+1, in.Now, in.Now.Add(c.cfg.RoundTimeout))
		round.Attempts = attempts
		round.Term = term + 1
	}

	out := Outcome{Round: round}

	// Absorb acknowledgments for the current candidate.
	for _, v := range votes {
		if round.HasVoted(v.ParticipantID) {
			out.Absorbed = append(out.Absorbed, v.Handle)
			continue
		}
		round.Ballots = append(round.Ballots, BallotRecord{
			VoterID: v.ParticipantID,
			Ballot:  *v.Ballot.Clone(),
			CastAt:  v.ArrivedAt,
		})
		out.Absorbed = append(out.Absorbed, v.Handle)
	}

	if c.agreed(candidate, round, in) {
		free := freeSlots(in.View)
		if len(free) == 0 {
			out.Decision = queueOrNoChange(in)
			wake := round.Deadline
			out.Wake = &wake
			return out, nil
		}
		c.logger.Info("consensus reached",
			zap.String("candidate", candidate.ParticipantID),
			zap.Uint64("term", round.Term),
			zap.Int("acks", c.ackCount(candidate, round)),
		)
		out.Decision = types.Grant(candidate.Handle, candidate.ParticipantID,
			free[0], turnDuration(c.turnCfg, candidate))
		out.Round = nil
		return out, nil
	}

	if in.Now.Before(round.Deadline) {
		// No agreement yet. Keep everyone queued until the ack
		// threshold is met or the round deadline passes.
		out.Decision = queueOrNoChange(in)
		wake := round.Deadline
		out.Wake = &wake
		return out, nil
	}

	// Round timed out without agreement.
	round.Attempts++
	if round.Attempts > c.cfg.MaxRetries {
		handles := make([]types.RequestHandle, 0, len(in.View.Pending))
		for _, p := range in.View.Pending {
			already := false
			for _, h := range out.Absorbed {
				if h == p.Handle {
					already = true
					break
				}
			}
			if !already {
				handles = append(handles, p.Handle)
			}
		}
		c.logger.Error("consensus escalated to coordination failure",
			zap.Int("attempts", round.Attempts),
			zap.Int("max_retries", c.cfg.MaxRetries),
		)
		out.Decision = types.Reject(
			fmt.Sprintf("coordination failure: consensus not reached after %d rounds", round.Attempts),
			handles...)
		out.Round = nil
		return out, nil
	}

	c.logger.Warn("consensus round timed out, retrying",
		zap.Int("attempt", round.Attempts),
		zap.Int("acks", c.ackCount(candidate, round)),
		zap.Int("required", c.required(in)),
	)
	retry := newRound(RoundConsensus, round.Seq+1, in.Now, in.Now.Add(c.cfg.RoundTimeout))
	retry.Attempts = round.Attempts
	retry.Term = round.Term + 1
	out.Round = retry
	out.Decision = types.NoChange()
	wake := retry.Deadline
	out.Wake = &wake
	return out, nil
}

// required returns the agreement threshold N - f, at least one.
func (c *Consensus) required(in Input) int {
	n := len(in.Participants)
	req := n - c.cfg.FaultTolerance
	if req < 1 {
		req = 1
	}
	return req
}

// ackCount counts distinct voters approving the candidate.
func (c *Consensus) ackCount(candidate *types.TurnRequest, round *RoundState) int {
	n := 0
	for _, b := range round.Ballots {
		for _, id := range b.Ballot.Approvals {
			if id == candidate.ParticipantID {
				n++
				break
			}
		}
	}
	return n
}

// agreed reports whether the candidate has reached agreement.
func (c *Consensus) agreed(candidate *types.TurnRequest, round *RoundState, in Input) bool {
	if c.cfg.Mode == config.ConsensusLeader && c.cfg.LeaderID != "" {
		if candidate.ParticipantID == c.cfg.LeaderID {
			return true
		}
		for _, b := range round.Ballots {
			if b.VoterID != c.cfg.LeaderID {
				continue
			}
			for _, id := range b.Ballot.Approvals {
				if id == candidate.ParticipantID {
					return true
				}
			}
		}
		return false
	}
	return c.ackCount(candidate, round) >= c.required(in)
}
