package strategy

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/BaSui01/turnflow/config"
	"github.com/BaSui01/turnflow/types"
)

// Voting grants the next turn by ballot. Pending requests without a ballot
// payload are nominations (the participant stands as a candidate); requests
// carrying a ballot are votes, absorbed into the round rather than queued.
// Each participant casts at most one ballot per round. At the deadline the
// configured method tallies the ballots; an unmet quorum re-opens the round
// instead of forcing a grant.
type Voting struct {
	turnCfg config.TurnConfig
	cfg     config.VotingConfig
	logger  *zap.Logger
}

// NewVoting creates the voting strategy.
func NewVoting(turnCfg config.TurnConfig, cfg config.VotingConfig, logger *zap.Logger) *Voting {
	return &Voting{
		turnCfg: turnCfg,
		cfg:     cfg,
		logger:  logger.With(zap.String("strategy", "voting")),
	}
}

// Name implements Strategy.
func (v *Voting) Name() string { return "voting" }

// Decide implements Strategy.
func (v *Voting) Decide(in Input) (Outcome, error) {
	var candidates []*types.TurnRequest
	var votes []*types.TurnRequest
	for _, p := range in.View.Pending {
		if p.Ballot != nil {
			votes = append(votes, p)
		} else {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 && len(votes) == 0 {
		return Outcome{Round: in.Round, Decision: types.NoChange()}, nil
	}

	round := in.Round
	if !round.Valid() {
		seq := 1
		if round != nil {
			seq = round.Seq + 1
		}
		round = newRound(RoundVoting, seq, in.Now, in.Now.Add(v.cfg.Window))
		v.logger.Debug("voting round opened",
			zap.Int("round", round.Seq),
			zap.Time("deadline", round.Deadline),
		)
	}

	out := Outcome{Round: round}

	// Absorb ballots: one per voter per round.
	var rejectedDup []types.RequestHandle
	for _, ballot := range votes {
		if round.HasVoted(ballot.ParticipantID) {
			rejectedDup = append(rejectedDup, ballot.Handle)
			continue
		}
		round.Ballots = append(round.Ballots, BallotRecord{
			VoterID: ballot.ParticipantID,
			Ballot:  *ballot.Ballot.Clone(),
			CastAt:  ballot.ArrivedAt,
		})
		out.Absorbed = append(out.Absorbed, ballot.Handle)
	}
	if len(rejectedDup) > 0 {
		out.Decision = types.Reject(
			fmt.Sprintf("already voted in round %d", round.Seq), rejectedDup...)
		wake := round.Deadline
		out.Wake = &wake
		return out, nil
	}

	if in.Now.Before(round.Deadline) {
		out.Decision = queueOrNoChange(in)
		wake := round.Deadline
		out.Wake = &wake
		return out, nil
	}

	// Deadline reached: quorum gate first.
	if len(round.Ballots) < v.cfg.Quorum {
		v.logger.Info("quorum not met, re-opening voting round",
			zap.Int("round", round.Seq),
			zap.Int("ballots", len(round.Ballots)),
			zap.Int("quorum", v.cfg.Quorum),
		)
		// Cast ballots are kept; only the deadline moves.
		round.Seq++
		round.Deadline = in.Now.Add(v.cfg.Window)
		out.Decision = types.NoChange()
		wake := round.Deadline
		out.Wake = &wake
		return out, nil
	}

	if len(candidates) == 0 {
		out.Decision = types.NoChange()
		return out, nil
	}

	free := freeSlots(in.View)
	if len(free) == 0 {
		round.Deadline = in.Now.Add(v.cfg.Window)
		out.Decision = types.NoChange()
		wake := round.Deadline
		out.Wake = &wake
		return out, nil
	}

	winner := v.tally(candidates, round.Ballots)

	decision := types.Grant(winner.Handle, winner.ParticipantID, free[0],
		turnDuration(v.turnCfg, winner))
	for _, c := range candidates {
		if c.Handle != winner.Handle {
			decision.Rejected = append(decision.Rejected, c.Handle)
		}
	}
	if len(decision.Rejected) > 0 {
		decision.Reason = fmt.Sprintf("lost voting round %d", round.Seq)
	}

	v.logger.Info("voting round settled",
		zap.Int("round", round.Seq),
		zap.String("method", string(v.cfg.Method)),
		zap.String("winner", winner.ParticipantID),
		zap.Int("ballots", len(round.Ballots)),
	)

	return Outcome{Decision: decision, Absorbed: out.Absorbed}, nil
}

// tally returns the plurality winner among candidates under the configured
// method. Ties are broken by earliest nomination arrival.
func (v *Voting) tally(candidates []*types.TurnRequest, ballots []BallotRecord) *types.TurnRequest {
	valid := make(map[string]*types.TurnRequest, len(candidates))
	for _, c := range candidates {
		valid[c.ParticipantID] = c
	}

	scores := make(map[string]float64, len(candidates))
	switch v.cfg.Method {
	case config.VotingApproval:
		for _, b := range ballots {
			for _, id := range b.Ballot.Approvals {
				if _, ok := valid[id]; ok {
					scores[id]++
				}
			}
		}
	case config.VotingScore:
		for _, b := range ballots {
			for id, s := range b.Ballot.Scores {
				if _, ok := valid[id]; ok {
					scores[id] += s
				}
			}
		}
	case config.VotingQuadratic:
		for _, b := range ballots {
			spent := 0.0
			for id, s := range b.Ballot.Scores {
				if _, ok := valid[id]; ok && s > 0 {
					spent += s
				}
			}
			if spent == 0 {
				continue
			}
			// Credits beyond the per-voter budget are scaled away, then
			// each spend converts to sqrt(credits) effective votes.
			scale := 1.0
			if spent > v.cfg.QuadraticBudget {
				scale = v.cfg.QuadraticBudget / spent
			}
			for id, s := range b.Ballot.Scores {
				if _, ok := valid[id]; ok && s > 0 {
					scores[id] += math.Sqrt(s * scale)
				}
			}
		}
	case config.VotingRankedChoice:
		return v.instantRunoff(candidates, ballots)
	default: // simple majority
		for _, b := range ballots {
			if _, ok := valid[b.Ballot.CandidateID]; ok {
				scores[b.Ballot.CandidateID]++
			}
		}
	}

	return bestScored(candidates, scores)
}

// instantRunoff eliminates the weakest candidate each round until one holds
// a majority of continuing ballots.
func (v *Voting) instantRunoff(candidates []*types.TurnRequest, ballots []BallotRecord) *types.TurnRequest {
	remaining := make(map[string]*types.TurnRequest, len(candidates))
	for _, c := range candidates {
		remaining[c.ParticipantID] = c
	}

	for len(remaining) > 1 {
		counts := make(map[string]float64, len(remaining))
		active := 0
		for _, b := range ballots {
			for _, id := range b.Ballot.Ranking {
				if _, ok := remaining[id]; ok {
					counts[id]++
					active++
					break
				}
			}
		}
		if active == 0 {
			break
		}

		var leader string
		for id, n := range counts {
			if n > float64(active)/2 {
				leader = id
				break
			}
		}
		if leader != "" {
			return remaining[leader]
		}

		// Eliminate the candidate with the fewest first-choice votes,
		// latest nomination losing the elimination tie.
		var weakest *types.TurnRequest
		for id, c := range remaining {
			if weakest == nil ||
				counts[id] < counts[weakest.ParticipantID] ||
				(counts[id] == counts[weakest.ParticipantID] && c.ArrivedAt.After(weakest.ArrivedAt)) {
				weakest = c
			}
		}
		delete(remaining, weakest.ParticipantID)
	}

	var rest []*types.TurnRequest
	for _, c := range remaining {
		rest = append(rest, c)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].ArrivedAt.Before(rest[j].ArrivedAt) })
	if len(rest) > 0 {
		return rest[0]
	}
	return earliest(candidates)
}

// bestScored picks the highest-scoring candidate, earliest arrival on ties.
func bestScored(candidates []*types.TurnRequest, scores map[string]float64) *types.TurnRequest {
	var best *types.TurnRequest
	for _, c := range candidates {
		if best == nil {
			best = c
			continue
		}
		cs, bs := scores[c.ParticipantID], scores[best.ParticipantID]
		if cs > bs || (cs == bs && c.ArrivedAt.Before(best.ArrivedAt)) {
			best = c
		}
	}
	return best
}
