package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/turnflow/config"
	"github.com/BaSui01/turnflow/types"
)

func votingCfg(method config.VotingMethod, quorum int) config.VotingConfig {
	return config.VotingConfig{
		Method:          method,
		Quorum:          quorum,
		Window:          15 * time.Second,
		QuadraticBudget: 100,
	}
}

// settleVote opens a round, absorbs the ballots, and advances to the
// deadline, returning the settlement outcome.
func settleVote(t *testing.T, method config.VotingMethod, quorum int,
	candidates []*types.TurnRequest, ballots []*types.TurnRequest) Outcome {
	t.Helper()
	v := NewVoting(testTurnCfg(), votingCfg(method, quorum), zap.NewNop())

	// Open the round with the nominations.
	out, err := v.Decide(Input{Now: t0, View: makeView(1, nil, candidates...)})
	require.NoError(t, err)
	require.NotNil(t, out.Round)

	// Ballots arrive while the window is open.
	all := append(append([]*types.TurnRequest{}, candidates...), ballots...)
	out, err = v.Decide(Input{
		Now:   t0.Add(time.Second),
		View:  makeView(1, nil, all...),
		Round: out.Round,
	})
	require.NoError(t, err)
	assert.Len(t, out.Absorbed, len(ballots))

	// Absorbed ballots are no longer pending at the deadline.
	out, err = v.Decide(Input{
		Now:   t0.Add(15 * time.Second),
		View:  makeView(1, nil, candidates...),
		Round: out.Round,
	})
	require.NoError(t, err)
	return out
}

func TestVoting_QuorumUnmetReopensRound(t *testing.T) {
	candidates := []*types.TurnRequest{
		pendingReq("c1", "p1", 0, t0),
		pendingReq("c2", "p2", 0, t0),
	}
	// 5 participants, quorum 3, only 2 ballots by the deadline.
	ballots := []*types.TurnRequest{
		voteReq("v1", "p3", types.Ballot{CandidateID: "p1"}, t0),
		voteReq("v2", "p4", types.Ballot{CandidateID: "p2"}, t0),
	}

	out := settleVote(t, config.VotingMajority, 3, candidates, ballots)

	assert.Equal(t, types.DecisionNoChange, out.Decision.Kind)
	require.NotNil(t, out.Round, "round re-opens, no forced grant")
	assert.Equal(t, t0.Add(30*time.Second), out.Round.Deadline)
	// Cast ballots survive the re-open.
	assert.Len(t, out.Round.Ballots, 2)
}

func TestVoting_MajorityWinner(t *testing.T) {
	candidates := []*types.TurnRequest{
		pendingReq("c1", "p1", 0, t0),
		pendingReq("c2", "p2", 0, t0),
	}
	ballots := []*types.TurnRequest{
		voteReq("v1", "p3", types.Ballot{CandidateID: "p2"}, t0),
		voteReq("v2", "p4", types.Ballot{CandidateID: "p2"}, t0),
		voteReq("v3", "p5", types.Ballot{CandidateID: "p1"}, t0),
	}

	out := settleVote(t, config.VotingMajority, 2, candidates, ballots)

	require.Equal(t, types.DecisionGrant, out.Decision.Kind)
	assert.Equal(t, "p2", out.Decision.Grants[0].ParticipantID)
	assert.Equal(t, []types.RequestHandle{"c1"}, out.Decision.Rejected)
	assert.Nil(t, out.Round)
}

func TestVoting_ApprovalCountsAllApprovals(t *testing.T) {
	candidates := []*types.TurnRequest{
		pendingReq("c1", "p1", 0, t0),
		pendingReq("c2", "p2", 0, t0),
	}
	ballots := []*types.TurnRequest{
		voteReq("v1", "p3", types.Ballot{Approvals: []string{"p1", "p2"}}, t0),
		voteReq("v2", "p4", types.Ballot{Approvals: []string{"p2"}}, t0),
	}

	out := settleVote(t, config.VotingApproval, 2, candidates, ballots)

	require.Equal(t, types.DecisionGrant, out.Decision.Kind)
	assert.Equal(t, "p2", out.Decision.Grants[0].ParticipantID)
}

func TestVoting_ScoreSumsPoints(t *testing.T) {
	candidates := []*types.TurnRequest{
		pendingReq("c1", "p1", 0, t0),
		pendingReq("c2", "p2", 0, t0),
	}
	ballots := []*types.TurnRequest{
		voteReq("v1", "p3", types.Ballot{Scores: map[string]float64{"p1": 9, "p2": 4}}, t0),
		voteReq("v2", "p4", types.Ballot{Scores: map[string]float64{"p1": 2, "p2": 5}}, t0),
	}

	out := settleVote(t, config.VotingScore, 2, candidates, ballots)

	require.Equal(t, types.DecisionGrant, out.Decision.Kind)
	assert.Equal(t, "p1", out.Decision.Grants[0].ParticipantID)
}

func TestVoting_QuadraticAppliesBudgetAndSqrt(t *testing.T) {
	candidates := []*types.TurnRequest{
		pendingReq("c1", "p1", 0, t0),
		pendingReq("c2", "p2", 0, t0),
	}
	// p3 spends its full budget on p1 (sqrt(100) = 10 effective votes).
	// p4 splits beyond budget; spends are scaled back to 100 credits total,
	// yielding sqrt(50) ≈ 7.07 effective votes per candidate.
	ballots := []*types.TurnRequest{
		voteReq("v1", "p3", types.Ballot{Scores: map[string]float64{"p1": 100}}, t0),
		voteReq("v2", "p4", types.Ballot{Scores: map[string]float64{"p1": 100, "p2": 100}}, t0),
	}

	out := settleVote(t, config.VotingQuadratic, 2, candidates, ballots)

	require.Equal(t, types.DecisionGrant, out.Decision.Kind)
	assert.Equal(t, "p1", out.Decision.Grants[0].ParticipantID)
}

func TestVoting_RankedChoiceInstantRunoff(t *testing.T) {
	candidates := []*types.TurnRequest{
		pendingReq("c1", "p1", 0, t0),
		pendingReq("c2", "p2", 0, t0.Add(time.Second)),
		pendingReq("c3", "p3", 0, t0.Add(2*time.Second)),
	}
	// First choices: p1=2, p2=2, p3=1. p3 eliminated; its ballot transfers
	// to p2, who then holds a majority.
	ballots := []*types.TurnRequest{
		voteReq("v1", "v_a", types.Ballot{Ranking: []string{"p1", "p2"}}, t0),
		voteReq("v2", "v_b", types.Ballot{Ranking: []string{"p1", "p3"}}, t0),
		voteReq("v3", "v_c", types.Ballot{Ranking: []string{"p2", "p1"}}, t0),
		voteReq("v4", "v_d", types.Ballot{Ranking: []string{"p2", "p3"}}, t0),
		voteReq("v5", "v_e", types.Ballot{Ranking: []string{"p3", "p2"}}, t0),
	}

	out := settleVote(t, config.VotingRankedChoice, 3, candidates, ballots)

	require.Equal(t, types.DecisionGrant, out.Decision.Kind)
	assert.Equal(t, "p2", out.Decision.Grants[0].ParticipantID)
}

func TestVoting_DuplicateVoterRejected(t *testing.T) {
	v := NewVoting(testTurnCfg(), votingCfg(config.VotingMajority, 1), zap.NewNop())

	candidate := pendingReq("c1", "p1", 0, t0)
	first := voteReq("v1", "p3", types.Ballot{CandidateID: "p1"}, t0)

	out, err := v.Decide(Input{
		Now:  t0,
		View: makeView(1, nil, candidate, first),
	})
	require.NoError(t, err)
	require.Equal(t, []types.RequestHandle{"v1"}, out.Absorbed)

	second := voteReq("v2", "p3", types.Ballot{CandidateID: "p1"}, t0.Add(time.Second))
	out, err = v.Decide(Input{
		Now:   t0.Add(time.Second),
		View:  makeView(1, nil, candidate, second),
		Round: out.Round,
	})
	require.NoError(t, err)
	assert.Equal(t, types.DecisionReject, out.Decision.Kind)
	assert.Equal(t, []types.RequestHandle{"v2"}, out.Decision.Rejected)
}
