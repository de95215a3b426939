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

func auctionCfg(rule config.AuctionRule, slots int) config.AuctionConfig {
	return config.AuctionConfig{
		Window: 10 * time.Second,
		Rule:   rule,
		Slots:  slots,
	}
}

// runAuction opens a window with the given bids and advances straight to
// settlement.
func runAuction(t *testing.T, rule config.AuctionRule, slots int, bids ...*types.TurnRequest) Outcome {
	t.Helper()
	a := NewAuction(testTurnCfg(), auctionCfg(rule, slots), zap.NewNop())

	view := makeView(slots, nil, bids...)
	out, err := a.Decide(Input{Now: t0, View: view})
	require.NoError(t, err)
	require.NotNil(t, out.Round, "window should be open")
	require.Equal(t, RoundAuction, out.Round.Kind)

	out, err = a.Decide(Input{Now: t0.Add(10 * time.Second), View: view, Round: out.Round})
	require.NoError(t, err)
	return out
}

func TestAuction_SecondPriceSettlement(t *testing.T) {
	out := runAuction(t, config.AuctionSecondPrice, 1,
		bidReq("hA", "A", 10, t0),
		bidReq("hB", "B", 7, t0),
		bidReq("hC", "C", 9, t0),
	)

	require.Equal(t, types.DecisionGrant, out.Decision.Kind)
	require.Len(t, out.Decision.Grants, 1)
	assert.Equal(t, "A", out.Decision.Grants[0].ParticipantID)
	assert.Equal(t, 9.0, out.Decision.Grants[0].Payment)
	assert.ElementsMatch(t,
		[]types.RequestHandle{"hB", "hC"}, out.Decision.Rejected)
	assert.Nil(t, out.Round, "round closes with settlement")
}

func TestAuction_FirstPricePaysOwnBid(t *testing.T) {
	out := runAuction(t, config.AuctionFirstPrice, 1,
		bidReq("hA", "A", 10, t0),
		bidReq("hB", "B", 7, t0),
	)

	require.Equal(t, types.DecisionGrant, out.Decision.Kind)
	assert.Equal(t, 10.0, out.Decision.Grants[0].Payment)
}

func TestAuction_SingleBidderSecondPricePaysZero(t *testing.T) {
	out := runAuction(t, config.AuctionSecondPrice, 1,
		bidReq("hA", "A", 10, t0),
	)

	require.Equal(t, types.DecisionGrant, out.Decision.Kind)
	assert.Equal(t, 0.0, out.Decision.Grants[0].Payment)
}

func TestAuction_TieBrokenByEarliestBid(t *testing.T) {
	out := runAuction(t, config.AuctionFirstPrice, 1,
		bidReq("hA", "A", 10, t0.Add(time.Second)),
		bidReq("hB", "B", 10, t0),
	)

	require.Equal(t, types.DecisionGrant, out.Decision.Kind)
	assert.Equal(t, "B", out.Decision.Grants[0].ParticipantID)
}

func TestAuction_CombinatorialFillsSlots(t *testing.T) {
	out := runAuction(t, config.AuctionCombinatorial, 2,
		bidReq("hA", "A", 10, t0),
		bidReq("hB", "B", 7, t0),
		bidReq("hC", "C", 9, t0),
	)

	require.Equal(t, types.DecisionGrant, out.Decision.Kind)
	require.Len(t, out.Decision.Grants, 2)
	assert.Equal(t, "A", out.Decision.Grants[0].ParticipantID)
	assert.Equal(t, 0, out.Decision.Grants[0].Slot)
	assert.Equal(t, "C", out.Decision.Grants[1].ParticipantID)
	assert.Equal(t, 1, out.Decision.Grants[1].Slot)
	assert.Equal(t, []types.RequestHandle{"hB"}, out.Decision.Rejected)
}

func TestAuction_AllPayChargesEveryBidder(t *testing.T) {
	out := runAuction(t, config.AuctionAllPay, 1,
		bidReq("hA", "A", 10, t0),
		bidReq("hB", "B", 7, t0),
	)

	require.Equal(t, types.DecisionGrant, out.Decision.Kind)
	assert.Equal(t, "A", out.Decision.Grants[0].ParticipantID)
	assert.Equal(t, map[string]float64{"A": 10, "B": 7}, out.Decision.Charges)
}

func TestAuction_QueuesWhileWindowOpen(t *testing.T) {
	a := NewAuction(testTurnCfg(), auctionCfg(config.AuctionSecondPrice, 1), zap.NewNop())

	out, err := a.Decide(Input{
		Now:     t0,
		View:    makeView(1, nil, bidReq("hA", "A", 10, t0)),
		Trigger: "hA",
	})
	require.NoError(t, err)
	assert.Equal(t, types.DecisionQueue, out.Decision.Kind)
	require.NotNil(t, out.Wake)
	assert.Equal(t, t0.Add(10*time.Second), *out.Wake)
}

func TestAuction_RejectsRequestsWithoutBids(t *testing.T) {
	a := NewAuction(testTurnCfg(), auctionCfg(config.AuctionSecondPrice, 1), zap.NewNop())

	out, err := a.Decide(Input{
		Now:  t0,
		View: makeView(1, nil, pendingReq("h1", "p1", 5, t0)),
	})
	require.NoError(t, err)
	assert.Equal(t, types.DecisionReject, out.Decision.Kind)
	assert.Equal(t, []types.RequestHandle{"h1"}, out.Decision.Rejected)
	assert.NotEmpty(t, out.Decision.Reason)
}

func TestAuction_ExtendsWindowWhenNoFreeSlot(t *testing.T) {
	a := NewAuction(testTurnCfg(), auctionCfg(config.AuctionSecondPrice, 1), zap.NewNop())

	occupied := makeView(1,
		map[int]*types.Turn{0: activeTurn("holder", 1, t0, false)},
		bidReq("hA", "A", 10, t0),
	)

	out, err := a.Decide(Input{Now: t0, View: occupied})
	require.NoError(t, err)
	round := out.Round
	require.NotNil(t, round)

	out, err = a.Decide(Input{Now: t0.Add(10 * time.Second), View: occupied, Round: round})
	require.NoError(t, err)
	assert.Equal(t, types.DecisionNoChange, out.Decision.Kind)
	require.NotNil(t, out.Round)
	assert.Equal(t, t0.Add(20*time.Second), out.Round.Deadline)
}
