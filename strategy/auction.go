package strategy

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/BaSui01/turnflow/config"
	"github.com/BaSui01/turnflow/types"
)

// Auction runs fixed-duration bidding windows. Bids accumulate while the
// window is open; at window close the configured rule picks the winner(s):
//
//   - first_price: highest bid wins and pays its own bid
//   - second_price: highest bid wins and pays the second-highest bid
//   - combinatorial: top-N bids win N slots, each paying its own bid
//   - all_pay: highest bid wins, every bidder pays its bid regardless
//
// Ties are broken by earliest bid timestamp.
type Auction struct {
	turnCfg config.TurnConfig
	cfg     config.AuctionConfig
	logger  *zap.Logger
}

// NewAuction creates the auction strategy.
func NewAuction(turnCfg config.TurnConfig, cfg config.AuctionConfig, logger *zap.Logger) *Auction {
	return &Auction{
		turnCfg: turnCfg,
		cfg:     cfg,
		logger:  logger.With(zap.String("strategy", "auction")),
	}
}

// Name implements Strategy.
func (a *Auction) Name() string { return "auction" }

// Decide implements Strategy.
func (a *Auction) Decide(in Input) (Outcome, error) {
	// Requests without a bid cannot compete in an auction round.
	var unbid []types.RequestHandle
	var bidders []*types.TurnRequest
	for _, p := range in.View.Pending {
		if p.Bid == nil {
			unbid = append(unbid, p.Handle)
		} else {
			bidders = append(bidders, p)
		}
	}
	if len(unbid) > 0 {
		return Outcome{
			Decision: types.Reject("auction strategy requires a bid payload", unbid...),
			Round:    in.Round,
		}, nil
	}
	if len(bidders) == 0 {
		return Outcome{Round: in.Round, Decision: types.NoChange()}, nil
	}

	round := in.Round
	if !round.Valid() {
		seq := 1
		if round != nil {
			seq = round.Seq + 1
		}
		round = newRound(RoundAuction, seq, in.Now, in.Now.Add(a.cfg.Window))
		a.logger.Debug("bidding window opened",
			zap.Int("round", round.Seq),
			zap.Time("closes", round.Deadline),
		)
	}

	if in.Now.Before(round.Deadline) {
		out := Outcome{Decision: queueOrNoChange(in), Round: round}
		wake := round.Deadline
		out.Wake = &wake
		return out, nil
	}

	// Window closed: settle.
	free := freeSlots(in.View)
	if len(free) == 0 {
		// Every slot is held; extend the window rather than dropping bids.
		round.Deadline = in.Now.Add(a.cfg.Window)
		out := Outcome{Decision: types.NoChange(), Round: round}
		wake := round.Deadline
		out.Wake = &wake
		return out, nil
	}

	sort.Slice(bidders, func(i, j int) bool {
		bi, bj := bidders[i], bidders[j]
		if bi.Bid.Amount != bj.Bid.Amount {
			return bi.Bid.Amount > bj.Bid.Amount
		}
		if !bi.Bid.PlacedAt.Equal(bj.Bid.PlacedAt) {
			return bi.Bid.PlacedAt.Before(bj.Bid.PlacedAt)
		}
		return bi.Handle < bj.Handle
	})

	winners := 1
	if a.cfg.Rule == config.AuctionCombinatorial {
		winners = a.cfg.Slots
		if winners > len(free) {
			winners = len(free)
		}
	}
	if winners > len(bidders) {
		winners = len(bidders)
	}

	decision := types.AllocationDecision{Kind: types.DecisionGrant}
	for i := 0; i < winners; i++ {
		w := bidders[i]
		decision.Grants = append(decision.Grants, types.GrantSpec{
			Handle:        w.Handle,
			ParticipantID: w.ParticipantID,
			Slot:          free[i],
			Duration:      turnDuration(a.turnCfg, w),
			Payment:       a.payment(bidders, i),
		})
	}

	for _, loser := range bidders[winners:] {
		decision.Rejected = append(decision.Rejected, loser.Handle)
	}
	if len(decision.Rejected) > 0 {
		decision.Reason = fmt.Sprintf("outbid in auction round %d", round.Seq)
	}

	if a.cfg.Rule == config.AuctionAllPay {
		decision.Charges = make(map[string]float64, len(bidders))
		for _, b := range bidders {
			decision.Charges[b.ParticipantID] += b.Bid.Amount
		}
	}

	a.logger.Info("auction settled",
		zap.Int("round", round.Seq),
		zap.Int("bidders", len(bidders)),
		zap.Int("winners", winners),
		zap.String("rule", string(a.cfg.Rule)),
	)

	// The round closes with settlement.
	return Outcome{Decision: decision}, nil
}

// payment computes what the i-th ranked bidder pays under the active rule.
func (a *Auction) payment(ranked []*types.TurnRequest, i int) float64 {
	switch a.cfg.Rule {
	case config.AuctionSecondPrice:
		if i+1 < len(ranked) {
			return ranked[i+1].Bid.Amount
		}
		return 0
	default:
		// first_price, combinatorial, and all_pay winners pay their own bid.
		return ranked[i].Bid.Amount
	}
}
