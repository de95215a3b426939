package strategy

import (
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/turnflow/config"
	"github.com/BaSui01/turnflow/types"
)

// GameTheoretic computes a mixed-strategy distribution over pending
// requests from a payoff model (declared priority plus accumulated waiting
// time) and samples the next grant from it. Equilibrium computation is
// bounded by a time budget; on overrun the strategy degrades to sequential
// FIFO so the coordinator never stalls on allocation math.
type GameTheoretic struct {
	turnCfg  config.TurnConfig
	cfg      config.GameTheoryConfig
	fallback *Sequential
	logger   *zap.Logger
}

// NewGameTheoretic creates the game-theoretic strategy.
func NewGameTheoretic(turnCfg config.TurnConfig, cfg config.GameTheoryConfig, logger *zap.Logger) *GameTheoretic {
	return &GameTheoretic{
		turnCfg:  turnCfg,
		cfg:      cfg,
		fallback: NewSequential(turnCfg),
		logger:   logger.With(zap.String("strategy", "game_theoretic")),
	}
}

// Name implements Strategy.
func (g *GameTheoretic) Name() string { return "game_theoretic" }

// Decide implements Strategy.
func (g *GameTheoretic) Decide(in Input) (Outcome, error) {
	if len(in.View.Pending) == 0 {
		return Outcome{Decision: types.NoChange()}, nil
	}
	if _, occupied := in.View.Active[0]; occupied {
		return Outcome{Decision: queueOrNoChange(in)}, nil
	}

	started := time.Now()
	dist, ok := g.equilibrium(in, started)
	if !ok {
		g.logger.Warn("equilibrium computation exceeded time budget, falling back to sequential",
			zap.Duration("budget", g.cfg.TimeBudget),
		)
		return g.fallback.Decide(in)
	}

	winner := g.sample(in, dist)
	return Outcome{
		Decision: types.Grant(winner.Handle, winner.ParticipantID, 0,
			turnDuration(g.turnCfg, winner)),
	}, nil
}

// equilibrium computes a softmax mixed strategy over payoffs. The second
// return is false when the time budget is exhausted mid-computation.
func (g *GameTheoretic) equilibrium(in Input, started time.Time) ([]float64, bool) {
	payoffs := make([]float64, len(in.View.Pending))
	maxPayoff := math.Inf(-1)
	for i, p := range in.View.Pending {
		if time.Since(started) > g.cfg.TimeBudget {
			return nil, false
		}
		wait := in.Now.Sub(p.ArrivedAt).Seconds()
		payoffs[i] = g.cfg.PriorityWeight*float64(p.Priority) + g.cfg.WaitWeight*wait
		if payoffs[i] > maxPayoff {
			maxPayoff = payoffs[i]
		}
	}

	total := 0.0
	dist := make([]float64, len(payoffs))
	for i, p := range payoffs {
		dist[i] = math.Exp(p - maxPayoff)
		total += dist[i]
	}
	for i := range dist {
		dist[i] /= total
	}
	return dist, true
}

// sample draws from the distribution with a seeded generator so replays of
// the same ledger state reproduce the same grant.
func (g *GameTheoretic) sample(in Input, dist []float64) *types.TurnRequest {
	seed := g.cfg.Seed
	if seed == 0 {
		seed = in.Now.UnixNano()
	}
	rng := rand.New(rand.NewSource(seed + int64(len(in.View.Pending))))

	r := rng.Float64()
	cum := 0.0
	for i, p := range dist {
		cum += p
		if r <= cum {
			return in.View.Pending[i]
		}
	}
	return in.View.Pending[len(in.View.Pending)-1]
}
