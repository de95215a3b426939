// Package config defines the immutable configuration surface consumed by a
// coordinator at construction time: active strategy selection and the knobs
// of every strategy variant, admission limits, presence windows, and
// snapshot behavior.
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
package config

import (
	"time"
)

// StrategyKind selects the active allocation strategy.
type StrategyKind string

const (
	StrategySequential    StrategyKind = "sequential"
	StrategyPriority      StrategyKind = "priority"
	StrategyAuction       StrategyKind = "auction"
	StrategyVoting        StrategyKind = "voting"
	StrategyConsensus     StrategyKind = "consensus"
	StrategyGameTheoretic StrategyKind = "game_theoretic"
)

// AuctionRule selects how a closed bidding window is settled.
type AuctionRule string

const (
	AuctionFirstPrice    AuctionRule = "first_price"
	AuctionSecondPrice   AuctionRule = "second_price"
	AuctionCombinatorial AuctionRule = "combinatorial"
	AuctionAllPay        AuctionRule = "all_pay"
)

// VotingMethod selects how ballots are tallied.
type VotingMethod string

const (
	VotingMajority     VotingMethod = "majority"
	VotingApproval     VotingMethod = "approval"
	VotingRankedChoice VotingMethod = "ranked_choice"
	VotingScore        VotingMethod = "score"
	VotingQuadratic    VotingMethod = "quadratic"
)

// ConsensusMode selects the agreement protocol.
type ConsensusMode string

const (
	ConsensusQuorum ConsensusMode = "quorum"
	ConsensusLeader ConsensusMode = "leader"
)

// Config is the complete coordinator configuration. It is treated as an
// immutable value once a coordinator is constructed from it.
type Config struct {
	// Strategy 活跃分配策略
	Strategy StrategyKind `yaml:"strategy"`

	Turn       TurnConfig       `yaml:"turn"`
	Admission  AdmissionConfig  `yaml:"admission"`
	Registry   RegistryConfig   `yaml:"registry"`
	Priority   PriorityConfig   `yaml:"priority"`
	Auction    AuctionConfig    `yaml:"auction"`
	Voting     VotingConfig     `yaml:"voting"`
	Consensus  ConsensusConfig  `yaml:"consensus"`
	GameTheory GameTheoryConfig `yaml:"game_theory"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Log        LogConfig        `yaml:"log"`
}

// TurnConfig bounds turn durations and request priorities.
type TurnConfig struct {
	// DefaultDuration is used when a request carries no estimate.
	DefaultDuration time.Duration `yaml:"default_duration"`
	// MaxDuration caps any single turn.
	MaxDuration time.Duration `yaml:"max_duration"`
	// MinGuaranteed is the minimum duration a holder keeps the turn even
	// under preemption pressure.
	MinGuaranteed time.Duration `yaml:"min_guaranteed"`
	// PriorityMin and PriorityMax bound accepted request priorities.
	PriorityMin int `yaml:"priority_min"`
	PriorityMax int `yaml:"priority_max"`
	// Slots is the number of concurrent speaking slots (combinatorial
	// auctions may fill several; sequential/priority modes use one).
	Slots int `yaml:"slots"`
}

// AdmissionConfig rate-limits request submission.
type AdmissionConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

// RegistryConfig drives heartbeat-based presence demotion.
type RegistryConfig struct {
	IdleAfter    time.Duration `yaml:"idle_after"`
	AwayAfter    time.Duration `yaml:"away_after"`
	OfflineAfter time.Duration `yaml:"offline_after"`
}

// PriorityConfig configures the priority-preemptive strategy.
type PriorityConfig struct {
	// PreemptionThreshold is the priority gap required before an active
	// holder may be preempted.
	PreemptionThreshold int `yaml:"preemption_threshold"`
	// GracePeriod must elapse after the challenger arrives before the
	// preemption takes effect, to avoid flapping.
	GracePeriod time.Duration `yaml:"grace_period"`
}

// AuctionConfig configures the auction strategy.
type AuctionConfig struct {
	Window time.Duration `yaml:"window"`
	Rule   AuctionRule   `yaml:"rule"`
	// Slots is the number of winners under combinatorial settlement.
	Slots int `yaml:"slots"`
}

// VotingConfig configures the voting strategy.
type VotingConfig struct {
	Method VotingMethod  `yaml:"method"`
	Quorum int           `yaml:"quorum"`
	Window time.Duration `yaml:"window"`
	// QuadraticBudget is the per-voter credit budget under quadratic voting.
	QuadraticBudget float64 `yaml:"quadratic_budget"`
}

// ConsensusConfig configures the consensus strategy.
type ConsensusConfig struct {
	Mode ConsensusMode `yaml:"mode"`
	// FaultTolerance f requires agreement from N-f participants.
	FaultTolerance int           `yaml:"fault_tolerance"`
	LeaderID       string        `yaml:"leader_id"`
	RoundTimeout   time.Duration `yaml:"round_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

// GameTheoryConfig configures the game-theoretic strategy.
type GameTheoryConfig struct {
	// TimeBudget bounds equilibrium computation; on overrun the strategy
	// falls back to sequential.
	TimeBudget     time.Duration `yaml:"time_budget"`
	Seed           int64         `yaml:"seed"`
	PriorityWeight float64       `yaml:"priority_weight"`
	WaitWeight     float64       `yaml:"wait_weight"`
}

// SnapshotConfig configures suspension snapshots and periodic checkpoints.
type SnapshotConfig struct {
	Expiry             time.Duration `yaml:"expiry"`
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`
	Store              string        `yaml:"store"` // memory | file | redis
	Dir                string        `yaml:"dir"`
	Redis              RedisConfig   `yaml:"redis"`
}

// RedisConfig configures the redis snapshot backend.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Strategy: StrategySequential,
		Turn: TurnConfig{
			DefaultDuration: 2 * time.Minute,
			MaxDuration:     10 * time.Minute,
			MinGuaranteed:   5 * time.Second,
			PriorityMin:     0,
			PriorityMax:     100,
			Slots:           1,
		},
		Admission: AdmissionConfig{
			RatePerSecond: 50,
			Burst:         100,
		},
		Registry: RegistryConfig{
			IdleAfter:    1 * time.Minute,
			AwayAfter:    5 * time.Minute,
			OfflineAfter: 15 * time.Minute,
		},
		Priority: PriorityConfig{
			PreemptionThreshold: 5,
			GracePeriod:         3 * time.Second,
		},
		Auction: AuctionConfig{
			Window: 10 * time.Second,
			Rule:   AuctionSecondPrice,
			Slots:  1,
		},
		Voting: VotingConfig{
			Method:          VotingMajority,
			Quorum:          1,
			Window:          15 * time.Second,
			QuadraticBudget: 100,
		},
		Consensus: ConsensusConfig{
			Mode:           ConsensusQuorum,
			FaultTolerance: 1,
			RoundTimeout:   10 * time.Second,
			MaxRetries:     3,
		},
		GameTheory: GameTheoryConfig{
			TimeBudget:     50 * time.Millisecond,
			PriorityWeight: 1.0,
			WaitWeight:     0.5,
		},
		Snapshot: SnapshotConfig{
			Expiry:             24 * time.Hour,
			CheckpointInterval: 0, // disabled unless set
			Store:              "memory",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "turnflow:",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate clamps out-of-range values back to safe defaults and rejects
// combinations that cannot work at all.
func (c *Config) Validate() error {
	d := Default()

	switch c.Strategy {
	case StrategySequential, StrategyPriority, StrategyAuction,
		StrategyVoting, StrategyConsensus, StrategyGameTheoretic:
	case "":
		c.Strategy = d.Strategy
	default:
		return errUnknownStrategy(string(c.Strategy))
	}

	if c.Turn.DefaultDuration <= 0 {
		c.Turn.DefaultDuration = d.Turn.DefaultDuration
	}
	if c.Turn.MaxDuration <= 0 {
		c.Turn.MaxDuration = d.Turn.MaxDuration
	}
	if c.Turn.MaxDuration < c.Turn.DefaultDuration {
		c.Turn.MaxDuration = c.Turn.DefaultDuration
	}
	if c.Turn.MinGuaranteed < 0 {
		c.Turn.MinGuaranteed = 0
	}
	if c.Turn.PriorityMax <= c.Turn.PriorityMin {
		c.Turn.PriorityMin = d.Turn.PriorityMin
		c.Turn.PriorityMax = d.Turn.PriorityMax
	}
	if c.Turn.Slots <= 0 {
		c.Turn.Slots = 1
	}

	if c.Admission.RatePerSecond <= 0 {
		c.Admission.RatePerSecond = d.Admission.RatePerSecond
	}
	if c.Admission.Burst <= 0 {
		c.Admission.Burst = d.Admission.Burst
	}

	if c.Registry.IdleAfter <= 0 {
		c.Registry.IdleAfter = d.Registry.IdleAfter
	}
	if c.Registry.AwayAfter <= c.Registry.IdleAfter {
		c.Registry.AwayAfter = c.Registry.IdleAfter * 5
	}
	if c.Registry.OfflineAfter <= c.Registry.AwayAfter {
		c.Registry.OfflineAfter = c.Registry.AwayAfter * 3
	}

	if c.Priority.PreemptionThreshold <= 0 {
		c.Priority.PreemptionThreshold = d.Priority.PreemptionThreshold
	}
	if c.Priority.GracePeriod < 0 {
		c.Priority.GracePeriod = d.Priority.GracePeriod
	}

	if c.Auction.Window <= 0 {
		c.Auction.Window = d.Auction.Window
	}
	switch c.Auction.Rule {
	case AuctionFirstPrice, AuctionSecondPrice, AuctionCombinatorial, AuctionAllPay:
	case "":
		c.Auction.Rule = d.Auction.Rule
	default:
		return errUnknownAuctionRule(string(c.Auction.Rule))
	}
	if c.Auction.Slots <= 0 {
		c.Auction.Slots = 1
	}

	if c.Voting.Window <= 0 {
		c.Voting.Window = d.Voting.Window
	}
	switch c.Voting.Method {
	case VotingMajority, VotingApproval, VotingRankedChoice, VotingScore, VotingQuadratic:
	case "":
		c.Voting.Method = d.Voting.Method
	default:
		return errUnknownVotingMethod(string(c.Voting.Method))
	}
	if c.Voting.Quorum < 1 {
		c.Voting.Quorum = 1
	}
	if c.Voting.QuadraticBudget <= 0 {
		c.Voting.QuadraticBudget = d.Voting.QuadraticBudget
	}

	switch c.Consensus.Mode {
	case ConsensusQuorum, ConsensusLeader:
	case "":
		c.Consensus.Mode = d.Consensus.Mode
	}
	if c.Consensus.FaultTolerance < 0 {
		c.Consensus.FaultTolerance = 0
	}
	if c.Consensus.RoundTimeout <= 0 {
		c.Consensus.RoundTimeout = d.Consensus.RoundTimeout
	}
	if c.Consensus.MaxRetries < 0 {
		c.Consensus.MaxRetries = 0
	}

	if c.GameTheory.TimeBudget <= 0 {
		c.GameTheory.TimeBudget = d.GameTheory.TimeBudget
	}
	if c.GameTheory.PriorityWeight <= 0 {
		c.GameTheory.PriorityWeight = d.GameTheory.PriorityWeight
	}
	if c.GameTheory.WaitWeight < 0 {
		c.GameTheory.WaitWeight = d.GameTheory.WaitWeight
	}

	if c.Snapshot.Expiry <= 0 {
		c.Snapshot.Expiry = d.Snapshot.Expiry
	}
	if c.Snapshot.CheckpointInterval < 0 {
		c.Snapshot.CheckpointInterval = 0
	}
	switch c.Snapshot.Store {
	case "memory", "file", "redis":
	case "":
		c.Snapshot.Store = "memory"
	default:
		return errUnknownStore(c.Snapshot.Store)
	}

	return nil
}
