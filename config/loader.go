package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

func errUnknownStrategy(s string) error {
	return fmt.Errorf("unknown strategy: %s", s)
}

func errUnknownAuctionRule(s string) error {
	return fmt.Errorf("unknown auction rule: %s", s)
}

func errUnknownVotingMethod(s string) error {
	return fmt.Errorf("unknown voting method: %s", s)
}

func errUnknownStore(s string) error {
	return fmt.Errorf("unknown snapshot store: %s", s)
}

// Loader loads configuration from an optional YAML file with environment
// variable overrides.
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("turnflow.yaml").
//	    WithEnvPrefix("TURNFLOW").
//	    Load()
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a loader with no config file and the default env prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: "TURNFLOW"}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load builds the final configuration: defaults, then YAML, then env.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	l.applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides select fields from environment variables.
func (l *Loader) applyEnv(cfg *Config) {
	if v := l.env("STRATEGY"); v != "" {
		cfg.Strategy = StrategyKind(v)
	}
	if v := l.env("TURN_SLOTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Turn.Slots = n
		}
	}
	if v := l.env("TURN_DEFAULT_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Turn.DefaultDuration = d
		}
	}
	if v := l.env("PRIORITY_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Priority.PreemptionThreshold = n
		}
	}
	if v := l.env("PRIORITY_GRACE_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Priority.GracePeriod = d
		}
	}
	if v := l.env("AUCTION_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auction.Window = d
		}
	}
	if v := l.env("AUCTION_RULE"); v != "" {
		cfg.Auction.Rule = AuctionRule(v)
	}
	if v := l.env("VOTING_METHOD"); v != "" {
		cfg.Voting.Method = VotingMethod(v)
	}
	if v := l.env("VOTING_QUORUM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Voting.Quorum = n
		}
	}
	if v := l.env("CONSENSUS_FAULT_TOLERANCE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Consensus.FaultTolerance = n
		}
	}
	if v := l.env("SNAPSHOT_EXPIRY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Snapshot.Expiry = d
		}
	}
	if v := l.env("SNAPSHOT_STORE"); v != "" {
		cfg.Snapshot.Store = v
	}
	if v := l.env("REDIS_ADDR"); v != "" {
		cfg.Snapshot.Redis.Addr = v
	}
	if v := l.env("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func (l *Loader) env(key string) string {
	return strings.TrimSpace(os.Getenv(l.envPrefix + "_" + key))
}
