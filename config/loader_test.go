package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, StrategySequential, cfg.Strategy)
	assert.Equal(t, 1, cfg.Turn.Slots)
	assert.Equal(t, 24*time.Hour, cfg.Snapshot.Expiry)
	assert.Equal(t, AuctionSecondPrice, cfg.Auction.Rule)
}

func TestLoader_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "turnflow.yaml")
	yamlContent := `
strategy: priority
priority:
  preemption_threshold: 7
  grace_period: 500ms
voting:
  method: approval
  quorum: 3
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, StrategyPriority, cfg.Strategy)
	assert.Equal(t, 7, cfg.Priority.PreemptionThreshold)
	assert.Equal(t, 500*time.Millisecond, cfg.Priority.GracePeriod)
	assert.Equal(t, VotingApproval, cfg.Voting.Method)
	assert.Equal(t, 3, cfg.Voting.Quorum)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "turnflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy: voting\n"), 0o644))

	t.Setenv("TURNFLOW_STRATEGY", "auction")
	t.Setenv("TURNFLOW_AUCTION_WINDOW", "30s")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, StrategyAuction, cfg.Strategy)
	assert.Equal(t, 30*time.Second, cfg.Auction.Window)
}

func TestLoader_RejectsUnknownStrategy(t *testing.T) {
	t.Setenv("TURNFLOW_STRATEGY", "lottery")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}

func TestConfig_ValidateClampsValues(t *testing.T) {
	cfg := Default()
	cfg.Turn.Slots = -1
	cfg.Voting.Quorum = 0
	cfg.Turn.MaxDuration = time.Second
	cfg.Turn.DefaultDuration = time.Minute

	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1, cfg.Turn.Slots)
	assert.Equal(t, 1, cfg.Voting.Quorum)
	assert.GreaterOrEqual(t, cfg.Turn.MaxDuration, cfg.Turn.DefaultDuration)
}
