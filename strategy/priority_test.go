package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/turnflow/config"
	"github.com/BaSui01/turnflow/types"
)

func priorityCfg() config.PriorityConfig {
	return config.PriorityConfig{
		PreemptionThreshold: 5,
		GracePeriod:         3 * time.Second,
	}
}

func TestPriority_GrantsHighestWhenFree(t *testing.T) {
	s := NewPriority(testTurnCfg(), priorityCfg())

	// The pending queue arrives pre-sorted from the ledger.
	out, err := s.Decide(Input{
		Now: t0,
		View: makeView(1, nil,
			pendingReq("h2", "p2", 10, t0.Add(time.Second)),
			pendingReq("h1", "p1", 1, t0),
		),
	})
	require.NoError(t, err)
	require.Equal(t, types.DecisionGrant, out.Decision.Kind)
	assert.Equal(t, "p2", out.Decision.Grants[0].ParticipantID)
}

func TestPriority_NoPreemptionBelowThreshold(t *testing.T) {
	s := NewPriority(testTurnCfg(), priorityCfg())

	// Gap of exactly the threshold does not preempt: it must exceed it.
	out, err := s.Decide(Input{
		Now: t0.Add(10 * time.Second),
		View: makeView(1,
			map[int]*types.Turn{0: activeTurn("p1", 5, t0, true)},
			pendingReq("h2", "p2", 10, t0),
		),
		Trigger: "h2",
	})
	require.NoError(t, err)
	assert.Equal(t, types.DecisionQueue, out.Decision.Kind)
}

func TestPriority_PreemptsAfterGracePeriod(t *testing.T) {
	s := NewPriority(testTurnCfg(), priorityCfg())

	holder := activeTurn("p1", 1, t0, true)
	challenger := pendingReq("h2", "p2", 10, t0.Add(time.Second))

	// Before the grace period elapses: queued with a wake-up scheduled.
	out, err := s.Decide(Input{
		Now:     t0.Add(2 * time.Second),
		View:    makeView(1, map[int]*types.Turn{0: holder}, challenger),
		Trigger: "h2",
	})
	require.NoError(t, err)
	assert.Equal(t, types.DecisionQueue, out.Decision.Kind)
	require.NotNil(t, out.Wake)
	assert.Equal(t, t0.Add(4*time.Second), *out.Wake)

	// After the grace period: preempted.
	out, err = s.Decide(Input{
		Now:  t0.Add(5 * time.Second),
		View: makeView(1, map[int]*types.Turn{0: holder}, challenger),
	})
	require.NoError(t, err)
	require.Equal(t, types.DecisionPreempt, out.Decision.Kind)
	assert.Equal(t, "p1", out.Decision.PreemptedID)
	assert.Equal(t, "p2", out.Decision.Grants[0].ParticipantID)
}

func TestPriority_RespectsMinGuaranteedDuration(t *testing.T) {
	s := NewPriority(testTurnCfg(), priorityCfg())

	holder := activeTurn("p1", 1, t0, true)
	holder.MinDuration = 30 * time.Second
	challenger := pendingReq("h2", "p2", 50, t0)

	out, err := s.Decide(Input{
		Now:  t0.Add(10 * time.Second),
		View: makeView(1, map[int]*types.Turn{0: holder}, challenger),
	})
	require.NoError(t, err)
	assert.NotEqual(t, types.DecisionPreempt, out.Decision.Kind)
	require.NotNil(t, out.Wake)
	assert.Equal(t, t0.Add(30*time.Second), *out.Wake)
}

func TestPriority_NonRevocableHolderNeverPreempted(t *testing.T) {
	s := NewPriority(testTurnCfg(), priorityCfg())

	out, err := s.Decide(Input{
		Now: t0.Add(time.Hour),
		View: makeView(1,
			map[int]*types.Turn{0: activeTurn("p1", 1, t0, false)},
			pendingReq("h2", "p2", 100, t0),
		),
	})
	require.NoError(t, err)
	assert.Equal(t, types.DecisionNoChange, out.Decision.Kind)
	assert.Nil(t, out.Wake)
}
