package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnTransitions(t *testing.T) {
	tests := []struct {
		name string
		from TurnState
		to   TurnState
		ok   bool
	}{
		{"requested to queued", TurnRequested, TurnQueued, true},
		{"queued to granted", TurnQueued, TurnGranted, true},
		{"granted to active", TurnGranted, TurnActive, true},
		{"active to ended", TurnActive, TurnEnded, true},
		{"active to suspended", TurnActive, TurnSuspended, true},
		{"active to preempted", TurnActive, TurnPreempted, true},
		{"suspended to active", TurnSuspended, TurnActive, true},
		{"suspended to ended", TurnSuspended, TurnEnded, true},
		{"preempted to queued", TurnPreempted, TurnQueued, true},

		{"requested to active skips grant", TurnRequested, TurnActive, false},
		{"requested to granted skips queue", TurnRequested, TurnGranted, false},
		{"queued to ended", TurnQueued, TurnEnded, false},
		{"granted to suspended", TurnGranted, TurnSuspended, false},
		{"suspended to preempted", TurnSuspended, TurnPreempted, false},
		{"ended is terminal", TurnEnded, TurnActive, false},
		{"preempted cannot resume directly", TurnPreempted, TurnActive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turn := &Turn{ID: "t1", State: tt.from}
			err := turn.Transition(tt.to)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, turn.State)
			} else {
				require.Error(t, err)
				assert.Equal(t, ErrInvalidTransition, GetErrorCode(err))
				assert.Equal(t, tt.from, turn.State, "failed transition must not change state")
			}
		})
	}
}

func TestTurnStateTerminal(t *testing.T) {
	assert.True(t, TurnEnded.Terminal())
	for _, s := range []TurnState{
		TurnRequested, TurnQueued, TurnGranted,
		TurnActive, TurnSuspended, TurnPreempted,
	} {
		assert.False(t, s.Terminal(), string(s))
	}
}

func TestTurnClone(t *testing.T) {
	orig := &Turn{ID: "t1", ParticipantID: "p1", State: TurnActive, Slot: 2}
	cp := orig.Clone()
	require.NotSame(t, orig, cp)
	assert.Equal(t, orig, cp)

	cp.State = TurnEnded
	assert.Equal(t, TurnActive, orig.State)
}

func TestBallotClone(t *testing.T) {
	b := &Ballot{
		Approvals: []string{"p1", "p2"},
		Ranking:   []string{"p2", "p1"},
		Scores:    map[string]float64{"p1": 3},
	}
	cp := b.Clone()
	cp.Approvals[0] = "px"
	cp.Scores["p1"] = 9

	assert.Equal(t, "p1", b.Approvals[0])
	assert.Equal(t, float64(3), b.Scores["p1"])
}
