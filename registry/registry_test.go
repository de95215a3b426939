package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/turnflow/clock"
	"github.com/BaSui01/turnflow/config"
	"github.com/BaSui01/turnflow/types"
)

func testConfig() config.RegistryConfig {
	return config.RegistryConfig{
		IdleAfter:    time.Minute,
		AwayAfter:    5 * time.Minute,
		OfflineAfter: 15 * time.Minute,
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	fc := clock.NewFake(time.Unix(1000, 0))
	reg := New(testConfig(), fc, zap.NewNop())

	require.NoError(t, reg.Register(&types.Participant{
		ID:   "p1",
		Type: types.ParticipantHuman,
	}))

	p, err := reg.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, types.PresenceActive, p.Presence)
	assert.Equal(t, fc.Now(), p.JoinedAt)

	_, err = reg.Get("ghost")
	assert.True(t, types.HasCode(err, types.ErrNotFound))
}

func TestRegistry_RejectsEmptyID(t *testing.T) {
	reg := New(testConfig(), clock.NewFake(time.Unix(0, 0)), zap.NewNop())

	err := reg.Register(&types.Participant{})
	assert.True(t, types.HasCode(err, types.ErrInvalidRequest))
}

func TestRegistry_ReRegisterRefreshesPresence(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	reg := New(testConfig(), fc, zap.NewNop())

	require.NoError(t, reg.Register(&types.Participant{ID: "p1", Type: types.ParticipantAgent}))

	fc.Advance(2 * time.Minute)
	reg.Sweep()
	p, _ := reg.Get("p1")
	assert.Equal(t, types.PresenceIdle, p.Presence)

	require.NoError(t, reg.Register(&types.Participant{ID: "p1", Type: types.ParticipantAgent}))
	p, _ = reg.Get("p1")
	assert.Equal(t, types.PresenceActive, p.Presence)
}

func TestRegistry_SweepDemotesPresence(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	reg := New(testConfig(), fc, zap.NewNop())

	require.NoError(t, reg.Register(&types.Participant{ID: "p1", Type: types.ParticipantHuman}))
	require.NoError(t, reg.Register(&types.Participant{ID: "p2", Type: types.ParticipantAgent}))

	// p2 keeps heartbeating, p1 goes silent.
	fc.Advance(2 * time.Minute)
	require.NoError(t, reg.Heartbeat("p2"))
	assert.Empty(t, reg.Sweep())

	p1, _ := reg.Get("p1")
	p2, _ := reg.Get("p2")
	assert.Equal(t, types.PresenceIdle, p1.Presence)
	assert.Equal(t, types.PresenceActive, p2.Presence)

	fc.Advance(4 * time.Minute)
	reg.Sweep()
	p1, _ = reg.Get("p1")
	assert.Equal(t, types.PresenceAway, p1.Presence)

	fc.Advance(10 * time.Minute)
	offline := reg.Sweep()
	assert.Equal(t, []string{"p1"}, offline)

	// A second sweep does not report p1 again.
	assert.Empty(t, reg.Sweep())
	assert.Equal(t, 1, reg.CountPresent())
}

func TestRegistry_PresenceRoundTrip(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	reg := New(testConfig(), fc, zap.NewNop())

	require.NoError(t, reg.Register(&types.Participant{ID: "p1", Type: types.ParticipantHuman}))
	require.NoError(t, reg.Register(&types.Participant{ID: "p2", Type: types.ParticipantAgent}))

	fc.Advance(2 * time.Minute)
	reg.Sweep()

	saved := reg.PresenceMap()

	require.NoError(t, reg.Heartbeat("p1"))
	reg.RestorePresence(saved)

	restored := reg.PresenceMap()
	assert.Equal(t, saved, restored)

	// Unknown participants in the map are ignored.
	reg.RestorePresence(map[string]types.Presence{"ghost": types.PresenceActive})
	_, err := reg.Get("ghost")
	assert.Error(t, err)
}
