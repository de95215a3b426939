package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/turnflow/ledger"
	"github.com/BaSui01/turnflow/strategy"
	"github.com/BaSui01/turnflow/types"
)

var snapT0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleState() *ledger.State {
	return &ledger.State{
		Slots: 1,
		Active: map[int]*types.Turn{
			0: {
				ID:            "turn-1",
				ParticipantID: "p1",
				Handle:        "h1",
				State:         types.TurnSuspended,
				Priority:      3,
				GrantedAt:     snapT0,
				StartedAt:     snapT0,
				Deadline:      snapT0.Add(2 * time.Minute),
				Revocable:     true,
			},
		},
		Pending: []*types.TurnRequest{
			{Handle: "h2", ParticipantID: "p2", Priority: 1, ArrivedAt: snapT0.Add(time.Second)},
		},
		Resolved: map[types.RequestHandle]string{"h1": "granted"},
		Seq:      7,
	}
}

func sampleSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	snap := &Snapshot{
		Version:        FormatVersion,
		ID:             "snap-1",
		ConversationID: "conv-1",
		Reason:         "operator pause",
		CreatedAt:      snapT0,
		ExpiresAt:      snapT0.Add(24 * time.Hour),
		Ledger:         sampleState(),
		Presence:       map[string]types.Presence{"p1": types.PresenceActive},
		Round: &strategy.RoundState{
			Version:  strategy.RoundStateVersion,
			Kind:     strategy.RoundAuction,
			Seq:      1,
			OpenedAt: snapT0,
			Deadline: snapT0.Add(10 * time.Second),
		},
	}
	require.NoError(t, snap.Seal())
	return snap
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap := sampleSnapshot(t)

	data, err := Encode(snap)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.NoError(t, decoded.Verify(snapT0.Add(time.Hour)))

	assert.Equal(t, snap.ID, decoded.ID)
	assert.Equal(t, snap.Checksum, decoded.Checksum)
	assert.Equal(t, snap.Ledger.Seq, decoded.Ledger.Seq)
	assert.Equal(t, snap.Round.Kind, decoded.Round.Kind)

	// Re-encoding the decoded snapshot reproduces identical bytes.
	again, err := Encode(decoded)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestSnapshotTamperDetected(t *testing.T) {
	snap := sampleSnapshot(t)
	snap.Ledger.Seq = 999 // mutate after sealing

	err := snap.Verify(snapT0)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrIntegrityError))
}

func TestSnapshotExpiry(t *testing.T) {
	snap := sampleSnapshot(t)

	require.NoError(t, snap.Verify(snapT0.Add(23*time.Hour)))

	err := snap.Verify(snapT0.Add(25 * time.Hour))
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrExpiredSnapshot))
	assert.True(t, snap.Expired(snapT0.Add(25*time.Hour)))
}

func TestSnapshotVersionGate(t *testing.T) {
	snap := sampleSnapshot(t)
	snap.Version = 99
	require.NoError(t, snap.Seal())

	data, err := Encode(snap)
	require.NoError(t, err)

	_, err = Decode(data)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrUnsupportedVersion))
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrIntegrityError))
}

func TestResumeStrategyValid(t *testing.T) {
	assert.True(t, ResumeContinue.Valid())
	assert.True(t, ResumeRetryStep.Valid())
	assert.True(t, ResumeRestartClean.Valid())
	assert.False(t, ResumeStrategy("rewind").Valid())
}
