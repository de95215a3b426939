package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/turnflow/config"
)

func newRedisTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(config.RedisConfig{
		Addr:      mr.Addr(),
		KeyPrefix: "turnflow_test:",
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, mr
}

// redisSnapshot builds a snapshot whose expiry lies in the real future so
// the TTL computed at save time is positive.
func redisSnapshot(t *testing.T, id, conversationID string) *Snapshot {
	t.Helper()
	snap := sampleSnapshot(t)
	snap.ID = id
	snap.ConversationID = conversationID
	snap.CreatedAt = time.Now()
	snap.ExpiresAt = time.Now().Add(time.Hour)
	require.NoError(t, snap.Seal())
	return snap
}

func TestRedisStoreSaveLoadDelete(t *testing.T) {
	store, _ := newRedisTestStore(t)
	ctx := context.Background()

	snap := redisSnapshot(t, "snap-1", "conv-1")
	require.NoError(t, store.Save(ctx, snap))

	got, err := store.Load(ctx, "snap-1")
	require.NoError(t, err)
	assert.Equal(t, snap.Checksum, got.Checksum)
	assert.Equal(t, snap.Ledger.Seq, got.Ledger.Seq)

	require.NoError(t, store.Delete(ctx, "snap-1"))
	_, err = store.Load(ctx, "snap-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreTTLTracksExpiry(t *testing.T) {
	store, mr := newRedisTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, redisSnapshot(t, "snap-1", "conv-1")))

	// The payload key carries a TTL matching the snapshot expiry.
	ttl := mr.TTL("turnflow_test:snapshot:data:snap-1")
	assert.Greater(t, ttl, 50*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)

	// Once Redis reaps the key, the snapshot is gone.
	mr.FastForward(2 * time.Hour)
	_, err := store.Load(ctx, "snap-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreRejectsAlreadyExpired(t *testing.T) {
	store, _ := newRedisTestStore(t)

	snap := redisSnapshot(t, "snap-1", "conv-1")
	snap.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, snap.Seal())

	assert.ErrorIs(t, store.Save(context.Background(), snap), ErrInvalidInput)
}

func TestRedisStoreListNewestFirst(t *testing.T) {
	store, _ := newRedisTestStore(t)
	ctx := context.Background()

	old := redisSnapshot(t, "old", "conv-1")
	old.CreatedAt = time.Now().Add(-time.Minute)
	require.NoError(t, old.Seal())
	require.NoError(t, store.Save(ctx, old))
	require.NoError(t, store.Save(ctx, redisSnapshot(t, "new", "conv-1")))
	require.NoError(t, store.Save(ctx, redisSnapshot(t, "other", "conv-2")))

	got, err := store.List(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "old", got[1].ID)
}

func TestRedisStoreCleanupPrunesStaleIndex(t *testing.T) {
	store, mr := newRedisTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, redisSnapshot(t, "snap-1", "conv-1")))
	mr.FastForward(2 * time.Hour) // payload reaped, index entry remains

	removed, err := store.Cleanup(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, err := store.List(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisStorePing(t *testing.T) {
	store, mr := newRedisTestStore(t)
	require.NoError(t, store.Ping(context.Background()))

	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}
