package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/turnflow/config"
)

// storeFactories covers the memory and file backends; the redis backend has
// its own miniredis-backed tests.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
	}
}

func storedSnapshot(t *testing.T, id, conversationID string, createdAt time.Time) *Snapshot {
	t.Helper()
	snap := sampleSnapshot(t)
	snap.ID = id
	snap.ConversationID = conversationID
	snap.CreatedAt = createdAt
	snap.ExpiresAt = createdAt.Add(24 * time.Hour)
	require.NoError(t, snap.Seal())
	return snap
}

func TestStoreSaveLoadDelete(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			snap := storedSnapshot(t, "snap-1", "conv-1", snapT0)
			require.NoError(t, store.Save(ctx, snap))

			got, err := store.Load(ctx, "snap-1")
			require.NoError(t, err)
			assert.Equal(t, snap.Checksum, got.Checksum)
			assert.Equal(t, snap.Ledger.Seq, got.Ledger.Seq)

			require.NoError(t, store.Delete(ctx, "snap-1"))
			_, err = store.Load(ctx, "snap-1")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, store.Delete(ctx, "snap-1"), ErrNotFound)
		})
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			require.NoError(t, store.Save(ctx, storedSnapshot(t, "old", "conv-1", snapT0)))
			require.NoError(t, store.Save(ctx, storedSnapshot(t, "new", "conv-1", snapT0.Add(time.Hour))))
			require.NoError(t, store.Save(ctx, storedSnapshot(t, "other", "conv-2", snapT0)))

			got, err := store.List(ctx, "conv-1")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "new", got[0].ID)
			assert.Equal(t, "old", got[1].ID)
		})
	}
}

func TestStoreCleanupRemovesExpired(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			require.NoError(t, store.Save(ctx, storedSnapshot(t, "live", "conv-1", snapT0.Add(time.Hour))))
			require.NoError(t, store.Save(ctx, storedSnapshot(t, "stale", "conv-1", snapT0.Add(-48*time.Hour))))

			removed, err := store.Cleanup(ctx, snapT0)
			require.NoError(t, err)
			assert.Equal(t, 1, removed)

			_, err = store.Load(ctx, "stale")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = store.Load(ctx, "live")
			assert.NoError(t, err)
		})
	}
}

func TestStoreRejectsInvalidInput(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()

			assert.ErrorIs(t, store.Save(context.Background(), nil), ErrInvalidInput)
			assert.ErrorIs(t, store.Save(context.Background(), &Snapshot{}), ErrInvalidInput)
		})
	}
}

func TestStoreClosed(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			require.NoError(t, store.Close())

			ctx := context.Background()
			assert.ErrorIs(t, store.Ping(ctx), ErrStoreClosed)
			assert.ErrorIs(t, store.Save(ctx, storedSnapshot(t, "x", "conv-1", snapT0)), ErrStoreClosed)
			_, err := store.Load(ctx, "x")
			assert.ErrorIs(t, err, ErrStoreClosed)
		})
	}
}

func TestFileStoreReloadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, storedSnapshot(t, "snap-1", "conv-1", snapT0)))
	require.NoError(t, first.Close())

	second, err := NewFileStore(dir)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Load(ctx, "snap-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", got.ConversationID)
}

func TestNewStoreFactory(t *testing.T) {
	mem, err := NewStore(config.SnapshotConfig{Store: "memory"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, mem)

	file, err := NewStore(config.SnapshotConfig{Store: "file", Dir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, file)

	_, err = NewStore(config.SnapshotConfig{Store: "etcd"}, zap.NewNop())
	assert.Error(t, err)
}
