package snapshot

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/turnflow/config"
)

// RedisStore is a Redis-based implementation of Store.
// Suitable for distributed production deployments. Snapshot expiry maps
// onto key TTLs so Redis reaps expired snapshots on its own; a per-
// conversation set indexes snapshots for listing.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisStore creates a new Redis-based snapshot store.
func NewRedisStore(cfg config.RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "turnflow:"
	}

	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "snapshot:",
		logger:    logger.With(zap.String("component", "snapshot_redis_store")),
	}, nil
}

// dataKey returns the Redis key for a snapshot's payload.
func (s *RedisStore) dataKey(id string) string {
	return s.keyPrefix + "data:" + id
}

// conversationKey returns the Redis key for a conversation's snapshot index.
func (s *RedisStore) conversationKey(conversationID string) string {
	return s.keyPrefix + "conversation:" + conversationID
}

// Save persists a snapshot; the key TTL tracks the snapshot expiry.
func (s *RedisStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil || snap.ID == "" {
		return ErrInvalidInput
	}

	data, err := Encode(snap)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if !snap.ExpiresAt.IsZero() {
		ttl = time.Until(snap.ExpiresAt)
		if ttl <= 0 {
			return ErrInvalidInput
		}
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.dataKey(snap.ID), data, ttl)
	pipe.ZAdd(ctx, s.conversationKey(snap.ConversationID), redis.Z{
		Score:  float64(snap.CreatedAt.UnixNano()),
		Member: snap.ID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

// Load retrieves a snapshot by ID.
func (s *RedisStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	data, err := s.client.Get(ctx, s.dataKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Delete removes a snapshot.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	snap, err := s.Load(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.dataKey(id))
	pipe.ZRem(ctx, s.conversationKey(snap.ConversationID), id)
	_, err = pipe.Exec(ctx)
	return err
}

// List retrieves all live snapshots for a conversation, newest first.
func (s *RedisStore) List(ctx context.Context, conversationID string) ([]*Snapshot, error) {
	ids, err := s.client.ZRevRange(ctx, s.conversationKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := s.Load(ctx, id)
		if err == ErrNotFound {
			// TTL reaped the payload; drop the stale index entry.
			s.client.ZRem(ctx, s.conversationKey(conversationID), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// Cleanup prunes index entries whose payloads Redis already expired.
// The payloads themselves are TTL-managed.
func (s *RedisStore) Cleanup(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	var cursor uint64
	pattern := s.keyPrefix + "conversation:*"

	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return removed, err
		}
		for _, key := range keys {
			ids, err := s.client.ZRange(ctx, key, 0, -1).Result()
			if err != nil {
				return removed, err
			}
			for _, id := range ids {
				exists, err := s.client.Exists(ctx, s.dataKey(id)).Result()
				if err != nil {
					return removed, err
				}
				if exists == 0 {
					s.client.ZRem(ctx, key, id)
					removed++
				}
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return removed, nil
}

// Close closes the store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if the store is healthy.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
