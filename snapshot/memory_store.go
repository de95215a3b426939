package snapshot

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store.
// Suitable for development and testing. Snapshots do not survive restarts.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
	closed    bool
}

// NewMemoryStore creates a new in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*Snapshot),
	}
}

// Save persists a snapshot to the store.
func (s *MemoryStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil || snap.ID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	clone, err := snap.Clone()
	if err != nil {
		return err
	}
	s.snapshots[snap.ID] = clone
	return nil
}

// Load retrieves a snapshot by ID.
func (s *MemoryStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	snap, ok := s.snapshots[id]
	if !ok {
		return nil, ErrNotFound
	}
	return snap.Clone()
}

// Delete removes a snapshot from the store.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, ok := s.snapshots[id]; !ok {
		return ErrNotFound
	}
	delete(s.snapshots, id)
	return nil
}

// List retrieves all snapshots for a conversation, newest first.
func (s *MemoryStore) List(ctx context.Context, conversationID string) ([]*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var out []*Snapshot
	for _, snap := range s.snapshots {
		if snap.ConversationID != conversationID {
			continue
		}
		clone, err := snap.Clone()
		if err != nil {
			return nil, err
		}
		out = append(out, clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Cleanup removes expired snapshots.
func (s *MemoryStore) Cleanup(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	removed := 0
	for id, snap := range s.snapshots {
		if snap.Expired(now) {
			delete(s.snapshots, id)
			removed++
		}
	}
	return removed, nil
}

// Close closes the store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks if the store is healthy.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}
