package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileStore 是基于文件的 Store 实现，适合单节点生产部署。
// 每个快照一个 JSON 文件，写入采用临时文件 + 重命名的原子方式。
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
	index   map[string]*Snapshot // in-memory cache
	closed  bool
}

// NewFileStore 新建文件快照存储器
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		baseDir = "./data/snapshots"
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	store := &FileStore{
		baseDir: baseDir,
		index:   make(map[string]*Snapshot),
	}

	// 装入已存在的快照
	if err := store.loadFromDisk(); err != nil {
		return nil, fmt.Errorf("failed to load snapshots from disk: %w", err)
	}

	return store, nil
}

// loadFromDisk 从磁盘加载所有快照到内存
func (s *FileStore) loadFromDisk() error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			return err
		}
		snap, err := Decode(data)
		if err != nil {
			// 跳过不可解析的文件，不让单个坏文件阻塞启动
			continue
		}
		s.index[snap.ID] = snap
	}
	return nil
}

// path 返回快照文件路径
func (s *FileStore) path(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

// writeFile 原子写: 写入临时文件后重命名
func (s *FileStore) writeFile(id string, data []byte) error {
	target := s.path(id)
	tempPath := target + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, target)
}

// Save 持久化快照
func (s *FileStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil || snap.ID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	data, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := s.writeFile(snap.ID, data); err != nil {
		return err
	}

	clone, err := snap.Clone()
	if err != nil {
		return err
	}
	s.index[snap.ID] = clone
	return nil
}

// Load 通过 ID 获取快照
func (s *FileStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	snap, ok := s.index[id]
	if !ok {
		return nil, ErrNotFound
	}
	return snap.Clone()
}

// Delete 删除快照
func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, ok := s.index[id]; !ok {
		return ErrNotFound
	}
	delete(s.index, id)

	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List 按会话列出快照，最新在前
func (s *FileStore) List(ctx context.Context, conversationID string) ([]*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var out []*Snapshot
	for _, snap := range s.index {
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

// Cleanup 删除已过期的快照
func (s *FileStore) Cleanup(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	removed := 0
	for id, snap := range s.index {
		if !snap.Expired(now) {
			continue
		}
		delete(s.index, id)
		if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Close 关闭存储器
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping 检查存储器是否健康
func (s *FileStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}
