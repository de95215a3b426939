package coordinator

import (
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/turnflow/config"
	"github.com/BaSui01/turnflow/types"
)

// Arena manages one coordinator per conversation, creating them lazily.
// All coordinators share the arena's configuration and options.
type Arena struct {
	mu     sync.RWMutex
	cfg    *config.Config
	opts   []Option
	coords map[string]*Coordinator
	closed bool
	logger *zap.Logger
}

// NewArena builds an arena. The options are applied to every coordinator
// it creates.
func NewArena(cfg *config.Config, opts ...Option) (*Arena, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := zap.NewNop()
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger != nil {
		logger = o.logger
	}
	return &Arena{
		cfg:    cfg,
		opts:   opts,
		coords: make(map[string]*Coordinator),
		logger: logger.With(zap.String("component", "arena")),
	}, nil
}

// Get returns the coordinator for a conversation, creating it on first use.
func (a *Arena) Get(conversationID string) (*Coordinator, error) {
	a.mu.RLock()
	c, ok := a.coords[conversationID]
	closed := a.closed
	a.mu.RUnlock()
	if closed {
		return nil, types.NewError(types.ErrCoordinatorClosed, "arena is closed")
	}
	if ok {
		return c, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, types.NewError(types.ErrCoordinatorClosed, "arena is closed")
	}
	if c, ok := a.coords[conversationID]; ok {
		return c, nil
	}
	c, err := New(conversationID, a.cfg, a.opts...)
	if err != nil {
		return nil, err
	}
	a.coords[conversationID] = c
	a.logger.Info("conversation added", zap.String("conversation_id", conversationID))
	return c, nil
}

// Lookup returns an existing coordinator without creating one.
func (a *Arena) Lookup(conversationID string) (*Coordinator, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	c, ok := a.coords[conversationID]
	return c, ok
}

// Remove stops and drops a conversation's coordinator.
func (a *Arena) Remove(conversationID string) error {
	a.mu.Lock()
	c, ok := a.coords[conversationID]
	delete(a.coords, conversationID)
	a.mu.Unlock()
	if !ok {
		return types.NewErrorf(types.ErrNotFound, "conversation %s not found", conversationID)
	}
	return c.Close()
}

// Len reports the number of live conversations.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.coords)
}

// Close stops every coordinator. The arena accepts no new conversations
// afterwards.
func (a *Arena) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	coords := make([]*Coordinator, 0, len(a.coords))
	for _, c := range a.coords {
		coords = append(coords, c)
	}
	a.coords = make(map[string]*Coordinator)
	a.mu.Unlock()

	var firstErr error
	for _, c := range coords {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
