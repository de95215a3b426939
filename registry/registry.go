// Package registry tracks conversation participants: identity, declared
// capabilities, and heartbeat-driven presence. Presence degrades from
// active to idle, away, and finally offline as heartbeats stop arriving.
package registry

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/turnflow/clock"
	"github.com/BaSui01/turnflow/config"
	"github.com/BaSui01/turnflow/types"
)

// Registry manages participants of a single conversation.
type Registry struct {
	mu           sync.RWMutex
	participants map[string]*types.Participant
	cfg          config.RegistryConfig
	clk          clock.Clock
	logger       *zap.Logger
}

// New creates a registry with the given presence windows.
func New(cfg config.RegistryConfig, clk clock.Clock, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Registry{
		participants: make(map[string]*types.Participant),
		cfg:          cfg,
		clk:          clk,
		logger:       logger.With(zap.String("component", "participant_registry")),
	}
}

// Register adds a participant on first contact. Re-registering an existing
// participant refreshes its presence instead of failing.
func (r *Registry) Register(p *types.Participant) error {
	if p == nil || p.ID == "" {
		return types.NewError(types.ErrInvalidRequest, "participant id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clk.Now()
	if existing, ok := r.participants[p.ID]; ok {
		existing.Presence = types.PresenceActive
		existing.LastSeen = now
		return nil
	}

	cp := p.Clone()
	cp.Presence = types.PresenceActive
	cp.JoinedAt = now
	cp.LastSeen = now
	r.participants[cp.ID] = cp

	r.logger.Info("participant registered",
		zap.String("participant_id", cp.ID),
		zap.String("type", string(cp.Type)),
	)
	return nil
}

// Deregister removes a participant when a session ends.
func (r *Registry) Deregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[id]; !ok {
		return types.NewErrorf(types.ErrNotFound, "participant not found: %s", id)
	}
	delete(r.participants, id)

	r.logger.Info("participant deregistered", zap.String("participant_id", id))
	return nil
}

// Get returns a copy of the participant.
func (r *Registry) Get(id string) (*types.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.participants[id]
	if !ok {
		return nil, types.NewErrorf(types.ErrNotFound, "participant not found: %s", id)
	}
	return p.Clone(), nil
}

// List returns copies of all participants, ordered by ID for determinism.
func (r *Registry) List() []*types.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*types.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CountPresent returns the number of participants not offline.
func (r *Registry) CountPresent() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, p := range r.participants {
		if p.Presence != types.PresenceOffline {
			n++
		}
	}
	return n
}

// Heartbeat refreshes a participant's presence to active.
func (r *Registry) Heartbeat(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return types.NewErrorf(types.ErrNotFound, "participant not found: %s", id)
	}
	p.Presence = types.PresenceActive
	p.LastSeen = r.clk.Now()
	return nil
}

// Sweep demotes participants whose heartbeats have lapsed and returns the
// IDs that transitioned to offline in this pass, so the coordinator can
// cancel their pending requests.
func (r *Registry) Sweep() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clk.Now()
	var wentOffline []string

	for id, p := range r.participants {
		if p.Presence == types.PresenceOffline {
			continue
		}
		silent := now.Sub(p.LastSeen)
		switch {
		case silent >= r.cfg.OfflineAfter:
			p.Presence = types.PresenceOffline
			wentOffline = append(wentOffline, id)
			r.logger.Info("participant went offline",
				zap.String("participant_id", id),
				zap.Duration("silent", silent),
			)
		case silent >= r.cfg.AwayAfter:
			p.Presence = types.PresenceAway
		case silent >= r.cfg.IdleAfter:
			p.Presence = types.PresenceIdle
		}
	}

	sort.Strings(wentOffline)
	return wentOffline
}

// PresenceMap exports the current presence of all participants.
func (r *Registry) PresenceMap() map[string]types.Presence {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]types.Presence, len(r.participants))
	for id, p := range r.participants {
		out[id] = p.Presence
	}
	return out
}

// RestorePresence overwrites presence from a snapshot. Participants unknown
// to the registry are ignored rather than synthesized.
func (r *Registry) RestorePresence(presence map[string]types.Presence) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, pr := range presence {
		if p, ok := r.participants[id]; ok {
			p.Presence = pr
		}
	}
}
