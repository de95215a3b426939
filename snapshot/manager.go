package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/turnflow/clock"
	"github.com/BaSui01/turnflow/ledger"
	"github.com/BaSui01/turnflow/retry"
	"github.com/BaSui01/turnflow/strategy"
	"github.com/BaSui01/turnflow/types"
)

// CoordinatorState is the capturable coordination state: the full ledger,
// participant presence, and any in-flight round.
type CoordinatorState struct {
	ConversationID string
	Ledger         *ledger.State
	Presence       map[string]types.Presence
	Round          *strategy.RoundState
}

// Suspendable is the surface the manager captures and restores through.
// The manager never touches the ledger directly; all reads and writes go
// through the owning coordinator so the single-writer invariant holds.
type Suspendable interface {
	// Capture returns a consistent copy of the current state without
	// disturbing the active turn. Used for periodic checkpoints.
	Capture(ctx context.Context) (*CoordinatorState, error)

	// Freeze suspends the active turn, records the reason, and returns
	// the frozen state. Fails when no turn is active.
	Freeze(ctx context.Context, reason string) (*CoordinatorState, error)

	// Restore replaces the coordination state with a previously captured
	// one, re-entering it per the chosen resume strategy.
	Restore(ctx context.Context, state *CoordinatorState, rs ResumeStrategy) error
}

// Manager implements suspend/resume/checkpoint over a Suspendable target.
// Store I/O goes through the retryer so transient backend failures do not
// lose a suspension point.
type Manager struct {
	target  Suspendable
	store   Store
	retryer *retry.Retryer
	clock   clock.Clock
	expiry  time.Duration
	logger  *zap.Logger
}

// NewManager creates a snapshot manager. A zero expiry disables expiration.
func NewManager(target Suspendable, store Store, expiry time.Duration, clk clock.Clock, logger *zap.Logger) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		target:  target,
		store:   store,
		retryer: retry.New(nil, logger),
		clock:   clk,
		expiry:  expiry,
		logger:  logger.With(zap.String("component", "snapshot_manager")),
	}
}

// Suspend freezes the active turn and persists a snapshot of the frozen
// state. Only valid while a turn is active.
func (m *Manager) Suspend(ctx context.Context, reason string) (*Snapshot, error) {
	if reason == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "suspend requires a reason")
	}

	state, err := m.target.Freeze(ctx, reason)
	if err != nil {
		return nil, err
	}

	snap, err := m.persist(ctx, state, reason)
	if err != nil {
		return nil, err
	}

	m.logger.Info("conversation suspended",
		zap.String("snapshot_id", snap.ID),
		zap.String("reason", reason),
		zap.Time("expires_at", snap.ExpiresAt),
	)
	return snap, nil
}

// Checkpoint persists a non-disruptive snapshot of the current state.
// The active turn keeps running.
func (m *Manager) Checkpoint(ctx context.Context) (*Snapshot, error) {
	state, err := m.target.Capture(ctx)
	if err != nil {
		return nil, err
	}

	snap, err := m.persist(ctx, state, "checkpoint")
	if err != nil {
		return nil, err
	}

	m.logger.Debug("checkpoint saved", zap.String("snapshot_id", snap.ID))
	return snap, nil
}

// Resume restores coordination state from a stored snapshot. The snapshot
// is validated (version, checksum, expiry) before any state is touched and
// consumed on success so it cannot be replayed.
func (m *Manager) Resume(ctx context.Context, snapshotID string, rs ResumeStrategy) error {
	if !rs.Valid() {
		return types.NewErrorf(types.ErrInvalidRequest, "unknown resume strategy %q", rs)
	}

	snap, err := retry.DoTyped(ctx, m.retryer, func(ctx context.Context) (*Snapshot, error) {
		s, loadErr := m.store.Load(ctx, snapshotID)
		if loadErr == ErrNotFound {
			return nil, types.NewErrorf(types.ErrNotFound, "snapshot %s not found", snapshotID)
		}
		if loadErr != nil {
			return nil, types.NewError(types.ErrStoreUnavailable, "snapshot load failed").
				WithCause(loadErr).WithRetryable(true)
		}
		return s, nil
	})
	if err != nil {
		return err
	}

	if err := snap.Verify(m.clock.Now()); err != nil {
		m.logger.Warn("snapshot rejected",
			zap.String("snapshot_id", snapshotID),
			zap.Error(err),
		)
		return err
	}

	state := &CoordinatorState{
		ConversationID: snap.ConversationID,
		Ledger:         snap.Ledger,
		Presence:       snap.Presence,
		Round:          snap.Round,
	}
	if err := m.target.Restore(ctx, state, rs); err != nil {
		return err
	}

	// Consumed: a resumed snapshot is invalidated.
	if err := m.store.Delete(ctx, snapshotID); err != nil && err != ErrNotFound {
		m.logger.Warn("failed to delete consumed snapshot",
			zap.String("snapshot_id", snapshotID),
			zap.Error(err),
		)
	}

	m.logger.Info("conversation resumed",
		zap.String("snapshot_id", snapshotID),
		zap.String("resume_strategy", string(rs)),
	)
	return nil
}

// Sweep removes expired snapshots from the store.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	removed, err := m.store.Cleanup(ctx, m.clock.Now())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		m.logger.Info("expired snapshots removed", zap.Int("count", removed))
	}
	return removed, nil
}

// persist builds, seals, and saves a snapshot of the given state.
func (m *Manager) persist(ctx context.Context, state *CoordinatorState, reason string) (*Snapshot, error) {
	now := m.clock.Now()
	snap := &Snapshot{
		Version:        FormatVersion,
		ID:             uuid.New().String(),
		ConversationID: state.ConversationID,
		Reason:         reason,
		CreatedAt:      now,
		Ledger:         state.Ledger,
		Presence:       state.Presence,
		Round:          state.Round,
	}
	if m.expiry > 0 {
		snap.ExpiresAt = now.Add(m.expiry)
	}
	if err := snap.Seal(); err != nil {
		return nil, err
	}

	err := m.retryer.Do(ctx, func(ctx context.Context) error {
		if saveErr := m.store.Save(ctx, snap); saveErr != nil {
			return types.NewError(types.ErrStoreUnavailable, "snapshot save failed").
				WithCause(saveErr).WithRetryable(true)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
