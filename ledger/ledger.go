// Package ledger holds the authoritative record of turn-taking state for a
// single conversation: the active turn per slot, the pending request queue,
// and the resolved history.
//
// The ledger is deliberately not internally synchronized. It is owned
// exclusively by the coordinator, which serializes every mutation through
// its mailbox. All other components observe the ledger through deep-copied
// View values.
package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/turnflow/types"
)

const defaultHistoryLimit = 1000

// Ledger is the single source of truth for "who may act now".
type Ledger struct {
	slots        int
	active       map[int]*types.Turn
	pending      []*types.TurnRequest
	resolved     map[types.RequestHandle]string
	history      []*types.Turn
	historyLimit int
	seq          uint64
}

// New creates an empty ledger with the given number of slots.
func New(slots int) *Ledger {
	if slots <= 0 {
		slots = 1
	}
	return &Ledger{
		slots:        slots,
		active:       make(map[int]*types.Turn),
		resolved:     make(map[types.RequestHandle]string),
		historyLimit: defaultHistoryLimit,
	}
}

// Slots returns the configured slot count.
func (l *Ledger) Slots() int { return l.slots }

// NextSeq returns the next event sequence number.
func (l *Ledger) NextSeq() uint64 {
	l.seq++
	return l.seq
}

// Enqueue admits a request into the pending queue and returns its 1-based
// position. A handle that was already resolved or is already pending is
// never admitted twice.
func (l *Ledger) Enqueue(req *types.TurnRequest) (int, error) {
	if req == nil || req.ParticipantID == "" {
		return 0, types.NewError(types.ErrInvalidRequest, "participant id is required")
	}
	if req.Handle == "" {
		return 0, types.NewError(types.ErrInvalidRequest, "request handle is required")
	}
	if outcome, ok := l.resolved[req.Handle]; ok {
		return 0, types.NewErrorf(types.ErrInvalidRequest,
			"request %s already resolved as %s", req.Handle, outcome)
	}
	for _, p := range l.pending {
		if p.Handle == req.Handle {
			return 0, types.NewErrorf(types.ErrInvalidRequest,
				"request %s already pending", req.Handle)
		}
	}

	cp := req.Clone()
	idx := sort.Search(len(l.pending), func(i int) bool {
		return cp.Before(l.pending[i])
	})
	l.pending = append(l.pending, nil)
	copy(l.pending[idx+1:], l.pending[idx:])
	l.pending[idx] = cp

	return idx + 1, nil
}

// CancelPending removes a still-pending request. Cancellation is a terminal
// resolution: the handle can never be granted afterwards.
func (l *Ledger) CancelPending(handle types.RequestHandle) error {
	for i, p := range l.pending {
		if p.Handle == handle {
			p.Cancelled = true
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			l.resolved[handle] = "cancelled"
			return nil
		}
	}
	return types.NewErrorf(types.ErrNotFound, "pending request not found: %s", handle)
}

// Resolve removes pending requests and records their outcome without
// granting them. Used for rejections and for ballots absorbed into a round.
func (l *Ledger) Resolve(handles []types.RequestHandle, outcome string) []*types.TurnRequest {
	if len(handles) == 0 {
		return nil
	}
	want := make(map[types.RequestHandle]bool, len(handles))
	for _, h := range handles {
		want[h] = true
	}

	var removed []*types.TurnRequest
	kept := l.pending[:0]
	for _, p := range l.pending {
		if want[p.Handle] {
			l.resolved[p.Handle] = outcome
			removed = append(removed, p)
		} else {
			kept = append(kept, p)
		}
	}
	l.pending = append([]*types.TurnRequest(nil), kept...)
	return removed
}

// Lookup returns the pending request with the given handle.
func (l *Ledger) Lookup(handle types.RequestHandle) (*types.TurnRequest, bool) {
	for _, p := range l.pending {
		if p.Handle == handle {
			return p, true
		}
	}
	return nil, false
}

// Position returns the 1-based queue position of a pending handle, or 0.
func (l *Ledger) Position(handle types.RequestHandle) int {
	for i, p := range l.pending {
		if p.Handle == handle {
			return i + 1
		}
	}
	return 0
}

// PendingCount returns the pending queue depth.
func (l *Ledger) PendingCount() int { return len(l.pending) }

// PendingFor returns handles of pending requests from one participant.
func (l *Ledger) PendingFor(participantID string) []types.RequestHandle {
	var out []types.RequestHandle
	for _, p := range l.pending {
		if p.ParticipantID == participantID {
			out = append(out, p.Handle)
		}
	}
	return out
}

// Grant converts a pending request into the active turn on a slot. The slot
// must not hold an unsuspended turn: at most one unsuspended holder per slot
// is the core invariant.
func (l *Ledger) Grant(spec types.GrantSpec, minGuaranteed time.Duration, revocable bool, now time.Time) (*types.Turn, error) {
	// A suspended holder still owns its slot; it resumes into it.
	if cur, ok := l.active[spec.Slot]; ok {
		return nil, types.NewErrorf(types.ErrInvalidTransition,
			"slot %d already held by %s", spec.Slot, cur.ParticipantID)
	}

	req, ok := l.Lookup(spec.Handle)
	if !ok {
		return nil, types.NewErrorf(types.ErrNotFound, "pending request not found: %s", spec.Handle)
	}

	l.Resolve([]types.RequestHandle{spec.Handle}, "granted")

	turn := &types.Turn{
		ID:            uuid.New().String(),
		ParticipantID: req.ParticipantID,
		Handle:        req.Handle,
		Slot:          spec.Slot,
		State:         types.TurnQueued,
		Priority:      req.Priority,
		ArrivedAt:     req.ArrivedAt,
		Seq:           req.Seq,
		GrantedAt:     now,
		MinDuration:   minGuaranteed,
		Revocable:     revocable,
		Payment:       spec.Payment,
	}
	// A turn never skips granted on its way to active.
	if err := turn.Transition(types.TurnGranted); err != nil {
		return nil, err
	}
	if err := turn.Transition(types.TurnActive); err != nil {
		return nil, err
	}
	turn.StartedAt = now
	turn.Deadline = now.Add(spec.Duration)

	l.active[spec.Slot] = turn
	return turn, nil
}

// EndTurn ends the active turn held by participantID. The second return is
// false when the participant holds no turn, which callers surface as
// NoChange: ending an already-ended turn is a no-op.
func (l *Ledger) EndTurn(participantID string, now time.Time) (*types.Turn, bool) {
	for slot, turn := range l.active {
		if turn.ParticipantID != participantID {
			continue
		}
		if err := turn.Transition(types.TurnEnded); err != nil {
			return nil, false
		}
		ended := now
		turn.EndedAt = &ended
		delete(l.active, slot)
		l.appendHistory(turn)
		return turn, true
	}
	return nil, false
}

// Preempt forcibly removes the holder of a slot and re-admits its request
// to the queue with its original priority and arrival time, so the ordering
// intent of the original submission survives preemption.
func (l *Ledger) Preempt(slot int, now time.Time) (*types.Turn, error) {
	turn, ok := l.active[slot]
	if !ok {
		return nil, types.NewErrorf(types.ErrNotFound, "no active turn on slot %d", slot)
	}
	if !turn.Revocable {
		return nil, types.NewErrorf(types.ErrInvalidTransition,
			"turn %s is not revocable", turn.ID)
	}
	if err := turn.Transition(types.TurnPreempted); err != nil {
		return nil, err
	}
	delete(l.active, slot)
	l.appendHistory(turn.Clone())

	// preempted -> queued: the handle becomes pending again, keeping the
	// original arrival time and admission sequence.
	delete(l.resolved, turn.Handle)
	requeued := &types.TurnRequest{
		Handle:            turn.Handle,
		ParticipantID:     turn.ParticipantID,
		Priority:          turn.Priority,
		EstimatedDuration: turn.Deadline.Sub(turn.StartedAt),
		ArrivedAt:         turn.ArrivedAt,
		Seq:               turn.Seq,
	}
	if _, err := l.Enqueue(requeued); err != nil {
		return nil, err
	}
	return turn, nil
}

// Suspend freezes the active turn on a slot.
func (l *Ledger) Suspend(slot int, now time.Time) (*types.Turn, error) {
	turn, ok := l.active[slot]
	if !ok {
		return nil, types.NewErrorf(types.ErrNotFound, "no active turn on slot %d", slot)
	}
	if err := turn.Transition(types.TurnSuspended); err != nil {
		return nil, err
	}
	at := now
	turn.SuspendedAt = &at
	return turn, nil
}

// Resume reactivates a suspended turn on a slot.
func (l *Ledger) Resume(slot int, now time.Time) (*types.Turn, error) {
	turn, ok := l.active[slot]
	if !ok || turn.State != types.TurnSuspended {
		return nil, types.NewErrorf(types.ErrNotFound, "no suspended turn on slot %d", slot)
	}
	if err := turn.Transition(types.TurnActive); err != nil {
		return nil, err
	}
	// Remaining time is preserved across the suspension.
	if turn.SuspendedAt != nil {
		turn.Deadline = now.Add(turn.Deadline.Sub(*turn.SuspendedAt))
	}
	turn.SuspendedAt = nil
	return turn, nil
}

// Abandon ends a suspended turn whose snapshot expired without resume.
func (l *Ledger) Abandon(slot int, now time.Time) (*types.Turn, error) {
	turn, ok := l.active[slot]
	if !ok || turn.State != types.TurnSuspended {
		return nil, types.NewErrorf(types.ErrNotFound, "no suspended turn on slot %d", slot)
	}
	if err := turn.Transition(types.TurnEnded); err != nil {
		return nil, err
	}
	ended := now
	turn.EndedAt = &ended
	delete(l.active, slot)
	l.appendHistory(turn)
	return turn, nil
}

// ActiveTurn returns the turn occupying a slot, suspended or not.
func (l *Ledger) ActiveTurn(slot int) (*types.Turn, bool) {
	t, ok := l.active[slot]
	return t, ok
}

// CurrentHolder returns the unsuspended holder of a slot, if any.
func (l *Ledger) CurrentHolder(slot int) (string, bool) {
	t, ok := l.active[slot]
	if !ok || t.State == types.TurnSuspended {
		return "", false
	}
	return t.ParticipantID, true
}

// HolderOf reports the slot held by a participant.
func (l *Ledger) HolderOf(participantID string) (int, bool) {
	for slot, t := range l.active {
		if t.ParticipantID == participantID {
			return slot, true
		}
	}
	return 0, false
}

// FreeSlot returns the lowest slot with no turn on it.
func (l *Ledger) FreeSlot() (int, bool) {
	for s := 0; s < l.slots; s++ {
		if _, ok := l.active[s]; !ok {
			return s, true
		}
	}
	return 0, false
}

// History returns the resolved turn history, oldest first.
func (l *Ledger) History() []*types.Turn {
	out := make([]*types.Turn, len(l.history))
	for i, t := range l.history {
		out[i] = t.Clone()
	}
	return out
}

func (l *Ledger) appendHistory(t *types.Turn) {
	l.history = append(l.history, t)
	if len(l.history) > l.historyLimit {
		l.history = l.history[len(l.history)-l.historyLimit:]
	}
}
