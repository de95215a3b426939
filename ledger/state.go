package ledger

import (
	"github.com/BaSui01/turnflow/types"
)

// View is a deep-copied, read-only snapshot of the ledger handed to
// allocation strategies. Strategies never hold a mutable ledger reference.
type View struct {
	Slots   int                  `json:"slots"`
	Active  map[int]*types.Turn  `json:"active"`
	Pending []*types.TurnRequest `json:"pending"`
}

// View builds a consistent read-only snapshot of the ledger.
func (l *Ledger) View() View {
	v := View{
		Slots:   l.slots,
		Active:  make(map[int]*types.Turn, len(l.active)),
		Pending: make([]*types.TurnRequest, len(l.pending)),
	}
	for slot, t := range l.active {
		v.Active[slot] = t.Clone()
	}
	for i, p := range l.pending {
		v.Pending[i] = p.Clone()
	}
	return v
}

// UnsuspendedHolders returns slots whose turn is active and unsuspended.
func (v View) UnsuspendedHolders() map[int]*types.Turn {
	out := make(map[int]*types.Turn)
	for slot, t := range v.Active {
		if t.State == types.TurnActive {
			out[slot] = t
		}
	}
	return out
}

// State is the serializable form of the ledger used by snapshots. It is a
// complete capture: importing it reproduces the ledger exactly.
type State struct {
	Slots    int                            `json:"slots"`
	Active   map[int]*types.Turn            `json:"active"`
	Pending  []*types.TurnRequest           `json:"pending"`
	Resolved map[types.RequestHandle]string `json:"resolved"`
	History  []*types.Turn                  `json:"history"`
	Seq      uint64                         `json:"seq"`
}

// Export captures the full ledger state.
func (l *Ledger) Export() *State {
	s := &State{
		Slots:    l.slots,
		Active:   make(map[int]*types.Turn, len(l.active)),
		Pending:  make([]*types.TurnRequest, len(l.pending)),
		Resolved: make(map[types.RequestHandle]string, len(l.resolved)),
		History:  make([]*types.Turn, len(l.history)),
		Seq:      l.seq,
	}
	for slot, t := range l.active {
		s.Active[slot] = t.Clone()
	}
	for i, p := range l.pending {
		s.Pending[i] = p.Clone()
	}
	for h, outcome := range l.resolved {
		s.Resolved[h] = outcome
	}
	for i, t := range l.history {
		s.History[i] = t.Clone()
	}
	return s
}

// Import replaces the ledger contents with a previously exported state.
// The state is validated so an illegal ledger can never be synthesized:
// every slot index must be in range and hold a turn in a live state.
func (l *Ledger) Import(s *State) error {
	if s == nil {
		return types.NewError(types.ErrInvalidRequest, "nil ledger state")
	}
	if s.Slots <= 0 {
		return types.NewError(types.ErrIntegrityError, "ledger state has no slots")
	}
	for slot, t := range s.Active {
		if slot < 0 || slot >= s.Slots {
			return types.NewErrorf(types.ErrIntegrityError, "slot %d out of range", slot)
		}
		if t.State != types.TurnActive && t.State != types.TurnSuspended {
			return types.NewErrorf(types.ErrIntegrityError,
				"active slot %d holds turn in state %s", slot, t.State)
		}
	}
	for _, p := range s.Pending {
		if _, ok := s.Resolved[p.Handle]; ok {
			return types.NewErrorf(types.ErrIntegrityError,
				"request %s both pending and resolved", p.Handle)
		}
	}

	l.slots = s.Slots
	l.active = make(map[int]*types.Turn, len(s.Active))
	for slot, t := range s.Active {
		l.active[slot] = t.Clone()
	}
	l.pending = make([]*types.TurnRequest, len(s.Pending))
	for i, p := range s.Pending {
		l.pending[i] = p.Clone()
	}
	l.resolved = make(map[types.RequestHandle]string, len(s.Resolved))
	for h, outcome := range s.Resolved {
		l.resolved[h] = outcome
	}
	l.history = make([]*types.Turn, len(s.History))
	for i, t := range s.History {
		l.history[i] = t.Clone()
	}
	l.seq = s.Seq
	return nil
}
