package types

import "time"

// TurnState is a state in the turn lifecycle machine.
type TurnState string

const (
	TurnRequested TurnState = "requested"
	TurnQueued    TurnState = "queued"
	TurnGranted   TurnState = "granted"
	TurnActive    TurnState = "active"
	TurnSuspended TurnState = "suspended"
	TurnPreempted TurnState = "preempted"
	TurnEnded     TurnState = "ended"
)

// turnTransitions encodes the legal lifecycle:
// requested -> queued -> granted -> active -> {ended | suspended | preempted}
// suspended -> {active | ended}, preempted -> queued.
// No transition may skip granted before active, and requested is never
// re-entered.
var turnTransitions = map[TurnState][]TurnState{
	TurnRequested: {TurnQueued},
	TurnQueued:    {TurnGranted},
	TurnGranted:   {TurnActive},
	TurnActive:    {TurnEnded, TurnSuspended, TurnPreempted},
	TurnSuspended: {TurnActive, TurnEnded},
	TurnPreempted: {TurnQueued},
	TurnEnded:     {},
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s TurnState) CanTransitionTo(next TurnState) bool {
	for _, allowed := range turnTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s is a terminal state.
func (s TurnState) Terminal() bool {
	return s == TurnEnded
}

// Turn is an active (or historical) grant of the right to act on a slot.
type Turn struct {
	ID            string        `json:"id"`
	ParticipantID string        `json:"participant_id"`
	Handle        RequestHandle `json:"handle"`
	Slot          int           `json:"slot"`
	State         TurnState     `json:"state"`
	Priority      int           `json:"priority"`
	ArrivedAt     time.Time     `json:"arrived_at"`
	Seq           uint64        `json:"seq"`
	GrantedAt     time.Time     `json:"granted_at"`
	StartedAt     time.Time     `json:"started_at"`
	Deadline      time.Time     `json:"deadline"`
	MinDuration   time.Duration `json:"min_duration"`
	Revocable     bool          `json:"revocable"`
	Payment       float64       `json:"payment,omitempty"`
	EndedAt       *time.Time    `json:"ended_at,omitempty"`
	SuspendedAt   *time.Time    `json:"suspended_at,omitempty"`
}

// Transition moves the turn to next, returning an INVALID_TRANSITION error
// if the lifecycle machine forbids it.
func (t *Turn) Transition(next TurnState) error {
	if !t.State.CanTransitionTo(next) {
		return NewErrorf(ErrInvalidTransition, "turn %s: %s -> %s", t.ID, t.State, next)
	}
	t.State = next
	return nil
}

// Clone returns a deep copy of the turn.
func (t *Turn) Clone() *Turn {
	cp := *t
	if t.EndedAt != nil {
		e := *t.EndedAt
		cp.EndedAt = &e
	}
	if t.SuspendedAt != nil {
		s := *t.SuspendedAt
		cp.SuspendedAt = &s
	}
	return &cp
}
