package types

import "time"

// DecisionKind enumerates allocation decision outcomes.
type DecisionKind string

const (
	DecisionGrant    DecisionKind = "grant"
	DecisionQueue    DecisionKind = "queue"
	DecisionPreempt  DecisionKind = "preempt"
	DecisionReject   DecisionKind = "reject"
	DecisionNoChange DecisionKind = "no_change"
)

// GrantSpec describes one granted slot inside a decision. Combinatorial
// auctions may produce several in a single decision.
type GrantSpec struct {
	Handle        RequestHandle `json:"handle"`
	ParticipantID string        `json:"participant_id"`
	Slot          int           `json:"slot"`
	Duration      time.Duration `json:"duration"`
	Payment       float64       `json:"payment,omitempty"`
}

// AllocationDecision is the output of a strategy invocation. It is never
// persisted independently: the coordinator folds it into the ledger.
type AllocationDecision struct {
	Kind DecisionKind `json:"kind"`

	// Grants is populated for DecisionGrant and DecisionPreempt (the
	// replacement grant).
	Grants []GrantSpec `json:"grants,omitempty"`

	// PreemptedID is the former holder for DecisionPreempt.
	PreemptedID string `json:"preempted_id,omitempty"`

	// Handle and Position are populated for DecisionQueue.
	Handle   RequestHandle `json:"handle,omitempty"`
	Position int           `json:"position,omitempty"`

	// Rejected lists request handles refused by DecisionReject.
	Rejected []RequestHandle `json:"rejected,omitempty"`

	// Reason is a human-readable explanation for rejections.
	Reason string `json:"reason,omitempty"`

	// Charges records per-participant deductions applied regardless of
	// outcome (all-pay auctions).
	Charges map[string]float64 `json:"charges,omitempty"`
}

// Grant builds a single-slot grant decision.
func Grant(handle RequestHandle, participantID string, slot int, duration time.Duration) AllocationDecision {
	return AllocationDecision{
		Kind: DecisionGrant,
		Grants: []GrantSpec{{
			Handle:        handle,
			ParticipantID: participantID,
			Slot:          slot,
			Duration:      duration,
		}},
	}
}

// Queue builds a queue decision.
func Queue(handle RequestHandle, position int) AllocationDecision {
	return AllocationDecision{Kind: DecisionQueue, Handle: handle, Position: position}
}

// Preempt builds a preemption decision replacing former with the grant.
func Preempt(former string, grant GrantSpec) AllocationDecision {
	return AllocationDecision{
		Kind:        DecisionPreempt,
		PreemptedID: former,
		Grants:      []GrantSpec{grant},
	}
}

// Reject builds a rejection decision covering the given handles.
func Reject(reason string, handles ...RequestHandle) AllocationDecision {
	return AllocationDecision{Kind: DecisionReject, Reason: reason, Rejected: handles}
}

// NoChange builds a no-op decision.
func NoChange() AllocationDecision {
	return AllocationDecision{Kind: DecisionNoChange}
}
