package types

import "time"

// EventType classifies turn lifecycle events emitted by the coordinator.
type EventType string

const (
	EventTurnGranted   EventType = "turn_granted"
	EventTurnQueued    EventType = "turn_queued"
	EventTurnPreempted EventType = "turn_preempted"
	EventTurnRejected  EventType = "turn_rejected"
	EventTurnEnded     EventType = "turn_ended"
	EventTurnSuspended EventType = "turn_suspended"
	EventTurnResumed   EventType = "turn_resumed"
)

// TurnEvent is delivered to listeners in ledger application order.
// Sequence is strictly increasing per conversation.
type TurnEvent struct {
	Type           EventType     `json:"type"`
	ConversationID string        `json:"conversation_id"`
	Sequence       uint64        `json:"sequence"`
	ParticipantID  string        `json:"participant_id,omitempty"`
	Handle         RequestHandle `json:"handle,omitempty"`
	Slot           int           `json:"slot,omitempty"`
	Position       int           `json:"position,omitempty"`
	Deadline       time.Time     `json:"deadline,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}
