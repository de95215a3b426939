package types

import "time"

// ParticipantType classifies who (or what) is taking part in a conversation.
type ParticipantType string

const (
	ParticipantHuman      ParticipantType = "human"
	ParticipantAgent      ParticipantType = "agent"
	ParticipantAutomated  ParticipantType = "automated_system"
	ParticipantHybridTeam ParticipantType = "hybrid_team"
)

// Presence represents a participant's current availability state.
type Presence string

const (
	PresenceActive  Presence = "active"
	PresenceIdle    Presence = "idle"
	PresenceAway    Presence = "away"
	PresenceOffline Presence = "offline"
)

// Participant is a member of a conversation that may request turns.
type Participant struct {
	ID           string          `json:"id"`
	Name         string          `json:"name,omitempty"`
	Type         ParticipantType `json:"type"`
	Capabilities []string        `json:"capabilities,omitempty"`
	Presence     Presence        `json:"presence"`
	JoinedAt     time.Time       `json:"joined_at"`
	LastSeen     time.Time       `json:"last_seen"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the participant.
func (p *Participant) Clone() *Participant {
	cp := *p
	if p.Capabilities != nil {
		cp.Capabilities = append([]string(nil), p.Capabilities...)
	}
	if p.Metadata != nil {
		cp.Metadata = make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
