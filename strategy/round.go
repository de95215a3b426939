package strategy

import (
	"time"

	"github.com/BaSui01/turnflow/types"
)

// RoundStateVersion gates deserialization of snapshotted round state.
// Unknown versions are rejected, never guessed at.
const RoundStateVersion = 1

// RoundKind tags which strategy family owns the round.
type RoundKind string

const (
	RoundAuction   RoundKind = "auction"
	RoundVoting    RoundKind = "voting"
	RoundConsensus RoundKind = "consensus"
)

// BallotRecord is one recorded vote or consensus acknowledgment.
type BallotRecord struct {
	VoterID string       `json:"voter_id"`
	Ballot  types.Ballot `json:"ballot"`
	CastAt  time.Time    `json:"cast_at"`
}

// RoundState is the explicit, versioned accumulation state of a multi-step
// decision round (auction window, voting round, consensus round). It is
// passed into and out of Decide rather than hidden in strategy fields, so
// snapshots capture in-flight rounds and the ledger stays single-writer
// under concurrent timer callbacks.
type RoundState struct {
	Version  int       `json:"version"`
	Kind     RoundKind `json:"kind"`
	Seq      int       `json:"seq"`
	OpenedAt time.Time `json:"opened_at"`
	Deadline time.Time `json:"deadline"`
	// Attempts counts consensus round retries toward the retry limit.
	Attempts int `json:"attempts"`
	// Term is the leader term under leader-based consensus.
	Term uint64 `json:"term"`
	// Ballots are the votes or acks collected so far.
	Ballots []BallotRecord `json:"ballots,omitempty"`
}

// newRound opens a fresh round.
func newRound(kind RoundKind, seq int, now, deadline time.Time) *RoundState {
	return &RoundState{
		Version:  RoundStateVersion,
		Kind:     kind,
		Seq:      seq,
		OpenedAt: now,
		Deadline: deadline,
	}
}

// Valid reports whether the round state carries a supported version.
func (r *RoundState) Valid() bool {
	return r != nil && r.Version == RoundStateVersion
}

// HasVoted reports whether a voter already cast a ballot in this round.
func (r *RoundState) HasVoted(voterID string) bool {
	for _, b := range r.Ballots {
		if b.VoterID == voterID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the round state.
func (r *RoundState) Clone() *RoundState {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Ballots != nil {
		cp.Ballots = make([]BallotRecord, len(r.Ballots))
		for i, b := range r.Ballots {
			cp.Ballots[i] = BallotRecord{
				VoterID: b.VoterID,
				Ballot:  *b.Ballot.Clone(),
				CastAt:  b.CastAt,
			}
		}
	}
	return &cp
}
