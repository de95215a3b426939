package types

import "time"

// RequestHandle uniquely identifies a submitted turn request.
type RequestHandle string

// Bid is the payload attached to a request under auction strategies.
type Bid struct {
	Amount   float64   `json:"amount"`
	PlacedAt time.Time `json:"placed_at"`
}

// Ballot is the payload attached to a request under voting or consensus
// strategies. Exactly one field group is meaningful depending on the
// configured voting method.
type Ballot struct {
	// CandidateID carries a single vote (simple majority).
	CandidateID string `json:"candidate_id,omitempty"`
	// Approvals lists approved candidates (approval voting, consensus acks).
	Approvals []string `json:"approvals,omitempty"`
	// Ranking orders candidates from most to least preferred (ranked-choice).
	Ranking []string `json:"ranking,omitempty"`
	// Scores assigns points per candidate (score and quadratic voting).
	Scores map[string]float64 `json:"scores,omitempty"`
}

// Clone returns a deep copy of the ballot.
func (b *Ballot) Clone() *Ballot {
	cp := *b
	if b.Approvals != nil {
		cp.Approvals = append([]string(nil), b.Approvals...)
	}
	if b.Ranking != nil {
		cp.Ranking = append([]string(nil), b.Ranking...)
	}
	if b.Scores != nil {
		cp.Scores = make(map[string]float64, len(b.Scores))
		for k, v := range b.Scores {
			cp.Scores[k] = v
		}
	}
	return &cp
}

// TurnRequest is a participant's bid for the right to act. Immutable once
// submitted except for the cancellation flag.
type TurnRequest struct {
	Handle            RequestHandle `json:"handle"`
	ParticipantID     string        `json:"participant_id"`
	Priority          int           `json:"priority"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
	ArrivedAt         time.Time     `json:"arrived_at"`
	// Seq is the admission sequence number, stamped together with
	// ArrivedAt. It totally orders requests admitted at the same clock
	// instant.
	Seq       uint64  `json:"seq"`
	Bid       *Bid    `json:"bid,omitempty"`
	Ballot    *Ballot `json:"ballot,omitempty"`
	Cancelled bool    `json:"cancelled"`
}

// Clone returns a deep copy of the request.
func (r *TurnRequest) Clone() *TurnRequest {
	cp := *r
	if r.Bid != nil {
		b := *r.Bid
		cp.Bid = &b
	}
	if r.Ballot != nil {
		cp.Ballot = r.Ballot.Clone()
	}
	return &cp
}

// Before reports whether r should be resolved ahead of other when both are
// pending. Priority comparisons are total and stable: higher priority first,
// ties broken by earliest arrival, then by admission sequence so requests
// admitted at the same instant keep their submission order.
func (r *TurnRequest) Before(other *TurnRequest) bool {
	if r.Priority != other.Priority {
		return r.Priority > other.Priority
	}
	if !r.ArrivedAt.Equal(other.ArrivedAt) {
		return r.ArrivedAt.Before(other.ArrivedAt)
	}
	if r.Seq != other.Seq {
		return r.Seq < other.Seq
	}
	return r.Handle < other.Handle
}
