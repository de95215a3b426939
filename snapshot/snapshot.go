// Package snapshot provides suspend/resume/checkpoint support for turn
// coordination: serializable captures of ledger state, participant presence,
// and in-flight round state, persisted across interruptions and restarts.
//
// Supported backends:
// - Memory: For development and testing (default)
// - File: For single-node production deployments
// - Redis: For distributed production deployments
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/BaSui01/turnflow/ledger"
	"github.com/BaSui01/turnflow/strategy"
	"github.com/BaSui01/turnflow/types"
)

// FormatVersion tags the snapshot wire layout. Decoding rejects any other
// version rather than guessing.
const FormatVersion = 1

// ResumeStrategy selects how restored state is re-entered. The caller
// chooses; the manager never decides this on the system's behalf.
type ResumeStrategy string

const (
	// ResumeContinue replays exactly where the coordination was interrupted.
	ResumeContinue ResumeStrategy = "continue_from_last_step"

	// ResumeRetryStep discards the in-flight round's partial progress
	// (open ballots, pending settlement) and redoes that step.
	ResumeRetryStep ResumeStrategy = "retry_last_step"

	// ResumeRestartClean discards all partial progress but keeps the
	// original request queue.
	ResumeRestartClean ResumeStrategy = "restart_clean"
)

// Valid reports whether the resume strategy is a known value.
func (r ResumeStrategy) Valid() bool {
	switch r {
	case ResumeContinue, ResumeRetryStep, ResumeRestartClean:
		return true
	default:
		return false
	}
}

// Snapshot is a self-describing capture of coordination state taken at a
// suspension point or checkpoint. It is consumed (and invalidated) on
// resume and discarded after expiry.
type Snapshot struct {
	// Version is the format version tag.
	Version int `json:"version"`

	// ID is the unique snapshot identifier.
	ID string `json:"id"`

	// ConversationID is the conversation this snapshot belongs to.
	ConversationID string `json:"conversation_id"`

	// Reason records why the snapshot was taken (suspend reason or
	// "checkpoint" for periodic saves).
	Reason string `json:"reason"`

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is when the snapshot becomes invalid for resume.
	ExpiresAt time.Time `json:"expires_at"`

	// Ledger is the full ledger state.
	Ledger *ledger.State `json:"ledger"`

	// Presence is the participant presence map at capture time.
	Presence map[string]types.Presence `json:"presence,omitempty"`

	// Round is the in-flight strategy round state, if any (open auction
	// bids, accumulated ballots, consensus term).
	Round *strategy.RoundState `json:"round,omitempty"`

	// Checksum is the hex sha256 digest of the snapshot body.
	Checksum string `json:"checksum"`
}

// digest computes the checksum over the snapshot with the Checksum field
// cleared. encoding/json emits map keys in sorted order, so the digest is
// deterministic for equal state.
func (s *Snapshot) digest() (string, error) {
	body := *s
	body.Checksum = ""
	data, err := json.Marshal(&body)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Seal computes and stores the checksum. Must be called after the snapshot
// body is complete and before encoding.
func (s *Snapshot) Seal() error {
	sum, err := s.digest()
	if err != nil {
		return types.NewError(types.ErrIntegrityError, "cannot compute snapshot checksum").WithCause(err)
	}
	s.Checksum = sum
	return nil
}

// Verify validates version, checksum, and expiry at the given instant.
// Failures are surfaced, never silently tolerated.
func (s *Snapshot) Verify(now time.Time) error {
	if s.Version != FormatVersion {
		return types.NewErrorf(types.ErrUnsupportedVersion,
			"snapshot format version %d, want %d", s.Version, FormatVersion)
	}
	sum, err := s.digest()
	if err != nil {
		return types.NewError(types.ErrIntegrityError, "cannot compute snapshot checksum").WithCause(err)
	}
	if sum != s.Checksum {
		return types.NewError(types.ErrIntegrityError, "snapshot checksum mismatch")
	}
	if !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt) {
		return types.NewErrorf(types.ErrExpiredSnapshot,
			"snapshot %s expired at %s", s.ID, s.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// Expired reports whether the snapshot has passed its expiry.
func (s *Snapshot) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Encode serializes a sealed snapshot.
func Encode(s *Snapshot) ([]byte, error) {
	if s.Checksum == "" {
		if err := s.Seal(); err != nil {
			return nil, err
		}
	}
	return json.Marshal(s)
}

// Decode parses and structurally validates a snapshot. The version gate
// runs before anything else so unknown layouts are rejected, not guessed.
func Decode(data []byte) (*Snapshot, error) {
	var probe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, types.NewError(types.ErrIntegrityError, "malformed snapshot").WithCause(err)
	}
	if probe.Version != FormatVersion {
		return nil, types.NewErrorf(types.ErrUnsupportedVersion,
			"snapshot format version %d, want %d", probe.Version, FormatVersion)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, types.NewError(types.ErrIntegrityError, "malformed snapshot").WithCause(err)
	}
	return &s, nil
}

// Clone returns a deep copy via the codec.
func (s *Snapshot) Clone() (*Snapshot, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out Snapshot
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
