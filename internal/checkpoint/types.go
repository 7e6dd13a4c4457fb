package checkpoint

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/hybrid-exec/internal/engine"
	"github.com/danielpatrickdp/hybrid-exec/internal/risk"
)

// #region sync-status

// SyncStatus records which sub-engine states a checkpoint carries.
type SyncStatus string

const (
	SyncBoth               SyncStatus = "synced"
	SyncStructuredOnly     SyncStatus = "structured_only"
	SyncConversationalOnly SyncStatus = "conversational_only"
)

// #endregion sync-status

// #region mode-transition

// TransitionOutcome is the recorded result of one switch attempt.
type TransitionOutcome string

const (
	OutcomeSuccess    TransitionOutcome = "success"
	OutcomeRolledBack TransitionOutcome = "rolled_back"
)

// ModeTransition is one append-only entry in a session's mode history,
// written on every switch attempt, successful or not.
type ModeTransition struct {
	Timestamp    time.Time         `json:"timestamp"`
	FromMode     engine.Mode       `json:"from_mode"`
	ToMode       engine.Mode       `json:"to_mode"`
	TriggerType  string            `json:"trigger_type"`
	Outcome      TransitionOutcome `json:"outcome"`
	CheckpointID string            `json:"checkpoint_id"`
}

// #endregion mode-transition

// #region hybrid-checkpoint

// History caps. Oldest entries are evicted beyond these; the sequences are
// arena-style bounded lists, never graphs.
const (
	MaxModeHistory = 50
	MaxRiskProfile = 20
)

// HybridCheckpoint is a versioned snapshot sufficient to resume or migrate
// execution across engine boundaries. Once saved it is owned exclusively by
// the store; a session's current checkpoint is superseded, not deleted, by
// each subsequent save.
type HybridCheckpoint struct {
	Version             int               `json:"version"`
	CheckpointID        string            `json:"checkpoint_id"`
	SessionID           string            `json:"session_id"`
	StructuredState     json.RawMessage   `json:"structured_state,omitempty"`
	ConversationalState json.RawMessage   `json:"conversational_state,omitempty"`
	ExecutionMode       engine.Mode       `json:"execution_mode"`
	ModeHistory         []ModeTransition  `json:"mode_history,omitempty"`
	RiskProfile         []risk.Assessment `json:"risk_profile,omitempty"` // most-recent-first
	SyncStatus          SyncStatus        `json:"sync_status"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// New creates a checkpoint at the current format version. Timestamps are
// UTC with the monotonic reading stripped so encode/decode round-trips
// compare equal.
func New(sessionID string, mode engine.Mode) HybridCheckpoint {
	now := time.Now().UTC().Round(0)
	return HybridCheckpoint{
		Version:       CurrentVersion,
		CheckpointID:  uuid.New().String(),
		SessionID:     sessionID,
		ExecutionMode: mode,
		SyncStatus:    syncStatusFor(nil, nil),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// SetStates attaches the opaque engine blobs and derives the sync status.
func (c *HybridCheckpoint) SetStates(structured, conversational []byte) {
	c.StructuredState = append(json.RawMessage(nil), structured...)
	c.ConversationalState = append(json.RawMessage(nil), conversational...)
	c.SyncStatus = syncStatusFor(structured, conversational)
}

func syncStatusFor(structured, conversational []byte) SyncStatus {
	switch {
	case len(structured) > 0 && len(conversational) == 0:
		return SyncStructuredOnly
	case len(conversational) > 0 && len(structured) == 0:
		return SyncConversationalOnly
	default:
		return SyncBoth
	}
}

// AppendTransition appends to the bounded mode history, evicting the oldest
// entry beyond the cap.
func (c *HybridCheckpoint) AppendTransition(t ModeTransition) {
	c.ModeHistory = append(c.ModeHistory, t)
	if len(c.ModeHistory) > MaxModeHistory {
		c.ModeHistory = append([]ModeTransition(nil), c.ModeHistory[len(c.ModeHistory)-MaxModeHistory:]...)
	}
}

// PushAssessment prepends to the bounded most-recent-first risk profile.
func (c *HybridCheckpoint) PushAssessment(a risk.Assessment) {
	c.RiskProfile = append([]risk.Assessment{a}, c.RiskProfile...)
	if len(c.RiskProfile) > MaxRiskProfile {
		c.RiskProfile = c.RiskProfile[:MaxRiskProfile]
	}
}

// #endregion hybrid-checkpoint
