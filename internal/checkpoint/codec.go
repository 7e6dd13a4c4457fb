package checkpoint

import (
	"encoding/json"
	"fmt"

	"github.com/danielpatrickdp/hybrid-exec/internal/engine"
)

// #region versioning

// CurrentVersion is the checkpoint format version written by this build.
// Version 1 predates sync_status and updated_at.
const CurrentVersion = 2

// #endregion versioning

// #region corruption-error

// CorruptionError marks a checkpoint payload that cannot be deserialized or
// upcast. Restore aborts on it; pre-existing live state is left untouched.
type CorruptionError struct {
	ID     string
	Reason string
	Err    error
}

func (e *CorruptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("checkpoint %s corrupt: %s: %v", e.ID, e.Reason, e.Err)
	}
	return fmt.Sprintf("checkpoint %s corrupt: %s", e.ID, e.Reason)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// #endregion corruption-error

// #region encode

// Encode serializes a checkpoint. Encode and Decode round-trip without loss.
func Encode(c HybridCheckpoint) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint %s: %w", c.CheckpointID, err)
	}
	return data, nil
}

// #endregion encode

// #region decode

// Decode deserializes and validates a checkpoint, upcasting older versions
// before the result reaches engine logic. Any failure is a CorruptionError.
func Decode(data []byte) (HybridCheckpoint, error) {
	var c HybridCheckpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return HybridCheckpoint{}, &CorruptionError{Reason: "unmarshal", Err: err}
	}

	switch {
	case c.Version <= 0:
		return HybridCheckpoint{}, &CorruptionError{ID: c.CheckpointID, Reason: fmt.Sprintf("missing or invalid version %d", c.Version)}
	case c.Version > CurrentVersion:
		return HybridCheckpoint{}, &CorruptionError{ID: c.CheckpointID, Reason: fmt.Sprintf("version %d newer than supported %d", c.Version, CurrentVersion)}
	case c.Version < CurrentVersion:
		if err := upcast(&c); err != nil {
			return HybridCheckpoint{}, err
		}
	}

	if c.CheckpointID == "" {
		return HybridCheckpoint{}, &CorruptionError{Reason: "missing checkpoint_id"}
	}
	if c.SessionID == "" {
		return HybridCheckpoint{}, &CorruptionError{ID: c.CheckpointID, Reason: "missing session_id"}
	}
	switch c.ExecutionMode {
	case engine.ModeStructured, engine.ModeConversational:
	default:
		return HybridCheckpoint{}, &CorruptionError{ID: c.CheckpointID, Reason: fmt.Sprintf("invalid execution_mode %q", c.ExecutionMode)}
	}

	return c, nil
}

// upcast rewrites an older-version checkpoint into the current format.
// Isolated here so version drift never leaks into engine logic.
func upcast(c *HybridCheckpoint) error {
	for c.Version < CurrentVersion {
		switch c.Version {
		case 1:
			// v1 → v2: sync_status and updated_at were introduced in v2.
			if c.SyncStatus == "" {
				c.SyncStatus = syncStatusFor(c.StructuredState, c.ConversationalState)
			}
			if c.UpdatedAt.IsZero() {
				c.UpdatedAt = c.CreatedAt
			}
			c.Version = 2
		default:
			return &CorruptionError{ID: c.CheckpointID, Reason: fmt.Sprintf("no upcast path from version %d", c.Version)}
		}
	}
	return nil
}

// #endregion decode
