package checkpoint

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/hybrid-exec/internal/engine"
)

// #region engine-set

// EngineSet bundles the two engines a restore re-initializes.
type EngineSet struct {
	Structured     engine.Engine
	Conversational engine.Engine
}

// #endregion engine-set

// #region restore-result

// RestoreResult reports which sub-states a restore reproduced.
type RestoreResult struct {
	CheckpointID           string
	Mode                   engine.Mode
	StructuredRestored     bool
	ConversationalRestored bool
	Partial                bool // only one sub-state was present
}

// #endregion restore-result

// #region restore

// Restore loads a checkpoint and drives both engines' re-initialization.
// Decode and upcast failures surface before any engine is touched. A
// checkpoint carrying only one sub-state yields a partial result.
func Restore(ctx context.Context, store Store, id string, engines EngineSet) (RestoreResult, error) {
	c, err := store.Load(ctx, id)
	if err != nil {
		return RestoreResult{}, err
	}

	result := RestoreResult{
		CheckpointID: c.CheckpointID,
		Mode:         c.ExecutionMode,
	}

	if len(c.StructuredState) > 0 {
		if engines.Structured == nil {
			return RestoreResult{}, fmt.Errorf("restore %s: no structured engine", id)
		}
		if err := engines.Structured.RestoreState(ctx, c.StructuredState); err != nil {
			return RestoreResult{}, fmt.Errorf("restore %s: structured engine: %w", id, err)
		}
		result.StructuredRestored = true
	}
	if len(c.ConversationalState) > 0 {
		if engines.Conversational == nil {
			return RestoreResult{}, fmt.Errorf("restore %s: no conversational engine", id)
		}
		if err := engines.Conversational.RestoreState(ctx, c.ConversationalState); err != nil {
			return RestoreResult{}, fmt.Errorf("restore %s: conversational engine: %w", id, err)
		}
		result.ConversationalRestored = true
	}

	result.Partial = result.StructuredRestored != result.ConversationalRestored
	return result, nil
}

// #endregion restore
