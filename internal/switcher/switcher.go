package switcher

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/hybrid-exec/internal/checkpoint"
	"github.com/danielpatrickdp/hybrid-exec/internal/engine"
	"github.com/danielpatrickdp/hybrid-exec/internal/risk"
)

// #region switcher

// Switcher owns one session's mode and executes switches against it. A
// switch is a critical section: at most one in flight per session, a second
// request is rejected immediately with ConcurrentSwitchError.
type Switcher struct {
	sessionID      string
	config         Config
	store          checkpoint.Store
	structured     engine.Engine
	conversational engine.Engine

	mu            sync.Mutex
	mode          engine.Mode
	history       []checkpoint.ModeTransition
	rolledBack    map[string]bool
	profileSource func() []risk.Assessment
}

// New creates a switcher with the session's initial mode.
func New(sessionID string, initial engine.Mode, structured, conversational engine.Engine, store checkpoint.Store, config Config) *Switcher {
	return &Switcher{
		sessionID:      sessionID,
		config:         config,
		store:          store,
		structured:     structured,
		conversational: conversational,
		mode:           initial,
		rolledBack:     map[string]bool{},
	}
}

// Mode returns the session's active mode.
func (s *Switcher) Mode() engine.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// History returns a copy of the session's mode transitions, oldest first.
func (s *Switcher) History() []checkpoint.ModeTransition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]checkpoint.ModeTransition(nil), s.history...)
}

// SetProfileSource registers a callback supplying the session's bounded risk
// profile, most recent first, so switch checkpoints carry it. The callback
// runs while the switch holds the session lock and must not call back into
// the switcher.
func (s *Switcher) SetProfileSource(fn func() []risk.Assessment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileSource = fn
}

// Adopt resets the active mode and transition history to a restored
// checkpoint's values.
func (s *Switcher) Adopt(mode engine.Mode, history []checkpoint.ModeTransition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	s.history = append([]checkpoint.ModeTransition(nil), history...)
}

// #endregion switcher

// #region execute

// ExecuteSwitch runs one switch attempt: checkpoint, migrate, initialize the
// target engine, validate, then commit or roll back. A checkpoint save
// failure aborts the switch with no state change. Any later failure rolls
// back to the checkpoint before it is surfaced, inside SwitchResult.Err.
func (s *Switcher) ExecuteSwitch(ctx context.Context, trigger SwitchTrigger) (SwitchResult, error) {
	if !s.mu.TryLock() {
		return SwitchResult{}, &ConcurrentSwitchError{SessionID: s.sessionID}
	}
	defer s.mu.Unlock()

	if trigger.SourceMode != s.mode {
		return SwitchResult{}, fmt.Errorf("trigger source mode %s does not match active mode %s", trigger.SourceMode, s.mode)
	}
	if trigger.TargetMode == s.mode {
		return SwitchResult{}, fmt.Errorf("already in mode %s", s.mode)
	}

	source, target, err := s.pair(trigger)
	if err != nil {
		return SwitchResult{}, err
	}

	// Checkpoint both engines. Must be confirmed durable before migration
	// begins; on failure nothing has changed yet.
	cp, err := s.checkpointLocked(ctx)
	if err != nil {
		return SwitchResult{}, fmt.Errorf("pre-switch checkpoint: %w", err)
	}

	switchID := uuid.New().String()
	log.Printf("[SWITCH] session=%s %s -> %s trigger=%s checkpoint=%s",
		s.sessionID, trigger.SourceMode, trigger.TargetMode, trigger.TriggerType, cp.CheckpointID)

	s.mode = engine.ModeTransitioning

	sourceBlob := cp.StructuredState
	if trigger.SourceMode == engine.ModeConversational {
		sourceBlob = cp.ConversationalState
	}

	migrated, err := NewMigrator().Migrate(trigger.SourceMode, trigger.TargetMode, sourceBlob)
	if err != nil {
		return s.failLocked(ctx, cp, trigger, fmt.Errorf("migrate state: %w", err))
	}
	if err := target.RestoreState(ctx, migrated); err != nil {
		return s.failLocked(ctx, cp, trigger, fmt.Errorf("initialize target engine: %w", err))
	}
	if verr := s.validate(source, target, trigger); verr != nil {
		return s.failLocked(ctx, cp, trigger, verr)
	}

	s.mode = trigger.TargetMode
	s.appendTransitionLocked(trigger, checkpoint.OutcomeSuccess, cp.CheckpointID)
	return SwitchResult{
		Success:      true,
		SwitchID:     switchID,
		NewMode:      trigger.TargetMode,
		CheckpointID: cp.CheckpointID,
	}, nil
}

func (s *Switcher) pair(trigger SwitchTrigger) (source, target engine.Engine, err error) {
	byMode := func(m engine.Mode) (engine.Engine, error) {
		switch m {
		case engine.ModeStructured:
			return s.structured, nil
		case engine.ModeConversational:
			return s.conversational, nil
		default:
			return nil, fmt.Errorf("no engine for mode %s", m)
		}
	}
	if source, err = byMode(trigger.SourceMode); err != nil {
		return nil, nil, err
	}
	target, err = byMode(trigger.TargetMode)
	return source, target, err
}

// checkpointLocked snapshots both engines into a durable checkpoint.
func (s *Switcher) checkpointLocked(ctx context.Context) (checkpoint.HybridCheckpoint, error) {
	structuredBlob, err := s.structured.SnapshotState(ctx)
	if err != nil {
		return checkpoint.HybridCheckpoint{}, fmt.Errorf("snapshot structured state: %w", err)
	}
	conversationalBlob, err := s.conversational.SnapshotState(ctx)
	if err != nil {
		return checkpoint.HybridCheckpoint{}, fmt.Errorf("snapshot conversational state: %w", err)
	}

	cp := checkpoint.New(s.sessionID, s.mode)
	cp.SetStates(structuredBlob, conversationalBlob)
	cp.ModeHistory = append([]checkpoint.ModeTransition(nil), s.history...)
	if s.profileSource != nil {
		cp.RiskProfile = append([]risk.Assessment(nil), s.profileSource()...)
	}
	if _, err := s.store.Save(ctx, cp, s.config.CheckpointTTL); err != nil {
		return checkpoint.HybridCheckpoint{}, err
	}
	return cp, nil
}

func (s *Switcher) validate(source, target engine.Engine, trigger SwitchTrigger) error {
	if !target.IsReady() {
		return &SwitchValidationError{Check: "readiness", Detail: fmt.Sprintf("%s engine not ready after migration", trigger.TargetMode)}
	}
	if target.Mode() != trigger.TargetMode {
		return &SwitchValidationError{Check: "mode", Detail: fmt.Sprintf("target engine reports mode %s", target.Mode())}
	}
	if !source.IsReady() {
		return &SwitchValidationError{Check: "source", Detail: fmt.Sprintf("%s engine unhealthy after snapshot", trigger.SourceMode)}
	}
	return nil
}

// failLocked rolls back to the pre-switch checkpoint, records the attempt,
// and packages the error. Rollback always completes before the error is
// surfaced; a switch is never left half-applied.
func (s *Switcher) failLocked(ctx context.Context, cp checkpoint.HybridCheckpoint, trigger SwitchTrigger, cause error) (SwitchResult, error) {
	if _, rerr := s.rollbackLocked(ctx, cp); rerr != nil {
		cause = fmt.Errorf("%w (rollback also failed: %v)", cause, rerr)
	}
	s.appendTransitionLocked(trigger, checkpoint.OutcomeRolledBack, cp.CheckpointID)
	log.Printf("[SWITCH] session=%s rolled back to checkpoint %s: %v", s.sessionID, cp.CheckpointID, cause)
	return SwitchResult{
		Success:      false,
		NewMode:      s.mode,
		CheckpointID: cp.CheckpointID,
		Err:          cause,
	}, nil
}

func (s *Switcher) appendTransitionLocked(trigger SwitchTrigger, outcome checkpoint.TransitionOutcome, checkpointID string) {
	s.history = append(s.history, checkpoint.ModeTransition{
		Timestamp:    time.Now().UTC().Round(0),
		FromMode:     trigger.SourceMode,
		ToMode:       trigger.TargetMode,
		TriggerType:  string(trigger.TriggerType),
		Outcome:      outcome,
		CheckpointID: checkpointID,
	})
	if len(s.history) > checkpoint.MaxModeHistory {
		s.history = append([]checkpoint.ModeTransition(nil), s.history[len(s.history)-checkpoint.MaxModeHistory:]...)
	}
}

// #endregion execute

// #region rollback

// RollbackSwitch restores both engines and the active mode to the given
// checkpoint. Idempotent: a second call against an already-restored
// checkpoint reports false and performs no side effects.
func (s *Switcher) RollbackSwitch(ctx context.Context, cp checkpoint.HybridCheckpoint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbackLocked(ctx, cp)
}

func (s *Switcher) rollbackLocked(ctx context.Context, cp checkpoint.HybridCheckpoint) (bool, error) {
	if s.rolledBack[cp.CheckpointID] {
		return false, nil
	}
	if len(cp.StructuredState) > 0 {
		if err := s.structured.RestoreState(ctx, cp.StructuredState); err != nil {
			return false, fmt.Errorf("restore structured state: %w", err)
		}
	}
	if len(cp.ConversationalState) > 0 {
		if err := s.conversational.RestoreState(ctx, cp.ConversationalState); err != nil {
			return false, fmt.Errorf("restore conversational state: %w", err)
		}
	}
	s.mode = cp.ExecutionMode
	s.rolledBack[cp.CheckpointID] = true
	return true, nil
}

// #endregion rollback
