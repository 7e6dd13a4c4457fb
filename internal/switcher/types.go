package switcher

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/hybrid-exec/internal/engine"
)

// #region trigger

// TriggerType enumerates why a mode switch was requested, in detection
// priority order.
type TriggerType string

const (
	TriggerUserRequest TriggerType = "user_request"
	TriggerFailure     TriggerType = "failure"
	TriggerResource    TriggerType = "resource"
	TriggerComplexity  TriggerType = "complexity"
)

// SwitchTrigger is produced by a trigger detector and consumed once by
// ExecuteSwitch; its outcome survives as a ModeTransition entry.
type SwitchTrigger struct {
	TriggerType TriggerType `json:"trigger_type"`
	SourceMode  engine.Mode `json:"source_mode"`
	TargetMode  engine.Mode `json:"target_mode"`
	Reason      string      `json:"reason"`
	Confidence  float32     `json:"confidence"` // in [0,1]
}

// #endregion trigger

// #region result

// SwitchResult is the transient outcome of one switch attempt. Err is set
// when the switch was attempted and rolled back; it is not a raised error.
type SwitchResult struct {
	Success      bool        `json:"success"`
	SwitchID     string      `json:"switch_id"`
	NewMode      engine.Mode `json:"new_mode"`
	CheckpointID string      `json:"checkpoint_id"`
	Err          error       `json:"-"`
}

// #endregion result

// #region signals

// Signals is the per-session observable state the trigger detectors inspect.
// The session worker owns these values; detectors only read them.
type Signals struct {
	ConsecutiveFailures int
	ActiveOperations    int
	PendingSteps        int
}

// #endregion signals

// #region config

// Config tunes trigger detection and switch execution.
type Config struct {
	// FailureThreshold is the consecutive-failure count in structured mode
	// that triggers a recovery switch to conversational.
	FailureThreshold int `yaml:"failure_threshold"`
	// ResourceCeiling is the in-flight operation count above which the
	// session falls back to the simpler mode.
	ResourceCeiling int `yaml:"resource_ceiling"`
	// ComplexityStepThreshold is the estimated step count at which an input
	// is considered structured work.
	ComplexityStepThreshold int `yaml:"complexity_step_threshold"`
	// SimpleQueryMaxWords bounds what counts as a simple query when deciding
	// to drop back to conversational.
	SimpleQueryMaxWords int `yaml:"simple_query_max_words"`
	// CheckpointTTL is applied to pre-switch checkpoints. Zero means no
	// expiry.
	CheckpointTTL time.Duration `yaml:"checkpoint_ttl"`
}

// DefaultConfig returns the tuning used when no config file overrides it.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:        3,
		ResourceCeiling:         8,
		ComplexityStepThreshold: 4,
		SimpleQueryMaxWords:     15,
		CheckpointTTL:           0,
	}
}

// UnmarshalYAML layers present fields over the prior values, accepting a Go
// duration string for checkpoint_ttl.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		FailureThreshold        *int   `yaml:"failure_threshold"`
		ResourceCeiling         *int   `yaml:"resource_ceiling"`
		ComplexityStepThreshold *int   `yaml:"complexity_step_threshold"`
		SimpleQueryMaxWords     *int   `yaml:"simple_query_max_words"`
		CheckpointTTL           string `yaml:"checkpoint_ttl"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.FailureThreshold != nil {
		c.FailureThreshold = *raw.FailureThreshold
	}
	if raw.ResourceCeiling != nil {
		c.ResourceCeiling = *raw.ResourceCeiling
	}
	if raw.ComplexityStepThreshold != nil {
		c.ComplexityStepThreshold = *raw.ComplexityStepThreshold
	}
	if raw.SimpleQueryMaxWords != nil {
		c.SimpleQueryMaxWords = *raw.SimpleQueryMaxWords
	}
	if raw.CheckpointTTL != "" {
		d, err := time.ParseDuration(raw.CheckpointTTL)
		if err != nil {
			return fmt.Errorf("checkpoint_ttl: %w", err)
		}
		c.CheckpointTTL = d
	}
	return nil
}

// #endregion config

// #region errors

// ConcurrentSwitchError rejects a switch request while another switch is in
// flight for the same session. The request is never queued.
type ConcurrentSwitchError struct {
	SessionID string
}

func (e *ConcurrentSwitchError) Error() string {
	return fmt.Sprintf("switch already in flight for session %s", e.SessionID)
}

// SwitchValidationError reports a failed post-migration consistency check.
// It reaches the caller inside SwitchResult.Err after rollback completes.
type SwitchValidationError struct {
	Check  string
	Detail string
}

func (e *SwitchValidationError) Error() string {
	return fmt.Sprintf("switch validation failed (%s): %s", e.Check, e.Detail)
}

// #endregion errors
