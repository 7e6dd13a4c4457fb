package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/hybrid-exec/internal/engine"
	"github.com/danielpatrickdp/hybrid-exec/internal/risk"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: a recorded
// operation sequence plus the decisions it is expected to produce.
type Fixture struct {
	Description     string                  `json:"description"`
	InitialMode     engine.Mode             `json:"initial_mode"`
	Interactions    []FixtureInteraction    `json:"interactions"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureContext mirrors risk.OperationContext with JSON tags.
type FixtureContext struct {
	Environment  string  `json:"environment"`
	UserTrust    float32 `json:"user_trust"`
	RecentErrors int     `json:"recent_errors"`
}

// FixtureSignals carries the per-turn trigger-detector inputs.
type FixtureSignals struct {
	ConsecutiveFailures int `json:"consecutive_failures"`
	ActiveOperations    int `json:"active_operations"`
	PendingSteps        int `json:"pending_steps"`
}

// FixtureInteraction is a single recorded turn.
type FixtureInteraction struct {
	TurnID    string            `json:"turn_id"`
	Operation string            `json:"operation"`
	Arguments map[string]string `json:"arguments,omitempty"`
	Input     string            `json:"input,omitempty"`
	Context   FixtureContext    `json:"context"`
	Signals   FixtureSignals    `json:"signals"`
}

// FixtureExpectedResult captures the expected decisions per turn. An empty
// switch_to means no switch is expected.
type FixtureExpectedResult struct {
	TurnID         string `json:"turn_id"`
	Level          string `json:"level"`
	Recommendation string `json:"recommendation"`
	SwitchTo       string `json:"switch_to,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if f.InitialMode == "" {
		f.InitialMode = engine.ModeConversational
	}
	return &f, nil
}

// ToOperationContext converts a FixtureContext to the domain type.
func (c *FixtureContext) ToOperationContext() risk.OperationContext {
	return risk.OperationContext{
		Environment:  c.Environment,
		UserTrust:    c.UserTrust,
		RecentErrors: c.RecentErrors,
	}
}

// #endregion fixture-loader
