package engine

import "context"

// #region mode

// Mode identifies which execution engine is active for a session.
type Mode string

const (
	ModeStructured     Mode = "structured"
	ModeConversational Mode = "conversational"
	// ModeTransitioning exists only for the duration of one switch.
	ModeTransitioning Mode = "transitioning"
)

// #endregion mode

// #region operation

// Operation is one inbound unit of work dispatched to the active engine.
type Operation struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
	Input     string            `json:"input,omitempty"` // raw user text for the turn
}

// #endregion operation

// #region engine-interface

// Engine is the contract both execution engines expose to the orchestrator.
// Engine internals (workflow step execution, tool calling) live outside this
// module; the orchestrator only snapshots, restores, and dispatches.
type Engine interface {
	Mode() Mode
	SnapshotState(ctx context.Context) ([]byte, error)
	RestoreState(ctx context.Context, blob []byte) error
	IsReady() bool
	Execute(ctx context.Context, op Operation) error
}

// #endregion engine-interface

// #region structured-state

// StructuredState is the workflow engine's serialized form.
type StructuredState struct {
	Step                int               `json:"step"`
	TotalSteps          int               `json:"total_steps"`
	Variables           map[string]string `json:"variables,omitempty"`
	StepOutputs         []string          `json:"step_outputs,omitempty"`
	ConsecutiveFailures int               `json:"consecutive_failures,omitempty"`
}

// PendingSteps reports how many workflow steps remain.
func (s StructuredState) PendingSteps() int {
	if s.TotalSteps <= s.Step {
		return 0
	}
	return s.TotalSteps - s.Step
}

// #endregion structured-state

// #region conversational-state

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolCall records one tool invocation and its result.
type ToolCall struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
	Result    string            `json:"result,omitempty"`
}

// ConversationalState is the conversational engine's serialized form.
type ConversationalState struct {
	Messages  []Message  `json:"messages,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Summary   string     `json:"summary,omitempty"`
}

// #endregion conversational-state
