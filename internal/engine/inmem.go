package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Minimal in-memory engines honoring the snapshot/restore/ready contract.
// They do no real work; the run loop and tests need engines that hold state
// across switches, nothing more.

// #region workflow

// Workflow is the in-memory structured engine.
type Workflow struct {
	mu    sync.Mutex
	state StructuredState
	ready bool
	hook  func(op Operation) error
}

var _ Engine = (*Workflow)(nil)

// NewWorkflow creates a ready workflow engine. hook, when non-nil, runs in
// place of the default step bookkeeping.
func NewWorkflow(hook func(op Operation) error) *Workflow {
	return &Workflow{ready: true, hook: hook}
}

func (w *Workflow) Mode() Mode { return ModeStructured }

func (w *Workflow) SnapshotState(_ context.Context) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return json.Marshal(w.state)
}

func (w *Workflow) RestoreState(_ context.Context, blob []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var st StructuredState
	if err := json.Unmarshal(blob, &st); err != nil {
		w.ready = false
		return fmt.Errorf("restore workflow state: %w", err)
	}
	w.state = st
	w.ready = true
	return nil
}

func (w *Workflow) IsReady() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ready
}

func (w *Workflow) Execute(_ context.Context, op Operation) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.hook != nil {
		if err := w.hook(op); err != nil {
			w.state.ConsecutiveFailures++
			return err
		}
	}
	w.state.Step++
	if w.state.TotalSteps < w.state.Step {
		w.state.TotalSteps = w.state.Step
	}
	w.state.StepOutputs = append(w.state.StepOutputs, op.Name)
	w.state.ConsecutiveFailures = 0
	return nil
}

// State returns a copy of the current workflow state.
func (w *Workflow) State() StructuredState {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.state
	st.Variables = cloneMap(w.state.Variables)
	st.StepOutputs = append([]string(nil), w.state.StepOutputs...)
	return st
}

// #endregion workflow

// #region conversational

// Conversational is the in-memory free-form engine.
type Conversational struct {
	mu    sync.Mutex
	state ConversationalState
	ready bool
}

var _ Engine = (*Conversational)(nil)

// NewConversational creates a ready conversational engine.
func NewConversational() *Conversational {
	return &Conversational{ready: true}
}

func (c *Conversational) Mode() Mode { return ModeConversational }

func (c *Conversational) SnapshotState(_ context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return json.Marshal(c.state)
}

func (c *Conversational) RestoreState(_ context.Context, blob []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var st ConversationalState
	if err := json.Unmarshal(blob, &st); err != nil {
		c.ready = false
		return fmt.Errorf("restore conversational state: %w", err)
	}
	c.state = st
	c.ready = true
	return nil
}

func (c *Conversational) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *Conversational) Execute(_ context.Context, op Operation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Messages = append(c.state.Messages, Message{Role: "user", Content: op.Input})
	if op.Name != "" {
		c.state.ToolCalls = append(c.state.ToolCalls, ToolCall{Name: op.Name, Arguments: cloneMap(op.Arguments)})
	}
	return nil
}

// State returns a copy of the current conversational state.
func (c *Conversational) State() ConversationalState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	st.Messages = append([]Message(nil), c.state.Messages...)
	st.ToolCalls = append([]ToolCall(nil), c.state.ToolCalls...)
	return st
}

// #endregion conversational

// #region helpers

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// #endregion helpers
