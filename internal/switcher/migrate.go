package switcher

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/danielpatrickdp/hybrid-exec/internal/engine"
)

// #region neutral-state

// neutralState is the mode-agnostic middle representation of a migration.
// Source state is lifted into it, then materialized into the target engine's
// initialization format. Neither engine ever sees the other's native blob.
type neutralState struct {
	Facts   map[string]string `json:"facts,omitempty"`   // named values worth carrying over
	History []string          `json:"history,omitempty"` // ordered prior outcomes
	Summary string            `json:"summary,omitempty"` // one-paragraph recap of where things stand
}

// #endregion neutral-state

// #region migrator

// Migrator translates engine state across the mode boundary.
type Migrator struct{}

// NewMigrator creates a state migrator.
func NewMigrator() *Migrator {
	return &Migrator{}
}

// Migrate converts a source engine blob into the target engine's
// initialization blob. Unsupported mode pairs and undecodable blobs fail
// before any engine is touched.
func (m *Migrator) Migrate(from, to engine.Mode, blob []byte) ([]byte, error) {
	switch {
	case from == engine.ModeStructured && to == engine.ModeConversational:
		neutral, err := m.liftStructured(blob)
		if err != nil {
			return nil, err
		}
		return m.materializeConversational(neutral)
	case from == engine.ModeConversational && to == engine.ModeStructured:
		neutral, err := m.liftConversational(blob)
		if err != nil {
			return nil, err
		}
		return m.materializeStructured(neutral)
	default:
		return nil, fmt.Errorf("unsupported migration %s -> %s", from, to)
	}
}

// #endregion migrator

// #region lift

func (m *Migrator) liftStructured(blob []byte) (neutralState, error) {
	var s engine.StructuredState
	if err := json.Unmarshal(blob, &s); err != nil {
		return neutralState{}, fmt.Errorf("decode structured state: %w", err)
	}
	n := neutralState{
		Facts:   map[string]string{},
		History: append([]string(nil), s.StepOutputs...),
	}
	for k, v := range s.Variables {
		n.Facts[k] = v
	}
	n.Summary = fmt.Sprintf("workflow paused at step %d of %d with %d steps pending",
		s.Step, s.TotalSteps, s.PendingSteps())
	if s.ConsecutiveFailures > 0 {
		n.Summary += fmt.Sprintf("; last %d executions failed", s.ConsecutiveFailures)
	}
	return n, nil
}

func (m *Migrator) liftConversational(blob []byte) (neutralState, error) {
	var c engine.ConversationalState
	if err := json.Unmarshal(blob, &c); err != nil {
		return neutralState{}, fmt.Errorf("decode conversational state: %w", err)
	}
	n := neutralState{Facts: map[string]string{}, Summary: c.Summary}
	for _, msg := range c.Messages {
		n.History = append(n.History, msg.Role+": "+msg.Content)
	}
	for _, tc := range c.ToolCalls {
		// Tool results become named facts keyed by tool name; later calls to
		// the same tool win.
		n.Facts["tool."+tc.Name] = tc.Result
	}
	return n, nil
}

// #endregion lift

// #region materialize

func (m *Migrator) materializeConversational(n neutralState) ([]byte, error) {
	c := engine.ConversationalState{Summary: n.Summary}
	for _, line := range n.History {
		c.Messages = append(c.Messages, engine.Message{Role: "system", Content: line})
	}
	if len(n.Facts) > 0 {
		keys := make([]string, 0, len(n.Facts))
		for k := range n.Facts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+n.Facts[k])
		}
		c.Messages = append(c.Messages, engine.Message{
			Role:    "system",
			Content: "carried context: " + strings.Join(pairs, ", "),
		})
	}
	return json.Marshal(c)
}

func (m *Migrator) materializeStructured(n neutralState) ([]byte, error) {
	s := engine.StructuredState{
		Step:        0,
		TotalSteps:  0,
		Variables:   map[string]string{},
		StepOutputs: append([]string(nil), n.History...),
	}
	for k, v := range n.Facts {
		s.Variables[k] = v
	}
	if n.Summary != "" {
		s.Variables["prior_summary"] = n.Summary
	}
	return json.Marshal(s)
}

// #endregion materialize
