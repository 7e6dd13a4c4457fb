package risk

import (
	"fmt"
	"strings"
)

// #region validation-error

// ValidationError marks malformed operation input, rejected before scoring.
// Malformed input is never silently scored as zero risk.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid operation input: %s: %s", e.Field, e.Detail)
}

// #endregion validation-error

// #region engine

// Engine combines the three sub-scorers into one assessment. Assess is a
// pure function of its inputs: no I/O, no mutation, deterministic.
type Engine struct {
	config    Config
	operation *OperationAnalyzer
	context   *ContextEvaluator
	pattern   *PatternDetector
}

// NewEngine creates a fully wired engine. The config is copied at
// construction and never mutated afterwards.
func NewEngine(config Config) *Engine {
	return &Engine{
		config:    config,
		operation: NewOperationAnalyzer(config),
		context:   NewContextEvaluator(config),
		pattern:   NewPatternDetector(config),
	}
}

// #endregion engine

// #region assess

// Assess scores a proposed operation. history may be nil. The returned
// assessment is fresh and immutable; logging and gating are the caller's
// responsibility.
func (e *Engine) Assess(name string, arguments map[string]string, opCtx OperationContext, history []OperationRecord) (Assessment, error) {
	if strings.TrimSpace(name) == "" {
		return Assessment{}, &ValidationError{Field: "operation_name", Detail: "empty"}
	}
	for k := range arguments {
		if strings.TrimSpace(k) == "" {
			return Assessment{}, &ValidationError{Field: "arguments", Detail: "empty argument key"}
		}
	}
	if opCtx.UserTrust < 0 || opCtx.UserTrust > 1 {
		return Assessment{}, &ValidationError{Field: "user_trust", Detail: "outside [0,1]"}
	}

	opScore, opExpl := e.operation.Analyze(name, arguments)
	ctxScore, ctxExpl := e.context.Evaluate(opCtx)
	patScore, patExpl := e.pattern.Detect(name, history)

	factors := []Factor{
		{Source: SourceOperation, Weight: e.config.OperationWeight, Contribution: opScore, Explanation: opExpl},
		{Source: SourceContext, Weight: e.config.ContextWeight, Contribution: ctxScore, Explanation: ctxExpl},
		{Source: SourcePattern, Weight: e.config.PatternWeight, Contribution: patScore, Explanation: patExpl},
	}

	score := clamp(e.config.OperationWeight*opScore +
		e.config.ContextWeight*ctxScore +
		e.config.PatternWeight*patScore)

	// An operation sub-score at or above the critical threshold floors the
	// overall score at the high threshold. A benign context lowers the score
	// within the high band but never below it.
	floored := false
	if opScore >= ThresholdCritical && score < ThresholdHigh {
		score = ThresholdHigh
		floored = true
	}
	level := LevelForScore(score)

	reasoning := fmt.Sprintf("%s scored %.3f (%s): operation[%s] context[%s] pattern[%s]",
		name, score, level, opExpl, ctxExpl, patExpl)
	if floored {
		reasoning += "; floored at high on destructive operation"
	}

	return Assessment{
		Score:          score,
		Level:          level,
		Factors:        factors,
		Recommendation: RecommendationForLevel(level),
		Reasoning:      reasoning,
	}, nil
}

// #endregion assess

// #region helpers

// clamp restricts v to [0, 1].
func clamp(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
