package risk

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func devContext() OperationContext {
	return OperationContext{Environment: "development", UserTrust: 0.8}
}

func TestLevelBandsPartitionUnitInterval(t *testing.T) {
	cases := []struct {
		score float32
		want  Level
	}{
		{0.0, LevelLow},
		{0.29999, LevelLow},
		{0.3, LevelMedium}, // boundary belongs to the higher band
		{0.59999, LevelMedium},
		{0.6, LevelHigh},
		{0.79999, LevelHigh},
		{0.8, LevelCritical},
		{1.0, LevelCritical},
	}
	for _, c := range cases {
		if got := LevelForScore(c.score); got != c.want {
			t.Errorf("LevelForScore(%v) = %s, want %s", c.score, got, c.want)
		}
	}
}

func TestLevelMonotonic(t *testing.T) {
	order := map[Level]int{LevelLow: 0, LevelMedium: 1, LevelHigh: 2, LevelCritical: 3}
	prev := LevelLow
	for s := float32(0); s <= 1.0; s += 0.001 {
		cur := LevelForScore(s)
		if order[cur] < order[prev] {
			t.Fatalf("level decreased from %s to %s at score %v", prev, cur, s)
		}
		prev = cur
	}
}

func TestRecommendationMapping(t *testing.T) {
	cases := map[Level]Recommendation{
		LevelLow:      RecommendAutoExecute,
		LevelMedium:   RecommendAuditLog,
		LevelHigh:     RecommendRequireApproval,
		LevelCritical: RecommendBlock,
	}
	for level, want := range cases {
		if got := RecommendationForLevel(level); got != want {
			t.Errorf("RecommendationForLevel(%s) = %s, want %s", level, got, want)
		}
	}
}

func TestAssessReadFileDevIsLow(t *testing.T) {
	e := NewEngine(DefaultConfig())

	a, err := e.Assess("read-file", map[string]string{"path": "/home/user/report.csv"}, devContext(), nil)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if a.Level != LevelLow {
		t.Fatalf("expected low, got %s (score %.3f): %s", a.Level, a.Score, a.Reasoning)
	}
	if a.Recommendation != RecommendAutoExecute {
		t.Fatalf("expected auto_execute, got %s", a.Recommendation)
	}
}

func TestAssessDeleteDirectoryProductionIsHighOrCritical(t *testing.T) {
	e := NewEngine(DefaultConfig())

	// The level guarantee holds regardless of user trust.
	for _, trust := range []float32{0.0, 0.5, 1.0} {
		a, err := e.Assess("delete-resource",
			map[string]string{"scope": "directory"},
			OperationContext{Environment: "production", UserTrust: trust}, nil)
		if err != nil {
			t.Fatalf("assess(trust=%.1f): %v", trust, err)
		}
		if a.Level != LevelHigh && a.Level != LevelCritical {
			t.Fatalf("trust %.1f: expected high or critical, got %s (score %.3f)", trust, a.Level, a.Score)
		}
		if a.Recommendation != RecommendRequireApproval && a.Recommendation != RecommendBlock {
			t.Fatalf("trust %.1f: expected require_approval or block, got %s", trust, a.Recommendation)
		}
	}
}

func TestAssessDestructiveOperationFlooredInBenignContext(t *testing.T) {
	e := NewEngine(DefaultConfig())

	a, err := e.Assess("delete-resource",
		map[string]string{"scope": "directory"},
		OperationContext{Environment: "development", UserTrust: 1.0}, nil)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if a.Level != LevelHigh && a.Level != LevelCritical {
		t.Fatalf("expected at least high despite benign context, got %s (score %.3f)", a.Level, a.Score)
	}
	if a.Score < ThresholdHigh {
		t.Fatalf("score %.4f below the high threshold", a.Score)
	}
}

func TestAssessDeterministic(t *testing.T) {
	e := NewEngine(DefaultConfig())
	args := map[string]string{"path": "/etc/passwd", "scope": "batch"}
	ctx := OperationContext{Environment: "staging", UserTrust: 0.4, RecentErrors: 2}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	history := []OperationRecord{
		{Name: "read-config", Score: 0.2, At: base},
		{Name: "update-config", Score: 0.4, At: base.Add(10 * time.Second)},
		{Name: "delete-config", Score: 0.6, At: base.Add(20 * time.Second)},
	}

	first, err := e.Assess("exec-command", args, ctx, history)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := e.Assess("exec-command", args, ctx, history)
		if err != nil {
			t.Fatalf("assess: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("assessment differs between identical calls:\n%+v\n%+v", first, again)
		}
	}
}

func TestAssessScoreAlwaysInRange(t *testing.T) {
	e := NewEngine(DefaultConfig())
	args := map[string]string{
		"path":  "/etc/shadow",
		"cmd":   "sudo rm -rf /",
		"scope": "system",
	}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	history := []OperationRecord{
		{Name: "read-file", Score: 0.2, At: base},
		{Name: "update-file", Score: 0.5, At: base.Add(time.Second)},
		{Name: "delete-file", Score: 0.7, At: base.Add(2 * time.Second)},
	}
	a, err := e.Assess("exec-shell", args, OperationContext{Environment: "production", RecentErrors: 99}, history)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if a.Score < 0 || a.Score > 1 {
		t.Fatalf("score %v outside [0,1]", a.Score)
	}
	if a.Level != LevelCritical {
		t.Fatalf("expected critical for stacked signals, got %s (%.3f)", a.Level, a.Score)
	}
}

func TestAssessUnknownOperationFailsSafe(t *testing.T) {
	e := NewEngine(DefaultConfig())

	a, err := e.Assess("frobnicate-widget", nil, devContext(), nil)
	if err != nil {
		t.Fatalf("unknown category must not error: %v", err)
	}
	if a.Recommendation == RecommendAutoExecute {
		t.Fatalf("unknown category must never auto_execute, got score %.3f", a.Score)
	}
}

func TestAssessRejectsMalformedInput(t *testing.T) {
	e := NewEngine(DefaultConfig())

	if _, err := e.Assess("", nil, devContext(), nil); err == nil {
		t.Fatal("expected validation error for empty operation name")
	}
	if _, err := e.Assess("read-file", map[string]string{" ": "x"}, devContext(), nil); err == nil {
		t.Fatal("expected validation error for empty argument key")
	}
	_, err := e.Assess("read-file", nil, OperationContext{Environment: "development", UserTrust: 1.5}, nil)
	if err == nil {
		t.Fatal("expected validation error for out-of-range trust")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
}

func TestAssessFactorsOrderedAndComplete(t *testing.T) {
	e := NewEngine(DefaultConfig())

	a, err := e.Assess("read-file", nil, devContext(), nil)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if len(a.Factors) != 3 {
		t.Fatalf("expected 3 factors, got %d", len(a.Factors))
	}
	wantOrder := []FactorSource{SourceOperation, SourceContext, SourcePattern}
	for i, f := range a.Factors {
		if f.Source != wantOrder[i] {
			t.Errorf("factor %d source = %s, want %s", i, f.Source, wantOrder[i])
		}
	}
}
