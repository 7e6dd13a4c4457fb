package replay

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/hybrid-exec/internal/engine"
	"github.com/danielpatrickdp/hybrid-exec/internal/risk"
	"github.com/danielpatrickdp/hybrid-exec/internal/switcher"
)

// #region types

// Result captures the decisions one replayed turn produced.
type Result struct {
	TurnID         string
	Assessment     risk.Assessment
	Level          risk.Level
	Recommendation risk.Recommendation
	SwitchTo       engine.Mode // "" when no trigger fired
	Mode           engine.Mode // mode after the turn
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalTurns   int
	AutoExecutes int
	Audits       int
	Approvals    int
	Blocks       int
	Switches     int
	FinalMode    engine.Mode
}

// ReplayConfig bundles the risk and trigger configs for a run.
type ReplayConfig struct {
	Risk     risk.Config
	Switcher switcher.Config
}

// DefaultReplayConfig returns the defaults for both pipeline stages.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Risk:     risk.DefaultConfig(),
		Switcher: switcher.DefaultConfig(),
	}
}

// #endregion types

// #region replay

// replayBase anchors the synthetic operation timestamps so frequency
// detection sees the same spacing on every run.
var replayBase = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Replay runs the recorded interactions through risk assessment and trigger
// detection entirely in memory. Mode changes are simulated, not executed;
// the run is deterministic for a given fixture and config.
func Replay(f *Fixture, config ReplayConfig) ([]Result, error) {
	riskEngine := risk.NewEngine(config.Risk)
	detector := switcher.NewDetector(config.Switcher)

	mode := f.InitialMode
	var window []risk.OperationRecord
	results := make([]Result, 0, len(f.Interactions))

	for i, inter := range f.Interactions {
		assessment, err := riskEngine.Assess(
			inter.Operation, inter.Arguments, inter.Context.ToOperationContext(), window)
		if err != nil {
			return nil, fmt.Errorf("turn %s: %w", inter.TurnID, err)
		}

		window = append(window, risk.OperationRecord{
			Name:  inter.Operation,
			Score: assessment.Score,
			At:    replayBase.Add(time.Duration(i) * time.Second),
		})

		res := Result{
			TurnID:         inter.TurnID,
			Assessment:     assessment,
			Level:          assessment.Level,
			Recommendation: assessment.Recommendation,
			Mode:           mode,
		}

		sig := switcher.Signals{
			ConsecutiveFailures: inter.Signals.ConsecutiveFailures,
			ActiveOperations:    inter.Signals.ActiveOperations,
			PendingSteps:        inter.Signals.PendingSteps,
		}
		if trig := detector.ShouldSwitch(mode, sig, inter.Input); trig != nil {
			mode = trig.TargetMode
			res.SwitchTo = trig.TargetMode
			res.Mode = mode
		}
		results = append(results, res)
	}
	return results, nil
}

// Verify compares results against the fixture's expectations and returns a
// description per mismatch.
func Verify(f *Fixture, results []Result) []string {
	byTurn := make(map[string]Result, len(results))
	for _, r := range results {
		byTurn[r.TurnID] = r
	}

	var mismatches []string
	for _, want := range f.ExpectedResults {
		got, ok := byTurn[want.TurnID]
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("turn %s: no result", want.TurnID))
			continue
		}
		if want.Level != "" && string(got.Level) != want.Level {
			mismatches = append(mismatches, fmt.Sprintf("turn %s: level %s, want %s", want.TurnID, got.Level, want.Level))
		}
		if want.Recommendation != "" && string(got.Recommendation) != want.Recommendation {
			mismatches = append(mismatches, fmt.Sprintf("turn %s: recommendation %s, want %s", want.TurnID, got.Recommendation, want.Recommendation))
		}
		if string(got.SwitchTo) != want.SwitchTo {
			mismatches = append(mismatches, fmt.Sprintf("turn %s: switch_to %q, want %q", want.TurnID, got.SwitchTo, want.SwitchTo))
		}
	}
	return mismatches
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result, initialMode engine.Mode) Summary {
	s := Summary{TotalTurns: len(results), FinalMode: initialMode}
	for _, r := range results {
		switch r.Recommendation {
		case risk.RecommendAutoExecute:
			s.AutoExecutes++
		case risk.RecommendAuditLog:
			s.Audits++
		case risk.RecommendRequireApproval:
			s.Approvals++
		case risk.RecommendBlock:
			s.Blocks++
		}
		if r.SwitchTo != "" {
			s.Switches++
		}
		s.FinalMode = r.Mode
	}
	return s
}

// #endregion replay
