package risk

import (
	"fmt"
	"strings"
)

// #region pattern-detector

// PatternDetector inspects the bounded recent-operation window for frequency
// anomalies, behavioral deviation, and escalation runs. All checks are pure
// functions of the window contents; no clock reads, so assessments stay
// deterministic.
type PatternDetector struct {
	config   Config
	analyzer *OperationAnalyzer
}

// NewPatternDetector creates a detector bound to a config.
func NewPatternDetector(config Config) *PatternDetector {
	return &PatternDetector{config: config, analyzer: NewOperationAnalyzer(config)}
}

// Detect produces the pattern sub-score in [0, 1] with an explanation.
// An empty window yields zero: there is no baseline to deviate from.
func (d *PatternDetector) Detect(name string, history []OperationRecord) (float32, string) {
	if len(history) == 0 {
		return 0, "no history"
	}

	freq := d.frequencyAnomaly(history)
	dev := d.behavioralDeviation(name, history)
	esc := d.escalation(history)

	score := clamp(0.4*freq + 0.3*dev + 0.3*esc)

	var parts []string
	if freq > 0 {
		parts = append(parts, fmt.Sprintf("frequency=%.2f", freq))
	}
	if dev > 0 {
		parts = append(parts, "unseen operation type")
	}
	if esc > 0 {
		parts = append(parts, fmt.Sprintf("escalation run=%d", d.config.EscalationMinRun))
	}
	if len(parts) == 0 {
		return score, "no anomalies"
	}
	return score, strings.Join(parts, ", ")
}

// #endregion pattern-detector

// #region frequency

// frequencyAnomaly compares the window's own rate against the configured
// baseline. The span is measured between the window's first and last
// timestamps, not the wall clock.
func (d *PatternDetector) frequencyAnomaly(history []OperationRecord) float32 {
	if len(history) < 2 || d.config.FrequencyBaselinePerMin <= 0 {
		return 0
	}
	span := history[len(history)-1].At.Sub(history[0].At)
	if span <= 0 {
		// Simultaneous timestamps across multiple records is itself anomalous.
		return 1
	}
	perMin := float32(len(history)) / float32(span.Minutes())
	if perMin <= d.config.FrequencyBaselinePerMin {
		return 0
	}
	return clamp(perMin/d.config.FrequencyBaselinePerMin - 1)
}

// #endregion frequency

// #region deviation

// behavioralDeviation fires when the operation's category has not been seen
// in this session's window.
func (d *PatternDetector) behavioralDeviation(name string, history []OperationRecord) float32 {
	cat := d.analyzer.Categorize(name)
	for _, rec := range history {
		if d.analyzer.Categorize(rec.Name) == cat {
			return 0
		}
	}
	return 1
}

// #endregion deviation

// #region escalation

// escalation fires when the most recent scores form a strictly increasing
// run of at least EscalationMinRun.
func (d *PatternDetector) escalation(history []OperationRecord) float32 {
	run := d.config.EscalationMinRun
	if run < 2 || len(history) < run {
		return 0
	}
	tail := history[len(history)-run:]
	for i := 1; i < len(tail); i++ {
		if tail[i].Score <= tail[i-1].Score {
			return 0
		}
	}
	return 1
}

// #endregion escalation
