package switcher

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/hybrid-exec/internal/engine"
)

// #region keywords

var structuredRequestKeywords = []string{
	"switch to structured", "switch to workflow", "use structured mode",
	"use workflow mode", "run this as a workflow", "structured mode please",
}

var conversationalRequestKeywords = []string{
	"switch to conversational", "switch to chat", "use conversational mode",
	"use chat mode", "just chat", "conversational mode please",
	"stop the workflow",
}

// sequencingConnectors mark multi-step intent inside free text. Entries must
// not be substrings of each other or EstimateSteps double-counts.
var sequencingConnectors = []string{
	"then ", "after that", "next,", "finally", "followed by",
	"first,", "second,", "third,", "once that",
}

var multiAgentKeywords = []string{
	"multiple agents", "in parallel", "fan out", "coordinate",
	"delegate", "pipeline", "orchestrate", "sub-agent", "subagents",
}

var simpleQueryPrefixes = []string{
	"what is", "what's", "who is", "where is", "when did", "when was",
	"how many", "how much", "why", "can you tell me", "show me", "status",
}

// #endregion keywords

// #region detector

// Detector evaluates switch triggers in fixed priority order: explicit user
// request, failure recovery, resource ceiling, complexity change.
type Detector struct {
	config Config
}

// NewDetector creates a trigger detector.
func NewDetector(config Config) *Detector {
	return &Detector{config: config}
}

// ShouldSwitch returns the first matching trigger, or nil when the session
// should stay in its current mode. Detectors only read signals; the session
// worker owns them.
func (d *Detector) ShouldSwitch(mode engine.Mode, sig Signals, input string) *SwitchTrigger {
	lower := strings.ToLower(strings.TrimSpace(input))

	if t := d.userRequest(mode, lower); t != nil {
		return t
	}
	if t := d.failureRecovery(mode, sig); t != nil {
		return t
	}
	if t := d.resourceCeiling(mode, sig); t != nil {
		return t
	}
	return d.complexityChange(mode, sig, lower)
}

// #endregion detector

// #region user-request

func (d *Detector) userRequest(mode engine.Mode, lower string) *SwitchTrigger {
	for _, kw := range structuredRequestKeywords {
		if strings.Contains(lower, kw) && mode != engine.ModeStructured {
			return &SwitchTrigger{
				TriggerType: TriggerUserRequest,
				SourceMode:  mode,
				TargetMode:  engine.ModeStructured,
				Reason:      "explicit request for structured mode",
				Confidence:  1.0,
			}
		}
	}
	for _, kw := range conversationalRequestKeywords {
		if strings.Contains(lower, kw) && mode != engine.ModeConversational {
			return &SwitchTrigger{
				TriggerType: TriggerUserRequest,
				SourceMode:  mode,
				TargetMode:  engine.ModeConversational,
				Reason:      "explicit request for conversational mode",
				Confidence:  1.0,
			}
		}
	}
	return nil
}

// #endregion user-request

// #region failure-recovery

func (d *Detector) failureRecovery(mode engine.Mode, sig Signals) *SwitchTrigger {
	if mode != engine.ModeStructured || sig.ConsecutiveFailures < d.config.FailureThreshold {
		return nil
	}
	return &SwitchTrigger{
		TriggerType: TriggerFailure,
		SourceMode:  mode,
		TargetMode:  engine.ModeConversational,
		Reason:      fmt.Sprintf("%d consecutive failures, switching for diagnosis", sig.ConsecutiveFailures),
		Confidence:  0.9,
	}
}

// #endregion failure-recovery

// #region resource-ceiling

func (d *Detector) resourceCeiling(mode engine.Mode, sig Signals) *SwitchTrigger {
	// Conversational is the simpler mode, so a ceiling breach there has no
	// simpler mode to fall back to.
	if mode != engine.ModeStructured || sig.ActiveOperations <= d.config.ResourceCeiling {
		return nil
	}
	return &SwitchTrigger{
		TriggerType: TriggerResource,
		SourceMode:  mode,
		TargetMode:  engine.ModeConversational,
		Reason:      fmt.Sprintf("%d active operations over ceiling %d", sig.ActiveOperations, d.config.ResourceCeiling),
		Confidence:  0.8,
	}
}

// #endregion resource-ceiling

// #region complexity

func (d *Detector) complexityChange(mode engine.Mode, sig Signals, lower string) *SwitchTrigger {
	steps := EstimateSteps(lower)
	multiAgent := containsAny(lower, multiAgentKeywords)

	if mode == engine.ModeConversational && (steps >= d.config.ComplexityStepThreshold || multiAgent) {
		reason := fmt.Sprintf("input estimates %d steps", steps)
		if multiAgent {
			reason = "input requires multi-agent coordination"
		}
		return &SwitchTrigger{
			TriggerType: TriggerComplexity,
			SourceMode:  mode,
			TargetMode:  engine.ModeStructured,
			Reason:      reason,
			Confidence:  0.7,
		}
	}

	if mode == engine.ModeStructured && sig.PendingSteps == 0 && d.isSimpleQuery(lower) {
		return &SwitchTrigger{
			TriggerType: TriggerComplexity,
			SourceMode:  mode,
			TargetMode:  engine.ModeConversational,
			Reason:      "workflow drained and input is a simple query",
			Confidence:  0.6,
		}
	}
	return nil
}

// EstimateSteps guesses how many workflow steps an input implies. Numbered
// list items and sequencing connectors each count as one additional step.
func EstimateSteps(lower string) int {
	steps := 1
	for _, line := range strings.Split(lower, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) >= 2 && trimmed[0] >= '1' && trimmed[0] <= '9' &&
			(trimmed[1] == '.' || trimmed[1] == ')') {
			steps++
		}
	}
	for _, c := range sequencingConnectors {
		steps += strings.Count(lower, c)
	}
	return steps
}

func (d *Detector) isSimpleQuery(lower string) bool {
	if lower == "" {
		return false
	}
	words := strings.Fields(lower)
	if len(words) > d.config.SimpleQueryMaxWords {
		return false
	}
	if containsAny(lower, sequencingConnectors) {
		return false
	}
	if strings.HasSuffix(lower, "?") {
		return true
	}
	for _, p := range simpleQueryPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// #endregion complexity
