package risk

import "fmt"

// #region context-evaluator

// ContextEvaluator scores the environment the operation runs in: deployment
// environment class, inverse user trust, and session anomaly signals.
type ContextEvaluator struct {
	config Config
}

// NewContextEvaluator creates an evaluator bound to a config.
func NewContextEvaluator(config Config) *ContextEvaluator {
	return &ContextEvaluator{config: config}
}

// Evaluate produces the context sub-score in [0, 1] with an explanation.
// An unrecognized environment is treated as production; the most
// restrictive applicable class wins on uncertainty.
func (e *ContextEvaluator) Evaluate(opCtx OperationContext) (float32, string) {
	env := opCtx.Environment
	envRisk, ok := e.config.EnvironmentRisk[env]
	if !ok {
		envRisk = e.config.EnvironmentRisk["production"]
		env = env + "(unrecognized, treated as production)"
	}

	distrust := clamp(1.0 - opCtx.UserTrust)

	var anomaly float32
	if e.config.AnomalyErrorCap > 0 {
		anomaly = clamp(float32(opCtx.RecentErrors) / float32(e.config.AnomalyErrorCap))
	}

	score := clamp(0.5*envRisk + 0.3*distrust + 0.2*anomaly)
	expl := fmt.Sprintf("env=%s (%.2f) distrust=%.2f anomaly=%.2f",
		env, envRisk, distrust, anomaly)
	return score, expl
}

// #endregion context-evaluator
