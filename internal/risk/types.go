package risk

import "time"

// #region factor-source

// FactorSource identifies which sub-scorer produced a risk factor.
type FactorSource string

const (
	SourceOperation FactorSource = "operation"
	SourceContext   FactorSource = "context"
	SourcePattern   FactorSource = "pattern"
)

// #endregion factor-source

// #region risk-level

// Level is the discretized risk category derived from a continuous score.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Fixed level thresholds. A score exactly on a boundary belongs to the
// higher band.
const (
	ThresholdMedium   float32 = 0.3
	ThresholdHigh     float32 = 0.6
	ThresholdCritical float32 = 0.8
)

// LevelForScore maps a clamped score to its level band.
func LevelForScore(score float32) Level {
	switch {
	case score >= ThresholdCritical:
		return LevelCritical
	case score >= ThresholdHigh:
		return LevelHigh
	case score >= ThresholdMedium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// #endregion risk-level

// #region recommendation

// Recommendation tells the approval gate how to treat the operation.
type Recommendation string

const (
	RecommendAutoExecute     Recommendation = "auto_execute"
	RecommendAuditLog        Recommendation = "audit_log"
	RecommendRequireApproval Recommendation = "require_approval"
	RecommendBlock           Recommendation = "block"
)

// RecommendationForLevel is the fixed level → recommendation mapping.
func RecommendationForLevel(level Level) Recommendation {
	switch level {
	case LevelLow:
		return RecommendAutoExecute
	case LevelMedium:
		return RecommendAuditLog
	case LevelHigh:
		return RecommendRequireApproval
	default:
		return RecommendBlock
	}
}

// #endregion recommendation

// #region factor

// Factor is one weighted contribution to an assessment. Informational only;
// never mutated after creation.
type Factor struct {
	Source       FactorSource `json:"source"`
	Weight       float32      `json:"weight"`
	Contribution float32      `json:"contribution"`
	Explanation  string       `json:"explanation"`
}

// #endregion factor

// #region assessment

// Assessment is the immutable result of scoring one proposed operation.
// Created fresh per Assess call.
type Assessment struct {
	Score          float32        `json:"score"`
	Level          Level          `json:"level"`
	Factors        []Factor       `json:"factors"`
	Recommendation Recommendation `json:"recommendation"`
	Reasoning      string         `json:"reasoning"`
}

// #endregion assessment

// #region operation-context

// OperationContext carries the session environment signals consumed by the
// context evaluator.
type OperationContext struct {
	Environment  string  `json:"environment"` // "production" | "staging" | "development"
	UserTrust    float32 `json:"user_trust"`  // 0 (untrusted) .. 1 (fully trusted)
	RecentErrors int     `json:"recent_errors"`
}

// #endregion operation-context

// #region operation-record

// OperationRecord is one entry in a session's bounded recent-operation
// window, consumed by the pattern detector.
type OperationRecord struct {
	Name  string    `json:"name"`
	Score float32   `json:"score"`
	At    time.Time `json:"at"`
}

// #endregion operation-record

// #region category

// Category buckets operations by their blast radius.
type Category string

const (
	CategoryRead    Category = "read"
	CategoryMutate  Category = "mutate"
	CategoryDestroy Category = "destroy"
	CategoryAdmin   Category = "admin"
	CategoryDynamic Category = "dynamic" // arbitrary/interpreted payloads
	CategoryUnknown Category = "unknown"
)

// #endregion category

// #region config

// Config holds all scoring knobs. It is passed at engine construction and
// shared read-only across sessions.
type Config struct {
	// Combine weights for the three sub-scores. Should sum to 1.
	OperationWeight float32 `yaml:"operation_weight"`
	ContextWeight   float32 `yaml:"context_weight"`
	PatternWeight   float32 `yaml:"pattern_weight"`

	// Base risk per category.
	CategoryBase map[Category]float32 `yaml:"category_base"`
	// Fail-safe base for unrecognized categories. Must be >= medium.
	UnknownCategoryBase float32 `yaml:"unknown_category_base"`

	// Explicit operation name → category overrides, checked before the
	// prefix heuristics.
	OperationCategories map[string]Category `yaml:"operation_categories"`

	// Substring patterns in arguments that raise the operation contribution.
	SensitivePatterns []string `yaml:"sensitive_patterns"`
	// Added per denylist match, capped at DenylistCap total.
	DenylistBoost float32 `yaml:"denylist_boost"`
	DenylistCap   float32 `yaml:"denylist_cap"`

	// Scope multipliers: single < batch/directory < system.
	BatchScopeMultiplier  float32 `yaml:"batch_scope_multiplier"`
	SystemScopeMultiplier float32 `yaml:"system_scope_multiplier"`

	// Context evaluator internal weights.
	EnvironmentRisk map[string]float32 `yaml:"environment_risk"`
	AnomalyErrorCap int                `yaml:"anomaly_error_cap"` // errors at/above this count as full anomaly

	// Pattern detector knobs.
	FrequencyBaselinePerMin float32 `yaml:"frequency_baseline_per_min"`
	EscalationMinRun        int     `yaml:"escalation_min_run"`
}

// DefaultConfig returns conservative, risk-averse defaults.
func DefaultConfig() Config {
	return Config{
		OperationWeight:     0.5,
		ContextWeight:       0.3,
		PatternWeight:       0.2,
		UnknownCategoryBase: 0.6,
		CategoryBase: map[Category]float32{
			CategoryRead:    0.1,
			CategoryMutate:  0.4,
			CategoryDestroy: 0.7,
			CategoryAdmin:   0.75,
			CategoryDynamic: 0.5,
		},
		SensitivePatterns: []string{
			"/etc/", "/root/", "/boot/", "/sys/", "/proc/",
			".ssh", "id_rsa", "id_ed25519", ".aws/credentials", ".env",
			"passwd", "shadow", "private_key", "secret",
			"sudo ", "chmod 777", "chown root", "setuid",
			"rm -rf", "rm -fr", "mkfs", "dd if=", ":(){",
			"drop table", "truncate table", "delete from",
		},
		DenylistBoost:           0.15,
		DenylistCap:             0.45,
		BatchScopeMultiplier:    1.25,
		SystemScopeMultiplier:   1.5,
		EnvironmentRisk:         map[string]float32{"production": 0.9, "staging": 0.5, "development": 0.1},
		AnomalyErrorCap:         5,
		FrequencyBaselinePerMin: 30,
		EscalationMinRun:        3,
	}
}

// #endregion config
