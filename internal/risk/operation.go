package risk

import (
	"fmt"
	"sort"
	"strings"
)

// #region prefix-heuristics

var readPrefixes = []string{
	"read", "get", "list", "query", "describe", "fetch", "stat", "head",
	"search", "show", "view",
}

var mutatePrefixes = []string{
	"create", "write", "update", "set", "put", "append", "patch", "rename",
	"move", "copy", "upload", "insert", "tag",
}

var destroyPrefixes = []string{
	"delete", "remove", "destroy", "drop", "purge", "terminate", "kill",
	"truncate", "wipe", "revert",
}

var adminPrefixes = []string{
	"grant", "revoke", "chmod", "chown", "sudo", "admin", "rotate",
	"escalate", "configure", "deploy", "restart", "shutdown",
}

var dynamicPrefixes = []string{
	"exec", "run", "eval", "shell", "script", "invoke", "spawn",
}

// #endregion prefix-heuristics

// #region analyzer

// OperationAnalyzer scores the operation itself: category base risk,
// sensitive-argument denylist matches, and scope multiplier.
type OperationAnalyzer struct {
	config Config
}

// NewOperationAnalyzer creates an analyzer bound to a config.
func NewOperationAnalyzer(config Config) *OperationAnalyzer {
	return &OperationAnalyzer{config: config}
}

// Categorize resolves an operation name to a category via the configured
// overrides first, then prefix heuristics.
func (a *OperationAnalyzer) Categorize(name string) Category {
	lower := strings.ToLower(strings.TrimSpace(name))
	if cat, ok := a.config.OperationCategories[lower]; ok {
		return cat
	}

	for _, p := range dynamicPrefixes {
		if strings.HasPrefix(lower, p) {
			return CategoryDynamic
		}
	}
	for _, p := range adminPrefixes {
		if strings.HasPrefix(lower, p) {
			return CategoryAdmin
		}
	}
	for _, p := range destroyPrefixes {
		if strings.HasPrefix(lower, p) {
			return CategoryDestroy
		}
	}
	for _, p := range mutatePrefixes {
		if strings.HasPrefix(lower, p) {
			return CategoryMutate
		}
	}
	for _, p := range readPrefixes {
		if strings.HasPrefix(lower, p) {
			return CategoryRead
		}
	}
	return CategoryUnknown
}

// Analyze produces the operation sub-score in [0, 1] with an explanation.
// Unknown categories fall back to the configured conservative base, never
// a low default.
func (a *OperationAnalyzer) Analyze(name string, arguments map[string]string) (float32, string) {
	cat := a.Categorize(name)

	base, ok := a.config.CategoryBase[cat]
	if !ok || cat == CategoryUnknown {
		cat = CategoryUnknown
		base = a.config.UnknownCategoryBase
	}

	boost, matched := a.scanArguments(arguments)
	mult := a.scopeMultiplier(arguments)

	score := clamp(base*mult + boost)

	expl := fmt.Sprintf("category=%s base=%.2f scope_mult=%.2f", cat, base, mult)
	if len(matched) > 0 {
		expl += fmt.Sprintf(" sensitive=%v (+%.2f)", matched, boost)
	}
	return score, expl
}

// #endregion analyzer

// #region denylist

// scanArguments checks every argument value against the sensitive-pattern
// denylist. Each distinct pattern match adds DenylistBoost, capped.
func (a *OperationAnalyzer) scanArguments(arguments map[string]string) (float32, []string) {
	if len(arguments) == 0 {
		return 0, nil
	}

	// Deterministic iteration: sorted keys.
	keys := make([]string, 0, len(arguments))
	for k := range arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := make(map[string]bool)
	var matched []string
	for _, k := range keys {
		val := strings.ToLower(arguments[k])
		for _, pat := range a.config.SensitivePatterns {
			if seen[pat] {
				continue
			}
			if strings.Contains(val, pat) {
				seen[pat] = true
				matched = append(matched, pat)
			}
		}
	}

	boost := float32(len(matched)) * a.config.DenylistBoost
	if boost > a.config.DenylistCap {
		boost = a.config.DenylistCap
	}
	return boost, matched
}

// #endregion denylist

// #region scope

// scopeMultiplier widens the score for batch and system-wide operations.
func (a *OperationAnalyzer) scopeMultiplier(arguments map[string]string) float32 {
	switch strings.ToLower(arguments["scope"]) {
	case "batch", "directory", "bulk":
		return a.config.BatchScopeMultiplier
	case "system", "global", "all":
		return a.config.SystemScopeMultiplier
	default:
		return 1.0
	}
}

// #endregion scope
