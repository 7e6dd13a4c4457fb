package risk

import "testing"

func TestCategorizePrefixes(t *testing.T) {
	a := NewOperationAnalyzer(DefaultConfig())
	cases := map[string]Category{
		"read-file":       CategoryRead,
		"list-buckets":    CategoryRead,
		"create-resource": CategoryMutate,
		"update-config":   CategoryMutate,
		"delete-resource": CategoryDestroy,
		"drop-index":      CategoryDestroy,
		"grant-access":    CategoryAdmin,
		"sudo-install":    CategoryAdmin,
		"exec-command":    CategoryDynamic,
		"run-script":      CategoryDynamic,
		"frobnicate":      CategoryUnknown,
	}
	for name, want := range cases {
		if got := a.Categorize(name); got != want {
			t.Errorf("Categorize(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestCategorizeExplicitOverrideWins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OperationCategories = map[string]Category{"read-secrets": CategoryAdmin}
	a := NewOperationAnalyzer(cfg)

	if got := a.Categorize("read-secrets"); got != CategoryAdmin {
		t.Fatalf("override ignored, got %s", got)
	}
}

func TestAnalyzeDenylistRaisesScore(t *testing.T) {
	a := NewOperationAnalyzer(DefaultConfig())

	clean, _ := a.Analyze("read-file", map[string]string{"path": "/home/user/notes.txt"})
	dirty, _ := a.Analyze("read-file", map[string]string{"path": "/etc/shadow"})

	if dirty <= clean {
		t.Fatalf("sensitive path should raise score: clean=%.3f dirty=%.3f", clean, dirty)
	}
}

func TestAnalyzeDenylistBoostCapped(t *testing.T) {
	cfg := DefaultConfig()
	a := NewOperationAnalyzer(cfg)

	// Five distinct matches would exceed the cap uncapped.
	args := map[string]string{
		"a": "/etc/passwd",
		"b": "~/.ssh/id_rsa",
		"c": "sudo rm -rf /tmp",
	}
	boost, matched := a.scanArguments(args)
	if len(matched) < 4 {
		t.Fatalf("expected at least 4 distinct matches, got %v", matched)
	}
	if boost != cfg.DenylistCap {
		t.Fatalf("boost %.2f should be capped at %.2f", boost, cfg.DenylistCap)
	}
}

func TestScopeMultiplierOrdering(t *testing.T) {
	a := NewOperationAnalyzer(DefaultConfig())

	single := a.scopeMultiplier(map[string]string{})
	batch := a.scopeMultiplier(map[string]string{"scope": "directory"})
	system := a.scopeMultiplier(map[string]string{"scope": "system"})

	if !(single < batch && batch < system) {
		t.Fatalf("scope multipliers not ordered: %v %v %v", single, batch, system)
	}
}

func TestAnalyzeUnknownCategoryUsesConservativeBase(t *testing.T) {
	cfg := DefaultConfig()
	a := NewOperationAnalyzer(cfg)

	score, expl := a.Analyze("frobnicate", nil)
	if score < ThresholdMedium {
		t.Fatalf("unknown category base %.2f below medium threshold: %s", score, expl)
	}
}
