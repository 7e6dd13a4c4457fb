package switcher

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/danielpatrickdp/hybrid-exec/internal/checkpoint"
	"github.com/danielpatrickdp/hybrid-exec/internal/engine"
	"github.com/danielpatrickdp/hybrid-exec/internal/risk"
)

// #region helpers

type brokenEngine struct {
	mode            engine.Mode
	failNextRestore bool
	notReady        bool
	blob            []byte
}

func (b *brokenEngine) Mode() engine.Mode { return b.mode }

func (b *brokenEngine) SnapshotState(_ context.Context) ([]byte, error) {
	if b.blob != nil {
		return b.blob, nil
	}
	return []byte(`{}`), nil
}

func (b *brokenEngine) RestoreState(_ context.Context, blob []byte) error {
	if b.failNextRestore {
		b.failNextRestore = false
		return errors.New("restore refused")
	}
	b.blob = blob
	return nil
}

func (b *brokenEngine) IsReady() bool { return !b.notReady }

func (b *brokenEngine) Execute(_ context.Context, _ engine.Operation) error { return nil }

// slowStore delays Save so a second switch request can arrive mid-flight.
type slowStore struct {
	checkpoint.Store
	delay time.Duration
}

func (s *slowStore) Save(ctx context.Context, c checkpoint.HybridCheckpoint, ttl time.Duration) (string, error) {
	time.Sleep(s.delay)
	return s.Store.Save(ctx, c, ttl)
}

// failingStore rejects every save.
type failingStore struct {
	checkpoint.Store
}

func (s *failingStore) Save(context.Context, checkpoint.HybridCheckpoint, time.Duration) (string, error) {
	return "", errors.New("backend unavailable")
}

func newTestSwitcher(t *testing.T, initial engine.Mode) (*Switcher, *engine.Workflow, *engine.Conversational, checkpoint.Store) {
	t.Helper()
	wf := engine.NewWorkflow(nil)
	conv := engine.NewConversational()
	store := checkpoint.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	s := New("sess-1", initial, wf, conv, store, DefaultConfig())
	return s, wf, conv, store
}

func toConversational() SwitchTrigger {
	return SwitchTrigger{
		TriggerType: TriggerFailure,
		SourceMode:  engine.ModeStructured,
		TargetMode:  engine.ModeConversational,
		Reason:      "test",
		Confidence:  0.9,
	}
}

func toStructured() SwitchTrigger {
	return SwitchTrigger{
		TriggerType: TriggerComplexity,
		SourceMode:  engine.ModeConversational,
		TargetMode:  engine.ModeStructured,
		Reason:      "test",
		Confidence:  0.7,
	}
}

// #endregion helpers

// #region execute-tests

func TestExecuteSwitchSuccess(t *testing.T) {
	s, wf, conv, _ := newTestSwitcher(t, engine.ModeStructured)
	ctx := context.Background()

	for _, name := range []string{"fetch", "parse"} {
		if err := wf.Execute(ctx, engine.Operation{Name: name}); err != nil {
			t.Fatalf("execute: %v", err)
		}
	}

	res, err := s.ExecuteSwitch(ctx, toConversational())
	if err != nil {
		t.Fatalf("ExecuteSwitch: %v", err)
	}
	if !res.Success || res.NewMode != engine.ModeConversational {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.CheckpointID == "" || res.SwitchID == "" {
		t.Errorf("result must carry checkpoint and switch ids: %+v", res)
	}
	if s.Mode() != engine.ModeConversational {
		t.Errorf("active mode = %s, want conversational", s.Mode())
	}

	// Workflow history must have migrated into the conversational context.
	st := conv.State()
	if len(st.Messages) == 0 {
		t.Fatalf("migrated conversational state has no messages")
	}
	if st.Summary == "" {
		t.Errorf("migration should produce a context summary")
	}

	hist := s.History()
	if len(hist) != 1 || hist[0].Outcome != checkpoint.OutcomeSuccess {
		t.Fatalf("expected one success transition, got %+v", hist)
	}
	if hist[0].TriggerType != string(TriggerFailure) {
		t.Errorf("transition trigger = %s", hist[0].TriggerType)
	}
}

func TestExecuteSwitchCheckpointCarriesRiskProfile(t *testing.T) {
	s, _, _, store := newTestSwitcher(t, engine.ModeStructured)
	ctx := context.Background()

	profile := []risk.Assessment{
		{Score: 0.45, Level: risk.LevelMedium, Recommendation: risk.RecommendAuditLog},
		{Score: 0.12, Level: risk.LevelLow, Recommendation: risk.RecommendAutoExecute},
	}
	s.SetProfileSource(func() []risk.Assessment { return profile })

	res, err := s.ExecuteSwitch(ctx, toConversational())
	if err != nil || !res.Success {
		t.Fatalf("switch: res=%+v err=%v", res, err)
	}

	cp, err := store.Load(ctx, res.CheckpointID)
	if err != nil {
		t.Fatalf("load switch checkpoint: %v", err)
	}
	if len(cp.RiskProfile) != len(profile) {
		t.Fatalf("risk profile = %d entries, want %d", len(cp.RiskProfile), len(profile))
	}
	if cp.RiskProfile[0].Score != profile[0].Score {
		t.Errorf("risk profile not most-recent-first: %+v", cp.RiskProfile)
	}
}

func TestExecuteSwitchFailureThresholdScenario(t *testing.T) {
	boom := errors.New("step failed")
	wf := engine.NewWorkflow(func(engine.Operation) error { return boom })
	conv := engine.NewConversational()
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	cfg := DefaultConfig()
	cfg.FailureThreshold = 3
	s := New("sess-fail", engine.ModeStructured, wf, conv, store, cfg)
	det := NewDetector(cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := wf.Execute(ctx, engine.Operation{Name: "flaky-step"}); err == nil {
			t.Fatalf("expected step failure")
		}
	}
	sig := Signals{ConsecutiveFailures: wf.State().ConsecutiveFailures}
	trig := det.ShouldSwitch(s.Mode(), sig, "keep going")
	if trig == nil || trig.TriggerType != TriggerFailure {
		t.Fatalf("expected failure trigger after 3 consecutive failures, got %+v", trig)
	}

	res, err := s.ExecuteSwitch(ctx, *trig)
	if err != nil || !res.Success {
		t.Fatalf("switch after failure trigger: res=%+v err=%v", res, err)
	}
	if s.Mode() != engine.ModeConversational {
		t.Errorf("mode = %s, want conversational", s.Mode())
	}
	// Failure context must survive into the conversational summary.
	if st := conv.State(); st.Summary == "" {
		t.Errorf("summary should describe the paused workflow")
	}
}

func TestExecuteSwitchCheckpointFailureAborts(t *testing.T) {
	wf := engine.NewWorkflow(nil)
	conv := engine.NewConversational()
	store := &failingStore{Store: checkpoint.NewMemoryStore()}
	defer store.Close()
	s := New("sess-2", engine.ModeStructured, wf, conv, store, DefaultConfig())

	pre := wf.State()
	res, err := s.ExecuteSwitch(context.Background(), toConversational())
	if err == nil {
		t.Fatalf("expected checkpoint save error, got %+v", res)
	}
	if s.Mode() != engine.ModeStructured {
		t.Errorf("mode changed despite aborted switch: %s", s.Mode())
	}
	if !reflect.DeepEqual(wf.State(), pre) {
		t.Errorf("workflow state changed despite aborted switch")
	}
	if len(s.History()) != 0 {
		t.Errorf("no transition should be recorded for an aborted switch")
	}
}

func TestExecuteSwitchValidationFailureRollsBack(t *testing.T) {
	wf := engine.NewWorkflow(nil)
	ctx := context.Background()
	if err := wf.Execute(ctx, engine.Operation{Name: "fetch"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	target := &brokenEngine{mode: engine.ModeConversational, notReady: true}
	store := checkpoint.NewMemoryStore()
	defer store.Close()
	s := New("sess-3", engine.ModeStructured, wf, target, store, DefaultConfig())

	pre := wf.State()
	res, err := s.ExecuteSwitch(ctx, toConversational())
	if err != nil {
		t.Fatalf("validation failure must come back in the result, not an error: %v", err)
	}
	if res.Success {
		t.Fatalf("switch should have failed validation")
	}
	var verr *SwitchValidationError
	if !errors.As(res.Err, &verr) {
		t.Fatalf("result error = %v, want SwitchValidationError", res.Err)
	}
	if s.Mode() != engine.ModeStructured {
		t.Errorf("mode = %s after rollback, want structured", s.Mode())
	}
	if !reflect.DeepEqual(wf.State(), pre) {
		t.Errorf("source state differs from pre-switch snapshot after rollback")
	}
	hist := s.History()
	if len(hist) != 1 || hist[0].Outcome != checkpoint.OutcomeRolledBack {
		t.Fatalf("expected one rolled_back transition, got %+v", hist)
	}
}

func TestExecuteSwitchTargetRestoreFailureRollsBack(t *testing.T) {
	wf := engine.NewWorkflow(nil)
	target := &brokenEngine{mode: engine.ModeConversational, failNextRestore: true}
	store := checkpoint.NewMemoryStore()
	defer store.Close()
	s := New("sess-4", engine.ModeStructured, wf, target, store, DefaultConfig())

	res, err := s.ExecuteSwitch(context.Background(), toConversational())
	if err != nil {
		t.Fatalf("restore failure must come back in the result: %v", err)
	}
	if res.Success || s.Mode() != engine.ModeStructured {
		t.Fatalf("expected rolled back switch, res=%+v mode=%s", res, s.Mode())
	}
}

func TestExecuteSwitchTriggerModeMismatch(t *testing.T) {
	s, _, _, _ := newTestSwitcher(t, engine.ModeConversational)
	_, err := s.ExecuteSwitch(context.Background(), toConversational())
	if err == nil {
		t.Fatalf("trigger sourced from inactive mode must be rejected")
	}
}

// #endregion execute-tests

// #region concurrency

func TestExecuteSwitchConcurrentRejected(t *testing.T) {
	wf := engine.NewWorkflow(nil)
	conv := engine.NewConversational()
	store := &slowStore{Store: checkpoint.NewMemoryStore(), delay: 100 * time.Millisecond}
	defer store.Close()
	s := New("sess-5", engine.ModeStructured, wf, conv, store, DefaultConfig())

	var wg sync.WaitGroup
	results := make([]SwitchResult, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.ExecuteSwitch(context.Background(), toConversational())
		}(i)
	}
	wg.Wait()

	var successes, rejected int
	for i := 0; i < 2; i++ {
		if errs[i] == nil && results[i].Success {
			successes++
			continue
		}
		var cerr *ConcurrentSwitchError
		if errors.As(errs[i], &cerr) {
			rejected++
			if cerr.SessionID != "sess-5" {
				t.Errorf("concurrent error names session %q", cerr.SessionID)
			}
		}
	}
	if successes != 1 || rejected != 1 {
		t.Fatalf("want exactly one success and one immediate rejection, got %d/%d (errs=%v)", successes, rejected, errs)
	}
	if s.Mode() != engine.ModeConversational {
		t.Errorf("winning switch should have committed, mode=%s", s.Mode())
	}
}

// #endregion concurrency

// #region rollback-tests

func TestRollbackSwitchIdempotent(t *testing.T) {
	s, wf, conv, store := newTestSwitcher(t, engine.ModeStructured)
	ctx := context.Background()

	if err := wf.Execute(ctx, engine.Operation{Name: "fetch"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	res, err := s.ExecuteSwitch(ctx, toConversational())
	if err != nil || !res.Success {
		t.Fatalf("switch: res=%+v err=%v", res, err)
	}

	cp, err := store.Load(ctx, res.CheckpointID)
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}

	done, err := s.RollbackSwitch(ctx, cp)
	if err != nil || !done {
		t.Fatalf("first rollback: done=%v err=%v", done, err)
	}
	if s.Mode() != engine.ModeStructured {
		t.Errorf("mode = %s after rollback, want structured", s.Mode())
	}
	afterFirst := wf.State()
	convAfterFirst := conv.State()

	done, err = s.RollbackSwitch(ctx, cp)
	if err != nil {
		t.Fatalf("second rollback: %v", err)
	}
	if done {
		t.Errorf("second rollback against the same checkpoint must be a no-op")
	}
	if !reflect.DeepEqual(wf.State(), afterFirst) || !reflect.DeepEqual(conv.State(), convAfterFirst) {
		t.Errorf("second rollback changed engine state")
	}
}

// #endregion rollback-tests

// #region payload

func TestMigratedBlobDecodesAsTargetState(t *testing.T) {
	s, wf, conv, _ := newTestSwitcher(t, engine.ModeStructured)
	ctx := context.Background()
	if err := wf.Execute(ctx, engine.Operation{Name: "fetch"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res, err := s.ExecuteSwitch(ctx, toConversational()); err != nil || !res.Success {
		t.Fatalf("switch: res=%+v err=%v", res, err)
	}

	blob, err := conv.SnapshotState(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	var st engine.ConversationalState
	if err := json.Unmarshal(blob, &st); err != nil {
		t.Fatalf("migrated state is not valid conversational state: %v", err)
	}

	// And back the other way.
	back := toStructured()
	if res, err := s.ExecuteSwitch(ctx, back); err != nil || !res.Success {
		t.Fatalf("return switch: res=%+v err=%v", res, err)
	}
	if s.Mode() != engine.ModeStructured {
		t.Errorf("mode = %s, want structured", s.Mode())
	}
}

// #endregion payload
