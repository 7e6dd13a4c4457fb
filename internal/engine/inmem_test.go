package engine

import (
	"context"
	"errors"
	"testing"
)

func TestWorkflowSnapshotRestoreRoundTrip(t *testing.T) {
	w := NewWorkflow(nil)
	ctx := context.Background()

	for _, name := range []string{"step-a", "step-b"} {
		if err := w.Execute(ctx, Operation{Name: name}); err != nil {
			t.Fatalf("execute %s: %v", name, err)
		}
	}

	blob, err := w.SnapshotState(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	restored := NewWorkflow(nil)
	if err := restored.RestoreState(ctx, blob); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := restored.State(); got.Step != 2 || len(got.StepOutputs) != 2 {
		t.Fatalf("restored state mismatch: %+v", got)
	}
	if !restored.IsReady() {
		t.Fatal("engine should be ready after restore")
	}
}

func TestWorkflowFailureCounting(t *testing.T) {
	boom := errors.New("step failed")
	w := NewWorkflow(func(op Operation) error {
		if op.Arguments["fail"] == "true" {
			return boom
		}
		return nil
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := w.Execute(ctx, Operation{Name: "step", Arguments: map[string]string{"fail": "true"}}); !errors.Is(err, boom) {
			t.Fatalf("expected injected failure, got %v", err)
		}
	}
	if got := w.State().ConsecutiveFailures; got != 3 {
		t.Fatalf("consecutive failures = %d, want 3", got)
	}

	if err := w.Execute(ctx, Operation{Name: "step"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := w.State().ConsecutiveFailures; got != 0 {
		t.Fatalf("success should reset failures, got %d", got)
	}
}

func TestRestoreRejectsGarbage(t *testing.T) {
	c := NewConversational()
	if err := c.RestoreState(context.Background(), []byte("{not json")); err == nil {
		t.Fatal("expected error for malformed blob")
	}
	if c.IsReady() {
		t.Fatal("engine must not report ready after failed restore")
	}
}
