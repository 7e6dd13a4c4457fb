package risk

import (
	"testing"
	"time"
)

func window(names []string, scores []float32, gap time.Duration) []OperationRecord {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	recs := make([]OperationRecord, len(names))
	for i := range names {
		recs[i] = OperationRecord{Name: names[i], Score: scores[i], At: base.Add(time.Duration(i) * gap)}
	}
	return recs
}

func TestDetectEmptyWindowIsZero(t *testing.T) {
	d := NewPatternDetector(DefaultConfig())

	score, expl := d.Detect("read-file", nil)
	if score != 0 {
		t.Fatalf("empty window should score 0, got %.3f (%s)", score, expl)
	}
}

func TestFrequencyAnomalyAboveBaseline(t *testing.T) {
	d := NewPatternDetector(DefaultConfig())

	// 10 ops in ~1s is far above 30/min.
	names := make([]string, 10)
	scores := make([]float32, 10)
	for i := range names {
		names[i] = "read-file"
		scores[i] = 0.1
	}
	burst := window(names, scores, 100*time.Millisecond)
	if got := d.frequencyAnomaly(burst); got == 0 {
		t.Fatal("expected frequency anomaly for burst")
	}

	calm := window(names, scores, 10*time.Second)
	if got := d.frequencyAnomaly(calm); got != 0 {
		t.Fatalf("expected no anomaly at calm rate, got %.3f", got)
	}
}

func TestBehavioralDeviationUnseenCategory(t *testing.T) {
	d := NewPatternDetector(DefaultConfig())
	hist := window(
		[]string{"read-file", "list-files", "get-status"},
		[]float32{0.1, 0.1, 0.1},
		10*time.Second,
	)

	if got := d.behavioralDeviation("delete-resource", hist); got != 1 {
		t.Fatalf("destroy unseen in read-only window, want 1, got %.1f", got)
	}
	if got := d.behavioralDeviation("read-config", hist); got != 0 {
		t.Fatalf("read category already seen, want 0, got %.1f", got)
	}
}

func TestEscalationStrictlyIncreasingRun(t *testing.T) {
	d := NewPatternDetector(DefaultConfig())

	rising := window(
		[]string{"read-file", "update-file", "delete-file"},
		[]float32{0.2, 0.5, 0.7},
		time.Minute,
	)
	if got := d.escalation(rising); got != 1 {
		t.Fatalf("expected escalation for rising run, got %.1f", got)
	}

	flat := window(
		[]string{"read-file", "update-file", "delete-file"},
		[]float32{0.2, 0.5, 0.5},
		time.Minute,
	)
	if got := d.escalation(flat); got != 0 {
		t.Fatalf("plateau is not an escalation, got %.1f", got)
	}

	short := window([]string{"read-file", "update-file"}, []float32{0.2, 0.5}, time.Minute)
	if got := d.escalation(short); got != 0 {
		t.Fatalf("run shorter than minimum should not fire, got %.1f", got)
	}
}
