package observability

import "testing"

func TestStageWindowSnapshot(t *testing.T) {
	w := newStageWindow(8)
	for _, ms := range []float64{500, 700, 6500} {
		w.Observe(StageEvaluateAnswer, ms)
	}
	w.Observe(StageGenerateQuestion, 1200)
	w.ObserveIndicator("evaluation_failed")
	w.ObserveIndicator("evaluation_failed")

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Stages) != 2 || snap.Stages[0].Stage != StageEvaluateAnswer || snap.Stages[1].Stage != StageGenerateQuestion {
		t.Fatalf("Stages = %+v, want evaluate_answer then generate_question", snap.Stages)
	}
	s := snap.Stages[0]
	if s.Samples != 3 || s.Total != 3 {
		t.Fatalf("Samples/Total = %d/%d, want 3/3", s.Samples, s.Total)
	}
	if s.P50MS != 700 || s.P95MS != 6500 || s.MaxMS != 6500 {
		t.Fatalf("p50/p95/max = %.0f/%.0f/%.0f, want 700/6500/6500", s.P50MS, s.P95MS, s.MaxMS)
	}
	if s.TargetP95MS != 6000 || s.OverTarget != 1 {
		t.Fatalf("target/over = %.0f/%d, want 6000/1", s.TargetP95MS, s.OverTarget)
	}
	if len(snap.Indicators) != 1 || snap.Indicators[0].Count != 2 {
		t.Fatalf("Indicators = %+v, want one indicator with count 2", snap.Indicators)
	}
}

func TestStageWindowKeepsMostRecent(t *testing.T) {
	w := newStageWindow(2)
	for _, ms := range []float64{900, 100, 200} {
		w.Observe(StageGenerateQuestion, ms)
	}

	s := w.Snapshot().Stages[0]
	if s.Samples != 2 || s.Total != 3 {
		t.Fatalf("Samples/Total = %d/%d, want 2/3", s.Samples, s.Total)
	}
	if s.MaxMS != 200 {
		t.Fatalf("MaxMS = %.0f, want 200 after the oldest sample rotated out", s.MaxMS)
	}
}
