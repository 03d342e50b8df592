package observability

import (
	"math"
	"slices"
	"strings"
	"sync"
	"time"
)

// Stage names shared by the practice session and the latency endpoint.
const (
	StageGenerateQuestion = "generate_question"
	StageEvaluateAnswer   = "evaluate_answer"
	StageQuestionTeardown = "question_teardown"
)

// p95 targets in milliseconds. Stages without one report no target.
var stageTargets = map[string]float64{
	StageGenerateQuestion: 4000,
	StageEvaluateAnswer:   6000,
	StageQuestionTeardown: 50,
}

type StageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	Total       int     `json:"total"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	MaxMS       float64 `json:"max_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
	OverTarget  int     `json:"over_target,omitempty"`
}

type Indicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type StageSnapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	WindowSize  int          `json:"window_size"`
	Stages      []StageStats `json:"stages"`
	Indicators  []Indicator  `json:"indicators,omitempty"`
}

// stageWindow keeps the most recent samples per stage plus lifetime counters.
type stageWindow struct {
	mu         sync.Mutex
	size       int
	stages     map[string]*stageSamples
	indicators map[string]int
}

type stageSamples struct {
	recent     []float64
	total      int
	overTarget int
}

func newStageWindow(size int) *stageWindow {
	if size <= 0 {
		size = 256
	}
	return &stageWindow{
		size:       size,
		stages:     make(map[string]*stageSamples),
		indicators: make(map[string]int),
	}
}

func (w *stageWindow) Observe(stage string, ms float64) {
	if stage == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.stages[stage]
	if !ok {
		s = &stageSamples{recent: make([]float64, 0, w.size)}
		w.stages[stage] = s
	}
	if len(s.recent) == w.size {
		copy(s.recent, s.recent[1:])
		s.recent = s.recent[:w.size-1]
	}
	s.recent = append(s.recent, ms)
	s.total++
	if target, ok := stageTargets[stage]; ok && ms > target {
		s.overTarget++
	}
}

func (w *stageWindow) ObserveIndicator(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	w.mu.Lock()
	w.indicators[name]++
	w.mu.Unlock()
}

func (w *stageWindow) Snapshot() StageSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := StageSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.size,
		Stages:      make([]StageStats, 0, len(w.stages)),
	}
	for stage, s := range w.stages {
		sorted := slices.Clone(s.recent)
		slices.Sort(sorted)
		snap.Stages = append(snap.Stages, StageStats{
			Stage:       stage,
			Samples:     len(sorted),
			Total:       s.total,
			P50MS:       nearestRank(sorted, 0.50),
			P95MS:       nearestRank(sorted, 0.95),
			MaxMS:       nearestRank(sorted, 1),
			TargetP95MS: stageTargets[stage],
			OverTarget:  s.overTarget,
		})
	}
	slices.SortFunc(snap.Stages, func(a, b StageStats) int { return strings.Compare(a.Stage, b.Stage) })

	for name, count := range w.indicators {
		snap.Indicators = append(snap.Indicators, Indicator{Name: name, Count: count})
	}
	slices.SortFunc(snap.Indicators, func(a, b Indicator) int { return strings.Compare(a.Name, b.Name) })
	return snap
}

// nearestRank expects sorted input.
func nearestRank(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	rank = max(0, min(rank, len(sorted)-1))
	return sorted[rank]
}
