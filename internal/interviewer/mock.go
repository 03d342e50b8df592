package interviewer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/ent0n29/mockinterview/internal/reliability"
)

const (
	recentQuestionWindow = 5
	similarityThreshold  = 0.6
)

var questionBank = map[string]map[string][]string{
	"data structures": {
		"beginner": {
			"What is the difference between an array and a linked list?",
			"How does a stack differ from a queue?",
		},
		"intermediate": {
			"How would you detect a cycle in a linked list?",
			"When would you choose a hash map over a balanced binary search tree?",
		},
		"advanced": {
			"How would you design an LRU cache with constant time operations?",
			"Explain how a skip list achieves logarithmic search time.",
		},
	},
	"algorithms": {
		"beginner": {
			"What is the time complexity of binary search and why?",
			"How does bubble sort work?",
		},
		"intermediate": {
			"How does quicksort choose a pivot and how does that affect its worst case?",
			"When is dynamic programming a better fit than a greedy approach?",
		},
		"advanced": {
			"How would you find the shortest path in a graph with negative edge weights?",
			"Explain how you would solve the longest increasing subsequence in O(n log n).",
		},
	},
	"system design": {
		"beginner": {
			"What is the difference between horizontal and vertical scaling?",
		},
		"intermediate": {
			"How would you design a URL shortener?",
			"Where would you put a cache in a read-heavy web application?",
		},
		"advanced": {
			"How would you design a globally distributed rate limiter?",
			"How would you keep a news feed consistent across data centers?",
		},
	},
	"backend developer": {
		"beginner": {
			"What is the difference between GET and POST requests?",
		},
		"intermediate": {
			"How do you make an API endpoint idempotent?",
			"How would you handle database migrations with zero downtime?",
		},
		"advanced": {
			"How would you debug a latency spike that only appears under production load?",
		},
	},
	"frontend developer": {
		"beginner": {
			"What is the box model in CSS?",
		},
		"intermediate": {
			"How does the browser event loop affect rendering performance?",
		},
		"advanced": {
			"How would you reduce the time to interactive of a large single page application?",
		},
	},
}

var genericQuestions = map[string][]string{
	"beginner": {
		"What is a variable and how is it different from a constant?",
		"What does version control give a team?",
		"What is the purpose of a unit test?",
	},
	"intermediate": {
		"How do you decide between a relational and a document database?",
		"How would you explain the tradeoffs of caching to a teammate?",
		"What makes code hard to test and how do you fix it?",
	},
	"advanced": {
		"How would you design a system that survives the loss of a whole region?",
		"How do you reason about consistency in a distributed system?",
		"How would you roll out a risky change to millions of users?",
	},
}

var feedbackTemplates = []string{
	"Score: %d/10. Good technical understanding demonstrated.",
	"Score: %d/10. Consider adding more specific examples in your response.",
	"Score: %d/10. Excellent explanation with clear structure.",
	"Score: %d/10. Try to elaborate more on practical applications.",
	"Score: %d/10. Strong answer showing depth of knowledge.",
}

// MockClient serves questions from a local bank and scores answers by length.
type MockClient struct {
	mu     sync.Mutex
	rng    *rand.Rand
	recent []string
}

func NewMockClient() *MockClient {
	return NewMockClientWithSeed(rand.Uint64(), rand.Uint64())
}

func NewMockClientWithSeed(seed1, seed2 uint64) *MockClient {
	return &MockClient{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

func (m *MockClient) GenerateQuestion(ctx context.Context, req QuestionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", remoteError(OpGenerateQuestion, reliability.ClassifyTransportError(err), 0, err)
	}
	candidates := candidatesFor(req)

	m.mu.Lock()
	defer m.mu.Unlock()

	order := m.rng.Perm(len(candidates))
	chosen := candidates[order[0]]
	for _, i := range order {
		if !m.tooSimilar(candidates[i]) {
			chosen = candidates[i]
			break
		}
	}
	m.remember(chosen)
	return chosen, nil
}

func (m *MockClient) EvaluateAnswer(ctx context.Context, req EvaluationRequest) (Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return Evaluation{}, remoteError(OpEvaluateAnswer, reliability.ClassifyTransportError(err), 0, err)
	}

	m.mu.Lock()
	bonus := m.rng.IntN(3)
	tmpl := feedbackTemplates[m.rng.IntN(len(feedbackTemplates))]
	m.mu.Unlock()

	score := mockScore(req.Answer, bonus)
	return Evaluation{
		Feedback: fmt.Sprintf(tmpl, score),
		Score:    float64(score),
		MaxScore: DefaultMaxScore,
	}, nil
}

// mockScore is len/50 + bonus + 5 clamped to [1, 10]; bonus is in [0, 2].
func mockScore(answer string, bonus int) int {
	score := len(strings.TrimSpace(answer))/50 + bonus + 5
	return min(10, max(1, score))
}

func candidatesFor(req QuestionRequest) []string {
	level := strings.ToLower(strings.TrimSpace(req.Level))
	target := strings.ToLower(strings.TrimSpace(req.Role))
	if target == "" {
		target = strings.ToLower(strings.TrimSpace(req.Topic))
	}
	if byLevel, ok := questionBank[target]; ok {
		if qs := byLevel[level]; len(qs) > 0 {
			return qs
		}
	}
	if qs := genericQuestions[level]; len(qs) > 0 {
		return qs
	}
	return genericQuestions["intermediate"]
}

func (m *MockClient) tooSimilar(q string) bool {
	for _, r := range m.recent {
		if similarity(q, r) > similarityThreshold {
			return true
		}
	}
	return false
}

func (m *MockClient) remember(q string) {
	m.recent = append(m.recent, q)
	if len(m.recent) > recentQuestionWindow {
		m.recent = m.recent[len(m.recent)-recentQuestionWindow:]
	}
}
