package interviewer

import "strings"

var questionPrefixes = []string{
	"here is a",
	"here's a",
	"question:",
	"interview question:",
	"technical question:",
	"for this interview question",
	"consider this scenario:",
	"suppose you're tasked with",
	"imagine you are working",
	"short technical interview question for a",
	"technical interview question for a",
	"create one short technical interview question",
	"generate a technical interview question",
	"one short technical interview question",
}

var interrogatives = []string{"what", "how", "why", "when", "where", "which", "can you", "do you", "would you", "could you"}

// CleanQuestion strips model chatter from a generated question and keeps at most two sentences.
func CleanQuestion(raw string) string {
	q := strings.TrimSpace(raw)
	for _, prefix := range questionPrefixes {
		if strings.HasPrefix(strings.ToLower(q), prefix) {
			q = strings.TrimSpace(q[len(prefix):])
			q = strings.TrimSpace(strings.TrimPrefix(q, ":"))
		}
	}
	q = strings.TrimSpace(strings.TrimRight(q, ":"))

	// Labels like "Scenario: ..." keep only the text after the last colon.
	if i := strings.LastIndex(q, ":"); i >= 0 {
		q = strings.TrimSpace(q[i+1:])
	}

	if sentences := strings.Split(q, "."); len(sentences) > 2 {
		q = strings.TrimSpace(sentences[0]) + ". " + strings.TrimSpace(sentences[1]) + "."
	}

	if len(q) >= 2 && strings.HasPrefix(q, `"`) && strings.HasSuffix(q, `"`) {
		q = q[1 : len(q)-1]
	}

	lower := strings.ToLower(q)
	for _, w := range interrogatives {
		if strings.Contains(lower, w) {
			if !strings.HasSuffix(q, "?") {
				q = strings.TrimRight(q, ".") + "?"
			}
			break
		}
	}
	return q
}

// similarity is the share of distinct words two questions have in common,
// relative to the larger word set.
func similarity(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	denom := len(wa)
	if len(wb) > denom {
		denom = len(wb)
	}
	if denom == 0 {
		return 0
	}
	overlap := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(denom)
}

func wordSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = struct{}{}
	}
	return out
}
