package interviewer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/ent0n29/mockinterview/internal/reliability"
)

// HTTPClient calls an interviewer service exposing /generate-question and /evaluate-answer.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type questionResponse struct {
	Question *string `json:"question"`
}

type evaluationResponse struct {
	Feedback string   `json:"feedback"`
	Score    *float64 `json:"score"`
	MaxScore *float64 `json:"max_score"`
}

func (c *HTTPClient) GenerateQuestion(ctx context.Context, req QuestionRequest) (string, error) {
	var out questionResponse
	if err := c.post(ctx, OpGenerateQuestion, "/generate-question", req, &out); err != nil {
		return "", err
	}
	if out.Question == nil || strings.TrimSpace(*out.Question) == "" {
		return NoQuestionPlaceholder, nil
	}
	return strings.TrimSpace(*out.Question), nil
}

func (c *HTTPClient) EvaluateAnswer(ctx context.Context, req EvaluationRequest) (Evaluation, error) {
	var out evaluationResponse
	if err := c.post(ctx, OpEvaluateAnswer, "/evaluate-answer", req, &out); err != nil {
		return Evaluation{}, err
	}
	return out.evaluation(), nil
}

func (r evaluationResponse) evaluation() Evaluation {
	ev := Evaluation{Feedback: strings.TrimSpace(r.Feedback), MaxScore: DefaultMaxScore}
	if r.Score != nil {
		ev.Score = *r.Score
	}
	if r.MaxScore != nil && *r.MaxScore > 0 {
		ev.MaxScore = *r.MaxScore
	}
	return ev
}

func (c *HTTPClient) post(ctx context.Context, op Operation, path string, in, out any) error {
	payload, err := sonic.Marshal(in)
	if err != nil {
		return remoteError(op, reliability.KindUnknown, 0, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return remoteError(op, reliability.KindUnknown, 0, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return remoteError(op, reliability.ClassifyTransportError(err), 0, fmt.Errorf("send request: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return remoteError(op, reliability.KindStatus, res.StatusCode, fmt.Errorf("interviewer http status %d: %s", res.StatusCode, strings.TrimSpace(string(body))))
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return remoteError(op, reliability.ClassifyTransportError(err), res.StatusCode, fmt.Errorf("read response: %w", err))
	}
	if err := sonic.Unmarshal(body, out); err != nil {
		return remoteError(op, reliability.KindInvalidResponse, res.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
