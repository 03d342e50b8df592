package interviewer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/bytedance/sonic"
	"google.golang.org/genai"

	"github.com/ent0n29/mockinterview/internal/reliability"
)

const questionSystemPrompt = "You are a technical interviewer. Generate ONLY the interview question - no explanations, no prefixes, no context. Just return the question directly."

const evaluationSystemPrompt = `You are a technical interviewer grading a candidate's spoken answer.
Reply with a single JSON object and nothing else:
{"feedback": "<2-4 sentences of specific, constructive feedback>", "score": <integer 0-10>, "max_score": 10}`

// GeminiClient generates questions and grades answers with the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (g *GeminiClient) GenerateQuestion(ctx context.Context, req QuestionRequest) (string, error) {
	temp := float32(0.7)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(questionSystemPrompt, genai.RoleUser),
		Temperature:       &temp,
		MaxOutputTokens:   100,
		StopSequences:     []string{"\n\n", "Answer:", "Solution:"},
	}
	contents := []*genai.Content{genai.NewContentFromText(questionPrompt(req), genai.RoleUser)}

	res, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", classifyGeminiError(OpGenerateQuestion, err)
	}
	q := CleanQuestion(res.Text())
	if q == "" {
		return NoQuestionPlaceholder, nil
	}
	return q, nil
}

func (g *GeminiClient) EvaluateAnswer(ctx context.Context, req EvaluationRequest) (Evaluation, error) {
	temp := float32(0.3)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(evaluationSystemPrompt, genai.RoleUser),
		Temperature:       &temp,
		MaxOutputTokens:   512,
		ResponseMIMEType:  "application/json",
	}
	contents := []*genai.Content{genai.NewContentFromText(evaluationPrompt(req), genai.RoleUser)}

	res, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return Evaluation{}, classifyGeminiError(OpEvaluateAnswer, err)
	}
	return parseEvaluationJSON(res.Text())
}

func parseEvaluationJSON(text string) (Evaluation, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var out evaluationResponse
	if err := sonic.UnmarshalString(text, &out); err != nil {
		return Evaluation{}, remoteError(OpEvaluateAnswer, reliability.KindInvalidResponse, 0, fmt.Errorf("decode evaluation: %w", err))
	}
	if err := validateEvaluation(out); err != nil {
		return Evaluation{}, remoteError(OpEvaluateAnswer, reliability.KindInvalidResponse, 0, err)
	}
	return out.evaluation(), nil
}

const minFeedbackLen = 15

// validateEvaluation rejects model grades that are incomplete or off the 0..10 scale.
func validateEvaluation(out evaluationResponse) error {
	if out.Score == nil || out.MaxScore == nil {
		return errors.New("evaluation is missing score or max_score")
	}
	if score := *out.Score; score != math.Trunc(score) || score < 0 || score > DefaultMaxScore {
		return fmt.Errorf("evaluation score %v is not an integer in 0..%d", score, DefaultMaxScore)
	}
	if n := len([]rune(strings.TrimSpace(out.Feedback))); n < minFeedbackLen {
		return fmt.Errorf("evaluation feedback too short (%d chars)", n)
	}
	return nil
}

func classifyGeminiError(op Operation, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return remoteError(op, reliability.KindStatus, apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return remoteError(op, reliability.KindStatus, apiErrPtr.Code, err)
	}
	return remoteError(op, reliability.ClassifyTransportError(err), 0, err)
}

func questionPrompt(req QuestionRequest) string {
	target := req.Role
	if target == "" {
		target = "software engineer"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Create one short technical interview question for a %s at %s level.\n\n", target, req.Level)
	b.WriteString("ONLY return the question - no explanations, no prefixes, no examples.\n\n")
	b.WriteString("Requirements:\n- 1-2 sentences maximum\n- Direct question format\n")
	fmt.Fprintf(&b, "- %s difficulty level\n", req.Level)
	if req.Role != "" {
		fmt.Fprintf(&b, "- Related to %s role\n", req.Role)
	}
	if req.Topic != "" {
		fmt.Fprintf(&b, "- Focus on %s\n", req.Topic)
	}
	b.WriteString("\nGood examples:\n")
	b.WriteString("- \"What is cross-validation and why is it important?\"\n")
	b.WriteString("- \"How do you handle overfitting in machine learning?\"\n")
	b.WriteString("- \"Explain the difference between classification and regression.\"\n\n")
	b.WriteString("Now generate ONE similar question (question only, no other text):")
	return b.String()
}

func evaluationPrompt(req EvaluationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Level: %s\n", req.Level)
	if t := req.target(); t != "" {
		fmt.Fprintf(&b, "Focus: %s\n", t)
	}
	fmt.Fprintf(&b, "Question: %s\n", req.Question)
	fmt.Fprintf(&b, "Answer: %s\n", req.Answer)
	return b.String()
}
