package interviewer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ent0n29/mockinterview/internal/reliability"
)

const (
	// NoQuestionPlaceholder is returned when the remote answer carries no question text.
	NoQuestionPlaceholder = "No question received."
	DefaultMaxScore       = 10
)

// ErrRemote matches every *RemoteError.
var ErrRemote = errors.New("remote interviewer call failed")

type Operation string

const (
	OpGenerateQuestion Operation = "generate_question"
	OpEvaluateAnswer   Operation = "evaluate_answer"
)

// QuestionRequest carries the level plus either role or topic.
type QuestionRequest struct {
	Level string `json:"level"`
	Role  string `json:"role,omitempty"`
	Topic string `json:"topic,omitempty"`
}

type EvaluationRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Level    string `json:"level"`
	Role     string `json:"role,omitempty"`
	Topic    string `json:"topic,omitempty"`
}

func (r EvaluationRequest) target() string {
	if r.Role != "" {
		return r.Role
	}
	return r.Topic
}

type Evaluation struct {
	Feedback string  `json:"feedback"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`
}

// Client is the remote question and evaluation collaborator. Implementations make exactly
// one attempt per call and never retry.
type Client interface {
	GenerateQuestion(ctx context.Context, req QuestionRequest) (string, error)
	EvaluateAnswer(ctx context.Context, req EvaluationRequest) (Evaluation, error)
}

// RemoteError describes a failed remote call.
type RemoteError struct {
	Op     Operation
	Kind   reliability.Kind
	Status int
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

func remoteError(op Operation, kind reliability.Kind, status int, err error) *RemoteError {
	return &RemoteError{Op: op, Kind: kind, Status: status, Err: err}
}
