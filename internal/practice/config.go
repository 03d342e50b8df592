package practice

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ent0n29/mockinterview/internal/interviewer"
)

const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"

	ModeRole  = "role"
	ModeTopic = "topic"
)

var (
	ErrIncompleteConfig = errors.New("session config is incomplete")
	ErrInvalidConfig    = errors.New("session config is invalid")
)

// SessionConfig selects what the interviewer asks about.
type SessionConfig struct {
	Level  string `json:"level"`
	Mode   string `json:"mode"`
	Target string `json:"target"`
}

func (c SessionConfig) Normalize() SessionConfig {
	return SessionConfig{
		Level:  strings.ToLower(strings.TrimSpace(c.Level)),
		Mode:   strings.ToLower(strings.TrimSpace(c.Mode)),
		Target: strings.TrimSpace(c.Target),
	}
}

// Validate expects a normalized config.
func (c SessionConfig) Validate() error {
	if c.Level == "" || c.Mode == "" || c.Target == "" {
		return ErrIncompleteConfig
	}
	switch c.Level {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
	default:
		return fmt.Errorf("%w: unknown level %q", ErrInvalidConfig, c.Level)
	}
	switch c.Mode {
	case ModeRole, ModeTopic:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	return nil
}

func (c SessionConfig) IsZero() bool {
	return c == SessionConfig{}
}

func (c SessionConfig) questionRequest() interviewer.QuestionRequest {
	req := interviewer.QuestionRequest{Level: c.Level}
	if c.Mode == ModeRole {
		req.Role = c.Target
	} else {
		req.Topic = c.Target
	}
	return req
}

func (c SessionConfig) evaluationRequest(question, answer string) interviewer.EvaluationRequest {
	q := c.questionRequest()
	return interviewer.EvaluationRequest{
		Question: question,
		Answer:   answer,
		Level:    q.Level,
		Role:     q.Role,
		Topic:    q.Topic,
	}
}

// CatalogInfo lists the choices offered when configuring a session.
type CatalogInfo struct {
	Levels []string `json:"levels"`
	Modes  []string `json:"modes"`
	Roles  []string `json:"roles"`
	Topics []string `json:"topics"`
}

var catalogRoles = []string{
	"Backend Developer", "Frontend Developer", "Full Stack Developer",
	"Data Scientist", "Machine Learning Engineer", "DevOps Engineer",
	"Mobile Developer", "iOS Developer", "Android Developer",
	"QA Engineer", "System Administrator", "Cloud Engineer",
	"Security Engineer", "Database Administrator", "Product Manager",
}

var catalogTopics = []string{
	"Data Structures", "Algorithms", "Object-Oriented Programming",
	"System Design", "Database Design", "API Development",
	"JavaScript", "Python", "Java", "React", "Node.js",
	"Machine Learning", "Data Analysis", "SQL", "NoSQL",
	"Cloud Computing", "Docker", "Kubernetes", "Security",
	"Testing", "Performance Optimization", "Operating Systems",
	"Computer Networks", "HTML", "CSS",
}

// Catalog returns a fresh copy on every call.
func Catalog() CatalogInfo {
	return CatalogInfo{
		Levels: []string{LevelBeginner, LevelIntermediate, LevelAdvanced},
		Modes:  []string{ModeRole, ModeTopic},
		Roles:  append([]string(nil), catalogRoles...),
		Topics: append([]string(nil), catalogTopics...),
	}
}
