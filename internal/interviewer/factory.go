package interviewer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config controls client construction.
type Config struct {
	Mode         string
	URL          string
	Timeout      time.Duration
	GeminiAPIKey string
	GeminiModel  string
}

// NewClient builds the client for cfg.Mode and reports the mode that was resolved.
// auto prefers gemini when a key is set, then http when a URL is set, else mock.
func NewClient(ctx context.Context, cfg Config) (Client, string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" || mode == "auto" {
		switch {
		case strings.TrimSpace(cfg.GeminiAPIKey) != "":
			mode = "gemini"
		case strings.TrimSpace(cfg.URL) != "":
			mode = "http"
		default:
			mode = "mock"
		}
	}

	switch mode {
	case "gemini":
		c, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, "", err
		}
		return c, mode, nil
	case "http":
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, "", errors.New("interviewer URL is required for http mode")
		}
		return NewHTTPClient(cfg.URL, cfg.Timeout), mode, nil
	case "mock":
		return NewMockClient(), mode, nil
	default:
		return nil, "", fmt.Errorf("unsupported interviewer mode %q", cfg.Mode)
	}
}
