package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the practice service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string
	LogLevel                 string

	AllowAnyOrigin bool

	InterviewerMode    string
	InterviewerURL     string
	InterviewerTimeout time.Duration
	GeminiAPIKey       string
	GeminiModel        string

	VoiceProvider     string
	RecordingDeadline time.Duration
	RecordingTick     time.Duration
	PlaybackVoiceID   string
	PlaybackRate      float64

	DatabaseURL   string
	RedisURL      string
	RedisPassword string
	SnapshotTTL   time.Duration
}

// Load reads environment variables (and a local .env when present) and applies safe defaults.
func Load() (Config, error) {
	// A missing .env is the common case outside local development.
	_ = godotenv.Load()

	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "mockinterview"),
		LogLevel:                 strings.ToLower(envOrDefault("APP_LOG_LEVEL", "info")),
		AllowAnyOrigin:           false,
		InterviewerMode:          strings.ToLower(envOrDefault("INTERVIEWER_MODE", "auto")),
		InterviewerURL:           stringsTrimSpace("INTERVIEWER_URL"),
		GeminiAPIKey:             stringsTrimSpace("GEMINI_API_KEY"),
		GeminiModel:              envOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		VoiceProvider:            strings.ToLower(envOrDefault("VOICE_PROVIDER", "mock")),
		PlaybackVoiceID:          stringsTrimSpace("PLAYBACK_VOICE_ID"),
		PlaybackRate:             0.8,
		DatabaseURL:              stringsTrimSpace("DATABASE_URL"),
		RedisURL:                 stringsTrimSpace("REDIS_URL"),
		RedisPassword:            stringsTrimSpace("REDIS_PASSWORD"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 10 * time.Minute,
		InterviewerTimeout:       30 * time.Second,
		RecordingDeadline:        120 * time.Second,
		RecordingTick:            time.Second,
		SnapshotTTL:              24 * time.Hour,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.InterviewerTimeout, err = durationFromEnv("INTERVIEWER_TIMEOUT", cfg.InterviewerTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RecordingDeadline, err = durationFromEnv("RECORDING_DEADLINE", cfg.RecordingDeadline)
	if err != nil {
		return Config{}, err
	}
	cfg.RecordingTick, err = durationFromEnv("RECORDING_TICK", cfg.RecordingTick)
	if err != nil {
		return Config{}, err
	}
	cfg.SnapshotTTL, err = durationFromEnv("SNAPSHOT_TTL", cfg.SnapshotTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.PlaybackRate, err = floatFromEnv("PLAYBACK_RATE", cfg.PlaybackRate)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.SessionInactivityTimeout < 5*time.Second {
		return fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if c.InterviewerTimeout <= 0 {
		return fmt.Errorf("INTERVIEWER_TIMEOUT must be positive")
	}
	if c.RecordingDeadline <= 0 {
		return fmt.Errorf("RECORDING_DEADLINE must be positive")
	}
	if c.RecordingTick <= 0 || c.RecordingTick > c.RecordingDeadline {
		return fmt.Errorf("RECORDING_TICK must be positive and not exceed RECORDING_DEADLINE")
	}
	if c.PlaybackRate <= 0 || c.PlaybackRate > 4 {
		return fmt.Errorf("PLAYBACK_RATE must be in (0, 4]")
	}
	switch c.InterviewerMode {
	case "auto", "http", "gemini", "mock":
	default:
		return fmt.Errorf("invalid INTERVIEWER_MODE: %q (expected auto|http|gemini|mock)", c.InterviewerMode)
	}
	switch c.VoiceProvider {
	case "mock", "none":
	default:
		return fmt.Errorf("invalid VOICE_PROVIDER: %q (expected mock|none)", c.VoiceProvider)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid APP_LOG_LEVEL: %q", c.LogLevel)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
