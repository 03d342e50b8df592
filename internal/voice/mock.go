package voice

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

const mockCommitEvery = 8

var defaultMockPhrases = []string{
	"I would start by clarifying the requirements",
	"then pick a data structure that fits the access pattern",
	"and finally walk through the time and space complexity",
}

// MockProvider is a local stand-in for browser speech capture and synthesis.
// Captured audio is never decoded: each commit (or every eighth chunk) yields the next scripted phrase.
type MockProvider struct {
	phrases []string
}

func NewMockProvider(phrases ...string) *MockProvider {
	if len(phrases) == 0 {
		phrases = defaultMockPhrases
	}
	return &MockProvider{phrases: phrases}
}

func (p *MockProvider) StartSession(_ context.Context, _ string) (STTSession, <-chan STTEvent, error) {
	events := make(chan STTEvent, 64)
	s := &mockSTTSession{events: events, phrases: p.phrases}
	return s, events, nil
}

// StartStream tags every chunk's format with the effective voice and rate, so the
// settings are visible end to end without a real synthesizer.
func (p *MockProvider) StartStream(_ context.Context, settings TTSSettings) (TTSStream, error) {
	events := make(chan TTSEvent, 1024)
	return &mockTTSStream{events: events, format: mockFormat(settings)}, nil
}

func mockFormat(settings TTSSettings) string {
	rate := settings.Rate
	if rate <= 0 {
		rate = 1
	}
	voiceID := strings.TrimSpace(settings.VoiceID)
	if voiceID == "" {
		voiceID = "default"
	}
	return fmt.Sprintf("mock_text_bytes; voice=%s; rate=%s", voiceID, strconv.FormatFloat(rate, 'f', -1, 64))
}

type mockSTTSession struct {
	mu      sync.Mutex
	events  chan STTEvent
	phrases []string
	next    int
	chunks  int
	closed  bool
}

func (s *mockSTTSession) SendAudioChunk(_ context.Context, audioBase64 string, _ int, commit bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if strings.TrimSpace(audioBase64) == "" && !commit {
		return nil
	}
	s.chunks++
	now := time.Now().UnixMilli()
	phrase := s.phrases[s.next%len(s.phrases)]
	s.emit(STTEvent{Type: STTEventPartial, Text: firstWords(phrase, s.chunks), Confidence: 0.5, Timestamp: now})
	if commit || s.chunks%mockCommitEvery == 0 {
		s.next++
		s.chunks = 0
		s.emit(STTEvent{Type: STTEventCommitted, Text: phrase, Confidence: 0.9, Timestamp: now})
	}
	return nil
}

// emit never blocks; a full buffer drops the event like a lagging recognizer would.
func (s *mockSTTSession) emit(evt STTEvent) {
	select {
	case s.events <- evt:
	default:
	}
}

func (s *mockSTTSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}

func firstWords(phrase string, n int) string {
	words := strings.Fields(phrase)
	if n > len(words) {
		n = len(words)
	}
	return strings.Join(words[:n], " ")
}

type mockTTSStream struct {
	mu     sync.Mutex
	events chan TTSEvent
	format string
	closed bool
	ended  bool
}

func (s *mockTTSStream) SendText(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.ended {
		return nil
	}
	for _, word := range strings.Fields(text) {
		// Keep one slot free so the final event always fits.
		if len(s.events) >= cap(s.events)-1 {
			break
		}
		encoded := base64.StdEncoding.EncodeToString([]byte(word))
		s.events <- TTSEvent{Type: TTSEventAudio, AudioBase64: encoded, Format: s.format}
	}
	return nil
}

func (s *mockTTSStream) CloseInput(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.ended {
		return nil
	}
	s.ended = true
	select {
	case s.events <- TTSEvent{Type: TTSEventFinal}:
	default:
	}
	return nil
}

func (s *mockTTSStream) Events() <-chan TTSEvent { return s.events }

func (s *mockTTSStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}
