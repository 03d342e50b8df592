package voice

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by providers when the runtime has no speech capability.
var ErrUnavailable = errors.New("speech capability unavailable")

type STTEventType string

const (
	STTEventPartial   STTEventType = "partial"
	STTEventCommitted STTEventType = "committed"
	STTEventError     STTEventType = "error"
)

type STTEvent struct {
	Type       STTEventType
	Text       string
	Confidence float64
	Code       string
	Detail     string
	Timestamp  int64
}

// STTSession is one continuous capture stream. Close must be idempotent and closes the event channel.
type STTSession interface {
	SendAudioChunk(ctx context.Context, audioBase64 string, sampleRate int, commit bool) error
	Close() error
}

type STTProvider interface {
	StartSession(ctx context.Context, sessionID string) (STTSession, <-chan STTEvent, error)
}

type TTSEventType string

const (
	TTSEventAudio TTSEventType = "audio"
	TTSEventFinal TTSEventType = "final"
	TTSEventError TTSEventType = "error"
)

type TTSEvent struct {
	Type        TTSEventType
	AudioBase64 string
	Format      string
	Code        string
	Detail      string
}

type TTSSettings struct {
	VoiceID string
	Rate    float64
	Pitch   float64
}

// TTSStream is one utterance. Close must be idempotent.
type TTSStream interface {
	SendText(ctx context.Context, text string) error
	CloseInput(ctx context.Context) error
	Events() <-chan TTSEvent
	Close() error
}

type TTSProvider interface {
	StartStream(ctx context.Context, settings TTSSettings) (TTSStream, error)
}
