package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/ent0n29/mockinterview/internal/practice"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientAudioChunk MessageType = "client_audio_chunk"
	TypeClientControl    MessageType = "client_control"
	TypeSessionState     MessageType = "session_state"
	TypeSTTPartial       MessageType = "stt_partial"
	TypeRecordingTick    MessageType = "recording_tick"
	TypeAssistantAudio   MessageType = "assistant_audio_chunk"
	TypeSystemEvent      MessageType = "system_event"
	TypeErrorEvent       MessageType = "error_event"
)

// Control actions accepted in client_control.
const (
	ActionConfigure        = "configure"
	ActionGenerateQuestion = "generate_question"
	ActionStartRecording   = "start_recording"
	ActionStopRecording    = "stop_recording"
	ActionSetAnswer        = "set_answer"
	ActionClearAnswer      = "clear_answer"
	ActionSubmitAnswer     = "submit_answer"
	ActionSpeakQuestion    = "speak_question"
	ActionPausePlayback    = "pause_playback"
	ActionResumePlayback   = "resume_playback"
	ActionCancelPlayback   = "cancel_playback"
	ActionReset            = "reset"
)

var knownActions = map[string]struct{}{
	ActionConfigure: {}, ActionGenerateQuestion: {}, ActionStartRecording: {}, ActionStopRecording: {},
	ActionSetAnswer: {}, ActionClearAnswer: {}, ActionSubmitAnswer: {}, ActionSpeakQuestion: {},
	ActionPausePlayback: {}, ActionResumePlayback: {}, ActionCancelPlayback: {}, ActionReset: {},
}

var (
	ErrUnsupportedType   = errors.New("unsupported message type")
	ErrUnsupportedAction = errors.New("unsupported control action")
)

type Envelope struct {
	Type MessageType `json:"type"`
}

type ClientAudioChunk struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Seq         int         `json:"seq"`
	PCM16Base64 string      `json:"pcm16_base64"`
	SampleRate  int         `json:"sample_rate"`
	Commit      bool        `json:"commit,omitempty"`
	TSMs        int64       `json:"ts_ms,omitempty"`
}

type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
	Level     string      `json:"level,omitempty"`
	Mode      string      `json:"mode,omitempty"`
	Target    string      `json:"target,omitempty"`
	Answer    *string     `json:"answer,omitempty"`
}

type SessionState struct {
	Type      MessageType       `json:"type"`
	SessionID string            `json:"session_id"`
	Snapshot  practice.Snapshot `json:"snapshot"`
}

type STTPartial struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
}

type RecordingTick struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	RemainingMS int64       `json:"remaining_ms"`
}

type AssistantAudioChunk struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Seq         int         `json:"seq"`
	Format      string      `json:"format"`
	AudioBase64 string      `json:"audio_base64"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientAudioChunk:
		var msg ClientAudioChunk
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.SampleRate <= 0 || (msg.PCM16Base64 == "" && !msg.Commit) {
			return nil, errors.New("invalid client_audio_chunk")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		msg.Action = strings.ToLower(strings.TrimSpace(msg.Action))
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		if _, ok := knownActions[msg.Action]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, msg.Action)
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
