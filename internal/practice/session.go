package practice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/mockinterview/internal/interviewer"
	"github.com/ent0n29/mockinterview/internal/observability"
	"github.com/ent0n29/mockinterview/internal/playback"
	"github.com/ent0n29/mockinterview/internal/policy"
	"github.com/ent0n29/mockinterview/internal/recording"
	"github.com/ent0n29/mockinterview/internal/store"
	"github.com/ent0n29/mockinterview/internal/voice"
)

type State string

const (
	StateConfiguring   State = "configuring"
	StateGenerating    State = "generating"
	StateQuestionReady State = "question_ready"
	StateRecording     State = "recording"
	StateSubmitting    State = "submitting"
	StateFeedbackShown State = "feedback_shown"
)

const (
	QuestionErrorPlaceholder = "Error generating question. Please try again."
	FallbackFeedback         = "Error evaluating answer. Please try again."
)

var (
	ErrInvalidTransition = errors.New("action not allowed in current state")
	ErrEmptyAnswer       = errors.New("answer is empty")
	ErrNoQuestion        = errors.New("no question to act on")
	ErrSuperseded        = errors.New("result discarded after reset or question change")
	ErrClosed            = errors.New("session closed")
)

// Notice is a user-visible degraded-mode message.
type Notice string

const (
	NoticeCaptureUnavailable   Notice = "capture_unavailable"
	NoticeSynthesisUnavailable Notice = "synthesis_unavailable"
	NoticeQuestionFailed       Notice = "question_failed"
	NoticeEvaluationFailed     Notice = "evaluation_failed"
	NoticeRecordingStopped     Notice = "recording_stopped"
)

type Question struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Failed bool   `json:"failed,omitempty"`
}

type Result struct {
	Feedback string  `json:"feedback"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`
	Degraded bool    `json:"degraded,omitempty"`
}

type RecordingView struct {
	Active      bool  `json:"active"`
	RemainingMS int64 `json:"remaining_ms"`
}

type PlaybackView struct {
	Active bool `json:"active"`
	Paused bool `json:"paused"`
}

// Snapshot is a copy of the session state. Version grows with every change so
// consumers can drop out-of-order snapshots.
type Snapshot struct {
	SessionID      string        `json:"session_id"`
	Version        uint64        `json:"version"`
	State          State         `json:"state"`
	Config         SessionConfig `json:"config"`
	Question       *Question     `json:"question,omitempty"`
	Answer         string        `json:"answer"`
	Result         *Result       `json:"result,omitempty"`
	Recording      RecordingView `json:"recording"`
	Playback       PlaybackView  `json:"playback"`
	LastActivityAt time.Time     `json:"last_activity_at"`
}

// Observer receives session output. Calls must not block and must not call back into the Session.
type Observer interface {
	StateChanged(snap Snapshot)
	PartialTranscript(text string)
	RecordingTick(remaining time.Duration)
	PlaybackAudio(chunk playback.Chunk)
	Notice(kind Notice, detail string)
}

type Deps struct {
	Interviewer interviewer.Client
	Capture     voice.STTProvider
	Synthesis   voice.TTSProvider
	Recording   recording.Config
	Voice       voice.TTSSettings
	Store       store.SnapshotStore
	Metrics     *observability.Metrics
	Logger      *slog.Logger
}

// Session is one practice session. It owns exactly one recording and one playback controller.
// The session lock is never held while calling into a controller.
type Session struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	client  interviewer.Client
	rec     *recording.Controller
	play    *playback.Controller
	store   store.SnapshotStore
	metrics *observability.Metrics
	log     *slog.Logger

	recDeadline time.Duration

	obsMu    sync.RWMutex
	observer Observer

	mu             sync.Mutex
	state          State
	cfg            SessionConfig
	question       *Question
	answer         string
	result         *Result
	gen            uint64
	inflightCancel context.CancelFunc
	recID          string
	drainID        string
	recRemaining   time.Duration
	playID         string
	playPaused     bool
	captureNotice  bool
	synthNotice    bool
	version        uint64
	lastActivity   time.Time
	closed         bool
}

func NewSession(ctx context.Context, id string, deps Deps) *Session {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	sctx, cancel := context.WithCancel(ctx)
	log := deps.Logger
	if log == nil {
		log = observability.Logger()
	}
	client := deps.Interviewer
	if client == nil {
		client = interviewer.NewMockClient()
	}
	deadline := deps.Recording.Deadline
	if deadline <= 0 {
		deadline = recording.DefaultDeadline
	}

	s := &Session{
		id:           id,
		ctx:          sctx,
		cancel:       cancel,
		client:       client,
		store:        deps.Store,
		metrics:      deps.Metrics,
		log:          log.With("component", "practice_session", "session_id", id),
		recDeadline:  deadline,
		observer:     nopObserver{},
		state:        StateConfiguring,
		lastActivity: time.Now().UTC(),
	}
	s.rec = recording.New(deps.Capture, recordingListener{s}, deps.Recording)
	s.play = playback.New(deps.Synthesis, playbackSink{s}, deps.Voice)
	return s
}

func (s *Session) ID() string { return s.id }

// SetObserver replaces the output observer; nil detaches.
func (s *Session) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	s.obsMu.Lock()
	s.observer = o
	s.obsMu.Unlock()
}

// DetachObserver clears o only while it is still the current observer.
// It reports false when another observer has replaced it.
func (s *Session) DetachObserver(o Observer) bool {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	if s.observer != o {
		return false
	}
	s.observer = nopObserver{}
	return true
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Configure sets level, mode and target. Only allowed before the first question.
func (s *Session) Configure(cfg SessionConfig) (Snapshot, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return s.Snapshot(), err
	}

	s.mu.Lock()
	if err := s.checkLocked("configure", StateConfiguring); err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}
	s.cfg = cfg
	snap := s.changedLocked()
	s.mu.Unlock()

	s.metrics.ObserveSessionEvent("configured")
	s.publish(snap)
	s.persist(snap)
	return snap, nil
}

// GenerateQuestion replaces the current question. Recording and playback of the previous
// question are fully stopped before the remote call is issued. A failed call leaves a
// placeholder question rather than an error.
func (s *Session) GenerateQuestion(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if err := s.checkLocked("generate question", StateConfiguring, StateQuestionReady, StateRecording, StateFeedbackShown); err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}
	if err := s.cfg.Validate(); err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}
	s.gen++
	gen := s.gen
	s.state = StateGenerating
	s.question = nil
	s.answer = ""
	s.result = nil
	s.clearControllersLocked()
	cfg := s.cfg
	callCtx, cancel := context.WithCancel(ctx)
	s.inflightCancel = cancel
	snap := s.changedLocked()
	s.mu.Unlock()
	s.publish(snap)

	teardownStart := time.Now()
	s.rec.Stop()
	s.play.Cancel()
	s.metrics.ObserveStage(observability.StageQuestionTeardown, time.Since(teardownStart))

	stopAfter := context.AfterFunc(s.ctx, cancel)
	start := time.Now()
	text, err := s.client.GenerateQuestion(callCtx, cfg.questionRequest())
	stopAfter()
	cancel()
	s.observeRemote(interviewer.OpGenerateQuestion, err, time.Since(start))

	s.mu.Lock()
	if s.closed || s.gen != gen {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrSuperseded
	}
	s.inflightCancel = nil
	if err != nil {
		s.question = &Question{ID: uuid.NewString(), Text: QuestionErrorPlaceholder, Failed: true}
	} else {
		s.question = &Question{ID: uuid.NewString(), Text: text}
	}
	s.state = StateQuestionReady
	snap = s.changedLocked()
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("question generation failed", "error", policy.Scrub(err.Error()))
		s.metrics.ObserveSessionEvent("question_failed")
		s.notice(NoticeQuestionFailed, err.Error())
	} else {
		s.metrics.ObserveSessionEvent("question_generated")
	}
	s.publish(snap)
	s.persist(snap)
	return snap, nil
}

// StartRecording opens a capture for the current question. The capture lives on the
// session context and ends on stop, deadline, engine end or teardown.
func (s *Session) StartRecording() (Snapshot, error) {
	s.mu.Lock()
	if err := s.checkLocked("start recording", StateQuestionReady); err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}
	if s.question == nil || s.question.Failed {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrNoQuestion
	}
	recID := uuid.NewString()
	s.recID = recID
	s.recRemaining = s.recDeadline
	s.state = StateRecording
	playID := s.playID
	s.playID = ""
	s.playPaused = false
	snap := s.changedLocked()
	s.mu.Unlock()
	s.publish(snap)

	if playID != "" {
		s.play.CancelID(playID)
	}

	if _, err := s.rec.Start(s.ctx, recID); err != nil {
		s.mu.Lock()
		if s.recID == recID {
			s.recID = ""
			s.recRemaining = 0
			if s.state == StateRecording {
				s.state = StateQuestionReady
			}
		}
		first := errors.Is(err, recording.ErrCaptureUnavailable) && !s.captureNotice
		if first {
			s.captureNotice = true
		}
		snap := s.changedLocked()
		s.mu.Unlock()

		if first {
			s.log.Warn("speech capture unavailable; continuing typed-only", "error", err)
			s.notice(NoticeCaptureUnavailable, "Speech recognition is not available. You can still type your answer.")
		}
		s.publish(snap)
		return snap, err
	}

	s.mu.Lock()
	stale := s.recID != recID
	s.mu.Unlock()
	if stale {
		s.rec.StopID(recID)
	}
	return s.Snapshot(), nil
}

// StopRecording is a no-op when nothing is recording. Fragments already committed by the
// engine are still appended while the capture drains.
func (s *Session) StopRecording() Snapshot {
	s.mu.Lock()
	recID := s.recID
	if recID == "" {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}
	s.beginDrainLocked()
	snap := s.changedLocked()
	s.mu.Unlock()
	s.publish(snap)

	s.rec.StopID(recID)
	s.endDrain(recID)
	return s.Snapshot()
}

// FeedAudio forwards client audio to the active capture.
func (s *Session) FeedAudio(ctx context.Context, audioBase64 string, sampleRate int, commit bool) error {
	s.touch()
	return s.rec.FeedAudio(ctx, audioBase64, sampleRate, commit)
}

func (s *Session) SetAnswer(text string) (Snapshot, error) {
	s.mu.Lock()
	if err := s.checkLocked("edit answer", StateQuestionReady, StateRecording); err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}
	s.answer = text
	snap := s.changedLocked()
	s.mu.Unlock()
	s.publish(snap)
	return snap, nil
}

func (s *Session) ClearAnswer() (Snapshot, error) {
	return s.SetAnswer("")
}

// SubmitAnswer stops recording, freezes the answer and evaluates it. A failed evaluation
// shows the fallback feedback and is not an error.
func (s *Session) SubmitAnswer(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if err := s.checkLocked("submit answer", StateQuestionReady, StateRecording); err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}
	if s.question == nil || s.question.Failed {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrNoQuestion
	}
	if strings.TrimSpace(s.answer) == "" {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrEmptyAnswer
	}
	gen := s.gen
	recID := s.beginDrainLocked()
	s.state = StateSubmitting
	playID := s.playID
	s.playID = ""
	s.playPaused = false
	callCtx, cancel := context.WithCancel(ctx)
	s.inflightCancel = cancel
	snap := s.changedLocked()
	s.mu.Unlock()
	s.publish(snap)
	defer cancel()

	if recID != "" {
		s.rec.StopID(recID)
		s.endDrain(recID)
	}
	if playID != "" {
		s.play.CancelID(playID)
	}

	s.mu.Lock()
	if s.closed || s.gen != gen {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrSuperseded
	}
	req := s.cfg.evaluationRequest(s.question.Text, s.answer)
	s.mu.Unlock()

	stopAfter := context.AfterFunc(s.ctx, cancel)
	start := time.Now()
	ev, err := s.client.EvaluateAnswer(callCtx, req)
	stopAfter()
	s.observeRemote(interviewer.OpEvaluateAnswer, err, time.Since(start))

	s.mu.Lock()
	if s.closed || s.gen != gen {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrSuperseded
	}
	s.inflightCancel = nil
	var feedbackID string
	if err != nil {
		s.result = &Result{Feedback: FallbackFeedback, Degraded: true}
	} else {
		s.result = &Result{Feedback: ev.Feedback, Score: ev.Score, MaxScore: ev.MaxScore}
		if strings.TrimSpace(ev.Feedback) != "" {
			feedbackID = uuid.NewString()
			s.playID = feedbackID
		}
	}
	s.state = StateFeedbackShown
	snap = s.changedLocked()
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("answer evaluation failed", "error", policy.Scrub(err.Error()))
		s.metrics.ObserveSessionEvent("evaluation_failed")
		s.notice(NoticeEvaluationFailed, err.Error())
	} else {
		s.metrics.ObserveSessionEvent("answer_evaluated")
	}
	s.publish(snap)

	if feedbackID != "" {
		_ = s.speak(feedbackID, ev.Feedback)
	}
	return s.Snapshot(), nil
}

// SpeakQuestion reads the current question aloud, stopping any recording first.
func (s *Session) SpeakQuestion() (Snapshot, error) {
	s.mu.Lock()
	if err := s.checkLocked("speak question", StateQuestionReady, StateRecording, StateFeedbackShown); err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}
	if s.question == nil || s.question.Failed {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrNoQuestion
	}
	recID := s.beginDrainLocked()
	playID := uuid.NewString()
	s.playID = playID
	s.playPaused = false
	text := s.question.Text
	snap := s.changedLocked()
	s.mu.Unlock()
	s.publish(snap)

	if recID != "" {
		s.rec.StopID(recID)
		s.endDrain(recID)
	}
	if err := s.speak(playID, text); err != nil {
		return s.Snapshot(), err
	}
	return s.Snapshot(), nil
}

func (s *Session) PausePlayback() bool {
	s.touch()
	return s.play.Pause()
}

func (s *Session) ResumePlayback() bool {
	s.touch()
	return s.play.Resume()
}

func (s *Session) CancelPlayback() bool {
	s.mu.Lock()
	playID := s.playID
	if playID == "" {
		s.mu.Unlock()
		return false
	}
	s.playID = ""
	s.playPaused = false
	snap := s.changedLocked()
	s.mu.Unlock()

	cancelled := s.play.CancelID(playID)
	s.publish(snap)
	return cancelled
}

// Reset returns to configuring from any state. In-flight remote results are discarded.
func (s *Session) Reset() Snapshot {
	s.mu.Lock()
	if s.closed {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}
	s.gen++
	if s.inflightCancel != nil {
		s.inflightCancel()
		s.inflightCancel = nil
	}
	s.state = StateConfiguring
	s.cfg = SessionConfig{}
	s.question = nil
	s.answer = ""
	s.result = nil
	s.clearControllersLocked()
	snap := s.changedLocked()
	s.mu.Unlock()

	s.rec.Stop()
	s.play.Cancel()
	s.metrics.ObserveSessionEvent("reset")
	s.publish(snap)
	s.forget()
	return snap
}

// Teardown runs when the hosting surface goes away. Question and answer are kept.
func (s *Session) Teardown() Snapshot {
	s.mu.Lock()
	s.clearControllersLocked()
	if s.state == StateRecording {
		s.state = StateQuestionReady
	}
	snap := s.changedLocked()
	s.mu.Unlock()

	s.rec.Stop()
	s.play.Cancel()
	s.publish(snap)
	return snap
}

// Close tears the session down for good and releases its context.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	if s.inflightCancel != nil {
		s.inflightCancel()
		s.inflightCancel = nil
	}
	s.clearControllersLocked()
	s.mu.Unlock()

	s.rec.Stop()
	s.play.Cancel()
	s.cancel()
}

func (s *Session) restore(snap store.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = SessionConfig{Level: snap.Level, Mode: snap.Mode, Target: snap.Target}.Normalize()
	if strings.TrimSpace(snap.Question) != "" && s.cfg.Validate() == nil {
		s.question = &Question{ID: uuid.NewString(), Text: snap.Question}
		s.state = StateQuestionReady
	} else {
		s.state = StateConfiguring
	}
	s.changedLocked()
}

func (s *Session) speak(playID, text string) error {
	err := s.play.Speak(s.ctx, playID, text)
	if err != nil {
		s.mu.Lock()
		if s.playID == playID {
			s.playID = ""
			s.playPaused = false
		}
		first := errors.Is(err, playback.ErrSynthesisUnavailable) && !s.synthNotice
		if first {
			s.synthNotice = true
		}
		snap := s.changedLocked()
		s.mu.Unlock()

		if first {
			s.log.Warn("speech synthesis unavailable", "error", err)
			s.notice(NoticeSynthesisUnavailable, "Speech playback is not available.")
		}
		s.publish(snap)
		return err
	}

	s.mu.Lock()
	stale := s.playID != playID
	s.mu.Unlock()
	if stale {
		s.play.CancelID(playID)
	}
	return nil
}

func (s *Session) checkLocked(action string, allowed ...State) error {
	if s.closed {
		return ErrClosed
	}
	for _, st := range allowed {
		if s.state == st {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, s.state)
}

// beginDrainLocked detaches the active recording but keeps accepting its committed
// fragments until endDrain. It returns the detached id.
func (s *Session) beginDrainLocked() string {
	recID := s.recID
	if recID == "" {
		return ""
	}
	s.recID = ""
	s.drainID = recID
	s.recRemaining = 0
	if s.state == StateRecording {
		s.state = StateQuestionReady
	}
	return recID
}

func (s *Session) endDrain(recID string) {
	s.mu.Lock()
	if s.drainID == recID {
		s.drainID = ""
	}
	s.mu.Unlock()
}

func (s *Session) clearControllersLocked() {
	s.recID = ""
	s.drainID = ""
	s.recRemaining = 0
	s.playID = ""
	s.playPaused = false
}

func (s *Session) changedLocked() Snapshot {
	s.version++
	s.lastActivity = time.Now().UTC()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:      s.id,
		Version:        s.version,
		State:          s.state,
		Config:         s.cfg,
		Answer:         s.answer,
		Recording:      RecordingView{Active: s.recID != "", RemainingMS: s.recRemaining.Milliseconds()},
		Playback:       PlaybackView{Active: s.playID != "", Paused: s.playPaused},
		LastActivityAt: s.lastActivity,
	}
	if s.question != nil {
		q := *s.question
		snap.Question = &q
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	return snap
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now().UTC()
	s.mu.Unlock()
}

func (s *Session) currentObserver() Observer {
	s.obsMu.RLock()
	defer s.obsMu.RUnlock()
	return s.observer
}

func (s *Session) publish(snap Snapshot) {
	s.currentObserver().StateChanged(snap)
}

func (s *Session) notice(kind Notice, detail string) {
	s.metrics.ObserveIndicator(string(kind))
	s.currentObserver().Notice(kind, policy.Scrub(detail))
}

func (s *Session) observeRemote(op interviewer.Operation, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		var remote *interviewer.RemoteError
		if errors.As(err, &remote) {
			outcome = string(remote.Kind)
		}
	}
	s.metrics.ObserveRemoteCall(string(op), outcome, d)
}

// persist writes the non-transient fields. Failures are logged and never surface.
func (s *Session) persist(snap Snapshot) {
	if s.store == nil {
		return
	}
	rec := store.Snapshot{
		SessionID: snap.SessionID,
		Level:     snap.Config.Level,
		Mode:      snap.Config.Mode,
		Target:    snap.Config.Target,
		UpdatedAt: time.Now().UTC(),
	}
	if snap.Question != nil && !snap.Question.Failed {
		rec.Question = snap.Question.Text
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.store.Save(ctx, rec); err != nil {
		s.log.Warn("snapshot save failed", "error", err)
	}
}

func (s *Session) forget() {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.store.Delete(ctx, s.id); err != nil {
		s.log.Warn("snapshot delete failed", "error", err)
	}
}

type recordingListener struct{ s *Session }

func (l recordingListener) RecordingStarted(id string, _ time.Time) {
	s := l.s
	s.mu.Lock()
	if id != s.recID {
		s.mu.Unlock()
		return
	}
	s.recRemaining = s.recDeadline
	snap := s.changedLocked()
	s.mu.Unlock()
	s.publish(snap)
}

func (l recordingListener) RecordingTick(id string, remaining time.Duration) {
	s := l.s
	s.mu.Lock()
	if id != s.recID {
		s.mu.Unlock()
		return
	}
	s.recRemaining = remaining
	s.mu.Unlock()
	s.currentObserver().RecordingTick(remaining)
}

func (l recordingListener) PartialTranscript(id, text string) {
	s := l.s
	s.mu.Lock()
	active := id == s.recID
	s.mu.Unlock()
	if active {
		s.currentObserver().PartialTranscript(text)
	}
}

func (l recordingListener) FragmentFinalized(id, text string) {
	s := l.s
	s.mu.Lock()
	if id == "" || (id != s.recID && id != s.drainID) {
		s.mu.Unlock()
		return
	}
	if strings.TrimSpace(s.answer) == "" {
		s.answer = text
	} else {
		s.answer = strings.TrimRight(s.answer, " ") + " " + text
	}
	snap := s.changedLocked()
	s.mu.Unlock()
	s.publish(snap)
}

func (l recordingListener) RecordingStopped(id string, reason recording.StopReason) {
	s := l.s
	s.metrics.ObserveRecordingStop(string(reason))
	s.mu.Lock()
	if id != s.recID {
		s.mu.Unlock()
		return
	}
	s.recID = ""
	s.recRemaining = 0
	if s.state == StateRecording {
		s.state = StateQuestionReady
	}
	snap := s.changedLocked()
	s.mu.Unlock()

	switch reason {
	case recording.StopEngineError:
		s.log.Warn("speech recognition error; recording stopped")
		s.notice(NoticeRecordingStopped, string(reason))
	case recording.StopDeadline, recording.StopEngineEnded:
		s.notice(NoticeRecordingStopped, string(reason))
	}
	s.publish(snap)
}

type playbackSink struct{ s *Session }

func (p playbackSink) PlaybackStarted(id string) {
	s := p.s
	s.mu.Lock()
	if id != s.playID {
		s.mu.Unlock()
		return
	}
	snap := s.changedLocked()
	s.mu.Unlock()
	s.publish(snap)
}

func (p playbackSink) PlaybackAudio(id string, chunk playback.Chunk) {
	s := p.s
	s.mu.Lock()
	active := id == s.playID
	s.mu.Unlock()
	if active {
		s.currentObserver().PlaybackAudio(chunk)
	}
}

func (p playbackSink) PlaybackPaused(id string)  { p.setPaused(id, true) }
func (p playbackSink) PlaybackResumed(id string) { p.setPaused(id, false) }

func (p playbackSink) setPaused(id string, paused bool) {
	s := p.s
	s.mu.Lock()
	if id != s.playID {
		s.mu.Unlock()
		return
	}
	s.playPaused = paused
	snap := s.changedLocked()
	s.mu.Unlock()
	s.publish(snap)
}

func (p playbackSink) PlaybackEnded(id string, reason playback.EndReason) {
	s := p.s
	s.metrics.ObservePlaybackEnd(string(reason))
	s.mu.Lock()
	if id != s.playID {
		s.mu.Unlock()
		return
	}
	s.playID = ""
	s.playPaused = false
	snap := s.changedLocked()
	s.mu.Unlock()
	s.publish(snap)
}

type nopObserver struct{}

func (nopObserver) StateChanged(Snapshot)        {}
func (nopObserver) PartialTranscript(string)     {}
func (nopObserver) RecordingTick(time.Duration)  {}
func (nopObserver) PlaybackAudio(playback.Chunk) {}
func (nopObserver) Notice(Notice, string)        {}
