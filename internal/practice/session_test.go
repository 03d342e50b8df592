package practice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ent0n29/mockinterview/internal/interviewer"
	"github.com/ent0n29/mockinterview/internal/playback"
	"github.com/ent0n29/mockinterview/internal/recording"
	"github.com/ent0n29/mockinterview/internal/store"
	"github.com/ent0n29/mockinterview/internal/voice"
)

type stubInterviewer struct {
	question func(ctx context.Context, req interviewer.QuestionRequest) (string, error)
	evaluate func(ctx context.Context, req interviewer.EvaluationRequest) (interviewer.Evaluation, error)
}

func (s *stubInterviewer) GenerateQuestion(ctx context.Context, req interviewer.QuestionRequest) (string, error) {
	if s.question != nil {
		return s.question(ctx, req)
	}
	return "What is the time complexity of binary search?", nil
}

func (s *stubInterviewer) EvaluateAnswer(ctx context.Context, req interviewer.EvaluationRequest) (interviewer.Evaluation, error) {
	if s.evaluate != nil {
		return s.evaluate(ctx, req)
	}
	return interviewer.Evaluation{Feedback: "Good answer.", Score: 7, MaxScore: 10}, nil
}

type recordedObserver struct {
	mu       sync.Mutex
	states   []Snapshot
	notices  []Notice
	details  []string
	partials []string
	audio    []playback.Chunk
}

func (o *recordedObserver) StateChanged(snap Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, snap)
}

func (o *recordedObserver) PartialTranscript(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.partials = append(o.partials, text)
}

func (o *recordedObserver) RecordingTick(time.Duration) {}

func (o *recordedObserver) PlaybackAudio(chunk playback.Chunk) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.audio = append(o.audio, chunk)
}

func (o *recordedObserver) Notice(kind Notice, detail string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notices = append(o.notices, kind)
	o.details = append(o.details, detail)
}

func (o *recordedObserver) noticeCount(kind Notice) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, k := range o.notices {
		if k == kind {
			n++
		}
	}
	return n
}

func (o *recordedObserver) audioCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.audio)
}

// holdTTSProvider keeps every utterance open until it is cancelled.
type holdTTSProvider struct{}

func (holdTTSProvider) StartStream(context.Context, voice.TTSSettings) (voice.TTSStream, error) {
	return &holdTTSStream{events: make(chan voice.TTSEvent)}, nil
}

type holdTTSStream struct {
	events chan voice.TTSEvent
	once   sync.Once
}

func (s *holdTTSStream) SendText(context.Context, string) error { return nil }
func (s *holdTTSStream) CloseInput(context.Context) error       { return nil }
func (s *holdTTSStream) Events() <-chan voice.TTSEvent          { return s.events }

func (s *holdTTSStream) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}

func newTestSession(t *testing.T, deps Deps) (*Session, *recordedObserver) {
	t.Helper()
	if deps.Interviewer == nil {
		deps.Interviewer = &stubInterviewer{}
	}
	if deps.Capture == nil {
		deps.Capture = voice.NewMockProvider()
	}
	if deps.Synthesis == nil {
		deps.Synthesis = voice.NewMockProvider()
	}
	s := NewSession(context.Background(), "", deps)
	obs := &recordedObserver{}
	s.SetObserver(obs)
	t.Cleanup(s.Close)
	return s, obs
}

func readyQuestion(t *testing.T, s *Session) Snapshot {
	t.Helper()
	if _, err := s.Configure(SessionConfig{Level: "beginner", Mode: "topic", Target: "Arrays"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	snap, err := s.GenerateQuestion(context.Background())
	if err != nil {
		t.Fatalf("GenerateQuestion() error = %v", err)
	}
	return snap
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestGenerateQuestionFromConfig(t *testing.T) {
	var got interviewer.QuestionRequest
	client := &stubInterviewer{question: func(_ context.Context, req interviewer.QuestionRequest) (string, error) {
		got = req
		return "Explain how a dynamic array grows.", nil
	}}
	s, _ := newTestSession(t, Deps{Interviewer: client})

	snap := readyQuestion(t, s)
	if snap.State != StateQuestionReady {
		t.Fatalf("state = %q, want %q", snap.State, StateQuestionReady)
	}
	if snap.Question == nil || snap.Question.Text == "" || snap.Question.Failed {
		t.Fatalf("question = %+v, want non-empty text", snap.Question)
	}
	want := interviewer.QuestionRequest{Level: "beginner", Topic: "Arrays"}
	if got != want {
		t.Fatalf("question request = %+v, want %+v", got, want)
	}
}

func TestGenerateQuestionRequiresConfig(t *testing.T) {
	s, _ := newTestSession(t, Deps{})

	if _, err := s.GenerateQuestion(context.Background()); !errors.Is(err, ErrIncompleteConfig) {
		t.Fatalf("GenerateQuestion() error = %v, want ErrIncompleteConfig", err)
	}
	if got := s.Snapshot().State; got != StateConfiguring {
		t.Fatalf("state = %q, want %q", got, StateConfiguring)
	}
}

func TestGenerateQuestionFailureLeavesPlaceholder(t *testing.T) {
	client := &stubInterviewer{question: func(context.Context, interviewer.QuestionRequest) (string, error) {
		return "", &interviewer.RemoteError{Op: interviewer.OpGenerateQuestion, Kind: "status", Status: 500, Err: errors.New("boom")}
	}}
	s, obs := newTestSession(t, Deps{Interviewer: client})

	snap := readyQuestion(t, s)
	if snap.State != StateQuestionReady {
		t.Fatalf("state = %q, want %q", snap.State, StateQuestionReady)
	}
	if snap.Question == nil || snap.Question.Text != QuestionErrorPlaceholder || !snap.Question.Failed {
		t.Fatalf("question = %+v, want failed placeholder", snap.Question)
	}
	if obs.noticeCount(NoticeQuestionFailed) != 1 {
		t.Fatalf("question_failed notices = %d, want 1", obs.noticeCount(NoticeQuestionFailed))
	}
	if _, err := s.SetAnswer("anything"); err != nil {
		t.Fatalf("SetAnswer() error = %v", err)
	}
	if _, err := s.SubmitAnswer(context.Background()); !errors.Is(err, ErrNoQuestion) {
		t.Fatalf("SubmitAnswer() error = %v, want ErrNoQuestion", err)
	}
	if _, err := s.StartRecording(); !errors.Is(err, ErrNoQuestion) {
		t.Fatalf("StartRecording() error = %v, want ErrNoQuestion", err)
	}
}

func TestFailureNoticeIsScrubbed(t *testing.T) {
	client := &stubInterviewer{question: func(context.Context, interviewer.QuestionRequest) (string, error) {
		return "", &interviewer.RemoteError{Op: interviewer.OpGenerateQuestion, Kind: "network", Err: errors.New(`Post "https://llm.example.com/v1?key=s3cr3t": connection refused`)}
	}}
	s, obs := newTestSession(t, Deps{Interviewer: client})
	readyQuestion(t, s)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.details) != 1 {
		t.Fatalf("notices = %d, want 1", len(obs.details))
	}
	if strings.Contains(obs.details[0], "s3cr3t") {
		t.Fatalf("notice detail leaked credential: %q", obs.details[0])
	}
}

func TestRecordingDeadlineReturnsToQuestionReady(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, obs := newTestSession(t, Deps{Recording: recording.Config{Deadline: 120 * time.Second, Tick: time.Second, Clock: clock}})
	readyQuestion(t, s)

	snap, err := s.StartRecording()
	if err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	if snap.State != StateRecording || !snap.Recording.Active {
		t.Fatalf("snapshot = %+v, want active recording", snap)
	}
	if snap.Recording.RemainingMS != 120000 {
		t.Fatalf("remaining = %dms, want 120000", snap.Recording.RemainingMS)
	}

	clock.BlockUntil(2)
	clock.Advance(120 * time.Second)

	waitFor(t, "deadline stop", func() bool {
		snap := s.Snapshot()
		return snap.State == StateQuestionReady && !snap.Recording.Active
	})
	if s.rec.Status().Active {
		t.Fatalf("recording controller still active after deadline")
	}
	waitFor(t, "deadline notice", func() bool { return obs.noticeCount(NoticeRecordingStopped) == 1 })
	if got := s.StopRecording(); got.State != StateQuestionReady {
		t.Fatalf("StopRecording() after deadline state = %q, want %q", got.State, StateQuestionReady)
	}
}

func TestEvaluationFailureShowsFallback(t *testing.T) {
	client := &stubInterviewer{evaluate: func(context.Context, interviewer.EvaluationRequest) (interviewer.Evaluation, error) {
		return interviewer.Evaluation{}, &interviewer.RemoteError{Op: interviewer.OpEvaluateAnswer, Kind: "network", Err: errors.New("refused")}
	}}
	s, obs := newTestSession(t, Deps{Interviewer: client})
	readyQuestion(t, s)

	if _, err := s.SetAnswer("O(n log n)"); err != nil {
		t.Fatalf("SetAnswer() error = %v", err)
	}
	snap, err := s.SubmitAnswer(context.Background())
	if err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}
	if snap.State != StateFeedbackShown {
		t.Fatalf("state = %q, want %q", snap.State, StateFeedbackShown)
	}
	if snap.Result == nil || snap.Result.Feedback != FallbackFeedback || !snap.Result.Degraded {
		t.Fatalf("result = %+v, want fallback feedback", snap.Result)
	}
	if snap.Result.Score != 0 || snap.Result.MaxScore != 0 {
		t.Fatalf("result scores = %v/%v, want zero", snap.Result.Score, snap.Result.MaxScore)
	}
	if snap.Playback.Active {
		t.Fatalf("fallback feedback must not be spoken")
	}
	if obs.noticeCount(NoticeEvaluationFailed) != 1 {
		t.Fatalf("evaluation_failed notices = %d, want 1", obs.noticeCount(NoticeEvaluationFailed))
	}
}

func TestSubmitAnswerSpeaksFeedback(t *testing.T) {
	var got interviewer.EvaluationRequest
	client := &stubInterviewer{evaluate: func(_ context.Context, req interviewer.EvaluationRequest) (interviewer.Evaluation, error) {
		got = req
		return interviewer.Evaluation{Feedback: "Correct and well explained.", Score: 8, MaxScore: 10}, nil
	}}
	s, obs := newTestSession(t, Deps{Interviewer: client, Voice: voice.TTSSettings{VoiceID: "coach", Rate: 0.8}})
	q := readyQuestion(t, s)

	if _, err := s.SetAnswer("O(log n)"); err != nil {
		t.Fatalf("SetAnswer() error = %v", err)
	}
	snap, err := s.SubmitAnswer(context.Background())
	if err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}
	if snap.State != StateFeedbackShown || snap.Result == nil || snap.Result.Score != 8 {
		t.Fatalf("snapshot = %+v, want feedback with score 8", snap)
	}
	if got.Question != q.Question.Text || got.Answer != "O(log n)" || got.Topic != "Arrays" {
		t.Fatalf("evaluation request = %+v", got)
	}

	waitFor(t, "feedback audio", func() bool { return obs.audioCount() == 4 })
	waitFor(t, "playback end", func() bool { return !s.Snapshot().Playback.Active })
	obs.mu.Lock()
	format := obs.audio[0].Format
	obs.mu.Unlock()
	if !strings.Contains(format, "voice=coach") || !strings.Contains(format, "rate=0.8") {
		t.Fatalf("audio format = %q, want configured voice and rate", format)
	}
}

func TestNextQuestionStopsPlaybackFirst(t *testing.T) {
	var (
		s              *Session
		activeAtCall   bool
		questionsAsked int
	)
	client := &stubInterviewer{question: func(context.Context, interviewer.QuestionRequest) (string, error) {
		questionsAsked++
		if questionsAsked > 1 {
			activeAtCall = s.play.Status().Active
		}
		return "Describe a queue.", nil
	}}
	s, _ = newTestSession(t, Deps{Interviewer: client, Synthesis: holdTTSProvider{}})
	readyQuestion(t, s)

	if _, err := s.SetAnswer("first in first out"); err != nil {
		t.Fatalf("SetAnswer() error = %v", err)
	}
	snap, err := s.SubmitAnswer(context.Background())
	if err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}
	if !snap.Playback.Active || !s.play.Status().Active {
		t.Fatalf("feedback playback not active: %+v", snap.Playback)
	}

	snap, err = s.GenerateQuestion(context.Background())
	if err != nil {
		t.Fatalf("GenerateQuestion() error = %v", err)
	}
	if activeAtCall {
		t.Fatalf("playback was still active when the next question was requested")
	}
	if snap.Playback.Active || s.play.Status().Active {
		t.Fatalf("playback active after next question")
	}
	if snap.State != StateQuestionReady || snap.Answer != "" || snap.Result != nil {
		t.Fatalf("snapshot = %+v, want fresh question", snap)
	}
}

func TestResetStopsRecordingAndPlayback(t *testing.T) {
	s, _ := newTestSession(t, Deps{Synthesis: holdTTSProvider{}})
	readyQuestion(t, s)

	if _, err := s.StartRecording(); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	if err := s.play.Speak(context.Background(), "side", "read this aloud"); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if !s.rec.Status().Active || !s.play.Status().Active {
		t.Fatalf("setup: recording %v playback %v, want both active", s.rec.Status().Active, s.play.Status().Active)
	}

	for i := 0; i < 2; i++ {
		snap := s.Reset()
		if snap.State != StateConfiguring || !snap.Config.IsZero() {
			t.Fatalf("Reset() #%d snapshot = %+v, want cleared configuring", i+1, snap)
		}
		if snap.Question != nil || snap.Answer != "" || snap.Result != nil {
			t.Fatalf("Reset() #%d left question state behind: %+v", i+1, snap)
		}
		if s.rec.Status().Active || s.play.Status().Active {
			t.Fatalf("Reset() #%d left a controller active", i+1)
		}
	}
}

func TestResetDiscardsInFlightQuestion(t *testing.T) {
	called := make(chan struct{})
	client := &stubInterviewer{question: func(ctx context.Context, _ interviewer.QuestionRequest) (string, error) {
		close(called)
		<-ctx.Done()
		return "", ctx.Err()
	}}
	s, obs := newTestSession(t, Deps{Interviewer: client})
	if _, err := s.Configure(SessionConfig{Level: "advanced", Mode: "role", Target: "Backend Developer"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := s.GenerateQuestion(context.Background())
		errc <- err
	}()
	<-called
	if got := s.Snapshot().State; got != StateGenerating {
		t.Fatalf("state = %q, want %q", got, StateGenerating)
	}
	if _, err := s.GenerateQuestion(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second GenerateQuestion() error = %v, want ErrInvalidTransition", err)
	}

	s.Reset()
	select {
	case err := <-errc:
		if !errors.Is(err, ErrSuperseded) {
			t.Fatalf("GenerateQuestion() error = %v, want ErrSuperseded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("GenerateQuestion() did not return after Reset()")
	}

	snap := s.Snapshot()
	if snap.State != StateConfiguring || snap.Question != nil {
		t.Fatalf("snapshot = %+v, want configuring without question", snap)
	}
	if obs.noticeCount(NoticeQuestionFailed) != 0 {
		t.Fatalf("discarded result raised a notice")
	}
}

func TestRecordedFragmentsAppendToAnswer(t *testing.T) {
	s, obs := newTestSession(t, Deps{Capture: voice.NewMockProvider("first part", "second part")})
	readyQuestion(t, s)

	if _, err := s.SetAnswer("typed"); err != nil {
		t.Fatalf("SetAnswer() error = %v", err)
	}
	if _, err := s.StartRecording(); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	ctx := context.Background()
	if err := s.FeedAudio(ctx, "AAAA", 16000, true); err != nil {
		t.Fatalf("FeedAudio() error = %v", err)
	}
	if err := s.FeedAudio(ctx, "AAAA", 16000, true); err != nil {
		t.Fatalf("FeedAudio() error = %v", err)
	}

	want := "typed first part second part"
	waitFor(t, "fragments", func() bool { return s.Snapshot().Answer == want })

	snap := s.StopRecording()
	if snap.State != StateQuestionReady || snap.Recording.Active {
		t.Fatalf("StopRecording() snapshot = %+v", snap)
	}
	if snap.Answer != want {
		t.Fatalf("answer = %q, want %q", snap.Answer, want)
	}
	obs.mu.Lock()
	partials := len(obs.partials)
	obs.mu.Unlock()
	if partials == 0 {
		t.Fatalf("expected partial transcripts")
	}
}

func TestCaptureUnavailableNoticedOnce(t *testing.T) {
	s, obs := newTestSession(t, Deps{Capture: voice.NewUnavailableProvider()})
	readyQuestion(t, s)

	for i := 0; i < 2; i++ {
		snap, err := s.StartRecording()
		if !errors.Is(err, recording.ErrCaptureUnavailable) {
			t.Fatalf("StartRecording() error = %v, want ErrCaptureUnavailable", err)
		}
		if snap.State != StateQuestionReady || snap.Recording.Active {
			t.Fatalf("snapshot = %+v, want question_ready without recording", snap)
		}
	}
	if got := obs.noticeCount(NoticeCaptureUnavailable); got != 1 {
		t.Fatalf("capture_unavailable notices = %d, want 1", got)
	}

	if _, err := s.SetAnswer("a typed answer"); err != nil {
		t.Fatalf("SetAnswer() error = %v", err)
	}
	if snap, err := s.SubmitAnswer(context.Background()); err != nil || snap.State != StateFeedbackShown {
		t.Fatalf("SubmitAnswer() = %q, %v", snap.State, err)
	}
}

func TestStartRecordingCancelsPlayback(t *testing.T) {
	s, _ := newTestSession(t, Deps{Synthesis: holdTTSProvider{}})
	readyQuestion(t, s)

	snap, err := s.SpeakQuestion()
	if err != nil {
		t.Fatalf("SpeakQuestion() error = %v", err)
	}
	if !snap.Playback.Active {
		t.Fatalf("SpeakQuestion() playback inactive")
	}

	snap, err = s.StartRecording()
	if err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	if snap.Playback.Active || s.play.Status().Active {
		t.Fatalf("playback still active after StartRecording()")
	}

	snap, err = s.SpeakQuestion()
	if err != nil {
		t.Fatalf("second SpeakQuestion() error = %v", err)
	}
	if snap.Recording.Active || s.rec.Status().Active {
		t.Fatalf("recording still active after SpeakQuestion()")
	}
	if snap.State != StateQuestionReady {
		t.Fatalf("state = %q, want %q", snap.State, StateQuestionReady)
	}
}

func TestPlaybackPauseAndCancel(t *testing.T) {
	s, _ := newTestSession(t, Deps{Synthesis: holdTTSProvider{}})
	readyQuestion(t, s)

	if _, err := s.SpeakQuestion(); err != nil {
		t.Fatalf("SpeakQuestion() error = %v", err)
	}
	if !s.PausePlayback() {
		t.Fatalf("PausePlayback() = false")
	}
	if snap := s.Snapshot(); !snap.Playback.Paused {
		t.Fatalf("playback = %+v, want paused", snap.Playback)
	}
	if !s.ResumePlayback() {
		t.Fatalf("ResumePlayback() = false")
	}
	if !s.CancelPlayback() {
		t.Fatalf("CancelPlayback() = false")
	}
	if s.CancelPlayback() {
		t.Fatalf("second CancelPlayback() = true")
	}
	if snap := s.Snapshot(); snap.Playback.Active || s.play.Status().Active {
		t.Fatalf("playback still active after cancel")
	}
}

func TestSynthesisUnavailableNoticedOnce(t *testing.T) {
	s, obs := newTestSession(t, Deps{Synthesis: voice.NewUnavailableProvider()})
	readyQuestion(t, s)

	for i := 0; i < 2; i++ {
		if _, err := s.SpeakQuestion(); !errors.Is(err, playback.ErrSynthesisUnavailable) {
			t.Fatalf("SpeakQuestion() error = %v, want ErrSynthesisUnavailable", err)
		}
	}
	if got := obs.noticeCount(NoticeSynthesisUnavailable); got != 1 {
		t.Fatalf("synthesis_unavailable notices = %d, want 1", got)
	}
	if s.Snapshot().Playback.Active {
		t.Fatalf("playback active without synthesis")
	}
}

func TestInvalidTransitions(t *testing.T) {
	s, _ := newTestSession(t, Deps{})

	if _, err := s.StartRecording(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("StartRecording() in configuring error = %v", err)
	}
	if _, err := s.SubmitAnswer(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("SubmitAnswer() in configuring error = %v", err)
	}
	if _, err := s.Configure(SessionConfig{Level: "expert", Mode: "topic", Target: "SQL"}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Configure(bad level) error = %v, want ErrInvalidConfig", err)
	}

	readyQuestion(t, s)
	if _, err := s.Configure(SessionConfig{Level: "beginner", Mode: "topic", Target: "SQL"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Configure() in question_ready error = %v", err)
	}
	if _, err := s.SubmitAnswer(context.Background()); !errors.Is(err, ErrEmptyAnswer) {
		t.Fatalf("SubmitAnswer(blank) error = %v, want ErrEmptyAnswer", err)
	}
}

func TestClosedSessionRejectsActions(t *testing.T) {
	s, _ := newTestSession(t, Deps{})
	readyQuestion(t, s)
	s.Close()

	if _, err := s.GenerateQuestion(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("GenerateQuestion() after Close() error = %v, want ErrClosed", err)
	}
	if s.rec.Status().Active || s.play.Status().Active {
		t.Fatalf("controllers active after Close()")
	}
}

func TestQuestionSnapshotPersisted(t *testing.T) {
	st := store.NewInMemoryStore(time.Hour)
	s, _ := newTestSession(t, Deps{Store: st})
	snap := readyQuestion(t, s)

	got, err := st.Load(context.Background(), s.ID())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Question != snap.Question.Text || got.Level != "beginner" || got.Target != "Arrays" {
		t.Fatalf("stored snapshot = %+v", got)
	}

	s.Reset()
	if _, err := st.Load(context.Background(), s.ID()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Load() after Reset() error = %v, want ErrNotFound", err)
	}
}

func TestDetachObserverKeepsReplacement(t *testing.T) {
	s, first := newTestSession(t, Deps{})
	second := &recordedObserver{}
	s.SetObserver(second)

	if s.DetachObserver(first) {
		t.Fatalf("DetachObserver(replaced) = true, want false")
	}
	readyQuestion(t, s)
	second.mu.Lock()
	n := len(second.states)
	second.mu.Unlock()
	if n == 0 {
		t.Fatalf("replacement observer saw no state changes after stale detach")
	}
	if !s.DetachObserver(second) {
		t.Fatalf("DetachObserver(current) = false, want true")
	}
}
