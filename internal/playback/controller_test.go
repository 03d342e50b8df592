package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ent0n29/mockinterview/internal/voice"
)

type recordedSink struct {
	mu     sync.Mutex
	events []string
	audio  []string
	ends   map[string]EndReason
}

func newRecordedSink() *recordedSink {
	return &recordedSink{ends: map[string]EndReason{}}
}

func (s *recordedSink) PlaybackStarted(id string) { s.add("started:" + id) }
func (s *recordedSink) PlaybackPaused(id string)  { s.add("paused:" + id) }
func (s *recordedSink) PlaybackResumed(id string) { s.add("resumed:" + id) }

func (s *recordedSink) PlaybackAudio(_ string, chunk Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, chunk.AudioBase64)
}

func (s *recordedSink) PlaybackEnded(id string, reason EndReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.ends[id]; dup {
		s.events = append(s.events, "duplicate_end:"+id)
	}
	s.ends[id] = reason
}

func (s *recordedSink) add(evt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *recordedSink) end(id string) (EndReason, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.ends[id]
	return r, ok
}

func (s *recordedSink) audioSnapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.audio...)
}

func (s *recordedSink) eventsSnapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

type stubTTSProvider struct {
	mu      sync.Mutex
	streams []*stubTTSStream
}

func (p *stubTTSProvider) StartStream(context.Context, voice.TTSSettings) (voice.TTSStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := &stubTTSStream{events: make(chan voice.TTSEvent, 16)}
	p.streams = append(p.streams, s)
	return s, nil
}

func (p *stubTTSProvider) last() *stubTTSStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streams[len(p.streams)-1]
}

type stubTTSStream struct {
	events chan voice.TTSEvent
	once   sync.Once
}

func (s *stubTTSStream) SendText(context.Context, string) error { return nil }
func (s *stubTTSStream) CloseInput(context.Context) error       { return nil }
func (s *stubTTSStream) Events() <-chan voice.TTSEvent          { return s.events }

func (s *stubTTSStream) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
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

func TestSpeakCompletesWithAllAudio(t *testing.T) {
	sink := newRecordedSink()
	c := New(voice.NewMockProvider(), sink, voice.TTSSettings{Rate: 0.8})

	if err := c.Speak(context.Background(), "utt-1", "one two three"); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	waitFor(t, "completion", func() bool { _, ok := sink.end("utt-1"); return ok })

	if reason, _ := sink.end("utt-1"); reason != EndCompleted {
		t.Fatalf("end reason = %q, want %q", reason, EndCompleted)
	}
	if got := sink.audioSnapshot(); len(got) != 3 {
		t.Fatalf("audio chunks = %d, want 3", len(got))
	}
	if c.Status().Active {
		t.Fatalf("Status().Active = true after completion")
	}
}

func TestSpeakSupersedesPreviousUtterance(t *testing.T) {
	sink := newRecordedSink()
	p := &stubTTSProvider{}
	c := New(p, sink, voice.TTSSettings{})

	if err := c.Speak(context.Background(), "utt-1", "first"); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if err := c.Speak(context.Background(), "utt-2", "second"); err != nil {
		t.Fatalf("second Speak() error = %v", err)
	}

	// The first utterance is fully ended before Speak returns.
	if reason, ok := sink.end("utt-1"); !ok || reason != EndSuperseded {
		t.Fatalf("utt-1 end = %q (seen %v), want superseded", reason, ok)
	}
	if got := c.Status().ID; got != "utt-2" {
		t.Fatalf("Status().ID = %q, want utt-2", got)
	}
	if !c.Cancel() {
		t.Fatalf("Cancel() = false, want true")
	}
}

func TestPauseHoldsAudioUntilResume(t *testing.T) {
	sink := newRecordedSink()
	p := &stubTTSProvider{}
	c := New(p, sink, voice.TTSSettings{})

	if c.Pause() {
		t.Fatalf("Pause() while idle = true, want false")
	}
	if err := c.Speak(context.Background(), "utt-1", "hello"); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if c.Resume() {
		t.Fatalf("Resume() while not paused = true, want false")
	}
	stream := p.last()
	stream.events <- voice.TTSEvent{Type: voice.TTSEventAudio, AudioBase64: "a"}
	waitFor(t, "first chunk", func() bool { return len(sink.audioSnapshot()) == 1 })

	if !c.Pause() {
		t.Fatalf("Pause() = false, want true")
	}
	if c.Pause() {
		t.Fatalf("second Pause() = true, want false")
	}
	if !c.Status().Paused {
		t.Fatalf("Status().Paused = false after pause")
	}
	stream.events <- voice.TTSEvent{Type: voice.TTSEventAudio, AudioBase64: "b"}
	stream.events <- voice.TTSEvent{Type: voice.TTSEventAudio, AudioBase64: "c"}
	stream.events <- voice.TTSEvent{Type: voice.TTSEventFinal}
	waitFor(t, "events consumed", func() bool { return len(stream.events) == 0 })
	time.Sleep(20 * time.Millisecond)

	if got := sink.audioSnapshot(); len(got) != 1 {
		t.Fatalf("audio while paused = %v, want only the first chunk", got)
	}
	if _, ok := sink.end("utt-1"); ok {
		t.Fatalf("utterance ended while paused")
	}

	if !c.Resume() {
		t.Fatalf("Resume() = false, want true")
	}
	waitFor(t, "completion", func() bool { _, ok := sink.end("utt-1"); return ok })
	got := sink.audioSnapshot()
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("audio = %v, want [a b c]", got)
	}
	if reason, _ := sink.end("utt-1"); reason != EndCompleted {
		t.Fatalf("end reason = %q, want completed", reason)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	sink := newRecordedSink()
	p := &stubTTSProvider{}
	c := New(p, sink, voice.TTSSettings{})

	if c.Cancel() {
		t.Fatalf("Cancel() while idle = true, want false")
	}
	if err := c.Speak(context.Background(), "utt-1", "hello"); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if !c.Cancel() {
		t.Fatalf("Cancel() = false, want true")
	}
	if c.Cancel() {
		t.Fatalf("second Cancel() = true, want false")
	}
	if reason, _ := sink.end("utt-1"); reason != EndCancelled {
		t.Fatalf("end reason = %q, want cancelled", reason)
	}
	for _, evt := range sink.eventsSnapshot() {
		if evt == "duplicate_end:utt-1" {
			t.Fatalf("PlaybackEnded delivered twice")
		}
	}
}

func TestSynthesisErrorEndsUtterance(t *testing.T) {
	sink := newRecordedSink()
	p := &stubTTSProvider{}
	c := New(p, sink, voice.TTSSettings{})

	if err := c.Speak(context.Background(), "utt-1", "hello"); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	p.last().events <- voice.TTSEvent{Type: voice.TTSEventError, Code: "network"}
	waitFor(t, "failure", func() bool { _, ok := sink.end("utt-1"); return ok })
	if reason, _ := sink.end("utt-1"); reason != EndFailed {
		t.Fatalf("end reason = %q, want failed", reason)
	}
}

func TestSpeakRejectsEmptyTextAndMissingSynthesis(t *testing.T) {
	c := New(voice.NewMockProvider(), nil, voice.TTSSettings{})
	if err := c.Speak(context.Background(), "", "   "); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("Speak(blank) error = %v, want ErrEmptyText", err)
	}

	c = New(voice.NewUnavailableProvider(), nil, voice.TTSSettings{})
	if err := c.Speak(context.Background(), "", "hello"); !errors.Is(err, ErrSynthesisUnavailable) {
		t.Fatalf("Speak() error = %v, want ErrSynthesisUnavailable", err)
	}
	if c.Status().Active {
		t.Fatalf("Status().Active = true without synthesis")
	}
}
