package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ent0n29/mockinterview/internal/voice"
)

var (
	ErrEmptyText            = errors.New("nothing to speak")
	ErrSynthesisUnavailable = errors.New("speech synthesis unavailable")
)

type EndReason string

const (
	EndCompleted  EndReason = "completed"
	EndCancelled  EndReason = "cancelled"
	EndSuperseded EndReason = "superseded"
	EndFailed     EndReason = "failed"
)

type Chunk struct {
	Seq         int
	AudioBase64 string
	Format      string
}

// Sink receives utterance events in order. PlaybackEnded is delivered exactly once per
// started utterance and nothing follows it. Implementations must not block or call back
// into the Controller.
type Sink interface {
	PlaybackStarted(id string)
	PlaybackAudio(id string, chunk Chunk)
	PlaybackPaused(id string)
	PlaybackResumed(id string)
	PlaybackEnded(id string, reason EndReason)
}

type Status struct {
	Active bool
	Paused bool
	ID     string
}

// Controller plays at most one utterance at a time; a new Speak supersedes the old one.
type Controller struct {
	provider voice.TTSProvider
	sink     Sink
	settings voice.TTSSettings

	mu      sync.Mutex
	current *utterance
}

type utterance struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	stream voice.TTSStream

	// deliverMu serializes sink calls for this utterance.
	deliverMu sync.Mutex

	mu        sync.Mutex
	paused    bool
	held      []Chunk
	finalSeen bool
	seq       int

	once     sync.Once
	done     chan struct{}
	pumpDone chan struct{}
}

func New(provider voice.TTSProvider, sink Sink, settings voice.TTSSettings) *Controller {
	if sink == nil {
		sink = nopSink{}
	}
	return &Controller{provider: provider, sink: sink, settings: settings}
}

// Speak starts a new utterance. ctx bounds the whole utterance, not only the call.
func (c *Controller) Speak(ctx context.Context, id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}

	c.mu.Lock()
	previous := c.current
	c.current = nil
	c.mu.Unlock()
	if previous != nil {
		c.stop(previous, EndSuperseded)
	}

	if c.provider == nil {
		return ErrSynthesisUnavailable
	}

	uctx, cancel := context.WithCancel(ctx)
	stream, err := c.provider.StartStream(uctx, c.settings)
	if err != nil {
		cancel()
		if errors.Is(err, voice.ErrUnavailable) {
			return fmt.Errorf("%w: %v", ErrSynthesisUnavailable, err)
		}
		return fmt.Errorf("start synthesis: %w", err)
	}

	u := &utterance{
		id:       id,
		ctx:      uctx,
		cancel:   cancel,
		stream:   stream,
		done:     make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
	c.sink.PlaybackStarted(u.id)

	c.mu.Lock()
	raced := c.current
	c.current = u
	c.mu.Unlock()
	if raced != nil {
		c.stop(raced, EndSuperseded)
	}

	go c.pump(u)

	if err := stream.SendText(uctx, text); err != nil {
		c.stop(u, EndFailed)
		return fmt.Errorf("send text: %w", err)
	}
	if err := stream.CloseInput(uctx); err != nil {
		c.stop(u, EndFailed)
		return fmt.Errorf("close input: %w", err)
	}
	return nil
}

func (c *Controller) Pause() bool {
	u := c.active()
	if u == nil {
		return false
	}
	u.deliverMu.Lock()
	defer u.deliverMu.Unlock()
	if u.finished() {
		return false
	}
	u.mu.Lock()
	if u.paused {
		u.mu.Unlock()
		return false
	}
	u.paused = true
	u.mu.Unlock()
	c.sink.PlaybackPaused(u.id)
	return true
}

// Resume flushes chunks held while paused, then reports completion if the final event already arrived.
func (c *Controller) Resume() bool {
	u := c.active()
	if u == nil {
		return false
	}
	u.deliverMu.Lock()
	if u.finished() {
		u.deliverMu.Unlock()
		return false
	}
	u.mu.Lock()
	if !u.paused {
		u.mu.Unlock()
		u.deliverMu.Unlock()
		return false
	}
	u.paused = false
	held := u.held
	u.held = nil
	complete := u.finalSeen
	u.mu.Unlock()

	c.sink.PlaybackResumed(u.id)
	for _, chunk := range held {
		c.sink.PlaybackAudio(u.id, chunk)
	}
	u.deliverMu.Unlock()

	if complete {
		c.finish(u, EndCompleted)
	}
	return true
}

// Cancel force-stops the active utterance. It reports false when nothing was playing.
func (c *Controller) Cancel() bool {
	u := c.active()
	if u == nil {
		return false
	}
	return c.stop(u, EndCancelled)
}

// CancelID cancels the active utterance only when its id matches.
func (c *Controller) CancelID(id string) bool {
	u := c.active()
	if u == nil || u.id != id {
		return false
	}
	return c.stop(u, EndCancelled)
}

func (c *Controller) Status() Status {
	u := c.active()
	if u == nil {
		return Status{}
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return Status{Active: true, Paused: u.paused, ID: u.id}
}

func (c *Controller) active() *utterance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Controller) pump(u *utterance) {
	defer close(u.pumpDone)
	events := u.stream.Events()
	for {
		select {
		case <-u.done:
			return
		case <-u.ctx.Done():
			c.finish(u, EndCancelled)
			return
		case evt, ok := <-events:
			if !ok {
				c.finish(u, EndFailed)
				return
			}
			switch evt.Type {
			case voice.TTSEventAudio:
				c.deliver(u, evt)
			case voice.TTSEventFinal:
				u.mu.Lock()
				u.finalSeen = true
				paused := u.paused
				u.mu.Unlock()
				if !paused {
					c.finish(u, EndCompleted)
				}
				return
			case voice.TTSEventError:
				c.finish(u, EndFailed)
				return
			}
		}
	}
}

func (c *Controller) deliver(u *utterance, evt voice.TTSEvent) {
	u.deliverMu.Lock()
	defer u.deliverMu.Unlock()
	if u.finished() {
		return
	}
	u.mu.Lock()
	u.seq++
	chunk := Chunk{Seq: u.seq, AudioBase64: evt.AudioBase64, Format: evt.Format}
	if u.paused {
		u.held = append(u.held, chunk)
		u.mu.Unlock()
		return
	}
	u.mu.Unlock()
	c.sink.PlaybackAudio(u.id, chunk)
}

func (c *Controller) stop(u *utterance, reason EndReason) bool {
	stopped := c.finish(u, reason)
	<-u.pumpDone
	return stopped
}

func (c *Controller) finish(u *utterance, reason EndReason) bool {
	stopped := false
	u.once.Do(func() {
		stopped = true
		close(u.done)
		u.cancel()
		_ = u.stream.Close()

		c.mu.Lock()
		if c.current == u {
			c.current = nil
		}
		c.mu.Unlock()

		u.deliverMu.Lock()
		c.sink.PlaybackEnded(u.id, reason)
		u.deliverMu.Unlock()
	})
	return stopped
}

func (u *utterance) finished() bool {
	select {
	case <-u.done:
		return true
	default:
		return false
	}
}

type nopSink struct{}

func (nopSink) PlaybackStarted(string)          {}
func (nopSink) PlaybackAudio(string, Chunk)     {}
func (nopSink) PlaybackPaused(string)           {}
func (nopSink) PlaybackResumed(string)          {}
func (nopSink) PlaybackEnded(string, EndReason) {}
