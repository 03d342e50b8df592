package recording

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/ent0n29/mockinterview/internal/voice"
)

var (
	ErrCaptureUnavailable = errors.New("speech capture unavailable")
	ErrNotRecording       = errors.New("no active recording")
)

const (
	DefaultDeadline = 120 * time.Second
	DefaultTick     = time.Second
)

// StopReason says which path ended a capture. Every path goes through the same finish.
type StopReason string

const (
	StopManual      StopReason = "manual"
	StopDeadline    StopReason = "deadline"
	StopEngineEnded StopReason = "engine_ended"
	StopEngineError StopReason = "engine_error"
	StopSuperseded  StopReason = "superseded"
	StopTeardown    StopReason = "teardown"
)

// Listener receives capture events. Calls for one capture come in order and
// RecordingStopped is delivered exactly once per started capture.
// Implementations must not call back into Stop or Start from these methods.
type Listener interface {
	RecordingStarted(id string, deadline time.Time)
	RecordingTick(id string, remaining time.Duration)
	PartialTranscript(id, text string)
	FragmentFinalized(id, text string)
	RecordingStopped(id string, reason StopReason)
}

type Config struct {
	Deadline time.Duration
	Tick     time.Duration
	Clock    clockwork.Clock
}

type Status struct {
	Active    bool
	ID        string
	Deadline  time.Time
	Remaining time.Duration
}

// Controller owns at most one open capture stream at a time.
type Controller struct {
	provider voice.STTProvider
	listener Listener
	deadline time.Duration
	tick     time.Duration
	clock    clockwork.Clock

	mu      sync.Mutex
	current *capture
}

type capture struct {
	id       string
	ctx      context.Context
	cancel   context.CancelFunc
	stt      voice.STTSession
	events   <-chan voice.STTEvent
	ticker   clockwork.Ticker
	expiry   clockwork.Timer
	deadline time.Time

	once      sync.Once
	done      chan struct{}
	watchDone chan struct{}
}

func New(provider voice.STTProvider, listener Listener, cfg Config) *Controller {
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}
	if cfg.Tick <= 0 || cfg.Tick > cfg.Deadline {
		cfg.Tick = DefaultTick
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if listener == nil {
		listener = nopListener{}
	}
	return &Controller{
		provider: provider,
		listener: listener,
		deadline: cfg.Deadline,
		tick:     cfg.Tick,
		clock:    cfg.Clock,
	}
}

// Start opens a capture stream and arms the deadline. An active capture is stopped first.
// The capture lives until a stop path fires or ctx is canceled.
func (c *Controller) Start(ctx context.Context, id string) (Status, error) {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}

	c.mu.Lock()
	previous := c.current
	c.current = nil
	c.mu.Unlock()
	if previous != nil {
		c.stop(previous, StopSuperseded)
	}

	if c.provider == nil {
		return Status{}, ErrCaptureUnavailable
	}

	captureCtx, cancel := context.WithCancel(ctx)
	stt, events, err := c.provider.StartSession(captureCtx, id)
	if err != nil {
		cancel()
		if errors.Is(err, voice.ErrUnavailable) {
			return Status{}, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
		}
		return Status{}, fmt.Errorf("start capture: %w", err)
	}

	cp := &capture{
		id:        id,
		ctx:       captureCtx,
		cancel:    cancel,
		stt:       stt,
		events:    events,
		ticker:    c.clock.NewTicker(c.tick),
		expiry:    c.clock.NewTimer(c.deadline),
		deadline:  c.clock.Now().Add(c.deadline),
		done:      make(chan struct{}),
		watchDone: make(chan struct{}),
	}
	c.listener.RecordingStarted(cp.id, cp.deadline)

	c.mu.Lock()
	raced := c.current
	c.current = cp
	c.mu.Unlock()
	if raced != nil {
		c.stop(raced, StopSuperseded)
	}

	go c.watch(cp)
	return Status{Active: true, ID: cp.id, Deadline: cp.deadline, Remaining: c.deadline}, nil
}

// Stop ends the active capture. It reports false when nothing was active.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	cp := c.current
	c.mu.Unlock()
	if cp == nil {
		return false
	}
	return c.stop(cp, StopManual)
}

// StopID ends the active capture only when its id matches.
func (c *Controller) StopID(id string) bool {
	c.mu.Lock()
	cp := c.current
	c.mu.Unlock()
	if cp == nil || cp.id != id {
		return false
	}
	return c.stop(cp, StopManual)
}

// FeedAudio forwards client audio into the active capture stream.
func (c *Controller) FeedAudio(ctx context.Context, audioBase64 string, sampleRate int, commit bool) error {
	c.mu.Lock()
	cp := c.current
	c.mu.Unlock()
	if cp == nil {
		return ErrNotRecording
	}
	return cp.stt.SendAudioChunk(ctx, audioBase64, sampleRate, commit)
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	cp := c.current
	c.mu.Unlock()
	if cp == nil {
		return Status{}
	}
	remaining := cp.deadline.Sub(c.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	return Status{Active: true, ID: cp.id, Deadline: cp.deadline, Remaining: remaining}
}

func (c *Controller) watch(cp *capture) {
	defer close(cp.watchDone)
	for {
		select {
		case <-cp.done:
			return
		case <-cp.ctx.Done():
			c.finish(cp, StopTeardown)
			return
		case <-cp.expiry.Chan():
			c.finish(cp, StopDeadline)
			return
		case <-cp.ticker.Chan():
			remaining := cp.deadline.Sub(c.clock.Now())
			if remaining <= 0 {
				c.finish(cp, StopDeadline)
				return
			}
			c.listener.RecordingTick(cp.id, remaining)
		case evt, ok := <-cp.events:
			if !ok {
				c.finish(cp, StopEngineEnded)
				return
			}
			if cp.finished() {
				return
			}
			switch evt.Type {
			case voice.STTEventCommitted:
				if text := strings.TrimSpace(evt.Text); text != "" {
					c.listener.FragmentFinalized(cp.id, text)
				}
			case voice.STTEventPartial:
				if text := strings.TrimSpace(evt.Text); text != "" {
					c.listener.PartialTranscript(cp.id, text)
				}
			case voice.STTEventError:
				c.finish(cp, StopEngineError)
				return
			}
		}
	}
}

// stop finishes cp and waits for its watcher so no event for it is delivered afterwards.
func (c *Controller) stop(cp *capture, reason StopReason) bool {
	stopped := c.finish(cp, reason)
	<-cp.watchDone
	return stopped
}

func (c *Controller) finish(cp *capture, reason StopReason) bool {
	stopped := false
	cp.once.Do(func() {
		stopped = true
		close(cp.done)
		cp.ticker.Stop()
		cp.expiry.Stop()
		cp.cancel()
		_ = cp.stt.Close()

		c.mu.Lock()
		if c.current == cp {
			c.current = nil
		}
		c.mu.Unlock()

		c.listener.RecordingStopped(cp.id, reason)
	})
	return stopped
}

func (cp *capture) finished() bool {
	select {
	case <-cp.done:
		return true
	default:
		return false
	}
}

type nopListener struct{}

func (nopListener) RecordingStarted(string, time.Time)  {}
func (nopListener) RecordingTick(string, time.Duration) {}
func (nopListener) PartialTranscript(string, string)    {}
func (nopListener) FragmentFinalized(string, string)    {}
func (nopListener) RecordingStopped(string, StopReason) {}
