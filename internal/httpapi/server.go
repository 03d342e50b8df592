package httpapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/mockinterview/internal/config"
	"github.com/ent0n29/mockinterview/internal/observability"
	"github.com/ent0n29/mockinterview/internal/playback"
	"github.com/ent0n29/mockinterview/internal/practice"
	"github.com/ent0n29/mockinterview/internal/protocol"
	"github.com/ent0n29/mockinterview/internal/recording"
)

// RuntimeInfo describes the resolved backends, reported by the health endpoints.
type RuntimeInfo struct {
	InterviewerMode string
	StoreKind       string
	VoiceProvider   string
}

type Server struct {
	cfg      config.Config
	sessions *practice.Manager
	metrics  *observability.Metrics
	info     RuntimeInfo
	upgrader websocket.Upgrader
	static   http.Handler
}

func New(cfg config.Config, sessions *practice.Manager, metrics *observability.Metrics, info RuntimeInfo) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		metrics:  metrics,
		info:     info,
		static:   newStaticHandler(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may drive a practice session's microphone.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Get("/ui", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Handle("/ui/*", http.StripPrefix("/ui/", s.static))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Route("/v1/practice", func(r chi.Router) {
		r.Get("/catalog", s.handleCatalog)
		r.Post("/session", s.handleCreateSession)
		r.Get("/session/ws", s.handleSessionWS)
		r.Route("/session/{id}", func(r chi.Router) {
			r.Get("/", s.sessionAction(func(_ context.Context, sess *practice.Session, _ *http.Request) (practice.Snapshot, error) {
				return sess.Snapshot(), nil
			}))
			r.Post("/configure", s.sessionAction(handleConfigure))
			r.Post("/question", s.sessionAction(func(ctx context.Context, sess *practice.Session, _ *http.Request) (practice.Snapshot, error) {
				return sess.GenerateQuestion(ctx)
			}))
			r.Put("/answer", s.sessionAction(handleSetAnswer))
			r.Delete("/answer", s.sessionAction(func(_ context.Context, sess *practice.Session, _ *http.Request) (practice.Snapshot, error) {
				return sess.ClearAnswer()
			}))
			r.Post("/recording/start", s.sessionAction(func(_ context.Context, sess *practice.Session, _ *http.Request) (practice.Snapshot, error) {
				return sess.StartRecording()
			}))
			r.Post("/recording/stop", s.sessionAction(func(_ context.Context, sess *practice.Session, _ *http.Request) (practice.Snapshot, error) {
				return sess.StopRecording(), nil
			}))
			r.Post("/submit", s.sessionAction(func(ctx context.Context, sess *practice.Session, _ *http.Request) (practice.Snapshot, error) {
				return sess.SubmitAnswer(ctx)
			}))
			r.Post("/speak-question", s.sessionAction(func(_ context.Context, sess *practice.Session, _ *http.Request) (practice.Snapshot, error) {
				return sess.SpeakQuestion()
			}))
			r.Post("/playback/{action}", s.sessionAction(handlePlayback))
			r.Post("/reset", s.sessionAction(func(_ context.Context, sess *practice.Session, _ *http.Request) (practice.Snapshot, error) {
				return sess.Reset(), nil
			}))
			r.Post("/end", s.handleEndSession)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.runtimeStatus("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.runtimeStatus("ready"))
}

func (s *Server) runtimeStatus(status string) map[string]any {
	return map[string]any{
		"status":           status,
		"interviewer_mode": s.info.InterviewerMode,
		"store_kind":       s.info.StoreKind,
		"voice_provider":   s.info.VoiceProvider,
		"active_sessions":  s.sessions.ActiveCount(),
	}
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, practice.Catalog())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req configureRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sess := s.sessions.Create()
	snap := sess.Snapshot()
	cfg := req.sessionConfig()
	if !cfg.Normalize().IsZero() {
		var err error
		snap, err = sess.Configure(cfg)
		if err != nil {
			_ = s.sessions.End(sess.ID())
			respondSessionError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}
	if err := s.sessions.End(id); err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"session_id": id, "status": "ended"})
}

type sessionHandler func(ctx context.Context, sess *practice.Session, r *http.Request) (practice.Snapshot, error)

// sessionAction resolves {id} (restoring from the snapshot store when needed) and renders the result.
func (s *Server) sessionAction(fn sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
			return
		}
		sess, err := s.sessions.Restore(r.Context(), id)
		if err != nil {
			respondSessionError(w, err)
			return
		}
		snap, err := fn(r.Context(), sess, r)
		if err != nil {
			respondSessionError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, snap)
	}
}

type configureRequest struct {
	Level  string `json:"level"`
	Mode   string `json:"mode"`
	Target string `json:"target"`
}

func (c configureRequest) sessionConfig() practice.SessionConfig {
	return practice.SessionConfig{Level: c.Level, Mode: c.Mode, Target: c.Target}
}

type answerRequest struct {
	Answer *string `json:"answer"`
}

func handleConfigure(_ context.Context, sess *practice.Session, r *http.Request) (practice.Snapshot, error) {
	var req configureRequest
	if err := decodeJSON(r, &req); err != nil {
		return sess.Snapshot(), requestError{err}
	}
	return sess.Configure(req.sessionConfig())
}

func handleSetAnswer(_ context.Context, sess *practice.Session, r *http.Request) (practice.Snapshot, error) {
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		return sess.Snapshot(), requestError{err}
	}
	if req.Answer == nil {
		return sess.Snapshot(), requestError{errors.New("answer is required")}
	}
	return sess.SetAnswer(*req.Answer)
}

func handlePlayback(_ context.Context, sess *practice.Session, r *http.Request) (practice.Snapshot, error) {
	switch chi.URLParam(r, "action") {
	case "pause":
		sess.PausePlayback()
	case "resume":
		sess.ResumePlayback()
	case "cancel":
		sess.CancelPlayback()
	default:
		return sess.Snapshot(), requestError{errors.New("playback action must be pause, resume or cancel")}
	}
	return sess.Snapshot(), nil
}

type requestError struct{ err error }

func (e requestError) Error() string { return e.err.Error() }
func (e requestError) Unwrap() error { return e.err }

// errorStatus maps session errors onto HTTP status codes and stable error codes.
func errorStatus(err error) (int, string) {
	var reqErr requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, practice.ErrNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, practice.ErrIncompleteConfig), errors.Is(err, practice.ErrInvalidConfig):
		return http.StatusBadRequest, "invalid_config"
	case errors.Is(err, practice.ErrEmptyAnswer):
		return http.StatusBadRequest, "empty_answer"
	case errors.Is(err, practice.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, practice.ErrNoQuestion):
		return http.StatusConflict, "no_question"
	case errors.Is(err, practice.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, practice.ErrClosed):
		return http.StatusGone, "session_closed"
	case errors.Is(err, recording.ErrCaptureUnavailable):
		return http.StatusServiceUnavailable, "capture_unavailable"
	case errors.Is(err, recording.ErrNotRecording):
		return http.StatusConflict, "not_recording"
	case errors.Is(err, playback.ErrSynthesisUnavailable):
		return http.StatusServiceUnavailable, "synthesis_unavailable"
	case errors.Is(err, playback.ErrEmptyText):
		return http.StatusBadRequest, "empty_text"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func respondSessionError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	respondError(w, status, code, err.Error())
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}

	sess, err := s.sessions.Restore(r.Context(), sessionID)
	if err != nil {
		respondSessionError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.ObserveSessionEvent("ws_connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 256)
	link := &wsLink{sessionID: sessionID, outbound: outbound, metrics: s.metrics}
	sess.SetObserver(link)
	link.StateChanged(sess.Snapshot())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				data, err := sonic.Marshal(msg)
				if err != nil {
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					s.metrics.ObserveOutboundMessage("write", "error")
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.metrics.ObserveWSMessage("outbound", string(t))
				}
			}
		}
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	var inflight sync.WaitGroup
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			link.errorEvent("invalid_client_message", err)
			continue
		}
		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.ObserveWSMessage("inbound", string(t))
		}

		switch msg := parsed.(type) {
		case protocol.ClientAudioChunk:
			if err := sess.FeedAudio(ctx, msg.PCM16Base64, msg.SampleRate, msg.Commit); err != nil {
				link.sessionError(err)
			}
		case protocol.ClientControl:
			// Remote calls run off the read loop so reset and cancel stay responsive.
			if msg.Action == protocol.ActionGenerateQuestion || msg.Action == protocol.ActionSubmitAnswer {
				inflight.Add(1)
				go func() {
					defer inflight.Done()
					link.control(ctx, sess, msg)
				}()
				continue
			}
			link.control(ctx, sess, msg)
		}
	}

	cancel()
	// A reconnected client owns the session now; leave its recording and playback alone.
	if sess.DetachObserver(link) {
		sess.Teardown()
	}
	inflight.Wait()
	<-writerDone
	s.metrics.ObserveSessionEvent("ws_disconnected")
}

// wsLink adapts one websocket connection to practice.Observer. Sends never block.
type wsLink struct {
	sessionID string
	outbound  chan<- any
	metrics   *observability.Metrics
}

func (l *wsLink) send(t protocol.MessageType, msg any) {
	select {
	case l.outbound <- msg:
		l.metrics.ObserveOutboundMessage(string(t), "queued")
	default:
		l.metrics.ObserveOutboundMessage(string(t), "drop_full")
	}
}

func (l *wsLink) StateChanged(snap practice.Snapshot) {
	l.send(protocol.TypeSessionState, protocol.SessionState{Type: protocol.TypeSessionState, SessionID: l.sessionID, Snapshot: snap})
}

func (l *wsLink) PartialTranscript(text string) {
	l.send(protocol.TypeSTTPartial, protocol.STTPartial{Type: protocol.TypeSTTPartial, SessionID: l.sessionID, Text: text})
}

func (l *wsLink) RecordingTick(remaining time.Duration) {
	l.send(protocol.TypeRecordingTick, protocol.RecordingTick{Type: protocol.TypeRecordingTick, SessionID: l.sessionID, RemainingMS: remaining.Milliseconds()})
}

func (l *wsLink) PlaybackAudio(chunk playback.Chunk) {
	l.send(protocol.TypeAssistantAudio, protocol.AssistantAudioChunk{
		Type:        protocol.TypeAssistantAudio,
		SessionID:   l.sessionID,
		Seq:         chunk.Seq,
		Format:      chunk.Format,
		AudioBase64: chunk.AudioBase64,
	})
}

func (l *wsLink) Notice(kind practice.Notice, detail string) {
	l.send(protocol.TypeSystemEvent, protocol.SystemEvent{Type: protocol.TypeSystemEvent, SessionID: l.sessionID, Code: string(kind), Detail: detail})
}

func (l *wsLink) errorEvent(code string, err error) {
	l.send(protocol.TypeErrorEvent, protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: l.sessionID,
		Code:      code,
		Source:    "gateway",
		Detail:    err.Error(),
	})
}

func (l *wsLink) sessionError(err error) {
	status, code := errorStatus(err)
	l.send(protocol.TypeErrorEvent, protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: l.sessionID,
		Code:      code,
		Source:    "session",
		Retryable: status == http.StatusServiceUnavailable || status == http.StatusConflict,
		Detail:    err.Error(),
	})
}

func (l *wsLink) control(ctx context.Context, sess *practice.Session, msg protocol.ClientControl) {
	var err error
	switch msg.Action {
	case protocol.ActionConfigure:
		_, err = sess.Configure(practice.SessionConfig{Level: msg.Level, Mode: msg.Mode, Target: msg.Target})
	case protocol.ActionGenerateQuestion:
		_, err = sess.GenerateQuestion(ctx)
	case protocol.ActionStartRecording:
		_, err = sess.StartRecording()
	case protocol.ActionStopRecording:
		sess.StopRecording()
	case protocol.ActionSetAnswer:
		answer := ""
		if msg.Answer != nil {
			answer = *msg.Answer
		}
		_, err = sess.SetAnswer(answer)
	case protocol.ActionClearAnswer:
		_, err = sess.ClearAnswer()
	case protocol.ActionSubmitAnswer:
		_, err = sess.SubmitAnswer(ctx)
	case protocol.ActionSpeakQuestion:
		_, err = sess.SpeakQuestion()
	case protocol.ActionPausePlayback:
		sess.PausePlayback()
	case protocol.ActionResumePlayback:
		sess.ResumePlayback()
	case protocol.ActionCancelPlayback:
		sess.CancelPlayback()
	case protocol.ActionReset:
		sess.Reset()
	}
	// A superseded result is expected after reset; the client already has the newer state.
	if err != nil && !errors.Is(err, practice.ErrSuperseded) {
		l.sessionError(err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return errEmptyBody
	}
	return sonic.Unmarshal(raw, out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ClientAudioChunk:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.SessionState:
		return m.Type, true
	case protocol.STTPartial:
		return m.Type, true
	case protocol.RecordingTick:
		return m.Type, true
	case protocol.AssistantAudioChunk:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
