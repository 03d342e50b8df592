package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions    prometheus.Gauge
	SessionEvents     *prometheus.CounterVec
	WSMessages        *prometheus.CounterVec
	OutboundMessages  *prometheus.CounterVec
	RemoteCalls       *prometheus.CounterVec
	RemoteCallLatency *prometheus.HistogramVec
	RecordingStops    *prometheus.CounterVec
	PlaybackEnds      *prometheus.CounterVec

	stages *stageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live practice sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Practice session events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		OutboundMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_messages_total",
			Help:      "Outbound websocket queue results by message type.",
		}, []string{"type", "result"}),
		RemoteCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Interviewer remote calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		RemoteCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_latency_ms",
			Help:      "Interviewer remote call latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000},
		}, []string{"op"}),
		RecordingStops: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recording_stops_total",
			Help:      "Recording sessions ended by reason.",
		}, []string{"reason"}),
		PlaybackEnds: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_ends_total",
			Help:      "Playback utterances ended by reason.",
		}, []string{"reason"}),
		stages: newStageWindow(256),
	}
}

// ObserveRemoteCall records one interviewer call in the counters, the histogram and the stage window.
func (m *Metrics) ObserveRemoteCall(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	ms := float64(d.Milliseconds())
	m.RemoteCalls.WithLabelValues(op, outcome).Inc()
	m.RemoteCallLatency.WithLabelValues(op).Observe(ms)
	m.stages.Observe(op, ms)
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stages.Observe(stage, float64(d.Milliseconds()))
}

func (m *Metrics) ObserveIndicator(name string) {
	if m == nil {
		return
	}
	m.stages.ObserveIndicator(name)
}

func (m *Metrics) ObserveSessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveRecordingStop(reason string) {
	if m == nil {
		return
	}
	m.RecordingStops.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObservePlaybackEnd(reason string) {
	if m == nil {
		return
	}
	m.PlaybackEnds.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func (m *Metrics) ObserveOutboundMessage(msgType, result string) {
	if m == nil {
		return
	}
	m.OutboundMessages.WithLabelValues(msgType, result).Inc()
}

func (m *Metrics) SnapshotStages() StageSnapshot {
	if m == nil {
		return StageSnapshot{GeneratedAt: time.Now().UTC()}
	}
	return m.stages.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
