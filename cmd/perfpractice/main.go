package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/mockinterview/internal/audio"
	"github.com/ent0n29/mockinterview/internal/practice"
	"github.com/ent0n29/mockinterview/internal/protocol"
)

type options struct {
	baseURL      string
	level        string
	mode         string
	target       string
	rounds       int
	chunkMS      int
	answerWAV    string
	typedAnswer  string
	stateTimeout time.Duration
	verbose      bool
}

type clip struct {
	pcm        []byte
	sampleRate int
}

type wsMessage struct {
	Type     string            `json:"type"`
	Code     string            `json:"code,omitempty"`
	Detail   string            `json:"detail,omitempty"`
	Snapshot practice.Snapshot `json:"snapshot"`
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfpractice: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "perfpractice: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	var timeoutMS int

	flag.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "practice service base URL")
	flag.StringVar(&cfg.level, "level", practice.LevelIntermediate, "difficulty level")
	flag.StringVar(&cfg.mode, "mode", practice.ModeTopic, "role or topic")
	flag.StringVar(&cfg.target, "target", "Data Structures", "role or topic name")
	flag.IntVar(&cfg.rounds, "rounds", 5, "question/answer rounds to replay")
	flag.IntVar(&cfg.chunkMS, "chunk-ms", 100, "audio chunk size in milliseconds")
	flag.StringVar(&cfg.answerWAV, "answer-wav", "", "optional PCM16 WAV streamed as the spoken answer")
	flag.StringVar(&cfg.typedAnswer, "typed-answer", "I would use a hash map for constant time lookups.", "answer used when capture yields no text")
	flag.IntVar(&timeoutMS, "state-timeout-ms", 30000, "timeout waiting for each state transition in milliseconds")
	flag.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	flag.Parse()

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.rounds <= 0 {
		return options{}, fmt.Errorf("rounds must be > 0")
	}
	if cfg.chunkMS < 10 || cfg.chunkMS > 2000 {
		return options{}, fmt.Errorf("chunk-ms must be in [10,2000]")
	}
	if timeoutMS < 1000 {
		timeoutMS = 1000
	}
	cfg.stateTimeout = time.Duration(timeoutMS) * time.Millisecond
	return cfg, nil
}

func run(cfg options) error {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Minute)
	defer cancel()

	answer, err := loadClip(cfg.answerWAV)
	if err != nil {
		return fmt.Errorf("load answer audio: %w", err)
	}

	httpClient := &http.Client{Timeout: 45 * time.Second}
	sessionID, err := createSession(ctx, httpClient, cfg)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer func() {
		_ = endSession(context.Background(), httpClient, cfg.baseURL, sessionID)
	}()

	wsURL, err := wsURLForSession(cfg.baseURL, sessionID)
	if err != nil {
		return fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	states := make(chan practice.Snapshot, 256)
	readErrCh := make(chan error, 1)
	go readLoop(conn, states, readErrCh, cfg.verbose)

	if cfg.verbose {
		fmt.Printf("perfpractice: session=%s rounds=%d target=%q\n", sessionID, cfg.rounds, cfg.target)
	}

	samples := map[string][]time.Duration{}
	for i := 0; i < cfg.rounds; i++ {
		start := time.Now()
		if err := sendControl(conn, sessionID, protocol.ActionGenerateQuestion, nil); err != nil {
			return err
		}
		snap, err := awaitState(states, readErrCh, cfg.stateTimeout, func(s practice.Snapshot) bool {
			return s.State == practice.StateQuestionReady && s.Question != nil
		})
		if err != nil {
			return fmt.Errorf("round %d question: %w", i+1, err)
		}
		samples["question"] = append(samples["question"], time.Since(start))
		if cfg.verbose {
			fmt.Printf("perfpractice: round %d/%d question=%q\n", i+1, cfg.rounds, snap.Question.Text)
		}

		start = time.Now()
		if err := sendControl(conn, sessionID, protocol.ActionStartRecording, nil); err == nil {
			if err := sendAnswerAudio(conn, sessionID, answer, cfg.chunkMS); err != nil {
				return fmt.Errorf("round %d send audio: %w", i+1, err)
			}
			snap, _ = awaitState(states, readErrCh, 2*time.Second, func(s practice.Snapshot) bool {
				return strings.TrimSpace(s.Answer) != ""
			})
			_ = sendControl(conn, sessionID, protocol.ActionStopRecording, nil)
		}
		samples["capture"] = append(samples["capture"], time.Since(start))
		if strings.TrimSpace(snap.Answer) == "" {
			typed := cfg.typedAnswer
			if err := sendControl(conn, sessionID, protocol.ActionSetAnswer, &typed); err != nil {
				return err
			}
		}

		start = time.Now()
		if err := sendControl(conn, sessionID, protocol.ActionSubmitAnswer, nil); err != nil {
			return err
		}
		snap, err = awaitState(states, readErrCh, cfg.stateTimeout, func(s practice.Snapshot) bool {
			return s.State == practice.StateFeedbackShown && s.Result != nil
		})
		if err != nil {
			return fmt.Errorf("round %d evaluation: %w", i+1, err)
		}
		samples["evaluation"] = append(samples["evaluation"], time.Since(start))
		if cfg.verbose {
			fmt.Printf("perfpractice: round %d/%d score=%.0f/%.0f degraded=%v\n", i+1, cfg.rounds, snap.Result.Score, snap.Result.MaxScore, snap.Result.Degraded)
		}
	}

	for _, stage := range []string{"question", "capture", "evaluation"} {
		fmt.Println(summarize(stage, samples[stage]))
	}
	return nil
}

func loadClip(path string) (clip, error) {
	if strings.TrimSpace(path) == "" {
		return clip{pcm: audio.SilencePCM16(1500*time.Millisecond, 16000), sampleRate: 16000}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return clip{}, err
	}
	pcm, sampleRate, err := audio.DecodeWAVPCM16(raw)
	if err != nil {
		return clip{}, err
	}
	return clip{pcm: pcm, sampleRate: sampleRate}, nil
}

func createSession(ctx context.Context, client *http.Client, cfg options) (string, error) {
	payload, err := sonic.Marshal(map[string]string{"level": cfg.level, "mode": cfg.mode, "target": cfg.target})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.baseURL+"/v1/practice/session", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var out practice.Snapshot
	if err := sonic.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.SessionID) == "" {
		return "", fmt.Errorf("missing session_id in response")
	}
	return out.SessionID, nil
}

func endSession(ctx context.Context, client *http.Client, baseURL, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/practice/session/"+url.PathEscape(sessionID)+"/end", nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
	return nil
}

func wsURLForSession(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", fmt.Errorf("base-url host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/practice/session/ws"
	q := u.Query()
	q.Set("session_id", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func readLoop(conn *websocket.Conn, states chan<- practice.Snapshot, readErrCh chan<- error, verbose bool) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case readErrCh <- err:
			default:
			}
			return
		}

		var msg wsMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch protocol.MessageType(msg.Type) {
		case protocol.TypeSessionState:
			select {
			case states <- msg.Snapshot:
			default:
			}
		case protocol.TypeErrorEvent, protocol.TypeSystemEvent:
			if verbose {
				fmt.Fprintf(os.Stderr, "perfpractice: %s code=%s detail=%s\n", msg.Type, msg.Code, msg.Detail)
			}
		}
	}
}

func sendControl(conn *websocket.Conn, sessionID, action string, answer *string) error {
	return writeJSON(conn, protocol.ClientControl{
		Type:      protocol.TypeClientControl,
		SessionID: sessionID,
		Action:    action,
		Answer:    answer,
	})
}

func sendAnswerAudio(conn *websocket.Conn, sessionID string, c clip, chunkMS int) error {
	bytesPerChunk := c.sampleRate * 2 * chunkMS / 1000
	if bytesPerChunk%2 != 0 {
		bytesPerChunk++
	}
	if bytesPerChunk < 2 {
		bytesPerChunk = 2
	}
	seq := 0
	for off := 0; off < len(c.pcm); off += bytesPerChunk {
		end := off + bytesPerChunk
		if end > len(c.pcm) {
			end = len(c.pcm)
		}
		seq++
		msg := protocol.ClientAudioChunk{
			Type:        protocol.TypeClientAudioChunk,
			SessionID:   sessionID,
			Seq:         seq,
			PCM16Base64: base64.StdEncoding.EncodeToString(c.pcm[off:end]),
			SampleRate:  c.sampleRate,
			Commit:      end == len(c.pcm),
			TSMs:        time.Now().UnixMilli(),
		}
		if err := writeJSON(conn, msg); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(conn *websocket.Conn, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func awaitState(states <-chan practice.Snapshot, readErrCh <-chan error, timeout time.Duration, match func(practice.Snapshot) bool) (practice.Snapshot, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	var last practice.Snapshot
	for {
		select {
		case snap := <-states:
			if snap.Version < last.Version {
				continue
			}
			last = snap
			if match(snap) {
				return snap, nil
			}
		case err := <-readErrCh:
			return last, err
		case <-timer.C:
			return last, fmt.Errorf("timeout after %s", timeout)
		}
	}
}

func summarize(stage string, samples []time.Duration) string {
	if len(samples) == 0 {
		return fmt.Sprintf("%-10s samples=0", stage)
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return fmt.Sprintf("%-10s samples=%d p50=%dms p95=%dms max=%dms",
		stage, len(sorted), percentile(sorted, 0.50).Milliseconds(), percentile(sorted, 0.95).Milliseconds(), sorted[len(sorted)-1].Milliseconds())
}

// percentile expects sorted input and uses nearest-rank.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
