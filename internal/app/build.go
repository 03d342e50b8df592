package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ent0n29/mockinterview/internal/config"
	"github.com/ent0n29/mockinterview/internal/httpapi"
	"github.com/ent0n29/mockinterview/internal/interviewer"
	"github.com/ent0n29/mockinterview/internal/observability"
	"github.com/ent0n29/mockinterview/internal/practice"
	"github.com/ent0n29/mockinterview/internal/recording"
	"github.com/ent0n29/mockinterview/internal/store"
	"github.com/ent0n29/mockinterview/internal/voice"
)

type BuildResult struct {
	Config          config.Config
	API             *httpapi.Server
	Sessions        *practice.Manager
	Metrics         *observability.Metrics
	InterviewerMode string
	StoreKind       string
	VoiceDetail     string

	// Cleanup should be called on shutdown to release sessions and the snapshot store.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	log := observability.WithFields("component", "app")

	snapshots, storeKind, err := store.NewSnapshotStore(ctx, store.Config{
		DatabaseURL:   cfg.DatabaseURL,
		RedisURL:      cfg.RedisURL,
		RedisPassword: cfg.RedisPassword,
		TTL:           cfg.SnapshotTTL,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("snapshot store init failed: %w", err)
	}

	client, mode, err := interviewer.NewClient(ctx, interviewer.Config{
		Mode:         cfg.InterviewerMode,
		URL:          cfg.InterviewerURL,
		Timeout:      cfg.InterviewerTimeout,
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
	})
	if err != nil {
		_ = snapshots.Close()
		return nil, fmt.Errorf("interviewer client init failed: %w", err)
	}

	voiceSetup, err := resolveVoiceProviders(cfg)
	if err != nil {
		_ = snapshots.Close()
		return nil, err
	}
	cfg.VoiceProvider = voiceSetup.resolvedProvider

	sessions := practice.NewManager(practice.Deps{
		Interviewer: client,
		Capture:     voiceSetup.sttProvider,
		Synthesis:   voiceSetup.ttsProvider,
		Recording: recording.Config{
			Deadline: cfg.RecordingDeadline,
			Tick:     cfg.RecordingTick,
		},
		Voice: voice.TTSSettings{
			VoiceID: cfg.PlaybackVoiceID,
			Rate:    cfg.PlaybackRate,
			Pitch:   1,
		},
		Store:   snapshots,
		Metrics: metrics,
		Logger:  observability.Logger(),
	}, cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(s *practice.Session) {
		log.Info("practice session expired", "session_id", s.ID())
	})

	api := httpapi.New(cfg, sessions, metrics, httpapi.RuntimeInfo{
		InterviewerMode: mode,
		StoreKind:       storeKind,
		VoiceProvider:   voiceSetup.resolvedProvider,
	})

	cleanup := func() error {
		var errs []string
		sessions.Close()
		if err := snapshots.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:          cfg,
		API:             api,
		Sessions:        sessions,
		Metrics:         metrics,
		InterviewerMode: mode,
		StoreKind:       storeKind,
		VoiceDetail:     voiceSetup.detail,
		Cleanup:         cleanup,
	}, nil
}
