package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ent0n29/mockinterview/internal/app"
	"github.com/ent0n29/mockinterview/internal/config"
	"github.com/ent0n29/mockinterview/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.Logger().Error("config error", "error", err)
		os.Exit(1)
	}
	observability.SetLogLevel(cfg.LogLevel)
	log := observability.WithFields("component", "main")

	built, err := app.Build(context.Background(), cfg)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := built.Cleanup(); err != nil {
			log.Warn("cleanup failed", "error", err)
		}
	}()
	log.Info("practice service configured",
		"interviewer_mode", built.InterviewerMode,
		"store_kind", built.StoreKind,
		"voice", built.VoiceDetail,
	)

	httpServer := &http.Server{
		Addr:              built.Config.BindAddr,
		Handler:           built.API.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	built.Sessions.StartJanitor(runCtx, 5*time.Second)

	listenErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", built.Config.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Info("shutdown signal received")
	case err := <-listenErr:
		log.Error("listen error", "error", err)
	}

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), built.Config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", "error", err)
		_ = httpServer.Close()
	}

	log.Info("shutdown complete")
}
