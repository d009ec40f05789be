// Posture coach daemon - watches the webcam through a pose worker and
// serves posture feedback over HTTP and WebSocket.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/sitsmart/coach/internal/config"
	"github.com/sitsmart/coach/internal/metrics"
	"github.com/sitsmart/coach/internal/monitor"
	"github.com/sitsmart/coach/internal/pose"
	"github.com/sitsmart/coach/internal/server"
)

func main() {
	// Setup structured logging
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel(),
		TimeFormat: "15:04:05",
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	met := metrics.New()

	// Each worker restart gets a fresh process.
	factory := func() (monitor.FrameSource, error) {
		return pose.NewWorker(pose.Config{
			Command:        cfg.WorkerCommand,
			CameraIndex:    cfg.CameraIndex,
			Width:          cfg.FrameWidth,
			Height:         cfg.FrameHeight,
			SampleInterval: cfg.SampleInterval,
			ReadRetryDelay: cfg.ReadRetryDelay,
			SendPreviews:   cfg.SendPreviews,
		})
	}

	mon := monitor.NewManager(cfg, met, factory)
	srv := server.New(mon, met.Handler(), cfg.UIRefresh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mon.Start(ctx)
	srv.Start(ctx)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("coach starting", "http", cfg.HTTPAddr, "worker", cfg.WorkerCommand)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	mon.Stop()
	slog.Info("shutdown complete")
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
