// Baketa monitor daemon - watches a captured surface for text changes and
// serves detection state over HTTP/WebSocket
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koizumiiiii/Baketa-sub013/internal/capture"
	"github.com/koizumiiiii/Baketa-sub013/internal/config"
	"github.com/koizumiiiii/Baketa-sub013/internal/detect"
	"github.com/koizumiiiii/Baketa-sub013/internal/events"
	"github.com/koizumiiiii/Baketa-sub013/internal/monitor"
	"github.com/koizumiiiii/Baketa-sub013/internal/server"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	cfg := config.Load()

	broker := events.NewBroker()
	defer broker.Close()

	detector, err := detect.NewDetector(cfg.Detection, broker, cfg.WindowHandle)
	if err != nil {
		slog.Error("invalid detection settings", "error", err)
		os.Exit(1)
	}

	capturer := capture.New()
	defer capturer.Close()

	// No recognition engine ships with the daemon; the monitor skips OCR
	// until one is wired in here.
	mon := monitor.New(capturer, detector, nil)
	mon.SetRecognition(cfg.RecognitionEnabled)
	slog.Info("no recognizer configured, running detection only")

	srv := server.New(detector, mon, broker)

	// Start monitor loop in background
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go mon.Run(ctx, cfg.CaptureRate)

	// Start HTTP server
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("baketa monitor starting",
			"http", cfg.HTTPAddr,
			"algorithm", cfg.Detection.Algorithm,
			"rate", cfg.CaptureRate)
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
