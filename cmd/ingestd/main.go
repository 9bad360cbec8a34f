package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nostr-ingest/src/lib"
	"nostr-ingest/src/relay"
)

func main() {
	cfg, err := lib.LoadConfig()
	if err != nil {
		lib.NewLogger("ERROR").Error("load config", "error", err)
		os.Exit(1)
	}
	logger := lib.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := relay.NewServer(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap server", "error", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
			os.Exit(1)
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("server exited with error", "error", err)
			os.Exit(1)
		}
	}
}
